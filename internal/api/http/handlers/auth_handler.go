package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/hotel-booking/internal/api/dto"
	"github.com/spec-kit/hotel-booking/internal/auth"
	"github.com/spec-kit/hotel-booking/internal/clock"
	"github.com/spec-kit/hotel-booking/internal/service"
	apperrors "github.com/spec-kit/hotel-booking/pkg/util/errorutil"
)

const tokenType = "Bearer"

// AuthHandler exposes the session endpoints.
type AuthHandler struct {
	auth   *service.AuthService
	tokens *service.TokenService
	clock  clock.Clock
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, tokenService *service.TokenService, clk clock.Clock) *AuthHandler {
	return &AuthHandler{auth: authService, tokens: tokenService, clock: clk}
}

// Register handles POST /auth/register-user.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	user, err := h.auth.Register(c.UserContext(), req.Email, req.Password, nil)
	if err != nil {
		return apperrors.MapError(err)
	}

	return c.Status(http.StatusCreated).JSON(dto.AccountResponse{
		ID:    user.ID,
		Email: user.Email,
		Roles: user.Roles,
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password, h.clock.Now())
	if err != nil {
		return apperrors.MapError(err)
	}

	return c.JSON(dto.LoginResponse{
		ID:                    result.Identity.ID,
		Email:                 result.Identity.Email,
		AccessToken:           result.Tokens.AccessToken,
		RefreshToken:          result.Tokens.RefreshToken,
		Type:                  tokenType,
		Roles:                 result.Identity.Roles,
		AccessTokenExpiresAt:  result.Tokens.AccessExpiresAt,
		RefreshTokenExpiresAt: result.Tokens.RefreshExpiresAt,
	})
}

// Refresh handles POST /auth/refresh. Every auth failure renders the same 401.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.RefreshToken == "" {
		return apperrors.NewUnauthorized()
	}

	pair, err := h.tokens.Refresh(c.UserContext(), req.RefreshToken, h.clock.Now())
	if err != nil {
		return apperrors.MapError(err)
	}

	return c.JSON(dto.RefreshResponse{
		AccessToken:           pair.AccessToken,
		RefreshToken:          pair.RefreshToken,
		Type:                  tokenType,
		AccessTokenExpiresAt:  pair.AccessExpiresAt,
		RefreshTokenExpiresAt: pair.RefreshExpiresAt,
	})
}

// Logout handles POST /auth/logout for the bearer's own session.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromLocals(c)
	if !ok {
		return apperrors.NewUnauthorized()
	}

	presented := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), tokenType+" ")
	if err := h.tokens.Logout(c.UserContext(), identity.Email, presented, h.clock.Now()); err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(dto.MessageResponse{Message: "logged out!"})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromLocals(c)
	if !ok {
		return apperrors.NewUnauthorized()
	}
	return c.JSON(dto.AccountResponse{ID: identity.ID, Email: identity.Email, Roles: identity.Roles})
}

// RevokeSession handles DELETE /auth/sessions/:email.
func (h *AuthHandler) RevokeSession(c *fiber.Ctx) error {
	admin, ok := auth.IdentityFromLocals(c)
	if !ok {
		return apperrors.NewUnauthorized()
	}

	subject, err := url.PathUnescape(c.Params("email"))
	if err != nil || subject == "" {
		return apperrors.NewValidationError("invalid email", nil)
	}

	if err := h.tokens.Revoke(c.UserContext(), subject, admin.Email, h.clock.Now()); err != nil {
		return apperrors.MapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}
