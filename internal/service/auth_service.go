package service

import (
	"context"
	"time"

	"github.com/spec-kit/hotel-booking/internal/auth"
	"github.com/spec-kit/hotel-booking/internal/config"
	"github.com/spec-kit/hotel-booking/internal/domain"
	"github.com/spec-kit/hotel-booking/internal/repository"
)

// LoginResult is returned by a successful credential login.
type LoginResult struct {
	Identity *domain.AccountIdentity
	Tokens   *domain.TokenPair
}

// AuthService coordinates registration and credential login.
type AuthService struct {
	users      repository.UserRepository
	tokens     *TokenService
	bcryptCost int
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	Tokens   *TokenService
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		tokens:     deps.Tokens,
		bcryptCost: cfg.BcryptCost,
	}
}

// Register creates an account. Accounts without roles get ROLE_USER.
func (s *AuthService) Register(ctx context.Context, email, password string, roles []string) (*domain.User, error) {
	if len(roles) == 0 {
		roles = []string{domain.RoleUser}
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		Roles:        roles,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and starts a session. Unknown emails and wrong
// passwords both yield domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string, now time.Time) (*LoginResult, error) {
	ok, err := s.users.VerifyPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if domain.IsAuthFailure(err) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	identity := user.Identity()
	pair, err := s.tokens.Login(ctx, identity, now)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Identity: identity, Tokens: pair}, nil
}
