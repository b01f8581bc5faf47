package auth

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/hotel-booking/internal/clock"
	"github.com/spec-kit/hotel-booking/internal/domain"
)

const (
	bearerPrefix = "Bearer "
	identityKey  = "auth_identity"
)

type identityCtxKey struct{}

// UserFinder resolves a token subject to the current account.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Authenticator maps a request's Authorization header to an identity. It never
// fails a request; callers that require an identity use RequireIdentity.
type Authenticator struct {
	codec         *TokenCodec
	users         UserFinder
	clock         clock.Clock
	logger        *zap.Logger
	lookupTimeout time.Duration
}

// NewAuthenticator constructs the middleware. lookupTimeout bounds the user
// lookup; zero disables the bound.
func NewAuthenticator(codec *TokenCodec, users UserFinder, clk clock.Clock, logger *zap.Logger, lookupTimeout time.Duration) *Authenticator {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{codec: codec, users: users, clock: clk, logger: logger, lookupTimeout: lookupTimeout}
}

// Authenticate returns the identity behind header, or false when the header is
// absent, not a bearer credential, fails to decode, is a refresh token, or names
// an account that can no longer be resolved.
func (a *Authenticator) Authenticate(ctx context.Context, header string, now time.Time) (*domain.AccountIdentity, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return nil, false
	}

	claims, err := a.codec.Decode(header[len(bearerPrefix):], now)
	if err != nil {
		a.logger.Debug("bearer token rejected", zap.Error(err))
		return nil, false
	}
	if claims.Kind != domain.TokenKindAccess {
		a.logger.Debug("non-access token presented as bearer", zap.String("kind", string(claims.Kind)))
		return nil, false
	}

	if a.lookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.lookupTimeout)
		defer cancel()
	}

	user, err := a.users.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if domain.IsAuthFailure(err) {
			a.logger.Debug("token subject not found", zap.String("subject", claims.Subject))
		} else {
			a.logger.Warn("resolve token subject", zap.String("subject", claims.Subject), zap.Error(err))
		}
		return nil, false
	}
	return user.Identity(), true
}

// Handle is the fiber middleware form of Authenticate. It always continues the
// chain; on success the identity is available through IdentityFromLocals and
// IdentityFromContext for the rest of the request.
func (a *Authenticator) Handle(c *fiber.Ctx) error {
	identity, ok := a.Authenticate(c.UserContext(), c.Get(fiber.HeaderAuthorization), a.clock.Now())
	if ok {
		c.Locals(identityKey, identity)
		c.SetUserContext(WithIdentity(c.UserContext(), identity))
	}
	return c.Next()
}

// WithIdentity returns a child context carrying identity.
func WithIdentity(ctx context.Context, identity *domain.AccountIdentity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, identity)
}

// IdentityFromContext retrieves the identity attached by Handle.
func IdentityFromContext(ctx context.Context) (*domain.AccountIdentity, bool) {
	identity, ok := ctx.Value(identityCtxKey{}).(*domain.AccountIdentity)
	return identity, ok && identity != nil
}

// IdentityFromLocals retrieves the authenticated identity from fiber locals.
func IdentityFromLocals(c *fiber.Ctx) (*domain.AccountIdentity, bool) {
	identity, ok := c.Locals(identityKey).(*domain.AccountIdentity)
	return identity, ok && identity != nil
}
