package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/hotel-booking/internal/domain"
)

// TokenCodec signs and verifies compact HS256 tokens with a process-wide secret.
// A single key is used for both signing and verification; changing the secret
// invalidates every outstanding token.
type TokenCodec struct {
	secret []byte
}

// NewTokenCodec builds a codec for the given secret.
func NewTokenCodec(secret string) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	return &TokenCodec{secret: []byte(secret)}, nil
}

// Claims describes the token payload.
type Claims struct {
	Kind  domain.TokenKind `json:"token_use"`
	Roles []string         `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// IssuedAtTime returns iat, or the zero time when absent.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// ExpiresAtTime returns exp, or the zero time when absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Encode signs a token for subject valid from now for expiresIn.
func (tc *TokenCodec) Encode(kind domain.TokenKind, subject string, roles []string, expiresIn time.Duration, now time.Time) (string, error) {
	if subject == "" || expiresIn <= 0 {
		return "", domain.ErrInvalidTokenRequest
	}

	claims := &Claims{
		Kind:  kind,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tc.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and expiry of tokenStr as of now. A token
// expires once now is after its exp; at exp itself it is still valid.
func (tc *TokenCodec) Decode(tokenStr string, now time.Time) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		// jwt rejects at now == exp; evaluating one nanosecond earlier moves
		// the rejection to now > exp.
		jwt.WithTimeFunc(func() time.Time { return now.Add(-time.Nanosecond) }),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	)

	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (interface{}, error) {
		return tc.secret, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}
	if !parsed.Valid || claims.Subject == "" || claims.IssuedAt == nil {
		return nil, domain.ErrMalformedToken
	}
	return claims, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", domain.ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrMalformedToken, err)
	}
}
