package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/hotel-booking/pkg/util/errorutil"
)

// RequireIdentity rejects requests that Handle could not authenticate.
func RequireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := IdentityFromLocals(c); !ok {
			return apperrors.NewUnauthorized()
		}
		return c.Next()
	}
}

// RequireRole ensures the caller carries at least one of the allowed roles.
func RequireRole(allowed ...string) fiber.Handler {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromLocals(c)
		if !ok {
			return apperrors.NewUnauthorized()
		}
		for _, role := range identity.Roles {
			if _, exists := allowedSet[role]; exists {
				return c.Next()
			}
		}
		return apperrors.NewForbidden("insufficient role")
	}
}
