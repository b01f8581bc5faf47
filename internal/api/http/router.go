package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/hotel-booking/internal/api/http/handlers"
	"github.com/spec-kit/hotel-booking/internal/auth"
	"github.com/spec-kit/hotel-booking/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health        *handlers.HealthHandler
	Metrics       *handlers.MetricsHandler
	Auth          *handlers.AuthHandler
	Authenticator *auth.Authenticator
}

// RegisterRoutes wires HTTP routes. The authenticator runs on every /auth
// route; it never rejects on its own, the guards do.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Get)

	authGroup := app.Group("/auth", cfg.Authenticator.Handle)
	authGroup.Post("/register-user", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh", cfg.Auth.Refresh)

	authGroup.Post("/logout", auth.RequireIdentity(), cfg.Auth.Logout)
	authGroup.Get("/me", auth.RequireIdentity(), cfg.Auth.Me)
	authGroup.Delete("/sessions/:email", auth.RequireRole(domain.RoleAdmin), cfg.Auth.RevokeSession)
}
