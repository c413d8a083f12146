package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/session-service/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Sessions *handlers.SessionHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/api/auth")
	authGroup.Post("/session", cfg.Sessions.Create)
	authGroup.Get("/verify-session", cfg.Sessions.Verify)
	authGroup.Post("/logout", cfg.Sessions.Logout)
}
