package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-lms-api/internal/config"
	"github.com/noah-isme/gema-lms-api/internal/handler"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AssignmentHandler    *handler.AssignmentHandler
	SubmissionHandler    *handler.SubmissionHandler
	LeaderboardHandler   *handler.LeaderboardHandler
	CertificationHandler *handler.CertificationHandler
	StudentReportHandler *handler.StudentReportHandler
	ActivityHandler      *handler.ActivityHandler
	HealthProbes         map[string]handler.HealthProbe
	MetricsHandler       fiber.Handler
	JWTMiddleware        fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	if deps.MetricsHandler != nil {
		app.Get("/metrics", deps.MetricsHandler)
	}

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	v2 := app.Group("/api/v2", jwtMiddleware)

	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.Register(v2.Group("/assignments"))
	}

	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(v2.Group("/submissions"))
	}

	if deps.LeaderboardHandler != nil {
		deps.LeaderboardHandler.Register(v2.Group("/leaderboard"))
	}

	if deps.CertificationHandler != nil {
		deps.CertificationHandler.Register(v2.Group("/certifications"))
	}

	if deps.StudentReportHandler != nil {
		deps.StudentReportHandler.Register(v2.Group("/students"))
	}

	// Audit trail is admin only
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(v2.Group("/activities", middleware.RequireRole(middleware.RoleAdmin)))
	}
}
