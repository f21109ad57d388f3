package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/firm-roster/internal/api/http/handlers"
	"github.com/spec-kit/firm-roster/internal/auth"
	"github.com/spec-kit/firm-roster/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health           *handlers.HealthHandler
	Conflicts        *handlers.ConflictsHandler
	Sync             *handlers.SyncHandler
	Audit            *handlers.AuditHandler
	Metrics          fiber.Handler
	AuthMiddleware   fiber.Handler
	Hierarchy        *domain.RoleHierarchy
	SeniorStaffLevel int
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics)
	}

	guild := app.Group("/guilds/:guildID",
		cfg.AuthMiddleware,
		auth.RequireGuildScope("guildID"),
		auth.RequireSeniorStaff(cfg.Hierarchy, cfg.SeniorStaffLevel),
	)

	guild.Post("/conflicts/scan", cfg.Conflicts.Scan)
	guild.Get("/conflicts/stats", cfg.Conflicts.Stats)
	guild.Delete("/conflicts/history", cfg.Conflicts.ClearHistory)

	guild.Get("/members/:userID/conflict", cfg.Conflicts.MemberConflict)
	guild.Post("/members/:userID/conflict/resolve", cfg.Conflicts.Resolve)
	guild.Post("/members/:userID/validate", cfg.Conflicts.Validate)

	guild.Post("/sync", cfg.Sync.Sync)
	guild.Get("/sync", cfg.Sync.LastSync)

	guild.Get("/audit", cfg.Audit.List)
}
