package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-ledger/internal/api/http/handlers"
	"github.com/spec-kit/ticket-ledger/internal/auth"
	"github.com/spec-kit/ticket-ledger/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Timeline       *handlers.TimelineHandler
	Categories     *handlers.CategoriesHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireRole())

	protected.Post("/tickets", cfg.Tickets.CreateTicket)
	protected.Get("/tickets", cfg.Tickets.ListTickets)
	protected.Get("/tickets/:id", cfg.Tickets.GetTicket)
	protected.Patch("/tickets/:id/status", cfg.Tickets.ChangeStatus)
	protected.Patch("/tickets/:id/assignee", cfg.Tickets.Reassign)
	protected.Patch("/tickets/:id/classification", cfg.Tickets.Reclassify)
	protected.Delete("/tickets/:id", auth.RequireRole(domain.AgentRoleAdmin), cfg.Tickets.DeleteTicket)

	protected.Get("/tickets/:id/transitions", cfg.Tickets.ListTransitions)
	protected.Get("/tickets/:id/timeline", cfg.Timeline.GetTimeline)

	protected.Get("/categories", cfg.Categories.ListCategories)
}
