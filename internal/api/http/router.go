package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/smart-support/internal/api/http/handlers"
	"github.com/spec-kit/smart-support/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Suggestions    *handlers.SuggestionsHandler
	Analytics      *handlers.AnalyticsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	app.Post("/tickets", cfg.Tickets.Create)
	app.Get("/suggestions", cfg.Suggestions.Lookup)

	// Conversation endpoints require a reporter token or a session token
	// scoped to the ticket in the path.
	ticket := app.Group("/tickets/:id", cfg.AuthMiddleware.Handle, auth.RequireTicketAccess("id"))
	ticket.Get("/", cfg.Tickets.Get)
	ticket.Get("/conversation", cfg.Tickets.Conversation)
	ticket.Post("/messages", cfg.Tickets.SendMessage)
	ticket.Post("/feedback", cfg.Tickets.Feedback)

	// Operator surface: listing, analytics and export need a reporter
	// account token.
	operator := app.Group("", cfg.AuthMiddleware.Handle)
	operator.Get("/tickets", cfg.Tickets.List)
	operator.Get("/analytics/summary", cfg.Analytics.Summary)
	operator.Post("/analytics/content-gap/run", cfg.Analytics.RunContentGap)
	operator.Post("/analytics/report", cfg.Analytics.SendReport)
	operator.Get("/export/tickets.csv", cfg.Analytics.ExportTickets)
}
