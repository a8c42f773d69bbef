package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/helpdesk-service/internal/api/http/handlers"
	"github.com/opsdesk/helpdesk-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	users := app.Group("/users")
	users.Post("/register", cfg.Users.Register)
	users.Post("/login", cfg.Users.Login)
	users.Post("/logout", cfg.AuthMiddleware.Handle, cfg.Users.Logout)
	users.Patch("/role", cfg.AuthMiddleware.Handle, auth.RequireAdmin(), cfg.Users.UpdateRole)
	users.Get("/", cfg.AuthMiddleware.Handle, auth.RequireAdmin(), cfg.Users.ListUsers)
	users.Get("/:userId/tickets", cfg.AuthMiddleware.Handle, cfg.Users.GetUserTickets)
	users.Get("/:userId", cfg.AuthMiddleware.Handle, cfg.Users.GetUser)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("/", cfg.Tickets.Create)
	tickets.Get("/", auth.RequireAdmin(), cfg.Tickets.List)
	tickets.Get("/:id/history", auth.RequireAdmin(), cfg.Tickets.History)
	tickets.Get("/:id/messages", cfg.Tickets.ListMessages)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Patch("/:id", cfg.Tickets.Update)
}
