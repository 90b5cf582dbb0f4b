package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	tickets := app.Group("/tickets", cfg.AuthMiddleware, auth.RequireAnyRole())
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)

	tickets.Post("/:id/assign-self", cfg.Tickets.AssignSelf)
	tickets.Post("/:id/assign", cfg.Tickets.Assign)
	tickets.Post("/:id/unassign", cfg.Tickets.Unassign)
	tickets.Get("/:id/assignees", cfg.Tickets.EligibleAssignees)

	tickets.Post("/:id/status", cfg.Tickets.ChangeStatus)
	tickets.Post("/:id/close", cfg.Tickets.Close)
	tickets.Post("/:id/confirm", cfg.Tickets.Confirm)
	tickets.Post("/:id/reject", cfg.Tickets.Reject)

	tickets.Post("/:id/priority", cfg.Tickets.ChangePriority)
	tickets.Post("/:id/category", cfg.Tickets.ChangeCategory)
	tickets.Post("/:id/due-date", cfg.Tickets.SetDueDate)

	tickets.Get("/:id/comments", cfg.Tickets.ListComments)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Post("/:id/attachments", cfg.Tickets.AddAttachment)
	tickets.Post("/:id/collaborators", cfg.Tickets.AddCollaborator)
	tickets.Delete("/:id/collaborators/:userId", cfg.Tickets.RemoveCollaborator)

	tickets.Get("/:id/activities", cfg.Tickets.ListActivities)
	tickets.Get("/:id/capabilities", cfg.Tickets.Capabilities)
}
