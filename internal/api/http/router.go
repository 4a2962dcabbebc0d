package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        fiber.Handler
	Tickets        *handlers.TicketsHandler
	SLA            *handlers.SLAHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
	AdminRole      domain.StaffRole
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
	}
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics)
	}

	adminRole := cfg.AdminRole
	if adminRole == "" {
		adminRole = domain.StaffRoleAdmin
	}
	staffOnly := auth.RequireStaffRole()
	adminOnly := auth.RequireStaffRole(adminRole)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())

	tickets := api.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/history", cfg.Tickets.ListHistory)
	tickets.Post("/:id/submit", cfg.Tickets.Submit)
	tickets.Post("/:id/approve", staffOnly, cfg.Tickets.Approve)
	tickets.Post("/:id/reject", staffOnly, cfg.Tickets.Reject)
	tickets.Post("/:id/start", staffOnly, cfg.Tickets.Start)
	tickets.Post("/:id/complete", staffOnly, cfg.Tickets.Complete)
	tickets.Post("/:id/close", staffOnly, cfg.Tickets.Close)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Get("/:id/messages", cfg.Tickets.ListMessages)
	tickets.Get("/:id/sla", staffOnly, cfg.Tickets.GetSLA)

	sla := api.Group("/sla")
	sla.Get("/breaches", staffOnly, cfg.SLA.ListBreaches)
	sla.Post("/breaches/:id/acknowledge", staffOnly, cfg.SLA.AcknowledgeBreach)
	sla.Post("/policies", adminOnly, cfg.SLA.CreatePolicy)
	sla.Get("/policies", adminOnly, cfg.SLA.ListPolicies)

	workflows := api.Group("/workflows", adminOnly)
	workflows.Post("/", cfg.Admin.CreateWorkflow)
	workflows.Get("/", cfg.Admin.ListWorkflows)
	workflows.Get("/:id", cfg.Admin.GetWorkflow)

	rules := api.Group("/rules", adminOnly)
	rules.Post("/assignment", cfg.Admin.CreateAssignmentRule)
	rules.Post("/prioritization", cfg.Admin.CreatePrioritizationRule)
	rules.Post("/escalation", cfg.Admin.CreateEscalationRule)

	staff := api.Group("/staff", adminOnly)
	staff.Post("/", cfg.Admin.CreateStaff)
	staff.Get("/", cfg.Admin.ListStaff)
	staff.Post("/:id/token", cfg.Admin.IssueToken)
}
