package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/numvault/numvault/internal/admin"
)

// RegisterAdminRoutes wires trusted-operator endpoints.
func RegisterAdminRoutes(r fiber.Router, h *admin.Handler) {
	g := r.Group("/admin")
	g.Post("/credits/grant", h.Grant)
	g.Post("/credits/set", h.SetBalance)
	g.Get("/users/:target/balance", h.UserBalance)
	g.Get("/users/:target/transactions", h.Transactions)
	g.Get("/users/:target/reconcile", h.Reconcile)
	g.Post("/numbers", h.AddNumber)
	g.Post("/numbers/:phone/retire", h.RetireNumber)
	g.Get("/inventory", h.Inventory)
	g.Post("/promote", h.Promote)
}
