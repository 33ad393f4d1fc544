package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/numvault/numvault/internal/delivery"
	"github.com/numvault/numvault/internal/pool"
)

// RegisterAllocationRoutes wires the lease lifecycle endpoints.
func RegisterAllocationRoutes(r fiber.Router, h *pool.Handler, d *delivery.Handler) {
	r.Post("/allocations", h.Allocate)
	r.Delete("/allocations/:assignmentID", h.Release)
	r.Post("/allocations/:assignmentID/code", d.FetchCode)
}
