package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/numvault/numvault/internal/pool"
)

// RegisterUserRoutes wires user-facing account endpoints.
func RegisterUserRoutes(r fiber.Router, h *pool.Handler) {
	r.Post("/users/sync", h.Sync)
	r.Get("/users/:externalID/balance", h.Balance)
	r.Get("/users/:externalID/numbers", h.ActiveNumbers)
}
