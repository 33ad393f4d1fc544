package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/numvault/numvault/internal/ledger"
)

// Handler exposes the code retrieval endpoint.
type Handler struct {
	service *Service
}

// NewHandler builds a delivery HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type fetchRequest struct {
	UserExternalID string `json:"user_external_id"`
}

// FetchCode pulls the current one-time code for an assignment.
func (h *Handler) FetchCode(c *fiber.Ctx) error {
	var req fetchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.UserExternalID == "" {
		return fiber.NewError(http.StatusBadRequest, "user_external_id is required")
	}

	res, err := h.service.Fetch(c.UserContext(), c.Params("assignmentID"), req.UserExternalID)
	if err != nil {
		var limited *RateLimitedError
		switch {
		case errors.As(err, &limited):
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(limited.RemainingSeconds()))
			return fiber.NewError(http.StatusTooManyRequests, limited.Error())
		case errors.Is(err, ledger.ErrAssignmentNotFound):
			return fiber.NewError(http.StatusNotFound, "assignment not found")
		case errors.Is(err, ErrNoCodeAvailable):
			return fiber.NewError(http.StatusNotFound, "no code found yet, try again later")
		case errors.Is(err, ErrDeliveryUnavailable):
			return fiber.NewError(http.StatusServiceUnavailable, "temporary error fetching code, try again")
		default:
			return err
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"assignment_id": res.AssignmentID,
		"phone":         res.Phone,
		"code":          res.Code,
		"fetched_at":    res.FetchedAt,
	})
}
