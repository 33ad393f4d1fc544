package pool

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/numvault/numvault/internal/ledger"
)

// Handler exposes user and allocation HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a pool HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type syncRequest struct {
	ExternalID string `json:"external_id"`
	Handle     string `json:"handle"`
}

type allocateRequest struct {
	UserExternalID string `json:"user_external_id"`
}

type activeNumberResponse struct {
	AssignmentID string    `json:"assignment_id"`
	Phone        string    `json:"phone"`
	LastCode     string    `json:"last_code,omitempty"`
	AssignedAt   time.Time `json:"assigned_at"`
	CodeLocked   bool      `json:"code_locked"`
}

// Sync resolves or creates the user and returns the current balance.
func (h *Handler) Sync(c *fiber.Ctx) error {
	var req syncRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.ExternalID == "" {
		return fiber.NewError(http.StatusBadRequest, "external_id is required")
	}

	user, err := h.service.SyncUser(c.UserContext(), req.ExternalID, req.Handle)
	if err != nil {
		return poolError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"external_id": user.ExternalID,
		"handle":      user.Handle,
		"balance":     user.Credits,
	})
}

// Balance returns the user's credit balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	balance, err := h.service.Balance(c.UserContext(), c.Params("externalID"))
	if err != nil {
		return poolError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"balance": balance})
}

// ActiveNumbers lists the user's live leases.
func (h *Handler) ActiveNumbers(c *fiber.Ctx) error {
	numbers, err := h.service.ActiveNumbers(c.UserContext(), c.Params("externalID"))
	if err != nil {
		return poolError(err)
	}

	resp := make([]activeNumberResponse, 0, len(numbers))
	for _, n := range numbers {
		resp = append(resp, activeNumberResponse{
			AssignmentID: n.AssignmentID,
			Phone:        n.Phone,
			LastCode:     n.LastCode,
			AssignedAt:   n.AssignedAt,
			CodeLocked:   n.CodeLocked,
		})
	}
	return c.Status(http.StatusOK).JSON(resp)
}

// Allocate leases a free number to the requesting user.
func (h *Handler) Allocate(c *fiber.Ctx) error {
	var req allocateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.UserExternalID == "" {
		return fiber.NewError(http.StatusBadRequest, "user_external_id is required")
	}

	res, err := h.service.Allocate(c.UserContext(), req.UserExternalID)
	if err != nil {
		return poolError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"assignment_id": res.AssignmentID,
		"phone":         res.Phone,
		"balance":       res.Balance,
	})
}

// Release refunds an active lease.
func (h *Handler) Release(c *fiber.Ctx) error {
	res, err := h.service.Release(c.UserContext(), c.Params("assignmentID"))
	if err != nil {
		return poolError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"assignment_id": res.AssignmentID,
		"phone":         res.Phone,
		"refunded":      res.Refunded,
		"balance":       res.Balance,
	})
}

func poolError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientCredits):
		return fiber.NewError(http.StatusPaymentRequired, "insufficient credits")
	case errors.Is(err, ledger.ErrNoNumberAvailable):
		return fiber.NewError(http.StatusConflict, "no numbers available")
	case errors.Is(err, ledger.ErrNotRefundable):
		return fiber.NewError(http.StatusConflict, "cannot release after a code has been fetched")
	case errors.Is(err, ledger.ErrAssignmentNotFound):
		return fiber.NewError(http.StatusNotFound, "assignment not found")
	case errors.Is(err, ledger.ErrUserNotFound):
		return fiber.NewError(http.StatusNotFound, "user not found")
	default:
		return err
	}
}
