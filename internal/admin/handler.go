package admin

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/numvault/numvault/internal/ledger"
)

// Handler exposes trusted-operator HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds an admin HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type adjustmentRequest struct {
	AdminExternalID string `json:"admin_external_id"`
	Target          string `json:"target"`
	Amount          int64  `json:"amount"`
}

type addNumberRequest struct {
	AdminExternalID string `json:"admin_external_id"`
	Phone           string `json:"phone"`
	AccessToken     string `json:"access_token"`
}

type retireRequest struct {
	AdminExternalID string `json:"admin_external_id"`
}

type promoteRequest struct {
	ExternalID string `json:"external_id"`
	SetupKey   string `json:"setup_key"`
}

// Grant adds credits (any sign) to a target user.
func (h *Handler) Grant(c *fiber.Ctx) error {
	var req adjustmentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Grant(c.UserContext(), req.AdminExternalID, req.Target, req.Amount)
	if err != nil {
		return adminError(err)
	}
	return c.Status(http.StatusOK).JSON(adjustmentResponse(res))
}

// SetBalance pins a target user's balance exactly.
func (h *Handler) SetBalance(c *fiber.Ctx) error {
	var req adjustmentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.SetBalance(c.UserContext(), req.AdminExternalID, req.Target, req.Amount)
	if err != nil {
		return adminError(err)
	}
	return c.Status(http.StatusOK).JSON(adjustmentResponse(res))
}

// UserBalance reads a target user's balance.
func (h *Handler) UserBalance(c *fiber.Ctx) error {
	user, err := h.service.UserBalance(c.UserContext(), c.Query("admin_external_id"), c.Params("target"))
	if err != nil {
		return adminError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"external_id": user.ExternalID,
		"handle":      user.Handle,
		"balance":     user.Credits,
	})
}

// Transactions returns a target user's credit trail.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	txs, err := h.service.Transactions(c.UserContext(), c.Query("admin_external_id"), c.Params("target"))
	if err != nil {
		return adminError(err)
	}

	resp := make([]fiber.Map, 0, len(txs))
	for _, tx := range txs {
		entry := fiber.Map{
			"id":         tx.ID,
			"delta":      tx.Delta,
			"reason":     tx.Reason,
			"created_at": tx.CreatedAt,
		}
		if tx.AssignmentID != "" {
			entry["assignment_id"] = tx.AssignmentID
		}
		if len(tx.Meta) > 0 {
			entry["meta"] = tx.Meta
		}
		resp = append(resp, entry)
	}
	return c.Status(http.StatusOK).JSON(resp)
}

// Reconcile checks a target user's balance against their transaction log.
func (h *Handler) Reconcile(c *fiber.Ctx) error {
	res, err := h.service.Reconcile(c.UserContext(), c.Query("admin_external_id"), c.Params("target"))
	if err != nil {
		return adminError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"credits":         res.Credits,
		"transaction_sum": res.TransactionSum,
		"balanced":        res.Balanced,
	})
}

// AddNumber imports a number into the free pool.
func (h *Handler) AddNumber(c *fiber.Ctx) error {
	var req addNumberRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	number, err := h.service.AddNumber(c.UserContext(), req.AdminExternalID, req.Phone, req.AccessToken)
	if err != nil {
		return adminError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"phone":  number.Phone,
		"status": number.Status,
	})
}

// RetireNumber takes a number out of circulation.
func (h *Handler) RetireNumber(c *fiber.Ctx) error {
	var req retireRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	number, err := h.service.RetireNumber(c.UserContext(), req.AdminExternalID, c.Params("phone"))
	if err != nil {
		return adminError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"phone":  number.Phone,
		"status": number.Status,
	})
}

// Inventory summarizes the pool by status.
func (h *Handler) Inventory(c *fiber.Ctx) error {
	counts, err := h.service.Inventory(c.UserContext(), c.Query("admin_external_id"))
	if err != nil {
		return adminError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"free":     counts.Free,
		"assigned": counts.Assigned,
		"retired":  counts.Retired,
	})
}

// Promote grants the admin flag to a user presenting the setup key.
func (h *Handler) Promote(c *fiber.Ctx) error {
	var req promoteRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	if err := h.service.PromoteAdmin(c.UserContext(), req.ExternalID, req.SetupKey); err != nil {
		return adminError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"promoted": true})
}

func adjustmentResponse(res AdjustmentResult) fiber.Map {
	return fiber.Map{
		"external_id": res.ExternalID,
		"handle":      res.Handle,
		"delta":       res.Delta,
		"balance":     res.Balance,
	}
}

func adminError(err error) error {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return fiber.NewError(http.StatusForbidden, "not authorized")
	case errors.Is(err, ErrSetupDisabled):
		return fiber.NewError(http.StatusForbidden, "admin setup is disabled")
	case errors.Is(err, ledger.ErrUserNotFound):
		return fiber.NewError(http.StatusNotFound, "user not found")
	case errors.Is(err, ledger.ErrNumberNotFound):
		return fiber.NewError(http.StatusNotFound, "number not found")
	case errors.Is(err, ledger.ErrNumberExists):
		return fiber.NewError(http.StatusConflict, "number already exists")
	case errors.Is(err, ledger.ErrNotRefundable):
		return fiber.NewError(http.StatusConflict, "number is currently assigned")
	case errors.Is(err, ledger.ErrInsufficientCredits):
		return fiber.NewError(http.StatusConflict, "adjustment would make the balance negative")
	default:
		return err
	}
}
