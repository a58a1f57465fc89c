package funding

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/emledger/emledger/internal/middleware"
	"github.com/emledger/emledger/internal/workflow"
)

// Handler exposes the funding request lifecycle over HTTP.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type requestBody struct {
	TxID         string `json:"tx_id"`
	Wallet       string `json:"wallet"`
	Amount       uint64 `json:"amount"`
	Instructions string `json:"instructions"`
}

type rejectBody struct {
	Reason string `json:"reason"`
}

type approvalBody struct {
	Grantee string `json:"grantee"`
}

// Request files a funding request for the caller's own wallet.
func (h *Handler) Request(c *fiber.Ctx) error {
	var body requestBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	req, err := h.service.Request(c.UserContext(), middleware.Caller(c), Input{
		TxID:         body.TxID,
		Amount:       body.Amount,
		Instructions: body.Instructions,
	})
	if err != nil {
		return workflow.HTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(workflow.PayloadFrom(req))
}

// RequestFrom files a funding request for another wallet under a standing
// approval.
func (h *Handler) RequestFrom(c *fiber.Ctx) error {
	var body requestBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	req, err := h.service.RequestFrom(c.UserContext(), middleware.Caller(c), Input{
		TxID:         body.TxID,
		Wallet:       body.Wallet,
		Amount:       body.Amount,
		Instructions: body.Instructions,
	})
	if err != nil {
		return workflow.HTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(workflow.PayloadFrom(req))
}

// Cancel withdraws one of the caller's own pending requests.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	req, err := h.service.Cancel(c.UserContext(), middleware.Caller(c), c.Params("txId"))
	if err != nil {
		return workflow.HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(workflow.PayloadFrom(req))
}

// Process marks a request as in process. Operator only.
func (h *Handler) Process(c *fiber.Ctx) error {
	req, err := h.service.Process(c.UserContext(), middleware.Caller(c), paramID(c))
	if err != nil {
		return workflow.HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(workflow.PayloadFrom(req))
}

// Execute settles a request, crediting the wallet. Operator only.
func (h *Handler) Execute(c *fiber.Ctx) error {
	req, err := h.service.Execute(c.UserContext(), middleware.Caller(c), paramID(c))
	if err != nil {
		return workflow.HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(workflow.PayloadFrom(req))
}

// Reject closes a request without moving funds. Operator only.
func (h *Handler) Reject(c *fiber.Ctx) error {
	var body rejectBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	req, err := h.service.Reject(c.UserContext(), middleware.Caller(c), paramID(c), body.Reason)
	if err != nil {
		return workflow.HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(workflow.PayloadFrom(req))
}

// Get returns a request by its composite identifier.
func (h *Handler) Get(c *fiber.Ctx) error {
	req, err := h.service.Get(c.UserContext(), paramID(c))
	if err != nil {
		return workflow.HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(workflow.PayloadFrom(req))
}

// GetByIndex returns a request by its global sequence number.
func (h *Handler) GetByIndex(c *fiber.Ctx) error {
	index, err := c.ParamsInt("index")
	if err != nil || index < 1 {
		return fiber.NewError(http.StatusBadRequest, "invalid request index")
	}
	req, err := h.service.GetByIndex(c.UserContext(), uint64(index))
	if err != nil {
		return workflow.HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(workflow.PayloadFrom(req))
}

// Approve grants a standing funding privilege over the caller's wallet.
func (h *Handler) Approve(c *fiber.Ctx) error {
	var body approvalBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.Approve(c.UserContext(), middleware.Caller(c), body.Grantee); err != nil {
		return workflow.HTTPError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// RevokeApproval withdraws a standing funding privilege.
func (h *Handler) RevokeApproval(c *fiber.Ctx) error {
	var body approvalBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.RevokeApproval(c.UserContext(), middleware.Caller(c), body.Grantee); err != nil {
		return workflow.HTTPError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func paramID(c *fiber.Ctx) workflow.ID {
	return workflow.ID{Requester: c.Params("requester"), TxID: c.Params("txId")}
}
