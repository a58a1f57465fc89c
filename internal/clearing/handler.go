package clearing

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/emledger/emledger/internal/middleware"
	"github.com/emledger/emledger/internal/workflow"
)

// Handler exposes the cleared-transfer lifecycle over HTTP.
type Handler struct {
	service *Service
}

// NewHandler constructs a clearing handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type orderBody struct {
	TxID         string `json:"tx_id"`
	Payer        string `json:"payer"`
	Payee        string `json:"payee"`
	Amount       uint64 `json:"amount"`
	Instructions string `json:"instructions"`
}

type rejectBody struct {
	Reason string `json:"reason"`
}

type approvalBody struct {
	Grantee string `json:"grantee"`
}

// Order files a cleared transfer from the caller's wallet. The amount is held
// until an operator settles or rejects the order.
func (h *Handler) Order(c *fiber.Ctx) error {
	var body orderBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	req, err := h.service.Order(c.UserContext(), middleware.Caller(c), Input{
		TxID:         body.TxID,
		Payee:        body.Payee,
		Amount:       body.Amount,
		Instructions: body.Instructions,
	})
	if err != nil {
		return workflow.HTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(workflow.PayloadFrom(req))
}

// OrderFrom files a cleared transfer from another wallet under a standing
// approval.
func (h *Handler) OrderFrom(c *fiber.Ctx) error {
	var body orderBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	req, err := h.service.OrderFrom(c.UserContext(), middleware.Caller(c), Input{
		TxID:         body.TxID,
		Payer:        body.Payer,
		Payee:        body.Payee,
		Amount:       body.Amount,
		Instructions: body.Instructions,
	})
	if err != nil {
		return workflow.HTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(workflow.PayloadFrom(req))
}

// Cancel withdraws one of the caller's own pending orders and releases the
// backing hold.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	req, err := h.service.Cancel(c.UserContext(), middleware.Caller(c), c.Params("txId"))
	if err != nil {
		return workflow.HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(workflow.PayloadFrom(req))
}

// Process marks an order as in process. Operator only.
func (h *Handler) Process(c *fiber.Ctx) error {
	req, err := h.service.Process(c.UserContext(), middleware.Caller(c), paramID(c))
	if err != nil {
		return workflow.HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(workflow.PayloadFrom(req))
}

// Execute settles an order, moving the held funds to the payee. Operator only.
func (h *Handler) Execute(c *fiber.Ctx) error {
	req, err := h.service.Execute(c.UserContext(), middleware.Caller(c), paramID(c))
	if err != nil {
		return workflow.HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(workflow.PayloadFrom(req))
}

// Reject closes an order and releases the backing hold. Operator only.
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

// Get returns an order by its composite identifier.
func (h *Handler) Get(c *fiber.Ctx) error {
	req, err := h.service.Get(c.UserContext(), paramID(c))
	if err != nil {
		return workflow.HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(workflow.PayloadFrom(req))
}

// GetByIndex returns an order by its global sequence number.
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

// Approve grants a standing transfer privilege over the caller's wallet.
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

// RevokeApproval withdraws a standing transfer privilege.
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
