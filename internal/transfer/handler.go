package transfer

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/emledger/emledger/internal/middleware"
	"github.com/emledger/emledger/internal/workflow"
)

// Handler exposes immediate wallet-to-wallet transfers over HTTP.
type Handler struct {
	service *Service
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferBody struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type transferResponse struct {
	From          string `json:"from"`
	To            string `json:"to"`
	Amount        uint64 `json:"amount"`
	FromAvailable int64  `json:"from_available"`
	ToAvailable   int64  `json:"to_available"`
}

// Create moves funds from the caller's wallet immediately.
func (h *Handler) Create(c *fiber.Ctx) error {
	var body transferBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	caller := middleware.Caller(c)
	result, err := h.service.Transfer(c.UserContext(), caller, Input{
		To:     body.To,
		Amount: body.Amount,
	})
	if err != nil {
		return workflow.HTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(transferResponse{
		From:          caller,
		To:            body.To,
		Amount:        body.Amount,
		FromAvailable: result.FromAvailable,
		ToAvailable:   result.ToAvailable,
	})
}

// CreateFrom moves funds from another wallet under a standing approval.
func (h *Handler) CreateFrom(c *fiber.Ctx) error {
	var body transferBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	result, err := h.service.TransferFrom(c.UserContext(), middleware.Caller(c), Input{
		From:   body.From,
		To:     body.To,
		Amount: body.Amount,
	})
	if err != nil {
		return workflow.HTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(transferResponse{
		From:          body.From,
		To:            body.To,
		Amount:        body.Amount,
		FromAvailable: result.FromAvailable,
		ToAvailable:   result.ToAvailable,
	})
}
