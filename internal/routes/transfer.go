package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/emledger/emledger/internal/transfer"
)

// RegisterTransferRoutes wires immediate transfer endpoints.
func RegisterTransferRoutes(r fiber.Router, h *transfer.Handler) {
	r.Post("/transfers", h.Create)
	r.Post("/transfers/from", h.CreateFrom)
}
