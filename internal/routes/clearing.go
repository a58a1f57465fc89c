package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/emledger/emledger/internal/clearing"
)

// RegisterClearingRoutes wires the cleared-transfer endpoints.
func RegisterClearingRoutes(r fiber.Router, h *clearing.Handler) {
	r.Post("/clearing", h.Order)
	r.Post("/clearing/from", h.OrderFrom)
	r.Post("/clearing/approvals", h.Approve)
	r.Delete("/clearing/approvals", h.RevokeApproval)
	r.Get("/clearing/index/:index", h.GetByIndex)
	r.Post("/clearing/:txId/cancel", h.Cancel)
	r.Get("/clearing/:requester/:txId", h.Get)
	r.Post("/clearing/:requester/:txId/process", h.Process)
	r.Post("/clearing/:requester/:txId/execute", h.Execute)
	r.Post("/clearing/:requester/:txId/reject", h.Reject)
}
