package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/emledger/emledger/internal/funding"
)

// RegisterFundingRoutes wires the funding request endpoints.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler) {
	r.Post("/funding", h.Request)
	r.Post("/funding/from", h.RequestFrom)
	r.Post("/funding/approvals", h.Approve)
	r.Delete("/funding/approvals", h.RevokeApproval)
	r.Get("/funding/index/:index", h.GetByIndex)
	r.Post("/funding/:txId/cancel", h.Cancel)
	r.Get("/funding/:requester/:txId", h.Get)
	r.Post("/funding/:requester/:txId/process", h.Process)
	r.Post("/funding/:requester/:txId/execute", h.Execute)
	r.Post("/funding/:requester/:txId/reject", h.Reject)
}
