package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/emledger/emledger/internal/payout"
)

// RegisterPayoutRoutes wires the payout request endpoints.
func RegisterPayoutRoutes(r fiber.Router, h *payout.Handler) {
	r.Post("/payouts", h.Request)
	r.Post("/payouts/from", h.RequestFrom)
	r.Post("/payouts/approvals", h.Approve)
	r.Delete("/payouts/approvals", h.RevokeApproval)
	r.Get("/payouts/index/:index", h.GetByIndex)
	r.Post("/payouts/:txId/cancel", h.Cancel)
	r.Get("/payouts/:requester/:txId", h.Get)
	r.Post("/payouts/:requester/:txId/process", h.Process)
	r.Post("/payouts/:requester/:txId/execute", h.Execute)
	r.Post("/payouts/:requester/:txId/reject", h.Reject)
}
