package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/emledger/emledger/internal/hold"
)

// RegisterHoldRoutes wires the hold lifecycle endpoints.
func RegisterHoldRoutes(r fiber.Router, h *hold.Handler) {
	r.Post("/holds", h.Create)
	r.Post("/holds/from", h.CreateFrom)
	r.Post("/holds/approvals", h.Approve)
	r.Delete("/holds/approvals", h.RevokeApproval)
	r.Get("/holds/index/:index", h.GetByIndex)
	r.Post("/holds/:txId/renew", h.Renew)
	r.Get("/holds/:issuer/:txId", h.Get)
	r.Post("/holds/:issuer/:txId/release", h.Release)
	r.Post("/holds/:issuer/:txId/execute", h.Execute)
}
