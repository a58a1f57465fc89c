package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/emledger/emledger/internal/wallet"
)

// RegisterWalletRoutes wires wallet view and credit-line endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/wallets/me", h.Me)
	r.Get("/wallets/totals", h.Totals)
	r.Get("/wallets/:address", h.Get)
	r.Put("/wallets/:address/overdraft-limit", h.SetOverdraftLimit)
}
