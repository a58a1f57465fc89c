package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/emledger/emledger/internal/accessctl"
)

// RegisterAdminRoutes wires role administration endpoints.
func RegisterAdminRoutes(r fiber.Router, h *accessctl.Handler) {
	r.Post("/admin/roles", h.Grant)
	r.Delete("/admin/roles", h.Revoke)
}
