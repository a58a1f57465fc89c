package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/emledger/emledger/internal/auth"
	"github.com/emledger/emledger/internal/config"
)

// RegisterAuthRoutes wires token issuance. Self-service issuance is a
// development convenience; in other environments tokens are provisioned by
// the operator of the platform, which shares the signing secret.
func RegisterAuthRoutes(r fiber.Router, cfg config.Config) {
	if !cfg.IsDev() {
		return
	}
	r.Post("/auth/token", func(c *fiber.Ctx) error {
		var body struct {
			Address string `json:"address"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if body.Address == "" {
			return fiber.NewError(http.StatusBadRequest, "address is required")
		}
		token, err := auth.Sign(body.Address, cfg.TokenTTL, []byte(cfg.TokenSecret))
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"token":       token,
			"address":     body.Address,
			"ttl_seconds": int64(cfg.TokenTTL.Seconds()),
		})
	})
}
