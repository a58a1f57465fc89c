package accessctl

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/emledger/emledger/internal/middleware"
)

// Handler exposes role administration. Only operators may grant or revoke
// roles; the first operators are seeded from configuration at startup.
type Handler struct {
	registry Registry
}

// NewHandler builds the role administration handler.
func NewHandler(registry Registry) *Handler {
	return &Handler{registry: registry}
}

type roleRequest struct {
	Address string `json:"address"`
	Role    string `json:"role"`
}

func parseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleOperator, RoleCreditOfficer:
		return Role(raw), nil
	default:
		return "", errors.New("unknown role")
	}
}

func (h *Handler) authorize(ctx context.Context, caller string) error {
	return RequireRole(ctx, h.registry, caller, RoleOperator)
}

// Grant assigns a role to an address.
func (h *Handler) Grant(c *fiber.Ctx) error {
	caller := middleware.Caller(c)
	if err := h.authorize(c.UserContext(), caller); err != nil {
		return fiber.NewError(http.StatusForbidden, err.Error())
	}
	var req roleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	role, err := parseRole(req.Role)
	if err != nil || req.Address == "" {
		return fiber.NewError(http.StatusBadRequest, "address and a known role are required")
	}
	if err := h.registry.GrantRole(c.UserContext(), req.Address, role); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}

// Revoke removes a role from an address.
func (h *Handler) Revoke(c *fiber.Ctx) error {
	caller := middleware.Caller(c)
	if err := h.authorize(c.UserContext(), caller); err != nil {
		return fiber.NewError(http.StatusForbidden, err.Error())
	}
	var req roleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	role, err := parseRole(req.Role)
	if err != nil || req.Address == "" {
		return fiber.NewError(http.StatusBadRequest, "address and a known role are required")
	}
	if err := h.registry.RevokeRole(c.UserContext(), req.Address, role); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}
