package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/emledger/emledger/internal/accessctl"
	"github.com/emledger/emledger/internal/compliance"
	"github.com/emledger/emledger/internal/ledger"
	"github.com/emledger/emledger/internal/middleware"
)

// Handler exposes wallet views and credit-officer endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type viewResponse struct {
	Address        string    `json:"address"`
	Balance        uint64    `json:"balance"`
	OverdraftLimit uint64    `json:"overdraft_limit"`
	DrawnOverdraft uint64    `json:"drawn_overdraft"`
	BalanceOnHold  uint64    `json:"balance_on_hold"`
	NetBalance     int64     `json:"net_balance"`
	AvailableFunds int64     `json:"available_funds"`
	AsOf           time.Time `json:"as_of"`
}

type limitRequest struct {
	Limit uint64 `json:"limit"`
}

// Get returns the consolidated view of a wallet.
func (h *Handler) Get(c *fiber.Ctx) error {
	view, err := h.service.Get(c.UserContext(), c.Params("address"))
	if err != nil {
		return walletError(err)
	}
	return c.Status(http.StatusOK).JSON(viewResponse{
		Address:        view.Address,
		Balance:        view.Balance,
		OverdraftLimit: view.OverdraftLimit,
		DrawnOverdraft: view.DrawnOverdraft,
		BalanceOnHold:  view.BalanceOnHold,
		NetBalance:     view.NetBalance,
		AvailableFunds: view.AvailableFunds,
		AsOf:           view.AsOf,
	})
}

// Me returns the consolidated view of the caller's own wallet.
func (h *Handler) Me(c *fiber.Ctx) error {
	view, err := h.service.Get(c.UserContext(), middleware.Caller(c))
	if err != nil {
		return walletError(err)
	}
	return c.Status(http.StatusOK).JSON(viewResponse{
		Address:        view.Address,
		Balance:        view.Balance,
		OverdraftLimit: view.OverdraftLimit,
		DrawnOverdraft: view.DrawnOverdraft,
		BalanceOnHold:  view.BalanceOnHold,
		NetBalance:     view.NetBalance,
		AvailableFunds: view.AvailableFunds,
		AsOf:           view.AsOf,
	})
}

// Totals returns the global supply counters.
func (h *Handler) Totals(c *fiber.Ctx) error {
	totals, err := h.service.GetTotals(c.UserContext())
	if err != nil {
		return walletError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"total_supply":  totals.TotalSupply,
		"total_drawn":   totals.TotalDrawn,
		"total_on_hold": totals.TotalOnHold,
		"as_of":         totals.AsOf,
	})
}

// SetOverdraftLimit sets a wallet's unsecured credit line. Credit officer
// only.
func (h *Handler) SetOverdraftLimit(c *fiber.Ctx) error {
	var req limitRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.SetOverdraftLimit(c.UserContext(), middleware.Caller(c), c.Params("address"), req.Limit); err != nil {
		return walletError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func walletError(err error) error {
	var rejected *compliance.RejectedError
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, accessctl.ErrNotAuthorized):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.As(err, &rejected):
		return fiber.NewError(http.StatusForbidden, err.Error())
	default:
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
}
