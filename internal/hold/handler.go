package hold

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

// Handler exposes the hold lifecycle over HTTP.
type Handler struct {
	service *Service
}

// NewHandler builds a hold HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	TxID       string `json:"tx_id"`
	Payer      string `json:"payer"`
	Payee      string `json:"payee"`
	Notary     string `json:"notary"`
	Amount     uint64 `json:"amount"`
	Expires    bool   `json:"expires"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

type renewRequest struct {
	TTLSeconds int64 `json:"ttl_seconds"`
}

type approvalRequest struct {
	Grantee string `json:"grantee"`
}

type holdResponse struct {
	Index      uint64     `json:"index"`
	Issuer     string     `json:"issuer"`
	TxID       string     `json:"tx_id"`
	Payer      string     `json:"payer"`
	Payee      string     `json:"payee"`
	Notary     string     `json:"notary,omitempty"`
	Amount     uint64     `json:"amount"`
	Expires    bool       `json:"expires"`
	Expiration *time.Time `json:"expiration,omitempty"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toResponse(h ledger.Hold) holdResponse {
	resp := holdResponse{
		Index:     h.Index,
		Issuer:    h.Issuer,
		TxID:      h.TxID,
		Payer:     h.Payer,
		Payee:     h.Payee,
		Amount:    h.Amount,
		Expires:   h.Expires,
		Status:    string(h.Status),
		CreatedAt: h.CreatedAt,
	}
	if h.Notary != ledger.NoNotary {
		resp.Notary = h.Notary
	}
	if h.Expires {
		exp := h.Expiration
		resp.Expiration = &exp
	}
	return resp
}

// Create places a hold against the caller's own wallet.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	created, err := h.service.Hold(c.UserContext(), middleware.Caller(c), Input{
		TxID:    req.TxID,
		Payee:   req.Payee,
		Notary:  req.Notary,
		Amount:  req.Amount,
		Expires: req.Expires,
		TTL:     time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		return holdError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(created))
}

// CreateFrom places a hold against another wallet under a standing approval.
func (h *Handler) CreateFrom(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	created, err := h.service.HoldFrom(c.UserContext(), middleware.Caller(c), Input{
		TxID:    req.TxID,
		Payer:   req.Payer,
		Payee:   req.Payee,
		Notary:  req.Notary,
		Amount:  req.Amount,
		Expires: req.Expires,
		TTL:     time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		return holdError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(created))
}

// Get looks a hold up by its composite identifier.
func (h *Handler) Get(c *fiber.Ctx) error {
	found, err := h.service.Get(c.UserContext(), ledger.HoldID{
		Issuer: c.Params("issuer"),
		TxID:   c.Params("txId"),
	})
	if err != nil {
		return holdError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(found))
}

// GetByIndex looks a hold up by its global sequence number.
func (h *Handler) GetByIndex(c *fiber.Ctx) error {
	index, err := c.ParamsInt("index")
	if err != nil || index < 1 {
		return fiber.NewError(http.StatusBadRequest, "invalid hold index")
	}
	found, err := h.service.GetByIndex(c.UserContext(), uint64(index))
	if err != nil {
		return holdError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(found))
}

// Release frees the held funds back to the payer.
func (h *Handler) Release(c *fiber.Ctx) error {
	released, err := h.service.Release(c.UserContext(), middleware.Caller(c), ledger.HoldID{
		Issuer: c.Params("issuer"),
		TxID:   c.Params("txId"),
	})
	if err != nil {
		return holdError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(released))
}

// Execute settles the hold, moving the funds to the payee.
func (h *Handler) Execute(c *fiber.Ctx) error {
	executed, err := h.service.Execute(c.UserContext(), middleware.Caller(c), ledger.HoldID{
		Issuer: c.Params("issuer"),
		TxID:   c.Params("txId"),
	})
	if err != nil {
		return holdError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(executed))
}

// Renew extends the expiration of one of the caller's own holds.
func (h *Handler) Renew(c *fiber.Ctx) error {
	var req renewRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	renewed, err := h.service.Renew(c.UserContext(), middleware.Caller(c), c.Params("txId"),
		time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		return holdError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(renewed))
}

// Approve grants the grantee a standing privilege to hold the caller's funds.
func (h *Handler) Approve(c *fiber.Ctx) error {
	var req approvalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.Approve(c.UserContext(), middleware.Caller(c), req.Grantee); err != nil {
		return holdError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// RevokeApproval withdraws a standing hold privilege.
func (h *Handler) RevokeApproval(c *fiber.Ctx) error {
	var req approvalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.RevokeApproval(c.UserContext(), middleware.Caller(c), req.Grantee); err != nil {
		return holdError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func holdError(err error) error {
	var rejected *compliance.RejectedError
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrDuplicateID):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrHoldNotActive):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, accessctl.ErrNotAuthorized):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.As(err, &rejected):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrCreditLimitExceeded):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	default:
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
}
