package workflow

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/emledger/emledger/internal/accessctl"
	"github.com/emledger/emledger/internal/compliance"
	"github.com/emledger/emledger/internal/ledger"
)

// Payload is the wire representation of a request, shared by the funding,
// payout and clearing handlers.
type Payload struct {
	Index        uint64 `json:"index"`
	Kind         string `json:"kind"`
	Requester    string `json:"requester"`
	TxID         string `json:"tx_id"`
	Wallet       string `json:"wallet"`
	Counterparty string `json:"counterparty,omitempty"`
	Amount       uint64 `json:"amount"`
	Instructions string `json:"instructions,omitempty"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
}

// PayloadFrom converts a stored request into its wire form.
func PayloadFrom(req Request) Payload {
	return Payload{
		Index:        req.Index,
		Kind:         string(req.Kind),
		Requester:    req.Requester,
		TxID:         req.TxID,
		Wallet:       req.Wallet,
		Counterparty: req.Counterparty,
		Amount:       req.Amount,
		Instructions: req.Instructions,
		Status:       string(req.Status),
		Reason:       req.Reason,
	}
}

// HTTPError maps service errors onto fiber errors with appropriate status
// codes.
func HTTPError(err error) error {
	var rejected *compliance.RejectedError
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrDuplicateID):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidState), errors.Is(err, ledger.ErrHoldNotActive):
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
