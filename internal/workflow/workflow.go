package workflow

import (
	"context"
	"errors"
)

// ErrInvalidState indicates a transition attempted against a request that is
// not in the required status.
var ErrInvalidState = errors.New("invalid request state")

// Kind discriminates the workflow families that share the request store.
type Kind string

const (
	KindFunding  Kind = "funding"
	KindPayout   Kind = "payout"
	KindClearing Kind = "clearing"
)

// Status enumerates the lifecycle of a workflow request.
type Status string

const (
	StatusRequested Status = "requested"
	StatusInProcess Status = "in_process"
	StatusExecuted  Status = "executed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusExecuted || s == StatusRejected || s == StatusCancelled
}

// ID is the composite identity of a request: transaction ids are scoped per
// requester, so distinct requesters may reuse the same external id.
type ID struct {
	Requester string
	TxID      string
}

// Request is a workflow record. Records are append-only: closed requests stay
// in the store for audit, identified by a monotonically increasing index
// starting at 1 (0 means "does not exist").
type Request struct {
	Index        uint64
	Kind         Kind
	Requester    string
	TxID         string
	Wallet       string
	Counterparty string
	Amount       uint64
	Instructions string
	Status       Status
	Reason       string
}

// Repository persists workflow requests of a single kind.
type Repository interface {
	Create(ctx context.Context, req Request) (Request, error)
	Get(ctx context.Context, id ID) (Request, error)
	GetByIndex(ctx context.Context, index uint64) (Request, error)
	// UpdateStatus transitions a request whose current status is one of the
	// given set; it fails with ErrInvalidState otherwise.
	UpdateStatus(ctx context.Context, id ID, from []Status, to Status, reason string) (Request, error)
}
