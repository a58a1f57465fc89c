package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInsufficientBalance occurs when a plain balance debit exceeds the wallet balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientFunds occurs when an operation exceeds the wallet's available funds
	// (balance plus unused overdraft capacity minus amount on hold).
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrCreditLimitExceeded occurs when an overdraft draw would push the drawn amount
	// past the wallet's unsecured credit limit.
	ErrCreditLimitExceeded = errors.New("credit limit exceeded")

	// ErrUnderflow occurs when a restore or decrease would take a counter below zero.
	ErrUnderflow = errors.New("amount underflow")

	// ErrOverflow occurs when an increase would wrap a balance or total.
	ErrOverflow = errors.New("amount overflow")

	// ErrDuplicateID indicates the (issuer, transaction id) pair is already in use.
	ErrDuplicateID = errors.New("duplicate transaction id")

	// ErrNotFound indicates no record exists for the given identity or index.
	ErrNotFound = errors.New("not found")

	// ErrHoldNotActive indicates the hold has already left the Created state.
	ErrHoldNotActive = errors.New("hold not active")
)

// HoldStatus enumerates the lifecycle states of a hold. A hold starts in
// Created and moves exactly once to one of the terminal states.
type HoldStatus string

const (
	HoldStatusCreated                 HoldStatus = "created"
	HoldStatusExecutedByNotary        HoldStatus = "executed_by_notary"
	HoldStatusExecutedByOperator      HoldStatus = "executed_by_operator"
	HoldStatusReleasedByNotary        HoldStatus = "released_by_notary"
	HoldStatusReleasedByOperator      HoldStatus = "released_by_operator"
	HoldStatusReleasedDueToExpiration HoldStatus = "released_due_to_expiration"
)

// Terminal reports whether the status is an end state.
func (s HoldStatus) Terminal() bool {
	return s != HoldStatusCreated
}

// Executed reports whether the status represents a value-moving resolution.
func (s HoldStatus) Executed() bool {
	return s == HoldStatusExecutedByNotary || s == HoldStatusExecutedByOperator
}

// NoNotary is the notary value for holds that only an operator may resolve.
const NoNotary = ""

// HoldID is the composite identity of a hold. Transaction ids are scoped per
// issuer, so the same external id may be reused by different issuers.
type HoldID struct {
	Issuer string
	TxID   string
}

// Hold is a reservation of funds against the payer pending execution or release.
type Hold struct {
	Index      uint64
	Issuer     string
	TxID       string
	Payer      string
	Payee      string
	Notary     string
	Amount     uint64
	Expires    bool
	Expiration time.Time
	Status     HoldStatus
	CreatedAt  time.Time
}

// ID returns the composite identity of the hold.
func (h Hold) ID() HoldID {
	return HoldID{Issuer: h.Issuer, TxID: h.TxID}
}

// Expired reports whether the hold's deadline has passed at the given instant.
// Holds without an expiration never expire.
func (h Hold) Expired(now time.Time) bool {
	return h.Expires && !now.Before(h.Expiration)
}

// HoldInput carries the data needed to create a hold.
type HoldInput struct {
	Issuer     string
	TxID       string
	Payer      string
	Payee      string
	Notary     string
	Amount     uint64
	Expires    bool
	Expiration time.Time
}

// Ledger is the consolidated book of balances, overdraft lines and holds.
//
// Every method is a single atomic unit of work: either all of its internal
// checks pass and the full mutation is applied, or the state is untouched.
// Implementations must serialize operations touching the same wallet so that
// an availability check and the mutation it guards never interleave with
// another operation on that wallet.
type Ledger interface {
	// Balance primitives. Increase and Decrease adjust total supply in
	// lock-step with the wallet balance (mint/burn semantics).
	BalanceOf(ctx context.Context, wallet string) (uint64, error)
	TotalSupply(ctx context.Context) (uint64, error)
	IncreaseBalance(ctx context.Context, wallet string, amount uint64) error
	DecreaseBalance(ctx context.Context, wallet string, amount uint64) error

	// Overdraft primitives.
	OverdraftOf(ctx context.Context, wallet string) (limit, drawn uint64, err error)
	SetOverdraftLimit(ctx context.Context, wallet string, limit uint64) error
	DrawFromOverdraft(ctx context.Context, wallet string, amount uint64) error
	RestoreOverdraft(ctx context.Context, wallet string, amount uint64) error
	TotalDrawn(ctx context.Context) (uint64, error)

	// Consolidated view and the only sanctioned value-movement paths.
	// AvailableFunds = balance + limit - drawn - onHold; it may be negative
	// when a credit line was lowered under an outstanding commitment.
	AvailableFunds(ctx context.Context, wallet string) (int64, error)
	NetBalanceOf(ctx context.Context, wallet string) (int64, error)
	AddFunds(ctx context.Context, wallet string, amount uint64) error
	RemoveFunds(ctx context.Context, wallet string, amount uint64) error
	Transfer(ctx context.Context, from, to string, amount uint64) error

	// Hold bookkeeping. CreateHold enforces the availability check and the
	// (issuer, tx id) uniqueness atomically with the reservation. Execute
	// variants finalize the hold and move the reserved value in one unit:
	// ExecuteHold pays the payee, ExecuteHoldOut removes the value from
	// supply (off-ledger settlement leg). Both draw on the overdraft line
	// past its current limit if the line was lowered after creation; the
	// reservation was committed capacity.
	CreateHold(ctx context.Context, input HoldInput) (Hold, error)
	FinalizeHold(ctx context.Context, id HoldID, status HoldStatus) (Hold, error)
	ExecuteHold(ctx context.Context, id HoldID, status HoldStatus) (Hold, error)
	ExecuteHoldOut(ctx context.Context, id HoldID, status HoldStatus) (Hold, error)
	RenewHold(ctx context.Context, id HoldID, expiration time.Time) (Hold, error)
	HoldByID(ctx context.Context, id HoldID) (Hold, error)
	HoldByIndex(ctx context.Context, index uint64) (Hold, error)
	BalanceOnHold(ctx context.Context, wallet string) (uint64, error)
	TotalOnHold(ctx context.Context) (uint64, error)
}
