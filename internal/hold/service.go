package hold

import (
	"context"
	"fmt"
	"time"

	"github.com/emledger/emledger/internal/accessctl"
	"github.com/emledger/emledger/internal/compliance"
	"github.com/emledger/emledger/internal/ledger"
	"github.com/emledger/emledger/internal/notification"
)

// Service is the hold engine: the policy layer that drives a hold through its
// lifecycle on top of the ledger's bookkeeping primitives. Holds decouple the
// promise to pay from the payment itself, giving workflow engines a uniform
// reserve-then-resolve primitive.
type Service struct {
	ledger   ledger.Ledger
	gate     compliance.Gate
	registry accessctl.Registry
	notifier notification.Notifier
	now      func() time.Time
}

// NewService constructs a hold engine. The clock is injectable so tests can
// pin expiration arithmetic; pass nil for the wall clock.
func NewService(led ledger.Ledger, gate compliance.Gate, registry accessctl.Registry, notifier notification.Notifier, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{ledger: led, gate: gate, registry: registry, notifier: notifier, now: now}
}

// Input captures the caller-supplied data for a new hold.
type Input struct {
	TxID    string
	Payer   string
	Payee   string
	Notary  string
	Amount  uint64
	Expires bool
	TTL     time.Duration
}

func (in Input) validate() error {
	if in.TxID == "" {
		return fmt.Errorf("transaction id is required")
	}
	if in.Payer == "" || in.Payee == "" {
		return fmt.Errorf("payer and payee are required")
	}
	if in.Amount == 0 {
		return fmt.Errorf("amount must be positive")
	}
	return nil
}

// Hold places the caller's own funds on hold (issuer == payer).
func (s *Service) Hold(ctx context.Context, caller string, input Input) (ledger.Hold, error) {
	input.Payer = caller
	return s.create(ctx, caller, input)
}

// HoldFrom places another wallet's funds on hold. The payer must have granted
// the caller the standing hold privilege beforehand; there is no amount-based
// allowance to spend down.
func (s *Service) HoldFrom(ctx context.Context, caller string, input Input) (ledger.Hold, error) {
	if input.Payer == "" {
		return ledger.Hold{}, fmt.Errorf("payer is required")
	}
	if input.Payer != caller {
		approved, err := s.registry.IsApproved(ctx, input.Payer, caller, accessctl.PrivilegeHold)
		if err != nil {
			return ledger.Hold{}, err
		}
		if !approved {
			return ledger.Hold{}, accessctl.ErrNotAuthorized
		}
	}
	return s.create(ctx, caller, input)
}

func (s *Service) create(ctx context.Context, issuer string, input Input) (ledger.Hold, error) {
	if err := input.validate(); err != nil {
		return ledger.Hold{}, err
	}
	if err := compliance.Require(ctx, s.gate, compliance.OpHold,
		[]string{input.Payer, input.Payee, input.Notary}, input.Amount); err != nil {
		return ledger.Hold{}, err
	}

	var expiration time.Time
	if input.Expires {
		expiration = s.now().Add(input.TTL)
	}
	created, err := s.ledger.CreateHold(ctx, ledger.HoldInput{
		Issuer:     issuer,
		TxID:       input.TxID,
		Payer:      input.Payer,
		Payee:      input.Payee,
		Notary:     input.Notary,
		Amount:     input.Amount,
		Expires:    input.Expires,
		Expiration: expiration,
	})
	if err != nil {
		return ledger.Hold{}, err
	}

	s.notify(ctx, notification.KindHoldCreated, created.Payer,
		fmt.Sprintf("hold %d reserved %d against your wallet", created.Index, created.Amount))
	return created, nil
}

// Release resolves a hold without moving value. The operator and the hold's
// notary may release at any time; anyone may release once the hold expired.
// The payee may not: rejecting a hold is not the payee's call.
func (s *Service) Release(ctx context.Context, caller string, id ledger.HoldID) (ledger.Hold, error) {
	current, err := s.ledger.HoldByID(ctx, id)
	if err != nil {
		return ledger.Hold{}, err
	}

	var status ledger.HoldStatus
	isOperator, err := s.registry.HasRole(ctx, caller, accessctl.RoleOperator)
	if err != nil {
		return ledger.Hold{}, err
	}
	switch {
	case isOperator:
		status = ledger.HoldStatusReleasedByOperator
	case current.Notary != ledger.NoNotary && caller == current.Notary:
		status = ledger.HoldStatusReleasedByNotary
	case current.Expired(s.now()):
		status = ledger.HoldStatusReleasedDueToExpiration
	default:
		return ledger.Hold{}, accessctl.ErrNotAuthorized
	}

	// FinalizeHold re-validates the status under the ledger's lock, so a
	// racing resolution surfaces as ErrHoldNotActive rather than a double free.
	released, err := s.ledger.FinalizeHold(ctx, id, status)
	if err != nil {
		return ledger.Hold{}, err
	}

	s.notify(ctx, notification.KindHoldReleased, released.Payer,
		fmt.Sprintf("hold %d released (%s)", released.Index, released.Status))
	return released, nil
}

// Execute resolves a hold by moving the reserved amount from payer to payee.
// Only the notary or an operator may execute; expiration never widens that
// set, it only unlocks third-party release. An expired hold therefore remains
// executable by its notary until someone releases it.
func (s *Service) Execute(ctx context.Context, caller string, id ledger.HoldID) (ledger.Hold, error) {
	current, err := s.ledger.HoldByID(ctx, id)
	if err != nil {
		return ledger.Hold{}, err
	}

	var status ledger.HoldStatus
	switch {
	case current.Notary != ledger.NoNotary && caller == current.Notary:
		status = ledger.HoldStatusExecutedByNotary
	default:
		isOperator, err := s.registry.HasRole(ctx, caller, accessctl.RoleOperator)
		if err != nil {
			return ledger.Hold{}, err
		}
		if !isOperator {
			return ledger.Hold{}, accessctl.ErrNotAuthorized
		}
		status = ledger.HoldStatusExecutedByOperator
	}

	if err := compliance.Require(ctx, s.gate, compliance.OpExecuteHold,
		[]string{current.Payer, current.Payee}, current.Amount); err != nil {
		return ledger.Hold{}, err
	}

	executed, err := s.ledger.ExecuteHold(ctx, id, status)
	if err != nil {
		return ledger.Hold{}, err
	}

	s.notify(ctx, notification.KindHoldExecuted, executed.Payee,
		fmt.Sprintf("hold %d executed, you received %d", executed.Index, executed.Amount))
	return executed, nil
}

// Renew extends (or sets) a hold's expiration to now + ttl. Only the issuer
// may renew, and only while the hold is still active; an already-expired but
// unresolved hold can be revived this way.
func (s *Service) Renew(ctx context.Context, caller, txID string, ttl time.Duration) (ledger.Hold, error) {
	id := ledger.HoldID{Issuer: caller, TxID: txID}
	current, err := s.ledger.HoldByID(ctx, id)
	if err != nil {
		return ledger.Hold{}, err
	}
	oldExpiration := current.Expiration

	renewed, err := s.ledger.RenewHold(ctx, id, s.now().Add(ttl))
	if err != nil {
		return ledger.Hold{}, err
	}

	s.notify(ctx, notification.KindHoldRenewed, renewed.Payer, fmt.Sprintf(
		"hold %d renewed from %s to %s", renewed.Index,
		oldExpiration.Format(time.RFC3339), renewed.Expiration.Format(time.RFC3339)))
	return renewed, nil
}

// Get returns a hold by composite identity.
func (s *Service) Get(ctx context.Context, id ledger.HoldID) (ledger.Hold, error) {
	return s.ledger.HoldByID(ctx, id)
}

// GetByIndex returns a hold by its global index.
func (s *Service) GetByIndex(ctx context.Context, index uint64) (ledger.Hold, error) {
	return s.ledger.HoldByIndex(ctx, index)
}

// Approve grants the grantee the standing privilege to hold on the caller's
// behalf.
func (s *Service) Approve(ctx context.Context, caller, grantee string) error {
	if err := compliance.Require(ctx, s.gate, compliance.OpApprove,
		[]string{caller, grantee}, 0); err != nil {
		return err
	}
	return s.registry.Approve(ctx, caller, grantee, accessctl.PrivilegeHold)
}

// RevokeApproval withdraws a previously granted hold privilege.
func (s *Service) RevokeApproval(ctx context.Context, caller, grantee string) error {
	return s.registry.RevokeApproval(ctx, caller, grantee, accessctl.PrivilegeHold)
}

func (s *Service) notify(ctx context.Context, kind, destination, body string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{Kind: kind, Destination: destination, Body: body})
}
