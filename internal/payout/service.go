package payout

import (
	"context"
	"fmt"

	"github.com/emledger/emledger/internal/accessctl"
	"github.com/emledger/emledger/internal/compliance"
	"github.com/emledger/emledger/internal/ledger"
	"github.com/emledger/emledger/internal/notification"
	"github.com/emledger/emledger/internal/workflow"
)

// SuspenseWallet is the payee recorded on payout holds. Executing the payout
// burns the payer side instead of paying this wallet; the name only marks the
// off-ledger destination in the hold record.
const SuspenseWallet = "suspense:payout"

// holdTxID namespaces payout holds so a wallet can reuse the same external id
// for a direct hold and a payout without colliding.
func holdTxID(txID string) string {
	return "payout:" + txID
}

// Service drives payout requests: operator-mediated movement of value out of a
// wallet to an off-ledger destination. Every payout is backed 1:1 by a hold
// created atomically with the request, so the funds cannot be spent while the
// operator settles the off-ledger leg.
type Service struct {
	repo     workflow.Repository
	ledger   ledger.Ledger
	gate     compliance.Gate
	registry accessctl.Registry
	notifier notification.Notifier
}

// NewService constructs a payout workflow engine.
func NewService(repo workflow.Repository, led ledger.Ledger, gate compliance.Gate, registry accessctl.Registry, notifier notification.Notifier) *Service {
	return &Service{repo: repo, ledger: led, gate: gate, registry: registry, notifier: notifier}
}

// Input captures a payout order.
type Input struct {
	TxID         string
	Wallet       string
	Amount       uint64
	Instructions string
}

func (in Input) validate() error {
	if in.TxID == "" {
		return fmt.Errorf("transaction id is required")
	}
	if in.Amount == 0 {
		return fmt.Errorf("amount must be positive")
	}
	return nil
}

// Request opens a payout request against the caller's own wallet.
func (s *Service) Request(ctx context.Context, caller string, input Input) (workflow.Request, error) {
	input.Wallet = caller
	return s.create(ctx, caller, input)
}

// RequestFrom opens a payout request against another wallet, which requires
// the wallet owner's standing payout privilege.
func (s *Service) RequestFrom(ctx context.Context, caller string, input Input) (workflow.Request, error) {
	if input.Wallet == "" {
		return workflow.Request{}, fmt.Errorf("wallet is required")
	}
	if input.Wallet != caller {
		approved, err := s.registry.IsApproved(ctx, input.Wallet, caller, accessctl.PrivilegePayout)
		if err != nil {
			return workflow.Request{}, err
		}
		if !approved {
			return workflow.Request{}, accessctl.ErrNotAuthorized
		}
	}
	return s.create(ctx, caller, input)
}

func (s *Service) create(ctx context.Context, requester string, input Input) (workflow.Request, error) {
	if err := input.validate(); err != nil {
		return workflow.Request{}, err
	}
	if err := compliance.Require(ctx, s.gate, compliance.OpPayout,
		[]string{requester, input.Wallet}, input.Amount); err != nil {
		return workflow.Request{}, err
	}

	// The hold carries the availability check and the duplicate check for
	// this (requester, tx id), atomically with the reservation.
	hold, err := s.ledger.CreateHold(ctx, ledger.HoldInput{
		Issuer: requester,
		TxID:   holdTxID(input.TxID),
		Payer:  input.Wallet,
		Payee:  SuspenseWallet,
		Notary: ledger.NoNotary,
		Amount: input.Amount,
	})
	if err != nil {
		return workflow.Request{}, err
	}

	req, err := s.repo.Create(ctx, workflow.Request{
		Kind:         workflow.KindPayout,
		Requester:    requester,
		TxID:         input.TxID,
		Wallet:       input.Wallet,
		Amount:       input.Amount,
		Instructions: input.Instructions,
		Status:       workflow.StatusRequested,
	})
	if err != nil {
		_, _ = s.ledger.FinalizeHold(ctx, hold.ID(), ledger.HoldStatusReleasedByOperator)
		return workflow.Request{}, err
	}
	s.notifyStatus(ctx, req)
	return req, nil
}

// Cancel withdraws a request that has not entered processing, releasing the
// backing hold. Only the requester may cancel.
func (s *Service) Cancel(ctx context.Context, caller, txID string) (workflow.Request, error) {
	req, err := s.repo.UpdateStatus(ctx, workflow.ID{Requester: caller, TxID: txID},
		[]workflow.Status{workflow.StatusRequested}, workflow.StatusCancelled, "")
	if err != nil {
		return workflow.Request{}, err
	}
	if _, err := s.ledger.FinalizeHold(ctx, ledger.HoldID{Issuer: caller, TxID: holdTxID(txID)},
		ledger.HoldStatusReleasedByOperator); err != nil {
		return workflow.Request{}, err
	}
	s.notifyStatus(ctx, req)
	return req, nil
}

// Process marks a request as in-process. Operator only.
func (s *Service) Process(ctx context.Context, caller string, id workflow.ID) (workflow.Request, error) {
	if err := accessctl.RequireRole(ctx, s.registry, caller, accessctl.RoleOperator); err != nil {
		return workflow.Request{}, err
	}
	req, err := s.repo.UpdateStatus(ctx, id,
		[]workflow.Status{workflow.StatusRequested}, workflow.StatusInProcess, "")
	if err != nil {
		return workflow.Request{}, err
	}
	s.notifyStatus(ctx, req)
	return req, nil
}

// Execute settles the payout: the backing hold is executed and the reserved
// value leaves total supply, mirroring the funds paid out off-ledger.
// Operator only.
func (s *Service) Execute(ctx context.Context, caller string, id workflow.ID) (workflow.Request, error) {
	if err := accessctl.RequireRole(ctx, s.registry, caller, accessctl.RoleOperator); err != nil {
		return workflow.Request{}, err
	}
	req, err := s.repo.UpdateStatus(ctx, id,
		[]workflow.Status{workflow.StatusRequested, workflow.StatusInProcess}, workflow.StatusExecuted, "")
	if err != nil {
		return workflow.Request{}, err
	}
	if _, err := s.ledger.ExecuteHoldOut(ctx, ledger.HoldID{Issuer: id.Requester, TxID: holdTxID(id.TxID)},
		ledger.HoldStatusExecutedByOperator); err != nil {
		_, _ = s.repo.UpdateStatus(ctx, id,
			[]workflow.Status{workflow.StatusExecuted}, workflow.StatusInProcess, "")
		return workflow.Request{}, err
	}
	s.notifyStatus(ctx, req)
	return req, nil
}

// Reject closes the request and releases the backing hold. Operator only.
func (s *Service) Reject(ctx context.Context, caller string, id workflow.ID, reason string) (workflow.Request, error) {
	if err := accessctl.RequireRole(ctx, s.registry, caller, accessctl.RoleOperator); err != nil {
		return workflow.Request{}, err
	}
	req, err := s.repo.UpdateStatus(ctx, id,
		[]workflow.Status{workflow.StatusRequested, workflow.StatusInProcess}, workflow.StatusRejected, reason)
	if err != nil {
		return workflow.Request{}, err
	}
	if _, err := s.ledger.FinalizeHold(ctx, ledger.HoldID{Issuer: id.Requester, TxID: holdTxID(id.TxID)},
		ledger.HoldStatusReleasedByOperator); err != nil {
		return workflow.Request{}, err
	}
	s.notifyStatus(ctx, req)
	return req, nil
}

// Get returns a request by composite identity.
func (s *Service) Get(ctx context.Context, id workflow.ID) (workflow.Request, error) {
	return s.repo.Get(ctx, id)
}

// GetByIndex returns a request by its index.
func (s *Service) GetByIndex(ctx context.Context, index uint64) (workflow.Request, error) {
	return s.repo.GetByIndex(ctx, index)
}

// Approve grants the grantee the standing privilege to order payouts from the
// caller's wallet.
func (s *Service) Approve(ctx context.Context, caller, grantee string) error {
	if err := compliance.Require(ctx, s.gate, compliance.OpApprove, []string{caller, grantee}, 0); err != nil {
		return err
	}
	return s.registry.Approve(ctx, caller, grantee, accessctl.PrivilegePayout)
}

// RevokeApproval withdraws the standing payout privilege.
func (s *Service) RevokeApproval(ctx context.Context, caller, grantee string) error {
	return s.registry.RevokeApproval(ctx, caller, grantee, accessctl.PrivilegePayout)
}

func (s *Service) notifyStatus(ctx context.Context, req workflow.Request) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindRequestStatus,
		Destination: req.Wallet,
		Body:        fmt.Sprintf("payout request %d is %s", req.Index, req.Status),
	})
}
