package clearing

import (
	"context"
	"fmt"

	"github.com/emledger/emledger/internal/accessctl"
	"github.com/emledger/emledger/internal/compliance"
	"github.com/emledger/emledger/internal/ledger"
	"github.com/emledger/emledger/internal/notification"
	"github.com/emledger/emledger/internal/workflow"
)

// holdTxID namespaces clearing holds alongside direct holds and payouts.
func holdTxID(txID string) string {
	return "clearing:" + txID
}

// Service drives cleared transfers: wallet-to-wallet transfers that pass
// through operator clearing instead of settling immediately. The order places
// the amount on hold against the payer; clearing resolves the hold either by
// executing it to the payee or by releasing it back.
type Service struct {
	repo     workflow.Repository
	ledger   ledger.Ledger
	gate     compliance.Gate
	registry accessctl.Registry
	notifier notification.Notifier
}

// NewService constructs a cleared-transfer workflow engine.
func NewService(repo workflow.Repository, led ledger.Ledger, gate compliance.Gate, registry accessctl.Registry, notifier notification.Notifier) *Service {
	return &Service{repo: repo, ledger: led, gate: gate, registry: registry, notifier: notifier}
}

// Input captures a cleared-transfer order.
type Input struct {
	TxID         string
	Payer        string
	Payee        string
	Amount       uint64
	Instructions string
}

func (in Input) validate() error {
	if in.TxID == "" {
		return fmt.Errorf("transaction id is required")
	}
	if in.Payee == "" {
		return fmt.Errorf("payee is required")
	}
	if in.Amount == 0 {
		return fmt.Errorf("amount must be positive")
	}
	return nil
}

// Order opens a cleared transfer from the caller's own wallet.
func (s *Service) Order(ctx context.Context, caller string, input Input) (workflow.Request, error) {
	input.Payer = caller
	return s.create(ctx, caller, input)
}

// OrderFrom opens a cleared transfer from another wallet, which requires the
// payer's standing transfer privilege.
func (s *Service) OrderFrom(ctx context.Context, caller string, input Input) (workflow.Request, error) {
	if input.Payer == "" {
		return workflow.Request{}, fmt.Errorf("payer is required")
	}
	if input.Payer != caller {
		approved, err := s.registry.IsApproved(ctx, input.Payer, caller, accessctl.PrivilegeTransfer)
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
	if err := compliance.Require(ctx, s.gate, compliance.OpClearing,
		[]string{requester, input.Payer, input.Payee}, input.Amount); err != nil {
		return workflow.Request{}, err
	}

	hold, err := s.ledger.CreateHold(ctx, ledger.HoldInput{
		Issuer: requester,
		TxID:   holdTxID(input.TxID),
		Payer:  input.Payer,
		Payee:  input.Payee,
		Notary: ledger.NoNotary,
		Amount: input.Amount,
	})
	if err != nil {
		return workflow.Request{}, err
	}

	req, err := s.repo.Create(ctx, workflow.Request{
		Kind:         workflow.KindClearing,
		Requester:    requester,
		TxID:         input.TxID,
		Wallet:       input.Payer,
		Counterparty: input.Payee,
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

// Cancel withdraws an order that has not entered clearing, releasing the
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

// Process marks an order as in-process. Operator only.
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

// Execute clears the transfer: the backing hold is executed, moving the
// reserved amount from payer to payee. Operator only.
func (s *Service) Execute(ctx context.Context, caller string, id workflow.ID) (workflow.Request, error) {
	if err := accessctl.RequireRole(ctx, s.registry, caller, accessctl.RoleOperator); err != nil {
		return workflow.Request{}, err
	}
	req, err := s.repo.UpdateStatus(ctx, id,
		[]workflow.Status{workflow.StatusRequested, workflow.StatusInProcess}, workflow.StatusExecuted, "")
	if err != nil {
		return workflow.Request{}, err
	}
	if _, err := s.ledger.ExecuteHold(ctx, ledger.HoldID{Issuer: id.Requester, TxID: holdTxID(id.TxID)},
		ledger.HoldStatusExecutedByOperator); err != nil {
		_, _ = s.repo.UpdateStatus(ctx, id,
			[]workflow.Status{workflow.StatusExecuted}, workflow.StatusInProcess, "")
		return workflow.Request{}, err
	}
	s.notifyStatus(ctx, req)
	return req, nil
}

// Reject refuses the transfer and releases the backing hold. Operator only.
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

// Get returns an order by composite identity.
func (s *Service) Get(ctx context.Context, id workflow.ID) (workflow.Request, error) {
	return s.repo.Get(ctx, id)
}

// GetByIndex returns an order by its index.
func (s *Service) GetByIndex(ctx context.Context, index uint64) (workflow.Request, error) {
	return s.repo.GetByIndex(ctx, index)
}

// Approve grants the grantee the standing privilege to order cleared
// transfers from the caller's wallet.
func (s *Service) Approve(ctx context.Context, caller, grantee string) error {
	if err := compliance.Require(ctx, s.gate, compliance.OpApprove, []string{caller, grantee}, 0); err != nil {
		return err
	}
	return s.registry.Approve(ctx, caller, grantee, accessctl.PrivilegeTransfer)
}

// RevokeApproval withdraws the standing transfer privilege.
func (s *Service) RevokeApproval(ctx context.Context, caller, grantee string) error {
	return s.registry.RevokeApproval(ctx, caller, grantee, accessctl.PrivilegeTransfer)
}

func (s *Service) notifyStatus(ctx context.Context, req workflow.Request) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindRequestStatus,
		Destination: req.Counterparty,
		Body:        fmt.Sprintf("cleared transfer %d is %s", req.Index, req.Status),
	})
}
