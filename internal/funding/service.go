package funding

import (
	"context"
	"fmt"

	"github.com/emledger/emledger/internal/accessctl"
	"github.com/emledger/emledger/internal/compliance"
	"github.com/emledger/emledger/internal/ledger"
	"github.com/emledger/emledger/internal/notification"
	"github.com/emledger/emledger/internal/workflow"
)

// Service drives funding requests: operator-mediated movement of value from an
// off-ledger source into a wallet. Funding moves value toward the wallet, so
// unlike payouts and cleared transfers it is not backed by a hold; nothing
// needs reserving on the receiving side.
type Service struct {
	repo     workflow.Repository
	ledger   ledger.Ledger
	gate     compliance.Gate
	registry accessctl.Registry
	notifier notification.Notifier
}

// NewService constructs a funding workflow engine.
func NewService(repo workflow.Repository, led ledger.Ledger, gate compliance.Gate, registry accessctl.Registry, notifier notification.Notifier) *Service {
	return &Service{repo: repo, ledger: led, gate: gate, registry: registry, notifier: notifier}
}

// Input captures a funding order. Instructions are free text interpreted by
// the operator off-ledger (e.g. a bank transfer reference).
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

// Request opens a funding request for the caller's own wallet.
func (s *Service) Request(ctx context.Context, caller string, input Input) (workflow.Request, error) {
	input.Wallet = caller
	return s.create(ctx, caller, input)
}

// RequestFrom opens a funding request for another wallet. The wallet owner
// must have granted the caller the standing funding privilege.
func (s *Service) RequestFrom(ctx context.Context, caller string, input Input) (workflow.Request, error) {
	if input.Wallet == "" {
		return workflow.Request{}, fmt.Errorf("wallet is required")
	}
	if input.Wallet != caller {
		approved, err := s.registry.IsApproved(ctx, input.Wallet, caller, accessctl.PrivilegeFunding)
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
	if err := compliance.Require(ctx, s.gate, compliance.OpFunding,
		[]string{requester, input.Wallet}, input.Amount); err != nil {
		return workflow.Request{}, err
	}

	req, err := s.repo.Create(ctx, workflow.Request{
		Kind:         workflow.KindFunding,
		Requester:    requester,
		TxID:         input.TxID,
		Wallet:       input.Wallet,
		Amount:       input.Amount,
		Instructions: input.Instructions,
		Status:       workflow.StatusRequested,
	})
	if err != nil {
		return workflow.Request{}, err
	}
	s.notifyStatus(ctx, req)
	return req, nil
}

// Cancel withdraws a request that has not yet entered processing. Only the
// requester may cancel.
func (s *Service) Cancel(ctx context.Context, caller, txID string) (workflow.Request, error) {
	req, err := s.repo.UpdateStatus(ctx, workflow.ID{Requester: caller, TxID: txID},
		[]workflow.Status{workflow.StatusRequested}, workflow.StatusCancelled, "")
	if err != nil {
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

// Execute settles the request: the off-ledger leg has completed and the
// on-ledger value is created. Funds pay down any drawn overdraft before
// crediting the balance. Operator only.
func (s *Service) Execute(ctx context.Context, caller string, id workflow.ID) (workflow.Request, error) {
	if err := accessctl.RequireRole(ctx, s.registry, caller, accessctl.RoleOperator); err != nil {
		return workflow.Request{}, err
	}
	req, err := s.repo.UpdateStatus(ctx, id,
		[]workflow.Status{workflow.StatusRequested, workflow.StatusInProcess}, workflow.StatusExecuted, "")
	if err != nil {
		return workflow.Request{}, err
	}
	if err := s.ledger.AddFunds(ctx, req.Wallet, req.Amount); err != nil {
		// Put the record back so the operator can retry after fixing the cause.
		_, _ = s.repo.UpdateStatus(ctx, id,
			[]workflow.Status{workflow.StatusExecuted}, workflow.StatusInProcess, "")
		return workflow.Request{}, err
	}
	s.notifyStatus(ctx, req)
	return req, nil
}

// Reject closes the request without moving value. Operator only.
func (s *Service) Reject(ctx context.Context, caller string, id workflow.ID, reason string) (workflow.Request, error) {
	if err := accessctl.RequireRole(ctx, s.registry, caller, accessctl.RoleOperator); err != nil {
		return workflow.Request{}, err
	}
	req, err := s.repo.UpdateStatus(ctx, id,
		[]workflow.Status{workflow.StatusRequested, workflow.StatusInProcess}, workflow.StatusRejected, reason)
	if err != nil {
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

// Approve grants the grantee the standing privilege to order funding for the
// caller's wallet.
func (s *Service) Approve(ctx context.Context, caller, grantee string) error {
	if err := compliance.Require(ctx, s.gate, compliance.OpApprove, []string{caller, grantee}, 0); err != nil {
		return err
	}
	return s.registry.Approve(ctx, caller, grantee, accessctl.PrivilegeFunding)
}

// RevokeApproval withdraws the standing funding privilege.
func (s *Service) RevokeApproval(ctx context.Context, caller, grantee string) error {
	return s.registry.RevokeApproval(ctx, caller, grantee, accessctl.PrivilegeFunding)
}

func (s *Service) notifyStatus(ctx context.Context, req workflow.Request) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindRequestStatus,
		Destination: req.Wallet,
		Body:        fmt.Sprintf("funding request %d is %s", req.Index, req.Status),
	})
}
