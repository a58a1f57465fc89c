package transfer

import (
	"context"
	"fmt"

	"github.com/emledger/emledger/internal/accessctl"
	"github.com/emledger/emledger/internal/compliance"
	"github.com/emledger/emledger/internal/ledger"
	"github.com/emledger/emledger/internal/notification"
)

// Service posts direct wallet-to-wallet transfers through the consolidated
// ledger. A transfer settles immediately; transfers that need operator
// clearing go through the clearing workflow instead.
type Service struct {
	ledger   ledger.Ledger
	gate     compliance.Gate
	registry accessctl.Registry
	notifier notification.Notifier
}

// NewService constructs a transfer service.
func NewService(led ledger.Ledger, gate compliance.Gate, registry accessctl.Registry, notifier notification.Notifier) *Service {
	return &Service{ledger: led, gate: gate, registry: registry, notifier: notifier}
}

// Input captures the data needed to move funds between wallets.
type Input struct {
	From   string
	To     string
	Amount uint64
}

// Result describes the consolidated state of both wallets after the transfer.
type Result struct {
	FromAvailable int64
	ToAvailable   int64
}

// Transfer moves funds from the caller's wallet. The debit routes through the
// consolidated ledger, so it spills into the overdraft line when the balance
// alone cannot cover it.
func (s *Service) Transfer(ctx context.Context, caller string, input Input) (Result, error) {
	input.From = caller
	return s.post(ctx, input)
}

// TransferFrom moves funds from another wallet, which requires the payer's
// standing transfer privilege.
func (s *Service) TransferFrom(ctx context.Context, caller string, input Input) (Result, error) {
	if input.From == "" {
		return Result{}, fmt.Errorf("payer is required")
	}
	if input.From != caller {
		approved, err := s.registry.IsApproved(ctx, input.From, caller, accessctl.PrivilegeTransfer)
		if err != nil {
			return Result{}, err
		}
		if !approved {
			return Result{}, accessctl.ErrNotAuthorized
		}
	}
	return s.post(ctx, input)
}

func (s *Service) post(ctx context.Context, input Input) (Result, error) {
	if input.To == "" {
		return Result{}, fmt.Errorf("payee is required")
	}
	if input.Amount == 0 {
		return Result{}, fmt.Errorf("amount must be positive")
	}
	if err := compliance.Require(ctx, s.gate, compliance.OpTransfer,
		[]string{input.From, input.To}, input.Amount); err != nil {
		return Result{}, err
	}

	if err := s.ledger.Transfer(ctx, input.From, input.To, input.Amount); err != nil {
		return Result{}, err
	}

	fromAvail, err := s.ledger.AvailableFunds(ctx, input.From)
	if err != nil {
		return Result{}, err
	}
	toAvail, err := s.ledger.AvailableFunds(ctx, input.To)
	if err != nil {
		return Result{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransfer,
			Destination: input.To,
			Body:        fmt.Sprintf("you received %d from %s", input.Amount, input.From),
		})
	}
	return Result{FromAvailable: fromAvail, ToAvailable: toAvail}, nil
}
