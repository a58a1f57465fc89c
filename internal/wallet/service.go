package wallet

import (
	"context"
	"time"

	"github.com/emledger/emledger/internal/accessctl"
	"github.com/emledger/emledger/internal/compliance"
	"github.com/emledger/emledger/internal/ledger"
)

// Service exposes consolidated wallet views and the credit-officer operations.
// Wallets have no independent storage: every attribute is derived from the
// ledger, so there is nothing to create or delete.
type Service struct {
	ledger   ledger.Ledger
	gate     compliance.Gate
	registry accessctl.Registry
}

// NewService builds a wallet service instance.
func NewService(led ledger.Ledger, gate compliance.Gate, registry accessctl.Registry) *Service {
	return &Service{ledger: led, gate: gate, registry: registry}
}

// View aggregates the three balance dimensions of a wallet.
type View struct {
	Address        string
	Balance        uint64
	OverdraftLimit uint64
	DrawnOverdraft uint64
	BalanceOnHold  uint64
	NetBalance     int64
	AvailableFunds int64
	AsOf           time.Time
}

// Get assembles the consolidated view of a wallet.
func (s *Service) Get(ctx context.Context, address string) (View, error) {
	balance, err := s.ledger.BalanceOf(ctx, address)
	if err != nil {
		return View{}, err
	}
	limit, drawn, err := s.ledger.OverdraftOf(ctx, address)
	if err != nil {
		return View{}, err
	}
	onHold, err := s.ledger.BalanceOnHold(ctx, address)
	if err != nil {
		return View{}, err
	}
	net, err := s.ledger.NetBalanceOf(ctx, address)
	if err != nil {
		return View{}, err
	}
	available, err := s.ledger.AvailableFunds(ctx, address)
	if err != nil {
		return View{}, err
	}
	return View{
		Address:        address,
		Balance:        balance,
		OverdraftLimit: limit,
		DrawnOverdraft: drawn,
		BalanceOnHold:  onHold,
		NetBalance:     net,
		AvailableFunds: available,
		AsOf:           time.Now().UTC(),
	}, nil
}

// Totals reports the global supply counters.
type Totals struct {
	TotalSupply uint64
	TotalDrawn  uint64
	TotalOnHold uint64
	AsOf        time.Time
}

// GetTotals returns the global supply, drawn and on-hold totals.
func (s *Service) GetTotals(ctx context.Context) (Totals, error) {
	supply, err := s.ledger.TotalSupply(ctx)
	if err != nil {
		return Totals{}, err
	}
	drawn, err := s.ledger.TotalDrawn(ctx)
	if err != nil {
		return Totals{}, err
	}
	onHold, err := s.ledger.TotalOnHold(ctx)
	if err != nil {
		return Totals{}, err
	}
	return Totals{TotalSupply: supply, TotalDrawn: drawn, TotalOnHold: onHold, AsOf: time.Now().UTC()}, nil
}

// SetOverdraftLimit sets a wallet's unsecured credit line. Credit officer only.
func (s *Service) SetOverdraftLimit(ctx context.Context, caller, address string, limit uint64) error {
	if err := accessctl.RequireRole(ctx, s.registry, caller, accessctl.RoleCreditOfficer); err != nil {
		return err
	}
	if err := compliance.Require(ctx, s.gate, compliance.OpSetOverdraft,
		[]string{caller, address}, limit); err != nil {
		return err
	}
	return s.ledger.SetOverdraftLimit(ctx, address, limit)
}
