package transfer

import (
	"context"
	"errors"
	"testing"

	"github.com/emledger/emledger/internal/accessctl"
	"github.com/emledger/emledger/internal/compliance"
	"github.com/emledger/emledger/internal/ledger"
)

func TestTransferSettlesImmediately(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewInMemory()
	svc := NewService(led, compliance.AllowAll{}, accessctl.NewMemoryRegistry(), nil)
	ledger.SeedBalance(led, "alice", 500)

	res, err := svc.Transfer(ctx, "alice", Input{To: "bob", Amount: 200})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.FromAvailable != 300 || res.ToAvailable != 200 {
		t.Fatalf("unexpected result %+v", res)
	}
}

// A transfer may dip into the payer's overdraft line; a payer with funds
// locked under a hold cannot spend them.
func TestTransferRespectsConsolidatedAvailability(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewInMemory()
	svc := NewService(led, compliance.AllowAll{}, accessctl.NewMemoryRegistry(), nil)
	ledger.SeedBalance(led, "alice", 100)
	ledger.SeedOverdraftLimit(led, "alice", 50)

	if _, err := svc.Transfer(ctx, "alice", Input{To: "bob", Amount: 130}); err != nil {
		t.Fatalf("transfer into overdraft: %v", err)
	}
	_, drawn, _ := led.OverdraftOf(ctx, "alice")
	if drawn != 30 {
		t.Fatalf("expected drawn 30, got %d", drawn)
	}

	if _, err := svc.Transfer(ctx, "alice", Input{To: "bob", Amount: 30}); !errors.Is(err, ledger.ErrCreditLimitExceeded) {
		t.Fatalf("expected credit limit exceeded, got %v", err)
	}

	if _, err := led.CreateHold(ctx, ledger.HoldInput{
		Issuer: "alice", TxID: "h1", Payer: "alice", Payee: "bob", Amount: 20,
	}); err != nil {
		t.Fatalf("hold: %v", err)
	}
	if _, err := svc.Transfer(ctx, "alice", Input{To: "bob", Amount: 1}); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds under hold, got %v", err)
	}
}

func TestTransferFromRequiresApproval(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewInMemory()
	registry := accessctl.NewMemoryRegistry()
	svc := NewService(led, compliance.AllowAll{}, registry, nil)
	ledger.SeedBalance(led, "alice", 500)

	input := Input{From: "alice", To: "bob", Amount: 100}
	if _, err := svc.TransferFrom(ctx, "carol", input); !errors.Is(err, accessctl.ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
	if err := registry.Approve(ctx, "alice", "carol", accessctl.PrivilegeTransfer); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.TransferFrom(ctx, "carol", input); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
}

func TestTransferBlockedByComplianceGate(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewInMemory()
	gate := compliance.NewListGate("alice")
	svc := NewService(led, gate, accessctl.NewMemoryRegistry(), nil)
	ledger.SeedBalance(led, "alice", 500)

	_, err := svc.Transfer(ctx, "alice", Input{To: "bob", Amount: 100})
	var rejected *compliance.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected compliance rejection, got %v", err)
	}
	balance, _ := led.BalanceOf(ctx, "alice")
	if balance != 500 {
		t.Fatalf("rejected transfer moved value: %d", balance)
	}
}
