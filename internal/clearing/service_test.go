package clearing

import (
	"context"
	"errors"
	"testing"

	"github.com/emledger/emledger/internal/accessctl"
	"github.com/emledger/emledger/internal/compliance"
	"github.com/emledger/emledger/internal/ledger"
	"github.com/emledger/emledger/internal/workflow"
)

func newService(t *testing.T) (*Service, ledger.Ledger) {
	t.Helper()
	led := ledger.NewInMemory()
	registry := accessctl.NewMemoryRegistry()
	if err := registry.GrantRole(context.Background(), "operator", accessctl.RoleOperator); err != nil {
		t.Fatalf("grant operator: %v", err)
	}
	ledger.SeedBalance(led, "alice", 1_000)
	svc := NewService(workflow.NewMemoryRepository(), led, compliance.AllowAll{}, registry, nil)
	return svc, led
}

func TestClearedTransferLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, led := newService(t)

	req, err := svc.Order(ctx, "alice", Input{TxID: "c1", Payee: "bob", Amount: 300})
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	if req.Counterparty != "bob" || req.Status != workflow.StatusRequested {
		t.Fatalf("unexpected request %+v", req)
	}

	// The order reserved the amount without settling it.
	onHold, _ := led.BalanceOnHold(ctx, "alice")
	bobBal, _ := led.BalanceOf(ctx, "bob")
	if onHold != 300 || bobBal != 0 {
		t.Fatalf("expected onHold=300 bob=0, got onHold=%d bob=%d", onHold, bobBal)
	}

	id := workflow.ID{Requester: "alice", TxID: "c1"}
	if _, err := svc.Process(ctx, "operator", id); err != nil {
		t.Fatalf("process: %v", err)
	}
	req, err = svc.Execute(ctx, "operator", id)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if req.Status != workflow.StatusExecuted {
		t.Fatalf("expected executed, got %q", req.Status)
	}

	aliceBal, _ := led.BalanceOf(ctx, "alice")
	bobBal, _ = led.BalanceOf(ctx, "bob")
	supply, _ := led.TotalSupply(ctx)
	if aliceBal != 700 || bobBal != 300 || supply != 1_000 {
		t.Fatalf("unexpected state: alice=%d bob=%d supply=%d", aliceBal, bobBal, supply)
	}
}

func TestClearedTransferRejectReleasesHold(t *testing.T) {
	ctx := context.Background()
	svc, led := newService(t)

	if _, err := svc.Order(ctx, "alice", Input{TxID: "c1", Payee: "bob", Amount: 300}); err != nil {
		t.Fatalf("order: %v", err)
	}
	req, err := svc.Reject(ctx, "operator", workflow.ID{Requester: "alice", TxID: "c1"}, "sanctions screen")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if req.Status != workflow.StatusRejected {
		t.Fatalf("expected rejected, got %q", req.Status)
	}

	avail, _ := led.AvailableFunds(ctx, "alice")
	bobBal, _ := led.BalanceOf(ctx, "bob")
	if avail != 1_000 || bobBal != 0 {
		t.Fatalf("reject moved value: avail=%d bob=%d", avail, bobBal)
	}
}

func TestClearedTransferCancelOnlyWhileRequested(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	if _, err := svc.Order(ctx, "alice", Input{TxID: "c1", Payee: "bob", Amount: 300}); err != nil {
		t.Fatalf("order: %v", err)
	}
	id := workflow.ID{Requester: "alice", TxID: "c1"}
	if _, err := svc.Process(ctx, "operator", id); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := svc.Cancel(ctx, "alice", "c1"); !errors.Is(err, workflow.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestOrderFromRequiresApproval(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	input := Input{TxID: "c1", Payer: "alice", Payee: "bob", Amount: 100}
	if _, err := svc.OrderFrom(ctx, "carol", input); !errors.Is(err, accessctl.ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
	if err := svc.Approve(ctx, "alice", "carol"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.OrderFrom(ctx, "carol", input); err != nil {
		t.Fatalf("order from: %v", err)
	}
}

// The insufficient-funds check happens at order time against available funds,
// so a second order racing the same capacity is rejected outright.
func TestOrderRejectsOverCommitment(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	if _, err := svc.Order(ctx, "alice", Input{TxID: "c1", Payee: "bob", Amount: 800}); err != nil {
		t.Fatalf("order: %v", err)
	}
	if _, err := svc.Order(ctx, "alice", Input{TxID: "c2", Payee: "bob", Amount: 300}); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}
