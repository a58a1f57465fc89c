package payout

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

func TestPayoutRequestReservesFunds(t *testing.T) {
	ctx := context.Background()
	svc, led := newService(t)

	if _, err := svc.Request(ctx, "alice", Input{TxID: "p1", Amount: 2_000}); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	req, err := svc.Request(ctx, "alice", Input{TxID: "p1", Amount: 400, Instructions: "IBAN DE89"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.Status != workflow.StatusRequested {
		t.Fatalf("expected requested, got %q", req.Status)
	}

	onHold, _ := led.BalanceOnHold(ctx, "alice")
	avail, _ := led.AvailableFunds(ctx, "alice")
	if onHold != 400 || avail != 600 {
		t.Fatalf("expected onHold=400 avail=600, got onHold=%d avail=%d", onHold, avail)
	}
}

func TestPayoutExecuteBurnsReservedValue(t *testing.T) {
	ctx := context.Background()
	svc, led := newService(t)

	if _, err := svc.Request(ctx, "alice", Input{TxID: "p1", Amount: 400}); err != nil {
		t.Fatalf("request: %v", err)
	}
	id := workflow.ID{Requester: "alice", TxID: "p1"}
	if _, err := svc.Process(ctx, "operator", id); err != nil {
		t.Fatalf("process: %v", err)
	}
	req, err := svc.Execute(ctx, "operator", id)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if req.Status != workflow.StatusExecuted {
		t.Fatalf("expected executed, got %q", req.Status)
	}

	balance, _ := led.BalanceOf(ctx, "alice")
	supply, _ := led.TotalSupply(ctx)
	onHold, _ := led.BalanceOnHold(ctx, "alice")
	if balance != 600 || supply != 600 || onHold != 0 {
		t.Fatalf("expected balance=600 supply=600 onHold=0, got %d/%d/%d", balance, supply, onHold)
	}
}

func TestPayoutCancelReleasesHold(t *testing.T) {
	ctx := context.Background()
	svc, led := newService(t)

	if _, err := svc.Request(ctx, "alice", Input{TxID: "p1", Amount: 400}); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := svc.Cancel(ctx, "alice", "p1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	onHold, _ := led.BalanceOnHold(ctx, "alice")
	balance, _ := led.BalanceOf(ctx, "alice")
	if onHold != 0 || balance != 1_000 {
		t.Fatalf("cancel left state dirty: onHold=%d balance=%d", onHold, balance)
	}

	// After clearing the terminal record, the hold stays terminal too.
	if _, err := svc.Execute(ctx, "operator", workflow.ID{Requester: "alice", TxID: "p1"}); !errors.Is(err, workflow.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestPayoutRejectReleasesHold(t *testing.T) {
	ctx := context.Background()
	svc, led := newService(t)

	if _, err := svc.Request(ctx, "alice", Input{TxID: "p1", Amount: 400}); err != nil {
		t.Fatalf("request: %v", err)
	}
	req, err := svc.Reject(ctx, "operator", workflow.ID{Requester: "alice", TxID: "p1"}, "no matching settlement")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if req.Status != workflow.StatusRejected || req.Reason != "no matching settlement" {
		t.Fatalf("unexpected request %+v", req)
	}

	avail, _ := led.AvailableFunds(ctx, "alice")
	if avail != 1_000 {
		t.Fatalf("expected available restored to 1000, got %d", avail)
	}
}

func TestPayoutRequestFromRequiresApproval(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	input := Input{TxID: "p1", Wallet: "alice", Amount: 100}
	if _, err := svc.RequestFrom(ctx, "carol", input); !errors.Is(err, accessctl.ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
	if err := svc.Approve(ctx, "alice", "carol"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.RequestFrom(ctx, "carol", input); err != nil {
		t.Fatalf("request from: %v", err)
	}
}

// A direct hold and a payout may share the same external id because the hold
// ids are namespaced per workflow.
func TestPayoutHoldIDsDoNotCollideWithDirectHolds(t *testing.T) {
	ctx := context.Background()
	svc, led := newService(t)

	if _, err := led.CreateHold(ctx, ledger.HoldInput{
		Issuer: "alice", TxID: "x1", Payer: "alice", Payee: "bob", Amount: 100,
	}); err != nil {
		t.Fatalf("direct hold: %v", err)
	}
	if _, err := svc.Request(ctx, "alice", Input{TxID: "x1", Amount: 100}); err != nil {
		t.Fatalf("payout with same external id: %v", err)
	}

	onHold, _ := led.BalanceOnHold(ctx, "alice")
	if onHold != 200 {
		t.Fatalf("expected 200 on hold, got %d", onHold)
	}
}
