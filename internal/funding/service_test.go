package funding

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
	svc := NewService(workflow.NewMemoryRepository(), led, compliance.AllowAll{}, registry, nil)
	return svc, led
}

func TestFundingLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, led := newService(t)

	req, err := svc.Request(ctx, "alice", Input{TxID: "f1", Amount: 500, Instructions: "wire ref 42"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.Status != workflow.StatusRequested || req.Index != 1 {
		t.Fatalf("unexpected request %+v", req)
	}

	id := workflow.ID{Requester: "alice", TxID: "f1"}
	if _, err := svc.Process(ctx, "mallory", id); !errors.Is(err, accessctl.ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
	if _, err := svc.Process(ctx, "operator", id); err != nil {
		t.Fatalf("process: %v", err)
	}

	// In-process requests can no longer be cancelled by the requester.
	if _, err := svc.Cancel(ctx, "alice", "f1"); !errors.Is(err, workflow.ErrInvalidState) {
		t.Fatalf("expected invalid state on cancel, got %v", err)
	}

	req, err = svc.Execute(ctx, "operator", id)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if req.Status != workflow.StatusExecuted {
		t.Fatalf("expected executed, got %q", req.Status)
	}

	balance, _ := led.BalanceOf(ctx, "alice")
	supply, _ := led.TotalSupply(ctx)
	if balance != 500 || supply != 500 {
		t.Fatalf("expected balance and supply 500, got %d/%d", balance, supply)
	}

	if _, err := svc.Execute(ctx, "operator", id); !errors.Is(err, workflow.ErrInvalidState) {
		t.Fatalf("expected invalid state on re-execute, got %v", err)
	}
}

// Executing a funding request pays down the wallet's drawn overdraft before
// crediting the balance.
func TestFundingExecutePaysDownOverdraft(t *testing.T) {
	ctx := context.Background()
	svc, led := newService(t)

	ledger.SeedOverdraftLimit(led, "alice", 100)
	if err := led.RemoveFunds(ctx, "alice", 60); err != nil {
		t.Fatalf("draw overdraft: %v", err)
	}

	if _, err := svc.Request(ctx, "alice", Input{TxID: "f1", Amount: 100}); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := svc.Execute(ctx, "operator", workflow.ID{Requester: "alice", TxID: "f1"}); err != nil {
		t.Fatalf("execute: %v", err)
	}

	balance, _ := led.BalanceOf(ctx, "alice")
	_, drawn, _ := led.OverdraftOf(ctx, "alice")
	if balance != 40 || drawn != 0 {
		t.Fatalf("expected balance=40 drawn=0, got balance=%d drawn=%d", balance, drawn)
	}
}

func TestFundingCancelAndReject(t *testing.T) {
	ctx := context.Background()
	svc, led := newService(t)

	if _, err := svc.Request(ctx, "alice", Input{TxID: "f1", Amount: 100}); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := svc.Cancel(ctx, "bob", "f1"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("cancel is scoped to the requester, got %v", err)
	}
	req, err := svc.Cancel(ctx, "alice", "f1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if req.Status != workflow.StatusCancelled {
		t.Fatalf("expected cancelled, got %q", req.Status)
	}

	if _, err := svc.Request(ctx, "alice", Input{TxID: "f2", Amount: 100}); err != nil {
		t.Fatalf("request: %v", err)
	}
	req, err = svc.Reject(ctx, "operator", workflow.ID{Requester: "alice", TxID: "f2"}, "source account mismatch")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if req.Status != workflow.StatusRejected || req.Reason != "source account mismatch" {
		t.Fatalf("unexpected request %+v", req)
	}

	supply, _ := led.TotalSupply(ctx)
	if supply != 0 {
		t.Fatalf("cancelled/rejected funding minted value: supply=%d", supply)
	}

	// The same tx id cannot be reopened even after a terminal status.
	if _, err := svc.Request(ctx, "alice", Input{TxID: "f1", Amount: 100}); !errors.Is(err, ledger.ErrDuplicateID) {
		t.Fatalf("expected duplicate id, got %v", err)
	}
}

func TestFundingRequestFromRequiresApproval(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	input := Input{TxID: "f1", Wallet: "alice", Amount: 100}
	if _, err := svc.RequestFrom(ctx, "carol", input); !errors.Is(err, accessctl.ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
	if err := svc.Approve(ctx, "alice", "carol"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	req, err := svc.RequestFrom(ctx, "carol", input)
	if err != nil {
		t.Fatalf("request from: %v", err)
	}
	if req.Requester != "carol" || req.Wallet != "alice" {
		t.Fatalf("unexpected request %+v", req)
	}
}
