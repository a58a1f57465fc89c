package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/emledger/emledger/internal/ledger"
)

func TestCreateAssignsSequentialIndexes(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	first, err := repo.Create(ctx, Request{
		Kind: KindFunding, Requester: "alice", TxID: "t1", Wallet: "alice",
		Amount: 100, Status: StatusRequested,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := repo.Create(ctx, Request{
		Kind: KindFunding, Requester: "bob", TxID: "t1", Wallet: "bob",
		Amount: 50, Status: StatusRequested,
	})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if first.Index != 1 || second.Index != 2 {
		t.Fatalf("expected indexes 1 and 2, got %d and %d", first.Index, second.Index)
	}

	if _, err := repo.GetByIndex(ctx, 0); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("index 0 must not resolve, got %v", err)
	}
	got, err := repo.GetByIndex(ctx, 2)
	if err != nil {
		t.Fatalf("get by index: %v", err)
	}
	if got.Requester != "bob" {
		t.Fatalf("expected bob's request, got %+v", got)
	}
}

func TestCreateRejectsDuplicateIDPerRequester(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	req := Request{Kind: KindPayout, Requester: "alice", TxID: "t1", Wallet: "alice", Amount: 10, Status: StatusRequested}
	if _, err := repo.Create(ctx, req); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Create(ctx, req); !errors.Is(err, ledger.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}

	// Same tx id under a different requester is a distinct request.
	req.Requester = "bob"
	req.Wallet = "bob"
	if _, err := repo.Create(ctx, req); err != nil {
		t.Fatalf("create for bob: %v", err)
	}
}

func TestUpdateStatusEnforcesTransitions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	id := ID{Requester: "alice", TxID: "t1"}

	if _, err := repo.Create(ctx, Request{
		Kind: KindClearing, Requester: "alice", TxID: "t1", Wallet: "alice",
		Counterparty: "bob", Amount: 10, Status: StatusRequested,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := repo.UpdateStatus(ctx, id, []Status{StatusRequested}, StatusInProcess, "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != StatusInProcess {
		t.Fatalf("expected in_process, got %s", updated.Status)
	}

	if _, err := repo.UpdateStatus(ctx, id, []Status{StatusRequested}, StatusCancelled, ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	rejected, err := repo.UpdateStatus(ctx, id, []Status{StatusRequested, StatusInProcess}, StatusRejected, "sanctions screening")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Reason != "sanctions screening" {
		t.Fatalf("reason not recorded: %+v", rejected)
	}

	if _, err := repo.UpdateStatus(ctx, ID{Requester: "nobody", TxID: "t9"},
		[]Status{StatusRequested}, StatusCancelled, ""); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
