package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/emledger/emledger/internal/accessctl"
	"github.com/emledger/emledger/internal/compliance"
	"github.com/emledger/emledger/internal/ledger"
)

func TestGetAggregatesAllDimensions(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewInMemory()
	svc := NewService(led, compliance.AllowAll{}, accessctl.NewMemoryRegistry())

	ledger.SeedBalance(led, "alice", 100)
	ledger.SeedOverdraftLimit(led, "alice", 50)
	if _, err := led.CreateHold(ctx, ledger.HoldInput{
		Issuer: "alice", TxID: "h1", Payer: "alice", Payee: "bob", Amount: 30,
	}); err != nil {
		t.Fatalf("hold: %v", err)
	}

	view, err := svc.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.Balance != 100 || view.OverdraftLimit != 50 || view.BalanceOnHold != 30 {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.AvailableFunds != 120 || view.NetBalance != 100 {
		t.Fatalf("derived fields wrong: %+v", view)
	}
}

func TestSetOverdraftLimitIsCreditOfficerOnly(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewInMemory()
	registry := accessctl.NewMemoryRegistry()
	svc := NewService(led, compliance.AllowAll{}, registry)

	if err := svc.SetOverdraftLimit(ctx, "mallory", "alice", 500); !errors.Is(err, accessctl.ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}

	if err := registry.GrantRole(ctx, "officer", accessctl.RoleCreditOfficer); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := svc.SetOverdraftLimit(ctx, "officer", "alice", 500); err != nil {
		t.Fatalf("set limit: %v", err)
	}

	limit, _, _ := led.OverdraftOf(ctx, "alice")
	if limit != 500 {
		t.Fatalf("expected limit 500, got %d", limit)
	}

	totals, err := svc.GetTotals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.TotalSupply != 0 || totals.TotalDrawn != 0 || totals.TotalOnHold != 0 {
		t.Fatalf("unexpected totals %+v", totals)
	}
}
