package ledger

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIncreaseDecreaseBalanceTracksSupply(t *testing.T) {
	ctx := context.Background()
	led := NewInMemory()

	if err := led.IncreaseBalance(ctx, "alice", 1_000); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if err := led.IncreaseBalance(ctx, "bob", 500); err != nil {
		t.Fatalf("increase: %v", err)
	}

	supply, err := led.TotalSupply(ctx)
	if err != nil {
		t.Fatalf("total supply: %v", err)
	}
	if supply != 1_500 {
		t.Fatalf("expected supply 1500, got %d", supply)
	}

	if err := led.DecreaseBalance(ctx, "alice", 400); err != nil {
		t.Fatalf("decrease: %v", err)
	}
	if err := led.DecreaseBalance(ctx, "alice", 700); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	supply, _ = led.TotalSupply(ctx)
	if supply != 1_100 {
		t.Fatalf("expected supply 1100 after burn, got %d", supply)
	}
}

func TestOverdraftDrawAndRestore(t *testing.T) {
	ctx := context.Background()
	led := NewInMemory()

	if err := led.SetOverdraftLimit(ctx, "alice", 100); err != nil {
		t.Fatalf("set limit: %v", err)
	}
	if err := led.DrawFromOverdraft(ctx, "alice", 60); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if err := led.DrawFromOverdraft(ctx, "alice", 50); !errors.Is(err, ErrCreditLimitExceeded) {
		t.Fatalf("expected credit limit exceeded, got %v", err)
	}
	if err := led.RestoreOverdraft(ctx, "alice", 70); !errors.Is(err, ErrUnderflow) {
		t.Fatalf("expected underflow, got %v", err)
	}
	if err := led.RestoreOverdraft(ctx, "alice", 60); err != nil {
		t.Fatalf("restore: %v", err)
	}

	total, _ := led.TotalDrawn(ctx)
	if total != 0 {
		t.Fatalf("expected total drawn 0, got %d", total)
	}
}

// Scenario: balance=100, limit=50. Removing 130 spills 30 into the overdraft;
// removing 30 more would need drawn=60 over a 50 limit.
func TestRemoveFundsSpillsIntoOverdraft(t *testing.T) {
	ctx := context.Background()
	led := NewInMemory()
	SeedBalance(led, "w", 100)
	SeedOverdraftLimit(led, "w", 50)

	if err := led.RemoveFunds(ctx, "w", 130); err != nil {
		t.Fatalf("remove funds: %v", err)
	}
	balance, _ := led.BalanceOf(ctx, "w")
	_, drawn, _ := led.OverdraftOf(ctx, "w")
	if balance != 0 || drawn != 30 {
		t.Fatalf("expected balance=0 drawn=30, got balance=%d drawn=%d", balance, drawn)
	}

	if err := led.RemoveFunds(ctx, "w", 30); !errors.Is(err, ErrCreditLimitExceeded) {
		t.Fatalf("expected credit limit exceeded, got %v", err)
	}

	// Nothing moved on the failed call.
	balance, _ = led.BalanceOf(ctx, "w")
	_, drawn, _ = led.OverdraftOf(ctx, "w")
	if balance != 0 || drawn != 30 {
		t.Fatalf("failed call mutated state: balance=%d drawn=%d", balance, drawn)
	}
}

func TestAddFundsPaysDownOverdraftFirst(t *testing.T) {
	ctx := context.Background()
	led := NewInMemory()
	SeedBalance(led, "w", 100)
	SeedOverdraftLimit(led, "w", 50)

	if err := led.RemoveFunds(ctx, "w", 130); err != nil {
		t.Fatalf("remove funds: %v", err)
	}
	if err := led.AddFunds(ctx, "w", 50); err != nil {
		t.Fatalf("add funds: %v", err)
	}

	balance, _ := led.BalanceOf(ctx, "w")
	_, drawn, _ := led.OverdraftOf(ctx, "w")
	if balance != 20 || drawn != 0 {
		t.Fatalf("expected balance=20 drawn=0, got balance=%d drawn=%d", balance, drawn)
	}
}

// The remove/add round trip restores balance and drawn overdraft exactly, and
// a wallet in credit never has drawn overdraft at any step.
func TestRemoveAddRoundTrip(t *testing.T) {
	ctx := context.Background()

	for _, amount := range []uint64{1, 99, 100, 101, 150} {
		led := NewInMemory()
		SeedBalance(led, "w", 100)
		SeedOverdraftLimit(led, "w", 50)

		if err := led.RemoveFunds(ctx, "w", amount); err != nil {
			t.Fatalf("remove %d: %v", amount, err)
		}
		assertSolvencyExclusive(t, led, "w")
		if err := led.AddFunds(ctx, "w", amount); err != nil {
			t.Fatalf("add %d: %v", amount, err)
		}
		assertSolvencyExclusive(t, led, "w")

		balance, _ := led.BalanceOf(ctx, "w")
		_, drawn, _ := led.OverdraftOf(ctx, "w")
		if balance != 100 || drawn != 0 {
			t.Fatalf("round trip of %d: balance=%d drawn=%d", amount, balance, drawn)
		}
	}
}

func TestNetBalanceSignedView(t *testing.T) {
	ctx := context.Background()
	led := NewInMemory()
	SeedBalance(led, "w", 10)
	SeedOverdraftLimit(led, "w", 100)

	net, _ := led.NetBalanceOf(ctx, "w")
	if net != 10 {
		t.Fatalf("expected net 10, got %d", net)
	}

	if err := led.RemoveFunds(ctx, "w", 40); err != nil {
		t.Fatalf("remove funds: %v", err)
	}
	net, _ = led.NetBalanceOf(ctx, "w")
	if net != -30 {
		t.Fatalf("expected net -30, got %d", net)
	}
}

func TestTransferMovesValueAndConservesSupply(t *testing.T) {
	ctx := context.Background()
	led := NewInMemory()
	SeedBalance(led, "alice", 300)

	if err := led.Transfer(ctx, "alice", "bob", 120); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	aliceBal, _ := led.BalanceOf(ctx, "alice")
	bobBal, _ := led.BalanceOf(ctx, "bob")
	supply, _ := led.TotalSupply(ctx)
	if aliceBal != 180 || bobBal != 120 || supply != 300 {
		t.Fatalf("unexpected state: alice=%d bob=%d supply=%d", aliceBal, bobBal, supply)
	}

	if err := led.Transfer(ctx, "alice", "bob", 500); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

// Scenario: a hold for the full available amount pins availability to zero, so
// any further debit against the payer fails.
func TestHoldPinsAvailableFunds(t *testing.T) {
	ctx := context.Background()
	led := NewInMemory()
	SeedBalance(led, "a", 40)

	hold, err := led.CreateHold(ctx, HoldInput{
		Issuer: "a", TxID: "h1", Payer: "a", Payee: "b", Notary: "n", Amount: 40,
	})
	if err != nil {
		t.Fatalf("create hold: %v", err)
	}
	if hold.Index != 1 {
		t.Fatalf("expected first hold index 1, got %d", hold.Index)
	}

	onHold, _ := led.BalanceOnHold(ctx, "a")
	if onHold != 40 {
		t.Fatalf("expected 40 on hold, got %d", onHold)
	}
	avail, _ := led.AvailableFunds(ctx, "a")
	if avail != 0 {
		t.Fatalf("expected available 0, got %d", avail)
	}

	if err := led.RemoveFunds(ctx, "a", 1); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if _, err := led.CreateHold(ctx, HoldInput{
		Issuer: "a", TxID: "h2", Payer: "a", Payee: "b", Amount: 1,
	}); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds for second hold, got %v", err)
	}
}

func TestCreateHoldRejectsDuplicateIDPerIssuer(t *testing.T) {
	ctx := context.Background()
	led := NewInMemory()
	SeedBalance(led, "a", 100)
	SeedBalance(led, "c", 100)

	if _, err := led.CreateHold(ctx, HoldInput{Issuer: "a", TxID: "tx", Payer: "a", Payee: "b", Amount: 10}); err != nil {
		t.Fatalf("create hold: %v", err)
	}
	if _, err := led.CreateHold(ctx, HoldInput{Issuer: "a", TxID: "tx", Payer: "a", Payee: "b", Amount: 10}); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected duplicate id, got %v", err)
	}
	// Same external id under a different issuer is a distinct hold.
	if _, err := led.CreateHold(ctx, HoldInput{Issuer: "c", TxID: "tx", Payer: "c", Payee: "b", Amount: 10}); err != nil {
		t.Fatalf("create hold for second issuer: %v", err)
	}
}

func TestFinalizeHoldOnlyOnce(t *testing.T) {
	ctx := context.Background()
	led := NewInMemory()
	SeedBalance(led, "a", 100)

	id := HoldID{Issuer: "a", TxID: "tx"}
	if _, err := led.CreateHold(ctx, HoldInput{Issuer: "a", TxID: "tx", Payer: "a", Payee: "b", Amount: 30}); err != nil {
		t.Fatalf("create hold: %v", err)
	}

	if _, err := led.FinalizeHold(ctx, id, HoldStatusReleasedByOperator); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := led.FinalizeHold(ctx, id, HoldStatusReleasedByOperator); !errors.Is(err, ErrHoldNotActive) {
		t.Fatalf("expected hold not active, got %v", err)
	}

	onHold, _ := led.BalanceOnHold(ctx, "a")
	totalOnHold, _ := led.TotalOnHold(ctx)
	if onHold != 0 || totalOnHold != 0 {
		t.Fatalf("release did not free reservation: onHold=%d total=%d", onHold, totalOnHold)
	}
	balance, _ := led.BalanceOf(ctx, "a")
	if balance != 100 {
		t.Fatalf("release moved value: balance=%d", balance)
	}
}

func TestExecuteHoldMovesValue(t *testing.T) {
	ctx := context.Background()
	led := NewInMemory()
	SeedBalance(led, "a", 100)

	id := HoldID{Issuer: "a", TxID: "tx"}
	if _, err := led.CreateHold(ctx, HoldInput{Issuer: "a", TxID: "tx", Payer: "a", Payee: "b", Notary: "n", Amount: 60}); err != nil {
		t.Fatalf("create hold: %v", err)
	}

	hold, err := led.ExecuteHold(ctx, id, HoldStatusExecutedByNotary)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if hold.Status != HoldStatusExecutedByNotary {
		t.Fatalf("unexpected status %q", hold.Status)
	}

	aliceBal, _ := led.BalanceOf(ctx, "a")
	bobBal, _ := led.BalanceOf(ctx, "b")
	supply, _ := led.TotalSupply(ctx)
	onHold, _ := led.BalanceOnHold(ctx, "a")
	if aliceBal != 40 || bobBal != 60 || supply != 100 || onHold != 0 {
		t.Fatalf("unexpected state: a=%d b=%d supply=%d onHold=%d", aliceBal, bobBal, supply, onHold)
	}

	if _, err := led.ExecuteHold(ctx, id, HoldStatusExecutedByNotary); !errors.Is(err, ErrHoldNotActive) {
		t.Fatalf("expected hold not active on re-execute, got %v", err)
	}
}

// A hold stays executable even after the payer's credit line was cut below the
// committed amount; the reservation was committed capacity at creation time.
func TestExecuteHoldSurvivesLoweredCreditLine(t *testing.T) {
	ctx := context.Background()
	led := NewInMemory()
	SeedOverdraftLimit(led, "a", 50)

	id := HoldID{Issuer: "a", TxID: "tx"}
	if _, err := led.CreateHold(ctx, HoldInput{Issuer: "a", TxID: "tx", Payer: "a", Payee: "b", Notary: "n", Amount: 40}); err != nil {
		t.Fatalf("create hold: %v", err)
	}
	if err := led.SetOverdraftLimit(ctx, "a", 10); err != nil {
		t.Fatalf("lower limit: %v", err)
	}

	if _, err := led.ExecuteHold(ctx, id, HoldStatusExecutedByOperator); err != nil {
		t.Fatalf("execute past lowered limit: %v", err)
	}
	_, drawn, _ := led.OverdraftOf(ctx, "a")
	if drawn != 40 {
		t.Fatalf("expected drawn 40, got %d", drawn)
	}
}

func TestExecuteHoldOutBurnsPayerSide(t *testing.T) {
	ctx := context.Background()
	led := NewInMemory()
	SeedBalance(led, "a", 100)

	id := HoldID{Issuer: "a", TxID: "po"}
	if _, err := led.CreateHold(ctx, HoldInput{Issuer: "a", TxID: "po", Payer: "a", Payee: "suspense", Amount: 25}); err != nil {
		t.Fatalf("create hold: %v", err)
	}
	if _, err := led.ExecuteHoldOut(ctx, id, HoldStatusExecutedByOperator); err != nil {
		t.Fatalf("execute out: %v", err)
	}

	supply, _ := led.TotalSupply(ctx)
	balance, _ := led.BalanceOf(ctx, "a")
	if supply != 75 || balance != 75 {
		t.Fatalf("expected supply=75 balance=75, got supply=%d balance=%d", supply, balance)
	}
}

func TestRenewHoldUpdatesExpirationOnly(t *testing.T) {
	ctx := context.Background()
	led := NewInMemory()
	SeedBalance(led, "a", 100)

	id := HoldID{Issuer: "a", TxID: "tx"}
	expiry := time.Now().UTC().Add(-time.Minute)
	if _, err := led.CreateHold(ctx, HoldInput{
		Issuer: "a", TxID: "tx", Payer: "a", Payee: "b", Amount: 10, Expires: true, Expiration: expiry,
	}); err != nil {
		t.Fatalf("create hold: %v", err)
	}

	newExpiry := time.Now().UTC().Add(time.Hour)
	hold, err := led.RenewHold(ctx, id, newExpiry)
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if hold.Status != HoldStatusCreated {
		t.Fatalf("renew changed status to %q", hold.Status)
	}
	if !hold.Expiration.Equal(newExpiry) {
		t.Fatalf("expected expiration %v, got %v", newExpiry, hold.Expiration)
	}

	if _, err := led.FinalizeHold(ctx, id, HoldStatusReleasedByOperator); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := led.RenewHold(ctx, id, newExpiry.Add(time.Hour)); !errors.Is(err, ErrHoldNotActive) {
		t.Fatalf("expected hold not active on renewing terminal hold, got %v", err)
	}
}

func TestHoldLookupByIndex(t *testing.T) {
	ctx := context.Background()
	led := NewInMemory()
	SeedBalance(led, "a", 100)

	if _, err := led.HoldByIndex(ctx, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("index 0 should be the not-found sentinel, got %v", err)
	}

	first, _ := led.CreateHold(ctx, HoldInput{Issuer: "a", TxID: "t1", Payer: "a", Payee: "b", Amount: 10})
	second, _ := led.CreateHold(ctx, HoldInput{Issuer: "a", TxID: "t2", Payer: "a", Payee: "b", Amount: 10})
	if first.Index != 1 || second.Index != 2 {
		t.Fatalf("indexes not monotonic from 1: %d, %d", first.Index, second.Index)
	}

	got, err := led.HoldByIndex(ctx, 2)
	if err != nil {
		t.Fatalf("lookup by index: %v", err)
	}
	if got.TxID != "t2" {
		t.Fatalf("expected hold t2, got %q", got.TxID)
	}
}

func assertSolvencyExclusive(t *testing.T, led Ledger, wallet string) {
	t.Helper()
	balance, _ := led.BalanceOf(context.Background(), wallet)
	_, drawn, _ := led.OverdraftOf(context.Background(), wallet)
	if balance > 0 && drawn > 0 {
		t.Fatalf("wallet %s simultaneously in credit (%d) and overdraft (%d)", wallet, balance, drawn)
	}
}
