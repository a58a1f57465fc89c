package ledger

// SeedBalance is a test helper that credits a wallet directly when using the
// in-memory ledger, keeping total supply consistent.
func SeedBalance(l Ledger, wallet string, amount uint64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		w := mem.wallet(wallet)
		w.balance += amount
		mem.totalSupply += amount
	}
}

// SeedOverdraftLimit is a test helper that sets a wallet's credit line when
// using the in-memory ledger.
func SeedOverdraftLimit(l Ledger, wallet string, limit uint64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.wallet(wallet).limit = limit
	}
}
