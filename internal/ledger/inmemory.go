package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

type walletState struct {
	balance uint64
	limit   uint64
	drawn   uint64
	onHold  uint64
}

type inMemoryLedger struct {
	mu      sync.Mutex
	wallets map[string]*walletState
	// position 0 is the "does not exist" sentinel; valid holds start at 1.
	holds     []Hold
	holdIndex map[HoldID]uint64

	totalSupply uint64
	totalDrawn  uint64
	totalOnHold uint64
}

// NewInMemory creates a serial in-memory ledger. Every operation runs as a
// single critical section, so accepted calls observe and mutate state strictly
// after all prior accepted calls. Useful for unit tests and dev mode.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		wallets:   make(map[string]*walletState),
		holds:     make([]Hold, 1),
		holdIndex: make(map[HoldID]uint64),
	}
}

func (l *inMemoryLedger) wallet(addr string) *walletState {
	w, ok := l.wallets[addr]
	if !ok {
		w = &walletState{}
		l.wallets[addr] = w
	}
	return w
}

func (l *inMemoryLedger) BalanceOf(_ context.Context, wallet string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.wallet(wallet).balance, nil
}

func (l *inMemoryLedger) TotalSupply(_ context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalSupply, nil
}

func (l *inMemoryLedger) IncreaseBalance(_ context.Context, wallet string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.wallet(wallet)
	if w.balance > math.MaxUint64-amount || l.totalSupply > math.MaxUint64-amount {
		return ErrOverflow
	}
	w.balance += amount
	l.totalSupply += amount
	return nil
}

func (l *inMemoryLedger) DecreaseBalance(_ context.Context, wallet string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.wallet(wallet)
	if amount > w.balance {
		return ErrInsufficientBalance
	}
	w.balance -= amount
	l.totalSupply -= amount
	return nil
}

func (l *inMemoryLedger) OverdraftOf(_ context.Context, wallet string) (uint64, uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.wallet(wallet)
	return w.limit, w.drawn, nil
}

func (l *inMemoryLedger) SetOverdraftLimit(_ context.Context, wallet string, limit uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.wallet(wallet).limit = limit
	return nil
}

func (l *inMemoryLedger) DrawFromOverdraft(_ context.Context, wallet string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.wallet(wallet)
	if w.drawn+amount > w.limit || w.drawn > math.MaxUint64-amount {
		return ErrCreditLimitExceeded
	}
	w.drawn += amount
	l.totalDrawn += amount
	return nil
}

func (l *inMemoryLedger) RestoreOverdraft(_ context.Context, wallet string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.wallet(wallet)
	if amount > w.drawn {
		return ErrUnderflow
	}
	w.drawn -= amount
	l.totalDrawn -= amount
	return nil
}

func (l *inMemoryLedger) TotalDrawn(_ context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalDrawn, nil
}

func available(w *walletState) int64 {
	return int64(w.balance) + int64(w.limit) - int64(w.drawn) - int64(w.onHold)
}

func (l *inMemoryLedger) AvailableFunds(_ context.Context, wallet string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return available(l.wallet(wallet)), nil
}

func (l *inMemoryLedger) NetBalanceOf(_ context.Context, wallet string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.wallet(wallet)
	return int64(w.balance) - int64(w.drawn), nil
}

// addFundsLocked pays down the drawn overdraft before crediting the balance.
// This is the only path by which the drawn amount decreases during a value move.
func (l *inMemoryLedger) addFundsLocked(w *walletState, amount uint64) error {
	restore := amount
	if restore > w.drawn {
		restore = w.drawn
	}
	credit := amount - restore
	if w.balance > math.MaxUint64-credit || l.totalSupply > math.MaxUint64-credit {
		return ErrOverflow
	}
	w.drawn -= restore
	l.totalDrawn -= restore
	w.balance += credit
	l.totalSupply += credit
	return nil
}

// removeFundsLocked debits the balance first and draws any shortfall from the
// overdraft line. With forced set the capacity and availability checks are
// skipped: hold execution settles a reservation that was committed capacity at
// creation time, even past a since-lowered limit.
func (l *inMemoryLedger) removeFundsLocked(w *walletState, amount uint64, forced bool) error {
	if !forced {
		if amount > w.balance {
			shortfall := amount - w.balance
			if w.drawn+shortfall > w.limit {
				return ErrCreditLimitExceeded
			}
		}
		if int64(amount) > available(w) {
			return ErrInsufficientFunds
		}
	}
	if amount <= w.balance {
		w.balance -= amount
		l.totalSupply -= amount
		return nil
	}
	draw := amount - w.balance
	if w.drawn > math.MaxUint64-draw {
		return ErrOverflow
	}
	l.totalSupply -= w.balance
	w.balance = 0
	w.drawn += draw
	l.totalDrawn += draw
	return nil
}

func (l *inMemoryLedger) AddFunds(_ context.Context, wallet string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addFundsLocked(l.wallet(wallet), amount)
}

func (l *inMemoryLedger) RemoveFunds(_ context.Context, wallet string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.removeFundsLocked(l.wallet(wallet), amount, false)
}

func (l *inMemoryLedger) Transfer(_ context.Context, from, to string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.removeFundsLocked(l.wallet(from), amount, false); err != nil {
		return err
	}
	if err := l.addFundsLocked(l.wallet(to), amount); err != nil {
		// Undo the debit so the operation stays all-or-nothing.
		_ = l.addFundsLocked(l.wallet(from), amount)
		return err
	}
	return nil
}

func (l *inMemoryLedger) CreateHold(_ context.Context, input HoldInput) (Hold, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := HoldID{Issuer: input.Issuer, TxID: input.TxID}
	if _, exists := l.holdIndex[id]; exists {
		return Hold{}, ErrDuplicateID
	}

	payer := l.wallet(input.Payer)
	if int64(input.Amount) > available(payer) {
		return Hold{}, ErrInsufficientFunds
	}
	if payer.onHold > math.MaxUint64-input.Amount {
		return Hold{}, ErrOverflow
	}

	hold := Hold{
		Index:      uint64(len(l.holds)),
		Issuer:     input.Issuer,
		TxID:       input.TxID,
		Payer:      input.Payer,
		Payee:      input.Payee,
		Notary:     input.Notary,
		Amount:     input.Amount,
		Expires:    input.Expires,
		Expiration: input.Expiration,
		Status:     HoldStatusCreated,
		CreatedAt:  time.Now().UTC(),
	}

	payer.onHold += input.Amount
	l.totalOnHold += input.Amount
	l.holds = append(l.holds, hold)
	l.holdIndex[id] = hold.Index
	return hold, nil
}

// finalizeLocked moves the hold to a terminal status and frees the reserved
// amount. It does not move any value.
func (l *inMemoryLedger) finalizeLocked(id HoldID, status HoldStatus) (*Hold, error) {
	index, ok := l.holdIndex[id]
	if !ok {
		return nil, ErrNotFound
	}
	hold := &l.holds[index]
	if hold.Status != HoldStatusCreated {
		return nil, ErrHoldNotActive
	}
	payer := l.wallet(hold.Payer)
	payer.onHold -= hold.Amount
	l.totalOnHold -= hold.Amount
	hold.Status = status
	return hold, nil
}

func (l *inMemoryLedger) FinalizeHold(_ context.Context, id HoldID, status HoldStatus) (Hold, error) {
	if !status.Terminal() || status.Executed() {
		return Hold{}, fmt.Errorf("finalize requires a release status, got %q", status)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	hold, err := l.finalizeLocked(id, status)
	if err != nil {
		return Hold{}, err
	}
	return *hold, nil
}

func (l *inMemoryLedger) ExecuteHold(_ context.Context, id HoldID, status HoldStatus) (Hold, error) {
	if !status.Executed() {
		return Hold{}, fmt.Errorf("execute requires an executed status, got %q", status)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	hold, err := l.finalizeLocked(id, status)
	if err != nil {
		return Hold{}, err
	}
	if err := l.removeFundsLocked(l.wallet(hold.Payer), hold.Amount, true); err != nil {
		return Hold{}, err
	}
	if err := l.addFundsLocked(l.wallet(hold.Payee), hold.Amount); err != nil {
		return Hold{}, err
	}
	return *hold, nil
}

func (l *inMemoryLedger) ExecuteHoldOut(_ context.Context, id HoldID, status HoldStatus) (Hold, error) {
	if !status.Executed() {
		return Hold{}, fmt.Errorf("execute requires an executed status, got %q", status)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	hold, err := l.finalizeLocked(id, status)
	if err != nil {
		return Hold{}, err
	}
	if err := l.removeFundsLocked(l.wallet(hold.Payer), hold.Amount, true); err != nil {
		return Hold{}, err
	}
	return *hold, nil
}

func (l *inMemoryLedger) RenewHold(_ context.Context, id HoldID, expiration time.Time) (Hold, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	index, ok := l.holdIndex[id]
	if !ok {
		return Hold{}, ErrNotFound
	}
	hold := &l.holds[index]
	if hold.Status != HoldStatusCreated {
		return Hold{}, ErrHoldNotActive
	}
	hold.Expires = true
	hold.Expiration = expiration
	return *hold, nil
}

func (l *inMemoryLedger) HoldByID(_ context.Context, id HoldID) (Hold, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	index, ok := l.holdIndex[id]
	if !ok {
		return Hold{}, ErrNotFound
	}
	return l.holds[index], nil
}

func (l *inMemoryLedger) HoldByIndex(_ context.Context, index uint64) (Hold, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index == 0 || index >= uint64(len(l.holds)) {
		return Hold{}, ErrNotFound
	}
	return l.holds[index], nil
}

func (l *inMemoryLedger) BalanceOnHold(_ context.Context, wallet string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.wallet(wallet).onHold, nil
}

func (l *inMemoryLedger) TotalOnHold(_ context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalOnHold, nil
}
