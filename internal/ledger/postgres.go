package ledger

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger persists the consolidated book in PostgreSQL. Serializability
// per wallet comes from row locks: every mutating operation runs in a single
// transaction and takes SELECT ... FOR UPDATE on the wallet rows it touches,
// so the availability check and the mutation it guards commit as one unit.
//
// Expected schema:
//
//	wallets(address TEXT PRIMARY KEY, balance BIGINT, od_limit BIGINT,
//	        od_drawn BIGINT, on_hold BIGINT)
//	holds(idx BIGSERIAL PRIMARY KEY, issuer TEXT, tx_id TEXT, payer TEXT,
//	      payee TEXT, notary TEXT, amount BIGINT, expires BOOLEAN,
//	      expiration TIMESTAMPTZ, status TEXT, created_at TIMESTAMPTZ,
//	      UNIQUE (issuer, tx_id))
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgres constructs a Postgres-backed ledger implementation.
func NewPostgres(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

const lockWalletQuery = `SELECT balance, od_limit, od_drawn, on_hold FROM wallets WHERE address = $1 FOR UPDATE`

// lockWallet loads a wallet row under a row lock, creating it lazily. Wallets
// have no independent existence beyond their derived attributes.
func lockWallet(ctx context.Context, tx pgx.Tx, address string) (walletState, error) {
	if _, err := tx.Exec(ctx, `INSERT INTO wallets (address, balance, od_limit, od_drawn, on_hold)
        VALUES ($1, 0, 0, 0, 0) ON CONFLICT (address) DO NOTHING`, address); err != nil {
		return walletState{}, err
	}
	var balance, limit, drawn, onHold int64
	if err := tx.QueryRow(ctx, lockWalletQuery, address).Scan(&balance, &limit, &drawn, &onHold); err != nil {
		return walletState{}, err
	}
	return walletState{
		balance: uint64(balance),
		limit:   uint64(limit),
		drawn:   uint64(drawn),
		onHold:  uint64(onHold),
	}, nil
}

func saveWallet(ctx context.Context, tx pgx.Tx, address string, w walletState) error {
	_, err := tx.Exec(ctx, `UPDATE wallets SET balance = $2, od_limit = $3, od_drawn = $4, on_hold = $5
        WHERE address = $1`, address, int64(w.balance), int64(w.limit), int64(w.drawn), int64(w.onHold))
	return err
}

// applyAdd mirrors the in-memory add path: pay down the drawn overdraft, then
// credit the remainder.
func applyAdd(w *walletState, amount uint64) error {
	restore := amount
	if restore > w.drawn {
		restore = w.drawn
	}
	credit := amount - restore
	if w.balance > math.MaxUint64-credit {
		return ErrOverflow
	}
	w.drawn -= restore
	w.balance += credit
	return nil
}

// applyRemove mirrors the in-memory remove path. See removeFundsLocked for the
// check ordering and the meaning of forced.
func applyRemove(w *walletState, amount uint64, forced bool) error {
	if !forced {
		if amount > w.balance {
			if w.drawn+(amount-w.balance) > w.limit {
				return ErrCreditLimitExceeded
			}
		}
		if int64(amount) > available(w) {
			return ErrInsufficientFunds
		}
	}
	if amount <= w.balance {
		w.balance -= amount
		return nil
	}
	draw := amount - w.balance
	if w.drawn > math.MaxUint64-draw {
		return ErrOverflow
	}
	w.balance = 0
	w.drawn += draw
	return nil
}

// inTx runs fn inside a transaction, rolling back on error.
func (l *PostgresLedger) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (l *PostgresLedger) BalanceOf(ctx context.Context, wallet string) (uint64, error) {
	var balance int64
	err := l.db.QueryRow(ctx, `SELECT COALESCE(
        (SELECT balance FROM wallets WHERE address = $1), 0)`, wallet).Scan(&balance)
	return uint64(balance), err
}

func (l *PostgresLedger) TotalSupply(ctx context.Context) (uint64, error) {
	var total int64
	err := l.db.QueryRow(ctx, `SELECT COALESCE(SUM(balance), 0) FROM wallets`).Scan(&total)
	return uint64(total), err
}

func (l *PostgresLedger) IncreaseBalance(ctx context.Context, wallet string, amount uint64) error {
	return l.inTx(ctx, func(tx pgx.Tx) error {
		w, err := lockWallet(ctx, tx, wallet)
		if err != nil {
			return err
		}
		if w.balance > math.MaxUint64-amount {
			return ErrOverflow
		}
		w.balance += amount
		return saveWallet(ctx, tx, wallet, w)
	})
}

func (l *PostgresLedger) DecreaseBalance(ctx context.Context, wallet string, amount uint64) error {
	return l.inTx(ctx, func(tx pgx.Tx) error {
		w, err := lockWallet(ctx, tx, wallet)
		if err != nil {
			return err
		}
		if amount > w.balance {
			return ErrInsufficientBalance
		}
		w.balance -= amount
		return saveWallet(ctx, tx, wallet, w)
	})
}

func (l *PostgresLedger) OverdraftOf(ctx context.Context, wallet string) (uint64, uint64, error) {
	var limit, drawn int64
	err := l.db.QueryRow(ctx, `SELECT COALESCE(od_limit, 0), COALESCE(od_drawn, 0)
        FROM wallets WHERE address = $1`, wallet).Scan(&limit, &drawn)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, nil
	}
	return uint64(limit), uint64(drawn), err
}

func (l *PostgresLedger) SetOverdraftLimit(ctx context.Context, wallet string, limit uint64) error {
	return l.inTx(ctx, func(tx pgx.Tx) error {
		w, err := lockWallet(ctx, tx, wallet)
		if err != nil {
			return err
		}
		w.limit = limit
		return saveWallet(ctx, tx, wallet, w)
	})
}

func (l *PostgresLedger) DrawFromOverdraft(ctx context.Context, wallet string, amount uint64) error {
	return l.inTx(ctx, func(tx pgx.Tx) error {
		w, err := lockWallet(ctx, tx, wallet)
		if err != nil {
			return err
		}
		if w.drawn+amount > w.limit {
			return ErrCreditLimitExceeded
		}
		w.drawn += amount
		return saveWallet(ctx, tx, wallet, w)
	})
}

func (l *PostgresLedger) RestoreOverdraft(ctx context.Context, wallet string, amount uint64) error {
	return l.inTx(ctx, func(tx pgx.Tx) error {
		w, err := lockWallet(ctx, tx, wallet)
		if err != nil {
			return err
		}
		if amount > w.drawn {
			return ErrUnderflow
		}
		w.drawn -= amount
		return saveWallet(ctx, tx, wallet, w)
	})
}

func (l *PostgresLedger) TotalDrawn(ctx context.Context) (uint64, error) {
	var total int64
	err := l.db.QueryRow(ctx, `SELECT COALESCE(SUM(od_drawn), 0) FROM wallets`).Scan(&total)
	return uint64(total), err
}

func (l *PostgresLedger) AvailableFunds(ctx context.Context, wallet string) (int64, error) {
	var avail int64
	err := l.db.QueryRow(ctx, `SELECT COALESCE(
        (SELECT balance + od_limit - od_drawn - on_hold FROM wallets WHERE address = $1), 0)`, wallet).Scan(&avail)
	return avail, err
}

func (l *PostgresLedger) NetBalanceOf(ctx context.Context, wallet string) (int64, error) {
	var net int64
	err := l.db.QueryRow(ctx, `SELECT COALESCE(
        (SELECT balance - od_drawn FROM wallets WHERE address = $1), 0)`, wallet).Scan(&net)
	return net, err
}

func (l *PostgresLedger) AddFunds(ctx context.Context, wallet string, amount uint64) error {
	return l.inTx(ctx, func(tx pgx.Tx) error {
		w, err := lockWallet(ctx, tx, wallet)
		if err != nil {
			return err
		}
		if err := applyAdd(&w, amount); err != nil {
			return err
		}
		return saveWallet(ctx, tx, wallet, w)
	})
}

func (l *PostgresLedger) RemoveFunds(ctx context.Context, wallet string, amount uint64) error {
	return l.inTx(ctx, func(tx pgx.Tx) error {
		w, err := lockWallet(ctx, tx, wallet)
		if err != nil {
			return err
		}
		if err := applyRemove(&w, amount, false); err != nil {
			return err
		}
		return saveWallet(ctx, tx, wallet, w)
	})
}

func (l *PostgresLedger) Transfer(ctx context.Context, from, to string, amount uint64) error {
	return l.inTx(ctx, func(tx pgx.Tx) error {
		// Lock in address order so two opposing transfers cannot deadlock.
		first, second := from, to
		if second < first {
			first, second = second, first
		}
		firstState, err := lockWallet(ctx, tx, first)
		if err != nil {
			return err
		}
		secondState, err := lockWallet(ctx, tx, second)
		if err != nil {
			return err
		}
		fromState, toState := firstState, secondState
		if first != from {
			fromState, toState = secondState, firstState
		}
		if err := applyRemove(&fromState, amount, false); err != nil {
			return err
		}
		if err := applyAdd(&toState, amount); err != nil {
			return err
		}
		if err := saveWallet(ctx, tx, from, fromState); err != nil {
			return err
		}
		return saveWallet(ctx, tx, to, toState)
	})
}

const holdColumns = `idx, issuer, tx_id, payer, payee, notary, amount, expires, expiration, status, created_at`

func scanHold(row pgx.Row) (Hold, error) {
	var h Hold
	var idx, amount int64
	var expiration *time.Time
	var status string
	if err := row.Scan(&idx, &h.Issuer, &h.TxID, &h.Payer, &h.Payee, &h.Notary,
		&amount, &h.Expires, &expiration, &status, &h.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Hold{}, ErrNotFound
		}
		return Hold{}, err
	}
	h.Index = uint64(idx)
	h.Amount = uint64(amount)
	h.Status = HoldStatus(status)
	if expiration != nil {
		h.Expiration = expiration.UTC()
	}
	h.CreatedAt = h.CreatedAt.UTC()
	return h, nil
}

func (l *PostgresLedger) CreateHold(ctx context.Context, input HoldInput) (Hold, error) {
	var created Hold
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM holds WHERE issuer = $1 AND tx_id = $2)`,
			input.Issuer, input.TxID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrDuplicateID
		}

		payer, err := lockWallet(ctx, tx, input.Payer)
		if err != nil {
			return err
		}
		if int64(input.Amount) > available(&payer) {
			return ErrInsufficientFunds
		}
		payer.onHold += input.Amount
		if err := saveWallet(ctx, tx, input.Payer, payer); err != nil {
			return err
		}

		var expiration *time.Time
		if input.Expires {
			exp := input.Expiration.UTC()
			expiration = &exp
		}
		now := time.Now().UTC()
		var idx int64
		if err := tx.QueryRow(ctx, `INSERT INTO holds (issuer, tx_id, payer, payee, notary, amount, expires, expiration, status, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING idx`,
			input.Issuer, input.TxID, input.Payer, input.Payee, input.Notary,
			int64(input.Amount), input.Expires, expiration, string(HoldStatusCreated), now).Scan(&idx); err != nil {
			return err
		}
		created = Hold{
			Index:      uint64(idx),
			Issuer:     input.Issuer,
			TxID:       input.TxID,
			Payer:      input.Payer,
			Payee:      input.Payee,
			Notary:     input.Notary,
			Amount:     input.Amount,
			Expires:    input.Expires,
			Expiration: input.Expiration,
			Status:     HoldStatusCreated,
			CreatedAt:  now,
		}
		return nil
	})
	return created, err
}

// finalizeInTx locks the hold row, verifies it is still active, frees the
// reserved amount on the (locked) payer wallet and stamps the terminal status.
// The payer state is returned still-dirty so execute paths can keep mutating it
// before a single save.
func finalizeInTx(ctx context.Context, tx pgx.Tx, id HoldID, status HoldStatus) (Hold, walletState, error) {
	hold, err := scanHold(tx.QueryRow(ctx, `SELECT `+holdColumns+` FROM holds
        WHERE issuer = $1 AND tx_id = $2 FOR UPDATE`, id.Issuer, id.TxID))
	if err != nil {
		return Hold{}, walletState{}, err
	}
	if hold.Status != HoldStatusCreated {
		return Hold{}, walletState{}, ErrHoldNotActive
	}
	payer, err := lockWallet(ctx, tx, hold.Payer)
	if err != nil {
		return Hold{}, walletState{}, err
	}
	payer.onHold -= hold.Amount
	if _, err := tx.Exec(ctx, `UPDATE holds SET status = $3 WHERE issuer = $1 AND tx_id = $2`,
		id.Issuer, id.TxID, string(status)); err != nil {
		return Hold{}, walletState{}, err
	}
	hold.Status = status
	return hold, payer, nil
}

func (l *PostgresLedger) FinalizeHold(ctx context.Context, id HoldID, status HoldStatus) (Hold, error) {
	if !status.Terminal() || status.Executed() {
		return Hold{}, errors.New("finalize requires a release status")
	}
	var out Hold
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		hold, payer, err := finalizeInTx(ctx, tx, id, status)
		if err != nil {
			return err
		}
		if err := saveWallet(ctx, tx, hold.Payer, payer); err != nil {
			return err
		}
		out = hold
		return nil
	})
	return out, err
}

func (l *PostgresLedger) ExecuteHold(ctx context.Context, id HoldID, status HoldStatus) (Hold, error) {
	if !status.Executed() {
		return Hold{}, errors.New("execute requires an executed status")
	}
	var out Hold
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		hold, payer, err := finalizeInTx(ctx, tx, id, status)
		if err != nil {
			return err
		}
		if err := applyRemove(&payer, hold.Amount, true); err != nil {
			return err
		}
		if err := saveWallet(ctx, tx, hold.Payer, payer); err != nil {
			return err
		}
		payee, err := lockWallet(ctx, tx, hold.Payee)
		if err != nil {
			return err
		}
		if err := applyAdd(&payee, hold.Amount); err != nil {
			return err
		}
		if err := saveWallet(ctx, tx, hold.Payee, payee); err != nil {
			return err
		}
		out = hold
		return nil
	})
	return out, err
}

func (l *PostgresLedger) ExecuteHoldOut(ctx context.Context, id HoldID, status HoldStatus) (Hold, error) {
	if !status.Executed() {
		return Hold{}, errors.New("execute requires an executed status")
	}
	var out Hold
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		hold, payer, err := finalizeInTx(ctx, tx, id, status)
		if err != nil {
			return err
		}
		if err := applyRemove(&payer, hold.Amount, true); err != nil {
			return err
		}
		if err := saveWallet(ctx, tx, hold.Payer, payer); err != nil {
			return err
		}
		out = hold
		return nil
	})
	return out, err
}

func (l *PostgresLedger) RenewHold(ctx context.Context, id HoldID, expiration time.Time) (Hold, error) {
	var out Hold
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		hold, err := scanHold(tx.QueryRow(ctx, `SELECT `+holdColumns+` FROM holds
            WHERE issuer = $1 AND tx_id = $2 FOR UPDATE`, id.Issuer, id.TxID))
		if err != nil {
			return err
		}
		if hold.Status != HoldStatusCreated {
			return ErrHoldNotActive
		}
		exp := expiration.UTC()
		if _, err := tx.Exec(ctx, `UPDATE holds SET expires = TRUE, expiration = $3
            WHERE issuer = $1 AND tx_id = $2`, id.Issuer, id.TxID, exp); err != nil {
			return err
		}
		hold.Expires = true
		hold.Expiration = exp
		out = hold
		return nil
	})
	return out, err
}

func (l *PostgresLedger) HoldByID(ctx context.Context, id HoldID) (Hold, error) {
	return scanHold(l.db.QueryRow(ctx, `SELECT `+holdColumns+` FROM holds
        WHERE issuer = $1 AND tx_id = $2`, id.Issuer, id.TxID))
}

func (l *PostgresLedger) HoldByIndex(ctx context.Context, index uint64) (Hold, error) {
	if index == 0 {
		return Hold{}, ErrNotFound
	}
	return scanHold(l.db.QueryRow(ctx, `SELECT `+holdColumns+` FROM holds WHERE idx = $1`, int64(index)))
}

func (l *PostgresLedger) BalanceOnHold(ctx context.Context, wallet string) (uint64, error) {
	var onHold int64
	err := l.db.QueryRow(ctx, `SELECT COALESCE(
        (SELECT on_hold FROM wallets WHERE address = $1), 0)`, wallet).Scan(&onHold)
	return uint64(onHold), err
}

func (l *PostgresLedger) TotalOnHold(ctx context.Context) (uint64, error) {
	var total int64
	err := l.db.QueryRow(ctx, `SELECT COALESCE(SUM(on_hold), 0) FROM wallets`).Scan(&total)
	return uint64(total), err
}
