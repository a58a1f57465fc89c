package workflow

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emledger/emledger/internal/ledger"
)

// PostgresRepository stores requests of one workflow kind in PostgreSQL.
//
// Expected schema:
//
//	requests(idx BIGSERIAL PRIMARY KEY, kind TEXT, requester TEXT, tx_id TEXT,
//	         wallet TEXT, counterparty TEXT, amount BIGINT, instructions TEXT,
//	         status TEXT, reason TEXT, UNIQUE (kind, requester, tx_id))
type PostgresRepository struct {
	db   *pgxpool.Pool
	kind Kind
}

// NewPostgresRepository builds a request store for the given kind.
func NewPostgresRepository(db *pgxpool.Pool, kind Kind) *PostgresRepository {
	return &PostgresRepository{db: db, kind: kind}
}

const requestColumns = `idx, kind, requester, tx_id, wallet, counterparty, amount, instructions, status, reason`

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	var idx, amount int64
	var kind, status string
	if err := row.Scan(&idx, &kind, &req.Requester, &req.TxID, &req.Wallet,
		&req.Counterparty, &amount, &req.Instructions, &status, &req.Reason); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ledger.ErrNotFound
		}
		return Request{}, err
	}
	req.Index = uint64(idx)
	req.Kind = Kind(kind)
	req.Amount = uint64(amount)
	req.Status = Status(status)
	return req, nil
}

func (r *PostgresRepository) Create(ctx context.Context, req Request) (Request, error) {
	var idx int64
	err := r.db.QueryRow(ctx, `INSERT INTO requests (kind, requester, tx_id, wallet, counterparty, amount, instructions, status, reason)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING idx`,
		string(r.kind), req.Requester, req.TxID, req.Wallet, req.Counterparty,
		int64(req.Amount), req.Instructions, string(req.Status), req.Reason).Scan(&idx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Request{}, ledger.ErrDuplicateID
		}
		return Request{}, err
	}
	req.Index = uint64(idx)
	req.Kind = r.kind
	return req, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id ID) (Request, error) {
	return scanRequest(r.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests
        WHERE kind = $1 AND requester = $2 AND tx_id = $3`, string(r.kind), id.Requester, id.TxID))
}

func (r *PostgresRepository) GetByIndex(ctx context.Context, index uint64) (Request, error) {
	if index == 0 {
		return Request{}, ledger.ErrNotFound
	}
	return scanRequest(r.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests
        WHERE kind = $1 AND idx = $2`, string(r.kind), int64(index)))
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id ID, from []Status, to Status, reason string) (Request, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Request{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	req, err := scanRequest(tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests
        WHERE kind = $1 AND requester = $2 AND tx_id = $3 FOR UPDATE`, string(r.kind), id.Requester, id.TxID))
	if err != nil {
		return Request{}, err
	}

	allowed := false
	for _, status := range from {
		if req.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return Request{}, ErrInvalidState
	}

	if reason == "" {
		reason = req.Reason
	}
	if _, err := tx.Exec(ctx, `UPDATE requests SET status = $4, reason = $5
        WHERE kind = $1 AND requester = $2 AND tx_id = $3`,
		string(r.kind), id.Requester, id.TxID, string(to), reason); err != nil {
		return Request{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Request{}, err
	}
	req.Status = to
	req.Reason = reason
	return req, nil
}
