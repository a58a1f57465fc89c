package accessctl

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRegistry stores roles and approvals in PostgreSQL.
//
// Expected schema:
//
//	roles(address TEXT, role TEXT, PRIMARY KEY (address, role))
//	approvals(grantor TEXT, grantee TEXT, privilege TEXT,
//	          PRIMARY KEY (grantor, grantee, privilege))
type PostgresRegistry struct {
	db *pgxpool.Pool
}

// NewPostgresRegistry builds a registry backed by PostgreSQL.
func NewPostgresRegistry(db *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

func (r *PostgresRegistry) GrantRole(ctx context.Context, address string, role Role) error {
	_, err := r.db.Exec(ctx, `INSERT INTO roles (address, role) VALUES ($1, $2)
        ON CONFLICT DO NOTHING`, address, string(role))
	return err
}

func (r *PostgresRegistry) RevokeRole(ctx context.Context, address string, role Role) error {
	_, err := r.db.Exec(ctx, `DELETE FROM roles WHERE address = $1 AND role = $2`, address, string(role))
	return err
}

func (r *PostgresRegistry) HasRole(ctx context.Context, address string, role Role) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE address = $1 AND role = $2)`,
		address, string(role)).Scan(&ok)
	return ok, err
}

func (r *PostgresRegistry) Approve(ctx context.Context, grantor, grantee string, privilege Privilege) error {
	_, err := r.db.Exec(ctx, `INSERT INTO approvals (grantor, grantee, privilege) VALUES ($1, $2, $3)
        ON CONFLICT DO NOTHING`, grantor, grantee, string(privilege))
	return err
}

func (r *PostgresRegistry) RevokeApproval(ctx context.Context, grantor, grantee string, privilege Privilege) error {
	_, err := r.db.Exec(ctx, `DELETE FROM approvals WHERE grantor = $1 AND grantee = $2 AND privilege = $3`,
		grantor, grantee, string(privilege))
	return err
}

func (r *PostgresRegistry) IsApproved(ctx context.Context, grantor, grantee string, privilege Privilege) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM approvals
        WHERE grantor = $1 AND grantee = $2 AND privilege = $3)`,
		grantor, grantee, string(privilege)).Scan(&ok)
	return ok, err
}
