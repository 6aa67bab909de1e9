package repository

import (
	"context"

	"github.com/forecastdao/tiergate/internal/ledger"
	"github.com/forecastdao/tiergate/internal/tier"
	"github.com/jmoiron/sqlx"
)

// PostgresMembershipRepo persists membership ledger entries. Entries are
// upserted write-through and loaded in bulk at startup.
type PostgresMembershipRepo struct {
	db *sqlx.DB
}

func NewPostgresMembershipRepo(db *sqlx.DB) *PostgresMembershipRepo {
	repo := &PostgresMembershipRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

type membershipRow struct {
	Account   string `db:"account"`
	Role      string `db:"role"`
	Tier      int    `db:"tier"`
	ExpiresAt int64  `db:"expires_at"`
}

func (r *PostgresMembershipRepo) SaveMembership(ctx context.Context, key ledger.Key, m ledger.Membership) error {
	query := `
		INSERT INTO memberships (account, role, tier, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account, role)
		DO UPDATE SET tier = $3, expires_at = $4
	`
	_, err := r.db.ExecContext(ctx, query, key.Account, key.Role, int(m.Tier), m.ExpiresAt)
	return err
}

// LoadAll returns every persisted membership for ledger restore.
func (r *PostgresMembershipRepo) LoadAll(ctx context.Context) (map[ledger.Key]ledger.Membership, error) {
	var rows []membershipRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT account, role, tier, expires_at FROM memberships`); err != nil {
		return nil, err
	}
	out := make(map[ledger.Key]ledger.Membership, len(rows))
	for _, row := range rows {
		out[ledger.Key{Account: row.Account, Role: row.Role}] = ledger.Membership{
			Tier:      tier.Tier(row.Tier),
			ExpiresAt: row.ExpiresAt,
		}
	}
	return out, nil
}

func (r *PostgresMembershipRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS memberships (
			account TEXT NOT NULL,
			role TEXT NOT NULL,
			tier INTEGER NOT NULL DEFAULT 0,
			expires_at BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (account, role)
		)
	`)
	return err
}
