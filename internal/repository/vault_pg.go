package repository

import (
	"context"

	"github.com/forecastdao/tiergate/internal/vault"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// PostgresVaultRepo persists per-asset balances and limit state plus the
// global pause flag. Amounts are stored as NUMERIC to keep the
// arbitrary-precision accounting intact.
type PostgresVaultRepo struct {
	db *sqlx.DB
}

func NewPostgresVaultRepo(db *sqlx.DB) *PostgresVaultRepo {
	repo := &PostgresVaultRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

type vaultAssetRow struct {
	Asset            string          `db:"asset"`
	Balance          decimal.Decimal `db:"balance"`
	TransactionLimit decimal.Decimal `db:"transaction_limit"`
	RateLimitPeriod  int64           `db:"rate_limit_period"`
	PeriodLimit      decimal.Decimal `db:"period_limit"`
	PeriodSpent      decimal.Decimal `db:"period_spent"`
	PeriodStart      int64           `db:"period_start"`
}

func (r *PostgresVaultRepo) SaveAsset(ctx context.Context, asset string, balance decimal.Decimal, limit vault.Limit) error {
	query := `
		INSERT INTO vault_assets (asset, balance, transaction_limit, rate_limit_period, period_limit, period_spent, period_start)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (asset)
		DO UPDATE SET balance = $2, transaction_limit = $3, rate_limit_period = $4,
		              period_limit = $5, period_spent = $6, period_start = $7
	`
	_, err := r.db.ExecContext(ctx, query, asset, balance, limit.TransactionLimit,
		limit.RateLimitPeriod, limit.PeriodLimit, limit.PeriodSpent, limit.PeriodStart)
	return err
}

func (r *PostgresVaultRepo) SavePaused(ctx context.Context, paused bool) error {
	query := `
		INSERT INTO vault_state (id, paused) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET paused = $1
	`
	_, err := r.db.ExecContext(ctx, query, paused)
	return err
}

// LoadAssets returns all persisted asset state for vault restore.
func (r *PostgresVaultRepo) LoadAssets(ctx context.Context) (map[string]decimal.Decimal, map[string]vault.Limit, error) {
	var rows []vaultAssetRow
	query := `SELECT asset, balance, transaction_limit, rate_limit_period, period_limit, period_spent, period_start FROM vault_assets`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, nil, err
	}
	balances := make(map[string]decimal.Decimal, len(rows))
	limits := make(map[string]vault.Limit, len(rows))
	for _, row := range rows {
		balances[row.Asset] = row.Balance
		limits[row.Asset] = vault.Limit{
			TransactionLimit: row.TransactionLimit,
			RateLimitPeriod:  row.RateLimitPeriod,
			PeriodLimit:      row.PeriodLimit,
			PeriodSpent:      row.PeriodSpent,
			PeriodStart:      row.PeriodStart,
		}
	}
	return balances, limits, nil
}

func (r *PostgresVaultRepo) LoadPaused(ctx context.Context) (bool, error) {
	var paused bool
	err := r.db.QueryRowxContext(ctx, `SELECT paused FROM vault_state WHERE id = 1`).Scan(&paused)
	if err != nil {
		// No row yet means the vault has never been paused.
		return false, nil
	}
	return paused, nil
}

func (r *PostgresVaultRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS vault_assets (
			asset TEXT PRIMARY KEY,
			balance NUMERIC NOT NULL DEFAULT 0,
			transaction_limit NUMERIC NOT NULL DEFAULT 0,
			rate_limit_period BIGINT NOT NULL DEFAULT 0,
			period_limit NUMERIC NOT NULL DEFAULT 0,
			period_spent NUMERIC NOT NULL DEFAULT 0,
			period_start BIGINT NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS vault_state (
			id INTEGER PRIMARY KEY,
			paused BOOLEAN NOT NULL DEFAULT FALSE
		)
	`)
	return err
}
