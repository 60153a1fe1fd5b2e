package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gitbounty/backend/internal/models"
)

// WalletRepo reads wallet mappings. The rows are owned by the
// wallet-linking flow in the auth subsystem; the orchestrator never
// writes them.
type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// GetActiveByAccount returns the account's verified payout address, or
// nil (no error) when the account has not linked a wallet.
func (r *WalletRepo) GetActiveByAccount(ctx context.Context, accountID int64) (*models.WalletMapping, error) {
	var w models.WalletMapping
	err := r.pool.QueryRow(ctx, `
		SELECT id, account_id, login, address, verified_at, is_active
		FROM wallet_mappings
		WHERE account_id = $1 AND is_active = true
	`, accountID).Scan(&w.ID, &w.AccountID, &w.Login, &w.Address, &w.VerifiedAt, &w.IsActive)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

// Upsert replaces the account's active mapping. Only seeding and tests
// call this; production writes go through the auth subsystem.
func (r *WalletRepo) Upsert(ctx context.Context, w *models.WalletMapping) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE wallet_mappings SET is_active = false
		WHERE account_id = $1 AND is_active = true
	`, w.AccountID); err != nil {
		return err
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO wallet_mappings (account_id, login, address, verified_at, is_active)
		VALUES ($1, $2, $3, $4, true)
		RETURNING id
	`, w.AccountID, w.Login, w.Address, w.VerifiedAt).Scan(&w.ID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
