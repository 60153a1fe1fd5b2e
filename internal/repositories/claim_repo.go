package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gitbounty/backend/internal/models"
)

const claimColumns = `
	id, bounty_id, pr_number, author_account_id, author_login, repo_full_name,
	status, tx_hash, resolved_at, created_at, updated_at`

type ClaimRepo struct {
	pool *pgxpool.Pool
}

func NewClaimRepo(pool *pgxpool.Pool) *ClaimRepo {
	return &ClaimRepo{pool: pool}
}

func scanClaim(row pgx.Row, c *models.PRClaim) error {
	return row.Scan(&c.ID, &c.BountyID, &c.PRNumber, &c.AuthorAccountID, &c.AuthorLogin, &c.RepoFullName,
		&c.Status, &c.TxHash, &c.ResolvedAt, &c.CreatedAt, &c.UpdatedAt)
}

// Create inserts a pending claim. Re-delivery or re-parsing of an
// edited PR body hits the (bounty_id, pr_number) unique constraint and
// is a no-op; the bool reports whether a new row was written.
func (r *ClaimRepo) Create(ctx context.Context, c *models.PRClaim) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO pr_claims (bounty_id, pr_number, author_account_id, author_login, repo_full_name, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (bounty_id, pr_number) DO NOTHING
	`, c.BountyID, c.PRNumber, c.AuthorAccountID, c.AuthorLogin, c.RepoFullName, c.Status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ClaimRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PRClaim, error) {
	var c models.PRClaim
	err := scanClaim(r.pool.QueryRow(ctx, `
		SELECT `+claimColumns+` FROM pr_claims WHERE id = $1
	`, id), &c)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// ListByPR returns all claims a merged PR may settle.
func (r *ClaimRepo) ListByPR(ctx context.Context, repoFullName string, prNumber int) ([]models.PRClaim, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+claimColumns+` FROM pr_claims
		WHERE repo_full_name = $1 AND pr_number = $2
		ORDER BY created_at ASC
	`, repoFullName, prNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectClaims(rows)
}

func (r *ClaimRepo) ListByBounty(ctx context.Context, bountyID string) ([]models.PRClaim, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+claimColumns+` FROM pr_claims WHERE bounty_id = $1 ORDER BY created_at ASC
	`, bountyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectClaims(rows)
}

// ListStuckPending returns pending claims older than the given age, for
// maintainer alerting on stuck settlements.
func (r *ClaimRepo) ListStuckPending(ctx context.Context, olderThan time.Duration) ([]models.PRClaim, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+claimColumns+` FROM pr_claims
		WHERE status = 'pending' AND created_at < now() - $1::interval
		ORDER BY created_at ASC
	`, olderThan.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectClaims(rows)
}

// MarkPaid transitions pending -> paid, guarded in SQL.
func (r *ClaimRepo) MarkPaid(ctx context.Context, id uuid.UUID, txHash string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pr_claims SET status = 'paid', tx_hash = $2, resolved_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id, txHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed transitions pending -> failed. The owning bounty stays
// open and remains payable by a retry.
func (r *ClaimRepo) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pr_claims SET status = 'failed', updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkPendingForRetry moves a failed claim back to pending.
func (r *ClaimRepo) MarkPendingForRetry(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pr_claims SET status = 'pending', updated_at = now()
		WHERE id = $1 AND status = 'failed'
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func collectClaims(rows pgx.Rows) ([]models.PRClaim, error) {
	var claims []models.PRClaim
	for rows.Next() {
		var c models.PRClaim
		if err := scanClaim(rows, &c); err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}
