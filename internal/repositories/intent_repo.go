package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gitbounty/backend/internal/models"
)

const intentColumns = `
	id, bounty_id, repo_full_name, repo_id, issue_number, sponsor_address, sponsor_account_id,
	network, environment, status, created_at, updated_at`

type IntentRepo struct {
	pool *pgxpool.Pool
}

func NewIntentRepo(pool *pgxpool.Pool) *IntentRepo {
	return &IntentRepo{pool: pool}
}

// Create upserts the intent keyed by the precomputed bounty id: the UI
// retrying the declaration refreshes the row instead of duplicating it.
func (r *IntentRepo) Create(ctx context.Context, i *models.FundingIntent) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO funding_intents (bounty_id, repo_full_name, repo_id, issue_number, sponsor_address, sponsor_account_id,
		                             network, environment, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending')
		ON CONFLICT (bounty_id) DO UPDATE SET updated_at = now()
		RETURNING id, status, created_at, updated_at
	`, i.BountyID, i.RepoFullName, i.RepoID, i.IssueNumber, i.SponsorAddress, i.SponsorAccountID,
		i.Network, i.Environment,
	).Scan(&i.ID, &i.Status, &i.CreatedAt, &i.UpdatedAt)
}

func (r *IntentRepo) GetPendingByBountyID(ctx context.Context, bountyID string) (*models.FundingIntent, error) {
	var i models.FundingIntent
	err := r.pool.QueryRow(ctx, `
		SELECT `+intentColumns+` FROM funding_intents WHERE bounty_id = $1 AND status = 'pending'
	`, bountyID).Scan(&i.ID, &i.BountyID, &i.RepoFullName, &i.RepoID, &i.IssueNumber, &i.SponsorAddress, &i.SponsorAccountID,
		&i.Network, &i.Environment, &i.Status, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &i, nil
}

// MarkConfirmed transitions pending -> confirmed, guarded in SQL.
func (r *IntentRepo) MarkConfirmed(ctx context.Context, bountyID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE funding_intents SET status = 'confirmed', updated_at = now()
		WHERE bounty_id = $1 AND status = 'pending'
	`, bountyID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
