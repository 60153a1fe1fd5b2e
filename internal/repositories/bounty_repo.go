package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gitbounty/backend/internal/models"
)

const bountyColumns = `
	bounty_id, repo_full_name, repo_id, issue_number, sponsor_address, sponsor_account_id,
	token_address, token_symbol, amount, deadline, status, network, chain_id,
	fund_tx_hash, resolve_tx_hash, refund_tx_hash, pinned_comment_id, environment,
	resolved_at, created_at, updated_at`

type BountyRepo struct {
	pool *pgxpool.Pool
}

func NewBountyRepo(pool *pgxpool.Pool) *BountyRepo {
	return &BountyRepo{pool: pool}
}

func scanBounty(row pgx.Row, b *models.Bounty) error {
	return row.Scan(&b.BountyID, &b.RepoFullName, &b.RepoID, &b.IssueNumber, &b.SponsorAddress, &b.SponsorAccountID,
		&b.TokenAddress, &b.TokenSymbol, &b.Amount, &b.Deadline, &b.Status, &b.Network, &b.ChainID,
		&b.FundTxHash, &b.ResolveTxHash, &b.RefundTxHash, &b.PinnedCommentID, &b.Environment,
		&b.ResolvedAt, &b.CreatedAt, &b.UpdatedAt)
}

// Create records a funded bounty. The partial unique index on
// (repo_id, issue_number, sponsor_address, network, environment) WHERE
// status='open' rejects a second concurrently-open bounty by the same
// sponsor on the same issue.
func (r *BountyRepo) Create(ctx context.Context, b *models.Bounty) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO bounties (bounty_id, repo_full_name, repo_id, issue_number, sponsor_address, sponsor_account_id,
		                      token_address, token_symbol, amount, deadline, status, network, chain_id,
		                      fund_tx_hash, pinned_comment_id, environment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at
	`, b.BountyID, b.RepoFullName, b.RepoID, b.IssueNumber, b.SponsorAddress, b.SponsorAccountID,
		b.TokenAddress, b.TokenSymbol, b.Amount, b.Deadline, b.Status, b.Network, b.ChainID,
		b.FundTxHash, b.PinnedCommentID, b.Environment,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
}

func (r *BountyRepo) GetByID(ctx context.Context, bountyID string) (*models.Bounty, error) {
	var b models.Bounty
	err := scanBounty(r.pool.QueryRow(ctx, `
		SELECT `+bountyColumns+` FROM bounties WHERE bounty_id = $1
	`, bountyID), &b)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// ListOpenByIssue returns open bounties attached to an issue, scoped by
// environment so stage and prod deployments never settle each other's
// rows.
func (r *BountyRepo) ListOpenByIssue(ctx context.Context, repoID int64, issueNumber int, environment string) ([]models.Bounty, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bountyColumns+` FROM bounties
		WHERE repo_id = $1 AND issue_number = $2 AND environment = $3 AND status = 'open'
		ORDER BY created_at ASC
	`, repoID, issueNumber, environment)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBounties(rows)
}

// ListExpiredOpen returns bounties with status open and deadline
// strictly before now.
func (r *BountyRepo) ListExpiredOpen(ctx context.Context, environment string) ([]models.Bounty, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bountyColumns+` FROM bounties
		WHERE environment = $1 AND status = 'open' AND deadline < EXTRACT(EPOCH FROM now())::bigint
		ORDER BY deadline ASC
	`, environment)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBounties(rows)
}

type BountyFilter struct {
	RepoFullName *string
	Status       *string
	Network      *string
	Environment  string
	Limit        int
	Offset       int
}

func (r *BountyRepo) List(ctx context.Context, f BountyFilter) ([]models.Bounty, error) {
	query := `SELECT ` + bountyColumns + ` FROM bounties WHERE environment = $1`
	args := []any{f.Environment}
	argIdx := 2

	if f.RepoFullName != nil {
		query += fmt.Sprintf(" AND repo_full_name = $%d", argIdx)
		args = append(args, *f.RepoFullName)
		argIdx++
	}
	if f.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *f.Status)
		argIdx++
	}
	if f.Network != nil {
		query += fmt.Sprintf(" AND network = $%d", argIdx)
		args = append(args, *f.Network)
		argIdx++
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBounties(rows)
}

// MarkResolved performs the single-statement conditional transition
// open -> resolved. Returns false when another settlement attempt
// already finalized the bounty: that is the race-loss signal, not an
// error.
func (r *BountyRepo) MarkResolved(ctx context.Context, bountyID, txHash string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bounties SET status = 'resolved', resolve_tx_hash = $2, resolved_at = now(), updated_at = now()
		WHERE bounty_id = $1 AND status = 'open'
	`, bountyID, txHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkRefunded performs the conditional transition open -> refunded
// under the same discipline as MarkResolved.
func (r *BountyRepo) MarkRefunded(ctx context.Context, bountyID, txHash string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bounties SET status = 'refunded', refund_tx_hash = $2, updated_at = now()
		WHERE bounty_id = $1 AND status = 'open'
	`, bountyID, txHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AddFunding bumps the amount of a still-open bounty by a top-up
// observed on chain. Amounts are decimal strings in the token's
// smallest unit; arithmetic happens in SQL numeric space.
func (r *BountyRepo) AddFunding(ctx context.Context, bountyID, delta string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bounties SET amount = (amount::numeric + $2::numeric)::text, updated_at = now()
		WHERE bounty_id = $1 AND status = 'open'
	`, bountyID, delta)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *BountyRepo) SetPinnedComment(ctx context.Context, bountyID string, commentID int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE bounties SET pinned_comment_id = $2, updated_at = now() WHERE bounty_id = $1
	`, bountyID, commentID)
	return err
}

func collectBounties(rows pgx.Rows) ([]models.Bounty, error) {
	var bounties []models.Bounty
	for rows.Next() {
		var b models.Bounty
		if err := scanBounty(rows, &b); err != nil {
			return nil, err
		}
		bounties = append(bounties, b)
	}
	return bounties, rows.Err()
}
