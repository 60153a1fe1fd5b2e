package repositories

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AllowlistRepo struct {
	pool *pgxpool.Pool
}

func NewAllowlistRepo(pool *pgxpool.Pool) *AllowlistRepo {
	return &AllowlistRepo{pool: pool}
}

// ListForBounty returns the union of per-bounty entries and per-repo
// entries. An empty result means no restriction is configured.
func (r *AllowlistRepo) ListForBounty(ctx context.Context, bountyID, repoFullName string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT address FROM allowlist_entries
		WHERE bounty_id = $1 OR repo_full_name = $2
	`, bountyID, repoFullName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var addresses []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		addresses = append(addresses, a)
	}
	return addresses, rows.Err()
}

// Allowed reports whether the address may be paid. No configured
// entries means everyone is allowed.
func (r *AllowlistRepo) Allowed(ctx context.Context, bountyID, repoFullName, address string) (bool, error) {
	addresses, err := r.ListForBounty(ctx, bountyID, repoFullName)
	if err != nil {
		return false, err
	}
	if len(addresses) == 0 {
		return true, nil
	}
	for _, a := range addresses {
		if strings.EqualFold(a, address) {
			return true, nil
		}
	}
	return false, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
