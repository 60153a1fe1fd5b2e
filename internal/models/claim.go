package models

import (
	"time"

	"github.com/google/uuid"
)

// PRClaim statuses
const (
	ClaimStatusPending = "pending"
	ClaimStatusPaid    = "paid"
	ClaimStatusFailed  = "failed"
)

var ValidClaimTransitions = map[string][]string{
	ClaimStatusPending: {ClaimStatusPaid, ClaimStatusFailed},
	// A failed claim goes back to pending when a retry is scheduled.
	ClaimStatusFailed: {ClaimStatusPending, ClaimStatusPaid},
	ClaimStatusPaid:   {},
}

func IsValidClaimTransition(from, to string) bool {
	allowed, ok := ValidClaimTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// PRClaim associates a pull request with a bounty it may settle. A
// claim is created when a PR references an issue carrying an open
// bounty and is mutated only by settlement outcomes.
type PRClaim struct {
	ID              uuid.UUID  `json:"id"`
	BountyID        string     `json:"bounty_id"`
	PRNumber        int        `json:"pr_number"`
	AuthorAccountID int64      `json:"author_account_id"`
	AuthorLogin     string     `json:"author_login"`
	RepoFullName    string     `json:"repo_full_name"`
	Status          string     `json:"status"`
	TxHash          *string    `json:"tx_hash,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
