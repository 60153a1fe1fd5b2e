package models

import (
	"time"

	"github.com/google/uuid"
)

// FundingIntent statuses
const (
	IntentStatusPending   = "pending"
	IntentStatusConfirmed = "confirmed"
)

// FundingIntent is declared by the funding UI before the sponsor sends
// the on-chain createBounty transaction. It carries the repository
// metadata the chain cannot: the indexer matches an observed
// BountyCreated event to its intent by the precomputed bounty id.
type FundingIntent struct {
	ID               uuid.UUID `json:"id"`
	BountyID         string    `json:"bounty_id"`
	RepoFullName     string    `json:"repo_full_name"`
	RepoID           int64     `json:"repo_id"`
	IssueNumber      int       `json:"issue_number"`
	SponsorAddress   string    `json:"sponsor_address"`
	SponsorAccountID int64     `json:"sponsor_account_id"`
	Network          string    `json:"network"`
	Environment      string    `json:"environment"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
