package models

import "time"

// Bounty statuses
const (
	BountyStatusOpen     = "open"
	BountyStatusResolved = "resolved"
	BountyStatusRefunded = "refunded"
)

// Valid status transitions: from -> []to. Resolved and refunded are
// terminal; the guarded SQL updates enforce the same shape under
// concurrency.
var ValidBountyTransitions = map[string][]string{
	BountyStatusOpen:     {BountyStatusResolved, BountyStatusRefunded},
	BountyStatusResolved: {},
	BountyStatusRefunded: {},
}

func IsValidBountyTransition(from, to string) bool {
	allowed, ok := ValidBountyTransitions[from]
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

// Bounty is an escrowed payment tied to a repository issue. BountyID is
// the bytes32 identifier computed by the escrow contract and is opaque
// here. Amount is the token amount in smallest units, kept as a numeric
// string.
type Bounty struct {
	BountyID         string     `json:"bounty_id"` // 0x-prefixed 32-byte hex
	RepoFullName     string     `json:"repo_full_name"`
	RepoID           int64      `json:"repo_id"`
	IssueNumber      int        `json:"issue_number"`
	SponsorAddress   string     `json:"sponsor_address"`
	SponsorAccountID int64      `json:"sponsor_account_id"`
	TokenAddress     string     `json:"token_address"`
	TokenSymbol      string     `json:"token_symbol"`
	Amount           string     `json:"amount"`
	Deadline         int64      `json:"deadline"` // unix seconds
	Status           string     `json:"status"`
	Network          string     `json:"network"` // registry alias
	ChainID          int64      `json:"chain_id"`
	FundTxHash       *string    `json:"fund_tx_hash,omitempty"`
	ResolveTxHash    *string    `json:"resolve_tx_hash,omitempty"`
	RefundTxHash     *string    `json:"refund_tx_hash,omitempty"`
	PinnedCommentID  *int64     `json:"pinned_comment_id,omitempty"`
	Environment      string     `json:"environment"` // stage / prod
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (b *Bounty) Expired(now time.Time) bool {
	return b.Status == BountyStatusOpen && b.Deadline < now.Unix()
}
