package models

import (
	"time"

	"github.com/google/uuid"
)

// AllowlistEntry restricts which addresses may be paid for a bounty or
// a whole repository. Scope is either a bounty id or a repo full name;
// exactly one is set.
type AllowlistEntry struct {
	ID           uuid.UUID `json:"id"`
	BountyID     *string   `json:"bounty_id,omitempty"`
	RepoFullName *string   `json:"repo_full_name,omitempty"`
	Address      string    `json:"address"`
	CreatedAt    time.Time `json:"created_at"`
}
