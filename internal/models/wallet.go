package models

import (
	"time"

	"github.com/google/uuid"
)

// WalletMapping links a platform account to a signature-verified payout
// address. Rows are written by the wallet-linking flow in the auth
// subsystem; the orchestrator only reads them.
type WalletMapping struct {
	ID         uuid.UUID `json:"id"`
	AccountID  int64     `json:"account_id"`
	Login      string    `json:"login"`
	Address    string    `json:"address"`
	VerifiedAt time.Time `json:"verified_at"`
	IsActive   bool      `json:"is_active"`
}
