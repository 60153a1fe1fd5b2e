package errs

import "fmt"

// ConfigurationError is fatal at startup in a server context: the
// orchestrator must not accept webhooks until the registry or
// credentials are fixed.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func Configuration(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

// ValidationError rejects malformed input before any state mutation or
// chain call.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func Validation(field, value, reason string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// ChainInteractionError covers RPC failures, transaction reverts and
// timeouts. Non-fatal: the bounty stays open and the attempt is
// retryable.
type ChainInteractionError struct {
	Network string
	Op      string
	Err     error
}

func (e *ChainInteractionError) Error() string {
	return fmt.Sprintf("chain %s: %s: %v", e.Network, e.Op, e.Err)
}

func (e *ChainInteractionError) Unwrap() error { return e.Err }

func Chain(network, op string, err error) *ChainInteractionError {
	return &ChainInteractionError{Network: network, Op: op, Err: err}
}

// DatabaseSyncError means the on-chain action succeeded but the state
// write failed: funds have moved, only bookkeeping is inconsistent.
// Alerting must distinguish this from chain errors.
type DatabaseSyncError struct {
	BountyID string
	TxHash   string
	Err      error
}

func (e *DatabaseSyncError) Error() string {
	return fmt.Sprintf("db sync failed for bounty %s (tx %s): %v", e.BountyID, e.TxHash, e.Err)
}

func (e *DatabaseSyncError) Unwrap() error { return e.Err }

func DBSync(bountyID, txHash string, err error) *DatabaseSyncError {
	return &DatabaseSyncError{BountyID: bountyID, TxHash: txHash, Err: err}
}

// NotificationError is logged only; it never affects bounty or claim
// state.
type NotificationError struct {
	Sink string
	Err  error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification via %s failed: %v", e.Sink, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// Truncate shortens raw provider errors for alerts and comments.
func Truncate(err error, max int) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
