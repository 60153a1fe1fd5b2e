package events

import "context"

// Event types published on every bounty/claim transition. Consumed by
// the bot bridge and the dashboard poller.
const (
	EventBountyCreated  = "bounty_created"
	EventBountyResolved = "bounty_resolved"
	EventBountyRefunded = "bounty_refunded"
	EventClaimCreated   = "claim_created"
	EventClaimPaid      = "claim_paid"
	EventClaimFailed    = "claim_failed"
)

const StreamBounties = "events:bounties"

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
