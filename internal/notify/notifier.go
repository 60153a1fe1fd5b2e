package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/gitbounty/backend/internal/github"
)

// Event kinds
const (
	KindFundingCTA        = "funding_cta"        // issue opened, invite sponsors
	KindBountyAnnounced   = "bounty_announced"   // indexer observed a funded bounty
	KindWalletRequired    = "wallet_required"    // claimant has no linked wallet
	KindClaimRegistered   = "claim_registered"   // claim created, wallet present
	KindBountyPaid        = "bounty_paid"        // resolve confirmed
	KindSettlementFailed  = "settlement_failed"  // user-visible: bounty stays open, retried
	KindAllowlistRejected = "allowlist_rejected" // resolver address not allowed
	KindBountyRefunded    = "bounty_refunded"    // sponsor notified after expiry refund
	KindMaintainerChain   = "maintainer_chain"   // chain interaction failure
	KindMaintainerDBSync  = "maintainer_db_sync" // funds moved, bookkeeping failed
	KindStuckClaims       = "stuck_claims"       // pending claims over the age threshold
	KindCommandReply      = "command_reply"      // /bounty command response
)

// Event carries everything a sink needs to render a notification. Empty
// fields are simply omitted from the rendered text.
type Event struct {
	Kind        string
	Repo        string
	IssueNumber int
	PRNumber    int
	BountyID    string
	Network     string
	Recipient   string
	Sponsor     string
	Amount      string
	TokenSymbol string
	TxHash      string
	ExplorerURL string
	Reason      string
	FundURL     string
	AuthorLogin string
	Body        string // pre-rendered override (command replies)
}

// Notifier is the port settlement code talks to. Implementations are
// fire-and-forget sinks: a returned error is for logging only and must
// never influence bounty or claim state.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Dispatcher fans an event out to the comment sink and, for maintainer
// kinds, the alert sink. Sink failures are logged and swallowed.
type Dispatcher struct {
	comments *CommentNotifier
	alerts   *EmailNotifier
	log      *zap.Logger
}

func NewDispatcher(gh *github.Client, alerts *EmailNotifier, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		comments: NewCommentNotifier(gh, log),
		alerts:   alerts,
		log:      log,
	}
}

func (d *Dispatcher) Notify(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case KindMaintainerChain, KindMaintainerDBSync, KindStuckClaims:
		if d.alerts != nil {
			if err := d.alerts.Notify(ctx, ev); err != nil {
				d.log.Warn("maintainer alert delivery failed",
					zap.String("kind", ev.Kind),
					zap.String("bounty_id", ev.BountyID),
					zap.Error(err),
				)
			}
		}
		// Maintainer alerts are also always logged so they survive a
		// broken mail path.
		d.log.Error("maintainer alert",
			zap.String("kind", ev.Kind),
			zap.String("bounty_id", ev.BountyID),
			zap.String("network", ev.Network),
			zap.String("recipient", ev.Recipient),
			zap.String("reason", ev.Reason),
		)
		return nil
	default:
		if err := d.comments.Notify(ctx, ev); err != nil {
			d.log.Warn("comment notification failed",
				zap.String("kind", ev.Kind),
				zap.String("repo", ev.Repo),
				zap.Error(err),
			)
		}
		return nil
	}
}

// CommentNotifier renders an event into a GitHub comment.
type CommentNotifier struct {
	gh  *github.Client
	log *zap.Logger
}

func NewCommentNotifier(gh *github.Client, log *zap.Logger) *CommentNotifier {
	return &CommentNotifier{gh: gh, log: log}
}

func (n *CommentNotifier) Notify(ctx context.Context, ev Event) error {
	body := ev.Body
	if body == "" {
		body = renderComment(ev)
	}
	if body == "" {
		return nil
	}

	number := ev.IssueNumber
	if number == 0 {
		number = ev.PRNumber
	}
	if ev.Repo == "" || number == 0 {
		return nil
	}

	_, err := n.gh.CreateComment(ctx, ev.Repo, number, body)
	return err
}
