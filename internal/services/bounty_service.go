package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gitbounty/backend/internal/chain"
	"github.com/gitbounty/backend/internal/errs"
	"github.com/gitbounty/backend/internal/events"
	"github.com/gitbounty/backend/internal/models"
	"github.com/gitbounty/backend/internal/notify"
	"github.com/gitbounty/backend/internal/repositories"
)

// BountyReadStore is the read surface consumed by the public API and
// the indexer's ingestion path.
type BountyReadStore interface {
	GetByID(ctx context.Context, bountyID string) (*models.Bounty, error)
	List(ctx context.Context, f repositories.BountyFilter) ([]models.Bounty, error)
	Create(ctx context.Context, b *models.Bounty) error
	AddFunding(ctx context.Context, bountyID, delta string) (bool, error)
	SetPinnedComment(ctx context.Context, bountyID string, commentID int64) error
}

type ClaimReadStore interface {
	ListByBounty(ctx context.Context, bountyID string) ([]models.PRClaim, error)
}

type IntentStore interface {
	Create(ctx context.Context, i *models.FundingIntent) error
	GetPendingByBountyID(ctx context.Context, bountyID string) (*models.FundingIntent, error)
	MarkConfirmed(ctx context.Context, bountyID string) (bool, error)
}

// BountyService serves reads, accepts funding intents and records
// bounties discovered on chain.
type BountyService struct {
	bounties  BountyReadStore
	claims    ClaimReadStore
	intents   IntentStore
	registry  *chain.Registry
	clients   chain.ClientSource
	notifier  notify.Notifier
	publisher events.Publisher
	log       *zap.Logger
}

func NewBountyService(
	bounties BountyReadStore,
	claims ClaimReadStore,
	intents IntentStore,
	registry *chain.Registry,
	clients chain.ClientSource,
	notifier notify.Notifier,
	publisher events.Publisher,
	log *zap.Logger,
) *BountyService {
	return &BountyService{
		bounties:  bounties,
		claims:    claims,
		intents:   intents,
		registry:  registry,
		clients:   clients,
		notifier:  notifier,
		publisher: publisher,
		log:       log,
	}
}

func (s *BountyService) Get(ctx context.Context, bountyID string) (*models.Bounty, error) {
	return s.bounties.GetByID(ctx, bountyID)
}

func (s *BountyService) List(ctx context.Context, f repositories.BountyFilter) ([]models.Bounty, error) {
	return s.bounties.List(ctx, f)
}

func (s *BountyService) Claims(ctx context.Context, bountyID string) ([]models.PRClaim, error) {
	return s.claims.ListByBounty(ctx, bountyID)
}

// Networks returns the display view of every configured network, in
// alias order, for the funding UI.
func (s *BountyService) Networks() []chain.NetworkConfig {
	return s.registry.Networks()
}

// DeclareFundingIntent is called by the funding UI before the sponsor
// sends createBounty. The bounty id is precomputed through the escrow
// contract so the indexer can later attribute the on-chain event to
// this repository and issue.
func (s *BountyService) DeclareFundingIntent(ctx context.Context, intent *models.FundingIntent) error {
	if !s.registry.Has(intent.Network) {
		return errs.Validation("network", intent.Network, "unknown network alias")
	}
	sponsor, err := chain.ParseAddress(intent.SponsorAddress)
	if err != nil {
		return err
	}

	client, err := s.clients.Client(intent.Network)
	if err != nil {
		return err
	}
	id, err := client.ComputeBountyID(ctx, sponsor, chain.RepoIDHash(intent.RepoID), int64(intent.IssueNumber))
	if err != nil {
		return err
	}
	intent.BountyID = chain.FormatBountyID(id)

	if err := s.intents.Create(ctx, intent); err != nil {
		return fmt.Errorf("record funding intent %s: %w", intent.BountyID, err)
	}

	s.log.Info("funding intent declared",
		zap.String("bounty_id", intent.BountyID),
		zap.String("repo", intent.RepoFullName),
		zap.Int("issue", intent.IssueNumber),
		zap.String("network", intent.Network),
	)
	return nil
}

// IngestBountyCreated attributes an observed BountyCreated event to its
// declared intent and records the open bounty. An event with no pending
// intent is logged and skipped: funds sent outside the declared flow
// are not orchestrated.
func (s *BountyService) IngestBountyCreated(ctx context.Context, networkAlias, bountyID, sponsor, amount string, deadline int64, txHash string) error {
	intent, err := s.intents.GetPendingByBountyID(ctx, bountyID)
	if err != nil {
		return fmt.Errorf("lookup intent for bounty %s: %w", bountyID, err)
	}
	if intent == nil {
		s.log.Warn("bounty created without a declared intent, skipping",
			zap.String("bounty_id", bountyID),
			zap.String("network", networkAlias),
			zap.String("sponsor", sponsor),
		)
		return nil
	}

	nc, err := s.registry.Network(networkAlias)
	if err != nil {
		return err
	}

	b := &models.Bounty{
		BountyID:         bountyID,
		RepoFullName:     intent.RepoFullName,
		RepoID:           intent.RepoID,
		IssueNumber:      intent.IssueNumber,
		SponsorAddress:   sponsor,
		SponsorAccountID: intent.SponsorAccountID,
		TokenAddress:     nc.TokenAddress.Hex(),
		TokenSymbol:      nc.TokenSymbol,
		Amount:           amount,
		Deadline:         deadline,
		Status:           models.BountyStatusOpen,
		Network:          networkAlias,
		ChainID:          nc.ChainID,
		FundTxHash:       &txHash,
		Environment:      intent.Environment,
	}
	if err := s.RecordFundedBounty(ctx, b); err != nil {
		return err
	}

	if _, err := s.intents.MarkConfirmed(ctx, bountyID); err != nil {
		s.log.Warn("failed to confirm funding intent", zap.String("bounty_id", bountyID), zap.Error(err))
	}
	return nil
}

// IngestBountyFunded applies a top-up to an open bounty. Top-ups on a
// terminal bounty are logged and dropped: the contract already rejected
// or refunded them.
func (s *BountyService) IngestBountyFunded(ctx context.Context, networkAlias, bountyID, amount, txHash string) error {
	applied, err := s.bounties.AddFunding(ctx, bountyID, amount)
	if err != nil {
		return fmt.Errorf("apply top-up for bounty %s: %w", bountyID, err)
	}
	if !applied {
		s.log.Warn("top-up for unknown or terminal bounty",
			zap.String("bounty_id", bountyID),
			zap.String("network", networkAlias),
			zap.String("tx_hash", txHash),
		)
		return nil
	}

	s.log.Info("bounty topped up",
		zap.String("bounty_id", bountyID),
		zap.String("network", networkAlias),
		zap.String("amount", amount),
		zap.String("tx_hash", txHash),
	)
	return nil
}

// RecordFundedBounty persists a bounty the indexer observed on chain
// and announces it on the issue. Duplicates from re-scanned blocks are
// already filtered by the indexer's idempotency keys; a conflicting
// insert here is still reported as an error rather than ignored.
func (s *BountyService) RecordFundedBounty(ctx context.Context, b *models.Bounty) error {
	if b.Status == "" {
		b.Status = models.BountyStatusOpen
	}

	if err := s.bounties.Create(ctx, b); err != nil {
		return fmt.Errorf("record bounty %s: %w", b.BountyID, err)
	}

	s.log.Info("funded bounty recorded",
		zap.String("bounty_id", b.BountyID),
		zap.String("repo", b.RepoFullName),
		zap.Int("issue", b.IssueNumber),
		zap.String("network", b.Network),
		zap.String("amount", b.Amount),
	)

	if err := s.publisher.Publish(ctx, events.StreamBounties, events.Event{
		Type: events.EventBountyCreated,
		Payload: map[string]any{
			"bounty_id": b.BountyID,
			"repo":      b.RepoFullName,
			"issue":     b.IssueNumber,
			"network":   b.Network,
			"amount":    b.Amount,
		},
	}); err != nil {
		s.log.Warn("event publish failed", zap.String("type", events.EventBountyCreated), zap.Error(err))
	}

	nc, err := s.registry.Network(b.Network)
	explorerURL := ""
	if err == nil {
		explorerURL = nc.ExplorerURL
	}
	txHash := ""
	if b.FundTxHash != nil {
		txHash = *b.FundTxHash
	}
	_ = s.notifier.Notify(ctx, notify.Event{
		Kind:        notify.KindBountyAnnounced,
		Repo:        b.RepoFullName,
		IssueNumber: b.IssueNumber,
		Amount:      b.Amount,
		TokenSymbol: b.TokenSymbol,
		Network:     b.Network,
		TxHash:      txHash,
		ExplorerURL: explorerURL,
	})
	return nil
}
