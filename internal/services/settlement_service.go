package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gitbounty/backend/internal/chain"
	"github.com/gitbounty/backend/internal/errs"
	"github.com/gitbounty/backend/internal/events"
	"github.com/gitbounty/backend/internal/models"
	"github.com/gitbounty/backend/internal/notify"
)

// Store interfaces cover exactly the operations settlement needs, so
// the state machine is testable without a database.

type BountyStore interface {
	GetByID(ctx context.Context, bountyID string) (*models.Bounty, error)
	ListOpenByIssue(ctx context.Context, repoID int64, issueNumber int, environment string) ([]models.Bounty, error)
	ListExpiredOpen(ctx context.Context, environment string) ([]models.Bounty, error)
	MarkResolved(ctx context.Context, bountyID, txHash string) (bool, error)
	MarkRefunded(ctx context.Context, bountyID, txHash string) (bool, error)
}

type ClaimStore interface {
	Create(ctx context.Context, c *models.PRClaim) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.PRClaim, error)
	ListByPR(ctx context.Context, repoFullName string, prNumber int) ([]models.PRClaim, error)
	ListStuckPending(ctx context.Context, olderThan time.Duration) ([]models.PRClaim, error)
	MarkPaid(ctx context.Context, id uuid.UUID, txHash string) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (bool, error)
	MarkPendingForRetry(ctx context.Context, id uuid.UUID) (bool, error)
}

type WalletStore interface {
	GetActiveByAccount(ctx context.Context, accountID int64) (*models.WalletMapping, error)
}

type AllowlistStore interface {
	Allowed(ctx context.Context, bountyID, repoFullName, address string) (bool, error)
}

// SettlementService executes resolve/refund transactions and owns the
// status-guarded finalization of their outcomes. Outcomes are values:
// nothing here panics across the boundary.
type SettlementService struct {
	bounties  BountyStore
	claims    ClaimStore
	clients   chain.ClientSource
	notifier  notify.Notifier
	publisher events.Publisher
	log       *zap.Logger
}

func NewSettlementService(
	bounties BountyStore,
	claims ClaimStore,
	clients chain.ClientSource,
	notifier notify.Notifier,
	publisher events.Publisher,
	log *zap.Logger,
) *SettlementService {
	return &SettlementService{
		bounties:  bounties,
		claims:    claims,
		clients:   clients,
		notifier:  notifier,
		publisher: publisher,
		log:       log,
	}
}

// Resolve submits the on-chain resolve call. Inputs are re-validated
// before any network traffic; malformed input never reaches an RPC.
func (s *SettlementService) Resolve(ctx context.Context, bountyID, recipient, networkAlias string) chain.TxResult {
	id, err := chain.ParseBountyID(bountyID)
	if err != nil {
		return chain.TxResult{Ok: false, Err: err.Error()}
	}
	addr, err := chain.ParseAddress(recipient)
	if err != nil {
		return chain.TxResult{Ok: false, Err: err.Error()}
	}
	client, err := s.clients.Client(networkAlias)
	if err != nil {
		return chain.TxResult{Ok: false, Err: err.Error()}
	}
	return client.Resolve(ctx, id, addr)
}

// RefundExpired submits the on-chain refund call with the same input
// discipline as Resolve.
func (s *SettlementService) RefundExpired(ctx context.Context, bountyID, networkAlias string) chain.TxResult {
	id, err := chain.ParseBountyID(bountyID)
	if err != nil {
		return chain.TxResult{Ok: false, Err: err.Error()}
	}
	client, err := s.clients.Client(networkAlias)
	if err != nil {
		return chain.TxResult{Ok: false, Err: err.Error()}
	}
	return client.RefundExpired(ctx, id)
}

// SettleClaim pays a claim out and finalizes both rows. The conditional
// MarkResolved statement is the only cross-process correctness
// mechanism: whichever attempt wins the race finalizes the bounty, the
// loser observes zero rows and stops.
func (s *SettlementService) SettleClaim(ctx context.Context, bounty *models.Bounty, claim *models.PRClaim, recipient string) chain.TxResult {
	res := s.Resolve(ctx, bounty.BountyID, recipient, bounty.Network)

	if !res.Ok {
		s.log.Error("resolve transaction failed",
			zap.String("bounty_id", bounty.BountyID),
			zap.String("network", bounty.Network),
			zap.String("recipient", recipient),
			zap.String("error", res.Err),
		)

		if _, err := s.claims.MarkFailed(ctx, claim.ID); err != nil {
			s.log.Error("failed to mark claim failed", zap.String("claim_id", claim.ID.String()), zap.Error(err))
		}

		// The bounty stays open and payable by a future retry; the
		// contributor sees that, maintainers see the revert reason.
		_ = s.notifier.Notify(ctx, notify.Event{
			Kind:     notify.KindSettlementFailed,
			Repo:     claim.RepoFullName,
			PRNumber: claim.PRNumber,
			Reason:   res.Err,
		})
		_ = s.notifier.Notify(ctx, notify.Event{
			Kind:      notify.KindMaintainerChain,
			BountyID:  bounty.BountyID,
			Network:   bounty.Network,
			Recipient: recipient,
			Reason:    res.Err,
		})
		s.publish(ctx, events.EventClaimFailed, bounty, claim, "")
		return res
	}

	finalized, err := s.bounties.MarkResolved(ctx, bounty.BountyID, res.TxHash)
	if err != nil {
		// Funds have moved; only bookkeeping failed. Alert distinctly
		// from chain errors.
		dbErr := errs.DBSync(bounty.BountyID, res.TxHash, err)
		s.log.Error("db sync failure after successful resolve", zap.Error(dbErr))
		_ = s.notifier.Notify(ctx, notify.Event{
			Kind:      notify.KindMaintainerDBSync,
			BountyID:  bounty.BountyID,
			Network:   bounty.Network,
			Recipient: recipient,
			TxHash:    res.TxHash,
			Reason:    err.Error(),
		})
		return res
	}
	if !finalized {
		// A concurrent attempt already finalized the bounty. The chain
		// accepted our transaction, so this indicates the guard and the
		// contract disagree; surface it loudly.
		s.log.Warn("bounty already terminal after successful resolve",
			zap.String("bounty_id", bounty.BountyID),
			zap.String("tx_hash", res.TxHash),
		)
		return res
	}

	if _, err := s.claims.MarkPaid(ctx, claim.ID, res.TxHash); err != nil {
		dbErr := errs.DBSync(bounty.BountyID, res.TxHash, err)
		s.log.Error("db sync failure on claim finalization", zap.Error(dbErr))
		_ = s.notifier.Notify(ctx, notify.Event{
			Kind:     notify.KindMaintainerDBSync,
			BountyID: bounty.BountyID,
			Network:  bounty.Network,
			TxHash:   res.TxHash,
			Reason:   err.Error(),
		})
	}

	nc := s.networkConfig(bounty.Network)
	_ = s.notifier.Notify(ctx, notify.Event{
		Kind:        notify.KindBountyPaid,
		Repo:        claim.RepoFullName,
		PRNumber:    claim.PRNumber,
		Recipient:   recipient,
		Amount:      bounty.Amount,
		TokenSymbol: bounty.TokenSymbol,
		Network:     bounty.Network,
		TxHash:      res.TxHash,
		ExplorerURL: nc.ExplorerURL,
	})
	s.publish(ctx, events.EventClaimPaid, bounty, claim, res.TxHash)
	s.publish(ctx, events.EventBountyResolved, bounty, claim, res.TxHash)

	s.log.Info("bounty resolved",
		zap.String("bounty_id", bounty.BountyID),
		zap.String("network", bounty.Network),
		zap.String("recipient", recipient),
		zap.String("tx_hash", res.TxHash),
	)
	return res
}

// RefundBounty refunds one expired bounty and finalizes the row under
// the same guarded-transition discipline as SettleClaim.
func (s *SettlementService) RefundBounty(ctx context.Context, bounty *models.Bounty) chain.TxResult {
	if !bounty.Expired(time.Now()) {
		return chain.TxResult{Ok: false, Err: fmt.Sprintf("bounty %s is not an expired open bounty", bounty.BountyID)}
	}

	res := s.RefundExpired(ctx, bounty.BountyID, bounty.Network)
	if !res.Ok {
		s.log.Error("refund transaction failed",
			zap.String("bounty_id", bounty.BountyID),
			zap.String("network", bounty.Network),
			zap.String("error", res.Err),
		)
		_ = s.notifier.Notify(ctx, notify.Event{
			Kind:     notify.KindMaintainerChain,
			BountyID: bounty.BountyID,
			Network:  bounty.Network,
			Reason:   res.Err,
		})
		return res
	}

	finalized, err := s.bounties.MarkRefunded(ctx, bounty.BountyID, res.TxHash)
	if err != nil {
		dbErr := errs.DBSync(bounty.BountyID, res.TxHash, err)
		s.log.Error("db sync failure after successful refund", zap.Error(dbErr))
		_ = s.notifier.Notify(ctx, notify.Event{
			Kind:     notify.KindMaintainerDBSync,
			BountyID: bounty.BountyID,
			Network:  bounty.Network,
			TxHash:   res.TxHash,
			Reason:   err.Error(),
		})
		return res
	}
	if !finalized {
		s.log.Warn("bounty already terminal after successful refund",
			zap.String("bounty_id", bounty.BountyID),
			zap.String("tx_hash", res.TxHash),
		)
		return res
	}

	nc := s.networkConfig(bounty.Network)
	_ = s.notifier.Notify(ctx, notify.Event{
		Kind:        notify.KindBountyRefunded,
		Repo:        bounty.RepoFullName,
		IssueNumber: bounty.IssueNumber,
		Sponsor:     bounty.SponsorAddress,
		Amount:      bounty.Amount,
		TokenSymbol: bounty.TokenSymbol,
		Network:     bounty.Network,
		TxHash:      res.TxHash,
		ExplorerURL: nc.ExplorerURL,
	})
	s.publish(ctx, events.EventBountyRefunded, bounty, nil, res.TxHash)

	s.log.Info("bounty refunded",
		zap.String("bounty_id", bounty.BountyID),
		zap.String("network", bounty.Network),
		zap.String("tx_hash", res.TxHash),
	)
	return res
}

// RunExpiryScan refunds every open bounty whose deadline has passed.
// Failures leave bounties open for the next scan.
func (s *SettlementService) RunExpiryScan(ctx context.Context, environment string) (int, error) {
	expired, err := s.bounties.ListExpiredOpen(ctx, environment)
	if err != nil {
		return 0, fmt.Errorf("list expired bounties: %w", err)
	}

	refunded := 0
	for i := range expired {
		if res := s.RefundBounty(ctx, &expired[i]); res.Ok {
			refunded++
		}
	}
	return refunded, nil
}

func (s *SettlementService) networkConfig(alias string) chain.NetworkConfig {
	client, err := s.clients.Client(alias)
	if err != nil {
		return chain.NetworkConfig{}
	}
	return client.Config()
}

func (s *SettlementService) publish(ctx context.Context, eventType string, bounty *models.Bounty, claim *models.PRClaim, txHash string) {
	payload := map[string]any{
		"bounty_id": bounty.BountyID,
		"repo":      bounty.RepoFullName,
		"issue":     bounty.IssueNumber,
		"network":   bounty.Network,
		"status":    bounty.Status,
	}
	if claim != nil {
		payload["claim_id"] = claim.ID.String()
		payload["pr_number"] = claim.PRNumber
	}
	if txHash != "" {
		payload["tx_hash"] = txHash
	}
	if err := s.publisher.Publish(ctx, events.StreamBounties, events.Event{Type: eventType, Payload: payload}); err != nil {
		s.log.Warn("event publish failed", zap.String("type", eventType), zap.Error(err))
	}
}
