package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gitbounty/backend/internal/events"
	"github.com/gitbounty/backend/internal/github"
	"github.com/gitbounty/backend/internal/models"
	"github.com/gitbounty/backend/internal/notify"
)

// ClaimService correlates webhook events with bounty rows. PR events
// never mutate bounty status directly; they only create claims and, on
// merge, hand eligible claims to settlement.
type ClaimService struct {
	bounties   BountyStore
	claims     ClaimStore
	wallets    WalletStore
	allowlist  AllowlistStore
	settlement *SettlementService
	notifier   notify.Notifier
	publisher  events.Publisher
	log        *zap.Logger

	environment   string
	fundBaseURL   string
	commandPrefix string
}

func NewClaimService(
	bounties BountyStore,
	claims ClaimStore,
	wallets WalletStore,
	allowlist AllowlistStore,
	settlement *SettlementService,
	notifier notify.Notifier,
	publisher events.Publisher,
	environment, fundBaseURL, commandPrefix string,
	log *zap.Logger,
) *ClaimService {
	return &ClaimService{
		bounties:      bounties,
		claims:        claims,
		wallets:       wallets,
		allowlist:     allowlist,
		settlement:    settlement,
		notifier:      notifier,
		publisher:     publisher,
		log:           log,
		environment:   environment,
		fundBaseURL:   fundBaseURL,
		commandPrefix: commandPrefix,
	}
}

// HandleEvent routes a decoded webhook event. All handlers run before
// the delivery is acknowledged.
func (s *ClaimService) HandleEvent(ctx context.Context, ev github.Event) error {
	switch e := ev.(type) {
	case github.IssueOpened:
		return s.handleIssueOpened(ctx, e)
	case github.PullRequestChanged:
		return s.handlePullRequestChanged(ctx, e)
	case github.PullRequestMerged:
		return s.handlePullRequestMerged(ctx, e)
	case github.IssueCommentCreated:
		return s.handleIssueComment(ctx, e)
	case github.Ignored:
		s.log.Debug("ignored webhook delivery",
			zap.String("event", e.Event),
			zap.String("action", e.Action),
		)
		return nil
	default:
		return fmt.Errorf("unexpected event type %T", ev)
	}
}

// handleIssueOpened posts the funding call-to-action. Pure side effect,
// no rows are touched.
func (s *ClaimService) handleIssueOpened(ctx context.Context, ev github.IssueOpened) error {
	fundURL := fmt.Sprintf("%s?repo=%s&issue=%d", s.fundBaseURL, ev.Repo.FullName, ev.IssueNumber)
	return s.notifier.Notify(ctx, notify.Event{
		Kind:        notify.KindFundingCTA,
		Repo:        ev.Repo.FullName,
		IssueNumber: ev.IssueNumber,
		FundURL:     fundURL,
	})
}

// handlePullRequestChanged parses closing references out of the PR body
// and registers a claim against every open bounty on the referenced
// issues. Registration is idempotent: edits and re-deliveries collapse
// onto the existing row and stay silent.
func (s *ClaimService) handlePullRequestChanged(ctx context.Context, ev github.PullRequestChanged) error {
	refs := github.ParseClosingRefs(ev.PR.Body)
	if len(refs) == 0 {
		return nil
	}

	for _, issueNumber := range refs {
		bounties, err := s.bounties.ListOpenByIssue(ctx, ev.Repo.ID, issueNumber, s.environment)
		if err != nil {
			return fmt.Errorf("list open bounties for %s#%d: %w", ev.Repo.FullName, issueNumber, err)
		}

		for i := range bounties {
			if err := s.registerClaim(ctx, &bounties[i], ev.Repo.FullName, ev.PR); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *ClaimService) registerClaim(ctx context.Context, bounty *models.Bounty, repoFullName string, pr github.PullRequest) error {
	claim := &models.PRClaim{
		BountyID:        bounty.BountyID,
		PRNumber:        pr.Number,
		AuthorAccountID: pr.User.ID,
		AuthorLogin:     pr.User.Login,
		RepoFullName:    repoFullName,
		Status:          models.ClaimStatusPending,
	}

	created, err := s.claims.Create(ctx, claim)
	if err != nil {
		return fmt.Errorf("create claim for bounty %s: %w", bounty.BountyID, err)
	}
	if !created {
		// Already registered; nothing new to announce.
		return nil
	}

	s.log.Info("claim registered",
		zap.String("bounty_id", bounty.BountyID),
		zap.String("repo", repoFullName),
		zap.Int("pr_number", pr.Number),
		zap.String("author", pr.User.Login),
	)
	s.publish(ctx, events.EventClaimCreated, bounty, claim)

	wallet, err := s.wallets.GetActiveByAccount(ctx, pr.User.ID)
	if err != nil {
		return fmt.Errorf("lookup wallet for account %d: %w", pr.User.ID, err)
	}

	kind := notify.KindClaimRegistered
	if wallet == nil {
		kind = notify.KindWalletRequired
	}
	return s.notifier.Notify(ctx, notify.Event{
		Kind:        kind,
		Repo:        repoFullName,
		PRNumber:    pr.Number,
		AuthorLogin: pr.User.Login,
		Amount:      bounty.Amount,
		TokenSymbol: bounty.TokenSymbol,
		Network:     bounty.Network,
	})
}

// handlePullRequestMerged settles every claim the merged PR carries.
// One claim failing does not stop the rest.
func (s *ClaimService) handlePullRequestMerged(ctx context.Context, ev github.PullRequestMerged) error {
	claims, err := s.claims.ListByPR(ctx, ev.Repo.FullName, ev.PR.Number)
	if err != nil {
		return fmt.Errorf("list claims for %s#%d: %w", ev.Repo.FullName, ev.PR.Number, err)
	}

	for i := range claims {
		if claims[i].Status != models.ClaimStatusPending {
			continue
		}
		if err := s.settleClaim(ctx, &claims[i]); err != nil {
			s.log.Error("claim settlement errored",
				zap.String("claim_id", claims[i].ID.String()),
				zap.String("bounty_id", claims[i].BountyID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// settleClaim runs the payout preconditions in order and hands off to
// settlement only when all hold. The order matters: a closed bounty is
// checked before the wallet, the wallet before the allowlist, and only
// the allowlist violation is a hard failure.
func (s *ClaimService) settleClaim(ctx context.Context, claim *models.PRClaim) error {
	bounty, err := s.bounties.GetByID(ctx, claim.BountyID)
	if err != nil {
		return fmt.Errorf("load bounty %s: %w", claim.BountyID, err)
	}
	if bounty == nil || bounty.Status != models.BountyStatusOpen {
		// Already settled or refunded; the claim stays as-is.
		s.log.Info("skipping claim, bounty not open",
			zap.String("claim_id", claim.ID.String()),
			zap.String("bounty_id", claim.BountyID),
		)
		return nil
	}

	wallet, err := s.wallets.GetActiveByAccount(ctx, claim.AuthorAccountID)
	if err != nil {
		return fmt.Errorf("lookup wallet for account %d: %w", claim.AuthorAccountID, err)
	}
	if wallet == nil {
		// Not an error: the claim stays pending until a wallet is
		// linked, the contributor gets a reminder.
		return s.notifier.Notify(ctx, notify.Event{
			Kind:        notify.KindWalletRequired,
			Repo:        claim.RepoFullName,
			PRNumber:    claim.PRNumber,
			AuthorLogin: claim.AuthorLogin,
			Amount:      bounty.Amount,
			TokenSymbol: bounty.TokenSymbol,
		})
	}

	allowed, err := s.allowlist.Allowed(ctx, bounty.BountyID, bounty.RepoFullName, wallet.Address)
	if err != nil {
		return fmt.Errorf("allowlist check for bounty %s: %w", bounty.BountyID, err)
	}
	if !allowed {
		s.log.Warn("allowlist rejected settlement",
			zap.String("bounty_id", bounty.BountyID),
			zap.String("address", wallet.Address),
			zap.String("author", claim.AuthorLogin),
		)
		return s.notifier.Notify(ctx, notify.Event{
			Kind:        notify.KindAllowlistRejected,
			Repo:        claim.RepoFullName,
			PRNumber:    claim.PRNumber,
			AuthorLogin: claim.AuthorLogin,
			Recipient:   wallet.Address,
		})
	}

	s.settlement.SettleClaim(ctx, bounty, claim, wallet.Address)
	return nil
}

// RetryClaim moves a failed claim back to pending and immediately
// attempts settlement again. Used by the admin surface.
func (s *ClaimService) RetryClaim(ctx context.Context, claim *models.PRClaim) error {
	if claim.Status == models.ClaimStatusFailed {
		moved, err := s.claims.MarkPendingForRetry(ctx, claim.ID)
		if err != nil {
			return fmt.Errorf("reset claim %s: %w", claim.ID, err)
		}
		if !moved {
			return fmt.Errorf("claim %s is no longer retryable", claim.ID)
		}
		claim.Status = models.ClaimStatusPending
	}
	if claim.Status != models.ClaimStatusPending {
		return fmt.Errorf("claim %s has status %s, cannot retry", claim.ID, claim.Status)
	}
	return s.settleClaim(ctx, claim)
}

// RunStuckClaimScan alerts maintainers about pending claims older than
// the threshold. Detection only, no state changes.
func (s *ClaimService) RunStuckClaimScan(ctx context.Context, olderThan time.Duration) (int, error) {
	stuck, err := s.claims.ListStuckPending(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("list stuck claims: %w", err)
	}
	if len(stuck) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(stuck))
	for i := range stuck {
		ids = append(ids, fmt.Sprintf("%s (bounty %s, %s#%d)", stuck[i].ID, stuck[i].BountyID, stuck[i].RepoFullName, stuck[i].PRNumber))
	}
	_ = s.notifier.Notify(ctx, notify.Event{
		Kind:   notify.KindStuckClaims,
		Reason: fmt.Sprintf("%d claims pending for over %s:\n%s", len(stuck), olderThan, strings.Join(ids, "\n")),
	})
	return len(stuck), nil
}

// handleIssueComment answers /bounty commands. Commands are read-only.
func (s *ClaimService) handleIssueComment(ctx context.Context, ev github.IssueCommentCreated) error {
	body := strings.TrimSpace(ev.Comment.Body)
	if !strings.HasPrefix(body, s.commandPrefix) {
		return nil
	}

	args := strings.Fields(strings.TrimPrefix(body, s.commandPrefix))
	cmd := ""
	if len(args) > 0 {
		cmd = strings.ToLower(args[0])
	}

	var reply string
	switch cmd {
	case "status":
		bounties, err := s.bounties.ListOpenByIssue(ctx, ev.Repo.ID, ev.IssueNumber, s.environment)
		if err != nil {
			return fmt.Errorf("status command for %s#%d: %w", ev.Repo.FullName, ev.IssueNumber, err)
		}
		reply = renderStatusReply(bounties)
	case "fund":
		reply = fmt.Sprintf("Fund this issue at %s?repo=%s&issue=%d", s.fundBaseURL, ev.Repo.FullName, ev.IssueNumber)
	case "assign":
		// Advisory only: payout eligibility is decided by the merged PR,
		// not by who called assign.
		reply = fmt.Sprintf("@%s noted. Open a PR that closes this issue and it will be registered against the bounty automatically.", ev.Comment.User.Login)
	case "help", "":
		reply = fmt.Sprintf("Available commands: `%s status`, `%s fund`, `%s assign`, `%s help`", s.commandPrefix, s.commandPrefix, s.commandPrefix, s.commandPrefix)
	default:
		reply = fmt.Sprintf("Unknown command `%s`. Try `%s help`.", cmd, s.commandPrefix)
	}

	return s.notifier.Notify(ctx, notify.Event{
		Kind:        notify.KindCommandReply,
		Repo:        ev.Repo.FullName,
		IssueNumber: ev.IssueNumber,
		Body:        reply,
	})
}

func renderStatusReply(bounties []models.Bounty) string {
	if len(bounties) == 0 {
		return "No open bounties on this issue."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d open bounty(ies) on this issue:\n", len(bounties))
	for i := range bounties {
		deadline := time.Unix(bounties[i].Deadline, 0).UTC().Format("2006-01-02")
		fmt.Fprintf(&b, "- %s %s on %s, open until %s\n",
			bounties[i].Amount, bounties[i].TokenSymbol, bounties[i].Network, deadline)
	}
	return b.String()
}

func (s *ClaimService) publish(ctx context.Context, eventType string, bounty *models.Bounty, claim *models.PRClaim) {
	payload := map[string]any{
		"bounty_id": bounty.BountyID,
		"repo":      bounty.RepoFullName,
		"issue":     bounty.IssueNumber,
		"network":   bounty.Network,
	}
	if claim != nil {
		payload["claim_id"] = claim.ID.String()
		payload["pr_number"] = claim.PRNumber
		payload["author"] = claim.AuthorLogin
	}
	if err := s.publisher.Publish(ctx, events.StreamBounties, events.Event{Type: eventType, Payload: payload}); err != nil {
		s.log.Warn("event publish failed", zap.String("type", eventType), zap.Error(err))
	}
}
