package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/gitbounty/backend/internal/chain"
	"github.com/gitbounty/backend/internal/events"
	"github.com/gitbounty/backend/internal/models"
	"github.com/gitbounty/backend/internal/notify"
	"github.com/gitbounty/backend/internal/repositories"
)

// In-memory fakes mirroring the repositories' guarded-transition
// contracts.

type fakeBountyStore struct {
	bounties map[string]*models.Bounty
}

func newFakeBountyStore(bounties ...*models.Bounty) *fakeBountyStore {
	s := &fakeBountyStore{bounties: make(map[string]*models.Bounty)}
	for _, b := range bounties {
		s.bounties[b.BountyID] = b
	}
	return s
}

func (s *fakeBountyStore) GetByID(_ context.Context, bountyID string) (*models.Bounty, error) {
	b, ok := s.bounties[bountyID]
	if !ok {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

func (s *fakeBountyStore) ListOpenByIssue(_ context.Context, repoID int64, issueNumber int, environment string) ([]models.Bounty, error) {
	var out []models.Bounty
	for _, b := range s.bounties {
		if b.RepoID == repoID && b.IssueNumber == issueNumber && b.Environment == environment && b.Status == models.BountyStatusOpen {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *fakeBountyStore) ListExpiredOpen(_ context.Context, environment string) ([]models.Bounty, error) {
	now := time.Now()
	var out []models.Bounty
	for _, b := range s.bounties {
		if b.Environment == environment && b.Expired(now) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *fakeBountyStore) List(_ context.Context, f repositories.BountyFilter) ([]models.Bounty, error) {
	var out []models.Bounty
	for _, b := range s.bounties {
		if b.Environment == f.Environment {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *fakeBountyStore) Create(_ context.Context, b *models.Bounty) error {
	if _, ok := s.bounties[b.BountyID]; ok {
		return errors.New("duplicate bounty")
	}
	copied := *b
	s.bounties[b.BountyID] = &copied
	return nil
}

func (s *fakeBountyStore) AddFunding(_ context.Context, bountyID, delta string) (bool, error) {
	b, ok := s.bounties[bountyID]
	if !ok || b.Status != models.BountyStatusOpen {
		return false, nil
	}
	prev, _ := new(big.Int).SetString(b.Amount, 10)
	add, _ := new(big.Int).SetString(delta, 10)
	b.Amount = new(big.Int).Add(prev, add).String()
	return true, nil
}

func (s *fakeBountyStore) SetPinnedComment(_ context.Context, bountyID string, commentID int64) error {
	if b, ok := s.bounties[bountyID]; ok {
		b.PinnedCommentID = &commentID
	}
	return nil
}

func (s *fakeBountyStore) MarkResolved(_ context.Context, bountyID, txHash string) (bool, error) {
	b, ok := s.bounties[bountyID]
	if !ok || b.Status != models.BountyStatusOpen {
		return false, nil
	}
	b.Status = models.BountyStatusResolved
	b.ResolveTxHash = &txHash
	return true, nil
}

func (s *fakeBountyStore) MarkRefunded(_ context.Context, bountyID, txHash string) (bool, error) {
	b, ok := s.bounties[bountyID]
	if !ok || b.Status != models.BountyStatusOpen {
		return false, nil
	}
	b.Status = models.BountyStatusRefunded
	b.RefundTxHash = &txHash
	return true, nil
}

type fakeClaimStore struct {
	claims map[uuid.UUID]*models.PRClaim
}

func newFakeClaimStore(claims ...*models.PRClaim) *fakeClaimStore {
	s := &fakeClaimStore{claims: make(map[uuid.UUID]*models.PRClaim)}
	for _, c := range claims {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		s.claims[c.ID] = c
	}
	return s
}

func (s *fakeClaimStore) Create(_ context.Context, c *models.PRClaim) (bool, error) {
	for _, existing := range s.claims {
		if existing.BountyID == c.BountyID && existing.PRNumber == c.PRNumber {
			return false, nil
		}
	}
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	copied := *c
	s.claims[c.ID] = &copied
	return true, nil
}

func (s *fakeClaimStore) GetByID(_ context.Context, id uuid.UUID) (*models.PRClaim, error) {
	c, ok := s.claims[id]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (s *fakeClaimStore) ListByPR(_ context.Context, repoFullName string, prNumber int) ([]models.PRClaim, error) {
	var out []models.PRClaim
	for _, c := range s.claims {
		if c.RepoFullName == repoFullName && c.PRNumber == prNumber {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeClaimStore) ListByBounty(_ context.Context, bountyID string) ([]models.PRClaim, error) {
	var out []models.PRClaim
	for _, c := range s.claims {
		if c.BountyID == bountyID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeClaimStore) ListStuckPending(_ context.Context, olderThan time.Duration) ([]models.PRClaim, error) {
	cutoff := time.Now().Add(-olderThan)
	var out []models.PRClaim
	for _, c := range s.claims {
		if c.Status == models.ClaimStatusPending && c.CreatedAt.Before(cutoff) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeClaimStore) MarkPaid(_ context.Context, id uuid.UUID, txHash string) (bool, error) {
	c, ok := s.claims[id]
	if !ok || c.Status != models.ClaimStatusPending {
		return false, nil
	}
	c.Status = models.ClaimStatusPaid
	c.TxHash = &txHash
	return true, nil
}

func (s *fakeClaimStore) MarkFailed(_ context.Context, id uuid.UUID) (bool, error) {
	c, ok := s.claims[id]
	if !ok || c.Status != models.ClaimStatusPending {
		return false, nil
	}
	c.Status = models.ClaimStatusFailed
	return true, nil
}

func (s *fakeClaimStore) MarkPendingForRetry(_ context.Context, id uuid.UUID) (bool, error) {
	c, ok := s.claims[id]
	if !ok || c.Status != models.ClaimStatusFailed {
		return false, nil
	}
	c.Status = models.ClaimStatusPending
	return true, nil
}

type fakeIntentStore struct {
	intents map[string]*models.FundingIntent // keyed by bounty id
}

func (s *fakeIntentStore) Create(_ context.Context, i *models.FundingIntent) error {
	if s.intents == nil {
		s.intents = make(map[string]*models.FundingIntent)
	}
	i.ID = uuid.New()
	i.Status = models.IntentStatusPending
	copied := *i
	s.intents[i.BountyID] = &copied
	return nil
}

func (s *fakeIntentStore) GetPendingByBountyID(_ context.Context, bountyID string) (*models.FundingIntent, error) {
	i, ok := s.intents[bountyID]
	if !ok || i.Status != models.IntentStatusPending {
		return nil, nil
	}
	copied := *i
	return &copied, nil
}

func (s *fakeIntentStore) MarkConfirmed(_ context.Context, bountyID string) (bool, error) {
	i, ok := s.intents[bountyID]
	if !ok || i.Status != models.IntentStatusPending {
		return false, nil
	}
	i.Status = models.IntentStatusConfirmed
	return true, nil
}

type fakeWalletStore struct {
	wallets map[int64]string // account id -> address
}

func (s *fakeWalletStore) GetActiveByAccount(_ context.Context, accountID int64) (*models.WalletMapping, error) {
	addr, ok := s.wallets[accountID]
	if !ok {
		return nil, nil
	}
	return &models.WalletMapping{AccountID: accountID, Address: addr, IsActive: true}, nil
}

type fakeAllowlistStore struct {
	restricted map[string][]string // bounty id -> allowed addresses; absent = open
}

func (s *fakeAllowlistStore) Allowed(_ context.Context, bountyID, _, address string) (bool, error) {
	allowed, ok := s.restricted[bountyID]
	if !ok {
		return true, nil
	}
	for _, a := range allowed {
		if strings.EqualFold(a, address) {
			return true, nil
		}
	}
	return false, nil
}

// fakeChainClient scripts per-method results and records calls.
type fakeChainClient struct {
	nc      chain.NetworkConfig
	results map[string]chain.TxResult
	calls   []string
}

func (c *fakeChainClient) result(method string) chain.TxResult {
	c.calls = append(c.calls, method)
	if res, ok := c.results[method]; ok {
		return res
	}
	return chain.TxResult{Ok: true, TxHash: "0xfeed", BlockNumber: 10, GasUsed: 21000}
}

func (c *fakeChainClient) Resolve(_ context.Context, _ [32]byte, _ common.Address) chain.TxResult {
	return c.result("resolve")
}

func (c *fakeChainClient) RefundExpired(_ context.Context, _ [32]byte) chain.TxResult {
	return c.result("refundExpired")
}

func (c *fakeChainClient) GetBounty(_ context.Context, _ [32]byte) (*chain.OnChainBounty, error) {
	return nil, errors.New("not scripted")
}

func (c *fakeChainClient) ComputeBountyID(_ context.Context, _ common.Address, _ [32]byte, _ int64) ([32]byte, error) {
	return [32]byte{}, errors.New("not scripted")
}

func (c *fakeChainClient) AvailableFees(_ context.Context, _ common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (c *fakeChainClient) WithdrawFees(_ context.Context, _, _ common.Address) chain.TxResult {
	return c.result("withdrawFees")
}

func (c *fakeChainClient) SetFeeBps(_ context.Context, _ uint16) chain.TxResult {
	return c.result("setFeeBps")
}

func (c *fakeChainClient) Config() chain.NetworkConfig { return c.nc }

type fakeClientSource struct {
	clients map[string]*fakeChainClient
}

func (s *fakeClientSource) Client(alias string) (chain.SettlementClient, error) {
	c, ok := s.clients[alias]
	if !ok {
		return nil, fmt.Errorf("unknown or unconfigured alias %s", alias)
	}
	return c, nil
}

type fakeNotifier struct {
	events []notify.Event
}

func (n *fakeNotifier) Notify(_ context.Context, ev notify.Event) error {
	n.events = append(n.events, ev)
	return nil
}

func (n *fakeNotifier) kinds() []string {
	out := make([]string, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (n *fakeNotifier) has(kind string) bool {
	for _, ev := range n.events {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}

type fakePublisher struct {
	published []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, _ string, ev events.Event) error {
	p.published = append(p.published, ev)
	return nil
}
