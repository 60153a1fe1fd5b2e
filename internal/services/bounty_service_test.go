package services

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gitbounty/backend/internal/chain"
	"github.com/gitbounty/backend/internal/config"
	"github.com/gitbounty/backend/internal/models"
	"github.com/gitbounty/backend/internal/notify"
)

func displayRegistry(t *testing.T) *chain.Registry {
	t.Helper()
	t.Setenv("SEPOLIA_RPC_URL", "https://rpc.example.test")
	t.Setenv("SEPOLIA_ESCROW_ADDRESS", "0x1111111111111111111111111111111111111111")
	t.Setenv("SEPOLIA_TOKEN_ADDRESS", "0x2222222222222222222222222222222222222222")
	t.Setenv("SEPOLIA_TOKEN_SYMBOL", "USDC")
	t.Setenv("SEPOLIA_TOKEN_DECIMALS", "6")

	cfg := &config.Config{
		TestnetAliases:      []string{"sepolia"},
		DefaultTestnetAlias: "sepolia",
	}
	r, err := chain.BuildRegistry(cfg, chain.ModeDisplay, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func newBountyFixture(t *testing.T, bounties *fakeBountyStore) (*BountyService, *fakeIntentStore, *fakeNotifier) {
	t.Helper()
	intents := &fakeIntentStore{}
	notifier := &fakeNotifier{}
	source := &fakeClientSource{clients: map[string]*fakeChainClient{"sepolia": {}}}
	svc := NewBountyService(bounties, newFakeClaimStore(), intents, displayRegistry(t), source, notifier, &fakePublisher{}, zap.NewNop())
	return svc, intents, notifier
}

func TestIngestBountyCreatedMatchesIntent(t *testing.T) {
	bounties := newFakeBountyStore()
	svc, intents, notifier := newBountyFixture(t, bounties)

	intents.intents = map[string]*models.FundingIntent{
		testBountyID: {
			BountyID:     testBountyID,
			RepoFullName: "acme/widgets",
			RepoID:       99,
			IssueNumber:  12,
			Network:      "sepolia",
			Environment:  "stage",
			Status:       models.IntentStatusPending,
		},
	}

	err := svc.IngestBountyCreated(context.Background(), "sepolia", testBountyID,
		"0x1111111111111111111111111111111111111111", "25000000",
		time.Now().Add(30*24*time.Hour).Unix(), "0xfund")
	if err != nil {
		t.Fatal(err)
	}

	b, _ := bounties.GetByID(context.Background(), testBountyID)
	if b == nil {
		t.Fatal("bounty not recorded")
	}
	if b.RepoFullName != "acme/widgets" || b.IssueNumber != 12 {
		t.Errorf("intent metadata not carried over: %+v", b)
	}
	if b.Status != models.BountyStatusOpen {
		t.Errorf("status = %q, want open", b.Status)
	}
	if b.TokenSymbol != "USDC" || b.ChainID != 11155111 {
		t.Errorf("network config not applied: %s/%d", b.TokenSymbol, b.ChainID)
	}
	if b.FundTxHash == nil || *b.FundTxHash != "0xfund" {
		t.Error("fund tx hash not recorded")
	}

	if intents.intents[testBountyID].Status != models.IntentStatusConfirmed {
		t.Error("matched intent must be confirmed")
	}
	if !notifier.has(notify.KindBountyAnnounced) {
		t.Errorf("bounty must be announced on the issue, got %v", notifier.kinds())
	}
}

func TestIngestBountyCreatedWithoutIntent(t *testing.T) {
	bounties := newFakeBountyStore()
	svc, _, notifier := newBountyFixture(t, bounties)

	err := svc.IngestBountyCreated(context.Background(), "sepolia", testBountyID,
		"0x1111111111111111111111111111111111111111", "25000000",
		time.Now().Unix(), "0xfund")
	if err != nil {
		t.Fatal(err)
	}

	if b, _ := bounties.GetByID(context.Background(), testBountyID); b != nil {
		t.Error("unattributed bounty must not be recorded")
	}
	if len(notifier.events) != 0 {
		t.Errorf("no notifications for unattributed bounty, got %v", notifier.kinds())
	}
}

func TestIngestBountyFunded(t *testing.T) {
	bounty := openBounty()
	bounty.Amount = "1000"
	bounties := newFakeBountyStore(bounty)
	svc, _, _ := newBountyFixture(t, bounties)

	if err := svc.IngestBountyFunded(context.Background(), "sepolia", bounty.BountyID, "500", "0xtopup"); err != nil {
		t.Fatal(err)
	}
	b, _ := bounties.GetByID(context.Background(), bounty.BountyID)
	if b.Amount != "1500" {
		t.Errorf("amount = %s, want 1500", b.Amount)
	}
}

func TestIngestBountyFundedTerminalDropped(t *testing.T) {
	bounty := openBounty()
	bounty.Amount = "1000"
	bounty.Status = models.BountyStatusResolved
	bounties := newFakeBountyStore(bounty)
	svc, _, _ := newBountyFixture(t, bounties)

	if err := svc.IngestBountyFunded(context.Background(), "sepolia", bounty.BountyID, "500", "0xtopup"); err != nil {
		t.Fatal(err)
	}
	b, _ := bounties.GetByID(context.Background(), bounty.BountyID)
	if b.Amount != "1000" {
		t.Errorf("terminal bounty amount changed to %s", b.Amount)
	}
}

func TestDeclareFundingIntentUnknownNetwork(t *testing.T) {
	svc, _, _ := newBountyFixture(t, newFakeBountyStore())

	intent := &models.FundingIntent{
		RepoFullName:   "acme/widgets",
		RepoID:         99,
		IssueNumber:    12,
		SponsorAddress: "0x1111111111111111111111111111111111111111",
		Network:        "atlantis",
	}
	if err := svc.DeclareFundingIntent(context.Background(), intent); err == nil {
		t.Error("unknown network must be rejected")
	}
}
