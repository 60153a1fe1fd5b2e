package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gitbounty/backend/internal/chain"
	"github.com/gitbounty/backend/internal/github"
	"github.com/gitbounty/backend/internal/models"
	"github.com/gitbounty/backend/internal/notify"
)

type claimFixture struct {
	svc      *ClaimService
	bounties *fakeBountyStore
	claims   *fakeClaimStore
	wallets  *fakeWalletStore
	client   *fakeChainClient
	notifier *fakeNotifier
}

func newClaimFixture(bounties *fakeBountyStore, claims *fakeClaimStore, wallets map[int64]string, restricted map[string][]string) *claimFixture {
	client := &fakeChainClient{nc: chain.NetworkConfig{Alias: "sepolia", ExplorerURL: "https://sepolia.etherscan.io"}}
	source := &fakeClientSource{clients: map[string]*fakeChainClient{"sepolia": client}}
	notifier := &fakeNotifier{}
	publisher := &fakePublisher{}
	walletStore := &fakeWalletStore{wallets: wallets}
	allowlist := &fakeAllowlistStore{restricted: restricted}

	settlement := NewSettlementService(bounties, claims, source, notifier, publisher, zap.NewNop())
	svc := NewClaimService(
		bounties, claims, walletStore, allowlist,
		settlement, notifier, publisher,
		"stage", "https://app.example.test/fund", "/bounty",
		zap.NewNop(),
	)
	return &claimFixture{svc: svc, bounties: bounties, claims: claims, wallets: walletStore, client: client, notifier: notifier}
}

func prChanged(body string) github.PullRequestChanged {
	return github.PullRequestChanged{
		Repo: github.Repository{FullName: "acme/widgets", ID: 99},
		PR:   github.PullRequest{Number: 7, Body: body, User: github.User{Login: "bob", ID: 42}},
	}
}

func prMerged() github.PullRequestMerged {
	return github.PullRequestMerged{
		Repo: github.Repository{FullName: "acme/widgets", ID: 99},
		PR:   github.PullRequest{Number: 7, Body: "Fixes #12", Merged: true, User: github.User{Login: "bob", ID: 42}},
	}
}

func TestPullRequestChangedRegistersClaim(t *testing.T) {
	f := newClaimFixture(newFakeBountyStore(openBounty()), newFakeClaimStore(), map[int64]string{42: testRecipient}, nil)

	if err := f.svc.HandleEvent(context.Background(), prChanged("Fixes #12")); err != nil {
		t.Fatal(err)
	}

	registered, _ := f.claims.ListByPR(context.Background(), "acme/widgets", 7)
	if len(registered) != 1 {
		t.Fatalf("claims = %d, want 1", len(registered))
	}
	if registered[0].Status != models.ClaimStatusPending {
		t.Errorf("claim status = %q, want pending", registered[0].Status)
	}
	if !f.notifier.has(notify.KindClaimRegistered) {
		t.Errorf("expected registration comment, got %v", f.notifier.kinds())
	}

	// Registration never settles anything.
	if len(f.client.calls) != 0 {
		t.Errorf("no chain call expected on registration, got %v", f.client.calls)
	}
	stored, _ := f.bounties.GetByID(context.Background(), testBountyID)
	if stored.Status != models.BountyStatusOpen {
		t.Error("registration must not mutate the bounty")
	}
}

func TestPullRequestChangedIdempotent(t *testing.T) {
	f := newClaimFixture(newFakeBountyStore(openBounty()), newFakeClaimStore(), map[int64]string{42: testRecipient}, nil)

	for i := 0; i < 3; i++ {
		if err := f.svc.HandleEvent(context.Background(), prChanged("Fixes #12")); err != nil {
			t.Fatal(err)
		}
	}

	registered, _ := f.claims.ListByPR(context.Background(), "acme/widgets", 7)
	if len(registered) != 1 {
		t.Errorf("re-delivery created %d claims, want 1", len(registered))
	}
	if got := len(f.notifier.events); got != 1 {
		t.Errorf("re-delivery posted %d comments, want 1", got)
	}
}

func TestPullRequestChangedNoWallet(t *testing.T) {
	f := newClaimFixture(newFakeBountyStore(openBounty()), newFakeClaimStore(), nil, nil)

	if err := f.svc.HandleEvent(context.Background(), prChanged("Closes #12")); err != nil {
		t.Fatal(err)
	}
	if !f.notifier.has(notify.KindWalletRequired) {
		t.Errorf("expected wallet reminder, got %v", f.notifier.kinds())
	}
}

func TestPullRequestChangedNoRefs(t *testing.T) {
	f := newClaimFixture(newFakeBountyStore(openBounty()), newFakeClaimStore(), map[int64]string{42: testRecipient}, nil)

	if err := f.svc.HandleEvent(context.Background(), prChanged("Refactoring, related to #12")); err != nil {
		t.Fatal(err)
	}
	registered, _ := f.claims.ListByPR(context.Background(), "acme/widgets", 7)
	if len(registered) != 0 {
		t.Errorf("claims = %d, want none without a closing keyword", len(registered))
	}
}

func TestMergeSettlesClaim(t *testing.T) {
	bounty := openBounty()
	claim := pendingClaim(bounty.BountyID)
	f := newClaimFixture(newFakeBountyStore(bounty), newFakeClaimStore(claim), map[int64]string{42: testRecipient}, nil)

	if err := f.svc.HandleEvent(context.Background(), prMerged()); err != nil {
		t.Fatal(err)
	}

	stored, _ := f.bounties.GetByID(context.Background(), bounty.BountyID)
	if stored.Status != models.BountyStatusResolved {
		t.Errorf("bounty status = %q, want resolved", stored.Status)
	}
	storedClaim, _ := f.claims.GetByID(context.Background(), claim.ID)
	if storedClaim.Status != models.ClaimStatusPaid {
		t.Errorf("claim status = %q, want paid", storedClaim.Status)
	}
	if !f.notifier.has(notify.KindBountyPaid) {
		t.Error("payout must be announced")
	}
}

func TestMergeWithoutWalletStaysPending(t *testing.T) {
	bounty := openBounty()
	claim := pendingClaim(bounty.BountyID)
	f := newClaimFixture(newFakeBountyStore(bounty), newFakeClaimStore(claim), nil, nil)

	if err := f.svc.HandleEvent(context.Background(), prMerged()); err != nil {
		t.Fatal(err)
	}

	// Missing wallet is not a failure: the claim waits for the link.
	storedClaim, _ := f.claims.GetByID(context.Background(), claim.ID)
	if storedClaim.Status != models.ClaimStatusPending {
		t.Errorf("claim status = %q, want pending", storedClaim.Status)
	}
	stored, _ := f.bounties.GetByID(context.Background(), bounty.BountyID)
	if stored.Status != models.BountyStatusOpen {
		t.Errorf("bounty status = %q, want open", stored.Status)
	}
	if len(f.client.calls) != 0 {
		t.Errorf("no chain call without a wallet, got %v", f.client.calls)
	}
	if !f.notifier.has(notify.KindWalletRequired) {
		t.Error("contributor must be reminded to link a wallet")
	}
}

func TestMergeAllowlistViolation(t *testing.T) {
	bounty := openBounty()
	claim := pendingClaim(bounty.BountyID)
	restricted := map[string][]string{bounty.BountyID: {"0x9999999999999999999999999999999999999999"}}
	f := newClaimFixture(newFakeBountyStore(bounty), newFakeClaimStore(claim), map[int64]string{42: testRecipient}, restricted)

	if err := f.svc.HandleEvent(context.Background(), prMerged()); err != nil {
		t.Fatal(err)
	}

	if len(f.client.calls) != 0 {
		t.Errorf("allowlist violation must block the chain call, got %v", f.client.calls)
	}
	stored, _ := f.bounties.GetByID(context.Background(), bounty.BountyID)
	if stored.Status != models.BountyStatusOpen {
		t.Error("bounty must stay open on allowlist rejection")
	}
	if !f.notifier.has(notify.KindAllowlistRejected) {
		t.Errorf("expected allowlist rejection notice, got %v", f.notifier.kinds())
	}
}

func TestMergeSkipsAlreadySettledBounty(t *testing.T) {
	bounty := openBounty()

	first := pendingClaim(bounty.BountyID)
	second := pendingClaim(bounty.BountyID)
	second.PRNumber = 8

	f := newClaimFixture(newFakeBountyStore(bounty), newFakeClaimStore(first, second), map[int64]string{42: testRecipient}, nil)

	// First PR merges and wins.
	if err := f.svc.HandleEvent(context.Background(), prMerged()); err != nil {
		t.Fatal(err)
	}

	// Second PR merges afterwards: bounty is no longer open, no second
	// chain call happens.
	secondMerge := prMerged()
	secondMerge.PR.Number = 8
	if err := f.svc.HandleEvent(context.Background(), secondMerge); err != nil {
		t.Fatal(err)
	}

	if len(f.client.calls) != 1 {
		t.Errorf("chain calls = %v, want exactly one resolve", f.client.calls)
	}
	storedSecond, _ := f.claims.GetByID(context.Background(), second.ID)
	if storedSecond.Status != models.ClaimStatusPending {
		t.Errorf("losing claim status = %q, want pending", storedSecond.Status)
	}
}

func TestIssueOpenedPostsFundingCTA(t *testing.T) {
	f := newClaimFixture(newFakeBountyStore(), newFakeClaimStore(), nil, nil)

	ev := github.IssueOpened{
		Repo:        github.Repository{FullName: "acme/widgets", ID: 99},
		IssueNumber: 12,
	}
	if err := f.svc.HandleEvent(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	if len(f.notifier.events) != 1 || f.notifier.events[0].Kind != notify.KindFundingCTA {
		t.Fatalf("expected one funding CTA, got %v", f.notifier.kinds())
	}
	if !strings.Contains(f.notifier.events[0].FundURL, "issue=12") {
		t.Errorf("fund URL missing issue number: %s", f.notifier.events[0].FundURL)
	}
}

func TestCommandStatus(t *testing.T) {
	f := newClaimFixture(newFakeBountyStore(openBounty()), newFakeClaimStore(), nil, nil)

	ev := github.IssueCommentCreated{
		Repo:        github.Repository{FullName: "acme/widgets", ID: 99},
		IssueNumber: 12,
		Comment:     github.Comment{Body: "/bounty status"},
	}
	if err := f.svc.HandleEvent(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	if len(f.notifier.events) != 1 || f.notifier.events[0].Kind != notify.KindCommandReply {
		t.Fatalf("expected one command reply, got %v", f.notifier.kinds())
	}
	if !strings.Contains(f.notifier.events[0].Body, "USDC") {
		t.Errorf("status reply missing bounty details: %q", f.notifier.events[0].Body)
	}

	// Commands are read-only.
	stored, _ := f.bounties.GetByID(context.Background(), testBountyID)
	if stored.Status != models.BountyStatusOpen {
		t.Error("status command must not mutate state")
	}
}

func TestCommandAssignIsAdvisory(t *testing.T) {
	f := newClaimFixture(newFakeBountyStore(openBounty()), newFakeClaimStore(), nil, nil)

	ev := github.IssueCommentCreated{
		Repo:        github.Repository{FullName: "acme/widgets", ID: 99},
		IssueNumber: 12,
		Comment:     github.Comment{Body: "/bounty assign", User: github.User{Login: "bob", ID: 42}},
	}
	if err := f.svc.HandleEvent(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	if len(f.notifier.events) != 1 || !strings.Contains(f.notifier.events[0].Body, "@bob") {
		t.Fatalf("expected an advisory reply mentioning the commenter, got %v", f.notifier.events)
	}
	if got, _ := f.claims.ListByBounty(context.Background(), openBounty().BountyID); len(got) != 0 {
		t.Error("assign must not create claims")
	}
}

func TestCommandIgnoresUnprefixedComments(t *testing.T) {
	f := newClaimFixture(newFakeBountyStore(), newFakeClaimStore(), nil, nil)

	ev := github.IssueCommentCreated{
		Repo:        github.Repository{FullName: "acme/widgets", ID: 99},
		IssueNumber: 12,
		Comment:     github.Comment{Body: "nice work everyone"},
	}
	if err := f.svc.HandleEvent(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if len(f.notifier.events) != 0 {
		t.Errorf("plain comments must not trigger replies, got %v", f.notifier.kinds())
	}
}

func TestCommandUnknown(t *testing.T) {
	f := newClaimFixture(newFakeBountyStore(), newFakeClaimStore(), nil, nil)

	ev := github.IssueCommentCreated{
		Repo:        github.Repository{FullName: "acme/widgets", ID: 99},
		IssueNumber: 12,
		Comment:     github.Comment{Body: "/bounty frobnicate"},
	}
	if err := f.svc.HandleEvent(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if len(f.notifier.events) != 1 || !strings.Contains(f.notifier.events[0].Body, "Unknown command") {
		t.Fatalf("expected unknown-command reply, got %v", f.notifier.events)
	}
}

func TestRetryClaimAfterFailure(t *testing.T) {
	bounty := openBounty()
	claim := pendingClaim(bounty.BountyID)
	claim.Status = models.ClaimStatusFailed
	f := newClaimFixture(newFakeBountyStore(bounty), newFakeClaimStore(claim), map[int64]string{42: testRecipient}, nil)

	if err := f.svc.RetryClaim(context.Background(), claim); err != nil {
		t.Fatal(err)
	}

	storedClaim, _ := f.claims.GetByID(context.Background(), claim.ID)
	if storedClaim.Status != models.ClaimStatusPaid {
		t.Errorf("retried claim status = %q, want paid", storedClaim.Status)
	}
	stored, _ := f.bounties.GetByID(context.Background(), bounty.BountyID)
	if stored.Status != models.BountyStatusResolved {
		t.Errorf("bounty status = %q, want resolved", stored.Status)
	}
}

func TestRetryClaimPaidRejected(t *testing.T) {
	bounty := openBounty()
	claim := pendingClaim(bounty.BountyID)
	claim.Status = models.ClaimStatusPaid
	f := newClaimFixture(newFakeBountyStore(bounty), newFakeClaimStore(claim), map[int64]string{42: testRecipient}, nil)

	if err := f.svc.RetryClaim(context.Background(), claim); err == nil {
		t.Error("paid claim must not be retryable")
	}
}

func TestRunStuckClaimScan(t *testing.T) {
	old := pendingClaim(testBountyID)
	f := newClaimFixture(newFakeBountyStore(), newFakeClaimStore(old), nil, nil)
	f.claims.claims[old.ID].CreatedAt = time.Now().Add(-48 * time.Hour)

	count, err := f.svc.RunStuckClaimScan(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("stuck count = %d, want 1", count)
	}
	if !f.notifier.has(notify.KindStuckClaims) {
		t.Errorf("expected stuck-claims alert, got %v", f.notifier.kinds())
	}

	// Detection only: the claim itself is untouched.
	stored, _ := f.claims.GetByID(context.Background(), old.ID)
	if stored.Status != models.ClaimStatusPending {
		t.Errorf("stuck claim status = %q, want pending", stored.Status)
	}
}
