package services

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/gitbounty/backend/internal/chain"
)

func newTestFeeService(client *fakeChainClient) *FeeService {
	return NewFeeService(&fakeClientSource{clients: map[string]*fakeChainClient{"sepolia": client}}, zap.NewNop())
}

func TestAvailableFees(t *testing.T) {
	client := &fakeChainClient{nc: chain.NetworkConfig{Alias: "sepolia", TokenSymbol: "USDC"}}
	svc := newTestFeeService(client)

	available, token, err := svc.AvailableFees(context.Background(), "sepolia")
	if err != nil {
		t.Fatal(err)
	}
	if token != "USDC" {
		t.Errorf("token = %q, want USDC", token)
	}
	if available == nil {
		t.Error("available must not be nil")
	}

	if _, _, err := svc.AvailableFees(context.Background(), "atlantis"); err == nil {
		t.Error("unknown network must fail")
	}
}

func TestWithdrawFees(t *testing.T) {
	client := &fakeChainClient{nc: chain.NetworkConfig{Alias: "sepolia"}}
	svc := newTestFeeService(client)

	res := svc.WithdrawFees(context.Background(), "sepolia", testRecipient)
	if !res.Ok {
		t.Fatalf("withdraw failed: %s", res.Err)
	}
	if len(client.calls) != 1 || client.calls[0] != "withdrawFees" {
		t.Errorf("chain calls = %v", client.calls)
	}
}

func TestWithdrawFeesValidation(t *testing.T) {
	client := &fakeChainClient{}
	svc := newTestFeeService(client)

	if res := svc.WithdrawFees(context.Background(), "sepolia", "not-an-address"); res.Ok {
		t.Error("bad recipient must fail before the chain call")
	}
	if res := svc.WithdrawFees(context.Background(), "atlantis", testRecipient); res.Ok {
		t.Error("unknown network must fail")
	}
	if len(client.calls) != 0 {
		t.Errorf("no chain call expected, got %v", client.calls)
	}
}

func TestSetFeeBpsBounds(t *testing.T) {
	client := &fakeChainClient{}
	svc := newTestFeeService(client)

	if res := svc.SetFeeBps(context.Background(), "sepolia", -1); res.Ok {
		t.Error("negative bps must be rejected")
	}
	if res := svc.SetFeeBps(context.Background(), "sepolia", 1001); res.Ok {
		t.Error("bps over 1000 must be rejected")
	}
	if len(client.calls) != 0 {
		t.Errorf("no chain call for out-of-bounds bps, got %v", client.calls)
	}

	if res := svc.SetFeeBps(context.Background(), "sepolia", 250); !res.Ok {
		t.Errorf("valid bps rejected: %s", res.Err)
	}
}
