package services

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/gitbounty/backend/internal/chain"
	"github.com/gitbounty/backend/internal/errs"
)

// FeeService exposes the escrow contract's fee administration to the
// admin API. Every call goes through the same signer-bound clients as
// settlement, so fee withdrawals share the per-network nonce ordering.
type FeeService struct {
	clients chain.ClientSource
	log     *zap.Logger
}

func NewFeeService(clients chain.ClientSource, log *zap.Logger) *FeeService {
	return &FeeService{clients: clients, log: log}
}

// AvailableFees reads the accrued protocol fees for the network's
// configured payout token. The token symbol is returned alongside so
// the admin UI can label the amount.
func (s *FeeService) AvailableFees(ctx context.Context, networkAlias string) (*big.Int, string, error) {
	client, err := s.clients.Client(networkAlias)
	if err != nil {
		return nil, "", err
	}
	nc := client.Config()
	available, err := client.AvailableFees(ctx, nc.TokenAddress)
	if err != nil {
		return nil, "", err
	}
	return available, nc.TokenSymbol, nil
}

// WithdrawFees sends accrued fees to the given address.
func (s *FeeService) WithdrawFees(ctx context.Context, networkAlias, to string) chain.TxResult {
	addr, err := chain.ParseAddress(to)
	if err != nil {
		return chain.TxResult{Ok: false, Err: err.Error()}
	}
	client, err := s.clients.Client(networkAlias)
	if err != nil {
		return chain.TxResult{Ok: false, Err: err.Error()}
	}

	res := client.WithdrawFees(ctx, client.Config().TokenAddress, addr)
	if res.Ok {
		s.log.Info("fees withdrawn",
			zap.String("network", networkAlias),
			zap.String("to", to),
			zap.String("tx_hash", res.TxHash),
		)
	}
	return res
}

// SetFeeBps updates the protocol fee in basis points. Bounds are
// checked here so a typo never reaches the contract.
func (s *FeeService) SetFeeBps(ctx context.Context, networkAlias string, feeBps int) chain.TxResult {
	if feeBps < 0 || feeBps > 1000 {
		err := errs.Validation("fee_bps", fmt.Sprintf("%d", feeBps), "must be between 0 and 1000")
		return chain.TxResult{Ok: false, Err: err.Error()}
	}
	client, err := s.clients.Client(networkAlias)
	if err != nil {
		return chain.TxResult{Ok: false, Err: err.Error()}
	}

	res := client.SetFeeBps(ctx, uint16(feeBps))
	if res.Ok {
		s.log.Info("fee updated",
			zap.String("network", networkAlias),
			zap.Int("fee_bps", feeBps),
			zap.String("tx_hash", res.TxHash),
		)
	}
	return res
}
