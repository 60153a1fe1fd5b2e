package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/gitbounty/backend/internal/errs"
)

// TxResult is the value returned across the settlement boundary.
// Callers branch on Ok; failures never surface as panics or forgotten
// errors.
type TxResult struct {
	Ok          bool   `json:"ok"`
	TxHash      string `json:"tx_hash,omitempty"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	GasUsed     uint64 `json:"gas_used,omitempty"`
	Err         string `json:"error,omitempty"`
}

func failedTx(err error) TxResult {
	return TxResult{Ok: false, Err: errs.Truncate(err, 300)}
}

// OnChainBounty mirrors the escrow contract's getBounty struct.
type OnChainBounty struct {
	Sponsor  common.Address
	Token    common.Address
	Amount   *big.Int
	Deadline uint64
	Resolved bool
	Refunded bool
}

// SettlementClient is a signer-bound handle to one network's escrow
// contract.
type SettlementClient interface {
	Resolve(ctx context.Context, bountyID [32]byte, recipient common.Address) TxResult
	RefundExpired(ctx context.Context, bountyID [32]byte) TxResult
	GetBounty(ctx context.Context, bountyID [32]byte) (*OnChainBounty, error)
	ComputeBountyID(ctx context.Context, sponsor common.Address, repoIDHash [32]byte, issueNumber int64) ([32]byte, error)
	AvailableFees(ctx context.Context, token common.Address) (*big.Int, error)
	WithdrawFees(ctx context.Context, token, to common.Address) TxResult
	SetFeeBps(ctx context.Context, feeBps uint16) TxResult
	Config() NetworkConfig
}

// ClientSource resolves a network alias to its settlement client.
type ClientSource interface {
	Client(alias string) (SettlementClient, error)
}

// Factory builds one signer-bound client per network alias, lazily, and
// caches it. Replaces any notion of a single implicit "current
// network".
type Factory struct {
	reg            *Registry
	rpcTimeout     time.Duration
	receiptTimeout time.Duration
	gasLimit       uint64
	log            *zap.Logger

	mu      sync.Mutex
	clients map[string]*Client
}

func NewFactory(reg *Registry, rpcTimeout, receiptTimeout time.Duration, gasLimit uint64, log *zap.Logger) *Factory {
	return &Factory{
		reg:            reg,
		rpcTimeout:     rpcTimeout,
		receiptTimeout: receiptTimeout,
		gasLimit:       gasLimit,
		log:            log,
		clients:        make(map[string]*Client),
	}
}

func (f *Factory) Client(alias string) (SettlementClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[alias]; ok {
		return c, nil
	}

	nc, err := f.reg.Network(alias)
	if err != nil {
		return nil, err
	}
	if nc.OwnerKey() == nil {
		return nil, errs.Configuration("owner_private_key", "no operator key for alias "+alias)
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), f.rpcTimeout)
	defer cancel()

	eth, err := ethclient.DialContext(dialCtx, nc.RPCURL)
	if err != nil {
		return nil, errs.Chain(alias, "dial RPC", err)
	}

	c := &Client{
		nc:             nc,
		eth:            eth,
		contract:       bind.NewBoundContract(nc.EscrowAddress, f.reg.ABI(), eth, eth, eth),
		rpcTimeout:     f.rpcTimeout,
		receiptTimeout: f.receiptTimeout,
		gasLimit:       f.gasLimit,
		log:            f.log.With(zap.String("network", alias)),
	}
	f.clients[alias] = c

	f.log.Info("settlement client created",
		zap.String("network", alias),
		zap.String("escrow", nc.EscrowAddress.Hex()),
		zap.String("operator", nc.OwnerWallet.Hex()),
	)
	return c, nil
}

func (f *Factory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.clients {
		c.eth.Close()
	}
	f.clients = make(map[string]*Client)
}

// Client talks to one network's escrow contract with the operator key.
// All submissions for the same (network, signer) pair are serialized by
// submitMu for wallet nonce correctness; confirmation waits are not.
type Client struct {
	nc             NetworkConfig
	eth            *ethclient.Client
	contract       *bind.BoundContract
	rpcTimeout     time.Duration
	receiptTimeout time.Duration
	gasLimit       uint64
	log            *zap.Logger

	submitMu sync.Mutex
}

func (c *Client) Config() NetworkConfig { return c.nc }

func (c *Client) Resolve(ctx context.Context, bountyID [32]byte, recipient common.Address) TxResult {
	return c.transact(ctx, "resolve", bountyID, recipient)
}

func (c *Client) RefundExpired(ctx context.Context, bountyID [32]byte) TxResult {
	return c.transact(ctx, "refundExpired", bountyID)
}

func (c *Client) WithdrawFees(ctx context.Context, token, to common.Address) TxResult {
	return c.transact(ctx, "withdrawFees", token, to)
}

func (c *Client) SetFeeBps(ctx context.Context, feeBps uint16) TxResult {
	return c.transact(ctx, "setFeeBps", feeBps)
}

func (c *Client) GetBounty(ctx context.Context, bountyID [32]byte) (*OnChainBounty, error) {
	ctx, cancel := context.WithTimeout(ctx, c.rpcTimeout)
	defer cancel()

	var out []any
	opts := &bind.CallOpts{Context: ctx}
	if err := c.contract.Call(opts, &out, "getBounty", bountyID); err != nil {
		return nil, errs.Chain(c.nc.Alias, "getBounty", err)
	}

	b := &OnChainBounty{
		Sponsor:  out[0].(common.Address),
		Token:    out[1].(common.Address),
		Amount:   out[2].(*big.Int),
		Deadline: out[3].(uint64),
		Resolved: out[4].(bool),
		Refunded: out[5].(bool),
	}
	return b, nil
}

func (c *Client) ComputeBountyID(ctx context.Context, sponsor common.Address, repoIDHash [32]byte, issueNumber int64) ([32]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.rpcTimeout)
	defer cancel()

	var out []any
	opts := &bind.CallOpts{Context: ctx}
	if err := c.contract.Call(opts, &out, "computeBountyId", sponsor, repoIDHash, big.NewInt(issueNumber)); err != nil {
		return [32]byte{}, errs.Chain(c.nc.Alias, "computeBountyId", err)
	}
	return out[0].([32]byte), nil
}

func (c *Client) AvailableFees(ctx context.Context, token common.Address) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.rpcTimeout)
	defer cancel()

	var out []any
	opts := &bind.CallOpts{Context: ctx}
	if err := c.contract.Call(opts, &out, "availableFees", token); err != nil {
		return nil, errs.Chain(c.nc.Alias, "availableFees", err)
	}
	return out[0].(*big.Int), nil
}

// transact submits a state-changing call and blocks until mined or the
// receipt timeout elapses. Submission (nonce assignment + broadcast)
// holds submitMu; the confirmation wait does not, so slow networks do
// not serialize unrelated bounties beyond the send itself.
func (c *Client) transact(ctx context.Context, method string, args ...any) TxResult {
	tx, err := c.submit(ctx, method, args...)
	if err != nil {
		return failedTx(err)
	}

	c.log.Info("transaction submitted",
		zap.String("method", method),
		zap.String("tx_hash", tx.Hash().Hex()),
	)

	waitCtx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, c.eth, tx)
	if err != nil {
		return failedTx(errs.Chain(c.nc.Alias, method+" confirmation", err))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return TxResult{
			Ok:          false,
			TxHash:      tx.Hash().Hex(),
			BlockNumber: receipt.BlockNumber.Uint64(),
			GasUsed:     receipt.GasUsed,
			Err:         fmt.Sprintf("%s reverted in block %d", method, receipt.BlockNumber.Uint64()),
		}
	}

	return TxResult{
		Ok:          true,
		TxHash:      tx.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}
}

func (c *Client) submit(ctx context.Context, method string, args ...any) (*types.Transaction, error) {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	sendCtx, cancel := context.WithTimeout(ctx, c.rpcTimeout)
	defer cancel()

	opts, err := c.transactOpts(sendCtx)
	if err != nil {
		return nil, err
	}

	tx, err := c.contract.Transact(opts, method, args...)
	if err != nil {
		return nil, errs.Chain(c.nc.Alias, method, err)
	}
	return tx, nil
}

// transactOpts applies the network's fee strategy. Chains without
// EIP-1559 support reject dynamic-fee transactions outright, so they
// get a legacy (type 0) transaction with an explicitly fetched gas
// price; 1559-capable chains use bind's default fee estimation.
func (c *Client) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.nc.OwnerKey(), big.NewInt(c.nc.ChainID))
	if err != nil {
		return nil, errs.Chain(c.nc.Alias, "create transactor", err)
	}
	opts.Context = ctx
	opts.GasLimit = c.gasLimit

	if !c.nc.Supports1559 {
		gasPrice, err := c.eth.SuggestGasPrice(ctx)
		if err != nil {
			return nil, errs.Chain(c.nc.Alias, "suggest gas price", err)
		}
		opts.GasPrice = gasPrice
	}

	return opts, nil
}
