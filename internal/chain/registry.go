package chain

import (
	"crypto/ecdsa"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/gitbounty/backend/internal/config"
	"github.com/gitbounty/backend/internal/errs"
)

type Group string

const (
	GroupMainnet Group = "mainnet"
	GroupTestnet Group = "testnet"
)

// Mode controls how an empty registry is treated. A server cannot run
// without networks; a display surface degrades to an empty list.
type Mode int

const (
	ModeServer Mode = iota
	ModeDisplay
)

// baseline is the curated per-alias configuration. Env overrides supply
// the deployment-specific parts (RPC endpoint, contract addresses,
// token metadata, operator credentials).
type baseline struct {
	ChainID        int64
	Name           string
	NativeCurrency string
	Supports1559   bool
	ExplorerURL    string
}

var baselines = map[string]baseline{
	// mainnet group
	"ethereum": {ChainID: 1, Name: "Ethereum", NativeCurrency: "ETH", Supports1559: true, ExplorerURL: "https://etherscan.io"},
	"base":     {ChainID: 8453, Name: "Base", NativeCurrency: "ETH", Supports1559: true, ExplorerURL: "https://basescan.org"},
	"polygon":  {ChainID: 137, Name: "Polygon", NativeCurrency: "POL", Supports1559: true, ExplorerURL: "https://polygonscan.com"},
	"bsc":      {ChainID: 56, Name: "BNB Smart Chain", NativeCurrency: "BNB", Supports1559: false, ExplorerURL: "https://bscscan.com"},

	// testnet group
	"sepolia":      {ChainID: 11155111, Name: "Sepolia", NativeCurrency: "ETH", Supports1559: true, ExplorerURL: "https://sepolia.etherscan.io"},
	"base-sepolia": {ChainID: 84532, Name: "Base Sepolia", NativeCurrency: "ETH", Supports1559: true, ExplorerURL: "https://sepolia.basescan.org"},
	"amoy":         {ChainID: 80002, Name: "Polygon Amoy", NativeCurrency: "POL", Supports1559: true, ExplorerURL: "https://amoy.polygonscan.com"},
	"bsc-testnet":  {ChainID: 97, Name: "BNB Smart Chain Testnet", NativeCurrency: "tBNB", Supports1559: false, ExplorerURL: "https://testnet.bscscan.com"},
}

// NetworkConfig is the immutable per-network configuration. Built once,
// then shared read-only across all concurrent deliveries.
type NetworkConfig struct {
	Alias          string `json:"alias"`
	Group          Group  `json:"group"`
	ChainID        int64  `json:"chain_id"`
	Name           string `json:"name"`
	NativeCurrency string `json:"native_currency"`
	Supports1559   bool   `json:"supports_1559"`
	ExplorerURL    string `json:"explorer_url"`

	RPCURL        string         `json:"-"`
	EscrowAddress common.Address `json:"escrow_address"`
	TokenAddress  common.Address `json:"token_address"`
	TokenSymbol   string         `json:"token_symbol"`
	TokenDecimals int            `json:"token_decimals"`
	OwnerWallet   common.Address `json:"-"`

	ownerKey *ecdsa.PrivateKey
}

// OwnerKey returns the network operator's signing key. Nil in display
// mode.
func (n NetworkConfig) OwnerKey() *ecdsa.PrivateKey { return n.ownerKey }

type Registry struct {
	networks map[string]NetworkConfig
	defaults map[Group]string
	abi      abi.ABI
}

// envReader is indirected for tests.
type envReader func(alias, suffix string) string

// BuildRegistry validates the environment-declared alias groups into an
// immutable registry. A single invalid alias is skipped (logged once),
// never fatal for the others. An empty result is fatal in ModeServer.
func BuildRegistry(cfg *config.Config, mode Mode, log *zap.Logger) (*Registry, error) {
	return buildRegistry(cfg, mode, config.AliasEnv, log)
}

func buildRegistry(cfg *config.Config, mode Mode, env envReader, log *zap.Logger) (*Registry, error) {
	escrowABI, err := BuildEscrowABI()
	if err != nil {
		return nil, errs.Configuration("escrow_abi", err.Error())
	}

	r := &Registry{
		networks: make(map[string]NetworkConfig),
		defaults: map[Group]string{
			GroupMainnet: cfg.DefaultMainnetAlias,
			GroupTestnet: cfg.DefaultTestnetAlias,
		},
		abi: escrowABI,
	}

	groups := map[Group][]string{
		GroupMainnet: cfg.MainnetAliases,
		GroupTestnet: cfg.TestnetAliases,
	}

	for group, aliases := range groups {
		for _, alias := range aliases {
			nc, err := loadNetwork(alias, group, mode, env)
			if err != nil {
				log.Warn("skipping invalid network alias",
					zap.String("alias", alias),
					zap.String("group", string(group)),
					zap.Error(err),
				)
				continue
			}
			r.networks[alias] = nc
			log.Info("network registered",
				zap.String("alias", alias),
				zap.String("group", string(group)),
				zap.Int64("chain_id", nc.ChainID),
				zap.Bool("supports_1559", nc.Supports1559),
			)
		}
	}

	if len(r.networks) == 0 && mode == ModeServer {
		return nil, errs.Configuration("blockchain", "no valid networks configured")
	}

	return r, nil
}

func loadNetwork(alias string, group Group, mode Mode, env envReader) (NetworkConfig, error) {
	base, ok := baselines[alias]
	if !ok {
		return NetworkConfig{}, errs.Validation("alias", alias, "no curated baseline for this alias")
	}

	rpcURL := env(alias, "RPC_URL")
	if rpcURL == "" {
		return NetworkConfig{}, errs.Validation("rpc_url", alias, "missing RPC URL")
	}

	escrowAddr := env(alias, "ESCROW_ADDRESS")
	if !common.IsHexAddress(escrowAddr) {
		return NetworkConfig{}, errs.Validation("escrow_address", escrowAddr, "not a 20-byte hex address")
	}

	tokenAddr := env(alias, "TOKEN_ADDRESS")
	if !common.IsHexAddress(tokenAddr) {
		return NetworkConfig{}, errs.Validation("token_address", tokenAddr, "not a 20-byte hex address")
	}

	symbol := env(alias, "TOKEN_SYMBOL")
	if len(symbol) < 2 || len(symbol) > 12 {
		return NetworkConfig{}, errs.Validation("token_symbol", symbol, "length must be 2-12")
	}

	decimals, err := strconv.Atoi(env(alias, "TOKEN_DECIMALS"))
	if err != nil || decimals < 0 || decimals > 18 {
		return NetworkConfig{}, errs.Validation("token_decimals", env(alias, "TOKEN_DECIMALS"), "must be an integer 0-18")
	}

	nc := NetworkConfig{
		Alias:          alias,
		Group:          group,
		ChainID:        base.ChainID,
		Name:           base.Name,
		NativeCurrency: base.NativeCurrency,
		Supports1559:   base.Supports1559,
		ExplorerURL:    base.ExplorerURL,
		RPCURL:         rpcURL,
		EscrowAddress:  common.HexToAddress(escrowAddr),
		TokenAddress:   common.HexToAddress(tokenAddr),
		TokenSymbol:    symbol,
		TokenDecimals:  decimals,
	}

	// Operator credentials are only loaded (and required) when the
	// registry backs settlement. Display surfaces never hold keys.
	if mode == ModeServer {
		ownerWallet := env(alias, "OWNER_WALLET")
		if !common.IsHexAddress(ownerWallet) {
			return NetworkConfig{}, errs.Validation("owner_wallet", ownerWallet, "not a 20-byte hex address")
		}
		key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(env(alias, "OWNER_PRIVATE_KEY"), "0x"))
		if err != nil {
			return NetworkConfig{}, errs.Validation("owner_private_key", alias, "unparseable private key")
		}
		derived := ethcrypto.PubkeyToAddress(key.PublicKey)
		if derived != common.HexToAddress(ownerWallet) {
			return NetworkConfig{}, errs.Validation("owner_wallet", ownerWallet, "does not match OWNER_PRIVATE_KEY")
		}
		nc.OwnerWallet = derived
		nc.ownerKey = key
	}

	return nc, nil
}

// Network looks up a validated alias.
func (r *Registry) Network(alias string) (NetworkConfig, error) {
	nc, ok := r.networks[alias]
	if !ok {
		return NetworkConfig{}, errs.Validation("network", alias, "unknown or unconfigured alias")
	}
	return nc, nil
}

func (r *Registry) Has(alias string) bool {
	_, ok := r.networks[alias]
	return ok
}

// DefaultNetwork resolves the declared default alias for a group. The
// default must itself be a member of the group's validated set.
func (r *Registry) DefaultNetwork(group Group) (NetworkConfig, error) {
	alias := r.defaults[group]
	if alias == "" {
		return NetworkConfig{}, errs.Configuration("default_"+string(group)+"_alias", "not declared")
	}
	nc, ok := r.networks[alias]
	if !ok || nc.Group != group {
		return NetworkConfig{}, errs.Configuration("default_"+string(group)+"_alias", "declared default "+alias+" is not a validated member of the group")
	}
	return nc, nil
}

// Aliases returns the validated aliases, sorted for stable output.
func (r *Registry) Aliases() []string {
	out := make([]string, 0, len(r.networks))
	for alias := range r.networks {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

// Networks returns all validated configurations, sorted by alias.
func (r *Registry) Networks() []NetworkConfig {
	out := make([]NetworkConfig, 0, len(r.networks))
	for _, alias := range r.Aliases() {
		out = append(out, r.networks[alias])
	}
	return out
}

// ABI is the canonical escrow interface, assembled once at build.
func (r *Registry) ABI() abi.ABI { return r.abi }
