package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gitbounty/backend/internal/chain"
	"github.com/gitbounty/backend/internal/config"
	"github.com/gitbounty/backend/internal/db"
	"github.com/gitbounty/backend/internal/events"
	"github.com/gitbounty/backend/internal/github"
	"github.com/gitbounty/backend/internal/notify"
	"github.com/gitbounty/backend/internal/repositories"
	"github.com/gitbounty/backend/internal/services"
)

const (
	redisCursorPrefix    = "indexer:cursor:"
	redisProcessedPrefix = "indexer:log:"
	processedTTL         = 7 * 24 * time.Hour
)

// networkWatcher polls one network's escrow contract for
// BountyCreated/BountyFunded logs.
type networkWatcher struct {
	nc  chain.NetworkConfig
	eth *ethclient.Client
}

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The indexer only reads logs; it never signs, so display mode is
	// enough and missing operator keys do not stop it.
	registry, err := chain.BuildRegistry(cfg, chain.ModeDisplay, log)
	if err != nil {
		log.Fatal("failed to build network registry", zap.Error(err))
	}
	if len(registry.Aliases()) == 0 {
		log.Fatal("no networks configured, nothing to index")
	}
	factory := chain.NewFactory(registry, cfg.RPCTimeout, cfg.ReceiptTimeout, cfg.GasLimit, log)
	defer factory.Close()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	bountyRepo := repositories.NewBountyRepo(pool)
	claimRepo := repositories.NewClaimRepo(pool)
	intentRepo := repositories.NewIntentRepo(pool)

	publisher := events.NewRedisPublisher(rdb, log)
	ghClient := github.NewClient(cfg.GitHubAPIBaseURL, cfg.GitHubToken, log)
	alerts := notify.NewEmailNotifier(cfg.SMTPAddr, cfg.AlertEmailFrom, cfg.AlertEmailTo, log)
	notifier := notify.NewDispatcher(ghClient, alerts, log)

	bountyService := services.NewBountyService(bountyRepo, claimRepo, intentRepo, registry, factory, notifier, publisher, log)

	watchers := make([]*networkWatcher, 0)
	for _, nc := range registry.Networks() {
		eth, err := ethclient.DialContext(ctx, nc.RPCURL)
		if err != nil {
			log.Error("failed to dial RPC, skipping network",
				zap.String("network", nc.Alias),
				zap.Error(err),
			)
			continue
		}
		watchers = append(watchers, &networkWatcher{nc: nc, eth: eth})
		initCursor(ctx, eth, nc.Alias, rdb, log)
	}
	if len(watchers) == 0 {
		log.Fatal("no reachable networks")
	}

	log.Info("escrow indexer started",
		zap.Int("networks", len(watchers)),
		zap.Duration("poll_interval", cfg.IndexerPollInterval),
	)

	ticker := time.NewTicker(cfg.IndexerPollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			for _, w := range watchers {
				if err := pollNetwork(ctx, w, registry, bountyService, rdb, cfg.IndexerBatchBlocks, log); err != nil {
					log.Error("poll cycle failed",
						zap.String("network", w.nc.Alias),
						zap.Error(err),
					)
				}
			}
		case <-sigCh:
			log.Info("shutting down indexer")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// initCursor sets the starting block on first run: the current head, so
// only events arriving after startup are processed. Historical bounties
// are expected to already be in the store.
func initCursor(ctx context.Context, eth *ethclient.Client, alias string, rdb *redis.Client, log *zap.Logger) {
	key := redisCursorPrefix + alias
	existing, _ := rdb.Get(ctx, key).Result()
	if existing != "" {
		log.Info("resuming from saved cursor", zap.String("network", alias), zap.String("block", existing))
		return
	}

	head, err := eth.BlockNumber(ctx)
	if err != nil {
		log.Warn("failed to get head for cursor init, starting from 0",
			zap.String("network", alias),
			zap.Error(err),
		)
		head = 0
	}
	rdb.Set(ctx, key, strconv.FormatUint(head, 10), 0)
	log.Info("cursor initialized at current head",
		zap.String("network", alias),
		zap.Uint64("block", head),
	)
}

func loadCursor(ctx context.Context, rdb *redis.Client, alias string) uint64 {
	val, err := rdb.Get(ctx, redisCursorPrefix+alias).Result()
	if err != nil || val == "" {
		return 0
	}
	n, _ := strconv.ParseUint(val, 10, 64)
	return n
}

func saveCursor(ctx context.Context, rdb *redis.Client, alias string, block uint64) {
	rdb.Set(ctx, redisCursorPrefix+alias, strconv.FormatUint(block, 10), 0)
}

// pollNetwork runs one poll cycle for one network: fetch logs from
// cursor+1 up to head (bounded by the batch size), process each exactly
// once, advance the cursor.
func pollNetwork(
	ctx context.Context,
	w *networkWatcher,
	registry *chain.Registry,
	bountyService *services.BountyService,
	rdb *redis.Client,
	batchBlocks uint64,
	log *zap.Logger,
) error {
	head, err := w.eth.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get head: %w", err)
	}

	cursor := loadCursor(ctx, rdb, w.nc.Alias)
	if head <= cursor {
		return nil
	}

	from := cursor + 1
	to := head
	if to-from+1 > batchBlocks {
		to = from + batchBlocks - 1
	}

	contractABI := registry.ABI()
	createdID := contractABI.Events["BountyCreated"].ID
	fundedID := contractABI.Events["BountyFunded"].ID

	logs, err := w.eth.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{w.nc.EscrowAddress},
		Topics:    [][]common.Hash{{createdID, fundedID}},
	})
	if err != nil {
		return fmt.Errorf("filter logs %d-%d: %w", from, to, err)
	}

	for i := range logs {
		processLog(ctx, w.nc.Alias, &logs[i], createdID, fundedID, registry, bountyService, rdb, log)
	}

	saveCursor(ctx, rdb, w.nc.Alias, to)
	return nil
}

// processLog decodes one escrow event and hands it to the bounty
// service. A redis key per (tx, log index) makes re-scanned blocks
// idempotent.
func processLog(
	ctx context.Context,
	alias string,
	lg *types.Log,
	createdID, fundedID common.Hash,
	registry *chain.Registry,
	bountyService *services.BountyService,
	rdb *redis.Client,
	log *zap.Logger,
) {
	if lg.Removed || len(lg.Topics) < 2 {
		return
	}

	dedupeKey := fmt.Sprintf("%s%s:%s:%d", redisProcessedPrefix, alias, lg.TxHash.Hex(), lg.Index)
	fresh, err := rdb.SetNX(ctx, dedupeKey, "1", processedTTL).Result()
	if err != nil {
		log.Warn("dedupe check failed, processing anyway", zap.Error(err))
	} else if !fresh {
		return
	}

	bountyID := chain.FormatBountyID(lg.Topics[1])
	contractABI := registry.ABI()

	switch lg.Topics[0] {
	case createdID:
		if len(lg.Topics) < 3 {
			return
		}
		sponsor := common.BytesToAddress(lg.Topics[2].Bytes()).Hex()

		fields, err := contractABI.Unpack("BountyCreated", lg.Data)
		if err != nil || len(fields) < 3 {
			log.Error("failed to decode BountyCreated", zap.String("tx_hash", lg.TxHash.Hex()), zap.Error(err))
			return
		}
		amount := fields[1].(*big.Int)
		deadline := fields[2].(uint64)

		if err := bountyService.IngestBountyCreated(ctx, alias, bountyID, sponsor, amount.String(), int64(deadline), lg.TxHash.Hex()); err != nil {
			log.Error("failed to ingest BountyCreated",
				zap.String("bounty_id", bountyID),
				zap.String("tx_hash", lg.TxHash.Hex()),
				zap.Error(err),
			)
		}

	case fundedID:
		fields, err := contractABI.Unpack("BountyFunded", lg.Data)
		if err != nil || len(fields) < 1 {
			log.Error("failed to decode BountyFunded", zap.String("tx_hash", lg.TxHash.Hex()), zap.Error(err))
			return
		}
		amount := fields[0].(*big.Int)

		if err := bountyService.IngestBountyFunded(ctx, alias, bountyID, amount.String(), lg.TxHash.Hex()); err != nil {
			log.Error("failed to ingest BountyFunded",
				zap.String("bounty_id", bountyID),
				zap.String("tx_hash", lg.TxHash.Hex()),
				zap.Error(err),
			)
		}
	}
}
