// Package app wires configuration into stores and per-network orchestrators.
package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"amm-stats/internal/config"
	"amm-stats/internal/notify"
	"amm-stats/internal/orchestrator"
	"amm-stats/internal/pools"
	"amm-stats/internal/prices"
	"amm-stats/internal/solana"
	"amm-stats/internal/storage"
	chstore "amm-stats/internal/storage/clickhouse"
	"amm-stats/internal/storage/jsonfile"
	"amm-stats/internal/storage/memory"
	"amm-stats/internal/storage/migrations"
	pgstore "amm-stats/internal/storage/postgres"
	redisstore "amm-stats/internal/storage/redis"
)

// Stores holds the storage implementations selected by configuration.
type Stores struct {
	Snapshots storage.SnapshotStore
	Intervals storage.IntervalStore
	Stats     storage.StatsStore
	Accounts  storage.AccountCache

	closers []func()
}

// Close releases every connection opened by OpenStores.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// OpenStores connects the configured backends and applies migrations.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	s := &Stores{}

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		s.Snapshots = memory.NewSnapshotStore()
		s.Intervals = memory.NewIntervalStore()
		s.Stats = memory.NewStatsStore()

	case config.BackendJSONFile:
		files := jsonfile.New(cfg.Storage.DataDir)
		s.Snapshots = jsonfile.NewSnapshotStore(files)
		s.Intervals = jsonfile.NewIntervalStore(files)
		s.Stats = jsonfile.NewStatsStore(files)

	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)

		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		logger.Info("postgres migrations applied", zap.Strings("files", applied))

		s.Snapshots = pgstore.NewSnapshotStore(pool)
		s.Stats = pgstore.NewStatsStore(pool)
		s.Intervals = jsonfile.NewIntervalStore(jsonfile.New(cfg.Storage.DataDir))

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if cfg.Storage.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickHouseDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		s.closers = append(s.closers, func() { _ = conn.Close() })
		s.Intervals = chstore.NewIntervalStore(conn)
	}

	if cfg.Redis.Addr != "" {
		client, err := redisstore.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		s.closers = append(s.closers, func() { _ = client.Close() })
		s.Accounts = redisstore.NewAccountCache(client, cfg.Redis.Prefix)
	} else {
		s.Accounts = memory.NewAccountCache()
	}

	logger.Info("stores opened",
		zap.String("backend", cfg.Storage.Backend),
		zap.Bool("clickhouse", cfg.Storage.ClickHouseDSN != ""),
		zap.Bool("redis", cfg.Redis.Addr != ""),
	)
	return s, nil
}

// NewPublisher connects to NATS when configured. client is nil when
// notifications are disabled.
func NewPublisher(cfg *config.Config, logger *zap.Logger) (notify.Publisher, *notify.Client, error) {
	if cfg.NATS.URL == "" {
		return notify.NopPublisher{}, nil, nil
	}
	client, err := notify.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
	if err != nil {
		return nil, nil, err
	}
	return client, client, nil
}

// RunOptions tune orchestrators built by NewOrchestrator.
type RunOptions struct {
	// UseCachedAccounts answers pool lookups from the account cache first.
	UseCachedAccounts bool
	Publisher         notify.Publisher
}

// NewOrchestrator builds the orchestrator for the named network.
func NewOrchestrator(cfg *config.Config, name string, stores *Stores, opts RunOptions, logger *zap.Logger) (*orchestrator.Orchestrator, error) {
	network, err := cfg.Network(name)
	if err != nil {
		return nil, err
	}
	params, err := network.Params()
	if err != nil {
		return nil, fmt.Errorf("network %s: %w", name, err)
	}

	var source pools.Source = pools.NewSnapshotSource(stores.Snapshots, network.Name, network.StaticMeta())
	if network.Family == config.FamilySVM {
		client := solana.NewHTTPClient(network.RPCURL, solana.WithCommitment(network.Commitment))
		source = pools.NewRPCSource(client, source, network.Name, logger,
			pools.WithAccountCache(stores.Accounts, cfg.Redis.TTL),
			pools.WithCachedAccounts(opts.UseCachedAccounts),
			pools.WithProgramID(network.ProgramID),
		)
	}

	var priceSource prices.Source
	if cfg.Prices.Endpoint != "" {
		priceSource = prices.NewHTTPSource(cfg.Prices.Endpoint, network.Name, logger,
			prices.WithChunkSize(cfg.Prices.ChunkSize),
			prices.WithWorkers(cfg.Prices.Workers),
			prices.WithHTTPClient(&http.Client{Timeout: cfg.Prices.Timeout}),
		)
	}

	return orchestrator.New(orchestrator.Options{
		Network:   network.Name,
		Params:    params,
		Pools:     source,
		Snapshots: stores.Snapshots,
		Intervals: stores.Intervals,
		Stats:     stores.Stats,
		Prices:    priceSource,
		Publisher: opts.Publisher,
		Logger:    logger,
	}), nil
}

// Networks resolves the networks selected on the command line. An empty
// selection or "all" means every configured network.
func Networks(cfg *config.Config, selected []string) ([]string, error) {
	if len(selected) == 0 || (len(selected) == 1 && selected[0] == "all") {
		return cfg.NetworkNames(), nil
	}
	for _, name := range selected {
		if _, err := cfg.Network(name); err != nil {
			return nil, err
		}
	}
	return selected, nil
}
