package pools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"amm-stats/internal/domain"
	"amm-stats/internal/observability"
	"amm-stats/internal/solana"
	"amm-stats/internal/storage"
)

// Skip reasons reported in logs and metrics.
const (
	SkipInvalidAddress = "invalid_address"
	SkipMissingAccount = "missing_account"
	SkipOwnerMismatch  = "owner_mismatch"
)

// DefaultCacheTTL is how long looked-up accounts stay cached.
const DefaultCacheTTL = 24 * time.Hour

// RPCSource filters candidate pools down to those whose pool account exists
// on chain.
type RPCSource struct {
	reader     solana.AccountReader
	candidates Source
	network    string
	logger     *zap.Logger

	cache     storage.AccountCache
	cacheTTL  time.Duration
	useCache  bool
	programID string
}

// RPCOption configures an RPCSource.
type RPCOption func(*RPCSource)

// WithAccountCache writes looked-up accounts to cache for ttl.
func WithAccountCache(cache storage.AccountCache, ttl time.Duration) RPCOption {
	return func(s *RPCSource) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

// WithCachedAccounts answers lookups from the account cache when possible,
// falling back to RPC on a miss.
func WithCachedAccounts(use bool) RPCOption {
	return func(s *RPCSource) {
		s.useCache = use
	}
}

// WithProgramID rejects pool accounts not owned by programID.
func WithProgramID(programID string) RPCOption {
	return func(s *RPCSource) {
		s.programID = programID
	}
}

// NewRPCSource creates an RPCSource checking the pools listed by candidates.
func NewRPCSource(reader solana.AccountReader, candidates Source, network string, logger *zap.Logger, opts ...RPCOption) *RPCSource {
	s := &RPCSource{
		reader:     reader,
		candidates: candidates,
		network:    network,
		logger:     logger,
		cacheTTL:   DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// ListPools returns the candidate pools with a live account, in candidate order.
func (s *RPCSource) ListPools(ctx context.Context) ([]domain.PoolMeta, error) {
	candidates, err := s.candidates.ListPools(ctx)
	if err != nil {
		return nil, err
	}

	valid := make([]domain.PoolMeta, 0, len(candidates))
	for _, p := range candidates {
		if err := solana.ValidateAddress(p.PoolKey); err != nil {
			s.skip(p.PoolKey, SkipInvalidAddress, zap.Error(err))
			continue
		}
		if solana.IsOnCurve(p.PoolKey) {
			s.logger.Warn("pool address is on curve",
				zap.String("network", s.network),
				zap.String("pool", p.PoolKey),
			)
		}
		valid = append(valid, p)
	}

	accounts, err := s.lookup(ctx, valid)
	if err != nil {
		return nil, err
	}

	live := make([]domain.PoolMeta, 0, len(valid))
	for _, p := range valid {
		info := accounts[p.PoolKey]
		switch {
		case info == nil:
			s.skip(p.PoolKey, SkipMissingAccount)
		case s.programID != "" && info.Owner != s.programID:
			s.skip(p.PoolKey, SkipOwnerMismatch, zap.String("owner", info.Owner))
		default:
			live = append(live, p)
		}
	}
	return live, nil
}

func (s *RPCSource) skip(pool, reason string, fields ...zap.Field) {
	fields = append([]zap.Field{
		zap.String("network", s.network),
		zap.String("pool", pool),
		zap.String("reason", reason),
	}, fields...)
	s.logger.Warn("skipping pool", fields...)
	observability.RecordPoolSkipped(s.network, reason)
}

// lookup resolves pool accounts from the cache and RPC. Missing accounts map to nil.
func (s *RPCSource) lookup(ctx context.Context, pools []domain.PoolMeta) (map[string]*solana.AccountInfo, error) {
	accounts := make(map[string]*solana.AccountInfo, len(pools))
	var misses []string

	for _, p := range pools {
		if !s.useCache || s.cache == nil {
			misses = append(misses, p.PoolKey)
			continue
		}
		info, found, err := s.cached(ctx, p.PoolKey)
		if err != nil {
			s.logger.Warn("account cache read failed",
				zap.String("network", s.network),
				zap.String("pool", p.PoolKey),
				zap.Error(err),
			)
		}
		observability.RecordAccountCache(s.network, found)
		if !found {
			misses = append(misses, p.PoolKey)
			continue
		}
		accounts[p.PoolKey] = info
	}

	for start := 0; start < len(misses); start += solana.MaxAccountsPerRequest {
		end := min(start+solana.MaxAccountsPerRequest, len(misses))
		batch := misses[start:end]

		infos, err := s.reader.GetMultipleAccounts(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("get pool accounts: %w", err)
		}
		for i, key := range batch {
			accounts[key] = infos[i]
			s.store(ctx, key, infos[i])
		}
	}

	s.logger.Debug("pool accounts resolved",
		zap.String("network", s.network),
		zap.Int("pools", len(pools)),
		zap.Int("rpc", len(misses)),
	)
	return accounts, nil
}

func (s *RPCSource) cached(ctx context.Context, key string) (*solana.AccountInfo, bool, error) {
	data, found, err := s.cache.Get(ctx, s.network, key)
	if err != nil || !found {
		return nil, false, err
	}
	if data == nil {
		return nil, true, nil
	}
	var info solana.AccountInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, false, fmt.Errorf("decode cached account: %w", err)
	}
	return &info, true, nil
}

func (s *RPCSource) store(ctx context.Context, key string, info *solana.AccountInfo) {
	if s.cache == nil {
		return
	}
	var data []byte
	if info != nil {
		var err error
		if data, err = json.Marshal(info); err != nil {
			return
		}
	}
	if err := s.cache.Set(ctx, s.network, key, data, s.cacheTTL); err != nil {
		s.logger.Warn("account cache write failed",
			zap.String("network", s.network),
			zap.String("pool", key),
			zap.Error(err),
		)
	}
}
