// Package prices fetches USD token prices.
package prices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"amm-stats/internal/observability"
)

// Source returns USD prices keyed by token address. Addresses without a
// price are absent from the result.
type Source interface {
	GetPrices(ctx context.Context, addresses []string) (map[string]float64, error)
}

// Defaults for HTTPSource.
const (
	DefaultChunkSize = 100
	DefaultWorkers   = 4
	DefaultTimeout   = 10 * time.Second
)

// HTTPSource queries a price endpoint as GET {endpoint}?ids=a,b,c and expects
// {"a": {"price": 1.5}, ...}. Chunks are fetched concurrently.
type HTTPSource struct {
	endpoint  string
	network   string
	client    *http.Client
	chunkSize int
	workers   int
	logger    *zap.Logger
}

// Option configures an HTTPSource.
type Option func(*HTTPSource)

// WithChunkSize sets the number of ids per request.
func WithChunkSize(n int) Option {
	return func(s *HTTPSource) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithWorkers sets the number of concurrent requests.
func WithWorkers(n int) Option {
	return func(s *HTTPSource) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *HTTPSource) {
		s.client = client
	}
}

// NewHTTPSource creates an HTTPSource for network.
func NewHTTPSource(endpoint, network string, logger *zap.Logger, opts ...Option) *HTTPSource {
	s := &HTTPSource{
		endpoint:  endpoint,
		network:   network,
		client:    &http.Client{Timeout: DefaultTimeout},
		chunkSize: DefaultChunkSize,
		workers:   DefaultWorkers,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

type priceEntry struct {
	Price float64 `json:"price"`
}

// GetPrices fetches prices for addresses. A failed chunk is logged and
// contributes no prices; only cancellation of ctx is returned as an error.
func (s *HTTPSource) GetPrices(ctx context.Context, addresses []string) (map[string]float64, error) {
	ids := uniqueAddresses(addresses)
	out := make(map[string]float64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	pool := pond.NewPool(s.workers)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	var mu sync.Mutex
	for chunk := range slices.Chunk(ids, s.chunkSize) {
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			prices, err := s.fetch(groupCtx, chunk)
			if err != nil {
				s.logger.Warn("price chunk failed",
					zap.String("network", s.network),
					zap.Int("ids", len(chunk)),
					zap.Error(err),
				)
				observability.RecordPriceFetchError(s.network)
				return
			}
			mu.Lock()
			for addr, p := range prices {
				out[addr] = p
			}
			mu.Unlock()
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		s.logger.Warn("price fetch group failed", zap.String("network", s.network), zap.Error(err))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *HTTPSource) fetch(ctx context.Context, ids []string) (map[string]float64, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("ids", strings.Join(ids, ","))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	var entries map[string]priceEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	prices := make(map[string]float64, len(entries))
	for addr, e := range entries {
		prices[addr] = e.Price
	}
	return prices, nil
}

func uniqueAddresses(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

// StaticSource serves fixed prices.
type StaticSource map[string]float64

// GetPrices returns the known prices among addresses.
func (s StaticSource) GetPrices(_ context.Context, addresses []string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, a := range addresses {
		if p, ok := s[a]; ok {
			out[a] = p
		}
	}
	return out, nil
}
