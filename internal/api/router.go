// Package api serves aggregated pool statistics over HTTP and websocket.
package api

import (
	"cmp"
	"errors"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"amm-stats/internal/domain"
	"amm-stats/internal/observability"
	"amm-stats/internal/storage"
)

// Pagination limits for list endpoints.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// API holds the handler dependencies.
type API struct {
	stats     *StatsCache
	intervals storage.IntervalStore
	hub       *Hub
	networks  map[string]bool
	logger    *zap.Logger
}

// Options for creating an API.
type Options struct {
	Stats     *StatsCache
	Intervals storage.IntervalStore // optional; disables the intervals endpoint when nil
	Hub       *Hub                  // optional; disables /ws when nil
	Networks  []string              // known networks; empty accepts any
	Logger    *zap.Logger
}

// New creates an API.
func New(opts Options) *API {
	a := &API{
		stats:     opts.Stats,
		intervals: opts.Intervals,
		hub:       opts.Hub,
		networks:  make(map[string]bool, len(opts.Networks)),
		logger:    opts.Logger,
	}
	for _, n := range opts.Networks {
		a.networks[n] = true
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	return a
}

// NewRouter builds the HTTP routes.
func NewRouter(a *API) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(recordRequests)

	r.Get("/healthz", a.Healthz)
	if a.hub != nil {
		r.Handle("/ws", a.hub)
	}

	r.Route("/api/{network}", func(nr chi.Router) {
		nr.Get("/stats", a.Stats)
		nr.Get("/stats/{resolution}", a.ResolutionStats)
		nr.Get("/pools", a.Pools)
		nr.Get("/tokens", a.Tokens)
		nr.Get("/pools/{pool}/intervals", a.PoolIntervals)
	})
	return r
}

func recordRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.RecordAPIRequest(route, status)
	})
}

// Healthz reports liveness.
func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"networks": slices.Sorted(maps.Keys(a.networks))}
	if err := writeJSON(w, http.StatusOK, body); err != nil {
		a.logger.Error("healthz handler", zap.Error(err))
	}
}

// Stats returns the full stats document of a network.
func (a *API) Stats(w http.ResponseWriter, r *http.Request) {
	stats, ok := a.loadStats(w, r)
	if !ok {
		return
	}
	a.respond(w, stats)
}

// ResolutionStats returns one resolution of a network's stats.
func (a *API) ResolutionStats(w http.ResponseWriter, r *http.Request) {
	res, err := domain.ParseResolution(chi.URLParam(r, "resolution"))
	if err != nil {
		a.fail(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	interval, ok := a.loadInterval(w, r, res)
	if !ok {
		return
	}
	a.respond(w, interval)
}

// PoolPage is a page of pool summary rows.
type PoolPage struct {
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
	Items  []domain.PoolSummary `json:"items"`
}

// Pools returns pool rows of a resolution, sorted descending by volume, tvl or apy.
func (a *API) Pools(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := queryResolution(q)
	if err != nil {
		a.fail(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	limit, offset, err := pagination(q)
	if err != nil {
		a.fail(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	key, ok := poolSortKeys[cmp.Or(q.Get("sort"), "volume")]
	if !ok {
		a.fail(w, r, http.StatusBadRequest, "bad_request", "sort must be one of volume, tvl, apy")
		return
	}

	interval, ok := a.loadInterval(w, r, res)
	if !ok {
		return
	}

	rows := slices.Clone(interval.PoolsData)
	slices.SortStableFunc(rows, func(x, y domain.PoolSummary) int {
		return cmp.Compare(key(y), key(x))
	})

	page := PoolPage{Total: len(rows), Limit: limit, Offset: offset, Items: []domain.PoolSummary{}}
	if offset < len(rows) {
		page.Items = rows[offset:min(offset+limit, len(rows))]
	}
	a.respond(w, page)
}

var poolSortKeys = map[string]func(domain.PoolSummary) float64{
	"volume": func(p domain.PoolSummary) float64 { return p.Volume },
	"tvl":    func(p domain.PoolSummary) float64 { return p.TVL },
	"apy":    func(p domain.PoolSummary) float64 { return p.APY },
}

// Tokens returns token rows of a resolution, sorted descending by volume.
func (a *API) Tokens(w http.ResponseWriter, r *http.Request) {
	res, err := queryResolution(r.URL.Query())
	if err != nil {
		a.fail(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	interval, ok := a.loadInterval(w, r, res)
	if !ok {
		return
	}

	rows := slices.Clone(interval.TokensData)
	slices.SortStableFunc(rows, func(x, y domain.TokenSummary) int {
		return cmp.Compare(y.Volume, x.Volume)
	})
	if rows == nil {
		rows = []domain.TokenSummary{}
	}
	a.respond(w, rows)
}

// PoolIntervals returns a pool's interval plots.
func (a *API) PoolIntervals(w http.ResponseWriter, r *http.Request) {
	network, ok := a.network(w, r)
	if !ok {
		return
	}
	if a.intervals == nil {
		a.fail(w, r, http.StatusNotImplemented, "not_implemented", "interval plots are not served")
		return
	}
	pool, err := url.PathUnescape(chi.URLParam(r, "pool"))
	if err != nil {
		a.fail(w, r, http.StatusBadRequest, "bad_request", "invalid pool key")
		return
	}

	intervals, err := a.intervals.GetPoolIntervals(r.Context(), network, pool)
	if errors.Is(err, storage.ErrNotFound) {
		a.fail(w, r, http.StatusNotFound, "not_found", "no intervals for pool")
		return
	}
	if err != nil {
		a.logger.Error("get pool intervals", zap.String("network", network), zap.String("pool", pool), zap.Error(err))
		a.fail(w, r, http.StatusInternalServerError, "internal", "failed to load intervals")
		return
	}
	a.respond(w, intervals)
}

func (a *API) network(w http.ResponseWriter, r *http.Request) (string, bool) {
	network := chi.URLParam(r, "network")
	if len(a.networks) > 0 && !a.networks[network] {
		a.fail(w, r, http.StatusNotFound, "unknown_network", "unknown network "+strconv.Quote(network))
		return "", false
	}
	return network, true
}

func (a *API) loadStats(w http.ResponseWriter, r *http.Request) (*domain.NetworkStats, bool) {
	network, ok := a.network(w, r)
	if !ok {
		return nil, false
	}
	stats, err := a.stats.Get(r.Context(), network)
	if errors.Is(err, storage.ErrNotFound) {
		a.fail(w, r, http.StatusNotFound, "not_found", "network has not been aggregated yet")
		return nil, false
	}
	if err != nil {
		a.logger.Error("get stats", zap.String("network", network), zap.Error(err))
		a.fail(w, r, http.StatusInternalServerError, "internal", "failed to load stats")
		return nil, false
	}
	return stats, true
}

func (a *API) loadInterval(w http.ResponseWriter, r *http.Request, res domain.Resolution) (*domain.TotalIntervalStats, bool) {
	stats, ok := a.loadStats(w, r)
	if !ok {
		return nil, false
	}
	interval, ok := stats.Intervals[res]
	if !ok || interval == nil {
		a.fail(w, r, http.StatusNotFound, "not_found", "resolution "+string(res)+" is not aggregated")
		return nil, false
	}
	return interval, true
}

func (a *API) respond(w http.ResponseWriter, body any) {
	if err := writeJSON(w, http.StatusOK, body); err != nil {
		a.logger.Warn("write response", zap.Error(err))
	}
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	if err := writeError(w, r, status, code, message); err != nil {
		a.logger.Warn("write error response", zap.Error(err))
	}
}

func queryResolution(q url.Values) (domain.Resolution, error) {
	return domain.ParseResolution(cmp.Or(q.Get("resolution"), string(domain.ResolutionDaily)))
}

func pagination(q url.Values) (limit, offset int, err error) {
	limit, offset = DefaultLimit, 0
	if s := q.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit <= 0 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
		limit = min(limit, MaxLimit)
	}
	if s := q.Get("offset"); s != "" {
		if offset, err = strconv.Atoi(s); err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}
