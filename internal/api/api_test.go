package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"amm-stats/internal/domain"
	"amm-stats/internal/storage/memory"
)

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *APIError       `json:"error"`
}

func fixtureStats() *domain.NetworkStats {
	return &domain.NetworkStats{
		Network:     "eclipse",
		GeneratedAt: 1700000000000,
		Intervals: domain.TotalStats{
			domain.ResolutionDaily: {
				Volume: domain.ValueChange{Value: 300, Change: 50},
				PoolsData: []domain.PoolSummary{
					{PoolAddress: "p1", Volume: 100, TVL: 1000, APY: 3},
					{PoolAddress: "p2", Volume: 200, TVL: 500, APY: 9},
					{PoolAddress: "p3", Volume: 50, TVL: 2000, APY: 1},
				},
				TokensData: []domain.TokenSummary{
					{Address: "a", Volume: 10},
					{Address: "b", Volume: 30},
				},
			},
		},
	}
}

type testServer struct {
	server    *httptest.Server
	stats     *memory.StatsStore
	intervals *memory.IntervalStore
	cache     *StatsCache
	hub       *Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	stats := memory.NewStatsStore()
	require.NoError(t, stats.SaveStats(ctx, fixtureStats()))

	intervals := memory.NewIntervalStore()
	require.NoError(t, intervals.SavePoolIntervals(ctx, "eclipse", `{"k":1}`, domain.PoolIntervals{
		domain.ResolutionDaily: {VolumePlot: []domain.TimePoint{{Timestamp: 1, Value: 2}}},
	}))

	cache := NewStatsCache(stats)
	hub := NewHub(zaptest.NewLogger(t))
	a := New(Options{
		Stats:     cache,
		Intervals: intervals,
		Hub:       hub,
		Networks:  []string{"eclipse", "empty"},
		Logger:    zaptest.NewLogger(t),
	})
	server := httptest.NewServer(NewRouter(a))
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return &testServer{server: server, stats: stats, intervals: intervals, cache: cache, hub: hub}
}

func (ts *testServer) get(t *testing.T, path string) (int, envelope) {
	t.Helper()
	resp, err := http.Get(ts.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	code, env := ts.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", env.Status)
	assert.JSONEq(t, `{"networks":["eclipse","empty"]}`, string(env.Data))
}

func TestStats(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.get(t, "/api/eclipse/stats")
	require.Equal(t, http.StatusOK, code)
	var stats domain.NetworkStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(1700000000000), stats.GeneratedAt)
	assert.Len(t, stats.Intervals[domain.ResolutionDaily].PoolsData, 3)

	code, env = ts.get(t, "/api/eclipse/stats/daily")
	require.Equal(t, http.StatusOK, code)
	var daily domain.TotalIntervalStats
	require.NoError(t, json.Unmarshal(env.Data, &daily))
	assert.Equal(t, 300.0, daily.Volume.Value)
}

func TestStats_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		path string
		code int
		err  string
	}{
		{"/api/unknown/stats", http.StatusNotFound, "unknown_network"},
		{"/api/empty/stats", http.StatusNotFound, "not_found"},
		{"/api/eclipse/stats/hourly", http.StatusBadRequest, "bad_request"},
		{"/api/eclipse/stats/weekly", http.StatusNotFound, "not_found"},
		{"/api/eclipse/pools?sort=fees", http.StatusBadRequest, "bad_request"},
		{"/api/eclipse/pools?limit=0", http.StatusBadRequest, "bad_request"},
		{"/api/eclipse/pools?offset=-1", http.StatusBadRequest, "bad_request"},
		{"/api/eclipse/pools/missing/intervals", http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, env := ts.get(t, tt.path)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, "error", env.Status)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.err, env.Error.Code)
			assert.NotEmpty(t, env.Error.TraceID)
		})
	}
}

func TestPools(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		query string
		want  []string
		total int
	}{
		{"", []string{"p2", "p1", "p3"}, 3},
		{"?sort=tvl", []string{"p3", "p1", "p2"}, 3},
		{"?sort=apy&limit=2", []string{"p2", "p1"}, 3},
		{"?limit=2&offset=2", []string{"p3"}, 3},
		{"?offset=10", []string{}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			code, env := ts.get(t, "/api/eclipse/pools"+tt.query)
			require.Equal(t, http.StatusOK, code)

			var page PoolPage
			require.NoError(t, json.Unmarshal(env.Data, &page))
			got := make([]string, 0, len(page.Items))
			for _, p := range page.Items {
				got = append(got, p.PoolAddress)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.total, page.Total)
		})
	}
}

func TestTokens(t *testing.T) {
	ts := newTestServer(t)
	code, env := ts.get(t, "/api/eclipse/tokens?resolution=daily")
	require.Equal(t, http.StatusOK, code)

	var tokens []domain.TokenSummary
	require.NoError(t, json.Unmarshal(env.Data, &tokens))
	require.Len(t, tokens, 2)
	assert.Equal(t, "b", tokens[0].Address)
}

func TestPoolIntervals_EscapedKey(t *testing.T) {
	ts := newTestServer(t)
	code, env := ts.get(t, "/api/eclipse/pools/"+url.PathEscape(`{"k":1}`)+"/intervals")
	require.Equal(t, http.StatusOK, code)

	var intervals domain.PoolIntervals
	require.NoError(t, json.Unmarshal(env.Data, &intervals))
	assert.Equal(t, 2.0, intervals[domain.ResolutionDaily].VolumePlot[0].Value)
}

func TestStatsCache_Invalidate(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	first, err := ts.cache.Get(ctx, "eclipse")
	require.NoError(t, err)

	updated := fixtureStats()
	updated.GeneratedAt = 1800000000000
	require.NoError(t, ts.stats.SaveStats(ctx, updated))

	cached, err := ts.cache.Get(ctx, "eclipse")
	require.NoError(t, err)
	assert.Equal(t, first.GeneratedAt, cached.GeneratedAt)

	ts.cache.Invalidate("eclipse")
	fresh, err := ts.cache.Get(ctx, "eclipse")
	require.NoError(t, err)
	assert.Equal(t, int64(1800000000000), fresh.GeneratedAt)
}

func TestHub_Broadcast(t *testing.T) {
	ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return ts.hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	ts.hub.Broadcast("stats.aggregated", map[string]any{"network": "eclipse"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "stats.aggregated", msg.Type)
	assert.Equal(t, "eclipse", msg.Payload["network"])

	conn.Close()
	require.Eventually(t, func() bool { return ts.hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
