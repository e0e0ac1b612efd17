package prices

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func priceServer(t *testing.T, failOn string, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		resp := make(map[string]priceEntry)
		for _, id := range ids {
			if id == failOn {
				http.Error(w, "upstream error", http.StatusBadGateway)
				return
			}
			if id == "unknown" {
				continue
			}
			resp[id] = priceEntry{Price: float64(len(id))}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPSource_GetPrices(t *testing.T) {
	var requests atomic.Int32
	server := priceServer(t, "", &requests)
	defer server.Close()

	src := NewHTTPSource(server.URL, "net", zaptest.NewLogger(t), WithChunkSize(2), WithWorkers(3))
	got, err := src.GetPrices(context.Background(), []string{"a", "bb", "", "ccc", "a", "unknown"})
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"a": 1, "bb": 2, "ccc": 3}, got)
	assert.Equal(t, int32(2), requests.Load())
}

func TestHTTPSource_FailedChunkDegrades(t *testing.T) {
	var requests atomic.Int32
	server := priceServer(t, "bad", &requests)
	defer server.Close()

	src := NewHTTPSource(server.URL, "net", zaptest.NewLogger(t), WithChunkSize(1))
	got, err := src.GetPrices(context.Background(), []string{"good", "bad"})
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"good": 4}, got)
}

func TestHTTPSource_Empty(t *testing.T) {
	src := NewHTTPSource("http://127.0.0.1:0", "net", nil)
	got, err := src.GetPrices(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHTTPSource_Canceled(t *testing.T) {
	var requests atomic.Int32
	server := priceServer(t, "", &requests)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHTTPSource(server.URL, "net", nil).GetPrices(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStaticSource(t *testing.T) {
	got, err := StaticSource{"a": 2}.GetPrices(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"a": 2}, got)
}
