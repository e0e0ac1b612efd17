package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func accountJSON(owner string) map[string]any {
	return map[string]any{
		"lamports":   uint64(2039280),
		"owner":      owner,
		"data":       []string{"AQID", "base64"},
		"executable": false,
		"rentEpoch":  uint64(361),
	}
}

func TestHTTPClient_GetAccountInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Method != "getAccountInfo" {
			t.Errorf("expected method getAccountInfo, got %s", req.Method)
		}

		var value any
		if req.Params[0] == "present" {
			value = accountJSON("owner1")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]any{"value": value},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	info, err := client.GetAccountInfo(ctx, "present")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info == nil {
		t.Fatal("expected account, got nil")
	}
	if info.Owner != "owner1" || info.Data != "AQID" || info.Lamports != 2039280 {
		t.Errorf("unexpected account: %+v", info)
	}

	info, err = client.GetAccountInfo(ctx, "absent")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info != nil {
		t.Errorf("expected nil for missing account, got %+v", info)
	}
}

func TestHTTPClient_GetMultipleAccounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Method != "getMultipleAccounts" {
			t.Errorf("expected method getMultipleAccounts, got %s", req.Method)
		}
		cfg := req.Params[1].(map[string]any)
		if cfg["commitment"] != "finalized" {
			t.Errorf("expected finalized commitment, got %v", cfg["commitment"])
		}

		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]any{
				"value": []any{accountJSON("a"), nil, accountJSON("c")},
			},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithCommitment("finalized"))
	infos, err := client.GetMultipleAccounts(context.Background(), []string{"k1", "k2", "k3"})
	if err != nil {
		t.Fatalf("GetMultipleAccounts: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("expected 3 results, got %d", len(infos))
	}
	if infos[0] == nil || infos[0].Owner != "a" {
		t.Errorf("unexpected first account: %+v", infos[0])
	}
	if infos[1] != nil {
		t.Errorf("expected nil second account, got %+v", infos[1])
	}
}

func TestHTTPClient_GetMultipleAccounts_TooMany(t *testing.T) {
	client := NewHTTPClient("http://unused")
	keys := make([]string, MaxAccountsPerRequest+1)

	if _, err := client.GetMultipleAccounts(context.Background(), keys); err == nil {
		t.Error("expected error for oversized request")
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]any{"value": accountJSON("Owner111")},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithRetryDelay(10*time.Millisecond),
		WithMaxRetries(5),
	)

	info, err := client.GetAccountInfo(context.Background(), "Pool111")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info == nil || info.Owner != "Owner111" {
		t.Errorf("expected account owned by Owner111, got %+v", info)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RPCErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]any{"code": -32602, "message": "Invalid param"},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond))
	if _, err := client.GetAccountInfo(context.Background(), "bad"); err == nil {
		t.Fatal("expected rpc error")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}
