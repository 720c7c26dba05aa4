package apihttp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/example/solprobe/internal/cache"
	"github.com/example/solprobe/internal/handlers"
	apihttp "github.com/example/solprobe/internal/http"
	"github.com/example/solprobe/internal/rate"
	"github.com/example/solprobe/internal/solana"
	"github.com/example/solprobe/internal/types"
	sol "github.com/gagliardetto/solana-go"
)

const testWallet = "11111111111111111111111111111111"

type fakeStore struct {
	ok      bool
	pingErr error
}

func (f fakeStore) Validate(_ context.Context, _ string) (bool, error) { return f.ok, nil }
func (f fakeStore) Ping(_ context.Context) error                       { return f.pingErr }

type errString string

func (e errString) Error() string { return string(e) }

type fakeFetcher struct {
	mu       sync.Mutex
	calls    int
	lamports uint64
	delay    time.Duration
}

func (f *fakeFetcher) GetBalance(_ context.Context, _ sol.PublicKey) (uint64, time.Duration, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.lamports, 5 * time.Millisecond, nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func balanceHandler(f solana.BalanceFetcher) *handlers.BalanceHandler {
	return handlers.NewBalanceHandler(handlers.BalanceDeps{
		Cache:          cache.New[handlers.Balance](10 * time.Second),
		Fetcher:        f,
		Timeout:        3 * time.Second,
		MaxConcurrency: 16,
	})
}

// newRouter builds a router with a balance handler, a generous limiter and the
// given key store.
func newRouter(t *testing.T, f solana.BalanceFetcher, keys fakeStore, rpm int) http.Handler {
	t.Helper()
	lm := rate.NewLimiterMap(rpm, rpm, time.Minute)
	t.Cleanup(lm.Stop)
	return apihttp.NewRouter(apihttp.Deps{
		Balance: balanceHandler(f),
		Limiter: lm,
		Keys:    keys,
	})
}

func postBalance(t *testing.T, ts *httptest.Server, wallets []string, key string) (*http.Response, types.GetBalanceResponse) {
	t.Helper()
	b, _ := json.Marshal(types.GetBalanceRequest{Wallets: wallets})
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/get-balance", bytes.NewReader(b))
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	var out types.GetBalanceResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	resp.Body.Close()
	return resp, out
}
