package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/example/solprobe/internal/cache"
	"github.com/example/solprobe/internal/solana"
	"github.com/example/solprobe/internal/types"
	"github.com/example/solprobe/pkg/jsonutil"
	sol "github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"
)

const maxWallets = 100

// Balance is what the balance cache holds per wallet.
type Balance struct {
	Lamports  uint64
	FetchedAt time.Time
}

// BalanceDeps bundles dependencies needed by the handler.
type BalanceDeps struct {
	Cache          *cache.Cache[Balance]
	Fetcher        solana.BalanceFetcher
	Timeout        time.Duration
	MaxConcurrency int
	Logger         *slog.Logger
}

type BalanceHandler struct{ Deps BalanceDeps }

func NewBalanceHandler(deps BalanceDeps) *BalanceHandler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MaxConcurrency <= 0 {
		deps.MaxConcurrency = 1
	}
	return &BalanceHandler{Deps: deps}
}

func dedupe(in []string) []string {
	m := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, w := range in {
		if _, ok := m[w]; ok {
			continue
		}
		m[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func parsePubkey(s string) (sol.PublicKey, bool) {
	pk, err := sol.PublicKeyFromBase58(s)
	if err != nil {
		return sol.PublicKey{}, false
	}
	return pk, true
}

func (h *BalanceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req types.GetBalanceRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "bad request")
		return
	}
	if len(req.Wallets) == 0 {
		jsonutil.Error(w, http.StatusBadRequest, "wallets required")
		return
	}
	if len(req.Wallets) > maxWallets {
		jsonutil.Error(w, http.StatusBadRequest, "too many wallets")
		return
	}

	wallets := dedupe(req.Wallets)
	resp := types.GetBalanceResponse{
		Balances: make([]types.BalanceEntry, 0, len(wallets)),
		Errors:   []types.ErrorEntry{},
	}

	type target struct {
		wallet string
		pk     sol.PublicKey
	}
	valid := make([]target, 0, len(wallets))
	for _, wstr := range wallets {
		pk, ok := parsePubkey(wstr)
		if !ok {
			resp.Errors = append(resp.Errors, types.ErrorEntry{Wallet: wstr, Error: "invalid public key"})
			continue
		}
		valid = append(valid, target{wallet: wstr, pk: pk})
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(h.Deps.MaxConcurrency)
	for _, tg := range valid {
		tg := tg
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), h.Deps.Timeout)
			defer cancel()
			val, source, err := h.Deps.Cache.GetOrFetch(ctx, tg.wallet, func(ctx context.Context) (Balance, error) {
				lamports, latency, err := h.Deps.Fetcher.GetBalance(ctx, tg.pk)
				if err != nil {
					return Balance{}, err
				}
				// log rpc latency only on miss
				h.Deps.Logger.DebugContext(ctx, "balance fetched", "event", "rpc_fetch", "wallet", tg.wallet, "latency_ms", latency.Milliseconds())
				return Balance{Lamports: lamports, FetchedAt: time.Now().UTC()}, nil
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				resp.Errors = append(resp.Errors, types.ErrorEntry{Wallet: tg.wallet, Error: err.Error()})
				return nil
			}
			resp.Balances = append(resp.Balances, types.NewBalanceEntry(tg.wallet, val.Lamports, source, val.FetchedAt))
			h.Deps.Logger.DebugContext(r.Context(), "balance", "event", "balance", "wallet", tg.wallet, "source", source)
			return nil
		})
	}
	_ = g.Wait()

	// sort by wallet for deterministic tests
	sort.Slice(resp.Balances, func(i, j int) bool { return resp.Balances[i].Wallet < resp.Balances[j].Wallet })
	sort.Slice(resp.Errors, func(i, j int) bool { return resp.Errors[i].Wallet < resp.Errors[j].Wallet })

	jsonutil.JSON(w, http.StatusOK, resp)
}
