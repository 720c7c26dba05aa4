package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/solprobe/internal/auth"
	"github.com/example/solprobe/internal/cache"
	"github.com/example/solprobe/internal/config"
	"github.com/example/solprobe/internal/funding"
	"github.com/example/solprobe/internal/handlers"
	apihttp "github.com/example/solprobe/internal/http"
	"github.com/example/solprobe/internal/keys"
	"github.com/example/solprobe/internal/metrics"
	"github.com/example/solprobe/internal/rate"
	"github.com/example/solprobe/internal/scenario"
	"github.com/example/solprobe/internal/solana"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		startupFailed(logger, "invalid configuration", err)
	}

	provider, err := keys.Load(cfg.WalletPath)
	if err != nil {
		startupFailed(logger, "wallet load failed", err, "path", cfg.WalletPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runs, closeRuns, err := openRunStore(ctx, cfg, logger)
	if err != nil {
		startupFailed(logger, "run store init failed", err)
	}
	defer closeRuns()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// deps
	cl := solana.NewClient(cfg.RPCURL, solanaOptions(cfg), m, logger)
	program := cfg.Program()
	funder := funding.New(cl, provider, logger)
	runner := scenario.NewRunner(runs, m, logger, cfg.CaseTimeout)

	bh := handlers.NewBalanceHandler(handlers.BalanceDeps{
		Cache:          cache.New[handlers.Balance](cfg.CacheTTL),
		Fetcher:        cl,
		Timeout:        cfg.BalanceTimeout,
		MaxConcurrency: cfg.MaxConcurrency,
		Logger:         logger,
	})
	lm := rate.NewLimiterMap(cfg.RateLimitRPM, cfg.RateLimitRPM, 5*time.Minute)
	defer lm.Stop()

	router := apihttp.NewRouter(apihttp.Deps{
		Balance:  bh,
		Transfer: handlers.NewTransferHandler(funder, cfg.CaseTimeout, logger),
		Scenario: handlers.NewScenarioHandler(runner, dupAcctSuite(cl, funder, provider, program), cfg.FundSOL, logger),
		Runs:     handlers.NewRunsHandler(runs),
		Admin:    handlers.NewAdminHandler(cl, provider, program, cfg.AdminToken, cfg.CaseTimeout, logger),
		Limiter:  lm,
		Keys:     auth.NewStaticKeyStore(cfg.APIKeys),
		Checks: map[string]apihttp.HealthCheck{
			"store": runs.Ping,
			"rpc": func(ctx context.Context) error {
				_, err := cl.BlockHeight(ctx)
				return err
			},
		},
		Metrics:  m,
		Gatherer: reg,
		Logger:   logger,
	})

	// scenario runs wait on confirmations, so writes get the case budget
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 3*cfg.CaseTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", "event", "startup", "port", cfg.Port, "rpc", cfg.RPCURL,
			"program", program.String(), "provider", provider.PublicKey().String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "event", "shutdown", "error", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down", "event", "shutdown")
	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	_ = srv.Shutdown(shCtx)
}
