package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/example/solprobe/internal/config"
	"github.com/example/solprobe/internal/funding"
	"github.com/example/solprobe/internal/scenario"
	"github.com/example/solprobe/internal/solana"
	"github.com/example/solprobe/internal/store"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
)

// newLogger returns a JSON slog logger at the named level. Unknown levels
// fall back to info.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// startupFailed logs err under "error" like every other log line and exits.
func startupFailed(logger *slog.Logger, msg string, err error, attrs ...any) {
	logStartupError(logger, msg, err, attrs...)
	os.Exit(1)
}

func logStartupError(logger *slog.Logger, msg string, err error, attrs ...any) {
	logger.Error(msg, append([]any{"event", "startup", "error", err}, attrs...)...)
}

func solanaOptions(cfg config.Config) solana.Options {
	return solana.Options{
		Commitment:        rpc.CommitmentType(cfg.SolCommitment),
		ConfirmCommitment: rpc.CommitmentType(cfg.ConfirmCommitment),
		RequestsPerSecond: cfg.RPCRequestsPerSecond,
		PollInterval:      cfg.ConfirmPollInterval,
		BlockhashTTL:      cfg.BlockhashTTL,
		ConfirmTimeout:    cfg.ConfirmTimeout,
	}
}

// openRunStore uses Mongo when MONGO_URI is set and memory otherwise. The
// returned close func is always safe to call.
func openRunStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.RunRecorder, func(), error) {
	if cfg.MongoURI == "" {
		logger.Info("run history kept in memory", "event", "store", "kind", "memory")
		return store.NewMemoryRunStore(), func() {}, nil
	}
	cli, err := store.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, nil, errors.Wrap(err, "mongo connect")
	}
	closeFn := func() { _ = cli.Disconnect(context.Background()) }
	s, err := store.NewMongoRunStore(ctx, cli, cfg.MongoDB, 30*time.Second)
	if err != nil {
		closeFn()
		return nil, nil, errors.Wrap(err, "run store init")
	}
	logger.Info("run history kept in mongo", "event", "store", "kind", "mongo", "db", cfg.MongoDB)
	return s, closeFn, nil
}

// dupAcctSuite builds a fresh dup_acct suite per run so each run gets its own
// identity and accounts.
func dupAcctSuite(cl scenario.Cluster, f *funding.Funder, provider sol.PrivateKey, program sol.PublicKey) func(float64) scenario.Suite {
	return func(fundSOL float64) scenario.Suite {
		return scenario.DupAcct(scenario.DupAcctDeps{
			Cluster:  cl,
			Funder:   f,
			Provider: provider,
			Program:  program,
			FundSOL:  fundSOL,
		})
	}
}
