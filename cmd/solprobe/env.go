package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/solprobe/internal/keys"
	"github.com/example/solprobe/internal/solana"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func loggerFrom(c *cli.Context) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewJSONHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: lvl}))
}

func commitmentFrom(c *cli.Context, flag string) (rpc.CommitmentType, error) {
	switch ct := rpc.CommitmentType(strings.ToLower(c.String(flag))); ct {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
		return ct, nil
	default:
		return "", fmt.Errorf("unknown commitment %q for --%s", c.String(flag), flag)
	}
}

// clientFrom reads at --commitment and awaits sends at --confirm-commitment.
func clientFrom(c *cli.Context) (*solana.Client, error) {
	read, err := commitmentFrom(c, "commitment")
	if err != nil {
		return nil, err
	}
	confirm, err := commitmentFrom(c, "confirm-commitment")
	if err != nil {
		return nil, err
	}
	opts := solana.Options{Commitment: read, ConfirmCommitment: confirm, ConfirmTimeout: c.Duration("confirm-timeout")}
	return solana.NewClient(c.String("rpc-url"), opts, nil, loggerFrom(c)), nil
}

// opContext bounds one chain operation by --confirm-timeout.
func opContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, c.Duration("confirm-timeout"))
}

func walletFrom(c *cli.Context) (sol.PrivateKey, error) {
	return keys.Load(c.String("wallet"))
}

func programFrom(c *cli.Context) (sol.PublicKey, error) {
	pk, err := sol.PublicKeyFromBase58(c.String("program-id"))
	if err != nil {
		return sol.PublicKey{}, errors.Wrap(err, "program-id")
	}
	return pk, nil
}

// pubkeyArg parses the n-th positional argument as a public key.
func pubkeyArg(c *cli.Context, n int, name string) (sol.PublicKey, error) {
	if c.NArg() <= n {
		return sol.PublicKey{}, fmt.Errorf("%s is required", name)
	}
	pk, err := sol.PublicKeyFromBase58(c.Args().Get(n))
	if err != nil {
		return sol.PublicKey{}, fmt.Errorf("invalid %s %q: %v", name, c.Args().Get(n), err)
	}
	return pk, nil
}

// output prints v as JSON with --json and as text otherwise.
func output(c *cli.Context, v any, text func(w *textWriter)) error {
	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(&textWriter{c: c})
	return nil
}

type textWriter struct{ c *cli.Context }

func (t *textWriter) Printf(format string, args ...any) {
	fmt.Fprintf(t.c.App.Writer, format, args...)
}
