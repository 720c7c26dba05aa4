// Package funding moves SOL from the provider wallet to generated identities.
package funding

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/example/solprobe/internal/solana"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidAmount   = errors.New("invalid SOL amount")
	ErrBalanceMismatch = errors.New("balance mismatch")
)

// SolToLamports converts a SOL quantity to lamports, rounding to the nearest
// lamport. Negative, non-finite and overflowing quantities are rejected.
func SolToLamports(amount float64) (uint64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return 0, errors.Wrapf(ErrInvalidAmount, "%v", amount)
	}
	l := math.Round(amount * float64(sol.LAMPORTS_PER_SOL))
	// 2^64 is the first float64 that no longer fits
	if l >= math.Ldexp(1, 64) {
		return 0, errors.Wrapf(ErrInvalidAmount, "%v SOL overflows lamports", amount)
	}
	return uint64(l), nil
}

// Client is what a Funder needs from the provider connection.
type Client interface {
	solana.Sender
	solana.BalanceFetcher
	RequestAirdrop(ctx context.Context, to sol.PublicKey, lamports uint64) (sol.Signature, error)
}

// Transfer describes a confirmed credit to an identity.
type Transfer struct {
	To        sol.PublicKey
	Lamports  uint64
	Signature sol.Signature
}

// Funder pays from Payer, which is the provider wallet.
type Funder struct {
	Client Client
	Payer  sol.PrivateKey
	Logger *slog.Logger

	// PollInterval spaces balance re-reads in VerifyCredit.
	PollInterval time.Duration
}

func New(client Client, payer sol.PrivateKey, logger *slog.Logger) *Funder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Funder{Client: client, Payer: payer, Logger: logger}
}

// Fund transfers amount SOL from the payer to `to` in a single system
// transfer and waits for confirmation.
func (f *Funder) Fund(ctx context.Context, to sol.PublicKey, amount float64) (Transfer, error) {
	lamports, err := SolToLamports(amount)
	if err != nil {
		return Transfer{}, err
	}
	ix, err := system.NewTransferInstruction(lamports, f.Payer.PublicKey(), to).ValidateAndBuild()
	if err != nil {
		return Transfer{}, errors.Wrap(err, "build transfer")
	}
	start := time.Now()
	sig, err := f.Client.SendAndConfirm(ctx, []sol.Instruction{ix}, f.Payer)
	if err != nil {
		return Transfer{}, errors.Wrapf(err, "fund %s", to)
	}
	f.Logger.InfoContext(ctx, "funded",
		"event", "fund",
		"to", to.String(),
		"lamports", lamports,
		"signature", sig.String(),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return Transfer{To: to, Lamports: lamports, Signature: sig}, nil
}

// Airdrop credits `to` from the cluster faucet instead of the payer.
func (f *Funder) Airdrop(ctx context.Context, to sol.PublicKey, amount float64) (Transfer, error) {
	lamports, err := SolToLamports(amount)
	if err != nil {
		return Transfer{}, err
	}
	if lamports == 0 {
		return Transfer{}, errors.Wrap(ErrInvalidAmount, "airdrop of zero")
	}
	sig, err := f.Client.RequestAirdrop(ctx, to, lamports)
	if err != nil {
		return Transfer{}, err
	}
	f.Logger.InfoContext(ctx, "airdropped",
		"event", "airdrop",
		"to", to.String(),
		"lamports", lamports,
		"signature", sig.String(),
	)
	return Transfer{To: to, Lamports: lamports, Signature: sig}, nil
}

// FundAll funds every target with amount SOL, at most limit at a time. It
// returns the transfers in target order, or the first error.
func (f *Funder) FundAll(ctx context.Context, targets []sol.PublicKey, amount float64, limit int) ([]Transfer, error) {
	if _, err := SolToLamports(amount); err != nil {
		return nil, err
	}
	out := make([]Transfer, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, to := range targets {
		i, to := i, to
		g.Go(func() error {
			t, err := f.Fund(gctx, to, amount)
			if err != nil {
				return err
			}
			out[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyCredit checks that `to` holds exactly before+lamports. Balance reads
// may trail confirmation, so a short balance is re-read until ctx ends.
func (f *Funder) VerifyCredit(ctx context.Context, to sol.PublicKey, before, lamports uint64) error {
	want := before + lamports
	interval := f.PollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	for {
		got, _, err := f.Client.GetBalance(ctx, to)
		if err != nil {
			return err
		}
		if got == want {
			return nil
		}
		if got > want {
			return errors.Wrapf(ErrBalanceMismatch, "%s holds %d lamports, want %d", to, got, want)
		}
		select {
		case <-ctx.Done():
			return errors.Wrapf(ErrBalanceMismatch, "%s holds %d lamports, want %d", to, got, want)
		case <-time.After(interval):
		}
	}
}
