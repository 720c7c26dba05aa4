package solana

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/solprobe/internal/cache"
	"github.com/example/solprobe/internal/metrics"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// RPC is the subset of the Solana JSON-RPC API the provider uses.
// *rpc.Client satisfies it; tests substitute a fake.
type RPC interface {
	GetBalance(ctx context.Context, account sol.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	SendTransactionWithOpts(ctx context.Context, tx *sol.Transaction, opts rpc.TransactionOpts) (sol.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...sol.Signature) (*rpc.GetSignatureStatusesResult, error)
	RequestAirdrop(ctx context.Context, account sol.PublicKey, lamports uint64, commitment rpc.CommitmentType) (sol.Signature, error)
	GetAccountInfo(ctx context.Context, account sol.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64, commitment rpc.CommitmentType) (uint64, error)
}

// BalanceFetcher abstracts fetching balances for a wallet.
type BalanceFetcher interface {
	GetBalance(ctx context.Context, pubkey sol.PublicKey) (lamports uint64, latency time.Duration, err error)
}

// Sender submits instructions as a signed transaction and waits for confirmation.
type Sender interface {
	SendAndConfirm(ctx context.Context, instructions []sol.Instruction, payer sol.PrivateKey, signers ...sol.PrivateKey) (sol.Signature, error)
}

// Blockhash is a recent blockhash together with the height after which
// transactions referencing it can no longer land.
type Blockhash struct {
	Hash                 sol.Hash
	LastValidBlockHeight uint64
	FetchedAt            time.Time
}

// Options tunes the provider connection.
type Options struct {
	// Commitment used for blockhash and balance reads.
	Commitment rpc.CommitmentType
	// Commitment a sent transaction must reach to count as confirmed.
	ConfirmCommitment rpc.CommitmentType
	RequestsPerSecond int
	PollInterval      time.Duration
	BlockhashTTL      time.Duration
	// ConfirmTimeout bounds each confirmation wait; zero leaves it to ctx.
	ConfirmTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Commitment == "" {
		o.Commitment = rpc.CommitmentFinalized
	}
	if o.ConfirmCommitment == "" {
		o.ConfirmCommitment = rpc.CommitmentConfirmed
	}
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = 20
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.BlockhashTTL <= 0 {
		o.BlockhashTTL = 20 * time.Second
	}
	return o
}

// Client is the provider connection: throttled RPC access plus transaction
// submission and confirmation.
type Client struct {
	rpc         RPC
	opts        Options
	limiter     *rate.Limiter
	blockhashes *cache.Cache[Blockhash]
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewClient dials nothing; rpc.New only records the endpoint.
func NewClient(rpcURL string, opts Options, m *metrics.Metrics, logger *slog.Logger) *Client {
	return NewWithRPC(rpc.New(rpcURL), opts, m, logger)
}

// NewWithRPC builds a Client over an arbitrary RPC implementation.
func NewWithRPC(r RPC, opts Options, m *metrics.Metrics, logger *slog.Logger) *Client {
	opts = opts.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		rpc:         r,
		opts:        opts,
		limiter:     rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.RequestsPerSecond),
		blockhashes: cache.New[Blockhash](opts.BlockhashTTL),
		metrics:     m,
		logger:      logger,
	}
}

// Options returns the effective options.
func (cl *Client) Options() Options { return cl.opts }

// call throttles, times and records a single RPC round trip.
func (cl *Client) call(ctx context.Context, method string, fn func(context.Context) error) error {
	if err := cl.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "%s: rate limiter", method)
	}
	start := time.Now()
	err := fn(ctx)
	dur := time.Since(start)
	status := "success"
	if err != nil {
		status = "error"
	}
	cl.metrics.RecordRPCCall(method, status, dur.Seconds())
	cl.logger.DebugContext(ctx, "rpc call",
		"event", "rpc_call",
		"method", method,
		"status", status,
		"latency_ms", dur.Milliseconds(),
	)
	return err
}

func (cl *Client) GetBalance(ctx context.Context, pubkey sol.PublicKey) (uint64, time.Duration, error) {
	start := time.Now()
	var res *rpc.GetBalanceResult
	err := cl.call(ctx, "getBalance", func(ctx context.Context) error {
		var err error
		res, err = cl.rpc.GetBalance(ctx, pubkey, cl.opts.Commitment)
		return err
	})
	lat := time.Since(start)
	if err != nil {
		return 0, lat, errors.Wrapf(err, "get balance of %s", pubkey)
	}
	return res.Value, lat, nil
}

// BlockHeight returns the current block height; it doubles as a node health check.
func (cl *Client) BlockHeight(ctx context.Context) (uint64, error) {
	var h uint64
	err := cl.call(ctx, "getBlockHeight", func(ctx context.Context) error {
		var err error
		h, err = cl.rpc.GetBlockHeight(ctx, cl.opts.Commitment)
		return err
	})
	return h, err
}

const blockhashKey = "latest"

// LatestBlockhash returns a recent blockhash, cached for BlockhashTTL.
func (cl *Client) LatestBlockhash(ctx context.Context) (Blockhash, error) {
	bh, _, err := cl.blockhashes.GetOrFetch(ctx, blockhashKey, func(ctx context.Context) (Blockhash, error) {
		var res *rpc.GetLatestBlockhashResult
		err := cl.call(ctx, "getLatestBlockhash", func(ctx context.Context) error {
			var err error
			res, err = cl.rpc.GetLatestBlockhash(ctx, cl.opts.Commitment)
			return err
		})
		if err != nil {
			return Blockhash{}, errors.Wrap(err, "get latest blockhash")
		}
		if res == nil || res.Value == nil {
			return Blockhash{}, errors.New("get latest blockhash: empty result")
		}
		return Blockhash{
			Hash:                 res.Value.Blockhash,
			LastValidBlockHeight: res.Value.LastValidBlockHeight,
			FetchedAt:            time.Now().UTC(),
		}, nil
	})
	return bh, err
}

// SendAndConfirm builds a transaction from instructions, signs it with the
// payer and every extra signer, submits it, and waits until it reaches the
// confirm commitment. The payer is the fee payer.
func (cl *Client) SendAndConfirm(ctx context.Context, instructions []sol.Instruction, payer sol.PrivateKey, signers ...sol.PrivateKey) (sol.Signature, error) {
	bh, err := cl.LatestBlockhash(ctx)
	if err != nil {
		return sol.Signature{}, err
	}
	tx, err := sol.NewTransaction(instructions, bh.Hash, sol.TransactionPayer(payer.PublicKey()))
	if err != nil {
		return sol.Signature{}, errors.Wrap(err, "build transaction")
	}

	keys := map[sol.PublicKey]sol.PrivateKey{payer.PublicKey(): payer}
	for _, s := range signers {
		keys[s.PublicKey()] = s
	}
	if _, err := tx.Sign(func(pk sol.PublicKey) *sol.PrivateKey {
		if k, ok := keys[pk]; ok {
			return &k
		}
		return nil
	}); err != nil {
		return sol.Signature{}, errors.Wrap(err, "sign transaction")
	}
	sig := tx.Signatures[0]

	err = cl.call(ctx, "sendTransaction", func(ctx context.Context) error {
		_, err := cl.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			PreflightCommitment: cl.opts.ConfirmCommitment,
		})
		return err
	})
	if err != nil {
		var rpcErr *jsonrpc.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == codeSimulationFailed {
			return sig, &TransactionError{Signature: sig, Preflight: true, Err: rpcErr}
		}
		return sig, errors.Wrap(err, "send transaction")
	}
	cl.logger.InfoContext(ctx, "transaction sent",
		"event", "tx_sent",
		"signature", sig.String(),
		"instructions", len(instructions),
	)

	if err := cl.confirm(ctx, sig, bh.LastValidBlockHeight); err != nil {
		return sig, err
	}
	return sig, nil
}

// RequestAirdrop asks the cluster faucet for lamports and waits for the
// airdrop transaction to confirm.
func (cl *Client) RequestAirdrop(ctx context.Context, to sol.PublicKey, lamports uint64) (sol.Signature, error) {
	var sig sol.Signature
	err := cl.call(ctx, "requestAirdrop", func(ctx context.Context) error {
		var err error
		sig, err = cl.rpc.RequestAirdrop(ctx, to, lamports, cl.opts.ConfirmCommitment)
		return err
	})
	if err != nil {
		return sol.Signature{}, errors.Wrapf(err, "request airdrop to %s", to)
	}
	// the faucet picks its own blockhash, so expiry is bounded by ctx only
	if err := cl.confirm(ctx, sig, 0); err != nil {
		return sig, err
	}
	return sig, nil
}

// AccountInfo fetches an account, mapping a missing account to ErrAccountNotFound.
func (cl *Client) AccountInfo(ctx context.Context, pubkey sol.PublicKey) (*rpc.Account, error) {
	var res *rpc.GetAccountInfoResult
	err := cl.call(ctx, "getAccountInfo", func(ctx context.Context) error {
		var err error
		res, err = cl.rpc.GetAccountInfo(ctx, pubkey)
		return err
	})
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && (res == nil || res.Value == nil)) {
		return nil, errors.Wrapf(ErrAccountNotFound, "%s", pubkey)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get account %s", pubkey)
	}
	return res.Value, nil
}

// RentExemption returns the minimum lamports for an account of space bytes.
func (cl *Client) RentExemption(ctx context.Context, space uint64) (uint64, error) {
	var lamports uint64
	err := cl.call(ctx, "getMinimumBalanceForRentExemption", func(ctx context.Context) error {
		var err error
		lamports, err = cl.rpc.GetMinimumBalanceForRentExemption(ctx, space, cl.opts.Commitment)
		return err
	})
	if err != nil {
		return 0, errors.Wrapf(err, "rent exemption for %d bytes", space)
	}
	return lamports, nil
}
