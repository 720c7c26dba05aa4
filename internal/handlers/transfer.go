package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/solprobe/internal/funding"
	"github.com/example/solprobe/internal/types"
	"github.com/example/solprobe/pkg/jsonutil"
	sol "github.com/gagliardetto/solana-go"
)

// Transferer credits identities from the provider wallet or the faucet.
type Transferer interface {
	Fund(ctx context.Context, to sol.PublicKey, amount float64) (funding.Transfer, error)
	Airdrop(ctx context.Context, to sol.PublicKey, amount float64) (funding.Transfer, error)
}

type TransferHandler struct {
	Funder  Transferer
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewTransferHandler(f Transferer, timeout time.Duration, logger *slog.Logger) *TransferHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransferHandler{Funder: f, Timeout: timeout, Logger: logger}
}

// Fund handles POST /api/fund.
func (h *TransferHandler) Fund(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "fund", h.Funder.Fund)
}

// Airdrop handles POST /api/airdrop.
func (h *TransferHandler) Airdrop(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "airdrop", h.Funder.Airdrop)
}

func (h *TransferHandler) serve(w http.ResponseWriter, r *http.Request, op string, do func(context.Context, sol.PublicKey, float64) (funding.Transfer, error)) {
	var req types.TransferRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "bad request")
		return
	}
	to, ok := parsePubkey(req.To)
	if !ok {
		jsonutil.Error(w, http.StatusBadRequest, "invalid public key")
		return
	}
	ctx := r.Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}
	tr, err := do(ctx, to, req.Sol)
	if err != nil {
		h.Logger.WarnContext(ctx, op+" failed", "event", op+"_error", "to", req.To, "error", err)
		jsonutil.Error(w, statusFor(err), err.Error())
		return
	}
	jsonutil.JSON(w, http.StatusOK, types.TransferResponse{
		To:        tr.To.String(),
		Lamports:  tr.Lamports,
		Sol:       types.LamportsToSol(tr.Lamports),
		Signature: tr.Signature.String(),
	})
}
