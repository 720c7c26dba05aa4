package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/solprobe/internal/marinade"
	"github.com/example/solprobe/internal/solana"
	"github.com/example/solprobe/internal/types"
	"github.com/example/solprobe/pkg/jsonutil"
	sol "github.com/gagliardetto/solana-go"
)

// AdminHandler exposes admin-authority instructions. Requests must carry
// X-Admin-Token; the provider wallet signs as admin authority.
type AdminHandler struct {
	Sender     solana.Sender
	Admin      sol.PrivateKey
	Program    sol.PublicKey
	AdminToken string
	Timeout    time.Duration
	Logger     *slog.Logger
}

func NewAdminHandler(sender solana.Sender, admin sol.PrivateKey, program sol.PublicKey, adminToken string, timeout time.Duration, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{Sender: sender, Admin: admin, Program: program, AdminToken: adminToken, Timeout: timeout, Logger: logger}
}

func (h *AdminHandler) authorized(r *http.Request) bool {
	got := r.Header.Get("X-Admin-Token")
	return h.AdminToken != "" && subtle.ConstantTimeCompare([]byte(got), []byte(h.AdminToken)) == 1
}

// ServeHTTP handles POST /admin/config-marinade
func (h *AdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonutil.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.authorized(r) {
		jsonutil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req types.ConfigMarinadeRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "bad request")
		return
	}
	state, ok := parsePubkey(req.State)
	if !ok {
		jsonutil.Error(w, http.StatusBadRequest, "invalid state account")
		return
	}
	params := marinade.ConfigMarinadeParams{
		SlotsForStakeDelta:      req.SlotsForStakeDelta,
		MinStake:                req.MinStake,
		MinDeposit:              req.MinDeposit,
		MinWithdraw:             req.MinWithdraw,
		StakingSolCap:           req.StakingSolCap,
		LiquiditySolCap:         req.LiquiditySolCap,
		AutoAddValidatorEnabled: req.AutoAddValidatorEnabled,
	}
	if req.RewardsFee != nil {
		fee, err := marinade.ParseFee(*req.RewardsFee)
		if err != nil {
			jsonutil.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		params.RewardsFee = &fee
	}
	if params.Empty() {
		jsonutil.Error(w, http.StatusBadRequest, "nothing to change")
		return
	}
	ix, err := marinade.NewConfigMarinadeInstruction(h.Program, params, state, h.Admin.PublicKey())
	if err != nil {
		jsonutil.Error(w, statusFor(err), err.Error())
		return
	}

	ctx := r.Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}
	sig, err := h.Sender.SendAndConfirm(ctx, []sol.Instruction{ix}, h.Admin)
	if err != nil {
		h.Logger.WarnContext(ctx, "config_marinade failed", "event", "config_marinade_error", "state", req.State, "error", err)
		jsonutil.Error(w, statusFor(err), err.Error())
		return
	}
	h.Logger.InfoContext(ctx, "config_marinade confirmed", "event", "config_marinade", "state", req.State, "signature", sig.String())
	jsonutil.JSON(w, http.StatusOK, types.SignatureResponse{Signature: sig.String()})
}
