package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/example/solprobe/internal/funding"
	"github.com/example/solprobe/internal/scenario"
	"github.com/example/solprobe/internal/types"
	"github.com/example/solprobe/pkg/jsonutil"
)

// SuiteRunner executes a suite and returns its report.
type SuiteRunner interface {
	Run(ctx context.Context, suite scenario.Suite) (scenario.Report, error)
}

// ScenarioHandler runs the dup_acct suite on demand.
type ScenarioHandler struct {
	Runner         SuiteRunner
	DupAcct        func(fundSOL float64) scenario.Suite
	DefaultFundSOL float64
	Logger         *slog.Logger
}

func NewScenarioHandler(runner SuiteRunner, dupAcct func(float64) scenario.Suite, fundSOL float64, logger *slog.Logger) *ScenarioHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScenarioHandler{Runner: runner, DupAcct: dupAcct, DefaultFundSOL: fundSOL, Logger: logger}
}

// RunDupAcct handles POST /api/scenarios/dup-acct. An empty body uses the
// configured funding amount.
func (h *ScenarioHandler) RunDupAcct(w http.ResponseWriter, r *http.Request) {
	var req types.RunScenarioRequest
	if err := jsonutil.Decode(r, &req); err != nil && err != io.EOF {
		jsonutil.Error(w, http.StatusBadRequest, "bad request")
		return
	}
	fund := h.DefaultFundSOL
	if req.FundSOL != nil {
		fund = *req.FundSOL
	}
	if _, err := funding.SolToLamports(fund); err != nil {
		jsonutil.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if fund == 0 {
		jsonutil.Error(w, http.StatusBadRequest, "fund_sol must be positive: the identity pays for the repeated initialize")
		return
	}
	rep, err := h.Runner.Run(r.Context(), h.DupAcct(fund))
	if err != nil {
		// the run finished; only persisting it failed
		h.Logger.ErrorContext(r.Context(), "run not recorded", "event", "scenario_record_error", "run_id", rep.RunID, "error", err)
	}
	jsonutil.JSON(w, http.StatusOK, types.NewRunSummary(rep))
}
