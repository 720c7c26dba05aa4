package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/example/solprobe/internal/scenario"
	"github.com/example/solprobe/internal/types"
	"github.com/example/solprobe/pkg/jsonutil"
	"github.com/go-chi/chi/v5"
)

// RunReader serves stored reports.
type RunReader interface {
	Get(ctx context.Context, runID string) (scenario.Report, error)
	List(ctx context.Context, limit int) ([]scenario.Report, error)
}

type RunsHandler struct{ Store RunReader }

func NewRunsHandler(s RunReader) *RunsHandler { return &RunsHandler{Store: s} }

// List handles GET /api/runs?limit=N.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonutil.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	reps, err := h.Store.List(r.Context(), limit)
	if err != nil {
		jsonutil.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := types.ListRunsResponse{Runs: make([]types.RunSummary, 0, len(reps))}
	for _, rep := range reps {
		out.Runs = append(out.Runs, types.NewRunSummary(rep))
	}
	jsonutil.JSON(w, http.StatusOK, out)
}

// Get handles GET /api/runs/{id}.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		code := statusFor(err)
		if code == http.StatusBadGateway {
			code = http.StatusInternalServerError
		}
		jsonutil.Error(w, code, err.Error())
		return
	}
	jsonutil.JSON(w, http.StatusOK, types.NewRunSummary(rep))
}
