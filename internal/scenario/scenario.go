// Package scenario runs ordered integration suites against a cluster and
// reports per-case outcomes.
package scenario

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/solprobe/internal/funding"
	"github.com/example/solprobe/internal/marinade"
	"github.com/example/solprobe/internal/metrics"
	"github.com/example/solprobe/internal/solana"
	sol "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// State is shared by the cases of one run. Later cases read what earlier
// cases left behind.
type State struct {
	Identity    sol.PrivateKey
	Funded      funding.Transfer
	Provisioned *marinade.Provisioned
	Initialize  sol.Instruction
}

// Case is one step of a suite. A case with ExpectFailure passes only when Run
// returns a cluster rejection.
// Case is one step of a suite. An ExpectFailure case passes only when the
// program itself rejects instruction FailingInstruction; fee, signature and
// node errors still fail it.
type Case struct {
	Name               string
	Run                func(ctx context.Context, st *State) (sol.Signature, error)
	ExpectFailure      bool
	FailingInstruction int
}

type Suite struct {
	Name  string
	Cases []Case
}

type CaseResult struct {
	Name       string `json:"name" bson:"name"`
	Status     Status `json:"status" bson:"status"`
	Signature  string `json:"signature,omitempty" bson:"signature,omitempty"`
	Error      string `json:"error,omitempty" bson:"error,omitempty"`
	DurationMS int64  `json:"duration_ms" bson:"duration_ms"`
}

type Report struct {
	RunID      string       `json:"run_id" bson:"run_id"`
	Suite      string       `json:"suite" bson:"suite"`
	StartedAt  time.Time    `json:"started_at" bson:"started_at"`
	FinishedAt time.Time    `json:"finished_at" bson:"finished_at"`
	Cases      []CaseResult `json:"cases" bson:"cases"`
}

// Passed reports whether every case passed.
func (r Report) Passed() bool {
	for _, c := range r.Cases {
		if c.Status != StatusPassed {
			return false
		}
	}
	return len(r.Cases) > 0
}

// Count returns how many cases ended with status s.
func (r Report) Count(s Status) int {
	n := 0
	for _, c := range r.Cases {
		if c.Status == s {
			n++
		}
	}
	return n
}

// Recorder persists finished reports.
type Recorder interface {
	Save(ctx context.Context, r Report) error
}

// Runner executes suites case by case. After the first failure the rest of
// the suite is skipped, since later cases depend on earlier state.
type Runner struct {
	Recorder    Recorder
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	CaseTimeout time.Duration

	now func() time.Time
}

func NewRunner(rec Recorder, m *metrics.Metrics, logger *slog.Logger, caseTimeout time.Duration) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Recorder: rec, Metrics: m, Logger: logger, CaseTimeout: caseTimeout, now: time.Now}
}

// Run executes suite and records the report. The returned error only
// reports a recorder failure; case failures live in the report.
func (r *Runner) Run(ctx context.Context, suite Suite) (Report, error) {
	now := r.now
	if now == nil {
		now = time.Now
	}
	rep := Report{
		RunID:     uuid.NewString(),
		Suite:     suite.Name,
		StartedAt: now().UTC(),
		Cases:     make([]CaseResult, 0, len(suite.Cases)),
	}
	log := r.Logger.With("suite", suite.Name, "run_id", rep.RunID)
	st := &State{}
	failed := false
	for _, c := range suite.Cases {
		res := CaseResult{Name: c.Name}
		if failed {
			res.Status = StatusSkipped
		} else {
			res = r.runCase(ctx, c, st, now)
			failed = res.Status == StatusFailed
		}
		r.Metrics.RecordScenarioCase(suite.Name, c.Name, string(res.Status))
		log.InfoContext(ctx, "case finished",
			"event", "scenario_case",
			"case", c.Name,
			"status", res.Status,
			"signature", res.Signature,
			"duration_ms", res.DurationMS,
			"error", res.Error,
		)
		rep.Cases = append(rep.Cases, res)
	}
	rep.FinishedAt = now().UTC()

	if r.Recorder != nil {
		// saved even if ctx was cancelled mid-run
		if err := r.Recorder.Save(context.WithoutCancel(ctx), rep); err != nil {
			log.ErrorContext(ctx, "save report", "event", "scenario_save_error", "error", err)
			return rep, errors.Wrapf(err, "save report %s", rep.RunID)
		}
	}
	return rep, nil
}

func (r *Runner) runCase(ctx context.Context, c Case, st *State, now func() time.Time) CaseResult {
	res := CaseResult{Name: c.Name}
	cctx := ctx
	if r.CaseTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, r.CaseTimeout)
		defer cancel()
	}
	start := now()
	sig, err := c.Run(cctx, st)
	res.DurationMS = now().Sub(start).Milliseconds()
	if !sig.IsZero() {
		res.Signature = sig.String()
	}

	switch {
	case c.ExpectFailure && err == nil:
		res.Status = StatusFailed
		res.Error = "expected the cluster to reject the transaction, it was confirmed"
	case c.ExpectFailure && solana.IsProgramError(err, c.FailingInstruction):
		res.Status = StatusPassed
		res.Error = err.Error()
	case err != nil:
		res.Status = StatusFailed
		res.Error = err.Error()
	default:
		res.Status = StatusPassed
	}
	return res
}
