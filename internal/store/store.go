// Package store keeps the history of scenario runs.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/example/solprobe/internal/scenario"
)

var ErrRunNotFound = errors.New("run not found")

// DefaultListLimit bounds List when the caller passes a non-positive limit.
const DefaultListLimit = 50

// RunRecorder saves and serves scenario reports and optionally provides a
// health ping.
type RunRecorder interface {
	Save(ctx context.Context, r scenario.Report) error
	Get(ctx context.Context, runID string) (scenario.Report, error)
	// List returns the most recent reports first.
	List(ctx context.Context, limit int) ([]scenario.Report, error)
	Ping(ctx context.Context) error
}

// MemoryRunStore is the in-process RunRecorder used without Mongo.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]scenario.Report
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]scenario.Report)}
}

func (s *MemoryRunStore) Save(_ context.Context, r scenario.Report) error {
	if r.RunID == "" {
		return errors.New("missing run id")
	}
	s.mu.Lock()
	s.runs[r.RunID] = r
	s.mu.Unlock()
	return nil
}

func (s *MemoryRunStore) Get(_ context.Context, runID string) (scenario.Report, error) {
	s.mu.RLock()
	r, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return scenario.Report{}, ErrRunNotFound
	}
	return r, nil
}

func (s *MemoryRunStore) List(_ context.Context, limit int) ([]scenario.Report, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	s.mu.RLock()
	out := make([]scenario.Report, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryRunStore) Ping(context.Context) error { return nil }
