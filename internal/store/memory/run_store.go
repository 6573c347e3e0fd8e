// Package memory provides the in-memory run ledger.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/marketops/stock-harvester/internal/harvest"
)

// RunStore records run metadata for the trigger surface. The durable
// artifact of a harvest is the CSV sink; this ledger only serves
// status queries, so process-local storage is sufficient.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]harvest.Run
}

// NewRunStore creates an empty RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]harvest.Run)}
}

// CreateRun stores a new run in queued status.
func (s *RunStore) CreateRun(_ context.Context, run harvest.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return errors.New("run already exists")
	}
	s.runs[run.ID] = run
	return nil
}

// UpdateRunStatus updates the status, error text and counters of a run
// and stamps the lifecycle timestamps.
func (s *RunStore) UpdateRunStatus(
	_ context.Context,
	runID string,
	status harvest.RunStatus,
	errText string,
	counters harvest.RunCounters,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return errors.New("run not found")
	}
	run.Status = status
	run.ErrorText = errText
	run.Counters = counters
	now := time.Now().UTC()
	if status == harvest.RunStatusRunning && run.Started == nil {
		run.Started = pointerTime(now)
	}
	if isTerminal(status) {
		run.Finished = pointerTime(now)
	}
	s.runs[runID] = run
	return nil
}

// GetRun fetches a run by ID.
func (s *RunStore) GetRun(_ context.Context, runID string) (harvest.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return harvest.Run{}, errors.New("run not found")
	}
	return run, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

func isTerminal(status harvest.RunStatus) bool {
	switch status {
	case harvest.RunStatusSucceeded, harvest.RunStatusFailed, harvest.RunStatusCanceled:
		return true
	default:
		return false
	}
}
