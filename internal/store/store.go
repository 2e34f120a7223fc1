// Package store keeps run state. The in-memory RunStore is the engine's
// live table; mutation goes through closures under a single lock so
// concurrent node completions cannot race and snapshots are always
// consistent.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/chainflow/internal/run"
)

// ErrRunNotFound is returned for unknown run ids.
var ErrRunNotFound = errors.New("run not found")

// RunStore is the engine's interface to live run state.
type RunStore interface {
	CreateRun(ctx context.Context, r *run.Run, steps []run.StepRecord) error
	UpdateRun(ctx context.Context, runID string, mutate func(*run.Run)) error
	UpdateStep(ctx context.Context, runID, nodeID string, mutate func(*run.StepRecord)) error
	Snapshot(ctx context.Context, runID string) (*run.Snapshot, error)
}

// MemoryStore is the in-process RunStore implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*memRun
}

type memRun struct {
	run   run.Run
	order []string
	steps map[string]*run.StepRecord
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*memRun)}
}

// CreateRun stores a new run with its full step record table.
func (s *MemoryStore) CreateRun(ctx context.Context, r *run.Run, steps []run.StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[r.ID]; exists {
		return fmt.Errorf("run %s already exists", r.ID)
	}
	mr := &memRun{run: *r, steps: make(map[string]*run.StepRecord, len(steps))}
	for _, step := range steps {
		cp := step.Clone()
		mr.steps[step.NodeID] = &cp
		mr.order = append(mr.order, step.NodeID)
	}
	s.runs[r.ID] = mr
	return nil
}

// UpdateRun applies a mutation to the run header under the store lock.
func (s *MemoryStore) UpdateRun(ctx context.Context, runID string, mutate func(*run.Run)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mr, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	mutate(&mr.run)
	return nil
}

// UpdateStep applies a mutation to one step record under the store lock.
// This is the single transition path for all step state.
func (s *MemoryStore) UpdateStep(ctx context.Context, runID, nodeID string, mutate func(*run.StepRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mr, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	step, ok := mr.steps[nodeID]
	if !ok {
		return fmt.Errorf("run %s has no step for node %s", runID, nodeID)
	}
	mutate(step)
	return nil
}

// Snapshot returns a deep copy of the run and its step records, in node
// creation order. No partially applied transition is ever visible.
func (s *MemoryStore) Snapshot(ctx context.Context, runID string) (*run.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mr, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	snap := &run.Snapshot{Run: mr.run, Steps: make([]run.StepRecord, 0, len(mr.order))}
	for _, nodeID := range mr.order {
		snap.Steps = append(snap.Steps, mr.steps[nodeID].Clone())
	}
	return snap, nil
}
