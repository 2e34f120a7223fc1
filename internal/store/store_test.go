package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/chainflow/internal/run"
)

func seedRun(t *testing.T, s *MemoryStore, id string, nodes ...string) {
	t.Helper()
	steps := make([]run.StepRecord, len(nodes))
	for i, n := range nodes {
		steps[i] = run.StepRecord{NodeID: n, Status: run.StepPending}
	}
	r := &run.Run{ID: id, GraphID: "g", Status: run.StatusPending, StartTime: time.Now()}
	require.NoError(t, s.CreateRun(context.Background(), r, steps))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("create and snapshot preserve node order", func(t *testing.T) {
		s := NewMemoryStore()
		seedRun(t, s, "r1", "c", "a", "b")

		snap, err := s.Snapshot(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "r1", snap.Run.ID)
		require.Len(t, snap.Steps, 3)
		assert.Equal(t, "c", snap.Steps[0].NodeID)
		assert.Equal(t, "a", snap.Steps[1].NodeID)
		assert.Equal(t, "b", snap.Steps[2].NodeID)
	})

	t.Run("duplicate run id rejected", func(t *testing.T) {
		s := NewMemoryStore()
		seedRun(t, s, "r1", "a")
		err := s.CreateRun(ctx, &run.Run{ID: "r1"}, nil)
		require.Error(t, err)
	})

	t.Run("update run and step", func(t *testing.T) {
		s := NewMemoryStore()
		seedRun(t, s, "r1", "a")

		require.NoError(t, s.UpdateRun(ctx, "r1", func(r *run.Run) {
			r.Status = run.StatusRunning
		}))
		require.NoError(t, s.UpdateStep(ctx, "r1", "a", func(step *run.StepRecord) {
			step.Status = run.StepCompleted
			step.Outputs = map[string]any{"out": "value"}
		}))

		snap, err := s.Snapshot(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, run.StatusRunning, snap.Run.Status)
		assert.Equal(t, run.StepCompleted, snap.Steps[0].Status)
		assert.Equal(t, "value", snap.Steps[0].Outputs["out"])
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		s := NewMemoryStore()
		seedRun(t, s, "r1", "a")
		require.NoError(t, s.UpdateStep(ctx, "r1", "a", func(step *run.StepRecord) {
			step.Outputs = map[string]any{"out": "original"}
		}))

		snap, err := s.Snapshot(ctx, "r1")
		require.NoError(t, err)
		snap.Steps[0].Outputs["out"] = "mutated"
		snap.Run.Status = run.StatusFailed

		fresh, err := s.Snapshot(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "original", fresh.Steps[0].Outputs["out"])
		assert.Equal(t, run.StatusPending, fresh.Run.Status)
	})

	t.Run("unknown run", func(t *testing.T) {
		s := NewMemoryStore()
		_, err := s.Snapshot(ctx, "ghost")
		require.ErrorIs(t, err, ErrRunNotFound)
		require.ErrorIs(t, s.UpdateRun(ctx, "ghost", func(*run.Run) {}), ErrRunNotFound)
		require.ErrorIs(t, s.UpdateStep(ctx, "ghost", "a", func(*run.StepRecord) {}), ErrRunNotFound)
	})

	t.Run("unknown step", func(t *testing.T) {
		s := NewMemoryStore()
		seedRun(t, s, "r1", "a")
		require.Error(t, s.UpdateStep(ctx, "r1", "ghost", func(*run.StepRecord) {}))
	})
}
