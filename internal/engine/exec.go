package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/chainflow/internal/ctxlog"
	"github.com/vk/chainflow/internal/events"
	"github.com/vk/chainflow/internal/executor"
	"github.com/vk/chainflow/internal/run"
)

// execNode is the scheduler's per-run view of one graph node.
type execNode struct {
	node     *graphNodeRef
	ex       executor.Executor
	bindings []binding

	depCount   atomic.Int32
	dependents []*execNode

	// claimed flips exactly once, by whichever path terminalizes the node:
	// a worker dispatching it, skip propagation, or cancellation sweep.
	claimed atomic.Bool
	failed  atomic.Bool
	errMsg  string

	outputs map[string]any
}

// graphNodeRef keeps just what execution needs from the graph document.
type graphNodeRef struct {
	ID            string
	OperationType string
	Config        map[string]any
}

type runState struct {
	runID string
	rctx  *run.Context
	opts  Options
	nodes map[string]*execNode
	order []*execNode
	wg    sync.WaitGroup
}

// execute drives one run to a terminal status. It owns all mutation of the
// run's step records.
func (e *Engine) execute(ctx context.Context, runID string, p *plan, opts Options, ar *activeRun) {
	logger := e.logger.With("runID", runID, "graphID", p.graph.ID)

	defer func() {
		e.mu.Lock()
		delete(e.active, runID)
		e.mu.Unlock()
		close(ar.done)
	}()

	st := &runState{
		runID: runID,
		rctx:  run.NewContext(runID, p.graph.ID, opts.Environment, e.secrets),
		opts:  opts,
		nodes: make(map[string]*execNode, len(p.graph.Nodes)),
	}

	preds := p.graph.Predecessors()
	for _, n := range p.graph.Nodes {
		ex, _ := e.registry.Lookup(n.OperationType)
		en := &execNode{
			node:     &graphNodeRef{ID: n.ID, OperationType: n.OperationType, Config: n.Config},
			ex:       ex,
			bindings: p.bindings[n.ID],
		}
		en.depCount.Store(int32(len(preds[n.ID])))
		st.nodes[n.ID] = en
		st.order = append(st.order, en)
	}
	// Dependents in node-list order keeps ready-set tie-breaks
	// deterministic.
	succs := p.graph.Successors()
	for _, en := range st.order {
		for _, candidate := range st.order {
			if _, ok := succs[en.node.ID][candidate.node.ID]; ok {
				en.dependents = append(en.dependents, candidate)
			}
		}
	}

	now := time.Now().UTC()
	_ = e.store.UpdateRun(ctx, runID, func(r *run.Run) {
		r.Status = run.StatusRunning
		r.StartTime = now
	})
	e.bus.Publish(events.Event{RunID: runID, Type: events.RunStarted})
	logger.Info("Run started.", "nodes", len(st.order), "workers", opts.MaxConcurrency)

	readyChan := make(chan *execNode, len(st.order))
	st.wg.Add(len(st.order))
	for _, en := range st.order {
		if en.depCount.Load() == 0 {
			e.markReady(st, en)
			readyChan <- en
		}
	}

	workers := opts.MaxConcurrency
	if workers > len(st.order) {
		workers = len(st.order)
	}
	for i := 0; i < workers; i++ {
		go e.worker(ctx, st, readyChan, i)
	}

	st.wg.Wait()
	close(readyChan)

	e.finalize(runID, st, ar, logger)
}

func (e *Engine) finalize(runID string, st *runState, ar *activeRun, logger *slog.Logger) {
	var rootCause string
	for _, en := range st.order {
		if en.failed.Load() && rootCause == "" {
			rootCause = fmt.Sprintf("node %q: %s", en.node.ID, en.errMsg)
		}
	}

	status := run.StatusCompleted
	evType := events.RunCompleted
	switch {
	case ar.cancelled.Load():
		status = run.StatusCancelled
		evType = events.RunCancelled
	case rootCause != "":
		status = run.StatusFailed
		evType = events.RunFailed
	}

	end := time.Now().UTC()
	bg := context.Background()
	_ = e.store.UpdateRun(bg, runID, func(r *run.Run) {
		r.Status = status
		r.EndTime = &end
		r.Error = rootCause
	})
	e.bus.Publish(events.Event{RunID: runID, Type: evType, Error: rootCause})
	if e.metrics != nil {
		e.metrics.RunsTotal.WithLabelValues(string(status)).Inc()
	}

	switch status {
	case run.StatusCompleted:
		logger.Info("Run completed.")
	default:
		logger.Warn("Run finished without completing.", "status", string(status), "error", rootCause)
	}

	if snap, err := e.store.Snapshot(bg, runID); err == nil {
		if err := e.archive.ArchiveRun(bg, snap); err != nil {
			logger.Warn("Run archival failed.", "error", err)
		}
	}
}

// worker is the processing loop for one concurrent worker.
func (e *Engine) worker(ctx context.Context, st *runState, readyChan chan *execNode, workerID int) {
	for en := range readyChan {
		if ctx.Err() != nil {
			// Cancellation is immediate at the ready-queue boundary. The
			// node's downstream closure is swept here too: nothing will
			// ever decrement those depCounts, so leaving them unclaimed
			// would strand their WaitGroup slots.
			if en.claimed.CompareAndSwap(false, true) {
				e.markSkipped(st, en, "run cancelled before dispatch")
				st.wg.Done()
				e.skipDependents(st, en, "run cancelled before dispatch")
			}
			continue
		}
		if !en.claimed.CompareAndSwap(false, true) {
			continue
		}

		if failed := e.runNode(ctx, st, en, workerID); failed {
			en.failed.Store(true)
			e.skipDependents(st, en, fmt.Sprintf("skipped due to upstream failure of %q", en.node.ID))
		} else {
			for _, dep := range en.dependents {
				if dep.depCount.Add(-1) == 0 {
					e.markReady(st, dep)
					readyChan <- dep
				}
			}
		}
		st.wg.Done()
	}
}

// skipDependents transitively marks downstream nodes skipped. A failed or
// cancel-swept node never decrements its dependents, so a skipped node
// cannot also be dispatched; the claimed flag guards against double-skips
// from two failed ancestors.
func (e *Engine) skipDependents(st *runState, en *execNode, reason string) {
	for _, dep := range en.dependents {
		if dep.claimed.CompareAndSwap(false, true) {
			e.markSkipped(st, dep, reason)
			st.wg.Done()
			e.skipDependents(st, dep, reason)
		}
	}
}

// runNode executes one claimed node end to end and reports whether it
// failed. All step record mutation goes through the store's single
// transition path.
func (e *Engine) runNode(ctx context.Context, st *runState, en *execNode, workerID int) bool {
	logger := e.logger.With("runID", st.runID, "node", en.node.ID, "operation", en.node.OperationType, "worker", workerID)

	inputs, err := st.gather(en)
	if err != nil {
		logger.Warn("Input assembly failed.", "error", err)
		e.markFailed(st, en, err.Error())
		return true
	}

	start := time.Now().UTC()
	_ = e.store.UpdateStep(ctx, st.runID, en.node.ID, func(s *run.StepRecord) {
		s.Status = run.StepRunning
		s.StartTime = &start
	})
	e.bus.Publish(events.Event{RunID: st.runID, Type: events.NodeStarted, NodeID: en.node.ID})
	logger.Info("▶️ Node started")

	// Validate is pure; a rejection is final and never retried, since a
	// retry would fail identically.
	if vr := en.ex.Validate(inputs); !vr.Valid {
		msg := "input validation failed: " + strings.Join(vr.Errors, "; ")
		logger.Warn("Node rejected by validation.", "errors", vr.Errors)
		e.markFailed(st, en, msg)
		return true
	}

	for attempt := 1; ; attempt++ {
		_ = e.store.UpdateStep(ctx, st.runID, en.node.ID, func(s *run.StepRecord) {
			s.Attempts = attempt
		})

		res, err := e.executeOnce(ctx, st, en, inputs)
		if err == nil {
			en.outputs = res.Outputs
			e.markCompleted(st, en, res, time.Since(start))
			logger.Info("✅ Node completed", "attempts", attempt)
			return false
		}

		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			logger.Warn("Node abandoned by cancellation.", "attempt", attempt)
			e.markFailed(st, en, "run cancelled during execution")
			return true
		}

		logger.Warn("Node execution attempt failed.", "attempt", attempt, "error", err)
		if attempt >= st.opts.Retry.MaxAttempts {
			e.markFailed(st, en, err.Error())
			return true
		}
		if e.metrics != nil {
			e.metrics.NodeRetries.Inc()
		}
		backoff := st.opts.Retry.Backoff << (attempt - 1)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			e.markFailed(st, en, "run cancelled during retry backoff")
			return true
		}
	}
}

// executeOnce runs a single Execute (or Test) attempt under the per-node
// timeout. The engine stops waiting at the deadline regardless of executor
// cooperation; an abandoned attempt may still complete in the background,
// which is why executors must be duplicate-safe.
func (e *Engine) executeOnce(ctx context.Context, st *runState, en *execNode, inputs executor.Inputs) (*executor.Result, error) {
	execCtx, cancel := context.WithTimeout(ctx, st.opts.NodeTimeout)
	defer cancel()
	execCtx = ctxlog.WithLogger(execCtx, e.logger.With("runID", st.runID, "node", en.node.ID))

	type outcome struct {
		res *executor.Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("executor panicked: %v", r)}
			}
		}()
		var res *executor.Result
		var err error
		if st.rctx.TestEnvironment() {
			if dr, ok := en.ex.(executor.DryRunner); ok {
				res, err = dr.Test(execCtx, inputs, st.rctx)
			} else {
				res, err = en.ex.Execute(execCtx, inputs, st.rctx)
			}
		} else {
			res, err = en.ex.Execute(execCtx, inputs, st.rctx)
		}
		ch <- outcome{res: res, err: err}
	}()

	select {
	case out := <-ch:
		if out.err == nil && out.res == nil {
			out.res = &executor.Result{}
		}
		return out.res, out.err
	case <-execCtx.Done():
		if ctx.Err() != nil {
			// Run cancelled: already-dispatched work gets a bounded grace
			// period to observe cancellation and exit.
			select {
			case out := <-ch:
				return out.res, out.err
			case <-time.After(st.opts.CancelGrace):
				return nil, context.Canceled
			}
		}
		return nil, fmt.Errorf("%w after %s", ErrTimeout, st.opts.NodeTimeout)
	}
}

// gather assembles a node's inputs from upstream outputs, applying the
// transformation chain resolved for each edge before the run started.
func (st *runState) gather(en *execNode) (executor.Inputs, error) {
	vals := make(map[string]any, len(en.bindings))
	for _, b := range en.bindings {
		src := st.nodes[b.sourceNode]
		v, ok := src.outputs[b.sourcePort]
		if !ok {
			return executor.Inputs{}, fmt.Errorf("upstream node %q produced no output on port %q", b.sourceNode, b.sourcePort)
		}
		out, err := b.chain.Apply(v)
		if err != nil {
			return executor.Inputs{}, fmt.Errorf("transforming %s.%s -> %s: %w", b.sourceNode, b.sourcePort, b.targetPort, err)
		}
		vals[b.targetPort] = out
	}
	return executor.Inputs{Node: en.node.ID, Values: vals, Config: en.node.Config}, nil
}

func (e *Engine) markReady(st *runState, en *execNode) {
	_ = e.store.UpdateStep(context.Background(), st.runID, en.node.ID, func(s *run.StepRecord) {
		s.Status = run.StepReady
	})
	e.bus.Publish(events.Event{RunID: st.runID, Type: events.NodeReady, NodeID: en.node.ID})
}

func (e *Engine) markCompleted(st *runState, en *execNode, res *executor.Result, elapsed time.Duration) {
	end := time.Now().UTC()
	_ = e.store.UpdateStep(context.Background(), st.runID, en.node.ID, func(s *run.StepRecord) {
		s.Status = run.StepCompleted
		s.EndTime = &end
		s.Outputs = res.Outputs
	})
	e.bus.Publish(events.Event{RunID: st.runID, Type: events.NodeCompleted, NodeID: en.node.ID, Outputs: res.Outputs})
	if e.metrics != nil {
		e.metrics.NodeExecutions.WithLabelValues(en.node.OperationType, "completed").Inc()
		e.metrics.NodeDuration.WithLabelValues(en.node.OperationType).Observe(elapsed.Seconds())
	}
}

func (e *Engine) markFailed(st *runState, en *execNode, msg string) {
	en.failed.Store(true)
	en.errMsg = msg
	end := time.Now().UTC()
	_ = e.store.UpdateStep(context.Background(), st.runID, en.node.ID, func(s *run.StepRecord) {
		s.Status = run.StepFailed
		s.EndTime = &end
		s.Error = msg
	})
	e.bus.Publish(events.Event{RunID: st.runID, Type: events.NodeFailed, NodeID: en.node.ID, Error: msg})
	if e.metrics != nil {
		e.metrics.NodeExecutions.WithLabelValues(en.node.OperationType, "failed").Inc()
	}
}

func (e *Engine) markSkipped(st *runState, en *execNode, reason string) {
	end := time.Now().UTC()
	_ = e.store.UpdateStep(context.Background(), st.runID, en.node.ID, func(s *run.StepRecord) {
		s.Status = run.StepSkipped
		s.EndTime = &end
		s.Error = reason
	})
	e.bus.Publish(events.Event{RunID: st.runID, Type: events.NodeSkipped, NodeID: en.node.ID, Error: reason})
	if e.metrics != nil {
		e.metrics.NodeExecutions.WithLabelValues(en.node.OperationType, "skipped").Inc()
	}
}
