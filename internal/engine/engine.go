// Package engine contains the scheduler: it validates submitted graphs as a
// batch, computes a dependency plan, executes ready nodes on a bounded
// worker pool, applies retry and timeout policy, propagates failures as
// skips, and emits the run's ordered lifecycle event stream.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/vk/chainflow/internal/events"
	"github.com/vk/chainflow/internal/executor"
	"github.com/vk/chainflow/internal/graph"
	"github.com/vk/chainflow/internal/metrics"
	"github.com/vk/chainflow/internal/ports"
	"github.com/vk/chainflow/internal/run"
	"github.com/vk/chainflow/internal/store"
)

// ErrTimeout marks an Execute call that outlived its per-node timeout. The
// side effect's true outcome is unknown at that point; duplicate safety is
// the executor's obligation.
var ErrTimeout = errors.New("node execution timed out")

// ErrRunNotActive is returned when cancelling a run that is not in flight.
var ErrRunNotActive = errors.New("run is not active")

// Engine drives runs from pending to a terminal status.
type Engine struct {
	registry *executor.Registry
	store    store.RunStore
	archive  store.Archiver
	bus      *events.Bus
	metrics  *metrics.Metrics
	secrets  map[string]string
	logger   *slog.Logger

	mu     sync.Mutex
	active map[string]*activeRun
}

type activeRun struct {
	cancel    context.CancelFunc
	cancelled atomic.Bool
	done      chan struct{}
}

// Config wires an Engine's collaborators. Store and Registry are required;
// the rest default to no-ops.
type Config struct {
	Registry *executor.Registry
	Store    store.RunStore
	Archive  store.Archiver
	Bus      *events.Bus
	Metrics  *metrics.Metrics
	Secrets  map[string]string
	Logger   *slog.Logger
}

// New creates an engine.
func New(cfg Config) *Engine {
	if cfg.Registry == nil || cfg.Store == nil {
		panic("engine requires a registry and a run store")
	}
	if cfg.Archive == nil {
		cfg.Archive = store.NopArchiver{}
	}
	if cfg.Bus == nil {
		cfg.Bus = events.NewBus()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		registry: cfg.Registry,
		store:    cfg.Store,
		archive:  cfg.Archive,
		bus:      cfg.Bus,
		metrics:  cfg.Metrics,
		secrets:  cfg.Secrets,
		logger:   cfg.Logger,
		active:   make(map[string]*activeRun),
	}
}

// Bus exposes the engine's event stream for observers.
func (e *Engine) Bus() *events.Bus { return e.bus }

// OperationTypes lists the operation types the engine can execute.
func (e *Engine) OperationTypes() []string { return e.registry.OperationTypes() }

// Snapshot returns a consistent copy of a run and its step records.
func (e *Engine) Snapshot(ctx context.Context, runID string) (*run.Snapshot, error) {
	return e.store.Snapshot(ctx, runID)
}

// binding is one precomputed input flow into a node.
type binding struct {
	sourceNode string
	sourcePort string
	targetPort string
	chain      *ports.Chain
}

// plan is the validated, ready-to-execute form of a graph.
type plan struct {
	graph    *graph.Graph
	bindings map[string][]binding // keyed by target node id
}

// Submit validates the graph and, if it is fully valid, creates a run and
// starts executing it asynchronously. Validation problems are reported as a
// single batch; the engine never starts a partially valid graph.
func (e *Engine) Submit(ctx context.Context, g *graph.Graph, opts Options) (string, error) {
	opts = opts.withDefaults()

	if err := g.Validate(); err != nil {
		return "", err
	}

	// Unregistered operation types are rejected here, at validation time,
	// never at dispatch time.
	for _, n := range g.Nodes {
		if _, ok := e.registry.Lookup(n.OperationType); !ok {
			return "", &executor.ErrUnknownOperationType{OperationType: n.OperationType, NodeID: n.ID}
		}
	}

	p, err := e.buildPlan(g)
	if err != nil {
		return "", err
	}

	runID := uuid.NewString()
	r := &run.Run{ID: runID, GraphID: g.ID, Status: run.StatusPending}
	steps := make([]run.StepRecord, len(g.Nodes))
	for i, n := range g.Nodes {
		steps[i] = run.StepRecord{NodeID: n.ID, Status: run.StepPending}
	}
	if err := e.store.CreateRun(ctx, r, steps); err != nil {
		return "", fmt.Errorf("creating run: %w", err)
	}

	// The run context is detached from the submission context: execution
	// outlives the HTTP request that started it.
	runCtx, cancel := context.WithCancel(context.Background())
	ar := &activeRun{cancel: cancel, done: make(chan struct{})}
	e.mu.Lock()
	e.active[runID] = ar
	e.mu.Unlock()

	go e.execute(runCtx, runID, p, opts, ar)
	return runID, nil
}

// buildPlan pre-checks every edge against the declared executor ports and
// resolves a transformation chain per edge. Faults come back as one batch.
func (e *Engine) buildPlan(g *graph.Graph) (*plan, error) {
	var faults []graph.Fault
	bindings := make(map[string][]binding)

	for _, edge := range g.Edges {
		srcNode := g.NodeByID(edge.SourceNode)
		dstNode := g.NodeByID(edge.TargetNode)
		srcEx, _ := e.registry.Lookup(srcNode.OperationType)
		dstEx, _ := e.registry.Lookup(dstNode.OperationType)

		srcPort, ok := srcEx.Spec().Output(edge.SourcePort)
		if !ok {
			faults = append(faults, graph.Fault{
				EdgeID: edge.ID,
				Reason: fmt.Sprintf("operation %q declares no output port %q", srcNode.OperationType, edge.SourcePort),
			})
			continue
		}
		dstPort, ok := dstEx.Spec().Input(edge.TargetPort)
		if !ok {
			faults = append(faults, graph.Fault{
				EdgeID: edge.ID,
				Reason: fmt.Sprintf("operation %q declares no input port %q", dstNode.OperationType, edge.TargetPort),
			})
			continue
		}

		chain, err := ports.FindChain(srcPort.Type, dstPort.Type)
		if err != nil {
			faults = append(faults, graph.Fault{EdgeID: edge.ID, Reason: err.Error()})
			continue
		}
		bindings[edge.TargetNode] = append(bindings[edge.TargetNode], binding{
			sourceNode: edge.SourceNode,
			sourcePort: edge.SourcePort,
			targetPort: edge.TargetPort,
			chain:      chain,
		})
	}

	if len(faults) > 0 {
		return nil, &graph.ValidationError{Faults: faults}
	}
	return &plan{graph: g, bindings: bindings}, nil
}

// Cancel requests cancellation of an in-flight run. No new node is
// dispatched afterwards; running nodes get the configured grace period.
func (e *Engine) Cancel(runID string) error {
	e.mu.Lock()
	ar, ok := e.active[runID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotActive, runID)
	}
	if ar.cancelled.CompareAndSwap(false, true) {
		e.logger.Info("Run cancellation requested.", "runID", runID)
		ar.cancel()
	}
	return nil
}

// Wait blocks until the run leaves the active table (terminal status
// applied, archive attempted). Primarily for the CLI and tests.
func (e *Engine) Wait(runID string) {
	e.mu.Lock()
	ar, ok := e.active[runID]
	e.mu.Unlock()
	if ok {
		<-ar.done
	}
}
