package executor

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ErrUnknownOperationType marks a graph referencing an operation type with
// no registered executor.
type ErrUnknownOperationType struct {
	OperationType string
	NodeID        string
}

func (e *ErrUnknownOperationType) Error() string {
	return fmt.Sprintf("node %s: unknown operation type %q", e.NodeID, e.OperationType)
}

// Module is implemented by packages contributing executors. Registration is
// an explicit call at process start, never reflection-based discovery.
type Module interface {
	Register(r *Registry)
}

// Registry maps operation-type names to executor implementations. It
// supports runtime registration so new operation types can be added without
// touching the scheduler.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register adds an executor under its declared operation type. Registering
// the same type twice is a programming error and panics.
func (r *Registry) Register(ex Executor) {
	opType := ex.Spec().OperationType
	if opType == "" {
		panic("executor registered with empty operation type")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[opType]; exists {
		panic(fmt.Sprintf("executor for operation type %q already registered", opType))
	}
	slog.Debug("Registering executor.", "operationType", opType)
	r.executors[opType] = ex
}

// Install registers every executor contributed by the given modules.
func (r *Registry) Install(modules ...Module) {
	for _, m := range modules {
		m.Register(r)
	}
}

// Lookup returns the executor for an operation type.
func (r *Registry) Lookup(opType string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ex, ok := r.executors[opType]
	return ex, ok
}

// OperationTypes lists the registered operation types, sorted.
func (r *Registry) OperationTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.executors))
	for t := range r.executors {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
