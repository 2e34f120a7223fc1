package run

import (
	"sync"
	"time"
)

// Context is the execution context handed to every executor call. Identity
// fields are immutable for the lifetime of the run; the variable table is a
// mutable scratch space shared by the run's nodes. Secrets are populated by
// the scheduler at run start and are read-only from the executor's side.
type Context struct {
	RunID       string
	GraphID     string
	StartTime   time.Time
	Environment string

	mu      sync.RWMutex
	vars    map[string]any
	secrets map[string]string
}

// NewContext builds a context for one run. The secrets map is copied so the
// caller cannot mutate the store after the run starts.
func NewContext(runID, graphID, environment string, secrets map[string]string) *Context {
	sc := make(map[string]string, len(secrets))
	for k, v := range secrets {
		sc[k] = v
	}
	return &Context{
		RunID:       runID,
		GraphID:     graphID,
		StartTime:   time.Now().UTC(),
		Environment: environment,
		vars:        make(map[string]any),
		secrets:     sc,
	}
}

// TestEnvironment reports whether the run executes in dry-run mode, in which
// executors must not produce externally visible side effects.
func (c *Context) TestEnvironment() bool {
	return c.Environment == "test"
}

// SetVar stores a value in the run's scratch space.
func (c *Context) SetVar(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vars[key] = value
}

// Var reads a value from the run's scratch space.
func (c *Context) Var(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vars[key]
	return v, ok
}

// Secret returns an environment-scoped secret by name. Secrets never appear
// in node config or step outputs.
func (c *Context) Secret(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.secrets[name]
	return v, ok
}
