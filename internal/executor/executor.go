// Package executor defines the plugin contract every operation type
// implements and the registry that maps operation-type names to
// implementations.
package executor

import (
	"context"

	"github.com/vk/chainflow/internal/ports"
	"github.com/vk/chainflow/internal/run"
)

// Spec declares an executor's identity and its typed ports. Ports are fixed
// per operation type and consulted during connection validation, before any
// node runs.
type Spec struct {
	OperationType string
	Inputs        []ports.Port
	Outputs       []ports.Port
}

// Input returns the declared input port with the given name, or false.
func (s Spec) Input(name string) (ports.Port, bool) {
	for _, p := range s.Inputs {
		if p.Name == name {
			return p, true
		}
	}
	return ports.Port{}, false
}

// Output returns the declared output port with the given name, or false.
func (s Spec) Output(name string) (ports.Port, bool) {
	for _, p := range s.Outputs {
		if p.Name == name {
			return p, true
		}
	}
	return ports.Port{}, false
}

// ValidationResult is the outcome of a pure input check.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// OK is the successful validation result.
func OK() ValidationResult { return ValidationResult{Valid: true} }

// Invalid builds a failed validation result from one or more messages.
func Invalid(msgs ...string) ValidationResult {
	return ValidationResult{Valid: false, Errors: msgs}
}

// Result is the outcome of an Execute or Test call.
type Result struct {
	Outputs map[string]any `json:"outputs,omitempty"`
	Logs    []string       `json:"logs,omitempty"`
}

// Inputs bundles the values flowing into a node: edge-delivered port values
// plus the node's author-supplied config.
type Inputs struct {
	// Node is the id of the node being executed, for deriving idempotency
	// keys that survive a retried attempt.
	Node string
	// Values holds one entry per bound input port, already passed through
	// any transformation chain.
	Values map[string]any
	// Config is the node's config block from the graph document.
	Config map[string]any
}

// Value reads a bound port value.
func (in Inputs) Value(port string) (any, bool) {
	v, ok := in.Values[port]
	return v, ok
}

// String reads a bound port value or config key as a string, ports first.
func (in Inputs) String(key string) (string, bool) {
	if v, ok := in.Values[key]; ok {
		s, ok := v.(string)
		return s, ok
	}
	if v, ok := in.Config[key]; ok {
		s, ok := v.(string)
		return s, ok
	}
	return "", false
}

// Executor is the contract every operation type implements.
//
// Validate must be pure, idempotent and side-effect free; it is safe to call
// speculatively and is always called before Execute. All inputs are
// untrusted: malformed addresses, out-of-range amounts and unknown networks
// must be rejected here, not discovered mid-Execute.
//
// Execute may have external side effects but must be safe to retry: either
// naturally idempotent, or able to detect and short-circuit a duplicate
// attempt. The engine's timeout does not wait for cooperation, so a timed
// out Execute may still complete in the background.
type Executor interface {
	Spec() Spec
	Validate(in Inputs) ValidationResult
	Execute(ctx context.Context, in Inputs, rc *run.Context) (*Result, error)
}

// DryRunner is implemented by executors that support a preview mode. Test
// runs the operation's logic without externally visible side effects.
type DryRunner interface {
	Test(ctx context.Context, in Inputs, rc *run.Context) (*Result, error)
}
