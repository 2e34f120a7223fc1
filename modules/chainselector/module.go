// Package chainselector implements chain.select: it pins a network id for
// downstream nodes.
package chainselector

import (
	"context"
	"fmt"

	"github.com/vk/chainflow/internal/chain"
	"github.com/vk/chainflow/internal/executor"
	"github.com/vk/chainflow/internal/ports"
	"github.com/vk/chainflow/internal/run"
)

type Module struct {
	Chains chain.Set
}

func (m *Module) Register(r *executor.Registry) {
	r.Register(&Executor{chains: m.Chains})
}

type Executor struct {
	chains chain.Set
}

func (e *Executor) Spec() executor.Spec {
	return executor.Spec{
		OperationType: "chain.select",
		Outputs: []ports.Port{
			{Name: "network", Type: ports.ChainID},
		},
	}
}

func (e *Executor) Validate(in executor.Inputs) executor.ValidationResult {
	network, ok := in.String("network")
	if !ok || network == "" {
		return executor.Invalid("config.network is required")
	}
	if !e.chains.Known(network) {
		return executor.Invalid(fmt.Sprintf("unsupported network %q", network))
	}
	return executor.OK()
}

func (e *Executor) Execute(ctx context.Context, in executor.Inputs, rc *run.Context) (*executor.Result, error) {
	network, _ := in.String("network")
	return &executor.Result{Outputs: map[string]any{"network": network}}, nil
}
