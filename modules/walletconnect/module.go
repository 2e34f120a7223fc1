// Package walletconnect implements the wallet.connect operation: it binds a
// run to a wallet address on a named network and feeds both downstream.
package walletconnect

import (
	"context"
	"fmt"

	"github.com/vk/chainflow/internal/chain"
	"github.com/vk/chainflow/internal/ctxlog"
	"github.com/vk/chainflow/internal/executor"
	"github.com/vk/chainflow/internal/ports"
	"github.com/vk/chainflow/internal/run"
)

// Module registers the wallet.connect executor.
type Module struct {
	Chains chain.Set
}

func (m *Module) Register(r *executor.Registry) {
	r.Register(&Executor{chains: m.Chains})
}

// Executor implements the wallet.connect operation.
type Executor struct {
	chains chain.Set
}

func (e *Executor) Spec() executor.Spec {
	return executor.Spec{
		OperationType: "wallet.connect",
		Outputs: []ports.Port{
			{Name: "address", Type: ports.Address},
			{Name: "network", Type: ports.ChainID},
		},
	}
}

func (e *Executor) Validate(in executor.Inputs) executor.ValidationResult {
	var errs []string
	addr, ok := in.String("address")
	if !ok || addr == "" {
		errs = append(errs, "config.address is required")
	} else if err := chain.ValidateAddress(addr); err != nil {
		errs = append(errs, err.Error())
	}
	network, ok := in.String("network")
	if !ok || network == "" {
		errs = append(errs, "config.network is required")
	} else if !e.chains.Known(network) {
		errs = append(errs, fmt.Sprintf("unsupported network %q", network))
	}
	if len(errs) > 0 {
		return executor.Invalid(errs...)
	}
	return executor.OK()
}

func (e *Executor) Execute(ctx context.Context, in executor.Inputs, rc *run.Context) (*executor.Result, error) {
	addr, _ := in.String("address")
	network, _ := in.String("network")

	// Probing the chain height proves the endpoint is reachable before
	// downstream nodes start spending fees against it.
	client, err := e.chains.Get(network)
	if err != nil {
		return nil, err
	}
	height, err := client.Height(ctx)
	if err != nil {
		return nil, fmt.Errorf("network %s unreachable: %w", network, err)
	}
	ctxlog.FromContext(ctx).Info("Wallet connected.", "address", addr, "network", network, "height", height)

	return &executor.Result{
		Outputs: map[string]any{"address": addr, "network": network},
		Logs:    []string{fmt.Sprintf("connected %s on %s at height %d", addr, network, height)},
	}, nil
}
