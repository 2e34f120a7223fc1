// Package txmonitor implements tx.monitor: it waits for a transaction to
// confirm and republishes its receipt for downstream consumers.
package txmonitor

import (
	"context"
	"fmt"
	"strings"

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
		OperationType: "tx.monitor",
		Inputs: []ports.Port{
			{Name: "tx", Type: ports.TxRef},
		},
		Outputs: []ports.Port{
			{Name: "receipt", Type: ports.JSONBlob},
		},
	}
}

func (e *Executor) Validate(in executor.Inputs) executor.ValidationResult {
	var errs []string
	ref, ok := in.String("tx")
	if !ok || ref == "" {
		errs = append(errs, "input \"tx\" is required")
	} else if !strings.HasPrefix(ref, "0x") {
		errs = append(errs, fmt.Sprintf("malformed transaction reference %q", ref))
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

// Execute is naturally idempotent: observing a receipt has no side effects.
func (e *Executor) Execute(ctx context.Context, in executor.Inputs, rc *run.Context) (*executor.Result, error) {
	ref, _ := in.String("tx")
	network, _ := in.String("network")

	client, err := e.chains.Get(network)
	if err != nil {
		return nil, err
	}
	receipt, err := client.WaitConfirmed(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("monitoring %s: %w", ref, err)
	}

	return &executor.Result{
		Outputs: map[string]any{"receipt": map[string]any{
			"ref":         receipt.Ref,
			"confirmed":   receipt.Confirmed,
			"blockNumber": float64(receipt.BlockNumber),
			"failed":      receipt.Failed,
		}},
	}, nil
}
