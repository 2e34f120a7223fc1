// Package swap implements swap.execute: it turns a quote into an on-chain
// swap transaction and waits for confirmation. Submission carries an
// idempotency key derived from the run and node so a retried attempt after
// a timeout cannot double-spend.
package swap

import (
	"context"
	"fmt"

	"github.com/vk/chainflow/internal/chain"
	"github.com/vk/chainflow/internal/ctxlog"
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
		OperationType: "swap.execute",
		Inputs: []ports.Port{
			{Name: "quote", Type: ports.Quote},
			{Name: "wallet", Type: ports.Address},
		},
		Outputs: []ports.Port{
			{Name: "tx", Type: ports.TxRef},
		},
	}
}

func (e *Executor) Validate(in executor.Inputs) executor.ValidationResult {
	var errs []string

	q, ok := in.Value("quote")
	if !ok {
		errs = append(errs, "input \"quote\" is required")
	} else if m, ok := q.(map[string]any); !ok {
		errs = append(errs, "input \"quote\" must be a quote record")
	} else {
		amount, _ := m["srcAmount"].(string)
		if _, err := chain.ParseAmount(amount); err != nil {
			errs = append(errs, fmt.Sprintf("quote.srcAmount: %v", err))
		}
		dst, ok := m["dstToken"].(map[string]any)
		if !ok {
			errs = append(errs, "quote is missing dstToken")
		} else if addr, _ := dst["address"].(string); addr == "" {
			errs = append(errs, "quote.dstToken has no address")
		}
	}

	wallet, ok := in.String("wallet")
	if !ok {
		errs = append(errs, "input \"wallet\" is required")
	} else if err := chain.ValidateAddress(wallet); err != nil {
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
	logger := ctxlog.FromContext(ctx)
	q := in.Values["quote"].(map[string]any)
	wallet, _ := in.String("wallet")
	network, _ := in.String("network")

	client, err := e.chains.Get(network)
	if err != nil {
		return nil, err
	}

	req := chain.TxRequest{
		Chain:          network,
		From:           wallet,
		To:             q["dstToken"].(map[string]any)["address"].(string),
		Value:          q["srcAmount"].(string),
		IdempotencyKey: fmt.Sprintf("swap/%s/%s", rc.RunID, in.Node),
	}

	fee, err := client.EstimateFee(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("estimating swap fee: %w", err)
	}
	logger.Info("Submitting swap.", "network", network, "srcAmount", req.Value, "estimatedFee", fee)

	ref, err := client.SubmitTx(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submitting swap: %w", err)
	}
	receipt, err := client.WaitConfirmed(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("awaiting swap confirmation: %w", err)
	}
	if receipt.Failed {
		return nil, fmt.Errorf("swap transaction %s reverted", ref)
	}

	logger.Info("Swap confirmed.", "tx", ref, "block", receipt.BlockNumber)
	return &executor.Result{
		Outputs: map[string]any{"tx": ref},
		Logs:    []string{fmt.Sprintf("swap confirmed in block %d (fee estimate %s)", receipt.BlockNumber, fee)},
	}, nil
}
