// Package tokenselector implements token.select: it resolves a token's
// metadata record used by quoting and swapping downstream.
package tokenselector

import (
	"context"
	"fmt"

	"github.com/vk/chainflow/internal/chain"
	"github.com/vk/chainflow/internal/executor"
	"github.com/vk/chainflow/internal/ports"
	"github.com/vk/chainflow/internal/run"
)

type Module struct{}

func (m *Module) Register(r *executor.Registry) {
	r.Register(&Executor{})
}

type Executor struct{}

func (e *Executor) Spec() executor.Spec {
	return executor.Spec{
		OperationType: "token.select",
		Outputs: []ports.Port{
			{Name: "token", Type: ports.TokenInfo},
		},
	}
}

func (e *Executor) Validate(in executor.Inputs) executor.ValidationResult {
	var errs []string
	symbol, ok := in.String("symbol")
	if !ok || symbol == "" {
		errs = append(errs, "config.symbol is required")
	}
	addr, ok := in.String("address")
	if !ok || addr == "" {
		errs = append(errs, "config.address is required")
	} else if err := chain.ValidateAddress(addr); err != nil {
		errs = append(errs, err.Error())
	}
	decimals, ok := in.Config["decimals"].(float64)
	if !ok {
		errs = append(errs, "config.decimals is required")
	} else if decimals < 0 || decimals > 36 || decimals != float64(int(decimals)) {
		errs = append(errs, fmt.Sprintf("config.decimals %v out of range", decimals))
	}
	if len(errs) > 0 {
		return executor.Invalid(errs...)
	}
	return executor.OK()
}

func (e *Executor) Execute(ctx context.Context, in executor.Inputs, rc *run.Context) (*executor.Result, error) {
	symbol, _ := in.String("symbol")
	addr, _ := in.String("address")
	decimals := in.Config["decimals"].(float64)
	token := map[string]any{
		"symbol":   symbol,
		"address":  addr,
		"decimals": decimals,
	}
	return &executor.Result{Outputs: map[string]any{"token": token}}, nil
}
