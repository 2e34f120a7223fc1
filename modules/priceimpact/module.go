// Package priceimpact implements price.impact: a pure computation of how
// far a quote's effective price deviates from par, in basis points.
package priceimpact

import (
	"context"
	"fmt"
	"math/big"

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
		OperationType: "price.impact",
		Inputs: []ports.Port{
			{Name: "quote", Type: ports.Quote},
		},
		Outputs: []ports.Port{
			{Name: "impact_bps", Type: ports.Number},
		},
	}
}

func (e *Executor) Validate(in executor.Inputs) executor.ValidationResult {
	q, ok := in.Value("quote")
	if !ok {
		return executor.Invalid("input \"quote\" is required")
	}
	m, ok := q.(map[string]any)
	if !ok {
		return executor.Invalid("input \"quote\" must be a quote record")
	}
	var errs []string
	for _, field := range []string{"srcAmount", "dstAmount"} {
		s, ok := m[field].(string)
		if !ok {
			errs = append(errs, fmt.Sprintf("quote is missing %s", field))
			continue
		}
		if _, err := chain.ParseAmount(s); err != nil {
			errs = append(errs, fmt.Sprintf("quote.%s: %v", field, err))
		}
	}
	if max, present := in.Config["max_impact_bps"]; present {
		if f, ok := max.(float64); !ok || f <= 0 {
			errs = append(errs, "config.max_impact_bps must be a positive number")
		}
	}
	if len(errs) > 0 {
		return executor.Invalid(errs...)
	}
	return executor.OK()
}

func (e *Executor) Execute(ctx context.Context, in executor.Inputs, rc *run.Context) (*executor.Result, error) {
	q := in.Values["quote"].(map[string]any)
	src, _ := chain.ParseAmount(q["srcAmount"].(string))
	dst, _ := chain.ParseAmount(q["dstAmount"].(string))

	// impact = (1 - dst/src) in basis points; negative means a better-than-par fill.
	ratio := new(big.Float).Quo(dst, src)
	impact := new(big.Float).Mul(new(big.Float).Sub(big.NewFloat(1), ratio), big.NewFloat(10000))
	bps, _ := impact.Float64()

	if max, present := in.Config["max_impact_bps"].(float64); present && bps > max {
		return nil, fmt.Errorf("price impact %.1f bps exceeds limit %.1f bps", bps, max)
	}

	return &executor.Result{Outputs: map[string]any{"impact_bps": bps}}, nil
}
