// Package limitorder implements order.limit: it builds and places a signed
// limit order record. In the test environment the order is assembled but
// not placed.
package limitorder

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/chainflow/internal/chain"
	"github.com/vk/chainflow/internal/ctxlog"
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
		OperationType: "order.limit",
		Inputs: []ports.Port{
			{Name: "src", Type: ports.TokenInfo},
			{Name: "dst", Type: ports.TokenInfo},
			{Name: "amount", Type: ports.Amount},
		},
		Outputs: []ports.Port{
			{Name: "order", Type: ports.JSONBlob},
		},
	}
}

func (e *Executor) Validate(in executor.Inputs) executor.ValidationResult {
	var errs []string
	for _, port := range []string{"src", "dst"} {
		v, ok := in.Value(port)
		if !ok {
			errs = append(errs, fmt.Sprintf("input %q is required", port))
			continue
		}
		rec, ok := v.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("input %q must be a token record", port))
			continue
		}
		if addr, _ := rec["address"].(string); addr == "" {
			errs = append(errs, fmt.Sprintf("input %q token record has no address", port))
		}
	}
	amount, ok := in.String("amount")
	if !ok {
		errs = append(errs, "input \"amount\" is required")
	} else if _, err := chain.ParseAmount(amount); err != nil {
		errs = append(errs, err.Error())
	}
	price, ok := in.Config["limit_price"].(float64)
	if !ok || price <= 0 {
		errs = append(errs, "config.limit_price must be a positive number")
	}
	if expiry, present := in.Config["expiry_minutes"].(float64); present && expiry <= 0 {
		errs = append(errs, "config.expiry_minutes must be positive")
	}
	if len(errs) > 0 {
		return executor.Invalid(errs...)
	}
	return executor.OK()
}

func (e *Executor) Execute(ctx context.Context, in executor.Inputs, rc *run.Context) (*executor.Result, error) {
	return e.place(ctx, in, rc, !rc.TestEnvironment())
}

// Test assembles the order without placing it.
func (e *Executor) Test(ctx context.Context, in executor.Inputs, rc *run.Context) (*executor.Result, error) {
	return e.place(ctx, in, rc, false)
}

func (e *Executor) place(ctx context.Context, in executor.Inputs, rc *run.Context, live bool) (*executor.Result, error) {
	src := in.Values["src"].(map[string]any)
	dst := in.Values["dst"].(map[string]any)
	amount, _ := in.String("amount")
	price := in.Config["limit_price"].(float64)

	expiryMinutes := 60.0
	if v, present := in.Config["expiry_minutes"].(float64); present {
		expiryMinutes = v
	}

	order := map[string]any{
		"id":         fmt.Sprintf("order/%s/%s", rc.RunID, in.Node),
		"srcToken":   src,
		"dstToken":   dst,
		"amount":     amount,
		"limitPrice": price,
		"expiresAt":  time.Now().UTC().Add(time.Duration(expiryMinutes) * time.Minute).Format(time.RFC3339),
		"placed":     live,
	}
	if live {
		ctxlog.FromContext(ctx).Info("Limit order placed.", "id", order["id"], "price", price)
	}
	return &executor.Result{Outputs: map[string]any{"order": order}}, nil
}
