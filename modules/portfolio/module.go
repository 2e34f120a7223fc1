// Package portfolio implements portfolio.balances: it fetches a wallet's
// token balances from the configured portfolio API.
package portfolio

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"github.com/vk/chainflow/internal/chain"
	"github.com/vk/chainflow/internal/executor"
	"github.com/vk/chainflow/internal/ports"
	"github.com/vk/chainflow/internal/run"
)

type Module struct{}

func (m *Module) Register(r *executor.Registry) {
	r.Register(&Executor{http: resty.New().SetTimeout(15 * time.Second)})
}

type Executor struct {
	http *resty.Client
}

func (e *Executor) Spec() executor.Spec {
	return executor.Spec{
		OperationType: "portfolio.balances",
		Inputs: []ports.Port{
			{Name: "wallet", Type: ports.Address},
		},
		Outputs: []ports.Port{
			{Name: "balances", Type: ports.JSONBlob},
		},
	}
}

func (e *Executor) Validate(in executor.Inputs) executor.ValidationResult {
	wallet, ok := in.String("wallet")
	if !ok {
		return executor.Invalid("input \"wallet\" is required")
	}
	if err := chain.ValidateAddress(wallet); err != nil {
		return executor.Invalid(err.Error())
	}
	return executor.OK()
}

// Execute reads balances; it has no side effects, so live and test modes
// differ only in where the data comes from.
func (e *Executor) Execute(ctx context.Context, in executor.Inputs, rc *run.Context) (*executor.Result, error) {
	wallet, _ := in.String("wallet")

	if rc.TestEnvironment() {
		return &executor.Result{Outputs: map[string]any{"balances": map[string]any{
			"wallet": wallet,
			"tokens": []any{},
		}}}, nil
	}

	baseURL, ok := rc.Secret("PORTFOLIO_API_URL")
	if !ok {
		return nil, fmt.Errorf("no portfolio provider configured (secret PORTFOLIO_API_URL)")
	}
	req := e.http.R().SetContext(ctx).SetQueryParam("address", wallet)
	if key, ok := rc.Secret("PORTFOLIO_API_KEY"); ok {
		req.SetAuthToken(key)
	}

	var body map[string]any
	resp, err := req.SetResult(&body).Get(baseURL)
	if err != nil {
		return nil, fmt.Errorf("portfolio request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("portfolio provider returned %s", resp.Status())
	}
	return &executor.Result{Outputs: map[string]any{"balances": body}}, nil
}
