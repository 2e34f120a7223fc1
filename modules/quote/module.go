// Package quote implements swap.quote: it prices a src→dst token swap
// through an external aggregator. In the test environment (or via Test) it
// produces a deterministic quote without touching the network.
package quote

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"resty.dev/v3"

	"github.com/vk/chainflow/internal/chain"
	"github.com/vk/chainflow/internal/ctxlog"
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
		OperationType: "swap.quote",
		Inputs: []ports.Port{
			{Name: "src", Type: ports.TokenInfo},
			{Name: "dst", Type: ports.TokenInfo},
			{Name: "amount", Type: ports.Amount},
		},
		Outputs: []ports.Port{
			{Name: "quote", Type: ports.Quote},
			{Name: "amount", Type: ports.Amount},
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
	if slippage, present := in.Config["slippage_bps"]; present {
		f, ok := slippage.(float64)
		if !ok || f < 0 || f > 5000 {
			errs = append(errs, "config.slippage_bps must be between 0 and 5000")
		}
	}
	if len(errs) > 0 {
		return executor.Invalid(errs...)
	}
	return executor.OK()
}

func (e *Executor) Execute(ctx context.Context, in executor.Inputs, rc *run.Context) (*executor.Result, error) {
	if rc.TestEnvironment() {
		return e.Test(ctx, in, rc)
	}

	baseURL, ok := rc.Secret("QUOTE_API_URL")
	if !ok {
		return nil, fmt.Errorf("no quote provider configured (secret QUOTE_API_URL)")
	}
	src := in.Values["src"].(map[string]any)
	dst := in.Values["dst"].(map[string]any)
	amount, _ := in.String("amount")

	req := e.http.R().SetContext(ctx).
		SetQueryParam("src", src["address"].(string)).
		SetQueryParam("dst", dst["address"].(string)).
		SetQueryParam("amount", amount)
	if key, ok := rc.Secret("QUOTE_API_KEY"); ok {
		req.SetAuthToken(key)
	}

	var body struct {
		DstAmount string `json:"dstAmount"`
		Price     string `json:"price"`
	}
	resp, err := req.SetResult(&body).Get(baseURL)
	if err != nil {
		return nil, fmt.Errorf("quote request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("quote provider returned %s", resp.Status())
	}
	if _, err := chain.ParseAmount(body.DstAmount); err != nil {
		return nil, fmt.Errorf("quote provider returned bad amount: %w", err)
	}

	ctxlog.FromContext(ctx).Info("Quote received.", "src", src["symbol"], "dst", dst["symbol"], "dstAmount", body.DstAmount)
	return quoteResult(src, dst, amount, body.DstAmount, body.Price), nil
}

// Test prices the swap deterministically: 1:1 minus a 30 bps spread. No
// network traffic, no side effects.
func (e *Executor) Test(ctx context.Context, in executor.Inputs, rc *run.Context) (*executor.Result, error) {
	src := in.Values["src"].(map[string]any)
	dst := in.Values["dst"].(map[string]any)
	amount, _ := in.String("amount")

	f, err := chain.ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	spread := new(big.Float).Mul(f, big.NewFloat(0.0030))
	out := new(big.Float).Sub(f, spread)

	return quoteResult(src, dst, amount, chain.FormatAmount(out), "0.9970"), nil
}

func quoteResult(src, dst map[string]any, srcAmount, dstAmount, price string) *executor.Result {
	q := map[string]any{
		"srcToken":  src,
		"dstToken":  dst,
		"srcAmount": srcAmount,
		"dstAmount": dstAmount,
		"price":     price,
	}
	return &executor.Result{
		Outputs: map[string]any{"quote": q, "amount": dstAmount},
	}
}
