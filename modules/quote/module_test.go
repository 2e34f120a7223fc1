package quote

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/chainflow/internal/executor"
	"github.com/vk/chainflow/internal/run"
)

func token(symbol, addr string) map[string]any {
	return map[string]any{"symbol": symbol, "address": addr, "decimals": float64(18)}
}

func quoteInputs() executor.Inputs {
	return executor.Inputs{
		Node: "quote",
		Values: map[string]any{
			"src": token("USDC", "0xaaa"),
			"dst": token("WETH", "0xbbb"),
		},
		Config: map[string]any{"amount": "100"},
	}
}

func TestValidate(t *testing.T) {
	e := &Executor{}

	t.Run("valid", func(t *testing.T) {
		assert.True(t, e.Validate(quoteInputs()).Valid)
	})

	t.Run("missing tokens", func(t *testing.T) {
		vr := e.Validate(executor.Inputs{Config: map[string]any{"amount": "1"}})
		require.False(t, vr.Valid)
		assert.Len(t, vr.Errors, 2)
	})

	t.Run("token record without address", func(t *testing.T) {
		in := quoteInputs()
		in.Values["src"] = map[string]any{"symbol": "USDC"}
		vr := e.Validate(in)
		require.False(t, vr.Valid)
		assert.Contains(t, vr.Errors[0], "no address")
	})

	t.Run("bad amount", func(t *testing.T) {
		in := quoteInputs()
		in.Config["amount"] = "zero"
		vr := e.Validate(in)
		require.False(t, vr.Valid)
	})

	t.Run("slippage out of range", func(t *testing.T) {
		in := quoteInputs()
		in.Config["slippage_bps"] = float64(9000)
		vr := e.Validate(in)
		require.False(t, vr.Valid)
		assert.Contains(t, vr.Errors[0], "slippage_bps")
	})
}

func TestTestQuoteIsDeterministic(t *testing.T) {
	e := &Executor{}
	rc := run.NewContext("r", "g", "test", nil)

	res, err := e.Execute(context.Background(), quoteInputs(), rc)
	require.NoError(t, err)

	q := res.Outputs["quote"].(map[string]any)
	assert.Equal(t, "100", q["srcAmount"])
	assert.Equal(t, "99.7", q["dstAmount"]) // 30 bps spread
	assert.Equal(t, "0.9970", q["price"])
	assert.Equal(t, "99.7", res.Outputs["amount"])

	again, err := e.Execute(context.Background(), quoteInputs(), rc)
	require.NoError(t, err)
	assert.Equal(t, res.Outputs, again.Outputs)
}

func TestLiveRequiresProvider(t *testing.T) {
	e := &Executor{}
	rc := run.NewContext("r", "g", "live", nil)

	_, err := e.Execute(context.Background(), quoteInputs(), rc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUOTE_API_URL")
}
