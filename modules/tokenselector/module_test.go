package tokenselector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/chainflow/internal/executor"
	"github.com/vk/chainflow/internal/run"
)

func inputs(cfg map[string]any) executor.Inputs {
	config := map[string]any{
		"symbol":   "USDC",
		"address":  "0xde709f2102306220921060314715629080e2fb77",
		"decimals": float64(6),
	}
	for k, v := range cfg {
		config[k] = v
	}
	return executor.Inputs{Node: "token", Config: config}
}

func TestValidate(t *testing.T) {
	e := &Executor{}

	assert.True(t, e.Validate(inputs(nil)).Valid)

	for name, cfg := range map[string]map[string]any{
		"missing symbol":       {"symbol": ""},
		"bad address":          {"address": "nope"},
		"fractional decimals":  {"decimals": float64(6.5)},
		"decimals out of range": {"decimals": float64(40)},
	} {
		t.Run(name, func(t *testing.T) {
			require.False(t, e.Validate(inputs(cfg)).Valid)
		})
	}
}

func TestExecute(t *testing.T) {
	e := &Executor{}
	res, err := e.Execute(context.Background(), inputs(nil), run.NewContext("r", "g", "test", nil))
	require.NoError(t, err)

	token := res.Outputs["token"].(map[string]any)
	assert.Equal(t, "USDC", token["symbol"])
	assert.Equal(t, float64(6), token["decimals"])
}
