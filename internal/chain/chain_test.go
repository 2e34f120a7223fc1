package chain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		for _, addr := range []string{
			"0xde709f2102306220921060314715629080e2fb77",            // all lower
			"0xDE709F2102306220921060314715629080E2FB77",            // all upper
			"0x52908400098527886E0F7030069857D2E4169EE7",            // valid EIP-55
			"0x8617E340B3D01FA5F11F306F4090FD50E238070D",            // valid EIP-55
		} {
			assert.NoError(t, ValidateAddress(addr), addr)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		for _, addr := range []string{
			"",
			"52908400098527886E0F7030069857D2E4169EE7", // no prefix
			"0x5290840",                                // too short
			"0x5290840009852788gE0F7030069857D2E4169EE", // non-hex
			"0x52908400098527886e0F7030069857D2E4169EE7", // bad checksum
		} {
			assert.Error(t, ValidateAddress(addr), addr)
		}
	})
}

func TestParseAmount(t *testing.T) {
	f, err := ParseAmount("1.25")
	require.NoError(t, err)
	assert.Equal(t, "1.25", FormatAmount(f))

	for _, bad := range []string{"", "abc", "0", "-1.5"} {
		_, err := ParseAmount(bad)
		assert.Error(t, err, bad)
	}
}

func TestSimChain(t *testing.T) {
	ctx := context.Background()

	t.Run("submit and confirm", func(t *testing.T) {
		sim := NewSimChain("ethereum")
		ref, err := sim.SubmitTx(ctx, TxRequest{From: "0xa", To: "0xb", Value: "1"})
		require.NoError(t, err)

		receipt, err := sim.WaitConfirmed(ctx, ref)
		require.NoError(t, err)
		assert.True(t, receipt.Confirmed)
		assert.False(t, receipt.Failed)
		assert.Equal(t, uint64(1), receipt.BlockNumber)

		height, err := sim.Height(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), height)
	})

	t.Run("idempotency key deduplicates", func(t *testing.T) {
		sim := NewSimChain("ethereum")
		req := TxRequest{From: "0xa", To: "0xb", Value: "1", IdempotencyKey: "swap/run/node"}

		ref1, err := sim.SubmitTx(ctx, req)
		require.NoError(t, err)
		ref2, err := sim.SubmitTx(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, ref1, ref2)
		assert.Equal(t, 1, sim.TxCount())
	})

	t.Run("FailNext injects failures then recovers", func(t *testing.T) {
		sim := NewSimChain("ethereum")
		sim.FailNext = 2

		_, err := sim.SubmitTx(ctx, TxRequest{From: "0xa"})
		require.Error(t, err)
		_, err = sim.SubmitTx(ctx, TxRequest{From: "0xa"})
		require.Error(t, err)
		_, err = sim.SubmitTx(ctx, TxRequest{From: "0xa"})
		require.NoError(t, err)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		sim := NewSimChain("ethereum")
		_, err := sim.WaitConfirmed(ctx, "0xmissing")
		require.Error(t, err)
	})
}

func TestSet(t *testing.T) {
	set := Set{"ethereum": NewSimChain("ethereum")}

	assert.True(t, set.Known("ethereum"))
	assert.False(t, set.Known("solana"))

	c, err := set.Get("ethereum")
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = set.Get("solana")
	require.Error(t, err)
}
