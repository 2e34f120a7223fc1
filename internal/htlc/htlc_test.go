package htlc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContract(t *testing.T, expiry time.Time) (*Contract, string) {
	t.Helper()
	secret, hash, err := GenerateSecret()
	require.NoError(t, err)
	c := NewContract("htlc/test", hash, expiry, "ethereum", "polygon")
	return c, secret
}

func TestGenerateSecret(t *testing.T) {
	secret, hash, err := GenerateSecret()
	require.NoError(t, err)
	assert.Len(t, secret, 64) // 32 bytes hex
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashSecret(secret))

	secret2, hash2, err := GenerateSecret()
	require.NoError(t, err)
	assert.NotEqual(t, secret, secret2)
	assert.NotEqual(t, hash, hash2)
}

func TestContractHappyPath(t *testing.T) {
	c, secret := newTestContract(t, time.Now().Add(time.Hour))
	assert.Equal(t, StatePending, c.State())

	require.NoError(t, c.Lock("0xlock"))
	assert.Equal(t, StateLocked, c.State())
	assert.Empty(t, c.Secret, "secret must not be persisted before reveal")

	require.NoError(t, c.Reveal("0xclaim", secret))
	assert.Equal(t, StateRevealed, c.State())
	assert.Equal(t, secret, c.Secret)

	require.NoError(t, c.Complete("0xsettle"))
	assert.Equal(t, StateCompleted, c.State())
	assert.True(t, c.State().Terminal())

	log := c.Log()
	require.Len(t, log, 3)
	assert.Equal(t, StatePending, log[0].From)
	assert.Equal(t, StateLocked, log[0].To)
	assert.Equal(t, StateCompleted, log[2].To)
}

func TestContractIllegalTransitions(t *testing.T) {
	t.Run("cannot reveal before lock", func(t *testing.T) {
		c, secret := newTestContract(t, time.Now().Add(time.Hour))
		err := c.Reveal("0x1", secret)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "illegal transition")
	})

	t.Run("cannot complete from locked", func(t *testing.T) {
		c, _ := newTestContract(t, time.Now().Add(time.Hour))
		require.NoError(t, c.Lock("0x1"))
		err := c.Complete("0x2")
		require.Error(t, err)
	})

	t.Run("terminal states are final", func(t *testing.T) {
		c, secret := newTestContract(t, time.Now().Add(time.Hour))
		require.NoError(t, c.Lock("0x1"))
		require.NoError(t, c.Reveal("0x2", secret))
		require.NoError(t, c.Complete("0x3"))

		err := c.Lock("0x4")
		require.ErrorIs(t, err, ErrTerminalState)
		require.Len(t, c.Log(), 3, "no log entry for rejected transition")
	})
}

func TestContractReveal(t *testing.T) {
	t.Run("wrong secret rejected", func(t *testing.T) {
		c, _ := newTestContract(t, time.Now().Add(time.Hour))
		require.NoError(t, c.Lock("0x1"))

		err := c.Reveal("0x2", "deadbeef")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not match hashlock")
		assert.Equal(t, StateLocked, c.State())
		assert.Empty(t, c.Secret)
	})
}

func TestContractRefund(t *testing.T) {
	t.Run("refund before expiry rejected", func(t *testing.T) {
		c, _ := newTestContract(t, time.Now().Add(time.Hour))
		require.NoError(t, c.Lock("0x1"))

		err := c.Refund("0x2", time.Now())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "before timelock expiry")
		assert.Equal(t, StateLocked, c.State())
	})

	t.Run("refund from locked after expiry", func(t *testing.T) {
		expiry := time.Now().Add(-time.Minute)
		c, _ := newTestContract(t, expiry)
		require.NoError(t, c.Lock("0x1"))

		require.NoError(t, c.Refund("0x2", time.Now()))
		assert.Equal(t, StateRefunded, c.State())
		assert.True(t, c.State().Terminal())
	})

	t.Run("refund from revealed after expiry", func(t *testing.T) {
		expiry := time.Now().Add(-time.Minute)
		c, secret := newTestContract(t, expiry)
		require.NoError(t, c.Lock("0x1"))
		require.NoError(t, c.Reveal("0x2", secret))

		require.NoError(t, c.Refund("0x3", time.Now()))
		assert.Equal(t, StateRefunded, c.State())
	})

	t.Run("refund from pending is illegal", func(t *testing.T) {
		c, _ := newTestContract(t, time.Now().Add(-time.Minute))
		err := c.Refund("0x1", time.Now())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "illegal transition")
	})
}

func TestCheckWindows(t *testing.T) {
	now := time.Now()

	assert.NoError(t, CheckWindows(now.Add(30*time.Minute), now.Add(time.Hour)))
	assert.Error(t, CheckWindows(now.Add(time.Hour), now.Add(time.Hour)), "equal instants violate strict ordering")
	assert.Error(t, CheckWindows(now.Add(2*time.Hour), now.Add(time.Hour)))
}

func TestContractRecord(t *testing.T) {
	c, secret := newTestContract(t, time.Now().Add(time.Hour))

	rec := c.Record()
	assert.Equal(t, "htlc/test", rec["id"])
	assert.Equal(t, "pending", rec["state"])
	assert.NotContains(t, rec, "secret")

	require.NoError(t, c.Lock("0xlock"))
	require.NoError(t, c.Reveal("0xclaim", secret))

	rec = c.Record()
	assert.Equal(t, secret, rec["secret"])
	assert.Equal(t, "0xlock", rec["sourceTx"])
	assert.Equal(t, "0xclaim", rec["destTx"])
	assert.Len(t, rec["transitions"], 2)
}

func TestStore(t *testing.T) {
	s := NewStore()

	_, ok := s.Get("missing")
	assert.False(t, ok)

	built := 0
	c1, existed := s.GetOrCreate("a", func() *Contract {
		built++
		return NewContract("a", "hash", time.Now().Add(time.Hour), "ethereum", "polygon")
	})
	require.False(t, existed)

	c2, existed := s.GetOrCreate("a", func() *Contract {
		built++
		return nil
	})
	require.True(t, existed)
	assert.Same(t, c1, c2)
	assert.Equal(t, 1, built)

	assert.Len(t, s.All(), 1)
}
