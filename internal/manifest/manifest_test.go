package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoManifest = `
workflow "demo" {
  description = "two nodes, one edge"
  metadata = {
    owner = "trading"
  }
}

node "wallet" {
  type = "wallet.connect"
  config = {
    network = "ethereum"
    address = "0xde709f2102306220921060314715629080e2fb77"
  }
}

node "quote" {
  type  = "swap.quote"
  label = "Fetch quote"
  config = {
    amount       = "10.5"
    slippage_bps = 50
  }
}

edge {
  from = "wallet.address"
  to   = "quote.wallet"
}
`

func TestLoadBytes(t *testing.T) {
	g, err := LoadBytes([]byte(demoManifest), "demo.hcl")
	require.NoError(t, err)

	assert.Equal(t, "demo", g.ID)
	assert.Equal(t, "two nodes, one edge", g.Description)
	assert.Equal(t, "trading", g.Metadata["owner"])

	require.Len(t, g.Nodes, 2)
	wallet := g.NodeByID("wallet")
	require.NotNil(t, wallet)
	assert.Equal(t, "wallet.connect", wallet.OperationType)
	assert.Equal(t, "ethereum", wallet.Config["network"])

	q := g.NodeByID("quote")
	require.NotNil(t, q)
	assert.Equal(t, "Fetch quote", q.Label)
	assert.Equal(t, "10.5", q.Config["amount"])
	assert.Equal(t, float64(50), q.Config["slippage_bps"])

	require.Len(t, g.Edges, 1)
	e := g.Edges[0]
	assert.Equal(t, "wallet", e.SourceNode)
	assert.Equal(t, "address", e.SourcePort)
	assert.Equal(t, "quote", e.TargetNode)
	assert.Equal(t, "wallet", e.TargetPort)

	require.NoError(t, g.Validate())
}

func TestLoadBytesErrors(t *testing.T) {
	t.Run("malformed hcl", func(t *testing.T) {
		_, err := LoadBytes([]byte(`node "a" {`), "bad.hcl")
		require.Error(t, err)
	})

	t.Run("missing type attribute", func(t *testing.T) {
		_, err := LoadBytes([]byte(`node "a" {}`), "bad.hcl")
		require.Error(t, err)
	})

	t.Run("malformed edge reference", func(t *testing.T) {
		src := `
node "a" {
  type = "noop"
}
edge {
  from = "a"
  to   = "a.in"
}
`
		_, err := LoadBytes([]byte(src), "bad.hcl")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed port reference")
	})

	t.Run("non-object config", func(t *testing.T) {
		src := `
node "a" {
  type   = "noop"
  config = "just-a-string"
}
`
		_, err := LoadBytes([]byte(src), "bad.hcl")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config must be an object")
	})
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.hcl")
	require.NoError(t, os.WriteFile(path, []byte(demoManifest), 0o600))

	g, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", g.ID)

	_, err = Load(filepath.Join(t.TempDir(), "missing.hcl"))
	require.Error(t, err)
}
