package ports

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindChain(t *testing.T) {
	t.Run("identical types need no conversion", func(t *testing.T) {
		c, err := FindChain(Amount, Amount)
		require.NoError(t, err)
		assert.Zero(t, c.Len())

		out, err := c.Apply("1.5")
		require.NoError(t, err)
		assert.Equal(t, "1.5", out)
	})

	t.Run("single hop", func(t *testing.T) {
		c, err := FindChain(Amount, Number)
		require.NoError(t, err)
		assert.Equal(t, []string{"amount-to-number"}, c.Steps())

		out, err := c.Apply("2.5")
		require.NoError(t, err)
		assert.Equal(t, 2.5, out)
	})

	t.Run("multi hop picks the shortest path", func(t *testing.T) {
		c, err := FindChain(Quote, Text)
		require.NoError(t, err)
		assert.Equal(t, []string{"quote-to-json", "json-to-text"}, c.Steps())

		out, err := c.Apply(map[string]any{"price": "1.0"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"price":"1.0"}`, out.(string))
	})

	t.Run("no chain exists", func(t *testing.T) {
		_, err := FindChain(Text, Address)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no conversion")
	})

	t.Run("apply surfaces converter errors", func(t *testing.T) {
		c, err := FindChain(Amount, Number)
		require.NoError(t, err)

		_, err = c.Apply("not-a-number")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "amount-to-number")
	})
}

func TestChainRoundTrips(t *testing.T) {
	t.Run("amount through number and back", func(t *testing.T) {
		down, err := FindChain(Amount, Number)
		require.NoError(t, err)
		up, err := FindChain(Number, Amount)
		require.NoError(t, err)

		mid, err := down.Apply("42.25")
		require.NoError(t, err)
		out, err := up.Apply(mid)
		require.NoError(t, err)
		assert.Equal(t, "42.25", out)
	})
}

// TestChainProperties checks the structural laws of every discoverable
// chain: it starts at From, ends at To, never exceeds the hop bound, and
// consecutive steps compose type-exactly.
func TestChainProperties(t *testing.T) {
	types := KnownTypes()
	byName := make(map[string]Converter)
	for _, c := range Table() {
		byName[c.Name] = c
	}

	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	genType := gen.IntRange(0, len(types)-1).Map(func(i int) Type { return types[i] })

	properties.Property("discovered chains are well formed", prop.ForAll(
		func(from, to Type) bool {
			c, err := FindChain(from, to)
			if err != nil {
				return true // no chain is a legal outcome
			}
			if c.Len() > MaxChainLen {
				return false
			}
			at := from
			for _, name := range c.Steps() {
				conv, ok := byName[name]
				if !ok || conv.From != at {
					return false
				}
				at = conv.To
			}
			return at == to
		},
		genType, genType,
	))

	properties.TestingRun(t)
}
