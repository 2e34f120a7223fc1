package ports

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MaxChainLen bounds how many converters may be composed for a single edge.
// Anything longer is rejected rather than silently chained.
const MaxChainLen = 3

// Converter is one pure conversion step between two port types.
type Converter struct {
	Name string
	From Type
	To   Type
	Fn   func(any) (any, error)
}

// Chain is an ordered list of converters whose consecutive types match
// exactly. An empty chain represents a direct type match.
type Chain struct {
	From  Type
	To    Type
	steps []Converter
}

// Len returns the number of conversion hops in the chain.
func (c *Chain) Len() int { return len(c.steps) }

// Steps returns the converter names in application order.
func (c *Chain) Steps() []string {
	names := make([]string, len(c.steps))
	for i, s := range c.steps {
		names[i] = s.Name
	}
	return names
}

// Apply runs the value through every converter in order.
func (c *Chain) Apply(v any) (any, error) {
	for _, step := range c.steps {
		out, err := step.Fn(v)
		if err != nil {
			return nil, fmt.Errorf("converter %s: %w", step.Name, err)
		}
		v = out
	}
	return v, nil
}

// converters is the fixed library of pure conversions. The engine never
// invents a conversion outside this table.
var converters = []Converter{
	{
		Name: "amount-to-number",
		From: Amount, To: Number,
		Fn: func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("expected string amount, got %T", v)
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("not a decimal amount: %q", s)
			}
			return f, nil
		},
	},
	{
		Name: "number-to-amount",
		From: Number, To: Amount,
		Fn: func(v any) (any, error) {
			f, ok := toFloat(v)
			if !ok {
				return nil, fmt.Errorf("expected number, got %T", v)
			}
			return strconv.FormatFloat(f, 'f', -1, 64), nil
		},
	},
	{
		Name: "token-info-to-address",
		From: TokenInfo, To: Address,
		Fn: func(v any) (any, error) {
			m, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("expected token-info map, got %T", v)
			}
			addr, ok := m["address"].(string)
			if !ok || addr == "" {
				return nil, fmt.Errorf("token-info has no address field")
			}
			return addr, nil
		},
	},
	{
		Name: "address-to-text",
		From: Address, To: Text,
		Fn: func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("expected address string, got %T", v)
			}
			return s, nil
		},
	},
	{
		Name: "amount-to-text",
		From: Amount, To: Text,
		Fn: func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("expected amount string, got %T", v)
			}
			return s, nil
		},
	},
	{
		Name: "tx-ref-to-text",
		From: TxRef, To: Text,
		Fn: func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("expected tx ref string, got %T", v)
			}
			return s, nil
		},
	},
	{
		Name: "chain-id-to-text",
		From: ChainID, To: Text,
		Fn: func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("expected chain id string, got %T", v)
			}
			return s, nil
		},
	},
	{
		Name: "quote-to-json",
		From: Quote, To: JSONBlob,
		Fn:   func(v any) (any, error) { return v, nil },
	},
	{
		Name: "token-info-to-json",
		From: TokenInfo, To: JSONBlob,
		Fn:   func(v any) (any, error) { return v, nil },
	},
	{
		Name: "json-to-text",
		From: JSONBlob, To: Text,
		Fn: func(v any) (any, error) {
			b, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("serializing json-blob: %w", err)
			}
			return string(b), nil
		},
	},
	{
		Name: "text-to-json",
		From: Text, To: JSONBlob,
		Fn: func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", v)
			}
			var out map[string]any
			if err := json.Unmarshal([]byte(s), &out); err != nil {
				return nil, fmt.Errorf("parsing text as json: %w", err)
			}
			return out, nil
		},
	},
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// FindChain returns the shortest chain of converters from one port type to
// another, or an error when no chain of at most MaxChainLen hops exists.
// Identical types yield an empty chain.
func FindChain(from, to Type) (*Chain, error) {
	if from == to {
		return &Chain{From: from, To: to}, nil
	}

	// Breadth-first search over the converter table; the table is small
	// enough that no indexing is needed.
	type path struct {
		at    Type
		steps []Converter
	}
	queue := []path{{at: from}}
	seen := map[Type]bool{from: true}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if len(p.steps) == MaxChainLen {
			continue
		}
		for _, conv := range converters {
			if conv.From != p.at || seen[conv.To] {
				continue
			}
			steps := append(append([]Converter{}, p.steps...), conv)
			if conv.To == to {
				return &Chain{From: from, To: to, steps: steps}, nil
			}
			seen[conv.To] = true
			queue = append(queue, path{at: conv.To, steps: steps})
		}
	}
	return nil, fmt.Errorf("no conversion from %q to %q within %d hops", from, to, MaxChainLen)
}

// KnownTypes lists every type that appears in the converter table, for
// property tests and diagnostics.
func KnownTypes() []Type {
	set := map[Type]struct{}{}
	for _, c := range converters {
		set[c.From] = struct{}{}
		set[c.To] = struct{}{}
	}
	out := make([]Type, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	return out
}

// Table exposes the converter library read-only for tests.
func Table() []Converter {
	return append([]Converter{}, converters...)
}
