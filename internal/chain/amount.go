package chain

import (
	"fmt"
	"math/big"
)

// ParseAmount parses a positive decimal token amount. Amounts travel the
// graph as strings to avoid float drift between nodes.
func ParseAmount(s string) (*big.Float, error) {
	if s == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	f, ok := new(big.Float).SetString(s)
	if !ok {
		return nil, fmt.Errorf("amount %q is not a decimal number", s)
	}
	if f.Sign() <= 0 {
		return nil, fmt.Errorf("amount %q must be positive", s)
	}
	return f, nil
}

// FormatAmount renders an amount back to its canonical decimal string.
func FormatAmount(f *big.Float) string {
	return f.Text('f', -1)
}
