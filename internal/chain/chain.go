// Package chain defines the minimal contract the engine depends on from any
// blockchain backend: submit a transaction, await confirmation, estimate a
// fee. Concrete providers stay behind this interface so the engine remains
// provider-agnostic.
package chain

import (
	"context"
	"fmt"
)

// TxRequest describes a transaction to submit. IdempotencyKey lets a backend
// deduplicate a retried submission whose first attempt may have landed.
type TxRequest struct {
	Chain          string `json:"chain"`
	From           string `json:"from"`
	To             string `json:"to"`
	Value          string `json:"value"` // decimal string in native units
	Data           string `json:"data,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// TxReceipt reports the observed outcome of a submitted transaction.
type TxReceipt struct {
	Ref         string `json:"ref"`
	Confirmed   bool   `json:"confirmed"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
	Failed      bool   `json:"failed,omitempty"`
}

// Client is the minimal backend contract. WaitConfirmed blocks until the
// transaction confirms, fails, or ctx is done.
type Client interface {
	SubmitTx(ctx context.Context, req TxRequest) (string, error)
	WaitConfirmed(ctx context.Context, ref string) (*TxReceipt, error)
	EstimateFee(ctx context.Context, req TxRequest) (string, error)
	Height(ctx context.Context) (uint64, error)
}

// Set maps chain identifiers to clients.
type Set map[string]Client

// Get returns the client for a chain id.
func (s Set) Get(chainID string) (Client, error) {
	c, ok := s[chainID]
	if !ok {
		return nil, fmt.Errorf("no client configured for chain %q", chainID)
	}
	return c, nil
}

// Known reports whether a chain id has a configured client.
func (s Set) Known(chainID string) bool {
	_, ok := s[chainID]
	return ok
}
