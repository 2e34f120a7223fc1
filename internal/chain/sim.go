package chain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// SimChain is an in-memory chain backend used for test-environment runs and
// unit tests. Transactions confirm instantly; idempotency keys deduplicate
// resubmissions, mirroring the duplicate-safety executors must assume after
// a timeout.
type SimChain struct {
	chainID string

	mu       sync.Mutex
	height   uint64
	receipts map[string]*TxReceipt
	byKey    map[string]string // idempotency key -> tx ref

	// FailNext makes the next n submissions return an error, for
	// exercising retry paths in tests.
	FailNext int
}

// NewSimChain creates an empty simulated chain.
func NewSimChain(chainID string) *SimChain {
	return &SimChain{
		chainID:  chainID,
		receipts: make(map[string]*TxReceipt),
		byKey:    make(map[string]string),
	}
}

// SubmitTx records the transaction and confirms it in the next block. A
// resubmission carrying an already-seen idempotency key returns the original
// reference instead of creating a second transaction.
func (s *SimChain) SubmitTx(ctx context.Context, req TxRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailNext > 0 {
		s.FailNext--
		return "", fmt.Errorf("%s: simulated submission failure", s.chainID)
	}

	if req.IdempotencyKey != "" {
		if ref, ok := s.byKey[req.IdempotencyKey]; ok {
			return ref, nil
		}
	}

	s.height++
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s|%d", req.From, req.To, req.Value, req.Data, s.height)))
	ref := "0x" + hex.EncodeToString(sum[:])
	s.receipts[ref] = &TxReceipt{Ref: ref, Confirmed: true, BlockNumber: s.height}
	if req.IdempotencyKey != "" {
		s.byKey[req.IdempotencyKey] = ref
	}
	return ref, nil
}

// WaitConfirmed returns the receipt for a known transaction.
func (s *SimChain) WaitConfirmed(ctx context.Context, ref string) (*TxReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[ref]
	if !ok {
		return nil, fmt.Errorf("%s: unknown transaction %s", s.chainID, ref)
	}
	cp := *r
	return &cp, nil
}

// EstimateFee returns a flat estimate; the simulator has no fee market.
func (s *SimChain) EstimateFee(ctx context.Context, req TxRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "21000", nil
}

// Height returns the simulated block height.
func (s *SimChain) Height(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height, nil
}

// TxCount reports how many distinct transactions have been recorded.
func (s *SimChain) TxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.receipts)
}
