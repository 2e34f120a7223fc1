package htlc

import "sync"

// Store keeps live contract records keyed by contract id. The bridge
// executor uses it to detect and short-circuit duplicate attempts after a
// retry or timeout.
type Store struct {
	mu        sync.RWMutex
	contracts map[string]*Contract
}

// NewStore creates an empty contract store.
func NewStore() *Store {
	return &Store{contracts: make(map[string]*Contract)}
}

// Get returns the contract with the given id, or false.
func (s *Store) Get(id string) (*Contract, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[id]
	return c, ok
}

// GetOrCreate returns the existing contract for id, or stores and returns
// the one produced by build. The second return reports whether the contract
// already existed.
func (s *Store) GetOrCreate(id string, build func() *Contract) (*Contract, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.contracts[id]; ok {
		return c, true
	}
	c := build()
	s.contracts[id] = c
	return c, false
}

// All returns a snapshot slice of every stored contract.
func (s *Store) All() []*Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Contract, 0, len(s.contracts))
	for _, c := range s.contracts {
		out = append(out, c)
	}
	return out
}
