// Package htlc implements the hashlock/timelock contract record backing the
// cross-chain atomic-swap bridge: secret generation, the
// pending→locked→revealed→completed state machine with its refund path, and
// the append-only transition log that doubles as the audit trail.
package htlc

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/sha3"
)

// State is the lifecycle state of an atomic-swap contract.
type State string

const (
	StatePending   State = "pending"
	StateLocked    State = "locked"
	StateRevealed  State = "revealed"
	StateCompleted State = "completed"
	StateRefunded  State = "refunded"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateRefunded
}

// ErrTerminalState is returned when a transition is attempted on a contract
// that already reached completed or refunded.
var ErrTerminalState = errors.New("contract is in a terminal state")

// transitions is the legality table of the state machine. refunded is
// reachable only from locked or revealed, once the timelock has passed.
var transitions = map[State][]State{
	StatePending:  {StateLocked},
	StateLocked:   {StateRevealed, StateRefunded},
	StateRevealed: {StateCompleted, StateRefunded},
}

// Transition is one append-only entry in a contract's state log.
type Transition struct {
	From  State     `json:"from"`
	To    State     `json:"to"`
	At    time.Time `json:"at"`
	TxRef string    `json:"txRef,omitempty"`
	Note  string    `json:"note,omitempty"`
}

// Contract is one hash-time-locked cross-chain transfer. The secret field
// stays empty until the destination-chain claim that reveals it has been
// observed confirmed; before that point the secret lives only in the bridge
// executor's memory.
type Contract struct {
	mu sync.Mutex

	ID             string    `json:"id"`
	SecretHash     string    `json:"secretHash"`
	Secret         string    `json:"secret,omitempty"`
	TimelockExpiry time.Time `json:"timelockExpiry"`
	SourceChain    string    `json:"sourceChain"`
	DestChain      string    `json:"destChain"`
	SourceTxRef    string    `json:"sourceTxRef,omitempty"`
	DestTxRef      string    `json:"destTxRef,omitempty"`

	state State
	log   []Transition
}

// NewContract creates a pending contract for the given hashlock and expiry.
func NewContract(id, secretHash string, expiry time.Time, sourceChain, destChain string) *Contract {
	return &Contract{
		ID:             id,
		SecretHash:     secretHash,
		TimelockExpiry: expiry,
		SourceChain:    sourceChain,
		DestChain:      destChain,
		state:          StatePending,
	}
}

// GenerateSecret returns a fresh 32-byte secret and its Keccak-256 hashlock,
// both hex encoded.
func GenerateSecret() (secret, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generating swap secret: %w", err)
	}
	return hex.EncodeToString(buf), HashSecret(hex.EncodeToString(buf)), nil
}

// HashSecret computes the Keccak-256 hashlock of a hex-encoded secret.
func HashSecret(secretHex string) string {
	raw, err := hex.DecodeString(secretHex)
	if err != nil {
		// A non-hex secret is still hashed over its raw bytes so the
		// function stays total; Validate rejects such inputs upstream.
		raw = []byte(secretHex)
	}
	sum := sha3.NewLegacyKeccak256()
	sum.Write(raw)
	return hex.EncodeToString(sum.Sum(nil))
}

// State returns the current state.
func (c *Contract) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Log returns a copy of the append-only transition log.
func (c *Contract) Log() []Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Transition{}, c.log...)
}

// Lock records the confirmed source-chain lock transaction.
func (c *Contract) Lock(txRef string) error {
	return c.apply(StateLocked, txRef, func() {
		c.SourceTxRef = txRef
	})
}

// Reveal records the confirmed destination-chain claim that made the secret
// public. Only now is the secret persisted on the record.
func (c *Contract) Reveal(txRef, secretHex string) error {
	if HashSecret(secretHex) != c.SecretHash {
		return fmt.Errorf("contract %s: secret does not match hashlock", c.ID)
	}
	return c.apply(StateRevealed, txRef, func() {
		c.DestTxRef = txRef
		c.Secret = secretHex
	})
}

// Complete records the confirmed source-chain claim. Both legs are now
// irreversible.
func (c *Contract) Complete(txRef string) error {
	return c.apply(StateCompleted, txRef, nil)
}

// Refund records the confirmed refund transaction after timelock expiry.
func (c *Contract) Refund(txRef string, now time.Time) error {
	if now.Before(c.TimelockExpiry) {
		return fmt.Errorf("contract %s: refund before timelock expiry %s", c.ID, c.TimelockExpiry.Format(time.RFC3339))
	}
	return c.apply(StateRefunded, txRef, nil)
}

func (c *Contract) apply(to State, txRef string, mutate func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Terminal() {
		return fmt.Errorf("contract %s: %w (%s)", c.ID, ErrTerminalState, c.state)
	}
	legal := false
	for _, next := range transitions[c.state] {
		if next == to {
			legal = true
			break
		}
	}
	if !legal {
		return fmt.Errorf("contract %s: illegal transition %s -> %s", c.ID, c.state, to)
	}

	c.log = append(c.log, Transition{From: c.state, To: to, At: time.Now().UTC(), TxRef: txRef})
	c.state = to
	if mutate != nil {
		mutate()
	}
	return nil
}

// Record returns a plain snapshot of the contract suitable for node outputs
// and archival. The secret appears only once the contract has revealed it.
func (c *Contract) Record() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	log := make([]any, 0, len(c.log))
	for _, t := range c.log {
		entry := map[string]any{
			"from": string(t.From),
			"to":   string(t.To),
			"at":   t.At.Format(time.RFC3339),
		}
		if t.TxRef != "" {
			entry["txRef"] = t.TxRef
		}
		log = append(log, entry)
	}

	rec := map[string]any{
		"id":             c.ID,
		"secretHash":     c.SecretHash,
		"state":          string(c.state),
		"timelockExpiry": c.TimelockExpiry.Format(time.RFC3339),
		"sourceChain":    c.SourceChain,
		"destChain":      c.DestChain,
		"transitions":    log,
	}
	if c.Secret != "" {
		rec["secret"] = c.Secret
	}
	if c.SourceTxRef != "" {
		rec["sourceTx"] = c.SourceTxRef
	}
	if c.DestTxRef != "" {
		rec["destTx"] = c.DestTxRef
	}
	return rec
}

// CheckWindows enforces the ordering invariant between the two legs: the
// destination-chain claim window must close strictly before the source-chain
// refund window opens, otherwise a counterparty could claim on the
// destination chain and still refund on the source chain.
func CheckWindows(claimDeadline, refundAfter time.Time) error {
	if !claimDeadline.Before(refundAfter) {
		return fmt.Errorf("claim deadline %s must be strictly before refund window opens at %s",
			claimDeadline.Format(time.RFC3339), refundAfter.Format(time.RFC3339))
	}
	return nil
}
