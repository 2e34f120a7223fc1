// Package bridge implements bridge.htlc, the cross-chain atomic swap. One
// Execute drives the hashlock/timelock contract through
// pending→locked→revealed→completed, falling back to a refund on whichever
// chain still holds funds once the timelock expires. The contract id is
// derived from the run and node, so a retried attempt resumes the existing
// contract instead of locking funds twice.
package bridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/vk/chainflow/internal/chain"
	"github.com/vk/chainflow/internal/executor"
	"github.com/vk/chainflow/internal/htlc"
	"github.com/vk/chainflow/internal/ports"
	"github.com/vk/chainflow/internal/store"
)

// Module registers the bridge.htlc executor.
type Module struct {
	Chains    chain.Set
	Contracts *htlc.Store
	Archive   store.Archiver
}

func (m *Module) Register(r *executor.Registry) {
	contracts := m.Contracts
	if contracts == nil {
		contracts = htlc.NewStore()
	}
	archive := m.Archive
	if archive == nil {
		archive = store.NopArchiver{}
	}
	r.Register(&Executor{
		chains:    m.Chains,
		contracts: contracts,
		archive:   archive,
		secrets:   make(map[string]string),
	})
}

// Executor implements the bridge.htlc operation.
type Executor struct {
	chains    chain.Set
	contracts *htlc.Store
	archive   store.Archiver

	// secrets holds pre-reveal swap secrets in memory only, keyed by
	// contract id. A secret reaches the persisted contract record no
	// earlier than its destination-chain claim confirmation.
	mu      sync.Mutex
	secrets map[string]string
}

func (e *Executor) Spec() executor.Spec {
	return executor.Spec{
		OperationType: "bridge.htlc",
		Inputs: []ports.Port{
			{Name: "amount", Type: ports.Amount},
			{Name: "wallet", Type: ports.Address},
			{Name: "recipient", Type: ports.Address},
		},
		Outputs: []ports.Port{
			{Name: "contract", Type: ports.JSONBlob},
		},
	}
}

func (e *Executor) Validate(in executor.Inputs) executor.ValidationResult {
	var errs []string

	amount, ok := in.String("amount")
	if !ok {
		errs = append(errs, "input \"amount\" is required")
	} else if _, err := chain.ParseAmount(amount); err != nil {
		errs = append(errs, err.Error())
	}

	for _, port := range []string{"wallet", "recipient"} {
		addr, ok := in.String(port)
		if !ok {
			errs = append(errs, fmt.Sprintf("input %q is required", port))
		} else if err := chain.ValidateAddress(addr); err != nil {
			errs = append(errs, err.Error())
		}
	}

	src, _ := in.String("source_network")
	dst, _ := in.String("dest_network")
	switch {
	case src == "" || dst == "":
		errs = append(errs, "config.source_network and config.dest_network are required")
	case src == dst:
		errs = append(errs, "source and destination networks must differ")
	default:
		if !e.chains.Known(src) {
			errs = append(errs, fmt.Sprintf("unsupported network %q", src))
		}
		if !e.chains.Known(dst) {
			errs = append(errs, fmt.Sprintf("unsupported network %q", dst))
		}
	}

	expiry, claimDeadline, err := e.windows(in, time.Now().UTC())
	if err != nil {
		errs = append(errs, err.Error())
	} else {
		// The destination claim window must close strictly before the
		// source refund window opens, or the counterparty could take both
		// legs.
		if err := htlc.CheckWindows(claimDeadline, expiry); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return executor.Invalid(errs...)
	}
	return executor.OK()
}

// windows derives the refund expiry and destination claim deadline from the
// node config. An explicit timelock_expiry must still be in the future.
func (e *Executor) windows(in executor.Inputs, now time.Time) (expiry, claimDeadline time.Time, err error) {
	timelockMinutes := 60.0
	if v, present := in.Config["timelock_minutes"].(float64); present {
		if v <= 0 {
			return time.Time{}, time.Time{}, fmt.Errorf("config.timelock_minutes must be positive")
		}
		timelockMinutes = v
	}
	expiry = now.Add(time.Duration(timelockMinutes * float64(time.Minute)))

	if raw, present := in.Config["timelock_expiry"].(string); present {
		parsed, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("config.timelock_expiry: %v", perr)
		}
		if !parsed.After(now) {
			return time.Time{}, time.Time{}, fmt.Errorf("timelock already expired")
		}
		expiry = parsed
	}

	claimMinutes := timelockMinutes / 2
	if v, present := in.Config["claim_window_minutes"].(float64); present {
		if v <= 0 {
			return time.Time{}, time.Time{}, fmt.Errorf("config.claim_window_minutes must be positive")
		}
		claimMinutes = v
	}
	claimDeadline = now.Add(time.Duration(claimMinutes * float64(time.Minute)))
	return expiry, claimDeadline, nil
}
