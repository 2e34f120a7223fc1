package engine

import "time"

// RetryPolicy bounds Execute retries. Backoff doubles per attempt.
type RetryPolicy struct {
	MaxAttempts int           `json:"maxAttempts"`
	Backoff     time.Duration `json:"backoffMs"`
}

// Options is the per-run configuration bundle accepted at submission.
type Options struct {
	// MaxConcurrency bounds the worker pool for this run.
	MaxConcurrency int
	// NodeTimeout caps each Execute call. Enforcement does not depend on
	// executor cooperation; an overrun is failed and left to finish in the
	// background.
	NodeTimeout time.Duration
	// Retry applies to execution errors and timeouts, never to input
	// validation failures or cancellation.
	Retry RetryPolicy
	// Environment selects "live" or "test" (dry-run) execution.
	Environment string
	// CancelGrace is how long a running node may keep executing after the
	// run is cancelled before it is force-abandoned.
	CancelGrace time.Duration
}

// withDefaults fills unset fields with the engine defaults.
func (o Options) withDefaults() Options {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = 4
	}
	if o.NodeTimeout <= 0 {
		o.NodeTimeout = 60 * time.Second
	}
	if o.Retry.MaxAttempts <= 0 {
		o.Retry.MaxAttempts = 3
	}
	if o.Retry.Backoff <= 0 {
		o.Retry.Backoff = 500 * time.Millisecond
	}
	if o.Environment == "" {
		o.Environment = "live"
	}
	if o.CancelGrace <= 0 {
		o.CancelGrace = 5 * time.Second
	}
	return o
}
