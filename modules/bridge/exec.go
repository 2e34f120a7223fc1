package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/chainflow/internal/chain"
	"github.com/vk/chainflow/internal/ctxlog"
	"github.com/vk/chainflow/internal/executor"
	"github.com/vk/chainflow/internal/htlc"
	"github.com/vk/chainflow/internal/run"
)

// Execute advances the swap contract to a terminal state. Each leg is
// idempotent on the chain side (keyed submissions) and each transition is
// recorded on the contract before the next leg starts, so a retried attempt
// resumes exactly where the previous one stopped.
func (e *Executor) Execute(ctx context.Context, in executor.Inputs, rc *run.Context) (*executor.Result, error) {
	logger := ctxlog.FromContext(ctx)

	src, _ := in.String("source_network")
	dst, _ := in.String("dest_network")
	srcClient, err := e.chains.Get(src)
	if err != nil {
		return nil, err
	}
	dstClient, err := e.chains.Get(dst)
	if err != nil {
		return nil, err
	}

	// A retried attempt resumes the contract created by the first one; the
	// windows are only derived once, at creation.
	id := fmt.Sprintf("htlc/%s/%s", rc.RunID, in.Node)
	c, existed := e.contracts.Get(id)
	if !existed {
		expiry, _, err := e.windows(in, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		secret, hash, err := htlc.GenerateSecret()
		if err != nil {
			return nil, err
		}
		c, _ = e.contracts.GetOrCreate(id, func() *htlc.Contract {
			e.mu.Lock()
			e.secrets[id] = secret
			e.mu.Unlock()
			return htlc.NewContract(id, hash, expiry, src, dst)
		})
	}
	if existed && c.State().Terminal() {
		logger.Info("Swap contract already settled, returning prior outcome.", "contract", id, "state", c.State())
		return contractResult(c), nil
	}

	amount, _ := in.String("amount")
	wallet, _ := in.String("wallet")
	recipient, _ := in.String("recipient")

	if c.State() == htlc.StatePending {
		if err := e.lock(ctx, srcClient, c, src, wallet, recipient, amount); err != nil {
			return nil, err
		}
		logger.Info("🔒 Funds locked on source chain.", "contract", id, "tx", c.SourceTxRef)
	}

	if c.State() == htlc.StateLocked {
		if err := e.claim(ctx, dstClient, c, dst, wallet, recipient, amount); err != nil {
			return e.refundOrFail(ctx, srcClient, c, src, wallet, err)
		}
		logger.Info("🔑 Secret revealed on destination chain.", "contract", id, "tx", c.DestTxRef)
	}

	if c.State() == htlc.StateRevealed {
		if err := e.settle(ctx, srcClient, c, src, recipient); err != nil {
			return e.refundOrFail(ctx, srcClient, c, src, wallet, err)
		}
		logger.Info("✅ Swap completed.", "contract", id)
	}

	e.forget(id)
	if err := e.archive.ArchiveContract(ctx, c); err != nil {
		logger.Warn("Archiving swap contract failed.", "contract", id, "error", err)
	}
	return contractResult(c), nil
}

// lock escrows the sender's funds on the source chain behind the hashlock.
func (e *Executor) lock(ctx context.Context, client chain.Client, c *htlc.Contract, network, wallet, recipient, amount string) error {
	ref, err := e.submit(ctx, client, chain.TxRequest{
		Chain:          network,
		From:           wallet,
		To:             recipient,
		Value:          amount,
		Data:           "lock:" + c.SecretHash,
		IdempotencyKey: c.ID + "/lock",
	})
	if err != nil {
		return fmt.Errorf("locking funds on %s: %w", network, err)
	}
	return c.Lock(ref)
}

// claim reveals the secret on the destination chain, releasing the
// counterparty's funds to the recipient.
func (e *Executor) claim(ctx context.Context, client chain.Client, c *htlc.Contract, network, wallet, recipient, amount string) error {
	e.mu.Lock()
	secret, ok := e.secrets[c.ID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("secret for contract %s is no longer held", c.ID)
	}

	ref, err := e.submit(ctx, client, chain.TxRequest{
		Chain:          network,
		From:           recipient,
		To:             wallet,
		Value:          amount,
		Data:           "claim:" + secret,
		IdempotencyKey: c.ID + "/claim",
	})
	if err != nil {
		return fmt.Errorf("claiming on %s: %w", network, err)
	}
	return c.Reveal(ref, secret)
}

// settle collects the escrowed source-chain funds using the now-public secret.
func (e *Executor) settle(ctx context.Context, client chain.Client, c *htlc.Contract, network, recipient string) error {
	ref, err := e.submit(ctx, client, chain.TxRequest{
		Chain:          network,
		From:           recipient,
		To:             recipient,
		Data:           "settle:" + c.Secret,
		IdempotencyKey: c.ID + "/settle",
	})
	if err != nil {
		return fmt.Errorf("settling on %s: %w", network, err)
	}
	return c.Complete(ref)
}

// refundOrFail handles a failed leg. Once the timelock has expired the
// escrowed funds are returned to the sender and the contract is closed as
// refunded; before expiry the error propagates so the scheduler can retry.
func (e *Executor) refundOrFail(ctx context.Context, srcClient chain.Client, c *htlc.Contract, network, wallet string, cause error) (*executor.Result, error) {
	now := time.Now().UTC()
	if now.Before(c.TimelockExpiry) {
		return nil, cause
	}

	ref, err := e.submit(ctx, srcClient, chain.TxRequest{
		Chain:          network,
		From:           wallet,
		To:             wallet,
		Data:           "refund:" + c.SecretHash,
		IdempotencyKey: c.ID + "/refund",
	})
	if err != nil {
		return nil, fmt.Errorf("refund after %v: %w", cause, err)
	}
	if err := c.Refund(ref, now); err != nil {
		return nil, err
	}
	e.forget(c.ID)

	ctxlog.FromContext(ctx).Warn("↩️ Swap refunded after timelock expiry.", "contract", c.ID, "cause", cause)
	if err := e.archive.ArchiveContract(ctx, c); err != nil {
		ctxlog.FromContext(ctx).Warn("Archiving swap contract failed.", "contract", c.ID, "error", err)
	}
	return nil, fmt.Errorf("swap refunded after timelock expiry: %v", cause)
}

func (e *Executor) submit(ctx context.Context, client chain.Client, req chain.TxRequest) (string, error) {
	ref, err := client.SubmitTx(ctx, req)
	if err != nil {
		return "", err
	}
	receipt, err := client.WaitConfirmed(ctx, ref)
	if err != nil {
		return "", err
	}
	if receipt.Failed {
		return "", fmt.Errorf("transaction %s reverted", ref)
	}
	return ref, nil
}

func (e *Executor) forget(id string) {
	e.mu.Lock()
	delete(e.secrets, id)
	e.mu.Unlock()
}

func contractResult(c *htlc.Contract) *executor.Result {
	return &executor.Result{
		Outputs: map[string]any{"contract": c.Record()},
		Logs:    []string{fmt.Sprintf("contract %s reached state %s", c.ID, c.State())},
	}
}
