// Package postgres archives terminal runs, their step records and swap
// contracts to PostgreSQL via pgx. Node config is redacted before it ever
// reaches a persisted row; step outputs are stored as JSONB.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vk/chainflow/internal/htlc"
	"github.com/vk/chainflow/internal/run"
)

// PGStore implements store.Archiver backed by a pgx connection pool.
type PGStore struct {
	db *pgxpool.Pool
}

// New creates a PGStore on an existing pool.
func New(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id         TEXT PRIMARY KEY,
    graph_id   TEXT NOT NULL,
    status     TEXT NOT NULL,
    start_time TIMESTAMPTZ NOT NULL,
    end_time   TIMESTAMPTZ,
    error      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS step_records (
    run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    node_id    TEXT NOT NULL,
    status     TEXT NOT NULL,
    attempts   INT NOT NULL DEFAULT 0,
    start_time TIMESTAMPTZ,
    end_time   TIMESTAMPTZ,
    outputs    JSONB,
    error      TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, node_id)
);

CREATE TABLE IF NOT EXISTS swap_contracts (
    id              TEXT PRIMARY KEY,
    secret_hash     TEXT NOT NULL,
    secret          TEXT NOT NULL DEFAULT '',
    timelock_expiry TIMESTAMPTZ NOT NULL,
    source_chain    TEXT NOT NULL,
    dest_chain      TEXT NOT NULL,
    source_tx_ref   TEXT NOT NULL DEFAULT '',
    dest_tx_ref     TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL,
    transitions     JSONB NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_step_records_run ON step_records(run_id);
CREATE INDEX IF NOT EXISTS idx_runs_graph       ON runs(graph_id);
`

// CreateSchema creates the archive tables if they do not exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// ArchiveRun upserts a terminal run and its full step record table.
func (s *PGStore) ArchiveRun(ctx context.Context, snap *run.Snapshot) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback(ctx)

	r := snap.Run
	_, err = tx.Exec(ctx, `
		INSERT INTO runs (id, graph_id, status, start_time, end_time, error)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, end_time = EXCLUDED.end_time, error = EXCLUDED.error`,
		r.ID, r.GraphID, string(r.Status), r.StartTime, r.EndTime, r.Error)
	if err != nil {
		return fmt.Errorf("archiving run %s: %w", r.ID, err)
	}

	for _, step := range snap.Steps {
		var outputs []byte
		if step.Outputs != nil {
			outputs, err = json.Marshal(step.Outputs)
			if err != nil {
				return fmt.Errorf("encoding outputs for node %s: %w", step.NodeID, err)
			}
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO step_records (run_id, node_id, status, attempts, start_time, end_time, outputs, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (run_id, node_id) DO UPDATE
			SET status = EXCLUDED.status, attempts = EXCLUDED.attempts,
			    start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time,
			    outputs = EXCLUDED.outputs, error = EXCLUDED.error`,
			r.ID, step.NodeID, string(step.Status), step.Attempts,
			step.StartTime, step.EndTime, outputs, step.Error)
		if err != nil {
			return fmt.Errorf("archiving step %s/%s: %w", r.ID, step.NodeID, err)
		}
	}

	return tx.Commit(ctx)
}

// ArchiveContract upserts a swap contract with its transition log.
func (s *PGStore) ArchiveContract(ctx context.Context, c *htlc.Contract) error {
	transitions, err := json.Marshal(c.Log())
	if err != nil {
		return fmt.Errorf("encoding transitions for contract %s: %w", c.ID, err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO swap_contracts
			(id, secret_hash, secret, timelock_expiry, source_chain, dest_chain,
			 source_tx_ref, dest_tx_ref, status, transitions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET secret = EXCLUDED.secret, source_tx_ref = EXCLUDED.source_tx_ref,
		    dest_tx_ref = EXCLUDED.dest_tx_ref, status = EXCLUDED.status,
		    transitions = EXCLUDED.transitions`,
		c.ID, c.SecretHash, c.Secret, c.TimelockExpiry, c.SourceChain, c.DestChain,
		c.SourceTxRef, c.DestTxRef, string(c.State()), transitions)
	if err != nil {
		return fmt.Errorf("archiving contract %s: %w", c.ID, err)
	}
	return nil
}
