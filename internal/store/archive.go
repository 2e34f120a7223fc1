package store

import (
	"context"

	"github.com/vk/chainflow/internal/htlc"
	"github.com/vk/chainflow/internal/run"
)

// Archiver receives terminal runs and terminal swap contracts for durable
// storage. Archival is best-effort and never blocks run semantics; the live
// table in MemoryStore stays authoritative for in-flight runs.
type Archiver interface {
	ArchiveRun(ctx context.Context, snap *run.Snapshot) error
	ArchiveContract(ctx context.Context, c *htlc.Contract) error
}

// NopArchiver discards everything; used when no database is configured.
type NopArchiver struct{}

func (NopArchiver) ArchiveRun(ctx context.Context, snap *run.Snapshot) error  { return nil }
func (NopArchiver) ArchiveContract(ctx context.Context, c *htlc.Contract) error { return nil }
