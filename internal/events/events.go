// Package events defines the engine's lifecycle event stream. The scheduler
// publishes to a single ordered Bus; observers (the live feed, CLIs, tests)
// fan out from that one internal stream.
package events

import "time"

// Type names one lifecycle event kind.
type Type string

const (
	RunStarted    Type = "run.started"
	NodeReady     Type = "node.ready"
	NodeStarted   Type = "node.started"
	NodeCompleted Type = "node.completed"
	NodeFailed    Type = "node.failed"
	NodeSkipped   Type = "node.skipped"
	RunCompleted  Type = "run.completed"
	RunFailed     Type = "run.failed"
	RunCancelled  Type = "run.cancelled"
)

// Event is one entry in a run's ordered lifecycle stream. Seq increases
// monotonically per bus in publish order.
type Event struct {
	Seq     uint64         `json:"seq"`
	RunID   string         `json:"runId"`
	Type    Type           `json:"type"`
	NodeID  string         `json:"nodeId,omitempty"`
	Outputs map[string]any `json:"outputs,omitempty"`
	Error   string         `json:"error,omitempty"`
	Time    time.Time      `json:"time"`
}
