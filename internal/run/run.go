// Package run holds the per-run state model: the Run itself, the per-node
// StepRecords that form its audit trail, and the ExecutionContext handed to
// executors.
package run

import "time"

// Status is the lifecycle status of a whole run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// StepStatus is the lifecycle status of a single node within a run.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepReady     StepStatus = "ready"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// Terminal reports whether the step status admits no further transitions.
func (s StepStatus) Terminal() bool {
	return s == StepCompleted || s == StepFailed || s == StepSkipped
}

// Run is one execution of a graph. It is created when execution is
// requested and mutated only by the scheduler.
type Run struct {
	ID        string     `json:"id"`
	GraphID   string     `json:"graphId"`
	Status    Status     `json:"status"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// StepRecord tracks one node's execution within a run. Records are created
// for every node at run start and never deleted.
type StepRecord struct {
	NodeID    string         `json:"nodeId"`
	Status    StepStatus     `json:"status"`
	Attempts  int            `json:"attempts"`
	StartTime *time.Time     `json:"startTime,omitempty"`
	EndTime   *time.Time     `json:"endTime,omitempty"`
	Outputs   map[string]any `json:"outputs,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Snapshot is a consistent copy of a run and all of its step records.
type Snapshot struct {
	Run   Run          `json:"run"`
	Steps []StepRecord `json:"steps"`
}

// Clone returns a deep copy of the record. Output maps are copied one level
// deep, which is enough to keep callers from racing the scheduler.
func (r StepRecord) Clone() StepRecord {
	cp := r
	if r.StartTime != nil {
		t := *r.StartTime
		cp.StartTime = &t
	}
	if r.EndTime != nil {
		t := *r.EndTime
		cp.EndTime = &t
	}
	if r.Outputs != nil {
		cp.Outputs = make(map[string]any, len(r.Outputs))
		for k, v := range r.Outputs {
			cp.Outputs[k] = v
		}
	}
	return cp
}
