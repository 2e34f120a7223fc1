package graph

import (
	"fmt"
	"strings"
)

// Fault is one problem found during graph validation.
type Fault struct {
	NodeID string `json:"nodeId,omitempty"`
	EdgeID string `json:"edgeId,omitempty"`
	Reason string `json:"reason"`
}

func (f Fault) String() string {
	switch {
	case f.EdgeID != "":
		return fmt.Sprintf("edge %s: %s", f.EdgeID, f.Reason)
	case f.NodeID != "":
		return fmt.Sprintf("node %s: %s", f.NodeID, f.Reason)
	default:
		return f.Reason
	}
}

// ValidationError reports every fault found in a graph as a single batch.
// The engine never starts a partially valid graph.
type ValidationError struct {
	Faults []Fault
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Faults))
	for i, f := range e.Faults {
		msgs[i] = f.String()
	}
	return "graph validation failed: " + strings.Join(msgs, "; ")
}

// Validate checks the graph's structure: unique node ids, edges referencing
// existing nodes, no self-edges, single-writer target ports, and acyclicity.
// All faults are collected and returned together.
func (g *Graph) Validate() error {
	var faults []Fault

	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			faults = append(faults, Fault{Reason: "node with empty id"})
			continue
		}
		if seen[n.ID] {
			faults = append(faults, Fault{NodeID: n.ID, Reason: "duplicate node id"})
		}
		seen[n.ID] = true
		if n.OperationType == "" {
			faults = append(faults, Fault{NodeID: n.ID, Reason: "missing operation type"})
		}
	}

	writers := make(map[string]string) // targetNode/targetPort -> edge id
	for _, e := range g.Edges {
		if !seen[e.SourceNode] {
			faults = append(faults, Fault{EdgeID: e.ID, Reason: fmt.Sprintf("source node %q not found", e.SourceNode)})
		}
		if !seen[e.TargetNode] {
			faults = append(faults, Fault{EdgeID: e.ID, Reason: fmt.Sprintf("target node %q not found", e.TargetNode)})
		}
		if e.SourceNode == e.TargetNode {
			faults = append(faults, Fault{EdgeID: e.ID, Reason: "self-referential edge"})
		}
		if e.SourcePort == "" || e.TargetPort == "" {
			faults = append(faults, Fault{EdgeID: e.ID, Reason: "edge must name both ports"})
		}
		key := e.TargetNode + "/" + e.TargetPort
		if prev, dup := writers[key]; dup {
			faults = append(faults, Fault{
				EdgeID: e.ID,
				Reason: fmt.Sprintf("input port %q on node %q already written by edge %s", e.TargetPort, e.TargetNode, prev),
			})
		} else {
			writers[key] = e.ID
		}
	}

	// Cycle detection only makes sense once the edge endpoints resolve.
	if len(faults) == 0 {
		if cycleNode := g.findCycle(); cycleNode != "" {
			faults = append(faults, Fault{NodeID: cycleNode, Reason: "graph contains a cycle"})
		}
	}

	if len(faults) > 0 {
		return &ValidationError{Faults: faults}
	}
	return nil
}

// findCycle runs a depth-first search with the classic permanent/temporary
// marking scheme and returns a node involved in a cycle, or "".
func (g *Graph) findCycle() string {
	succs := g.Successors()
	permanent := make(map[string]bool, len(g.Nodes))
	temporary := make(map[string]bool, len(g.Nodes))

	var visit func(id string) string
	visit = func(id string) string {
		if permanent[id] {
			return ""
		}
		if temporary[id] {
			return id
		}
		temporary[id] = true
		for next := range succs[id] {
			if hit := visit(next); hit != "" {
				return hit
			}
		}
		delete(temporary, id)
		permanent[id] = true
		return ""
	}

	for _, n := range g.Nodes {
		if !permanent[n.ID] {
			if hit := visit(n.ID); hit != "" {
				return hit
			}
		}
	}
	return ""
}
