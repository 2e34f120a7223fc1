// Package graph defines the declarative workflow document: operation nodes
// wired by edges between named ports. Structural validation (dangling edges,
// duplicate writers, cycles) lives here; port type compatibility is checked
// by the engine against the executor registry.
package graph

// Graph is a declarative node/edge document submitted for execution.
type Graph struct {
	ID          string            `json:"id"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Nodes       []*Node           `json:"nodes"`
	Edges       []*Edge           `json:"edges"`
}

// Node is one unit of work. OperationType keys into the executor registry;
// Config carries author-supplied settings for that executor.
type Node struct {
	ID            string         `json:"id"`
	Label         string         `json:"label,omitempty"`
	OperationType string         `json:"operationType"`
	Config        map[string]any `json:"config,omitempty"`
}

// Edge is a directed data flow from a source node's output port to a target
// node's input port.
type Edge struct {
	ID         string `json:"id"`
	SourceNode string `json:"sourceNodeId"`
	SourcePort string `json:"sourcePort"`
	TargetNode string `json:"targetNodeId"`
	TargetPort string `json:"targetPort"`
}

// NodeByID returns the node with the given id, or nil.
func (g *Graph) NodeByID(id string) *Node {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// Predecessors returns, per node id, the set of distinct upstream node ids.
func (g *Graph) Predecessors() map[string]map[string]struct{} {
	preds := make(map[string]map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		preds[n.ID] = make(map[string]struct{})
	}
	for _, e := range g.Edges {
		if set, ok := preds[e.TargetNode]; ok {
			set[e.SourceNode] = struct{}{}
		}
	}
	return preds
}

// Successors returns, per node id, the set of distinct downstream node ids.
func (g *Graph) Successors() map[string]map[string]struct{} {
	succs := make(map[string]map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		succs[n.ID] = make(map[string]struct{})
	}
	for _, e := range g.Edges {
		if set, ok := succs[e.SourceNode]; ok {
			set[e.TargetNode] = struct{}{}
		}
	}
	return succs
}

// IncomingEdges returns the edges targeting each node, keyed by node id.
func (g *Graph) IncomingEdges() map[string][]*Edge {
	in := make(map[string][]*Edge, len(g.Nodes))
	for _, e := range g.Edges {
		in[e.TargetNode] = append(in[e.TargetNode], e)
	}
	return in
}
