// Package manifest loads workflow graphs authored as HCL documents:
//
//	workflow "demo" {
//	  description = "connect, quote, swap"
//	}
//
//	node "wallet" {
//	  type   = "wallet.connect"
//	  config = { network = "ethereum", address = "0x..." }
//	}
//
//	edge {
//	  from = "wallet.address"
//	  to   = "swap.wallet"
//	}
package manifest

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/chainflow/internal/graph"
)

type manifestDoc struct {
	Workflow *workflowBlock `hcl:"workflow,block"`
	Nodes    []nodeBlock    `hcl:"node,block"`
	Edges    []edgeBlock    `hcl:"edge,block"`
}

type workflowBlock struct {
	Name        string            `hcl:"name,label"`
	Description string            `hcl:"description,optional"`
	Metadata    map[string]string `hcl:"metadata,optional"`
}

type nodeBlock struct {
	Name   string         `hcl:"name,label"`
	Type   string         `hcl:"type"`
	Label  string         `hcl:"label,optional"`
	Config hcl.Expression `hcl:"config,optional"`
}

type edgeBlock struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

// Load parses an HCL manifest file into a graph document.
func Load(path string) (*graph.Graph, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, diags)
	}
	return build(file, path)
}

// LoadBytes parses an in-memory HCL manifest, mainly for tests.
func LoadBytes(src []byte, filename string) (*graph.Graph, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing manifest %s: %w", filename, diags)
	}
	return build(file, filename)
}

func build(file *hcl.File, name string) (*graph.Graph, error) {
	var doc manifestDoc
	if diags := gohcl.DecodeBody(file.Body, nil, &doc); diags.HasErrors() {
		return nil, fmt.Errorf("decoding manifest %s: %w", name, diags)
	}

	g := &graph.Graph{}
	if doc.Workflow != nil {
		g.ID = doc.Workflow.Name
		g.Name = doc.Workflow.Name
		g.Description = doc.Workflow.Description
		g.Metadata = doc.Workflow.Metadata
	} else {
		g.ID = name
	}

	for _, nb := range doc.Nodes {
		cfg, err := decodeConfig(nb)
		if err != nil {
			return nil, err
		}
		g.Nodes = append(g.Nodes, &graph.Node{
			ID:            nb.Name,
			Label:         nb.Label,
			OperationType: nb.Type,
			Config:        cfg,
		})
	}

	for i, eb := range doc.Edges {
		srcNode, srcPort, err := splitRef(eb.From)
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
		dstNode, dstPort, err := splitRef(eb.To)
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
		g.Edges = append(g.Edges, &graph.Edge{
			ID:         fmt.Sprintf("edge-%d", i),
			SourceNode: srcNode,
			SourcePort: srcPort,
			TargetNode: dstNode,
			TargetPort: dstPort,
		})
	}

	return g, nil
}

func decodeConfig(nb nodeBlock) (map[string]any, error) {
	if nb.Config == nil {
		return nil, nil
	}
	val, diags := nb.Config.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("node %q: evaluating config: %w", nb.Name, diags)
	}
	if val.IsNull() {
		return nil, nil
	}
	converted, err := ctyToGo(val)
	if err != nil {
		return nil, fmt.Errorf("node %q: config: %w", nb.Name, err)
	}
	m, ok := converted.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("node %q: config must be an object", nb.Name)
	}
	return m, nil
}

// splitRef parses a "node.port" reference.
func splitRef(ref string) (node, port string, err error) {
	node, port, ok := strings.Cut(ref, ".")
	if !ok || node == "" || port == "" {
		return "", "", fmt.Errorf("malformed port reference %q, want \"node.port\"", ref)
	}
	return node, port, nil
}
