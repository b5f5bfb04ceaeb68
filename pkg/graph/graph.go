// Package graph holds the immutable description of a workflow: nodes,
// directed edges and one designated start node. Graphs are validated at
// build time and read-only afterwards.
package graph

import (
	"github.com/docweave/docweave/pkg/domain"
)

// Graph is the validated, immutable workflow topology.
type Graph struct {
	nodes    map[string]domain.Node
	order    []string // node IDs in registration order
	outgoing map[string][]string
	start    string
}

// Build validates the definition and constructs a Graph. It returns a
// ConfigError if the graph is empty, the start node is unknown, or an edge
// references a node that does not exist.
func Build(nodes []domain.Node, edges []domain.Edge, start string) (*Graph, error) {
	if len(nodes) == 0 {
		return nil, &domain.ConfigError{Reason: "graph has no nodes"}
	}

	g := &Graph{
		nodes:    make(map[string]domain.Node, len(nodes)),
		order:    make([]string, 0, len(nodes)),
		outgoing: make(map[string][]string),
		start:    start,
	}

	for _, n := range nodes {
		if n.ID == "" {
			return nil, &domain.ConfigError{Reason: "node with empty id"}
		}
		if n.Step == nil {
			return nil, &domain.ConfigError{Reason: "node " + n.ID + " has no step"}
		}
		if _, dup := g.nodes[n.ID]; dup {
			return nil, &domain.ConfigError{Reason: "duplicate node id " + n.ID}
		}
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
	}

	if _, ok := g.nodes[start]; !ok {
		return nil, &domain.ConfigError{Reason: "start node " + start + " is not defined"}
	}

	for _, e := range edges {
		if _, ok := g.nodes[e.From]; !ok {
			return nil, &domain.ConfigError{Reason: "edge source " + e.From + " is not defined"}
		}
		if _, ok := g.nodes[e.To]; !ok {
			return nil, &domain.ConfigError{Reason: "edge target " + e.To + " is not defined"}
		}
		g.outgoing[e.From] = append(g.outgoing[e.From], e.To)
	}

	return g, nil
}

// Start returns the ID of the designated start node.
func (g *Graph) Start() string {
	return g.start
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (domain.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Outgoing returns the destinations of the node's outgoing edges, in edge
// declaration order.
func (g *Graph) Outgoing(id string) []domain.Node {
	targets := g.outgoing[id]
	out := make([]domain.Node, 0, len(targets))
	for _, t := range targets {
		out = append(out, g.nodes[t])
	}
	return out
}

// IsTerminal reports whether the node's step declares it can yield the run's
// final output.
func (g *Graph) IsTerminal(id string) bool {
	return g.nodes[id].Terminal
}

// Nodes returns all nodes in registration order.
func (g *Graph) Nodes() []domain.Node {
	out := make([]domain.Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}
