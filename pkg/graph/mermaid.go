package graph

import (
	"fmt"
	"strings"
)

// Mermaid produces a Mermaid flowchart of the graph topology.
// Semantic styling: start as ((circle)), terminal nodes as [[subroutine]],
// everything else as [rectangle].
func (g *Graph) Mermaid() string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, id := range g.order {
		safeID := sanitizeMermaidID(id)

		opener, closer := "[", "]"
		switch {
		case id == g.start:
			opener, closer = "((", "))"
		case g.nodes[id].Terminal:
			opener, closer = "[[", "]]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, id, closer)

		for _, to := range g.outgoing[id] {
			fmt.Fprintf(&sb, "    %s --> %s\n", safeID, sanitizeMermaidID(to))
		}
	}

	return sb.String()
}

// sanitizeMermaidID strips characters Mermaid treats as syntax.
func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer("/", "_", " ", "_", "-", "_", ".", "_")
	return r.Replace(id)
}
