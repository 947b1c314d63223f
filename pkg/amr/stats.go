package amr

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"
)

// GraphStats summarizes the shape of a graph for logging
type GraphStats struct {
	Nodes      int `json:"nodes"`
	Relations  int `json:"relations"`
	Attributes int `json:"attributes"`
	SelfLoops  int `json:"self_loops"`
	Components int `json:"components"` // weakly connected components
	Reachable  int `json:"reachable"`  // nodes reachable from the top along relations
}

// Stats computes GraphStats. Edges to unknown nodes are ignored, so it is
// safe to call on graphs that fail Validate. It only reads g.
func (g *Graph) Stats() GraphStats {
	stats := GraphStats{Nodes: len(g.Nodes)}
	if len(g.Nodes) == 0 {
		return stats
	}

	// local index, first occurrence wins
	index := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		if _, exists := index[n]; !exists {
			index[n] = i
		}
	}

	directed := simple.NewDirectedGraph()
	undirected := simple.NewUndirectedGraph()
	for i := range g.Nodes {
		directed.AddNode(simple.Node(int64(i)))
		undirected.AddNode(simple.Node(int64(i)))
	}

	for i := range g.Nodes {
		if i < len(g.Attributes) {
			stats.Attributes += len(g.Attributes[i])
		}
		if i >= len(g.Relations) {
			continue
		}
		for _, r := range g.Relations[i] {
			stats.Relations++
			j, ok := index[r.Target]
			if !ok {
				continue
			}
			// gonum simple graphs reject self edges
			if i == j {
				stats.SelfLoops++
				continue
			}
			from, to := simple.Node(int64(i)), simple.Node(int64(j))
			directed.SetEdge(simple.Edge{F: from, T: to})
			undirected.SetEdge(simple.Edge{F: from, T: to})
		}
	}

	stats.Components = len(topo.ConnectedComponents(undirected))

	if len(g.Tops) > 0 {
		if top, ok := index[g.Tops[0]]; ok {
			var bf traverse.BreadthFirst
			bf.Walk(directed, simple.Node(int64(top)), func(graph.Node, int) bool {
				stats.Reachable++
				return false
			})
		}
	}
	return stats
}
