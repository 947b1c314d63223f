package amr

import (
	"fmt"
	"strings"
)

// Edge is an outgoing edge of a node. For relations Target is another node
// name, for attributes it is a constant value.
type Edge struct {
	Label  string `json:"label"`
	Target string `json:"target"`
}

// Graph is a rooted, labeled semantic graph (AMR style).
// Nodes[i] has concept Concepts[i], outgoing relations Relations[i] and
// attributes Attributes[i].
type Graph struct {
	Nodes      []string `json:"nodes"`
	Concepts   []string `json:"concepts"`
	Relations  [][]Edge `json:"relations"`
	Attributes [][]Edge `json:"attributes"`
	Tops       []string `json:"tops"`

	index map[string]int
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{
		Nodes:      make([]string, 0),
		Concepts:   make([]string, 0),
		Relations:  make([][]Edge, 0),
		Attributes: make([][]Edge, 0),
		Tops:       make([]string, 0),
		index:      make(map[string]int),
	}
}

// AddNode appends a node with its concept label and returns its index.
// Duplicate names are kept so that Triples can report them.
func (g *Graph) AddNode(name, concept string) int {
	idx := len(g.Nodes)
	g.Nodes = append(g.Nodes, name)
	g.Concepts = append(g.Concepts, concept)
	g.Relations = append(g.Relations, nil)
	g.Attributes = append(g.Attributes, nil)
	if g.index == nil {
		g.index = make(map[string]int, len(g.Nodes))
		for i, n := range g.Nodes {
			if _, exists := g.index[n]; !exists {
				g.index[n] = i
			}
		}
	}
	if _, exists := g.index[name]; !exists {
		g.index[name] = idx
	}
	return idx
}

// AddRelation adds a relation edge src -label-> dst
func (g *Graph) AddRelation(src, label, dst string) error {
	i, ok := g.lookup(src)
	if !ok {
		return &MalformedGraphError{Node: src, Reason: fmt.Sprintf("relation %q from unknown node", label)}
	}
	g.Relations[i] = append(g.Relations[i], Edge{Label: label, Target: dst})
	return nil
}

// AddAttribute adds an attribute edge src -label-> value
func (g *Graph) AddAttribute(src, label, value string) error {
	i, ok := g.lookup(src)
	if !ok {
		return &MalformedGraphError{Node: src, Reason: fmt.Sprintf("attribute %q on unknown node", label)}
	}
	g.Attributes[i] = append(g.Attributes[i], Edge{Label: label, Target: value})
	return nil
}

// AddTop marks a node as top. Validation happens in Triples.
func (g *Graph) AddTop(name string) {
	g.Tops = append(g.Tops, name)
}

// NumNodes returns the number of nodes
func (g *Graph) NumNodes() int {
	return len(g.Nodes)
}

// Rename returns a copy of the graph whose nodes are called prefix+index
// ("a0", "a1", ...). Relation targets and tops are rewritten; references to
// unknown nodes are left untouched so that Triples still reports them.
// Duplicate node names collapse onto the first occurrence, so callers that
// care about them should Validate before renaming.
func (g *Graph) Rename(prefix string) *Graph {
	renamed := make(map[string]string, len(g.Nodes))
	for i, name := range g.Nodes {
		if _, exists := renamed[name]; !exists {
			renamed[name] = fmt.Sprintf("%s%d", prefix, i)
		}
	}
	rewrite := func(name string) string {
		if n, ok := renamed[name]; ok {
			return n
		}
		return name
	}

	clone := NewGraph()
	for i := range g.Nodes {
		clone.Nodes = append(clone.Nodes, fmt.Sprintf("%s%d", prefix, i))
		clone.Concepts = append(clone.Concepts, g.Concepts[i])
		clone.index[clone.Nodes[i]] = i

		rels := make([]Edge, len(g.Relations[i]))
		for j, e := range g.Relations[i] {
			rels[j] = Edge{Label: e.Label, Target: rewrite(e.Target)}
		}
		clone.Relations = append(clone.Relations, rels)

		attrs := make([]Edge, len(g.Attributes[i]))
		copy(attrs, g.Attributes[i])
		clone.Attributes = append(clone.Attributes, attrs)
	}
	for _, top := range g.Tops {
		clone.Tops = append(clone.Tops, rewrite(top))
	}
	return clone
}

// String renders the graph one node per line, for debug logs
func (g *Graph) String() string {
	var b strings.Builder
	for i, name := range g.Nodes {
		fmt.Fprintf(&b, "Node %d %s\n", i, name)
		fmt.Fprintf(&b, "Value: %s\n", g.Concepts[i])
		for _, r := range g.Relations[i] {
			fmt.Fprintf(&b, "Node %s via %s\n", r.Target, r.Label)
		}
		for _, a := range g.Attributes[i] {
			fmt.Fprintf(&b, "Attribute: %s value %s\n", a.Label, a.Target)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// lookup never writes to g, so it is safe on a graph shared between
// goroutines. Graphs built as literals fall back to a scan.
func (g *Graph) lookup(name string) (int, bool) {
	if g.index == nil {
		for i, n := range g.Nodes {
			if n == name {
				return i, true
			}
		}
		return 0, false
	}
	i, ok := g.index[name]
	return i, ok
}
