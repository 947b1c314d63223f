package amr

import (
	"fmt"
	"strings"
)

const (
	// InstanceLabel is the label of every instance triple
	InstanceLabel = "instance"
	// TopLabel marks the attribute triple that designates the top node
	TopLabel = "TOP"
)

// Triple is (Label, Source, Target). Source is always a node name; Target is
// a concept, a constant or a node name depending on the kind of triple.
type Triple struct {
	Label  string `json:"label"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// TripleSet holds the three classified triple collections of one graph
type TripleSet struct {
	Instances  []Triple `json:"instances"`
	Attributes []Triple `json:"attributes"`
	Relations  []Triple `json:"relations"`
}

// Len returns the total number of triples
func (ts TripleSet) Len() int {
	return len(ts.Instances) + len(ts.Attributes) + len(ts.Relations)
}

// Validate checks the data-model invariants of the graph
func (g *Graph) Validate() error {
	n := len(g.Nodes)
	if len(g.Concepts) != n || len(g.Relations) != n || len(g.Attributes) != n {
		return &MalformedGraphError{Reason: fmt.Sprintf(
			"inconsistent node arrays: %d nodes, %d concepts, %d relation lists, %d attribute lists",
			n, len(g.Concepts), len(g.Relations), len(g.Attributes))}
	}

	seen := make(map[string]struct{}, n)
	for i, name := range g.Nodes {
		if _, dup := seen[name]; dup {
			return &MalformedGraphError{Node: name, Reason: "duplicate node name"}
		}
		seen[name] = struct{}{}
		if g.Concepts[i] == "" {
			return &MalformedGraphError{Node: name, Reason: "missing instance triple"}
		}
	}

	for i, name := range g.Nodes {
		for _, a := range g.Attributes[i] {
			if strings.EqualFold(a.Label, TopLabel) {
				return &MalformedGraphError{Node: name, Reason: fmt.Sprintf("attribute label %q is reserved for the top node", a.Label)}
			}
		}
		for _, r := range g.Relations[i] {
			if _, ok := seen[r.Target]; !ok {
				return &MalformedGraphError{Node: name, Reason: fmt.Sprintf("relation %q references unknown node %q", r.Label, r.Target)}
			}
		}
	}

	if n == 0 {
		if len(g.Tops) != 0 {
			return &MalformedGraphError{Reason: "top set on an empty graph"}
		}
		return nil
	}
	switch len(g.Tops) {
	case 0:
		return &MalformedGraphError{Reason: "missing top node"}
	case 1:
	default:
		return &MalformedGraphError{Node: g.Tops[1], Reason: fmt.Sprintf("duplicate top (already %q)", g.Tops[0])}
	}
	if _, ok := seen[g.Tops[0]]; !ok {
		return &MalformedGraphError{Node: g.Tops[0], Reason: "top references unknown node"}
	}
	return nil
}

// Triples extracts instance, attribute and relation triples in node order.
// The top node contributes the attribute triple (TOP, top, concept) after its
// ordinary attributes. An empty graph yields an empty TripleSet.
func (g *Graph) Triples() (TripleSet, error) {
	if err := g.Validate(); err != nil {
		return TripleSet{}, err
	}

	ts := TripleSet{
		Instances:  make([]Triple, 0, len(g.Nodes)),
		Attributes: make([]Triple, 0),
		Relations:  make([]Triple, 0),
	}
	top := ""
	if len(g.Tops) == 1 {
		top = g.Tops[0]
	}

	for i, name := range g.Nodes {
		ts.Instances = append(ts.Instances, Triple{Label: InstanceLabel, Source: name, Target: g.Concepts[i]})
		for _, r := range g.Relations[i] {
			ts.Relations = append(ts.Relations, Triple{Label: r.Label, Source: name, Target: r.Target})
		}
		for _, a := range g.Attributes[i] {
			ts.Attributes = append(ts.Attributes, Triple{Label: a.Label, Source: name, Target: a.Target})
		}
		if name == top {
			ts.Attributes = append(ts.Attributes, Triple{Label: TopLabel, Source: name, Target: g.Concepts[i]})
		}
	}
	return ts, nil
}
