package amr

import "fmt"

// MalformedGraphError reports a graph that breaks the data model: a node
// without a concept, a duplicated node name, an edge to an unknown node, or a
// missing or repeated top.
type MalformedGraphError struct {
	Node   string
	Reason string
}

func (e *MalformedGraphError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("malformed graph: %s", e.Reason)
	}
	return fmt.Sprintf("malformed graph: node %q: %s", e.Node, e.Reason)
}
