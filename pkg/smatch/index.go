package smatch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gilchrisn/graph-matching-service/pkg/amr"
)

// unmapped marks an A node with no counterpart in B
const unmapped = -1

// link is a relation match that needs a second node pair: it is satisfied
// when mapping[node] == target. node is never the owner of the link.
type link struct {
	node   int
	target int
	weight int
}

// pairWeight holds what mapping A node i to B node j is worth
type pairWeight struct {
	self  int    // instance, attribute and self-loop relation matches
	links []link // relation matches that also need another pair
}

// matchIndex is the precomputed search space for one graph pair
type matchIndex struct {
	n1, n2     int
	candidates [][]int               // candidates[i] = sorted B nodes worth mapping i to
	weights    []map[int]*pairWeight // weights[i][j]
	upperBound int                   // min(|A triples|, |B triples|)
}

type attrKey struct {
	label, value string
	node         int
}

type relKey struct {
	label    string
	src, dst int
}

// nodeIndex maps node names to positions in instance order
func nodeIndex(ts amr.TripleSet) (map[string]int, error) {
	index := make(map[string]int, len(ts.Instances))
	for i, t := range ts.Instances {
		if _, dup := index[t.Source]; dup {
			return nil, &amr.MalformedGraphError{Node: t.Source, Reason: "more than one instance triple"}
		}
		index[t.Source] = i
	}
	return index, nil
}

func countAttributes(ts amr.TripleSet, index map[string]int) (map[attrKey]int, []attrKey, error) {
	counts := make(map[attrKey]int)
	order := make([]attrKey, 0, len(ts.Attributes))
	for _, t := range ts.Attributes {
		i, ok := index[t.Source]
		if !ok {
			return nil, nil, &amr.MalformedGraphError{Node: t.Source, Reason: fmt.Sprintf("attribute %q on node without instance triple", t.Label)}
		}
		key := attrKey{label: strings.ToLower(t.Label), value: strings.ToLower(t.Target), node: i}
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++
	}
	return counts, order, nil
}

func countRelations(ts amr.TripleSet, index map[string]int) (map[relKey]int, []relKey, error) {
	counts := make(map[relKey]int)
	order := make([]relKey, 0, len(ts.Relations))
	for _, t := range ts.Relations {
		src, ok := index[t.Source]
		if !ok {
			return nil, nil, &amr.MalformedGraphError{Node: t.Source, Reason: fmt.Sprintf("relation %q from node without instance triple", t.Label)}
		}
		dst, ok := index[t.Target]
		if !ok {
			return nil, nil, &amr.MalformedGraphError{Node: t.Target, Reason: fmt.Sprintf("relation %q to node without instance triple", t.Label)}
		}
		key := relKey{label: strings.ToLower(t.Label), src: src, dst: dst}
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++
	}
	return counts, order, nil
}

// buildIndex computes candidate sets and weight tables for A -> B.
// Distinct triples are weighted min(countA, countB), so a mapping can never
// match more triples than either side has.
func buildIndex(a, b amr.TripleSet) (*matchIndex, error) {
	indexA, err := nodeIndex(a)
	if err != nil {
		return nil, err
	}
	indexB, err := nodeIndex(b)
	if err != nil {
		return nil, err
	}

	ix := &matchIndex{
		n1:         len(a.Instances),
		n2:         len(b.Instances),
		candidates: make([][]int, len(a.Instances)),
		weights:    make([]map[int]*pairWeight, len(a.Instances)),
		upperBound: min(a.Len(), b.Len()),
	}
	for i := range ix.weights {
		ix.weights[i] = make(map[int]*pairWeight)
	}

	// Instance triples
	conceptsB := make(map[string][]int)
	for j, t := range b.Instances {
		c := strings.ToLower(t.Target)
		conceptsB[c] = append(conceptsB[c], j)
	}
	for i, t := range a.Instances {
		for _, j := range conceptsB[strings.ToLower(t.Target)] {
			ix.entry(i, j).self++
		}
	}

	// Attribute triples
	attrsA, orderA, err := countAttributes(a, indexA)
	if err != nil {
		return nil, err
	}
	attrsB, orderB, err := countAttributes(b, indexB)
	if err != nil {
		return nil, err
	}
	byLabelValue := make(map[[2]string][]attrKey)
	for _, key := range orderB {
		lv := [2]string{key.label, key.value}
		byLabelValue[lv] = append(byLabelValue[lv], key)
	}
	for _, ka := range orderA {
		for _, kb := range byLabelValue[[2]string{ka.label, ka.value}] {
			ix.entry(ka.node, kb.node).self += min(attrsA[ka], attrsB[kb])
		}
	}

	// Relation triples
	relsA, relOrderA, err := countRelations(a, indexA)
	if err != nil {
		return nil, err
	}
	relsB, relOrderB, err := countRelations(b, indexB)
	if err != nil {
		return nil, err
	}
	byLabel := make(map[string][]relKey)
	for _, key := range relOrderB {
		byLabel[key.label] = append(byLabel[key.label], key)
	}
	for _, ka := range relOrderA {
		loopA := ka.src == ka.dst
		for _, kb := range byLabel[ka.label] {
			loopB := kb.src == kb.dst
			w := min(relsA[ka], relsB[kb])
			switch {
			case loopA && loopB:
				ix.entry(ka.src, kb.src).self += w
			case loopA != loopB:
				// would need two A nodes on one B node, or one A node on two
				continue
			default:
				src := ix.entry(ka.src, kb.src)
				src.links = append(src.links, link{node: ka.dst, target: kb.dst, weight: w})
				dst := ix.entry(ka.dst, kb.dst)
				dst.links = append(dst.links, link{node: ka.src, target: kb.src, weight: w})
			}
		}
	}

	for i, row := range ix.weights {
		cands := make([]int, 0, len(row))
		for j := range row {
			cands = append(cands, j)
		}
		sort.Ints(cands)
		ix.candidates[i] = cands
	}
	return ix, nil
}

func (ix *matchIndex) entry(i, j int) *pairWeight {
	pw, ok := ix.weights[i][j]
	if !ok {
		pw = &pairWeight{}
		ix.weights[i][j] = pw
	}
	return pw
}

// contribution is what A node i scores when mapped to j, given the rest of
// the mapping. Every relation link is counted from both of its endpoints.
func (ix *matchIndex) contribution(mapping []int, i, j int) int {
	if j == unmapped {
		return 0
	}
	pw := ix.weights[i][j]
	if pw == nil {
		return 0
	}
	c := pw.self
	for _, l := range pw.links {
		if mapping[l.node] == l.target {
			c += l.weight
		}
	}
	return c
}

// gain is the change in match count if A node i moves to j
func (ix *matchIndex) gain(mapping []int, i, j int) int {
	return ix.contribution(mapping, i, j) - ix.contribution(mapping, i, mapping[i])
}

// swapGain is the change in match count if A nodes i and k exchange targets.
// It applies the two single-node moves in sequence and restores mapping.
func (ix *matchIndex) swapGain(mapping []int, i, k int) int {
	a, b := mapping[i], mapping[k]
	first := ix.gain(mapping, i, b)
	mapping[i] = b
	second := ix.gain(mapping, k, a)
	mapping[i] = a
	return first + second
}

// score computes the match count of a full mapping from scratch
func (ix *matchIndex) score(mapping []int) int {
	self, links := 0, 0
	for i, j := range mapping {
		if j == unmapped {
			continue
		}
		pw := ix.weights[i][j]
		if pw == nil {
			continue
		}
		self += pw.self
		for _, l := range pw.links {
			if mapping[l.node] == l.target {
				links += l.weight
			}
		}
	}
	return self + links/2
}
