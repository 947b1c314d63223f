package corpus

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gilchrisn/graph-matching-service/pkg/amr"
)

// maxRecordBytes bounds one JSON line
const maxRecordBytes = 64 << 20

// Record is the decoded-graph interchange format handed over by the
// serialization layer: one JSON object per line.
type Record struct {
	ID    string       `json:"id"`
	Nodes []RecordNode `json:"nodes"`
	Edges []RecordEdge `json:"edges"`
	Tops  []int        `json:"tops"`
}

// RecordNode is a node with its concept label and attribute pairs
type RecordNode struct {
	ID         int      `json:"id"`
	Label      string   `json:"label"`
	Properties []string `json:"properties,omitempty"`
	Values     []string `json:"values,omitempty"`
}

// RecordEdge is a labeled relation between two node ids
type RecordEdge struct {
	Source int    `json:"source"`
	Target int    `json:"target"`
	Label  string `json:"label"`
}

// Entry is one graph read from a stream. Err is set when the record decoded
// as JSON but does not form a valid graph; the pair it belongs to fails but
// the stream keeps going.
type Entry struct {
	Line  int
	ID    string
	Graph *amr.Graph
	Err   error
}

// Graph converts the record into an amr.Graph. Node names are the decimal
// node ids.
func (r *Record) Graph() (*amr.Graph, error) {
	g := amr.NewGraph()
	for _, n := range r.Nodes {
		g.AddNode(strconv.Itoa(n.ID), n.Label)
	}
	for _, n := range r.Nodes {
		if len(n.Properties) != len(n.Values) {
			return nil, &amr.MalformedGraphError{
				Node:   strconv.Itoa(n.ID),
				Reason: fmt.Sprintf("%d properties but %d values", len(n.Properties), len(n.Values)),
			}
		}
		for i, p := range n.Properties {
			if err := g.AddAttribute(strconv.Itoa(n.ID), p, n.Values[i]); err != nil {
				return nil, err
			}
		}
	}
	for _, e := range r.Edges {
		if err := g.AddRelation(strconv.Itoa(e.Source), e.Label, strconv.Itoa(e.Target)); err != nil {
			return nil, err
		}
	}
	for _, top := range r.Tops {
		g.AddTop(strconv.Itoa(top))
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Stream reads Entries one at a time. Blank lines and lines starting with
// '#' are skipped.
type Stream struct {
	scanner *bufio.Scanner
	line    int
}

// NewStream wraps r
func NewStream(r io.Reader) *Stream {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordBytes)
	return &Stream{scanner: scanner}
}

// Next returns the next entry, or io.EOF at the end of the stream. A line
// that is not valid JSON is a fatal error for the stream.
func (s *Stream) Next() (Entry, error) {
	for s.scanner.Scan() {
		s.line++
		text := strings.TrimSpace(s.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return Entry{}, fmt.Errorf("line %d: failed to parse graph JSON: %w", s.line, err)
		}
		entry := Entry{Line: s.line, ID: rec.ID}
		entry.Graph, entry.Err = rec.Graph()
		return entry, nil
	}
	if err := s.scanner.Err(); err != nil {
		return Entry{}, fmt.Errorf("line %d: %w", s.line, err)
	}
	return Entry{}, io.EOF
}

// ReadAll drains the stream
func (s *Stream) ReadAll() ([]Entry, error) {
	entries := make([]Entry, 0)
	for {
		entry, err := s.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
}

// ReadPairs reads test and gold in lockstep and fails with
// CorpusLengthMismatchError as soon as one side runs out first.
func ReadPairs(test, gold io.Reader) (testEntries, goldEntries []Entry, err error) {
	ts, gs := NewStream(test), NewStream(gold)
	for {
		t, terr := ts.Next()
		if terr != nil && !errors.Is(terr, io.EOF) {
			return nil, nil, fmt.Errorf("test: %w", terr)
		}
		g, gerr := gs.Next()
		if gerr != nil && !errors.Is(gerr, io.EOF) {
			return nil, nil, fmt.Errorf("gold: %w", gerr)
		}

		testDone, goldDone := errors.Is(terr, io.EOF), errors.Is(gerr, io.EOF)
		switch {
		case testDone && goldDone:
			return testEntries, goldEntries, nil
		case testDone:
			rest, err := gs.ReadAll()
			if err != nil {
				return nil, nil, fmt.Errorf("gold: %w", err)
			}
			return nil, nil, &CorpusLengthMismatchError{TestGraphs: len(testEntries), GoldGraphs: len(goldEntries) + 1 + len(rest)}
		case goldDone:
			rest, err := ts.ReadAll()
			if err != nil {
				return nil, nil, fmt.Errorf("test: %w", err)
			}
			return nil, nil, &CorpusLengthMismatchError{TestGraphs: len(testEntries) + 1 + len(rest), GoldGraphs: len(goldEntries)}
		}
		testEntries = append(testEntries, t)
		goldEntries = append(goldEntries, g)
	}
}

// ReadPairFiles opens both files and calls ReadPairs
func ReadPairFiles(testPath, goldPath string) ([]Entry, []Entry, error) {
	testFile, err := os.Open(testPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open test file: %w", err)
	}
	defer testFile.Close()

	goldFile, err := os.Open(goldPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open gold file: %w", err)
	}
	defer goldFile.Close()

	return ReadPairs(testFile, goldFile)
}

// ReadFile reads every entry of one file
func ReadFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()
	return NewStream(file).ReadAll()
}
