package corpus

import (
	"errors"
	"fmt"
)

// ErrNoScoredPairs means every pair of a non-empty corpus failed, so there
// is no score to report.
var ErrNoScoredPairs = errors.New("no pair could be scored")

// CorpusLengthMismatchError means the test and gold streams hold a different
// number of graphs. Scoring a truncated corpus would be silently wrong, so
// the whole run is aborted.
type CorpusLengthMismatchError struct {
	TestGraphs int
	GoldGraphs int
}

func (e *CorpusLengthMismatchError) Error() string {
	if e.TestGraphs < e.GoldGraphs {
		return fmt.Sprintf("corpus length mismatch: test file has fewer graphs than gold file (%d vs %d)",
			e.TestGraphs, e.GoldGraphs)
	}
	return fmt.Sprintf("corpus length mismatch: gold file has fewer graphs than test file (%d vs %d)",
		e.GoldGraphs, e.TestGraphs)
}

// PairError ties a failure to the pair it happened on
type PairError struct {
	Index int    // zero-based pair position
	ID    string // record id when the reader had one
	Err   error
}

func (e *PairError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("pair %d (%s): %v", e.Index+1, e.ID, e.Err)
	}
	return fmt.Sprintf("pair %d: %v", e.Index+1, e.Err)
}

func (e *PairError) Unwrap() error {
	return e.Err
}
