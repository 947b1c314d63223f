package corpus

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
)

// CandidateScore is the corpus score of one system output file
type CandidateScore struct {
	Path   string  `json:"path"`
	F1     float64 `json:"f1"`
	Report *Report `json:"-"`
	Err    error   `json:"-"` // set when no pair of the file could be scored
}

// FindCandidates lists the system outputs in dir, which are the files whose
// name ends in "_out".
func FindCandidates(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*_out"))
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates in %s: %w", dir, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// SelectBest scores every candidate against the gold file and returns the
// scores in candidate order together with the index of the best one. The
// best is the first candidate with the strictly highest F1; it is -1 when
// no candidate scores above zero. A candidate whose pairs all fail keeps
// F1 0 and its Err, and is never the best.
func SelectBest(ctx context.Context, evaluator *Evaluator, goldPath string, candidates []string) ([]CandidateScore, int, error) {
	scores := make([]CandidateScore, 0, len(candidates))
	best := -1
	bestF1 := 0.0
	for _, path := range candidates {
		test, gold, err := ReadPairFiles(path, goldPath)
		if err != nil {
			return nil, -1, fmt.Errorf("%s: %w", path, err)
		}
		report, err := evaluator.EvaluateEntries(ctx, test, gold)
		if errors.Is(err, ErrNoScoredPairs) {
			scores = append(scores, CandidateScore{Path: path, Err: err})
			continue
		}
		if err != nil {
			return nil, -1, fmt.Errorf("%s: %w", path, err)
		}
		scores = append(scores, CandidateScore{Path: path, F1: report.F1, Report: report})
		if report.F1 > bestF1 {
			bestF1 = report.F1
			best = len(scores) - 1
		}
	}
	return scores, best, nil
}
