package smatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gilchrisn/graph-matching-service/pkg/amr"
	"github.com/gilchrisn/graph-matching-service/pkg/utils"
)

// Result is the outcome of a correspondence search for one graph pair.
//
// The search is a heuristic: MatchCount is the best count found by
// randomized hill climbing and may be below the true maximum. It never
// exceeds min(TestTriples, GoldTriples).
type Result struct {
	Mapping     []int `json:"mapping"` // test node -> gold node, -1 when unmapped
	MatchCount  int   `json:"match_count"`
	TestTriples int   `json:"test_triples"`
	GoldTriples int   `json:"gold_triples"`
	Candidates  int   `json:"candidates"` // candidate node pairs after pruning
	Runs        int   `json:"runs"`       // hill-climbing runs completed or interrupted
	BestRun     int   `json:"best_run"`
	Moves       int   `json:"moves"`
	Exhaustive  bool  `json:"exhaustive"`
	TimedOut    bool  `json:"timed_out"`
	RuntimeMS   int64 `json:"runtime_ms"`

	Test amr.TripleSet `json:"-"`
	Gold amr.TripleSet `json:"-"`
}

// Matcher runs the correspondence search with a fixed configuration.
// It is safe for concurrent use.
type Matcher struct {
	restarts int
	seed     int64
	swaps    bool
	parallel bool
	workers  int
	timeout  time.Duration
	prefixA  string
	prefixB  string
	logger   zerolog.Logger
	tracker  *utils.MoveTracker
}

// NewMatcher snapshots config; later config changes do not affect it.
// tracker may be nil.
func NewMatcher(config *Config, logger zerolog.Logger, tracker *utils.MoveTracker) *Matcher {
	return &Matcher{
		restarts: config.IterationNum() - 1,
		seed:     config.RandomSeed(),
		swaps:    config.SwapMoves(),
		parallel: config.ParallelRestarts(),
		workers:  config.NumWorkers(),
		timeout:  config.PairTimeout(),
		prefixA:  config.TestPrefix(),
		prefixB:  config.GoldPrefix(),
		logger:   logger,
		tracker:  tracker,
	}
}

// BestMatch searches for the best correspondence between a and b using a
// one-off Matcher.
func BestMatch(ctx context.Context, a, b amr.TripleSet, config *Config) (*Result, error) {
	return NewMatcher(config, config.CreateLogger(), nil).BestMatch(ctx, 0, a, b)
}

// Compare renames both graphs into disjoint namespaces, extracts their
// triples and searches for the best correspondence.
func Compare(ctx context.Context, test, gold *amr.Graph, config *Config) (*Result, error) {
	return NewMatcher(config, config.CreateLogger(), nil).Compare(ctx, 0, test, gold)
}

// Compare validates and renames test and gold, then runs BestMatch. pair
// identifies the pair in logs, move traces and seeds.
func (m *Matcher) Compare(ctx context.Context, pair int, test, gold *amr.Graph) (*Result, error) {
	if err := test.Validate(); err != nil {
		return nil, fmt.Errorf("test graph: %w", err)
	}
	if err := gold.Validate(); err != nil {
		return nil, fmt.Errorf("gold graph: %w", err)
	}

	a, err := test.Rename(m.prefixA).Triples()
	if err != nil {
		return nil, fmt.Errorf("test graph: %w", err)
	}
	b, err := gold.Rename(m.prefixB).Triples()
	if err != nil {
		return nil, fmt.Errorf("gold graph: %w", err)
	}
	return m.BestMatch(ctx, pair, a, b)
}

// outcome is the end state of one hill-climbing run
type outcome struct {
	restart   int
	mapping   []int
	match     int
	moves     int
	completed bool
}

// seedFor derives an independent seed per pair and restart so that restart
// r of a pair is the same run whatever the total number of restarts.
func (m *Matcher) seedFor(pair, restart int) int64 {
	return m.seed + int64(pair)<<20 + int64(restart)
}

// BestMatch finds a high-scoring mapping from the nodes of a to the nodes of
// b. It only fails when a triple refers to a node without an instance triple.
func (m *Matcher) BestMatch(ctx context.Context, pair int, a, b amr.TripleSet) (*Result, error) {
	startTime := time.Now()

	ix, err := buildIndex(a, b)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Mapping:     make([]int, ix.n1),
		TestTriples: a.Len(),
		GoldTriples: b.Len(),
		Test:        a,
		Gold:        b,
	}
	for i := range result.Mapping {
		result.Mapping[i] = unmapped
	}
	for _, cands := range ix.candidates {
		result.Candidates += len(cands)
	}

	defer func() {
		result.RuntimeMS = time.Since(startTime).Milliseconds()
		SmatchSearchSeconds.Observe(time.Since(startTime).Seconds())
		SmatchMovesTotal.Add(float64(result.Moves))
		if result.TimedOut {
			SmatchTimeoutsTotal.Inc()
		}
	}()

	if ix.n1 == 0 || ix.n2 == 0 {
		m.logger.Debug().Int("pair", pair).Int("test_nodes", ix.n1).Int("gold_nodes", ix.n2).
			Msg("Empty node set, nothing to match")
		return result, nil
	}

	if ix.n1 <= 1 || ix.n2 <= 1 {
		m.exhaustive(ix, result)
		m.logger.Debug().Int("pair", pair).Int("match", result.MatchCount).
			Msg("Trivial pair solved exhaustively")
		return result, nil
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	var best *outcome
	if m.parallel {
		best = m.searchParallel(ctx, pair, ix, result)
	} else {
		best = m.searchSequential(ctx, pair, ix, result)
	}

	copy(result.Mapping, best.mapping)
	result.MatchCount = best.match
	result.BestRun = best.restart

	if result.TimedOut {
		m.logger.Warn().Int("pair", pair).Int("runs", result.Runs).Int("match", result.MatchCount).
			Dur("budget", m.timeout).Msg("Search time budget exceeded, keeping best mapping so far")
	}
	m.logger.Debug().
		Int("pair", pair).
		Int("test_nodes", ix.n1).
		Int("gold_nodes", ix.n2).
		Int("candidates", result.Candidates).
		Int("runs", result.Runs).
		Int("best_run", result.BestRun).
		Int("match", result.MatchCount).
		Int("upper_bound", ix.upperBound).
		Msg("Correspondence search completed")

	return result, nil
}

// exhaustive solves pairs where one side has a single node. Only one node
// pair can be mapped, so relations between two mapped nodes cannot match and
// the best single assignment is optimal.
func (m *Matcher) exhaustive(ix *matchIndex, result *Result) {
	result.Exhaustive = true
	bestI, bestJ, bestMatch := unmapped, unmapped, 0
	for i := 0; i < ix.n1; i++ {
		for _, j := range ix.candidates[i] {
			if s := ix.weights[i][j].self; s > bestMatch {
				bestI, bestJ, bestMatch = i, j, s
			}
		}
	}
	if bestI != unmapped {
		result.Mapping[bestI] = bestJ
	}
	result.MatchCount = bestMatch
}

// runRestart builds a starting mapping and climbs to a local optimum
func (m *Matcher) runRestart(ctx context.Context, pair, restart int, ix *matchIndex) *outcome {
	strategy := strategyFor(restart)
	c := newClimber(ix, m.seedFor(pair, restart), restart, pair, m.swaps, m.tracker)
	c.initialize(strategy)
	initial := c.match
	completed := c.climb(ctx)

	SmatchRestartsTotal.WithLabelValues(strategy.String()).Inc()
	m.logger.Trace().
		Int("pair", pair).
		Int("restart", restart).
		Str("strategy", strategy.String()).
		Int("initial_match", initial).
		Int("match", c.match).
		Int("moves", c.moves).
		Bool("completed", completed).
		Msg("Restart finished")

	return &outcome{
		restart:   restart,
		mapping:   c.mapping,
		match:     c.match,
		moves:     c.moves,
		completed: completed,
	}
}

func (m *Matcher) searchSequential(ctx context.Context, pair int, ix *matchIndex, result *Result) *outcome {
	var best *outcome
	for r := 0; r <= m.restarts; r++ {
		// the first run always produces a mapping, even past the deadline
		if r > 0 && ctx.Err() != nil {
			result.TimedOut = true
			break
		}
		out := m.runRestart(ctx, pair, r, ix)
		result.Runs++
		result.Moves += out.moves
		if best == nil || out.match > best.match {
			best = out
		}
		if !out.completed {
			result.TimedOut = true
			break
		}
		if best.match >= ix.upperBound {
			break
		}
	}
	return best
}

// searchParallel runs all restarts on a bounded worker pool. The winner is
// the highest count with ties going to the lowest restart index, so the
// result does not depend on scheduling.
func (m *Matcher) searchParallel(ctx context.Context, pair int, ix *matchIndex, result *Result) *outcome {
	outs := make([]*outcome, m.restarts+1)

	var g errgroup.Group
	g.SetLimit(m.workers)
	for r := range outs {
		r := r
		g.Go(func() error {
			if r > 0 && ctx.Err() != nil {
				return nil
			}
			outs[r] = m.runRestart(ctx, pair, r, ix)
			return nil
		})
	}
	_ = g.Wait()

	var best *outcome
	for _, out := range outs {
		if out == nil {
			result.TimedOut = true
			continue
		}
		result.Runs++
		result.Moves += out.moves
		if !out.completed {
			result.TimedOut = true
		}
		if best == nil || out.match > best.match {
			best = out
		}
	}
	return best
}

// Alignment renders a mapping as "a0(dog)-b0(dog) a1(run-01)-Null"
func Alignment(result *Result) string {
	parts := make([]string, 0, len(result.Mapping))
	for i, j := range result.Mapping {
		if i >= len(result.Test.Instances) {
			break
		}
		src := result.Test.Instances[i]
		if j == unmapped || j >= len(result.Gold.Instances) {
			parts = append(parts, fmt.Sprintf("%s(%s)-Null", src.Source, src.Target))
			continue
		}
		dst := result.Gold.Instances[j]
		parts = append(parts, fmt.Sprintf("%s(%s)-%s(%s)", src.Source, src.Target, dst.Source, dst.Target))
	}
	return strings.Join(parts, " ")
}
