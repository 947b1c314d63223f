package corpus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gilchrisn/graph-matching-service/pkg/amr"
	"github.com/gilchrisn/graph-matching-service/pkg/smatch"
	"github.com/gilchrisn/graph-matching-service/pkg/utils"
)

// PairResult is the score of one test/gold pair
type PairResult struct {
	Index       int     `json:"index"`
	ID          string  `json:"id,omitempty"`
	Match       int     `json:"match"`
	TestTriples int     `json:"test_triples"`
	GoldTriples int     `json:"gold_triples"`
	Precision   float64 `json:"precision"`
	Recall      float64 `json:"recall"`
	F1          float64 `json:"f1"`
	Runs        int     `json:"runs"`
	TimedOut    bool    `json:"timed_out"`
	Err         error   `json:"-"`
}

// Totals are the corpus-level counts summed over scored pairs
type Totals struct {
	Match       int `json:"match"`
	TestTriples int `json:"test_triples"`
	GoldTriples int `json:"gold_triples"`
}

// Report is the result of evaluating a corpus
type Report struct {
	RunID     string       `json:"run_id"`
	PerPair   bool         `json:"per_pair"`
	Pairs     []PairResult `json:"pairs"`
	Totals    Totals       `json:"totals"`
	Precision float64      `json:"precision"`
	Recall    float64      `json:"recall"`
	F1        float64      `json:"f1"`
	Scored    int          `json:"scored"`
	Failed    int          `json:"failed"`
	Summary   Summary      `json:"summary"`
	RuntimeMS int64        `json:"runtime_ms"`
}

// Evaluator scores corpora of graph pairs
type Evaluator struct {
	config  *smatch.Config
	matcher *smatch.Matcher
	cache   ScoreCache
	logger  zerolog.Logger

	// search settings as the matcher saw them, for cache keys
	searchKey              string
	testPrefix, goldPrefix string
}

// NewEvaluator builds an evaluator from config. tracker may be nil.
func NewEvaluator(config *smatch.Config, tracker *utils.MoveTracker) *Evaluator {
	logger := config.CreateLogger()
	searchKey := fmt.Sprintf("runs=%d seed=%d swaps=%t",
		config.IterationNum(), config.RandomSeed(), config.SwapMoves())
	return &Evaluator{
		config:     config,
		matcher:    smatch.NewMatcher(config, logger, tracker),
		logger:     logger,
		searchKey:  searchKey,
		testPrefix: config.TestPrefix(),
		goldPrefix: config.GoldPrefix(),
	}
}

// Evaluate scores test[i] against gold[i] for every i. A nil graph counts as
// malformed.
func (e *Evaluator) Evaluate(ctx context.Context, test, gold []*amr.Graph) (*Report, error) {
	if len(test) != len(gold) {
		return nil, &CorpusLengthMismatchError{TestGraphs: len(test), GoldGraphs: len(gold)}
	}
	testEntries := make([]Entry, len(test))
	goldEntries := make([]Entry, len(gold))
	for i := range test {
		testEntries[i] = Entry{Line: i + 1, Graph: test[i]}
		goldEntries[i] = Entry{Line: i + 1, Graph: gold[i]}
	}
	return e.EvaluateEntries(ctx, testEntries, goldEntries)
}

// EvaluateEntries is Evaluate over reader output; decode failures become
// pair failures. A non-empty corpus where every pair failed returns
// ErrNoScoredPairs.
func (e *Evaluator) EvaluateEntries(ctx context.Context, test, gold []Entry) (*Report, error) {
	if len(test) != len(gold) {
		return nil, &CorpusLengthMismatchError{TestGraphs: len(test), GoldGraphs: len(gold)}
	}

	startTime := time.Now()
	report := &Report{
		RunID:   uuid.New().String(),
		PerPair: e.config.PerPair(),
		Pairs:   make([]PairResult, len(test)),
	}
	logger := e.logger.With().Str("run_id", report.RunID).Logger()

	logger.Info().
		Int("pairs", len(test)).
		Int("restarts", e.config.IterationNum()-1).
		Bool("per_pair", report.PerPair).
		Bool("parallel", e.config.Parallel()).
		Msg("Starting evaluation")

	if err := e.scoreAll(ctx, logger, test, gold, report.Pairs); err != nil {
		return nil, err
	}

	// sum in pair order so the totals never depend on scheduling
	f1s := make([]float64, 0, len(report.Pairs))
	for _, pr := range report.Pairs {
		if pr.Err != nil {
			report.Failed++
			continue
		}
		report.Scored++
		report.Totals.Match += pr.Match
		report.Totals.TestTriples += pr.TestTriples
		report.Totals.GoldTriples += pr.GoldTriples
		f1s = append(f1s, pr.F1)
	}
	if report.Scored == 0 && report.Failed > 0 {
		logger.Error().Int("failed", report.Failed).Msg("Evaluation failed")
		return nil, fmt.Errorf("all %d pairs failed: %w", report.Failed, ErrNoScoredPairs)
	}

	p, r, f1, err := smatch.ComputeF(report.Totals.Match, report.Totals.TestTriples, report.Totals.GoldTriples)
	if err != nil {
		return nil, err
	}
	report.Precision, report.Recall, report.F1 = p, r, f1
	report.Summary = Summarize(f1s)
	report.RuntimeMS = time.Since(startTime).Milliseconds()

	logger.Debug().
		Int("match", report.Totals.Match).
		Int("test_triples", report.Totals.TestTriples).
		Int("gold_triples", report.Totals.GoldTriples).
		Msg("Total match number, total triple number in test and gold")
	logger.Info().
		Int("scored", report.Scored).
		Int("failed", report.Failed).
		Float64("f1", report.F1).
		Int64("runtime_ms", report.RuntimeMS).
		Msg("Evaluation completed")

	return report, nil
}

func (e *Evaluator) scoreAll(ctx context.Context, logger zerolog.Logger, test, gold []Entry, out []PairResult) error {
	if !e.config.Parallel() {
		for i := range test {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.scorePair(ctx, logger, i, test[i], gold[i], &out[i]); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.NumWorkers())
	for i := range test {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return e.scorePair(gctx, logger, i, test[i], gold[i], &out[i])
		})
	}
	return g.Wait()
}

// scorePair fills out for pair i. It returns an error only when the whole
// run must stop: an internal consistency fault, or a malformed pair in
// strict mode.
func (e *Evaluator) scorePair(ctx context.Context, logger zerolog.Logger, i int, test, gold Entry, out *PairResult) error {
	out.Index = i
	out.ID = firstNonEmpty(test.ID, gold.ID)

	fail := func(err error) error {
		out.Err = &PairError{Index: i, ID: out.ID, Err: err}
		smatch.SmatchPairsTotal.WithLabelValues("malformed").Inc()
		logger.Warn().Err(out.Err).Int("pair", i+1).Msg("Skipping pair")
		if e.config.Strict() {
			return out.Err
		}
		return nil
	}

	switch {
	case test.Err != nil:
		return fail(fmt.Errorf("test graph (line %d): %w", test.Line, test.Err))
	case gold.Err != nil:
		return fail(fmt.Errorf("gold graph (line %d): %w", gold.Line, gold.Err))
	case test.Graph == nil:
		return fail(&amr.MalformedGraphError{Reason: "test graph missing"})
	case gold.Graph == nil:
		return fail(&amr.MalformedGraphError{Reason: "gold graph missing"})
	}

	var key string
	if e.cache != nil {
		if k, err := e.pairKey(i, test.Graph, gold.Graph); err == nil {
			key = k
			cached, ok, err := e.cache.Get(ctx, key)
			if err != nil {
				logger.Warn().Err(err).Int("pair", i+1).Msg("Score cache lookup failed")
			} else if ok {
				if err := fillScore(out, cached.Match, cached.TestTriples, cached.GoldTriples); err != nil {
					return &PairError{Index: i, ID: out.ID, Err: err}
				}
				out.Runs = cached.Runs
				smatch.SmatchPairsTotal.WithLabelValues("cached").Inc()
				return nil
			}
		}
	}

	result, err := e.matcher.Compare(ctx, i, test.Graph, gold.Graph)
	if err != nil {
		var malformed *amr.MalformedGraphError
		if errors.As(err, &malformed) {
			return fail(err)
		}
		return &PairError{Index: i, ID: out.ID, Err: err}
	}

	if err := fillScore(out, result.MatchCount, result.TestTriples, result.GoldTriples); err != nil {
		return &PairError{Index: i, ID: out.ID, Err: err}
	}
	out.Runs = result.Runs
	out.TimedOut = result.TimedOut

	if key != "" && !result.TimedOut {
		score := CachedScore{Match: result.MatchCount, TestTriples: result.TestTriples, GoldTriples: result.GoldTriples, Runs: result.Runs}
		if err := e.cache.Put(ctx, key, score); err != nil {
			logger.Warn().Err(err).Int("pair", i+1).Msg("Score cache store failed")
		}
	}

	status := "ok"
	if result.TimedOut {
		status = "timeout"
	}
	smatch.SmatchPairsTotal.WithLabelValues(status).Inc()

	if logger.GetLevel() <= zerolog.DebugLevel {
		logger.Debug().
			Int("pair", i+1).
			Interface("test_stats", test.Graph.Stats()).
			Interface("gold_stats", gold.Graph.Stats()).
			Int("test_instances", len(result.Test.Instances)).
			Int("test_attributes", len(result.Test.Attributes)).
			Int("test_relations", len(result.Test.Relations)).
			Int("gold_instances", len(result.Gold.Instances)).
			Int("gold_attributes", len(result.Gold.Attributes)).
			Int("gold_relations", len(result.Gold.Relations)).
			Int("best_match", result.MatchCount).
			Ints("best_mapping", result.Mapping).
			Str("alignment", smatch.Alignment(result)).
			Msg("Pair scored")
	}
	if e.config.EnableProgress() {
		if every := e.config.ProgressEvery(); every > 0 && (i+1)%every == 0 {
			logger.Info().Int("pair", i+1).Msg("Evaluation progress")
		}
	}
	return nil
}

func fillScore(out *PairResult, match, testTriples, goldTriples int) error {
	p, r, f1, err := smatch.ComputeF(match, testTriples, goldTriples)
	if err != nil {
		return err
	}
	out.Match = match
	out.TestTriples = testTriples
	out.GoldTriples = goldTriples
	out.Precision, out.Recall, out.F1 = p, r, f1
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
