package corpus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/graph-matching-service/pkg/amr"
	"github.com/gilchrisn/graph-matching-service/pkg/smatch"
)

func testConfig() *smatch.Config {
	config := smatch.NewConfig()
	config.Set("logging.level", "disabled")
	config.Set("search.random_seed", int64(7))
	return config
}

// runGraph builds (r / verb :ARG0 (d / dog)), which has 4 triples
func runGraph(verb string) *amr.Graph {
	g := amr.NewGraph()
	g.AddNode("r", verb)
	g.AddNode("d", "dog")
	g.AddRelation("r", "ARG0", "d")
	g.AddTop("r")
	return g
}

func recordLine(id, verb string) string {
	return fmt.Sprintf(`{"id":%q,"nodes":[{"id":0,"label":%q},{"id":1,"label":"dog"}],"edges":[{"source":0,"target":1,"label":"ARG0"}],"tops":[0]}`, id, verb)
}

func TestEvaluateCorpus(t *testing.T) {
	evaluator := NewEvaluator(testConfig(), nil)

	test := []*amr.Graph{runGraph("run-01"), runGraph("walk-01")}
	gold := []*amr.Graph{runGraph("run-01"), runGraph("run-01")}

	report, err := evaluator.Evaluate(context.Background(), test, gold)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Scored)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, Totals{Match: 6, TestTriples: 8, GoldTriples: 8}, report.Totals)
	assert.Equal(t, "0.750", fmt.Sprintf("%.3f", report.F1))

	require.Len(t, report.Pairs, 2)
	assert.Equal(t, 4, report.Pairs[0].Match)
	assert.InDelta(t, 1.0, report.Pairs[0].F1, 1e-9)
	// dog plus ARG0; the TOP attribute carries the differing concept
	assert.Equal(t, 2, report.Pairs[1].Match)
	assert.InDelta(t, 0.5, report.Pairs[1].F1, 1e-9)

	assert.Equal(t, 2, report.Summary.Count)
	assert.InDelta(t, 0.75, report.Summary.MeanF1, 1e-9)
	assert.InDelta(t, 0.5, report.Summary.MinF1, 1e-9)
	assert.InDelta(t, 1.0, report.Summary.MaxF1, 1e-9)
}

func TestEvaluateEmptyCorpus(t *testing.T) {
	report, err := NewEvaluator(testConfig(), nil).Evaluate(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Scored)
	assert.InDelta(t, 1.0, report.F1, 1e-9)
}

func TestEvaluateLengthMismatch(t *testing.T) {
	evaluator := NewEvaluator(testConfig(), nil)

	_, err := evaluator.Evaluate(context.Background(),
		[]*amr.Graph{runGraph("run-01"), runGraph("run-01")},
		[]*amr.Graph{runGraph("run-01")})

	var mismatch *CorpusLengthMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 2, mismatch.TestGraphs)
	assert.Equal(t, 1, mismatch.GoldGraphs)
	assert.Contains(t, err.Error(), "gold file has fewer graphs")
}

func TestMalformedPairIsSkipped(t *testing.T) {
	broken := amr.NewGraph()
	broken.AddNode("x", "")
	broken.AddTop("x")

	report, err := NewEvaluator(testConfig(), nil).Evaluate(context.Background(),
		[]*amr.Graph{runGraph("run-01"), broken, nil},
		[]*amr.Graph{runGraph("run-01"), runGraph("run-01"), runGraph("run-01")})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Scored)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, Totals{Match: 4, TestTriples: 4, GoldTriples: 4}, report.Totals)

	var pairErr *PairError
	require.True(t, errors.As(report.Pairs[1].Err, &pairErr))
	assert.Equal(t, 1, pairErr.Index)
	var malformed *amr.MalformedGraphError
	assert.True(t, errors.As(report.Pairs[1].Err, &malformed))
	assert.Error(t, report.Pairs[2].Err)
}

func TestAllPairsMalformed(t *testing.T) {
	broken := amr.NewGraph()
	broken.AddNode("r", "run-01")

	report, err := NewEvaluator(testConfig(), nil).Evaluate(context.Background(),
		[]*amr.Graph{broken, nil},
		[]*amr.Graph{runGraph("run-01"), runGraph("run-01")})
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, ErrNoScoredPairs))
	assert.Contains(t, err.Error(), "all 2 pairs failed")
}

func TestStrictModeAbortsOnMalformedPair(t *testing.T) {
	config := testConfig()
	config.Set("corpus.strict", true)
	config.Set("performance.parallel", false)

	_, err := NewEvaluator(config, nil).Evaluate(context.Background(),
		[]*amr.Graph{runGraph("run-01"), nil},
		[]*amr.Graph{runGraph("run-01"), runGraph("run-01")})

	var pairErr *PairError
	require.True(t, errors.As(err, &pairErr))
	assert.Equal(t, 1, pairErr.Index)
	assert.True(t, strings.HasPrefix(err.Error(), "pair 2"))
}

func TestParallelEvaluationMatchesSequential(t *testing.T) {
	verbs := []string{"run-01", "walk-01", "see-01", "run-01", "go-01", "run-01"}
	var test, gold []*amr.Graph
	for i, verb := range verbs {
		test = append(test, runGraph(verb))
		gold = append(gold, runGraph(verbs[(i+1)%len(verbs)]))
	}

	sequential := testConfig()
	sequential.Set("performance.parallel", false)
	parallel := testConfig()
	parallel.Set("performance.parallel", true)
	parallel.Set("performance.num_workers", 4)

	want, err := NewEvaluator(sequential, nil).Evaluate(context.Background(), test, gold)
	require.NoError(t, err)
	got, err := NewEvaluator(parallel, nil).Evaluate(context.Background(), test, gold)
	require.NoError(t, err)

	assert.Equal(t, want.Totals, got.Totals)
	assert.Equal(t, want.F1, got.F1)
	for i := range want.Pairs {
		assert.Equal(t, want.Pairs[i].Match, got.Pairs[i].Match, "pair %d", i)
		assert.Equal(t, i, got.Pairs[i].Index)
	}
}

func TestEvaluateEntriesFromReader(t *testing.T) {
	testInput := strings.Join([]string{
		"# system output",
		recordLine("s1", "run-01"),
		"",
		`{"id":"s2","nodes":[{"id":0,"label":"run-01"}],"edges":[{"source":0,"target":5,"label":"ARG0"}],"tops":[0]}`,
	}, "\n")
	goldInput := strings.Join([]string{recordLine("s1", "run-01"), recordLine("s2", "run-01")}, "\n")

	test, gold, err := ReadPairs(strings.NewReader(testInput), strings.NewReader(goldInput))
	require.NoError(t, err)
	require.Len(t, test, 2)
	assert.Equal(t, 2, test[0].Line)
	assert.Equal(t, "s2", test[1].ID)
	assert.Error(t, test[1].Err)

	report, err := NewEvaluator(testConfig(), nil).EvaluateEntries(context.Background(), test, gold)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scored)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Pairs[1].Err.Error(), "(s2)")
	assert.InDelta(t, 1.0, report.F1, 1e-9)
}

func TestRecordGraph(t *testing.T) {
	rec := Record{
		Nodes: []RecordNode{
			{ID: 0, Label: "run-01", Properties: []string{"polarity"}, Values: []string{"-"}},
			{ID: 1, Label: "dog"},
		},
		Edges: []RecordEdge{{Source: 0, Target: 1, Label: "ARG0"}},
		Tops:  []int{0},
	}
	g, err := rec.Graph()
	require.NoError(t, err)

	ts, err := g.Triples()
	require.NoError(t, err)
	assert.Equal(t, 5, ts.Len())
	assert.Equal(t, amr.Triple{Label: "polarity", Source: "0", Target: "-"}, ts.Attributes[0])

	rec.Nodes[1].Properties = []string{"quant"}
	_, err = rec.Graph()
	var malformed *amr.MalformedGraphError
	assert.True(t, errors.As(err, &malformed))
}

func TestStreamRejectsInvalidJSON(t *testing.T) {
	stream := NewStream(strings.NewReader(recordLine("s1", "run-01") + "\n{not json\n"))

	_, err := stream.Next()
	require.NoError(t, err)
	_, err = stream.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadPairsLengthMismatch(t *testing.T) {
	testInput := strings.Join([]string{recordLine("s1", "run-01")}, "\n")
	goldInput := strings.Join([]string{
		recordLine("s1", "run-01"), recordLine("s2", "run-01"), recordLine("s3", "run-01"),
	}, "\n")

	_, _, err := ReadPairs(strings.NewReader(testInput), strings.NewReader(goldInput))
	var mismatch *CorpusLengthMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 1, mismatch.TestGraphs)
	assert.Equal(t, 3, mismatch.GoldGraphs)
	assert.Contains(t, err.Error(), "test file has fewer graphs")
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))

	single := Summarize([]float64{0.4})
	assert.Equal(t, 1, single.Count)
	assert.InDelta(t, 0.4, single.MeanF1, 1e-12)
	assert.Zero(t, single.StdDevF1)

	s := Summarize([]float64{1, 0.5})
	assert.InDelta(t, 0.75, s.MeanF1, 1e-12)
	assert.InDelta(t, 0.353553, s.StdDevF1, 1e-6)
	assert.InDelta(t, 0.5, s.MinF1, 1e-12)
	assert.InDelta(t, 1.0, s.MaxF1, 1e-12)
}

func TestSelectBest(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, lines ...string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
		return path
	}

	goldPath := write("gold.jsonl", recordLine("s1", "run-01"), recordLine("s2", "see-01"))
	write("a_out", recordLine("s1", "walk-01"), recordLine("s2", "see-01"))
	write("b_out", recordLine("s1", "run-01"), recordLine("s2", "see-01"))
	write("notes.txt", "ignored")

	candidates, err := FindCandidates(dir)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "a_out"), filepath.Join(dir, "b_out")}, candidates)

	scores, best, err := SelectBest(context.Background(), NewEvaluator(testConfig(), nil), goldPath, candidates)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, 1, best)
	assert.InDelta(t, 0.75, scores[0].F1, 1e-9)
	assert.InDelta(t, 1.0, scores[1].F1, 1e-9)
}

func TestSelectBestSkipsUnscorableCandidate(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, lines ...string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
		return path
	}
	topless := `{"id":"s1","nodes":[{"id":0,"label":"run-01"},{"id":1,"label":"dog"}],"edges":[{"source":0,"target":1,"label":"ARG0"}],"tops":[]}`

	goldPath := write("gold.jsonl", recordLine("s1", "run-01"))
	write("a_out", topless)
	write("b_out", recordLine("s1", "walk-01"))

	candidates, err := FindCandidates(dir)
	require.NoError(t, err)

	scores, best, err := SelectBest(context.Background(), NewEvaluator(testConfig(), nil), goldPath, candidates)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, 1, best)

	assert.True(t, errors.Is(scores[0].Err, ErrNoScoredPairs))
	assert.Zero(t, scores[0].F1)
	assert.Nil(t, scores[0].Report)
	assert.NoError(t, scores[1].Err)
	assert.InDelta(t, 0.5, scores[1].F1, 1e-9)
}

func TestSelectBestNothingScorable(t *testing.T) {
	dir := t.TempDir()
	goldPath := filepath.Join(dir, "gold.jsonl")
	require.NoError(t, os.WriteFile(goldPath, []byte(recordLine("s1", "run-01")+"\n"), 0o644))
	onlyPath := filepath.Join(dir, "only_out")
	require.NoError(t, os.WriteFile(onlyPath, []byte(`{"nodes":[{"id":0,"label":"run-01"}],"tops":[]}`+"\n"), 0o644))

	scores, best, err := SelectBest(context.Background(), NewEvaluator(testConfig(), nil), goldPath, []string{onlyPath})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, -1, best)
	assert.Error(t, scores[0].Err)
}
