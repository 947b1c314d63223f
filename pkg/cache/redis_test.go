package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/graph-matching-service/pkg/amr"
	"github.com/gilchrisn/graph-matching-service/pkg/corpus"
	"github.com/gilchrisn/graph-matching-service/pkg/smatch"
)

func newTestCache(t *testing.T, ttl time.Duration) (*RedisScoreCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewRedisScoreCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), ttl)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestGetPut(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	want := corpus.CachedScore{Match: 4, TestTriples: 5, GoldTriples: 6, Runs: 5}
	require.NoError(t, c.Put(ctx, "k", want))
	assert.True(t, mr.Exists(keyPrefix+"k"))

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCorruptEntry(t *testing.T) {
	c, mr := newTestCache(t, 0)
	require.NoError(t, mr.Set(keyPrefix+"bad", "not json"))

	_, ok, err := c.Get(context.Background(), "bad")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestDialFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Dial(context.Background(), addr, time.Minute)
	assert.Error(t, err)
}

func runGraph(verb string) *amr.Graph {
	g := amr.NewGraph()
	g.AddNode("r", verb)
	g.AddNode("d", "dog")
	g.AddRelation("r", "ARG0", "d")
	g.AddTop("r")
	return g
}

func TestEvaluatorReusesCachedScores(t *testing.T) {
	c, mr := newTestCache(t, time.Hour)

	config := smatch.NewConfig()
	config.Set("logging.level", "disabled")
	config.Set("search.random_seed", int64(11))
	evaluator := corpus.NewEvaluator(config, nil)
	evaluator.SetCache(c)

	test := []*amr.Graph{runGraph("run-01"), runGraph("walk-01")}
	gold := []*amr.Graph{runGraph("run-01"), runGraph("run-01")}

	first, err := evaluator.Evaluate(context.Background(), test, gold)
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 2)

	second, err := evaluator.Evaluate(context.Background(), test, gold)
	require.NoError(t, err)
	assert.Equal(t, first.Totals, second.Totals)
	assert.Equal(t, first.F1, second.F1)
	assert.Len(t, mr.Keys(), 2)

	// a different seed is a different search, so it must miss
	config.Set("search.random_seed", int64(12))
	reseeded := corpus.NewEvaluator(config, nil)
	reseeded.SetCache(c)
	_, err = reseeded.Evaluate(context.Background(), test, gold)
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 4)
}
