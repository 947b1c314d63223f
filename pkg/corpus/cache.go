package corpus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gilchrisn/graph-matching-service/pkg/amr"
)

// CachedScore is what a ScoreCache keeps for one pair
type CachedScore struct {
	Match       int `json:"match"`
	TestTriples int `json:"test_triples"`
	GoldTriples int `json:"gold_triples"`
	Runs        int `json:"runs"`
}

// ScoreCache stores pair scores across runs. Get reports a miss with
// ok == false and a nil error.
type ScoreCache interface {
	Get(ctx context.Context, key string) (score CachedScore, ok bool, err error)
	Put(ctx context.Context, key string, score CachedScore) error
}

// SetCache makes the evaluator look pairs up in cache before searching.
// Timed-out searches are never stored.
func (e *Evaluator) SetCache(cache ScoreCache) {
	e.cache = cache
}

// pairKey identifies a search outcome: both renamed triple sets plus every
// setting the search result depends on.
func (e *Evaluator) pairKey(pair int, test, gold *amr.Graph) (string, error) {
	if err := test.Validate(); err != nil {
		return "", err
	}
	if err := gold.Validate(); err != nil {
		return "", err
	}
	a, err := test.Rename(e.testPrefix).Triples()
	if err != nil {
		return "", err
	}
	b, err := gold.Rename(e.goldPrefix).Triples()
	if err != nil {
		return "", err
	}

	h := sha256.New()
	fmt.Fprintf(h, "%s pair=%d\n", e.searchKey, pair)
	encoder := json.NewEncoder(h)
	if err := encoder.Encode(a); err != nil {
		return "", err
	}
	if err := encoder.Encode(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
