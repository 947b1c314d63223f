package corpus

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the spread of per-pair F1 scores
type Summary struct {
	Count    int     `json:"count"`
	MeanF1   float64 `json:"mean_f1"`
	StdDevF1 float64 `json:"stddev_f1"`
	MinF1    float64 `json:"min_f1"`
	MaxF1    float64 `json:"max_f1"`
}

// Summarize computes the summary of scores. The standard deviation is the
// sample one and is 0 for fewer than two scores.
func Summarize(scores []float64) Summary {
	s := Summary{Count: len(scores)}
	if len(scores) == 0 {
		return s
	}
	if len(scores) == 1 {
		s.MeanF1 = scores[0]
	} else {
		s.MeanF1, s.StdDevF1 = stat.MeanStdDev(scores, nil)
	}
	s.MinF1 = floats.Min(scores)
	s.MaxF1 = floats.Max(scores)
	return s
}
