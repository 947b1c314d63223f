package smatch

import "fmt"

// InternalConsistencyError means a match count exceeds the triples it was
// counted over. It points at a bug in extraction or search and must not be
// clamped away.
type InternalConsistencyError struct {
	Match int
	Test  int
	Gold  int
}

func (e *InternalConsistencyError) Error() string {
	return fmt.Sprintf("internal consistency fault: match count %d with %d test triples and %d gold triples",
		e.Match, e.Test, e.Gold)
}

// ComputeF computes precision, recall and F1 from a match count and the
// triple totals of the test and gold sides. A zero total with a zero match
// count scores 1.0 (two empty graphs are identical).
func ComputeF(match, testTotal, goldTotal int) (precision, recall, f1 float64, err error) {
	if match < 0 || testTotal < 0 || goldTotal < 0 || match > testTotal || match > goldTotal {
		return 0, 0, 0, &InternalConsistencyError{Match: match, Test: testTotal, Gold: goldTotal}
	}

	precision = ratio(match, testTotal)
	recall = ratio(match, goldTotal)
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1, nil
}

// ratio assumes 0 <= num <= den
func ratio(num, den int) float64 {
	if den == 0 {
		return 1.0
	}
	return float64(num) / float64(den)
}
