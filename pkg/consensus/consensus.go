package consensus

import (
	"errors"
	"math"
	"sort"
)

// ErrNoAnswers is returned when Compute is invoked with an empty collection.
// Callers with zero successful submissions should fail the request instead.
var ErrNoAnswers = errors.New("no answers to compute consensus over")

// Tolerance is the relative band around the median within which an answer
// counts as agreeing with consensus.
const Tolerance = 0.05

// Answer is one agent's numeric answer to a request.
type Answer struct {
	AgentID string
	Value   float64
}

// Outcome carries the consensus value and the per-agent classification.
type Outcome struct {
	Median         float64
	Classification map[string]bool
}

// Compute sorts the answer values ascending and takes values[floor(n/2)] as
// the median. For even n this is the upper-middle element, not the average of
// the two middle elements; downstream accounting depends on the median being
// an actually-submitted value, so this must not be changed to interpolate.
//
// The threshold is Tolerance * median, computed once and applied uniformly.
// A zero median therefore collapses the band to exact matches only.
func Compute(answers []Answer) (Outcome, error) {
	if len(answers) == 0 {
		return Outcome{}, ErrNoAnswers
	}

	values := make([]float64, len(answers))
	for i, a := range answers {
		values[i] = a.Value
	}
	sort.Float64s(values)

	median := values[len(values)/2]
	threshold := median * Tolerance

	classification := make(map[string]bool, len(answers))
	for _, a := range answers {
		classification[a.AgentID] = math.Abs(a.Value-median) <= threshold
	}

	return Outcome{Median: median, Classification: classification}, nil
}
