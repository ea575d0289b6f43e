package guardian

import "math"

// Score returns the arithmetic mean of the violations' severity weights,
// clamped to 1.0. No violations score 0. A severity without a weight
// counts as CRITICAL.
//
// Five MEDIUM violations score the same 0.4 as one; the mean keeps scores
// comparable across inputs with different violation counts.
func Score(violations []Violation) float64 {
	if len(violations) == 0 {
		return 0
	}

	var sum float64
	for _, v := range violations {
		w, ok := v.Severity.Weight()
		if !ok {
			w = 1.0
		}
		sum += w
	}
	return math.Min(sum/float64(len(violations)), 1.0)
}
