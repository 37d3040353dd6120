package visit

import "math"

// ExtractConfidence reduces a per-class score mapping to a single scalar:
// the maximum value, interpreted as confidence in the winning class,
// clamped into [0,1] and rounded to 4 decimal places. A nil or empty
// mapping yields nil, as does any mapping containing NaN or an infinity;
// non-finite numbers must never reach storage.
func ExtractConfidence(scores map[string]float64) *float64 {
	if len(scores) == 0 {
		return nil
	}

	max := math.Inf(-1)
	for _, v := range scores {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		if v > max {
			max = v
		}
	}

	if max < 0 {
		max = 0
	}
	if max > 1 {
		max = 1
	}

	rounded := math.Round(max*10000) / 10000
	return &rounded
}
