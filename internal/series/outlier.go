package series

import "sort"

// iqrFactor is the fence multiplier of the Tukey outlier rule.
const iqrFactor = 1.5

// Quantile computes the q-th quantile of values using linear
// interpolation between the two nearest ranks. Returns 0 for an empty
// slice. values need not be sorted.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}

	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	frac := pos - float64(lo)
	if lo+1 >= len(sorted) {
		return sorted[lo]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// FilterIQR removes outlier readings using the interquartile range:
// points outside [Q1 - 1.5*IQR, Q3 + 1.5*IQR] are dropped. Elapsed
// offsets of the kept points are preserved, not recomputed.
func FilterIQR(points []Point) []Point {
	if len(points) == 0 {
		return points
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}

	q1 := Quantile(values, 0.25)
	q3 := Quantile(values, 0.75)
	iqr := q3 - q1
	lower := q1 - iqrFactor*iqr
	upper := q3 + iqrFactor*iqr

	kept := make([]Point, 0, len(points))
	for _, p := range points {
		if p.Value >= lower && p.Value <= upper {
			kept = append(kept, p)
		}
	}
	return kept
}
