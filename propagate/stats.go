package propagate

import (
	"math"
	"sort"
)

// summarize computes the empirical summary for one parameter's sample column.
func summarize(samples []float64) Stats {
	n := float64(len(samples))
	var sum float64
	for _, v := range samples {
		sum += v
	}
	mean := sum / n

	var ss float64
	for _, v := range samples {
		d := v - mean
		ss += d * d
	}
	std := 0.0
	if len(samples) > 1 {
		std = math.Sqrt(ss / (n - 1))
	}

	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	return Stats{
		Mean: mean,
		Std:  std,
		Percentiles: Percentiles{
			P025: percentile(sorted, 2.5),
			P16:  percentile(sorted, 16),
			P50:  percentile(sorted, 50),
			P84:  percentile(sorted, 84),
			P975: percentile(sorted, 97.5),
		},
	}
}

// percentile interpolates linearly between order statistics. The input must
// be sorted.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// correlationFromSamples computes the Pearson correlation matrix over the
// per-parameter sample columns.
func correlationFromSamples(ids []string, cols [][]float64) *Matrix {
	m := NewMatrix(ids)
	n := len(cols[0])
	if n < 2 {
		return m
	}

	means := make([]float64, len(cols))
	stds := make([]float64, len(cols))
	for i, col := range cols {
		var sum float64
		for _, v := range col {
			sum += v
		}
		means[i] = sum / float64(n)
		var ss float64
		for _, v := range col {
			d := v - means[i]
			ss += d * d
		}
		stds[i] = math.Sqrt(ss)
	}

	for i, a := range ids {
		for j := i; j < len(ids); j++ {
			b := ids[j]
			if stds[i] == 0 || stds[j] == 0 {
				continue
			}
			var cov float64
			for k := 0; k < n; k++ {
				cov += (cols[i][k] - means[i]) * (cols[j][k] - means[j])
			}
			m.Set(a, b, cov/(stds[i]*stds[j]))
		}
	}
	return m
}
