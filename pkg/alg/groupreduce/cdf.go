package groupreduce

import "sort"

// CDFPoint is one point of a cumulative distribution: the fraction of
// samples at or below Threshold. Fractions are monotone non-decreasing and
// the final point is always 1.0.
type CDFPoint struct {
	Threshold float64 `json:"threshold"`
	Fraction  float64 `json:"fraction"`
}

// CDF computes the cumulative fraction of sorted samples at or below each of
// the ascending thresholds. When the largest threshold does not cover the
// sample maximum, a final point at the maximum is appended so the curve
// always closes at 1.0. Returns nil for an empty sample set.
func CDF(sorted []float64, thresholds []float64) []CDFPoint {
	n := len(sorted)
	if n == 0 {
		return nil
	}

	points := make([]CDFPoint, 0, len(thresholds)+1)

	for _, t := range thresholds {
		// First index with sorted[i] > t == count of samples <= t.
		count := sort.SearchFloat64s(sorted, t)
		for count < n && sorted[count] == t {
			count++
		}

		points = append(points, CDFPoint{
			Threshold: t,
			Fraction:  float64(count) / float64(n),
		})
	}

	maxSample := sorted[n-1]
	if len(points) == 0 || points[len(points)-1].Fraction < 1.0 {
		points = append(points, CDFPoint{Threshold: maxSample, Fraction: 1.0})
	}

	return points
}
