// Package groupreduce implements a streaming group-reduce over key-sorted
// sample streams, plus the distribution utilities (CDF, weighted Jaccard)
// built on top of its summaries.
//
// The reducer holds exactly one group's accumulator at a time, which is why
// the input must arrive pre-sorted by group key. Sort order and comparison
// mode are explicit parameters, never an environmental default.
package groupreduce

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"slices"

	"github.com/Sumatoshi-tech/reviewfang/pkg/alg/stats"
)

// ErrUnsorted is returned when the input stream violates the pre-sort contract.
var ErrUnsorted = errors.New("groupreduce: input stream is not sorted by group key")

// Sample is one (group-key tuple, numeric value) observation. Samples are
// transient: the reducer consumes them immediately and never retains them.
type Sample struct {
	Key   []string
	Value float64
}

// Summary is the per-group reduction result.
type Summary struct {
	Key    []string
	Count  int
	Sum    float64
	SumSq  float64
	Min    float64
	Max    float64
	values []float64
}

// Mean returns the group mean.
func (s *Summary) Mean() float64 {
	if s.Count == 0 {
		return 0
	}

	return s.Sum / float64(s.Count)
}

// StdDev returns the population standard deviation of the group.
func (s *Summary) StdDev() float64 {
	if s.Count == 0 {
		return 0
	}

	mean := s.Mean()

	return math.Sqrt(s.SumSq/float64(s.Count) - mean*mean)
}

// Percentile returns the p-th percentile of the group's values, p in [0, 1].
func (s *Summary) Percentile(p float64) float64 {
	return stats.Percentile(s.values, p)
}

// Median returns the group median.
func (s *Summary) Median() float64 {
	return s.Percentile(stats.PercentileMedian)
}

// Values returns the retained sample values in arrival order.
func (s *Summary) Values() []float64 {
	return s.values
}

// newAccumulator starts a fresh accumulator for the given key. The key slice
// is copied so callers may reuse their backing array between samples.
func newAccumulator(key []string) *Summary {
	return &Summary{
		Key: slices.Clone(key),
		Min: math.Inf(1),
		Max: math.Inf(-1),
	}
}

// add folds one value into the accumulator and returns it, keeping the
// reduction step free of shared mutable state.
func (s *Summary) add(v float64) *Summary {
	s.Count++
	s.Sum += v
	s.SumSq += v * v
	s.Min = math.Min(s.Min, v)
	s.Max = math.Max(s.Max, v)
	s.values = append(s.values, v)

	return s
}

// Reduce consumes a stream of samples pre-sorted by group key and calls emit
// once per contiguous group, strictly on key-boundary transitions. Memory is
// bounded to a single group's accumulator. A sample whose key sorts before
// its predecessor aborts with ErrUnsorted.
func Reduce(samples iter.Seq[Sample], order Order, emit func(*Summary) error) error {
	var acc *Summary

	for sample := range samples {
		if acc != nil {
			switch c := CompareKeys(order, acc.Key, sample.Key); {
			case c > 0:
				return fmt.Errorf("%w: %v after %v", ErrUnsorted, sample.Key, acc.Key)
			case c < 0:
				if err := emit(acc); err != nil {
					return err
				}

				acc = nil
			}
		}

		if acc == nil {
			acc = newAccumulator(sample.Key)
		}

		acc = acc.add(sample.Value)
	}

	if acc != nil {
		return emit(acc)
	}

	return nil
}

// SortSamples orders samples by group key under the given mode, preparing
// an in-memory slice for Reduce.
func SortSamples(samples []Sample, order Order) {
	slices.SortStableFunc(samples, func(a, b Sample) int {
		return CompareKeys(order, a.Key, b.Key)
	})
}

// ReduceSlice sorts samples and reduces them in one call. Convenience for
// callers whose sample sets fit in memory; results are identical to a
// pre-sorted streaming Reduce.
func ReduceSlice(samples []Sample, order Order, emit func(*Summary) error) error {
	SortSamples(samples, order)

	return Reduce(func(yield func(Sample) bool) {
		for _, s := range samples {
			if !yield(s) {
				return
			}
		}
	}, order, emit)
}
