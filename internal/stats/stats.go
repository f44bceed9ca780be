// Package stats computes descriptive statistics over glucose series.
//
// Variance and standard deviation are population statistics (divide by N). Quartiles use the
// exclusive method: positions are taken over N+1 and interpolated linearly between order
// statistics (R type 6).
package stats

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/and161185/glucokeeper/internal/errs"
	"github.com/and161185/glucokeeper/internal/glucose"
	"github.com/and161185/glucokeeper/internal/model"
)

// Compute returns the statistics of s. An empty series yields errs.ErrEmptyInput.
func Compute(s glucose.Series) (model.Stats, error) {
	return compute(s.Samples())
}

// ComputeAcrossUsers flattens every series (in ascending username order) and computes the
// statistics of the union. From/To then only reflect the concatenation order.
func ComputeAcrossUsers(byUser map[string]glucose.Series) (model.Stats, error) {
	names := make([]string, 0, len(byUser))
	for name := range byUser {
		names = append(names, name)
	}
	sort.Strings(names)

	var all []model.Sample
	for _, name := range names {
		all = append(all, byUser[name].Samples()...)
	}
	return compute(all)
}

func compute(samples []model.Sample) (model.Stats, error) {
	n := len(samples)
	if n == 0 {
		return model.Stats{}, fmt.Errorf("stats: %w", errs.ErrEmptyInput)
	}

	values := make([]float64, n)
	var sum float64
	for i, smp := range samples {
		values[i] = smp.Value
		sum += smp.Value
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	variance := sq / float64(n)

	sorted := slices.Clone(values)
	slices.Sort(sorted)
	q1, q2, q3 := quartiles(sorted)

	return model.Stats{
		From:     samples[0].SampledAt,
		To:       samples[n-1].SampledAt,
		Minimum:  sorted[0],
		Maximum:  sorted[n-1],
		Range:    sorted[n-1] - sorted[0],
		Mean:     mean,
		Variance: variance,
		StdDev:   math.Sqrt(variance),
		Count:    n,
		Q1:       q1,
		Q2:       q2,
		Q3:       q3,
		Median:   median(sorted),
	}, nil
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// quartiles expects sorted input with at least one value. For N >= 2 the position index is
// clamped to [1, N-1] and the weights are recomputed from the clamped index, so values at
// the extremes are extrapolated from the two outermost order statistics.
func quartiles(sorted []float64) (q1, q2, q3 float64) {
	n := len(sorted)
	if n == 1 {
		return sorted[0], sorted[0], sorted[0]
	}
	m := n + 1
	var q [3]float64
	for i := 1; i <= 3; i++ {
		j := i * m / 4
		if j < 1 {
			j = 1
		} else if j > n-1 {
			j = n - 1
		}
		delta := i*m - j*4
		q[i-1] = (sorted[j-1]*float64(4-delta) + sorted[j]*float64(delta)) / 4
	}
	return q[0], q[1], q[2]
}
