// Package glucose provides an immutable, time-ordered view over one user's readings.
package glucose

import (
	"time"

	"github.com/and161185/glucokeeper/internal/model"
)

// DefaultLatest is the number of samples Latest returns when n is unspecified.
const DefaultLatest = 5

// Series is the ordered sequence of samples owned by one user.
// Order is the ingestion order (sorted by sampling time, ties kept stable) and is never
// recomputed here; windowed queries rely on it.
type Series struct {
	samples []model.Sample
}

// NewSeries copies samples into a new series.
func NewSeries(samples []model.Sample) Series {
	cp := make([]model.Sample, len(samples))
	copy(cp, samples)
	return Series{samples: cp}
}

// Len returns the number of samples.
func (s Series) Len() int { return len(s.samples) }

// Samples returns a copy of all samples.
func (s Series) Samples() []model.Sample {
	return s.slice(0, len(s.samples))
}

// Values returns the sample values in series order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.samples))
	for i, smp := range s.samples {
		out[i] = smp.Value
	}
	return out
}

// On returns samples whose calendar date (in the sample's own location) equals date's.
func (s Series) On(date time.Time) []model.Sample {
	y, m, d := date.Date()
	out := []model.Sample{}
	for _, smp := range s.samples {
		sy, sm, sd := smp.SampledAt.Date()
		if sy == y && sm == m && sd == d {
			out = append(out, smp)
		}
	}
	return out
}

// Between returns samples with from <= SampledAt <= to. Inverted bounds yield nothing.
func (s Series) Between(from, to time.Time) []model.Sample {
	out := []model.Sample{}
	if from.After(to) {
		return out
	}
	for _, smp := range s.samples {
		if !smp.SampledAt.Before(from) && !smp.SampledAt.After(to) {
			out = append(out, smp)
		}
	}
	return out
}

// Latest returns the last n samples in series order. n <= 0 means DefaultLatest;
// a larger n than available returns everything.
func (s Series) Latest(n int) []model.Sample {
	if n <= 0 {
		n = DefaultLatest
	}
	if n > len(s.samples) {
		n = len(s.samples)
	}
	return s.slice(len(s.samples)-n, len(s.samples))
}

// Devices returns the distinct device names in order of first appearance.
func (s Series) Devices() []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, smp := range s.samples {
		if _, ok := seen[smp.DeviceName]; ok {
			continue
		}
		seen[smp.DeviceName] = struct{}{}
		out = append(out, smp.DeviceName)
	}
	return out
}

// AverageDay folds all days onto the given clock times: each point averages the samples
// whose time of day lies within toleranceMinutes of the clock time (wrapping at midnight).
func (s Series) AverageDay(hours []model.ClockTime, toleranceMinutes int) []model.AverageDayPoint {
	if toleranceMinutes < 0 {
		toleranceMinutes = -toleranceMinutes
	}
	out := make([]model.AverageDayPoint, len(hours))
	for i, h := range hours {
		var sum float64
		n := 0
		for _, smp := range s.samples {
			if clockDistance(h.Minutes(), smp.SampledAt.Hour()*60+smp.SampledAt.Minute()) <= toleranceMinutes {
				sum += smp.Value
				n++
			}
		}
		out[i] = model.AverageDayPoint{Hour: h, Count: n}
		if n > 0 {
			avg := sum / float64(n)
			out[i].Average = &avg
		}
	}
	return out
}

func clockDistance(a, b int) int {
	const day = 24 * 60
	d := a - b
	if d < 0 {
		d = -d
	}
	if day-d < d {
		return day - d
	}
	return d
}

func (s Series) slice(from, to int) []model.Sample {
	out := make([]model.Sample, to-from)
	copy(out, s.samples[from:to])
	return out
}
