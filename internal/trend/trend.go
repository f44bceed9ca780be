// Package trend classifies the direction of glucose change over a window.
package trend

import (
	"fmt"
	"math"
	"time"

	"github.com/and161185/glucokeeper/internal/errs"
	"github.com/and161185/glucokeeper/internal/glucose"
	"github.com/and161185/glucokeeper/internal/model"
)

// Hours computes the trend over samples with from <= SampledAt <= to.
func Hours(s glucose.Series, from, to time.Time, tolerance float64) (model.HourTrend, error) {
	t, err := over(s, func(smp model.Sample) bool {
		return !smp.SampledAt.Before(from) && !smp.SampledAt.After(to)
	}, tolerance)
	if err != nil {
		return model.HourTrend{}, fmt.Errorf("hour trend: %w", err)
	}
	return model.HourTrend{Trend: t, From: from, To: to}, nil
}

// Days computes the trend over samples whose calendar date lies in [day1, day2].
// Time of day of the bounds is ignored.
func Days(s glucose.Series, day1, day2 time.Time, tolerance float64) (model.DayTrend, error) {
	lo, hi := dateKey(day1), dateKey(day2)
	t, err := over(s, func(smp model.Sample) bool {
		k := dateKey(smp.SampledAt)
		return lo <= k && k <= hi
	}, tolerance)
	if err != nil {
		return model.DayTrend{}, fmt.Errorf("day trend: %w", err)
	}
	return model.DayTrend{Trend: t, From: truncateDay(day1), To: truncateDay(day2)}, nil
}

// Months computes the trend over samples with m1 <= month <= m2 and y1 <= year <= y2.
// Month and year are compared independently, so a range spanning a year boundary
// (e.g. 11/2022..02/2023) matches nothing.
func Months(s glucose.Series, m1, y1, m2, y2 int, tolerance float64) (model.MonthTrend, error) {
	if m1 < 1 || m1 > 12 || m2 < 1 || m2 > 12 {
		return model.MonthTrend{}, fmt.Errorf("month trend: month out of range: %w", errs.ErrInvalidArgument)
	}
	t, err := over(s, func(smp model.Sample) bool {
		m, y := int(smp.SampledAt.Month()), smp.SampledAt.Year()
		return m1 <= m && m <= m2 && y1 <= y && y <= y2
	}, tolerance)
	if err != nil {
		return model.MonthTrend{}, fmt.Errorf("month trend: %w", err)
	}
	return model.MonthTrend{
		Trend:    t,
		Start:    model.MonthYear{Month: m1, Year: y1},
		End:      model.MonthYear{Month: m2, Year: y2},
		SameYear: y1 == y2,
	}, nil
}

// over takes the first and last matching samples in series order.
func over(s glucose.Series, match func(model.Sample) bool, tolerance float64) (model.Trend, error) {
	var first, last model.Sample
	found := false
	for _, smp := range s.Samples() {
		if !match(smp) {
			continue
		}
		if !found {
			first = smp
			found = true
		}
		last = smp
	}
	if !found {
		return model.Trend{}, errs.ErrEmptyWindow
	}
	delta := math.Abs(last.Value - first.Value)
	return model.Trend{State: Classify(delta, tolerance), Delta: delta}, nil
}

// Classify maps a delta and a tolerance band to a state. Callers pass an absolute delta,
// for which the decrease branch never fires.
func Classify(delta, tolerance float64) model.TrendState {
	switch {
	case delta-tolerance > 0:
		return model.TrendIncrease
	case delta+tolerance < 0:
		return model.TrendDecrease
	default:
		return model.TrendSteady
	}
}

func dateKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
