package model

import (
	"fmt"
	"time"

	"github.com/and161185/glucokeeper/internal/errs"
)

// Sample is a single glucose reading.
type Sample struct {
	Value         float64 // mg/dL
	SampledAt     time.Time
	DeviceName    string
	DeviceSerial  string
	RecordingType int
}

// Stats describes a series of samples. It is never built from an empty series.
type Stats struct {
	From     time.Time // first sample in input order
	To       time.Time // last sample in input order
	Minimum  float64
	Maximum  float64
	Range    float64
	Mean     float64
	Variance float64 // population
	StdDev   float64 // population
	Count    int
	Q1       float64
	Q2       float64
	Q3       float64
	Median   float64
}

// TrendState is the direction of a trend.
type TrendState string

// Trend directions.
const (
	TrendIncrease TrendState = "increase"
	TrendDecrease TrendState = "decrease"
	TrendSteady   TrendState = "steady"
)

// Int returns the storage code of the state: -1, 0 or 1.
func (s TrendState) Int() int {
	switch s {
	case TrendDecrease:
		return -1
	case TrendIncrease:
		return 1
	default:
		return 0
	}
}

// TrendStateFromInt maps a storage code back to a state.
func TrendStateFromInt(v int) (TrendState, error) {
	switch v {
	case -1:
		return TrendDecrease, nil
	case 0:
		return TrendSteady, nil
	case 1:
		return TrendIncrease, nil
	default:
		return "", fmt.Errorf("trend code %d: %w", v, errs.ErrInvalidArgument)
	}
}

// ParseTrendState validates a state name.
func ParseTrendState(s string) (TrendState, error) {
	switch st := TrendState(s); st {
	case TrendIncrease, TrendDecrease, TrendSteady:
		return st, nil
	default:
		return "", fmt.Errorf("trend state %q: %w", s, errs.ErrInvalidArgument)
	}
}

// Trend is the direction and magnitude of change across a window.
type Trend struct {
	State TrendState
	Delta float64
}

// HourTrend is a trend over a timestamp window.
type HourTrend struct {
	Trend
	From time.Time
	To   time.Time
}

// DayTrend is a trend over a calendar-date window.
type DayTrend struct {
	Trend
	From time.Time // date, time of day ignored
	To   time.Time
}

// MonthYear identifies a calendar month.
type MonthYear struct {
	Month int
	Year  int
}

// MonthTrend is a trend over a month/year window.
type MonthTrend struct {
	Trend
	Start    MonthYear
	End      MonthYear
	SameYear bool
}

// ClockTime is a time of day with minute precision.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM".
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("clock time %q: %w", s, errs.ErrInvalidArgument)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// String formats the clock time as "HH:MM".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Minutes returns minutes since midnight.
func (c ClockTime) Minutes() int { return c.Hour*60 + c.Minute }

// AverageDayPoint is the mean glucose around one clock time over all days.
type AverageDayPoint struct {
	Hour    ClockTime
	Count   int
	Average *float64 // nil when no sample fell in the tolerance band
}
