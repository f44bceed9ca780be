package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/glucokeeper/internal/errs"
	"github.com/and161185/glucokeeper/internal/glucose"
	"github.com/and161185/glucokeeper/internal/model"
	"github.com/and161185/glucokeeper/internal/stats"
	"github.com/and161185/glucokeeper/internal/trend"
)

// RawStore reads and replaces users' raw exports.
type RawStore interface {
	Raw(ctx context.Context, username string) ([]byte, error)
	Store(ctx context.Context, username string, data []byte) (int, error)
	Usernames(ctx context.Context) ([]string, error)
}

// Insights answers sample, trend and statistics queries for a user addressed by username.
// Callers authorize the request and check the username beforehand.
type Insights struct {
	cache SeriesCache
	raw   RawStore
	now   func() time.Time
}

// NewInsights constructs the insights service.
func NewInsights(cache SeriesCache, raw RawStore) *Insights {
	return &Insights{cache: cache, raw: raw, now: time.Now}
}

// SamplesOn returns the readings of one calendar day; a zero day means today.
// A day without readings is errs.ErrNotFound.
func (s *Insights) SamplesOn(ctx context.Context, username string, day time.Time) ([]model.Sample, error) {
	series, err := s.cache.Series(ctx, username)
	if err != nil {
		return nil, err
	}
	if day.IsZero() {
		day = s.now()
	}
	out := series.On(day)
	if len(out) == 0 {
		return nil, fmt.Errorf("no readings on %s: %w", day.Format("02/01/2006"), errs.ErrNotFound)
	}
	return out, nil
}

// Latest returns the last n readings (glucose.DefaultLatest when n <= 0).
func (s *Insights) Latest(ctx context.Context, username string, n int) ([]model.Sample, error) {
	series, err := s.cache.Series(ctx, username)
	if err != nil {
		return nil, err
	}
	return series.Latest(n), nil
}

// AverageDay averages readings around each clock time over all days.
func (s *Insights) AverageDay(ctx context.Context, username string, hours []model.ClockTime, toleranceMinutes int) ([]model.AverageDayPoint, error) {
	if len(hours) == 0 {
		return nil, fmt.Errorf("no clock times: %w", errs.ErrInvalidArgument)
	}
	series, err := s.cache.Series(ctx, username)
	if err != nil {
		return nil, err
	}
	return series.AverageDay(hours, toleranceMinutes), nil
}

// HourTrend computes the trend between two instants.
func (s *Insights) HourTrend(ctx context.Context, username string, from, to time.Time, tolerance float64) (model.HourTrend, error) {
	if from.After(to) {
		return model.HourTrend{}, fmt.Errorf("window starts after it ends: %w", errs.ErrInvalidArgument)
	}
	series, err := s.cache.Series(ctx, username)
	if err != nil {
		return model.HourTrend{}, err
	}
	return trend.Hours(series, from, to, tolerance)
}

// DayTrend computes the trend between two calendar days.
func (s *Insights) DayTrend(ctx context.Context, username string, day1, day2 time.Time, tolerance float64) (model.DayTrend, error) {
	y1, m1, d1 := day1.Date()
	y2, m2, d2 := day2.Date()
	if time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC).After(time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)) {
		return model.DayTrend{}, fmt.Errorf("window starts after it ends: %w", errs.ErrInvalidArgument)
	}
	series, err := s.cache.Series(ctx, username)
	if err != nil {
		return model.DayTrend{}, err
	}
	return trend.Days(series, day1, day2, tolerance)
}

// MonthTrend computes the trend over a month/year window.
func (s *Insights) MonthTrend(ctx context.Context, username string, m1, y1, m2, y2 int, tolerance float64) (model.MonthTrend, error) {
	series, err := s.cache.Series(ctx, username)
	if err != nil {
		return model.MonthTrend{}, err
	}
	return trend.Months(series, m1, y1, m2, y2, tolerance)
}

// UserStats returns the statistics of the user's readings.
func (s *Insights) UserStats(ctx context.Context, username string) (model.Stats, error) {
	return s.cache.Stats(ctx, username)
}

// AllStats computes statistics over the readings of every user with data.
func (s *Insights) AllStats(ctx context.Context) (model.Stats, error) {
	names, err := s.raw.Usernames(ctx)
	if err != nil {
		return model.Stats{}, err
	}
	byUser := make(map[string]glucose.Series, len(names))
	for _, name := range names {
		series, err := s.cache.Series(ctx, name)
		if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrInvalidArgument) {
			continue
		}
		if err != nil {
			return model.Stats{}, err
		}
		byUser[name] = series
	}
	return stats.ComputeAcrossUsers(byUser)
}

// RawData returns the user's export as stored.
func (s *Insights) RawData(ctx context.Context, username string) ([]byte, error) {
	return s.raw.Raw(ctx, username)
}

// PutRawData validates and stores a new export, then drops the cached series.
func (s *Insights) PutRawData(ctx context.Context, username string, data []byte) (int, error) {
	n, err := s.raw.Store(ctx, username, data)
	if err != nil {
		return 0, err
	}
	s.cache.Invalidate(ctx, username)
	return n, nil
}
