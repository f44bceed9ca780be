package convert

import (
	"fmt"
	"math"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/glucokeeper/internal/errs"
	"github.com/and161185/glucokeeper/internal/model"
)

// Args reads typed request fields. Every failure wraps errs.ErrInvalidArgument.
type Args struct {
	fields map[string]*structpb.Value
}

// NewArgs wraps a request message; nil is an empty request.
func NewArgs(s *structpb.Struct) Args {
	return Args{fields: s.GetFields()}
}

func bad(key, format string, a ...any) error {
	return fmt.Errorf("%s: %s: %w", key, fmt.Sprintf(format, a...), errs.ErrInvalidArgument)
}

// Has reports whether key is present and not null.
func (a Args) Has(key string) bool {
	v, ok := a.fields[key]
	if !ok || v == nil {
		return false
	}
	_, isNull := v.GetKind().(*structpb.Value_NullValue)
	return !isNull
}

// String returns a required non-blank string.
func (a Args) String(key string) (string, error) {
	if !a.Has(key) {
		return "", bad(key, "required")
	}
	s, ok := a.fields[key].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", bad(key, "want string")
	}
	if strings.TrimSpace(s.StringValue) == "" {
		return "", bad(key, "empty")
	}
	return s.StringValue, nil
}

// OptString returns the string at key or "" when absent.
func (a Args) OptString(key string) (string, error) {
	if !a.Has(key) {
		return "", nil
	}
	s, ok := a.fields[key].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", bad(key, "want string")
	}
	return s.StringValue, nil
}

// Float returns the number at key or def when absent.
func (a Args) Float(key string, def float64) (float64, error) {
	if !a.Has(key) {
		return def, nil
	}
	n, ok := a.fields[key].GetKind().(*structpb.Value_NumberValue)
	if !ok || math.IsNaN(n.NumberValue) || math.IsInf(n.NumberValue, 0) {
		return 0, bad(key, "want number")
	}
	return n.NumberValue, nil
}

// Int returns the integral number at key or def when absent.
func (a Args) Int(key string, def int) (int, error) {
	if !a.Has(key) {
		return def, nil
	}
	f, err := a.Float(key, 0)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, bad(key, "want integer")
	}
	return int(f), nil
}

// RequiredInt is Int without a default.
func (a Args) RequiredInt(key string) (int, error) {
	if !a.Has(key) {
		return 0, bad(key, "required")
	}
	return a.Int(key, 0)
}

// Strings returns the list of strings at key; absent is nil.
func (a Args) Strings(key string) ([]string, error) {
	if !a.Has(key) {
		return nil, nil
	}
	l, ok := a.fields[key].GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, bad(key, "want list")
	}
	out := make([]string, 0, len(l.ListValue.GetValues()))
	for i, v := range l.ListValue.GetValues() {
		s, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, bad(key, "item %d: want string", i)
		}
		out = append(out, s.StringValue)
	}
	return out, nil
}

// Date parses a "dd/mm/yyyy" value in loc. The zero time means absent.
func (a Args) Date(key string, loc *time.Location) (time.Time, error) {
	return a.layout(key, DateLayout, loc)
}

// DateTime parses a required "dd/mm/yyyy-HH:MM" value in loc.
func (a Args) DateTime(key string, loc *time.Location) (time.Time, error) {
	if !a.Has(key) {
		return time.Time{}, bad(key, "required")
	}
	return a.layout(key, DateTimeLayout, loc)
}

func (a Args) layout(key, layout string, loc *time.Location) (time.Time, error) {
	s, err := a.OptString(key)
	if err != nil || s == "" {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(layout, s, loc)
	if err != nil {
		return time.Time{}, bad(key, "want %s", layout)
	}
	return t, nil
}

// Time parses an optional RFC 3339 instant.
func (a Args) Time(key string) (*time.Time, error) {
	s, err := a.OptString(key)
	if err != nil || s == "" {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, bad(key, "want RFC 3339")
	}
	return &t, nil
}

// Capabilities reads a list of scope names.
func (a Args) Capabilities(key string) (model.Capabilities, error) {
	names, err := a.Strings(key)
	if err != nil {
		return model.Capabilities{}, err
	}
	var set model.Capabilities
	for _, n := range names {
		c, err := model.ParseCapability(n)
		if err != nil {
			return model.Capabilities{}, fmt.Errorf("%s: %w", key, err)
		}
		set = set.Grant(c)
	}
	return set, nil
}

// Duration reads "duration" (amount) and "duration_unit".
func (a Args) Duration() (model.TokenDuration, error) {
	n, err := a.RequiredInt("duration")
	if err != nil {
		return model.TokenDuration{}, err
	}
	unit, err := a.String("duration_unit")
	if err != nil {
		return model.TokenDuration{}, err
	}
	u, err := model.ParseDurationUnit(unit)
	if err != nil {
		return model.TokenDuration{}, err
	}
	return model.TokenDuration{Amount: n, Unit: u}, nil
}

// ClockTimes reads a list of "HH:MM" values.
func (a Args) ClockTimes(key string) ([]model.ClockTime, error) {
	raw, err := a.Strings(key)
	if err != nil {
		return nil, err
	}
	out := make([]model.ClockTime, 0, len(raw))
	for _, s := range raw {
		c, err := model.ParseClockTime(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Sub returns the nested object at key; absent is empty.
func (a Args) Sub(key string) (Args, error) {
	if !a.Has(key) {
		return Args{}, nil
	}
	s, ok := a.fields[key].GetKind().(*structpb.Value_StructValue)
	if !ok {
		return Args{}, bad(key, "want object")
	}
	return NewArgs(s.StructValue), nil
}

func (a Args) optFloat(key string) (*float64, error) {
	if !a.Has(key) {
		return nil, nil
	}
	f, err := a.Float(key, 0)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (a Args) optInt(key string) (*int, error) {
	if !a.Has(key) {
		return nil, nil
	}
	n, err := a.Int(key, 0)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// GoalFrom reads a goal definition. Missing status is left empty for the service default.
func GoalFrom(a Args) (model.Goal, error) {
	var g model.Goal
	var err error
	if g.Title, err = a.String("title"); err != nil {
		return model.Goal{}, err
	}
	status, err := a.OptString("status")
	if err != nil {
		return model.Goal{}, err
	}
	g.Status = model.GoalStatus(status)
	if g.Start, err = a.Time("start_datetime"); err != nil {
		return model.Goal{}, err
	}
	if g.End, err = a.Time("end_datetime"); err != nil {
		return model.Goal{}, err
	}
	if g.AverageTarget, err = a.optFloat("average_target"); err != nil {
		return model.Goal{}, err
	}
	trend, err := a.OptString("trend_target")
	if err != nil {
		return model.Goal{}, err
	}
	if trend != "" {
		st, err := model.ParseTrendState(trend)
		if err != nil {
			return model.Goal{}, err
		}
		g.TrendTarget = &st
	}

	sa, err := a.Sub("stats_target")
	if err != nil {
		return model.Goal{}, err
	}
	st := &g.StatsTarget
	for key, dst := range map[string]**float64{
		"minimum":            &st.Minimum,
		"maximum":            &st.Maximum,
		"stat_range":         &st.Range,
		"mean":               &st.Mean,
		"variance":           &st.Variance,
		"standard_deviation": &st.StdDev,
		"first_quartile":     &st.Q1,
		"second_quartile":    &st.Q2,
		"third_quartile":     &st.Q3,
		"median":             &st.Median,
	} {
		if *dst, err = sa.optFloat(key); err != nil {
			return model.Goal{}, fmt.Errorf("stats_target.%w", err)
		}
	}
	if st.Count, err = sa.optInt("overall_samples_size"); err != nil {
		return model.Goal{}, fmt.Errorf("stats_target.%w", err)
	}
	return g, nil
}
