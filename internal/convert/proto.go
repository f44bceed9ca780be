// Package convert maps domain values to google.protobuf.Struct messages and back.
package convert

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/glucokeeper/internal/model"
)

// Wire layouts for calendar values.
const (
	DateLayout     = "02/01/2006"
	DateTimeLayout = "02/01/2006-15:04"
)

// --- helpers ---

func ts(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339)
}

func optTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ts(*t)
}

func optFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func optInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func list[T any](in []T, f func(T) map[string]any) []any {
	out := make([]any, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}

// Struct builds the wire message from plain fields.
func Struct(fields map[string]any) (*structpb.Struct, error) {
	return structpb.NewStruct(fields)
}

// --- accounts ---

// User converts an account to its public fields. Secrets are never included.
func User(u model.User) map[string]any {
	return map[string]any{
		"user_id":   u.ID.String(),
		"firstname": u.Firstname,
		"lastname":  u.Lastname,
		"username":  u.Username(),
		"email":     u.Email,
	}
}

// Token converts an access token for display to its owner.
func Token(t model.AccessToken) map[string]any {
	out := map[string]any{
		"app_name":        nil,
		"token_value":     t.Value,
		"creation_date":   ts(t.CreatedAt),
		"expiration_date": ts(t.ExpiresAt),
		"last_use_date":   ts(t.LastUsedAt),
	}
	if t.AppName != "" {
		out["app_name"] = t.AppName
	}
	for _, c := range model.AllCapabilities() {
		out[c.String()+"_right"] = t.Rights.Has(c)
	}
	return out
}

// Tokens converts a token list.
func Tokens(in []model.AccessToken) []any { return list(in, Token) }

// Profile converts an account with the devices seen in its readings.
func Profile(u model.User, devices []string) map[string]any {
	out := User(u)
	ds := make([]any, 0, len(devices))
	for _, d := range devices {
		ds = append(ds, d)
	}
	out["devices"] = ds
	return out
}

// DeletedAccount converts the result of an account deletion.
func DeletedAccount(u model.User, tokens []model.AccessToken, goals []model.Goal) map[string]any {
	return map[string]any{
		"user":   User(u),
		"tokens": Tokens(tokens),
		"goals":  Goals(goals),
	}
}

// --- readings ---

// Sample converts one reading.
func Sample(s model.Sample) map[string]any {
	return map[string]any{
		"device_name":          s.DeviceName,
		"device_serial_number": s.DeviceSerial,
		"sampling_date":        ts(s.SampledAt),
		"recording_type":       s.RecordingType,
		"value":                s.Value,
	}
}

// Samples converts a list of readings.
func Samples(ss []model.Sample) []any { return list(ss, Sample) }

// AverageDay converts average-day points; points without samples carry a null average.
func AverageDay(pts []model.AverageDayPoint) []any {
	return list(pts, func(p model.AverageDayPoint) map[string]any {
		return map[string]any{
			"hour":          p.Hour.String(),
			"count":         p.Count,
			"average_value": optFloat(p.Average),
		}
	})
}

// Stats converts computed statistics.
func Stats(s model.Stats) map[string]any {
	return map[string]any{
		"from":                 ts(s.From),
		"to":                   ts(s.To),
		"minimum":              s.Minimum,
		"maximum":              s.Maximum,
		"stat_range":           s.Range,
		"mean":                 s.Mean,
		"variance":             s.Variance,
		"standard_deviation":   s.StdDev,
		"overall_samples_size": s.Count,
		"first_quartile":       s.Q1,
		"second_quartile":      s.Q2,
		"third_quartile":       s.Q3,
		"median":               s.Median,
	}
}

func trend(t model.Trend) map[string]any {
	return map[string]any{"state": string(t.State), "delta": t.Delta}
}

// HourTrend converts a timestamp-window trend.
func HourTrend(t model.HourTrend) map[string]any {
	out := trend(t.Trend)
	out["from"] = t.From.Format(DateTimeLayout)
	out["to"] = t.To.Format(DateTimeLayout)
	return out
}

// DayTrend converts a calendar-day trend.
func DayTrend(t model.DayTrend) map[string]any {
	out := trend(t.Trend)
	out["from"] = t.From.Format(DateLayout)
	out["to"] = t.To.Format(DateLayout)
	return out
}

// MonthTrend converts a month/year trend.
func MonthTrend(t model.MonthTrend) map[string]any {
	out := trend(t.Trend)
	out["start"] = map[string]any{"month": t.Start.Month, "year": t.Start.Year}
	out["end"] = map[string]any{"month": t.End.Month, "year": t.End.Year}
	out["are_same_year"] = t.SameYear
	return out
}

// --- goals ---

// Goal converts a goal; unset targets are null.
func Goal(g model.Goal) map[string]any {
	var tt any
	if g.TrendTarget != nil {
		tt = string(*g.TrendTarget)
	}
	st := g.StatsTarget
	return map[string]any{
		"id":             g.ID.String(),
		"title":          g.Title,
		"status":         string(g.Status),
		"start_datetime": optTime(g.Start),
		"end_datetime":   optTime(g.End),
		"average_target": optFloat(g.AverageTarget),
		"trend_target":   tt,
		"stats_target": map[string]any{
			"minimum":              optFloat(st.Minimum),
			"maximum":              optFloat(st.Maximum),
			"stat_range":           optFloat(st.Range),
			"mean":                 optFloat(st.Mean),
			"variance":             optFloat(st.Variance),
			"standard_deviation":   optFloat(st.StdDev),
			"overall_samples_size": optInt(st.Count),
			"first_quartile":       optFloat(st.Q1),
			"second_quartile":      optFloat(st.Q2),
			"third_quartile":       optFloat(st.Q3),
			"median":               optFloat(st.Median),
		},
	}
}

// Goals converts a goal list.
func Goals(gs []model.Goal) []any { return list(gs, Goal) }
