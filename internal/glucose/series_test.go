package glucose

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/glucokeeper/internal/model"
)

func at(day, hour, min int) time.Time {
	return time.Date(2023, time.April, day, hour, min, 0, 0, time.UTC)
}

func sample(ts time.Time, v float64) model.Sample {
	return model.Sample{Value: v, SampledAt: ts, DeviceName: "FreeStyle LibreLink", DeviceSerial: "A1"}
}

func fixture() Series {
	return NewSeries([]model.Sample{
		sample(at(1, 8, 0), 100),
		sample(at(1, 9, 0), 120),
		sample(at(2, 8, 5), 140),
		sample(at(2, 23, 55), 90),
		sample(at(3, 0, 10), 95),
		sample(at(3, 12, 0), 180),
	})
}

func TestNewSeries_CopiesInput(t *testing.T) {
	t.Parallel()

	in := []model.Sample{sample(at(1, 8, 0), 100)}
	s := NewSeries(in)
	in[0].Value = 999
	require.Equal(t, 100.0, s.Samples()[0].Value)

	out := s.Samples()
	out[0].Value = 1
	require.Equal(t, 100.0, s.Samples()[0].Value)
}

func TestSeries_On(t *testing.T) {
	t.Parallel()
	s := fixture()

	got := s.On(time.Date(2023, time.April, 2, 17, 0, 0, 0, time.UTC))
	require.Len(t, got, 2)
	require.Equal(t, 140.0, got[0].Value)
	require.Equal(t, 90.0, got[1].Value)

	require.Empty(t, s.On(time.Date(2023, time.May, 2, 0, 0, 0, 0, time.UTC)))
}

func TestSeries_Between_InclusiveAndInverted(t *testing.T) {
	t.Parallel()
	s := fixture()

	got := s.Between(at(1, 9, 0), at(2, 23, 55))
	require.Len(t, got, 3)
	require.Equal(t, 120.0, got[0].Value)
	require.Equal(t, 90.0, got[2].Value)

	require.Empty(t, s.Between(at(2, 23, 55), at(1, 9, 0)))
	require.Len(t, s.Between(at(3, 12, 0), at(3, 12, 0)), 1)
}

func TestSeries_Latest(t *testing.T) {
	t.Parallel()
	s := fixture()

	require.Len(t, s.Latest(0), DefaultLatest)
	require.Equal(t, 120.0, s.Latest(0)[0].Value)

	two := s.Latest(2)
	require.Equal(t, []float64{95, 180}, []float64{two[0].Value, two[1].Value})

	require.Len(t, s.Latest(100), 6)
	require.Empty(t, NewSeries(nil).Latest(3))
}

func TestSeries_DevicesAndValues(t *testing.T) {
	t.Parallel()

	s := NewSeries([]model.Sample{
		{Value: 1, DeviceName: "B"},
		{Value: 2, DeviceName: "A"},
		{Value: 3, DeviceName: "B"},
	})
	require.Equal(t, []string{"B", "A"}, s.Devices())
	require.Equal(t, []float64{1, 2, 3}, s.Values())
	require.Equal(t, 3, s.Len())
}

func TestSeries_AverageDay(t *testing.T) {
	t.Parallel()
	s := fixture()

	pts := s.AverageDay([]model.ClockTime{{Hour: 8}, {Hour: 0}, {Hour: 15}}, 10)
	require.Len(t, pts, 3)

	require.Equal(t, 2, pts[0].Count)
	require.NotNil(t, pts[0].Average)
	require.InDelta(t, 120.0, *pts[0].Average, 1e-9)

	// 23:55 and 00:10 both lie within 10 minutes of midnight.
	require.Equal(t, 2, pts[1].Count)
	require.InDelta(t, 92.5, *pts[1].Average, 1e-9)

	require.Equal(t, 0, pts[2].Count)
	require.Nil(t, pts[2].Average)
}
