// Package ingest loads per-user glucose exports (LibreView CSV) from a data source.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/glucokeeper/internal/errs"
	"github.com/and161185/glucokeeper/internal/model"
)

// TimestampLayout is the device timestamp format of the export.
const TimestampLayout = "02-01-2006 15:04"

// Column positions of the export; later columns (insulin, notes, ...) are ignored.
const (
	colDeviceName = iota
	colDeviceSerial
	colTimestamp
	colRecordingType
	colValue

	minColumns
)

// ParseCSV reads an export: one metadata line, one header line, then one reading per row.
// Rows without a glucose value (empty or "-1") are skipped. The result is sorted by sampling
// time; rows with equal timestamps keep file order. Timestamps are read in loc.
func ParseCSV(r io.Reader, loc *time.Location) ([]model.Sample, error) {
	if loc == nil {
		loc = time.UTC
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	for i := 0; i < 2; i++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv: missing header: %w", errs.ErrInvalidArgument)
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %v: %w", err, errs.ErrInvalidArgument)
		}
		if i == 1 && len(rec) < minColumns {
			return nil, fmt.Errorf("csv: header has %d columns, want at least %d: %w",
				len(rec), minColumns, errs.ErrInvalidArgument)
		}
	}

	out := []model.Sample{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %v: %w", err, errs.ErrInvalidArgument)
		}
		line, _ := cr.FieldPos(0)
		smp, ok, err := parseRow(rec, loc)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		if ok {
			out = append(out, smp)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].SampledAt.Before(out[j].SampledAt) })
	return out, nil
}

func parseRow(rec []string, loc *time.Location) (model.Sample, bool, error) {
	if len(rec) < minColumns {
		return model.Sample{}, false, nil
	}
	raw := strings.TrimSpace(rec[colValue])
	if raw == "" || raw == "-1" || strings.TrimSpace(rec[colTimestamp]) == "" {
		return model.Sample{}, false, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return model.Sample{}, false, fmt.Errorf("value %q: %w", raw, errs.ErrInvalidArgument)
	}
	ts, err := time.ParseInLocation(TimestampLayout, strings.TrimSpace(rec[colTimestamp]), loc)
	if err != nil {
		return model.Sample{}, false, fmt.Errorf("timestamp %q: %w", rec[colTimestamp], errs.ErrInvalidArgument)
	}
	kind := 0
	if s := strings.TrimSpace(rec[colRecordingType]); s != "" {
		if kind, err = strconv.Atoi(s); err != nil {
			return model.Sample{}, false, fmt.Errorf("recording type %q: %w", s, errs.ErrInvalidArgument)
		}
	}
	return model.Sample{
		Value:         value,
		SampledAt:     ts,
		DeviceName:    rec[colDeviceName],
		DeviceSerial:  rec[colDeviceSerial],
		RecordingType: kind,
	}, true, nil
}
