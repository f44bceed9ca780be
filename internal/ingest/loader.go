package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/and161185/glucokeeper/internal/errs"
	"github.com/and161185/glucokeeper/internal/glucose"
)

// Loader turns raw exports from a Source into series.
type Loader struct {
	src Source
	loc *time.Location
}

// NewLoader creates a loader reading timestamps in loc (UTC when nil).
func NewLoader(src Source, loc *time.Location) *Loader {
	if loc == nil {
		loc = time.UTC
	}
	return &Loader{src: src, loc: loc}
}

// Load reads and parses the user's export. A missing or reading-free export is errs.ErrNotFound.
func (l *Loader) Load(ctx context.Context, username string) (glucose.Series, error) {
	rc, err := l.src.Open(ctx, username)
	if err != nil {
		return glucose.Series{}, err
	}
	defer rc.Close()

	samples, err := ParseCSV(rc, l.loc)
	if err != nil {
		return glucose.Series{}, fmt.Errorf("data of %q: %w", username, err)
	}
	if len(samples) == 0 {
		return glucose.Series{}, fmt.Errorf("data of %q has no readings: %w", username, errs.ErrNotFound)
	}
	return glucose.NewSeries(samples), nil
}

// Raw returns the user's export unparsed.
func (l *Loader) Raw(ctx context.Context, username string) ([]byte, error) {
	rc, err := l.src.Open(ctx, username)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Store validates data and replaces the user's export. Returns the number of readings.
func (l *Loader) Store(ctx context.Context, username string, data []byte) (int, error) {
	samples, err := ParseCSV(bytes.NewReader(data), l.loc)
	if err != nil {
		return 0, err
	}
	if len(samples) == 0 {
		return 0, fmt.Errorf("upload has no readings: %w", errs.ErrInvalidArgument)
	}
	if err := l.src.Put(ctx, username, data); err != nil {
		return 0, err
	}
	return len(samples), nil
}

// Usernames lists users with an export.
func (l *Loader) Usernames(ctx context.Context) ([]string, error) {
	return l.src.List(ctx)
}
