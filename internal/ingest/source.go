package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/and161185/glucokeeper/internal/errs"
)

const ext = ".csv"

// Source stores one raw export per username.
type Source interface {
	// Open returns the user's export; errs.ErrNotFound when there is none.
	Open(ctx context.Context, username string) (io.ReadCloser, error)
	// Put replaces the user's export.
	Put(ctx context.Context, username string, data []byte) error
	// List returns the usernames that have an export, sorted.
	List(ctx context.Context) ([]string, error)
}

// DirSource keeps exports as <Dir>/<username>.csv.
type DirSource struct {
	Dir string
}

// NewDirSource creates dir if needed.
func NewDirSource(dir string) (*DirSource, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	return &DirSource{Dir: dir}, nil
}

// Open opens the user's file.
func (d *DirSource) Open(_ context.Context, username string) (io.ReadCloser, error) {
	p, err := d.path(username)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("data of %q: %w", username, errs.ErrNotFound)
	}
	return f, err
}

// Put writes the file through a temp file and rename.
func (d *DirSource) Put(_ context.Context, username string, data []byte) error {
	p, err := d.path(username)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(d.Dir, ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

// List scans the directory for exports.
func (d *DirSource) List(context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), ext))
	}
	sort.Strings(out)
	return out, nil
}

func (d *DirSource) path(username string) (string, error) {
	if err := checkName(username); err != nil {
		return "", err
	}
	return filepath.Join(d.Dir, username+ext), nil
}

// checkName rejects names that could escape the storage namespace.
func checkName(username string) error {
	if username == "" || strings.ContainsAny(username, `/\`) || strings.Contains(username, "..") {
		return fmt.Errorf("username %q: %w", username, errs.ErrInvalidArgument)
	}
	return nil
}
