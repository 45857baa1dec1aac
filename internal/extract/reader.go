//-------------------------------------------------------------------------
//
// pgEdge Star Schema Loader
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package extract

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/pgEdge/pgedge-starload/internal/logging"
	"github.com/pgEdge/pgedge-starload/internal/model"
)

var (
	// ErrMissingSource is returned when a catalog source file does not exist.
	ErrMissingSource = errors.New("missing source")

	// ErrMissingColumn is returned when a source lacks a required column.
	ErrMissingColumn = errors.New("missing column")

	// ErrUnknownSource is returned for names not present in the catalog.
	ErrUnknownSource = errors.New("unknown source")
)

// Reader loads named extracts from a directory.
type Reader struct {
	fs    afero.Fs
	dir   string
	files map[string]string
}

// NewReader creates a reader over dir. Overrides map a source name to a
// file name that replaces the catalog default.
func NewReader(fs afero.Fs, dir string, overrides map[string]string) *Reader {
	files := make(map[string]string, len(Catalog))
	for _, s := range Catalog {
		files[s.Name] = s.File
	}
	for name, file := range overrides {
		if _, ok := files[name]; ok && file != "" {
			files[name] = file
		}
	}
	return &Reader{fs: fs, dir: dir, files: files}
}

// Path returns the file path for a source.
func (r *Reader) Path(name string) (string, error) {
	file, ok := r.files[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return filepath.Join(r.dir, file), nil
}

// CheckAll verifies that every catalog source exists without reading it.
func (r *Reader) CheckAll() error {
	var missing []string
	for _, s := range Catalog {
		path, _ := r.Path(s.Name)
		if _, err := r.fs.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				missing = append(missing, path)
				continue
			}
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingSource, strings.Join(missing, ", "))
	}
	return nil
}

// LatestModTime returns the newest modification time across all sources.
func (r *Reader) LatestModTime() (time.Time, error) {
	var latest time.Time
	for _, s := range Catalog {
		path, _ := r.Path(s.Name)
		info, err := r.fs.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return time.Time{}, fmt.Errorf("%w: %s", ErrMissingSource, path)
			}
			return time.Time{}, err
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return latest, nil
}

// ReadAll loads every catalog source. It checks that all files exist before
// reading any of them.
func (r *Reader) ReadAll(ctx context.Context) (model.RawSet, error) {
	if err := r.CheckAll(); err != nil {
		return nil, err
	}

	set := make(model.RawSet, len(Catalog))
	for _, s := range Catalog {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		table, err := r.Read(ctx, s.Name)
		if err != nil {
			return nil, err
		}
		set[s.Name] = table
	}
	return set, nil
}

// Read loads a single source and validates its header.
func (r *Reader) Read(ctx context.Context, name string) (*model.RawTable, error) {
	path, err := r.Path(name)
	if err != nil {
		return nil, err
	}

	logging.Info().Str("source", name).Str("path", path).Msg("Loading source")

	f, err := r.fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingSource, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	table, err := readCSV(ctx, name, f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	src, _ := Lookup(name)
	for _, col := range src.Columns {
		if table.Column(col) < 0 {
			return nil, fmt.Errorf("%w: %s.%s", ErrMissingColumn, name, col)
		}
	}

	logging.Info().
		Str("source", name).
		Int("rows", len(table.Rows)).
		Int("cols", len(table.Header)).
		Msg("Source loaded")

	return table, nil
}

func readCSV(ctx context.Context, name string, rd io.Reader) (*model.RawTable, error) {
	reader := csv.NewReader(rd)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file, no header")
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	// Excel exports carry a UTF-8 byte order mark.
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	table := &model.RawTable{Name: name, Header: header}
	for n := 1; ; n++ {
		if n%100000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", n, err)
		}
		// Short rows are padded so every row has one cell per column.
		if len(row) < len(header) {
			padded := make([]string, len(header))
			copy(padded, row)
			row = padded
		} else if len(row) > len(header) {
			row = row[:len(header)]
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
