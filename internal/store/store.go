package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnknownDriver = errors.New("unknown store driver")
	ErrClosed        = errors.New("store closed")
)

// Row is one sheet row, keyed by column header.
type Row map[string]string

// Clone returns an independent copy so callers can mutate freely.
func (r Row) Clone() Row {
	cp := make(Row, len(r))
	for k, v := range r {
		cp[k] = v
	}
	return cp
}

// Store is the tabular data store the automation runs over. Implementations
// must provide read-your-writes semantics within one handler invocation.
type Store interface {
	// ReadRows returns all rows of a sheet. A missing sheet reads as empty.
	ReadRows(ctx context.Context, sheet string) ([]Row, error)

	// AppendRow adds a row to a sheet, creating the sheet if needed.
	AppendRow(ctx context.Context, sheet string, row Row) error

	// UpsertByKey replaces the row whose keyCol equals key, or appends it.
	UpsertByKey(ctx context.Context, sheet, keyCol, key string, row Row) error

	// DeleteRows removes every row the matcher selects and reports how many.
	DeleteRows(ctx context.Context, sheet string, match func(Row) bool) (int, error)

	// ReplaceSheet swaps the full contents of a sheet atomically.
	ReplaceSheet(ctx context.Context, sheet string, rows []Row) error

	// Sheets lists sheet names that currently hold at least one row.
	Sheets(ctx context.Context) ([]string, error)

	Close() error
}

// Config selects and configures a backend.
//
// Driver values:
//   - "memory": in-process backend (tests, demos)
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}
