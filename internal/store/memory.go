package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is the in-process backend. It is safe for concurrent use and keeps
// insertion order per sheet, matching how a worksheet grows.
type Memory struct {
	mu     sync.RWMutex
	sheets map[string][]Row
	closed bool
}

func NewMemory() *Memory {
	return &Memory{sheets: map[string][]Row{}}
}

func (m *Memory) ReadRows(ctx context.Context, sheet string) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	src := m.sheets[sheet]
	out := make([]Row, len(src))
	for i, r := range src {
		out[i] = r.Clone()
	}
	return out, nil
}

func (m *Memory) AppendRow(ctx context.Context, sheet string, row Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.sheets[sheet] = append(m.sheets[sheet], row.Clone())
	return nil
}

func (m *Memory) UpsertByKey(ctx context.Context, sheet, keyCol, key string, row Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	rows := m.sheets[sheet]
	for i, r := range rows {
		if r[keyCol] == key {
			rows[i] = row.Clone()
			return nil
		}
	}
	m.sheets[sheet] = append(rows, row.Clone())
	return nil
}

func (m *Memory) DeleteRows(ctx context.Context, sheet string, match func(Row) bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	rows := m.sheets[sheet]
	kept := rows[:0]
	deleted := 0
	for _, r := range rows {
		if match(r) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.sheets[sheet] = kept
	return deleted, nil
}

func (m *Memory) ReplaceSheet(ctx context.Context, sheet string, rows []Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	cp := make([]Row, len(rows))
	for i, r := range rows {
		cp[i] = r.Clone()
	}
	m.sheets[sheet] = cp
	return nil
}

func (m *Memory) Sheets(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	names := make([]string, 0, len(m.sheets))
	for name, rows := range m.sheets {
		if len(rows) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
