package sched

import (
	"context"
	"sync"
	"time"

	"sheetops/internal/model"
	"sheetops/internal/store"
	"sheetops/pkg/logx"
)

const (
	colLockJob      = "Job"
	colLockAcquired = "Acquired At"
	colLockTTL      = "TTL"
)

// DefaultLockTTL bounds how long an abandoned lock can shadow its job. A
// crash mid-run leaves a lock that self-heals once the TTL expires.
const DefaultLockTTL = 30 * time.Minute

// LockTable manages the advisory, time-boxed run locks in the Run_Locks
// sheet. One lock exists per job while it executes.
type LockTable struct {
	store store.Store
	log   logx.Logger
	ttl   time.Duration

	// mu serializes acquire's read-check-write; the sheet row alone cannot,
	// it only provides the crash-recovery TTL record.
	mu sync.Mutex
}

func NewLockTable(st store.Store, ttl time.Duration, log logx.Logger) *LockTable {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &LockTable{store: st, ttl: ttl, log: log}
}

// Acquire takes the run lock for job. It reports false when a live lock is
// already held. A lock older than its TTL is treated as abandoned and is
// reclaimed with a warning.
func (t *LockTable) Acquire(ctx context.Context, job string, now time.Time) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.store.ReadRows(ctx, model.SheetLocks)
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if r[colLockJob] != job {
			continue
		}
		acquired, perr := time.Parse(time.RFC3339, r[colLockAcquired])
		ttl, derr := time.ParseDuration(r[colLockTTL])
		if perr != nil || derr != nil || now.Sub(acquired) > ttl {
			t.log.Warn("reclaiming stale run lock",
				logx.String("job", job),
				logx.String("acquired_at", r[colLockAcquired]))
			break
		}
		return false, nil
	}
	row := store.Row{
		colLockJob:      job,
		colLockAcquired: now.Format(time.RFC3339),
		colLockTTL:      t.ttl.String(),
	}
	if err := t.store.UpsertByKey(ctx, model.SheetLocks, colLockJob, job, row); err != nil {
		return false, err
	}
	return true, nil
}

// Release drops the lock for job. Missing locks are not an error.
func (t *LockTable) Release(ctx context.Context, job string) {
	_, err := t.store.DeleteRows(ctx, model.SheetLocks, func(r store.Row) bool {
		return r[colLockJob] == job
	})
	if err != nil {
		t.log.Error("run lock release failed", logx.String("job", job), logx.Err(err))
	}
}

// Held reports whether a live (non-stale) lock exists for job.
func (t *LockTable) Held(ctx context.Context, job string, now time.Time) (bool, error) {
	rows, err := t.store.ReadRows(ctx, model.SheetLocks)
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if r[colLockJob] != job {
			continue
		}
		acquired, perr := time.Parse(time.RFC3339, r[colLockAcquired])
		ttl, derr := time.ParseDuration(r[colLockTTL])
		if perr == nil && derr == nil && now.Sub(acquired) <= ttl {
			return true, nil
		}
	}
	return false, nil
}
