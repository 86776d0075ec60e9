package sched

import (
	"context"
	"sort"
	"sync"
	"time"

	"sheetops/internal/model"
	"sheetops/internal/store"
	"sheetops/pkg/logx"
)

const (
	colSchedJob     = "Job"
	colSchedCadence = "Cadence"
	colSchedHandler = "Handler"
	colSchedLastRun = "Last Run"
	colSchedStatus  = "Last Status"
)

// Entry is one registered automation job.
type Entry struct {
	Job        string
	Cadence    Cadence
	Handler    Handler
	LastRunAt  time.Time
	LastStatus model.Outcome
}

// Registry owns the jobName -> schedule mapping. It is persisted in the
// Schedule_Registry sheet, one row per job; re-registering a name replaces
// the previous row rather than duplicating it.
type Registry struct {
	mu      sync.Mutex
	store   store.Store
	log     logx.Logger
	entries map[string]*Entry
}

func NewRegistry(st store.Store, log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{store: st, log: log, entries: map[string]*Entry{}}
}

// Put installs or replaces the entry for job. An existing persisted row
// contributes its last-run state so a restart does not re-fire an already
// served cadence window.
func (r *Registry) Put(ctx context.Context, job string, cadence Cadence, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ent := &Entry{Job: job, Cadence: cadence, Handler: h}
	if prev, err := r.readRow(ctx, job); err == nil && prev != nil {
		ent.LastRunAt = prev.LastRunAt
		ent.LastStatus = prev.LastStatus
	}
	r.entries[job] = ent
	return r.persistLocked(ctx, ent)
}

// Get returns the live entry for job, or nil.
func (r *Registry) Get(job string) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[job]
}

// MarkRun records the outcome of an executed invocation.
func (r *Registry) MarkRun(ctx context.Context, job string, at time.Time, outcome model.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ent := r.entries[job]
	if ent == nil {
		return
	}
	ent.LastRunAt = at
	ent.LastStatus = outcome
	if err := r.persistLocked(ctx, ent); err != nil {
		r.log.Error("schedule entry persist failed", logx.String("job", job), logx.Err(err))
	}
}

// MarkSkipped records a skipped firing without advancing the run window.
func (r *Registry) MarkSkipped(ctx context.Context, job string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ent := r.entries[job]
	if ent == nil {
		return
	}
	ent.LastStatus = model.OutcomeSkippedLocked
	if err := r.persistLocked(ctx, ent); err != nil {
		r.log.Error("schedule entry persist failed", logx.String("job", job), logx.Err(err))
	}
}

// Jobs lists registered entries sorted by name.
func (r *Registry) Jobs() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}

func (r *Registry) persistLocked(ctx context.Context, ent *Entry) error {
	lastRun := ""
	if !ent.LastRunAt.IsZero() {
		lastRun = ent.LastRunAt.Format(time.RFC3339)
	}
	row := store.Row{
		colSchedJob:     ent.Job,
		colSchedCadence: ent.Cadence.String(),
		colSchedHandler: ent.Handler.Name(),
		colSchedLastRun: lastRun,
		colSchedStatus:  string(ent.LastStatus),
	}
	return r.store.UpsertByKey(ctx, model.SheetSchedule, colSchedJob, ent.Job, row)
}

func (r *Registry) readRow(ctx context.Context, job string) (*Entry, error) {
	rows, err := r.store.ReadRows(ctx, model.SheetSchedule)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row[colSchedJob] != job {
			continue
		}
		ent := &Entry{Job: job, LastStatus: model.Outcome(row[colSchedStatus])}
		if raw := row[colSchedLastRun]; raw != "" {
			if at, err := time.Parse(time.RFC3339, raw); err == nil {
				ent.LastRunAt = at
			}
		}
		return ent, nil
	}
	return nil, nil
}
