// Package audit keeps the append-only record of automation activity. One row
// is written per job invocation; rows are never updated or deleted.
package audit

import (
	"context"
	"strconv"
	"time"

	"sheetops/internal/model"
	"sheetops/internal/store"
	"sheetops/pkg/logx"
)

const (
	colAt        = "Timestamp"
	colJob       = "Job"
	colOutcome   = "Outcome"
	colGenerated = "Generated"
	colNotified  = "Notified"
	colValidated = "Validated"
	colBackedUp  = "Backed Up"
	colDetail    = "Detail"
)

// Counts summarizes the useful work of one invocation.
type Counts struct {
	Generated int
	Notified  int
	Validated int
	BackedUp  int
}

func (c Counts) Any() bool {
	return c.Generated > 0 || c.Notified > 0 || c.Validated > 0 || c.BackedUp > 0
}

type Record struct {
	At      time.Time
	Job     string
	Outcome model.Outcome
	Counts  Counts
	Detail  string
}

type Log struct {
	store store.Store
	log   logx.Logger
}

func NewLog(st store.Store, log logx.Logger) *Log {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Log{store: st, log: log}
}

// Append records one invocation. Failures to persist are logged, not raised:
// losing an audit row must never fail the job that produced it.
func (l *Log) Append(ctx context.Context, rec Record) {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	row := store.Row{
		colAt:        rec.At.Format(time.RFC3339),
		colJob:       rec.Job,
		colOutcome:   string(rec.Outcome),
		colGenerated: strconv.Itoa(rec.Counts.Generated),
		colNotified:  strconv.Itoa(rec.Counts.Notified),
		colValidated: strconv.Itoa(rec.Counts.Validated),
		colBackedUp:  strconv.Itoa(rec.Counts.BackedUp),
		colDetail:    rec.Detail,
	}
	if err := l.store.AppendRow(ctx, model.SheetAudit, row); err != nil {
		l.log.Error("audit append failed", logx.String("job", rec.Job), logx.Err(err))
	}
	l.log.Info("job finished",
		logx.String("job", rec.Job),
		logx.String("outcome", string(rec.Outcome)),
		logx.Int("generated", rec.Counts.Generated),
		logx.Int("notified", rec.Counts.Notified),
		logx.Int("validated", rec.Counts.Validated),
		logx.Int("backed_up", rec.Counts.BackedUp),
	)
}

// Recent returns up to n newest records, newest first.
func (l *Log) Recent(ctx context.Context, n int) ([]Record, error) {
	rows, err := l.store.ReadRows(ctx, model.SheetAudit)
	if err != nil {
		return nil, err
	}
	var out []Record
	for i := len(rows) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, fromRow(rows[i]))
	}
	return out, nil
}

// ForJob returns every record for one job name, oldest first.
func (l *Log) ForJob(ctx context.Context, job string) ([]Record, error) {
	rows, err := l.store.ReadRows(ctx, model.SheetAudit)
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, r := range rows {
		if r[colJob] == job {
			out = append(out, fromRow(r))
		}
	}
	return out, nil
}

func fromRow(r store.Row) Record {
	at, _ := time.Parse(time.RFC3339, r[colAt])
	return Record{
		At:      at,
		Job:     r[colJob],
		Outcome: model.Outcome(r[colOutcome]),
		Counts: Counts{
			Generated: atoi(r[colGenerated]),
			Notified:  atoi(r[colNotified]),
			Validated: atoi(r[colValidated]),
			BackedUp:  atoi(r[colBackedUp]),
		},
		Detail: r[colDetail],
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
