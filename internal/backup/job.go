package backup

import (
	"context"
	"fmt"

	"sheetops/internal/sched"
)

// Job adapts the manager's Snapshot into a schedulable handler.
type Job struct {
	m *Manager
}

func NewJob(m *Manager) *Job { return &Job{m: m} }

func (j *Job) Name() string { return "backup" }

func (j *Job) Run(ctx context.Context) (sched.Result, error) {
	snap, err := j.m.Snapshot(ctx)
	rows := 0
	for _, n := range snap.RowCounts {
		rows += n
	}
	res := sched.Result{Detail: fmt.Sprintf("snapshot %s, %d sheet(s), %d row(s)",
		snap.Ref, len(snap.RowCounts), rows)}
	res.Counts.BackedUp = rows
	if err != nil {
		return res, err
	}
	return res, nil
}
