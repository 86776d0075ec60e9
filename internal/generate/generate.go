// Package generate creates the next instance of every recurring task template
// without ever producing duplicates. Idempotence comes from the
// (template ID, target date) key: re-running the generator for the same
// window is a no-op, which makes duplicate trigger firings and manual re-runs
// safe.
package generate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sheetops/internal/model"
	"sheetops/internal/sched"
	"sheetops/internal/store"
	"sheetops/pkg/logx"
)

// Notifier receives task-assignment intents. The generator only enqueues;
// delivery happens elsewhere.
type Notifier interface {
	QueueTaskAssignment(member model.TeamMember, task model.Task)
}

type Generator struct {
	store  store.Store
	notify Notifier
	log    logx.Logger
	nowFn  func() time.Time
}

func New(st store.Store, notify Notifier, log logx.Logger) *Generator {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Generator{store: st, notify: notify, log: log, nowFn: time.Now}
}

// WithClock overrides the generator's time source.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.nowFn = now
	return g
}

func (g *Generator) Name() string { return "recurring-task-generator" }

// Run produces at most one new task instance per due template. A template is
// due once its anchor (the later of completion and due date) lies before
// today; instances scheduled for today or later wait for their cycle.
// Malformed templates are skipped with a warning and do not abort the run.
func (g *Generator) Run(ctx context.Context) (sched.Result, error) {
	var res sched.Result

	rows, err := g.store.ReadRows(ctx, model.SheetTasks)
	if err != nil {
		return res, fmt.Errorf("read tasks: %w", err)
	}
	memberRows, err := g.store.ReadRows(ctx, model.SheetTeam)
	if err != nil {
		return res, fmt.Errorf("read team members: %w", err)
	}
	members := map[string]model.TeamMember{}
	for _, r := range memberRows {
		m, err := model.MemberFromRow(r)
		if err != nil {
			continue
		}
		members[m.Email] = m
	}

	now := g.nowFn()
	today := midnight(now)

	tasks := make([]model.Task, 0, len(rows))
	existing := map[string]bool{}
	for i, r := range rows {
		t, err := model.TaskFromRow(r)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("row %d unreadable: %v", i+1, err))
			continue
		}
		tasks = append(tasks, t)
		if t.TemplateID != "" {
			existing[instanceKey(t.TemplateID, t.DueDate)] = true
		}
	}

	for _, tmpl := range tasks {
		if !tmpl.Frequency.Recurring() {
			continue
		}
		anchor := tmpl.DueDate
		if tmpl.CompletedAt.After(anchor) {
			anchor = tmpl.CompletedAt
		}
		if !midnight(anchor).Before(today) {
			continue
		}

		target, err := NextOccurrence(tmpl.Frequency, anchor)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("task %s: %v", tmpl.ID, err))
			continue
		}
		if existing[instanceKey(tmpl.ID, target)] {
			g.log.Debug("instance already exists",
				logx.String("template", tmpl.ID),
				logx.Time("target", target))
			continue
		}

		member, ok := members[tmpl.Assignee]
		if tmpl.Assignee == "" || !ok {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("task %s (%s): assignee %q not found, skipped", tmpl.ID, tmpl.Name, tmpl.Assignee))
			continue
		}

		next := model.Task{
			ID:         uuid.NewString(),
			Name:       tmpl.Name,
			Assignee:   tmpl.Assignee,
			DueDate:    target,
			Priority:   tmpl.Priority,
			Status:     model.StatusToDo,
			Frequency:  tmpl.Frequency,
			Category:   tmpl.Category,
			TemplateID: tmpl.ID,
		}
		if err := g.store.AppendRow(ctx, model.SheetTasks, next.Row()); err != nil {
			// Committed rows stay committed: the idempotence key makes the
			// retry create only what is missing.
			return res, fmt.Errorf("append task for template %s: %w", tmpl.ID, err)
		}
		existing[instanceKey(tmpl.ID, target)] = true
		res.Counts.Generated++
		if g.notify != nil {
			g.notify.QueueTaskAssignment(member, next)
		}
		g.log.Info("recurring task created",
			logx.String("template", tmpl.ID),
			logx.String("task", next.ID),
			logx.Time("due", target))
	}

	res.Detail = fmt.Sprintf("created %d task(s)", res.Counts.Generated)
	return res, nil
}

func instanceKey(templateID string, due time.Time) string {
	return templateID + "|" + due.Format(model.DateLayout)
}
