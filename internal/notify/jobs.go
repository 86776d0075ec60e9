package notify

import (
	"context"
	"fmt"
	"time"

	"sheetops/internal/model"
	"sheetops/internal/sched"
	"sheetops/internal/store"
	"sheetops/pkg/logx"
)

// Jobs bundles the scheduled notification handlers. Each handler reads the
// sheets it needs, builds grouped messages, and sends them as one batch.
type Jobs struct {
	store store.Store
	d     *Dispatcher
	log   logx.Logger
	nowFn func() time.Time
}

func NewJobs(st store.Store, d *Dispatcher, log logx.Logger) *Jobs {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Jobs{store: st, d: d, log: log, nowFn: time.Now}
}

// WithClock overrides the jobs' time source.
func (j *Jobs) WithClock(now func() time.Time) *Jobs {
	j.nowFn = now
	return j
}

// DailySummary is the daily per-member open-task digest.
func (j *Jobs) DailySummary() sched.Handler {
	return sched.HandlerFunc{JobName: "daily-summary", Fn: func(ctx context.Context) (sched.Result, error) {
		var res sched.Result
		tasks, members, warnings, err := j.loadTasksAndMembers(ctx)
		if err != nil {
			return res, err
		}
		res.Warnings = warnings
		msgs := BuildDailySummaries(members, tasks, j.nowFn())
		return j.deliver(ctx, res, msgs)
	}}
}

// OverdueReminders groups overdue tasks per assignee, one message each.
func (j *Jobs) OverdueReminders() sched.Handler {
	return sched.HandlerFunc{JobName: "overdue-reminders", Fn: func(ctx context.Context) (sched.Result, error) {
		var res sched.Result
		tasks, members, warnings, err := j.loadTasksAndMembers(ctx)
		if err != nil {
			return res, err
		}
		res.Warnings = warnings
		msgs, buildWarnings := BuildOverdueReminders(members, tasks, j.nowFn())
		res.Warnings = append(res.Warnings, buildWarnings...)
		return j.deliver(ctx, res, msgs)
	}}
}

// KpiAlerts sends the administrator one digest of Red-status metrics.
func (j *Jobs) KpiAlerts() sched.Handler {
	return sched.HandlerFunc{JobName: "kpi-alerts", Fn: func(ctx context.Context) (sched.Result, error) {
		var res sched.Result
		kpis, warnings, err := j.loadKPIs(ctx)
		if err != nil {
			return res, err
		}
		res.Warnings = warnings
		msg, due := BuildKpiAlerts(kpis, j.d.cfg.AdminEmail, j.d.cfg.AdminName)
		if !due {
			res.Detail = "no KPI alerts, all metrics performing"
			return res, nil
		}
		return j.deliver(ctx, res, []Message{msg})
	}}
}

// WeeklyReport sends the administrator the weekly tallies.
func (j *Jobs) WeeklyReport() sched.Handler {
	return sched.HandlerFunc{JobName: "weekly-report", Fn: func(ctx context.Context) (sched.Result, error) {
		var res sched.Result
		tasks, _, warnings, err := j.loadTasksAndMembers(ctx)
		if err != nil {
			return res, err
		}
		kpis, kpiWarnings, err := j.loadKPIs(ctx)
		if err != nil {
			return res, err
		}
		res.Warnings = append(warnings, kpiWarnings...)
		now := j.nowFn()
		stats := BuildWeeklyStats(tasks, kpis, now)
		msg := WeeklyReport(j.d.cfg.AdminEmail, j.d.cfg.AdminName, stats, now)
		return j.deliver(ctx, res, []Message{msg})
	}}
}

// FlushAfter wraps a handler so that intents it enqueued on the dispatcher
// are delivered as one batch once the handler returns. The handler itself
// never performs delivery.
func FlushAfter(h sched.Handler, d *Dispatcher) sched.Handler {
	return sched.HandlerFunc{JobName: h.Name(), Fn: func(ctx context.Context) (sched.Result, error) {
		res, err := h.Run(ctx)
		rep := d.Flush(ctx)
		res.Counts.Notified += rep.Sent
		for _, del := range rep.Deliveries {
			if del.Err != nil {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("delivery to %s failed: %v", del.To, del.Err))
			}
		}
		return res, err
	}}
}

// deliver sends one batch and folds per-recipient failures into warnings so
// the engine classifies partial delivery correctly.
func (j *Jobs) deliver(ctx context.Context, res sched.Result, msgs []Message) (sched.Result, error) {
	if len(msgs) == 0 {
		res.Detail = "nothing to send"
		return res, nil
	}
	rep := j.d.SendAll(ctx, msgs)
	res.Counts.Notified = rep.Sent
	for _, del := range rep.Deliveries {
		if del.Err != nil {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("delivery to %s failed: %v", del.To, del.Err))
		}
	}
	res.Detail = fmt.Sprintf("sent %d of %d message(s)", rep.Sent, len(msgs))
	if rep.Sent == 0 {
		return res, fmt.Errorf("all %d deliveries failed", rep.Failed)
	}
	return res, nil
}

func (j *Jobs) loadTasksAndMembers(ctx context.Context) ([]model.Task, []model.TeamMember, []string, error) {
	var warnings []string

	taskRows, err := j.store.ReadRows(ctx, model.SheetTasks)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read %s: %w", model.SheetTasks, err)
	}
	tasks := make([]model.Task, 0, len(taskRows))
	for i, r := range taskRows {
		t, err := model.TaskFromRow(r)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("task row %d unreadable: %v", i+1, err))
			continue
		}
		tasks = append(tasks, t)
	}

	memberRows, err := j.store.ReadRows(ctx, model.SheetTeam)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read %s: %w", model.SheetTeam, err)
	}
	members := make([]model.TeamMember, 0, len(memberRows))
	for i, r := range memberRows {
		m, err := model.MemberFromRow(r)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("member row %d unreadable: %v", i+1, err))
			continue
		}
		members = append(members, m)
	}
	return tasks, members, warnings, nil
}

func (j *Jobs) loadKPIs(ctx context.Context) ([]model.KpiEntry, []string, error) {
	rows, err := j.store.ReadRows(ctx, model.SheetKPIs)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", model.SheetKPIs, err)
	}
	var warnings []string
	kpis := make([]model.KpiEntry, 0, len(rows))
	for i, r := range rows {
		k, err := model.KpiFromRow(r)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("kpi row %d unreadable: %v", i+1, err))
			continue
		}
		kpis = append(kpis, k)
	}
	return kpis, warnings, nil
}
