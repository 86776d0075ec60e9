package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"sheetops/internal/model"
	"sheetops/internal/sched"
	"sheetops/internal/store"
	"sheetops/pkg/logx"
)

func newJobsFixture(t *testing.T, gw Gateway) (*Jobs, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	d := newTestDispatcher(gw)
	j := NewJobs(st, d, logx.Nop()).WithClock(func() time.Time { return buildNow })
	return j, st
}

func seedRow(t *testing.T, st store.Store, sheet string, row store.Row) {
	t.Helper()
	if err := st.AppendRow(context.Background(), sheet, row); err != nil {
		t.Fatal(err)
	}
}

func TestOverdueRemindersJob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	gw := &fakeGateway{}
	j, st := newJobsFixture(t, gw)

	seedRow(t, st, model.SheetTeam, member("Ana", "ana@example.com").Row())
	past := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	seedRow(t, st, model.SheetTasks, task("t-1", "ana@example.com", past, model.StatusToDo).Row())
	seedRow(t, st, model.SheetTasks, task("t-2", "ana@example.com", past, model.StatusToDo).Row())

	res, err := j.OverdueReminders().Run(ctx)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Counts.Notified != 1 {
		t.Fatalf("Notified = %d, want 1 grouped reminder", res.Counts.Notified)
	}
	if gw.sentTo("ana@example.com") != 1 {
		t.Fatalf("sent = %d, want 1", gw.sentTo("ana@example.com"))
	}
}

func TestKpiAlertsJobNothingDue(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	j, st := newJobsFixture(t, gw)
	k := model.KpiEntry{
		ID: "k-1", Date: buildNow, Employee: "Ana", KpiName: "Sales",
		Target: 100, Actual: 99, Status: model.KpiGreen, Trend: model.TrendStable,
	}
	seedRow(t, st, model.SheetKPIs, k.Row())

	res, err := j.KpiAlerts().Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Counts.Notified != 0 {
		t.Fatalf("Notified = %d, want 0 when all metrics perform", res.Counts.Notified)
	}
	if len(gw.sent) != 0 {
		t.Fatal("no mail expected")
	}
}

func TestWeeklyReportJob(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	j, st := newJobsFixture(t, gw)
	seedRow(t, st, model.SheetTasks, task("t-1", "ana@example.com", buildNow, model.StatusDone).Row())

	res, err := j.WeeklyReport().Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Counts.Notified != 1 {
		t.Fatalf("Notified = %d, want 1", res.Counts.Notified)
	}
	if gw.sentTo("admin@example.com") != 1 {
		t.Fatal("weekly report must go to the administrator")
	}
}

func TestDeliverAllFailedIsError(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{failTo: map[string]bool{"ana@example.com": true}}
	j, st := newJobsFixture(t, gw)

	seedRow(t, st, model.SheetTeam, member("Ana", "ana@example.com").Row())
	past := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	seedRow(t, st, model.SheetTasks, task("t-1", "ana@example.com", past, model.StatusToDo).Row())

	_, err := j.OverdueReminders().Run(context.Background())
	if err == nil {
		t.Fatal("a fully failed batch must surface as an error")
	}
}

func TestFlushAfterDeliversQueuedIntents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	gw := &fakeGateway{}
	d := newTestDispatcher(gw)

	inner := sched.HandlerFunc{JobName: "gen", Fn: func(context.Context) (sched.Result, error) {
		d.QueueTaskAssignment(member("Ana", "ana@example.com"),
			task("t-1", "ana@example.com", buildNow, model.StatusToDo))
		var res sched.Result
		res.Counts.Generated = 1
		return res, nil
	}}

	res, err := FlushAfter(inner, d).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Counts.Generated != 1 || res.Counts.Notified != 1 {
		t.Fatalf("counts = %+v, want generated=1 notified=1", res.Counts)
	}
	if gw.sentTo("ana@example.com") != 1 {
		t.Fatal("queued assignment was not delivered")
	}
	if d.Pending() != 0 {
		t.Fatal("flush left intents behind")
	}
}

func TestFlushAfterKeepsHandlerError(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	d := newTestDispatcher(gw)
	sentinel := errors.New("boom")

	inner := sched.HandlerFunc{JobName: "gen", Fn: func(context.Context) (sched.Result, error) {
		return sched.Result{}, sentinel
	}}
	if _, err := FlushAfter(inner, d).Run(context.Background()); !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want the handler's error", err)
	}
}
