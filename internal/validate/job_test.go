package validate

import (
	"context"
	"testing"
	"time"

	"sheetops/internal/model"
	"sheetops/pkg/logx"
)

type captureSink struct {
	calls   int
	errors  int
	summary string
}

func (s *captureSink) QueueIntegrityAlert(errorCount int, summary string) {
	s.calls++
	s.errors = errorCount
	s.summary = summary
}

func TestJobEscalatesOnceOnErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newSeededStore(t)
	// Two Error-severity violations, one alert.
	for _, id := range []string{"x-1", "x-2"} {
		task := model.Task{
			ID:        id,
			Name:      "Bad",
			Assignee:  "ghost@example.com",
			DueDate:   time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			Priority:  model.PriorityLow,
			Status:    model.StatusToDo,
			Frequency: model.FreqOneTime,
		}
		if err := st.AppendRow(ctx, model.SheetTasks, task.Row()); err != nil {
			t.Fatal(err)
		}
	}

	sink := &captureSink{}
	v := New(st, logx.Nop()).WithClock(func() time.Time { return testNow })
	job := NewJob("integrity-check", v, sink)

	res, err := job.Run(ctx)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if sink.calls != 1 {
		t.Fatalf("alert calls = %d, want 1", sink.calls)
	}
	if sink.errors != 2 {
		t.Fatalf("alerted error count = %d, want 2", sink.errors)
	}
	if res.Counts.Validated != 3 {
		t.Fatalf("Validated = %d, want 3 rows checked", res.Counts.Validated)
	}
	if res.Detail == "" {
		t.Fatal("audit detail must carry the findings")
	}
}

func TestJobCleanDataNoAlert(t *testing.T) {
	t.Parallel()
	sink := &captureSink{}
	v := New(newSeededStore(t), logx.Nop()).WithClock(func() time.Time { return testNow })
	job := NewJob("integrity-check", v, sink)

	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sink.calls != 0 {
		t.Fatalf("alert calls = %d, want 0", sink.calls)
	}
	if res.Counts.Validated != 2 {
		t.Fatalf("Validated = %d, want 2", res.Counts.Validated)
	}
}
