package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"sheetops/internal/model"
	"sheetops/pkg/logx"
)

// fakeGateway records sends and fails recipients listed in failTo.
type fakeGateway struct {
	mu     sync.Mutex
	sent   []string // "to|subject"
	failTo map[string]bool
}

func (g *fakeGateway) Send(_ context.Context, to, subject, _, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failTo[to] {
		return errors.New("mailbox unavailable")
	}
	g.sent = append(g.sent, to+"|"+subject)
	return nil
}

func (g *fakeGateway) sentTo(to string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, s := range g.sent {
		if strings.HasPrefix(s, to+"|") {
			n++
		}
	}
	return n
}

func newTestDispatcher(gw Gateway) *Dispatcher {
	return NewDispatcher(Config{
		AdminEmail: "admin@example.com",
		AdminName:  "Admin",
		RatePerSec: 1000,
	}, gw, logx.Nop())
}

func msgTo(to string) Message {
	return Message{Kind: KindDailySummary, To: to, Subject: "s", HTML: "<p>h</p>", Text: "t"}
}

func TestSendAllIndependentFailures(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{failTo: map[string]bool{"b@example.com": true}}
	d := newTestDispatcher(gw)

	rep := d.SendAll(context.Background(), []Message{
		msgTo("a@example.com"), msgTo("b@example.com"), msgTo("c@example.com"),
	})
	if rep.Sent != 2 || rep.Failed != 1 {
		t.Fatalf("Sent/Failed = %d/%d, want 2/1", rep.Sent, rep.Failed)
	}
	// 1/3 failure rate is under the 0.5 default threshold.
	if rep.Escalated {
		t.Fatal("batch under the threshold must not escalate")
	}
	if gw.sentTo("admin@example.com") != 0 {
		t.Fatal("no administrator mail expected")
	}
}

func TestSendAllEscalatesOncePerBatch(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{failTo: map[string]bool{
		"a@example.com": true, "b@example.com": true, "c@example.com": true,
	}}
	d := newTestDispatcher(gw)

	rep := d.SendAll(context.Background(), []Message{
		msgTo("a@example.com"), msgTo("b@example.com"), msgTo("c@example.com"), msgTo("d@example.com"),
	})
	if rep.Failed != 3 {
		t.Fatalf("Failed = %d, want 3", rep.Failed)
	}
	if !rep.Escalated {
		t.Fatal("batch over the threshold must escalate")
	}
	if got := gw.sentTo("admin@example.com"); got != 1 {
		t.Fatalf("administrator notifications = %d, want exactly 1 per batch", got)
	}
}

func TestErrorBatchNeverEscalates(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{failTo: map[string]bool{"admin@example.com": true}}
	d := newTestDispatcher(gw)

	// A failing batch of error notifications must not trigger a recursive
	// error notification.
	batch := []Message{
		ErrorNotification("admin@example.com", "Admin", "backup", "Failure", "disk full"),
		ErrorNotification("admin@example.com", "Admin", "backup", "Failure", "disk full again"),
	}
	rep := d.SendAll(context.Background(), batch)
	if rep.Failed != 2 {
		t.Fatalf("Failed = %d, want 2", rep.Failed)
	}
	if rep.Escalated {
		t.Fatal("error-notification batches must never escalate")
	}
}

func TestFlushDrainsPendingOnce(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	d := newTestDispatcher(gw)

	member := model.TeamMember{Name: "Ana", Email: "ana@example.com"}
	task := model.Task{ID: "t-1", Name: "Report", DueDate: time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)}
	d.QueueTaskAssignment(member, task)
	d.QueueTaskAssignment(member, task)
	if d.Pending() != 2 {
		t.Fatalf("Pending = %d, want 2", d.Pending())
	}

	rep := d.Flush(context.Background())
	if rep.Sent != 2 {
		t.Fatalf("Sent = %d, want 2", rep.Sent)
	}
	if d.Pending() != 0 {
		t.Fatalf("Pending after flush = %d, want 0", d.Pending())
	}
	if rep = d.Flush(context.Background()); rep.Sent != 0 {
		t.Fatalf("second flush sent %d, want 0", rep.Sent)
	}
}

func TestJobFailureGoesStraightToGateway(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	d := newTestDispatcher(gw)

	d.JobFailure(context.Background(), "backup", model.OutcomeFailure, "disk full")
	if got := gw.sentTo("admin@example.com"); got != 1 {
		t.Fatalf("administrator notifications = %d, want 1", got)
	}
	if d.Pending() != 0 {
		t.Fatal("JobFailure must not buffer")
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()
	cfg := Config{}.withDefaults()
	if cfg.FailureThreshold != 0.5 {
		t.Fatalf("FailureThreshold = %v, want 0.5", cfg.FailureThreshold)
	}
	if cfg.RatePerSec != 10 || cfg.Parallel != 4 {
		t.Fatalf("RatePerSec/Parallel = %d/%d, want 10/4", cfg.RatePerSec, cfg.Parallel)
	}
}
