// Package notify renders templated messages and delivers them grouped per
// recipient. Delivery is best-effort: one recipient's failure never blocks
// the rest, and batch-level failure escalates to the administrator exactly
// once per batch.
package notify

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"sheetops/internal/model"
	"sheetops/pkg/logx"
)

// Config controls delivery behavior.
type Config struct {
	AdminEmail string
	AdminName  string

	// FailureThreshold is the batch failure rate above which one
	// ErrorNotification is raised to the administrator. Zero means the
	// default of 0.5.
	FailureThreshold float64

	// RatePerSec caps outbound sends. Zero means 10.
	RatePerSec int

	// Parallel bounds concurrent delivery attempts. Zero means 4.
	Parallel int
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 0.5
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 10
	}
	if c.Parallel <= 0 {
		c.Parallel = 4
	}
	if c.AdminName == "" {
		c.AdminName = "Administrator"
	}
	return c
}

// Delivery is the per-recipient outcome of one send attempt.
type Delivery struct {
	To      string
	Kind    Kind
	Subject string
	Err     error
}

// DeliveryReport aggregates one batch.
type DeliveryReport struct {
	Deliveries []Delivery
	Sent       int
	Failed     int
	Escalated  bool
}

func (r DeliveryReport) FailureRate() float64 {
	total := r.Sent + r.Failed
	if total == 0 {
		return 0
	}
	return float64(r.Failed) / float64(total)
}

// Dispatcher owns the pending-intent buffer and the grouped delivery path.
// Handlers enqueue intents; the engine (or the handler itself) flushes them
// after the unit of work completes.
type Dispatcher struct {
	cfg     Config
	gw      Gateway
	log     logx.Logger
	limiter *rate.Limiter

	mu      sync.Mutex
	pending []Message
}

func NewDispatcher(cfg Config, gw Gateway, log logx.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		cfg:     cfg,
		gw:      gw,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

// Enqueue buffers a rendered message for the next flush.
func (d *Dispatcher) Enqueue(msg Message) {
	d.mu.Lock()
	d.pending = append(d.pending, msg)
	d.mu.Unlock()
}

// Pending reports how many intents are buffered.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// QueueTaskAssignment buffers the assignment notice for a generated task.
func (d *Dispatcher) QueueTaskAssignment(member model.TeamMember, task model.Task) {
	d.Enqueue(TaskAssignment(member, task))
}

// QueueIntegrityAlert buffers the administrator alert for a validation pass
// that found Error-severity violations.
func (d *Dispatcher) QueueIntegrityAlert(errorCount int, summary string) {
	d.Enqueue(ErrorNotification(d.cfg.AdminEmail, d.cfg.AdminName,
		"data-validator", string(model.OutcomePartialFailure),
		fmt.Sprintf("%d integrity error(s): %s", errorCount, summary)))
}

// Flush delivers everything buffered since the last flush as one batch.
func (d *Dispatcher) Flush(ctx context.Context) DeliveryReport {
	d.mu.Lock()
	batch := d.pending
	d.pending = nil
	d.mu.Unlock()
	return d.SendAll(ctx, batch)
}

// SendAll delivers a batch with independent per-recipient attempts. When the
// batch failure rate exceeds the configured threshold, one ErrorNotification
// goes to the administrator, once per batch, never per failure, and never
// for batches that are themselves error notifications.
func (d *Dispatcher) SendAll(ctx context.Context, msgs []Message) DeliveryReport {
	var rep DeliveryReport
	if len(msgs) == 0 {
		return rep
	}

	rep.Deliveries = make([]Delivery, len(msgs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Parallel)
	for i, msg := range msgs {
		i, msg := i, msg
		g.Go(func() error {
			err := d.sendOne(gctx, msg)
			rep.Deliveries[i] = Delivery{To: msg.To, Kind: msg.Kind, Subject: msg.Subject, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	allErrors := true
	for _, del := range rep.Deliveries {
		if del.Err != nil {
			rep.Failed++
			d.log.Warn("delivery failed",
				logx.String("to", del.To),
				logx.String("kind", string(del.Kind)),
				logx.Err(del.Err))
		} else {
			rep.Sent++
		}
		if del.Kind != KindError {
			allErrors = false
		}
	}

	if rep.FailureRate() > d.cfg.FailureThreshold && !allErrors {
		d.escalateBatch(ctx, rep)
		rep.Escalated = true
	}
	return rep
}

func (d *Dispatcher) sendOne(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("message %q has no recipient", msg.Subject)
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	return d.gw.Send(ctx, msg.To, msg.Subject, msg.HTML, msg.Text)
}

// escalateBatch sends the batch-failure summary directly through the
// gateway: it must never be suppressed by the threshold check it serves.
func (d *Dispatcher) escalateBatch(ctx context.Context, rep DeliveryReport) {
	detail := fmt.Sprintf("%d of %d deliveries failed (rate %.0f%%)",
		rep.Failed, rep.Sent+rep.Failed, rep.FailureRate()*100)
	msg := ErrorNotification(d.cfg.AdminEmail, d.cfg.AdminName,
		"notification-dispatch", "batch failure", detail)
	if err := d.gw.Send(ctx, msg.To, msg.Subject, msg.HTML, msg.Text); err != nil {
		d.log.Error("batch failure escalation undeliverable", logx.Err(err))
		return
	}
	d.log.Warn("batch failure escalated to administrator", logx.String("detail", detail))
}

// JobFailure implements the engine's Alerter: one administrator notification
// per failed invocation, delivered immediately.
func (d *Dispatcher) JobFailure(ctx context.Context, job string, outcome model.Outcome, detail string) {
	msg := ErrorNotification(d.cfg.AdminEmail, d.cfg.AdminName, job, string(outcome), detail)
	if err := d.gw.Send(ctx, msg.To, msg.Subject, msg.HTML, msg.Text); err != nil {
		d.log.Error("failure notification undeliverable",
			logx.String("job", job), logx.Err(err))
	}
}
