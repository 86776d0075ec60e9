// Package sched implements the trigger scheduler: the authoritative mapping
// from cadence to handler, and the run-lock discipline that guarantees at
// most one concurrent execution per job under at-least-once trigger delivery.
package sched

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"sheetops/internal/audit"
	"sheetops/internal/model"
	"sheetops/pkg/logx"
)

// Alerter delivers the single administrator notification raised for a failed
// or partially failed invocation.
type Alerter interface {
	JobFailure(ctx context.Context, job string, outcome model.Outcome, detail string)
}

type nopAlerter struct{}

func (nopAlerter) JobFailure(context.Context, string, model.Outcome, string) {}

// Engine reacts to trigger firings. It does not sleep or poll; cadence
// evaluation belongs to the external trigger source.
type Engine struct {
	reg   *Registry
	locks *LockTable
	audit *audit.Log
	alert Alerter
	log   logx.Logger
	nowFn func() time.Time
}

type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.nowFn = now }
}

func NewEngine(reg *Registry, locks *LockTable, auditLog *audit.Log, alert Alerter, log logx.Logger, opts ...Option) *Engine {
	if alert == nil {
		alert = nopAlerter{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Engine{reg: reg, locks: locks, audit: auditLog, alert: alert, log: log, nowFn: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Register installs or replaces the schedule entry for job.
func (e *Engine) Register(ctx context.Context, job string, cadence Cadence, h Handler) error {
	if strings.TrimSpace(job) == "" {
		return fmt.Errorf("%w: job name required", ErrConfig)
	}
	if h == nil {
		return fmt.Errorf("%w: %s: handler required", ErrConfig, job)
	}
	if err := cadence.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConfig, job, err)
	}
	if err := e.reg.Put(ctx, job, cadence, h); err != nil {
		return fmt.Errorf("register %s: %w", job, err)
	}
	e.log.Debug("job registered", logx.String("job", job), logx.String("cadence", cadence.String()))
	return nil
}

// Jobs lists registered entries.
func (e *Engine) Jobs() []Entry { return e.reg.Jobs() }

// OnFire handles one trigger firing. It is the only inbound entry point.
// Overlap and duplicate-window firings resolve to SkippedLocked, which is a
// normal outcome, not an error. Handler faults never escape: they become
// audit records and one administrator alert.
func (e *Engine) OnFire(ctx context.Context, job string) (model.Outcome, error) {
	ent := e.reg.Get(job)
	if ent == nil {
		e.log.Error("fired job has no registration", logx.String("job", job))
		return "", fmt.Errorf("%w: %s", ErrUnknownJob, job)
	}
	now := e.nowFn()

	// A second firing within the same cadence window is absorbed exactly
	// like a lock conflict. LastRunAt only advances on executed runs, so a
	// skip never shadows a future window.
	if !ent.LastRunAt.IsZero() && !ent.LastRunAt.Before(ent.Cadence.WindowStart(now)) {
		e.log.Debug("duplicate firing absorbed",
			logx.String("job", job),
			logx.Time("last_run", ent.LastRunAt))
		e.reg.MarkSkipped(ctx, job)
		e.audit.Append(ctx, audit.Record{
			At:      now,
			Job:     job,
			Outcome: model.OutcomeSkippedLocked,
			Detail:  "duplicate firing within cadence window",
		})
		return model.OutcomeSkippedLocked, nil
	}

	ok, err := e.locks.Acquire(ctx, job, now)
	if err != nil {
		e.audit.Append(ctx, audit.Record{
			At:      now,
			Job:     job,
			Outcome: model.OutcomeFailure,
			Detail:  fmt.Sprintf("lock acquire: %v", err),
		})
		e.alert.JobFailure(ctx, job, model.OutcomeFailure, err.Error())
		return model.OutcomeFailure, nil
	}
	if !ok {
		e.reg.MarkSkipped(ctx, job)
		e.audit.Append(ctx, audit.Record{
			At:      now,
			Job:     job,
			Outcome: model.OutcomeSkippedLocked,
			Detail:  "run lock held",
		})
		return model.OutcomeSkippedLocked, nil
	}
	defer e.locks.Release(ctx, job)

	started := now
	res, runErr := e.invoke(ctx, ent.Handler)
	outcome := classify(res, runErr)

	detail := res.detailText()
	if runErr != nil {
		if detail != "" {
			detail += " | "
		}
		detail += runErr.Error()
	}

	e.reg.MarkRun(ctx, job, started, outcome)
	e.audit.Append(ctx, audit.Record{
		At:      started,
		Job:     job,
		Outcome: outcome,
		Counts:  res.Counts,
		Detail:  detail,
	})
	if outcome == model.OutcomeFailure || outcome == model.OutcomePartialFailure {
		e.alert.JobFailure(ctx, job, outcome, detail)
	}
	return outcome, nil
}

// RunNow is the manual invocation surface. It follows the exact OnFire path,
// so operational re-runs keep the same locking and idempotence guarantees.
func (e *Engine) RunNow(ctx context.Context, job string) (model.Outcome, error) {
	return e.OnFire(ctx, job)
}

func (e *Engine) invoke(ctx context.Context, h Handler) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			e.log.Error("handler panicked",
				logx.String("job", h.Name()),
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())))
		}
	}()
	return h.Run(ctx)
}

func classify(res Result, err error) model.Outcome {
	switch {
	case err == nil && len(res.Warnings) == 0:
		return model.OutcomeSuccess
	case err == nil:
		return model.OutcomePartialFailure
	case res.Counts.Any():
		return model.OutcomePartialFailure
	default:
		return model.OutcomeFailure
	}
}
