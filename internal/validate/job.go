package validate

import (
	"context"
	"strings"

	"sheetops/internal/sched"
)

// AlertSink receives the single administrator alert raised when a validation
// pass finds Error-severity violations.
type AlertSink interface {
	QueueIntegrityAlert(errorCount int, summary string)
}

// maxDetailViolations caps how many findings are copied into one audit row.
const maxDetailViolations = 20

// Job adapts the validator to a schedulable handler. Findings are reported
// through the audit log; they are never raised as run failures. When an
// AlertSink is attached, the job additionally escalates once per run if any
// Error-severity violation exists, keeping the alert decision separate from
// plain reporting runs.
type Job struct {
	jobName string
	v       *Validator
	alerts  AlertSink
}

func NewJob(name string, v *Validator, alerts AlertSink) *Job {
	return &Job{jobName: name, v: v, alerts: alerts}
}

func (j *Job) Name() string { return j.jobName }

func (j *Job) Run(ctx context.Context) (sched.Result, error) {
	var res sched.Result
	rep, err := j.v.Run(ctx)
	if err != nil {
		return res, err
	}
	res.Counts.Validated = rep.Checked

	var b strings.Builder
	b.WriteString(rep.Summary())
	for i, viol := range rep.Violations {
		if i == maxDetailViolations {
			b.WriteString("; ...")
			break
		}
		b.WriteString("; ")
		b.WriteString(viol.String())
	}
	res.Detail = b.String()

	if j.alerts != nil && rep.Errors > 0 {
		j.alerts.QueueIntegrityAlert(rep.Errors, rep.Summary())
	}
	return res, nil
}
