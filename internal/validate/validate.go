// Package validate performs read-only integrity analysis over the tabular
// store. It reports violations; it never mutates rows and never raises
// findings as errors.
package validate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"sheetops/internal/model"
	"sheetops/internal/store"
	"sheetops/pkg/logx"
)

type Severity string

const (
	SeverityError   Severity = "Error"
	SeverityWarning Severity = "Warning"
)

// Check names, used for stable ordering and in audit detail.
const (
	CheckDanglingReference = "dangling-reference"
	CheckDomainViolation   = "domain-violation"
	CheckRequiredField     = "required-field"
	CheckDuplicateID       = "duplicate-identifier"
	CheckStaleDueDate      = "stale-due-date"
	CheckOrphanDelegation  = "orphan-delegation"
)

type Violation struct {
	Sheet    string
	Row      int // 1-based position within the sheet
	Check    string
	Severity Severity
	Detail   string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s[%s] %s row %d: %s", v.Severity, v.Check, v.Sheet, v.Row, v.Detail)
}

// Report is the ordered violation list plus severity tallies. Order is
// stable: sheet, then row, then check name.
type Report struct {
	Violations []Violation
	Checked    int // rows examined
	Errors     int
	Warnings   int
}

func (r Report) Summary() string {
	return fmt.Sprintf("%d row(s) checked, %d error(s), %d warning(s)", r.Checked, r.Errors, r.Warnings)
}

type Validator struct {
	store store.Store
	log   logx.Logger
	nowFn func() time.Time
}

func New(st store.Store, log logx.Logger) *Validator {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Validator{store: st, log: log, nowFn: time.Now}
}

// WithClock overrides the validator's time source.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.nowFn = now
	return v
}

// Run executes every check over the business sheets.
func (v *Validator) Run(ctx context.Context) (Report, error) {
	var rep Report

	taskRows, err := v.store.ReadRows(ctx, model.SheetTasks)
	if err != nil {
		return rep, fmt.Errorf("read %s: %w", model.SheetTasks, err)
	}
	delegationRows, err := v.store.ReadRows(ctx, model.SheetDelegations)
	if err != nil {
		return rep, fmt.Errorf("read %s: %w", model.SheetDelegations, err)
	}
	kpiRows, err := v.store.ReadRows(ctx, model.SheetKPIs)
	if err != nil {
		return rep, fmt.Errorf("read %s: %w", model.SheetKPIs, err)
	}
	memberRows, err := v.store.ReadRows(ctx, model.SheetTeam)
	if err != nil {
		return rep, fmt.Errorf("read %s: %w", model.SheetTeam, err)
	}
	rep.Checked = len(taskRows) + len(delegationRows) + len(kpiRows) + len(memberRows)

	memberEmails := map[string]bool{}
	for _, r := range memberRows {
		if email := strings.TrimSpace(r[model.ColMemberEmail]); email != "" {
			memberEmails[email] = true
		}
	}
	taskIDs := map[string]int{}
	for _, r := range taskRows {
		if id := r[model.ColTaskID]; id != "" {
			taskIDs[id]++
		}
	}

	today := midnight(v.nowFn())

	v.checkTasks(&rep, taskRows, memberEmails, taskIDs, today)
	v.checkDelegations(&rep, delegationRows, memberEmails, taskIDs)
	v.checkKPIs(&rep, kpiRows)
	v.checkMembers(&rep, memberRows)

	sort.SliceStable(rep.Violations, func(i, j int) bool {
		a, b := rep.Violations[i], rep.Violations[j]
		if a.Sheet != b.Sheet {
			return a.Sheet < b.Sheet
		}
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Check < b.Check
	})
	for _, viol := range rep.Violations {
		if viol.Severity == SeverityError {
			rep.Errors++
		} else {
			rep.Warnings++
		}
	}
	return rep, nil
}

// TargetErrors counts Error-severity violations restricted to the given
// sheets. The restore guard uses this to refuse overwriting sheets that are
// currently failing integrity checks.
func (v *Validator) TargetErrors(ctx context.Context, sheets ...string) (int, error) {
	rep, err := v.Run(ctx)
	if err != nil {
		return 0, err
	}
	targets := map[string]bool{}
	for _, s := range sheets {
		targets[s] = true
	}
	n := 0
	for _, viol := range rep.Violations {
		if viol.Severity == SeverityError && targets[viol.Sheet] {
			n++
		}
	}
	return n, nil
}

func (v *Validator) checkTasks(rep *Report, rows []store.Row, members map[string]bool, ids map[string]int, today time.Time) {
	for i, r := range rows {
		row := i + 1
		requireFields(rep, model.SheetTasks, row, r,
			model.ColTaskID, model.ColTaskName, model.ColAssignedTo,
			model.ColDueDate, model.ColPriority, model.ColStatus, model.ColFrequency)

		if id := r[model.ColTaskID]; id != "" && ids[id] > 1 {
			add(rep, model.SheetTasks, row, CheckDuplicateID, SeverityError,
				fmt.Sprintf("task id %q appears %d times", id, ids[id]))
		}
		if assignee := r[model.ColAssignedTo]; assignee != "" && !members[assignee] {
			add(rep, model.SheetTasks, row, CheckDanglingReference, SeverityError,
				fmt.Sprintf("assignee %q not present in %s", assignee, model.SheetTeam))
		}
		domain(rep, model.SheetTasks, row, model.ColPriority, r[model.ColPriority], model.Priority(r[model.ColPriority]).Valid())
		domain(rep, model.SheetTasks, row, model.ColStatus, r[model.ColStatus], model.Status(r[model.ColStatus]).Valid())
		domain(rep, model.SheetTasks, row, model.ColFrequency, r[model.ColFrequency], model.Frequency(r[model.ColFrequency]).Valid())

		// Overdue detection is intentional, so a past due date is
		// informational, not a data error.
		if due, err := time.Parse(model.DateLayout, r[model.ColDueDate]); err == nil {
			if due.Before(today) && model.Status(r[model.ColStatus]) != model.StatusDone {
				add(rep, model.SheetTasks, row, CheckStaleDueDate, SeverityWarning,
					fmt.Sprintf("task %q due %s is overdue", r[model.ColTaskID], r[model.ColDueDate]))
			}
		}
	}
}

func (v *Validator) checkDelegations(rep *Report, rows []store.Row, members map[string]bool, taskIDs map[string]int) {
	for i, r := range rows {
		row := i + 1
		requireFields(rep, model.SheetDelegations, row, r,
			model.ColDelegationID, model.ColDelegatedTask, model.ColResponsible,
			model.ColDeadline, model.ColStatus)

		if resp := r[model.ColResponsible]; resp != "" && !members[resp] {
			add(rep, model.SheetDelegations, row, CheckDanglingReference, SeverityError,
				fmt.Sprintf("responsible %q not present in %s", resp, model.SheetTeam))
		}
		domain(rep, model.SheetDelegations, row, model.ColStatus, r[model.ColStatus],
			model.DelegationStatus(r[model.ColStatus]).Valid())

		if ref := r[model.ColDelegatedTask]; ref != "" && taskIDs[ref] == 0 {
			add(rep, model.SheetDelegations, row, CheckOrphanDelegation, SeverityWarning,
				fmt.Sprintf("task reference %q does not resolve to a task", ref))
		}
	}
}

func (v *Validator) checkKPIs(rep *Report, rows []store.Row) {
	for i, r := range rows {
		row := i + 1
		requireFields(rep, model.SheetKPIs, row, r,
			model.ColEntryID, model.ColDate, model.ColEmployee,
			model.ColKpiName, model.ColTarget, model.ColActual, model.ColStatus)
		domain(rep, model.SheetKPIs, row, model.ColStatus, r[model.ColStatus],
			model.KpiStatus(r[model.ColStatus]).Valid())
	}
}

func (v *Validator) checkMembers(rep *Report, rows []store.Row) {
	for i, r := range rows {
		requireFields(rep, model.SheetTeam, i+1, r, model.ColMemberName, model.ColMemberEmail)
	}
}

func requireFields(rep *Report, sheet string, row int, r store.Row, cols ...string) {
	for _, col := range cols {
		if strings.TrimSpace(r[col]) == "" {
			add(rep, sheet, row, CheckRequiredField, SeverityError,
				fmt.Sprintf("required field %q is empty", col))
		}
	}
}

func domain(rep *Report, sheet string, row int, col, val string, valid bool) {
	if val == "" || valid {
		// Empty values are the required-field check's concern.
		return
	}
	add(rep, sheet, row, CheckDomainViolation, SeverityError,
		fmt.Sprintf("%s value %q outside its enumerated set", col, val))
}

func add(rep *Report, sheet string, row int, check string, sev Severity, detail string) {
	rep.Violations = append(rep.Violations, Violation{
		Sheet: sheet, Row: row, Check: check, Severity: sev, Detail: detail,
	})
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
