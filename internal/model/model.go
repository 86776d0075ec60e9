package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"sheetops/internal/store"
)

// Task is one row of Master_Tasks. A task with a recurring frequency acts as
// a template for the generator; generated instances carry TemplateID.
type Task struct {
	ID           string
	Name         string
	Assignee     string // team member email
	DueDate      time.Time
	Priority     Priority
	Status       Status
	Frequency    Frequency
	CompletedAt  time.Time // zero unless Status == Done
	SuggestedDue string
	Category     string
	TemplateID   string
}

func (t Task) Row() store.Row {
	completed := ""
	if !t.CompletedAt.IsZero() {
		completed = t.CompletedAt.Format(time.RFC3339)
	}
	return store.Row{
		ColTaskID:       t.ID,
		ColTaskName:     t.Name,
		ColAssignedTo:   t.Assignee,
		ColDueDate:      t.DueDate.Format(DateLayout),
		ColPriority:     string(t.Priority),
		ColStatus:       string(t.Status),
		ColFrequency:    string(t.Frequency),
		ColCompletedAt:  completed,
		ColSuggestedDue: t.SuggestedDue,
		ColCategory:     t.Category,
		ColTemplateID:   t.TemplateID,
	}
}

func TaskFromRow(r store.Row) (Task, error) {
	t := Task{
		ID:           r[ColTaskID],
		Name:         r[ColTaskName],
		Assignee:     r[ColAssignedTo],
		Priority:     Priority(r[ColPriority]),
		Status:       Status(r[ColStatus]),
		Frequency:    Frequency(r[ColFrequency]),
		SuggestedDue: r[ColSuggestedDue],
		Category:     r[ColCategory],
		TemplateID:   r[ColTemplateID],
	}
	if t.ID == "" {
		return Task{}, fmt.Errorf("task row missing %s", ColTaskID)
	}
	due, err := time.Parse(DateLayout, r[ColDueDate])
	if err != nil {
		return Task{}, fmt.Errorf("task %s: bad %s %q: %w", t.ID, ColDueDate, r[ColDueDate], err)
	}
	t.DueDate = due
	if raw := strings.TrimSpace(r[ColCompletedAt]); raw != "" {
		done, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Task{}, fmt.Errorf("task %s: bad %s %q: %w", t.ID, ColCompletedAt, raw, err)
		}
		t.CompletedAt = done
	}
	return t, nil
}

// Delegation is one row of Delegation_Tracker.
type Delegation struct {
	ID            string
	TaskRef       string // Task.ID
	Responsible   string // team member email
	Deadline      time.Time
	Status        DelegationStatus
	Feedback      string
	WorkloadScore float64
}

func (d Delegation) Row() store.Row {
	return store.Row{
		ColDelegationID:  d.ID,
		ColDelegatedTask: d.TaskRef,
		ColResponsible:   d.Responsible,
		ColDeadline:      d.Deadline.Format(DateLayout),
		ColStatus:        string(d.Status),
		ColFeedback:      d.Feedback,
		ColWorkloadScore: strconv.FormatFloat(d.WorkloadScore, 'f', -1, 64),
	}
}

func DelegationFromRow(r store.Row) (Delegation, error) {
	d := Delegation{
		ID:          r[ColDelegationID],
		TaskRef:     r[ColDelegatedTask],
		Responsible: r[ColResponsible],
		Status:      DelegationStatus(r[ColStatus]),
		Feedback:    r[ColFeedback],
	}
	if d.ID == "" {
		return Delegation{}, fmt.Errorf("delegation row missing %s", ColDelegationID)
	}
	deadline, err := time.Parse(DateLayout, r[ColDeadline])
	if err != nil {
		return Delegation{}, fmt.Errorf("delegation %s: bad %s %q: %w", d.ID, ColDeadline, r[ColDeadline], err)
	}
	d.Deadline = deadline
	if raw := strings.TrimSpace(r[ColWorkloadScore]); raw != "" {
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Delegation{}, fmt.Errorf("delegation %s: bad %s %q: %w", d.ID, ColWorkloadScore, raw, err)
		}
		d.WorkloadScore = score
	}
	return d, nil
}

// KpiEntry is one row of KPI_Data. Status and Trend are derived fields; the
// rest is immutable once recorded.
type KpiEntry struct {
	ID         string
	Date       time.Time
	Employee   string
	Department string
	KpiName    string
	Target     float64
	Actual     float64
	Status     KpiStatus
	Trend      Trend
}

func (k KpiEntry) Row() store.Row {
	return store.Row{
		ColEntryID:    k.ID,
		ColDate:       k.Date.Format(DateLayout),
		ColEmployee:   k.Employee,
		ColDepartment: k.Department,
		ColKpiName:    k.KpiName,
		ColTarget:     strconv.FormatFloat(k.Target, 'f', -1, 64),
		ColActual:     strconv.FormatFloat(k.Actual, 'f', -1, 64),
		ColStatus:     string(k.Status),
		ColTrend:      string(k.Trend),
	}
}

func KpiFromRow(r store.Row) (KpiEntry, error) {
	k := KpiEntry{
		ID:         r[ColEntryID],
		Employee:   r[ColEmployee],
		Department: r[ColDepartment],
		KpiName:    r[ColKpiName],
		Status:     KpiStatus(r[ColStatus]),
		Trend:      Trend(r[ColTrend]),
	}
	if k.ID == "" {
		return KpiEntry{}, fmt.Errorf("kpi row missing %s", ColEntryID)
	}
	date, err := time.Parse(DateLayout, r[ColDate])
	if err != nil {
		return KpiEntry{}, fmt.Errorf("kpi %s: bad %s %q: %w", k.ID, ColDate, r[ColDate], err)
	}
	k.Date = date
	if k.Target, err = strconv.ParseFloat(r[ColTarget], 64); err != nil {
		return KpiEntry{}, fmt.Errorf("kpi %s: bad %s %q: %w", k.ID, ColTarget, r[ColTarget], err)
	}
	if k.Actual, err = strconv.ParseFloat(r[ColActual], 64); err != nil {
		return KpiEntry{}, fmt.Errorf("kpi %s: bad %s %q: %w", k.ID, ColActual, r[ColActual], err)
	}
	return k, nil
}

// TeamMember is one row of Team_Members, keyed by email.
type TeamMember struct {
	Name       string
	Email      string
	Department string
	Role       string
	Manager    string // manager's email; empty at the top of the org
}

func (m TeamMember) Row() store.Row {
	return store.Row{
		ColMemberName:  m.Name,
		ColMemberEmail: m.Email,
		ColDepartment:  m.Department,
		ColMemberRole:  m.Role,
		ColManager:     m.Manager,
	}
}

func MemberFromRow(r store.Row) (TeamMember, error) {
	m := TeamMember{
		Name:       r[ColMemberName],
		Email:      r[ColMemberEmail],
		Department: r[ColDepartment],
		Role:       r[ColMemberRole],
		Manager:    r[ColManager],
	}
	if m.Email == "" {
		return TeamMember{}, fmt.Errorf("team member row missing %s", ColMemberEmail)
	}
	return m, nil
}

// MembersByEmail builds the lookup used for reference checks and grouping.
func MembersByEmail(members []TeamMember) map[string]TeamMember {
	out := make(map[string]TeamMember, len(members))
	for _, m := range members {
		out[m.Email] = m
	}
	return out
}
