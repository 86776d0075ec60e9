package model

import (
	"testing"
	"time"
)

func TestTaskRowRoundTrip(t *testing.T) {
	t.Parallel()
	in := Task{
		ID:          "t-1",
		Name:        "Close the books",
		Assignee:    "ana@example.com",
		DueDate:     time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		Priority:    PriorityHigh,
		Status:      StatusDone,
		Frequency:   FreqMonthly,
		CompletedAt: time.Date(2026, 8, 25, 16, 40, 0, 0, time.UTC),
		Category:    "Finance",
		TemplateID:  "tmpl-9",
	}
	out, err := TaskFromRow(in.Row())
	if err != nil {
		t.Fatalf("TaskFromRow error: %v", err)
	}
	if out.ID != in.ID || out.Assignee != in.Assignee || out.TemplateID != in.TemplateID {
		t.Fatalf("identity fields lost: %+v", out)
	}
	if !out.DueDate.Equal(in.DueDate) || !out.CompletedAt.Equal(in.CompletedAt) {
		t.Fatalf("dates lost: due %v, completed %v", out.DueDate, out.CompletedAt)
	}
	if out.Priority != in.Priority || out.Status != in.Status || out.Frequency != in.Frequency {
		t.Fatalf("enums lost: %+v", out)
	}
}

func TestTaskFromRowRejectsBadInput(t *testing.T) {
	t.Parallel()
	if _, err := TaskFromRow(nil); err == nil {
		t.Fatal("missing id must be an error")
	}
	row := Task{ID: "t-1", DueDate: time.Now()}.Row()
	row[ColDueDate] = "31/12/2026"
	if _, err := TaskFromRow(row); err == nil {
		t.Fatal("unparseable due date must be an error")
	}
}

func TestDelegationRowRoundTrip(t *testing.T) {
	t.Parallel()
	in := Delegation{
		ID:            "d-1",
		TaskRef:       "t-1",
		Responsible:   "bo@example.com",
		Deadline:      time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		Status:        DelegationInProgress,
		Feedback:      "on track",
		WorkloadScore: 3.5,
	}
	out, err := DelegationFromRow(in.Row())
	if err != nil {
		t.Fatal(err)
	}
	if out.WorkloadScore != 3.5 || out.TaskRef != "t-1" || !out.Deadline.Equal(in.Deadline) {
		t.Fatalf("round trip lost data: %+v", out)
	}
}

func TestDeriveKpiStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		target, actual float64
		want           KpiStatus
	}{
		{100, 95, KpiGreen},
		{100, 90, KpiGreen},
		{100, 89.9, KpiYellow},
		{100, 70, KpiYellow},
		{100, 69.9, KpiRed},
		{100, 0, KpiRed},
		{0, 0, KpiGreen}, // no target means nothing to miss
	}
	for _, tt := range tests {
		if got := DeriveKpiStatus(tt.target, tt.actual); got != tt.want {
			t.Fatalf("DeriveKpiStatus(%g, %g) = %v, want %v", tt.target, tt.actual, got, tt.want)
		}
	}
}

func TestFrequencyRecurring(t *testing.T) {
	t.Parallel()
	if FreqOneTime.Recurring() {
		t.Fatal("One-time must not recur")
	}
	for _, f := range []Frequency{FreqDaily, FreqWeekly, FreqMonthly} {
		if !f.Recurring() {
			t.Fatalf("%s must recur", f)
		}
	}
}

func TestEnumValidity(t *testing.T) {
	t.Parallel()
	if Priority("Urgent").Valid() || Status("Blocked").Valid() || Frequency("Fortnightly").Valid() {
		t.Fatal("out-of-set values must be invalid")
	}
	if !PriorityLow.Valid() || !StatusInProgress.Valid() || !FreqWeekly.Valid() {
		t.Fatal("canonical values must be valid")
	}
}

func TestParseOutcome(t *testing.T) {
	t.Parallel()
	for _, o := range []Outcome{OutcomeSuccess, OutcomePartialFailure, OutcomeFailure, OutcomeSkippedLocked} {
		got, err := ParseOutcome(string(o))
		if err != nil {
			t.Fatalf("ParseOutcome(%q) error: %v", o, err)
		}
		if got != o {
			t.Fatalf("ParseOutcome(%q) = %v", o, got)
		}
	}
	if _, err := ParseOutcome("Meh"); err == nil {
		t.Fatal("expected error for unknown outcome")
	}
}
