package model

import "fmt"

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

func (s Status) Valid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

type Frequency string

const (
	FreqOneTime Frequency = "One-time"
	FreqDaily   Frequency = "Daily"
	FreqWeekly  Frequency = "Weekly"
	FreqMonthly Frequency = "Monthly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FreqOneTime, FreqDaily, FreqWeekly, FreqMonthly:
		return true
	}
	return false
}

// Recurring reports whether tasks with this frequency act as templates for
// the generator.
func (f Frequency) Recurring() bool {
	return f == FreqDaily || f == FreqWeekly || f == FreqMonthly
}

type DelegationStatus string

const (
	DelegationPending    DelegationStatus = "Pending"
	DelegationInProgress DelegationStatus = "In Progress"
	DelegationComplete   DelegationStatus = "Complete"
)

func (s DelegationStatus) Valid() bool {
	switch s {
	case DelegationPending, DelegationInProgress, DelegationComplete:
		return true
	}
	return false
}

type KpiStatus string

const (
	KpiGreen  KpiStatus = "Green"
	KpiYellow KpiStatus = "Yellow"
	KpiRed    KpiStatus = "Red"
)

func (s KpiStatus) Valid() bool {
	switch s {
	case KpiGreen, KpiYellow, KpiRed:
		return true
	}
	return false
}

type Trend string

const (
	TrendImproving Trend = "Improving"
	TrendStable    Trend = "Stable"
	TrendDeclining Trend = "Declining"
)

// DeriveKpiStatus maps an actual/target ratio onto the traffic-light status.
// Thresholds follow the workbook convention: >=90% Green, >=70% Yellow.
func DeriveKpiStatus(target, actual float64) KpiStatus {
	if target <= 0 {
		return KpiGreen
	}
	switch {
	case actual >= target*0.9:
		return KpiGreen
	case actual >= target*0.7:
		return KpiYellow
	default:
		return KpiRed
	}
}

// Outcome classifies one job invocation in the audit log.
type Outcome string

const (
	OutcomeSuccess        Outcome = "Success"
	OutcomePartialFailure Outcome = "PartialFailure"
	OutcomeFailure        Outcome = "Failure"
	OutcomeSkippedLocked  Outcome = "SkippedLocked"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomePartialFailure, OutcomeFailure, OutcomeSkippedLocked:
		return true
	}
	return false
}

func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(s)
	if !o.Valid() {
		return "", fmt.Errorf("unknown outcome %q", s)
	}
	return o, nil
}
