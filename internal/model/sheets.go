package model

// Sheet names mirror the workbook layout the automation runs over.
const (
	SheetTasks       = "Master_Tasks"
	SheetDelegations = "Delegation_Tracker"
	SheetKPIs        = "KPI_Data"
	SheetTeam        = "Team_Members"

	// Engine-owned sheets.
	SheetSchedule  = "Schedule_Registry"
	SheetLocks     = "Run_Locks"
	SheetAudit     = "Audit_Log"
	SheetSnapshots = "Snapshot_Index"
)

// DataSheets are the business sheets covered by validation and backup.
func DataSheets() []string {
	return []string{SheetTasks, SheetDelegations, SheetKPIs, SheetTeam}
}

// IsEngineSheet reports whether name is one of the sheets the engine itself
// maintains. The audit log is append-only and the snapshot index must track
// every export ever taken, so a restore never rolls these back.
func IsEngineSheet(name string) bool {
	switch name {
	case SheetSchedule, SheetLocks, SheetAudit, SheetSnapshots:
		return true
	}
	return false
}

// Column headers, kept byte-identical to the workbook so exports and restores
// round-trip.
const (
	ColTaskID       = "Task ID"
	ColTaskName     = "Task Name"
	ColAssignedTo   = "Assigned To"
	ColDueDate      = "Due Date"
	ColPriority     = "Priority"
	ColStatus       = "Status"
	ColFrequency    = "Frequency"
	ColCompletedAt  = "Completion Timestamp"
	ColSuggestedDue = "Suggested Deadline"
	ColCategory     = "AI Category"
	ColTemplateID   = "Template ID"

	ColDelegationID  = "Delegation ID"
	ColDelegatedTask = "Task ID"
	ColResponsible   = "Person Responsible"
	ColDeadline      = "Deadline"
	ColFeedback      = "Feedback/Comments"
	ColWorkloadScore = "Workload Score"

	ColEntryID    = "Entry ID"
	ColDate       = "Date"
	ColEmployee   = "Employee Name"
	ColDepartment = "Department"
	ColKpiName    = "KPI Name"
	ColTarget     = "Target Value"
	ColActual     = "Actual Value"
	ColTrend      = "Performance Trend"

	ColMemberName  = "Name"
	ColMemberEmail = "Email"
	ColMemberRole  = "Role"
	ColManager     = "Manager"
)

const (
	// DateLayout is the workbook date format.
	DateLayout = "2006-01-02"
)
