package notify

import (
	"fmt"
	"sort"
	"time"

	"sheetops/internal/model"
)

// BuildDailySummaries renders one summary per member who has open tasks.
// Tasks are bucketed by assignee email first, so a member never receives
// more than one message per cycle.
func BuildDailySummaries(members []model.TeamMember, tasks []model.Task, day time.Time) []Message {
	byAssignee := map[string][]model.Task{}
	for _, t := range tasks {
		if t.Status == model.StatusDone {
			continue
		}
		byAssignee[t.Assignee] = append(byAssignee[t.Assignee], t)
	}

	var out []Message
	for _, m := range sortedMembers(members) {
		open := byAssignee[m.Email]
		if len(open) == 0 {
			continue
		}
		out = append(out, DailySummary(m, open, day))
	}
	return out
}

// BuildOverdueReminders groups overdue tasks by assignee and renders exactly
// one reminder per recipient containing all of their items. Assignees with no
// team-member row are reported as warnings, not dropped silently.
func BuildOverdueReminders(members []model.TeamMember, tasks []model.Task, now time.Time) ([]Message, []string) {
	today := midnightOf(now)
	byAssignee := map[string][]model.Task{}
	for _, t := range tasks {
		if t.Status == model.StatusDone || !t.DueDate.Before(today) {
			continue
		}
		byAssignee[t.Assignee] = append(byAssignee[t.Assignee], t)
	}

	lookup := model.MembersByEmail(members)
	var out []Message
	var warnings []string
	for _, email := range sortedKeys(byAssignee) {
		member, ok := lookup[email]
		if !ok {
			warnings = append(warnings,
				fmt.Sprintf("overdue tasks assigned to unknown member %q", email))
			continue
		}
		out = append(out, OverdueReminder(member, byAssignee[email]))
	}
	return out, warnings
}

// BuildKpiAlerts collects Red-status entries into one digest for the
// recipient. Declining metrics are flagged High, the rest Medium. The second
// return is false when every metric is performing.
func BuildKpiAlerts(kpis []model.KpiEntry, toEmail, toName string) (Message, bool) {
	var alerts []KpiAlertItem
	for _, k := range kpis {
		if k.Status != model.KpiRed {
			continue
		}
		severity := "Medium"
		if k.Trend == model.TrendDeclining {
			severity = "High"
		}
		alerts = append(alerts, KpiAlertItem{Entry: k, Severity: severity})
	}
	if len(alerts) == 0 {
		return Message{}, false
	}
	return KpiAlert(toEmail, toName, alerts), true
}

// BuildWeeklyStats tallies the report figures from current sheet contents.
func BuildWeeklyStats(tasks []model.Task, kpis []model.KpiEntry, now time.Time) WeeklyStats {
	today := midnightOf(now)
	var s WeeklyStats
	for _, t := range tasks {
		switch t.Status {
		case model.StatusDone:
			s.Completed++
		case model.StatusInProgress:
			s.InProgress++
		}
		if t.Status != model.StatusDone && t.DueDate.Before(today) {
			s.Overdue++
		}
	}
	for _, k := range kpis {
		switch k.Status {
		case model.KpiGreen:
			s.GreenKPIs++
		case model.KpiYellow:
			s.YellowKPIs++
		case model.KpiRed:
			s.RedKPIs++
		}
	}
	return s
}

func sortedMembers(members []model.TeamMember) []model.TeamMember {
	out := append([]model.TeamMember(nil), members...)
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

func sortedKeys(m map[string][]model.Task) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func midnightOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
