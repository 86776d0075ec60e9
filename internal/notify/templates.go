package notify

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"sheetops/internal/model"
)

// Kind tags the template a message was rendered from. The dispatcher uses it
// to keep ErrorNotification out of the batch-failure escalation path.
type Kind string

const (
	KindTaskAssignment  Kind = "TaskAssignment"
	KindDailySummary    Kind = "DailySummary"
	KindOverdueReminder Kind = "OverdueReminder"
	KindKpiAlert        Kind = "KpiAlert"
	KindWeeklyReport    Kind = "WeeklyReport"
	KindError           Kind = "ErrorNotification"
)

// Message is one rendered, deliverable email.
type Message struct {
	Kind    Kind
	To      string
	Subject string
	HTML    string
	Text    string
}

const footerText = "This is an automated message from the business automation service. Please do not reply."

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<h1 style="background-color: {{.Color}}; color: white; padding: 16px; text-align: center;">{{.Title}}</h1>
<p>Hello {{.Greeting}},</p>
<p>{{.Lead}}</p>
{{range .Items}}<div style="background-color: #f9f9f9; padding: 12px; margin: 8px 0; border-left: 4px solid {{$.Color}};">
<h4 style="margin: 0 0 6px 0;">{{.Title}}</h4>
{{range .Lines}}<p style="margin: 2px 0;">{{.}}</p>
{{end}}</div>
{{end}}<p>{{.Closing}}</p>
<p style="color: #666; text-align: center;">{{.Footer}}</p>
</div>
</body>
</html>
`))

type pageItem struct {
	Title string
	Lines []string
}

type pageData struct {
	Color    string
	Title    string
	Greeting string
	Lead     string
	Items    []pageItem
	Closing  string
	Footer   string
}

func renderPage(d pageData) string {
	d.Footer = footerText
	var b strings.Builder
	if err := pageTmpl.Execute(&b, d); err != nil {
		// Template data is fully under our control; failure here is a bug.
		return fmt.Sprintf("<html><body><p>%s</p></body></html>", d.Title)
	}
	return b.String()
}

func renderText(d pageData) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(d.Title))
	b.WriteString("\n\nHello ")
	b.WriteString(d.Greeting)
	b.WriteString(",\n\n")
	b.WriteString(d.Lead)
	b.WriteString("\n")
	for i, item := range d.Items {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, item.Title)
		for _, line := range item.Lines {
			fmt.Fprintf(&b, "   %s\n", line)
		}
	}
	b.WriteString("\n")
	b.WriteString(d.Closing)
	b.WriteString("\n\n---\n")
	b.WriteString(footerText)
	b.WriteString("\n")
	return b.String()
}

func taskItem(t model.Task) pageItem {
	return pageItem{
		Title: t.Name,
		Lines: []string{
			"Priority: " + string(t.Priority),
			"Due Date: " + t.DueDate.Format(model.DateLayout),
			"Status: " + string(t.Status),
		},
	}
}

// TaskAssignment renders the single-task assignment notice.
func TaskAssignment(member model.TeamMember, task model.Task) Message {
	item := pageItem{
		Title: task.Name,
		Lines: []string{
			"Priority: " + string(task.Priority),
			"Due Date: " + task.DueDate.Format(model.DateLayout),
			"Frequency: " + string(task.Frequency),
		},
	}
	if task.Category != "" {
		item.Lines = append(item.Lines, "Category: "+task.Category)
	}
	d := pageData{
		Color:    "#4CAF50",
		Title:    "New Task Assignment",
		Greeting: member.Name,
		Lead:     "You have been assigned a new task. Please review the details below:",
		Items:    []pageItem{item},
		Closing:  "Please log into the dashboard to view more details and update your progress.",
	}
	return Message{
		Kind:    KindTaskAssignment,
		To:      member.Email,
		Subject: "New Task Assignment: " + task.Name,
		HTML:    renderPage(d),
		Text:    renderText(d),
	}
}

// DailySummary renders one member's open tasks for the day.
func DailySummary(member model.TeamMember, tasks []model.Task, day time.Time) Message {
	items := make([]pageItem, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, taskItem(t))
	}
	date := day.Format("January 2, 2006")
	d := pageData{
		Color:    "#2196F3",
		Title:    "Daily Task Summary",
		Greeting: member.Name,
		Lead:     fmt.Sprintf("Here are your tasks for today (%d total):", len(tasks)),
		Items:    items,
		Closing:  "Have a productive day!",
	}
	return Message{
		Kind:    KindDailySummary,
		To:      member.Email,
		Subject: "Daily Task Summary - " + date,
		HTML:    renderPage(d),
		Text:    renderText(d),
	}
}

// OverdueReminder renders every overdue task of one assignee in one message.
func OverdueReminder(member model.TeamMember, tasks []model.Task) Message {
	items := make([]pageItem, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, taskItem(t))
	}
	d := pageData{
		Color:    "#f44336",
		Title:    "Overdue Task Reminder",
		Greeting: member.Name,
		Lead:     fmt.Sprintf("You have %d overdue task(s) that need immediate attention:", len(tasks)),
		Items:    items,
		Closing:  "Please update these tasks as soon as possible and contact your manager if you need assistance.",
	}
	return Message{
		Kind:    KindOverdueReminder,
		To:      member.Email,
		Subject: fmt.Sprintf("Overdue Task Reminder - %d task(s) need attention", len(tasks)),
		HTML:    renderPage(d),
		Text:    renderText(d),
	}
}

// KpiAlertItem pairs an underperforming entry with its alert severity.
type KpiAlertItem struct {
	Entry    model.KpiEntry
	Severity string
}

// KpiAlert renders the underperforming-metrics digest for a manager.
func KpiAlert(toEmail, toName string, alerts []KpiAlertItem) Message {
	items := make([]pageItem, 0, len(alerts))
	for _, a := range alerts {
		items = append(items, pageItem{
			Title: a.Entry.Employee + " - " + a.Entry.KpiName,
			Lines: []string{
				"Department: " + a.Entry.Department,
				fmt.Sprintf("Target: %g", a.Entry.Target),
				fmt.Sprintf("Actual: %g", a.Entry.Actual),
				"Trend: " + string(a.Entry.Trend),
				"Severity: " + a.Severity,
			},
		})
	}
	d := pageData{
		Color:    "#ff9800",
		Title:    "KPI Performance Alert",
		Greeting: toName,
		Lead:     "The following KPI metrics require your attention:",
		Items:    items,
		Closing:  "Please review these metrics and take appropriate action to improve performance.",
	}
	return Message{
		Kind:    KindKpiAlert,
		To:      toEmail,
		Subject: fmt.Sprintf("KPI Performance Alert - %d metric(s) need attention", len(alerts)),
		HTML:    renderPage(d),
		Text:    renderText(d),
	}
}

// WeeklyStats carries the weekly report tallies.
type WeeklyStats struct {
	Completed  int
	InProgress int
	Overdue    int
	GreenKPIs  int
	YellowKPIs int
	RedKPIs    int
}

// WeeklyReport renders the weekly performance summary.
func WeeklyReport(toEmail, toName string, stats WeeklyStats, weekEnding time.Time) Message {
	d := pageData{
		Color:    "#673AB7",
		Title:    "Weekly Performance Report",
		Greeting: toName,
		Lead:     "Here's your weekly performance summary:",
		Items: []pageItem{
			{
				Title: "Task Completion",
				Lines: []string{
					fmt.Sprintf("Completed: %d tasks", stats.Completed),
					fmt.Sprintf("In Progress: %d tasks", stats.InProgress),
					fmt.Sprintf("Overdue: %d tasks", stats.Overdue),
				},
			},
			{
				Title: "KPI Performance",
				Lines: []string{
					fmt.Sprintf("Green Status: %d KPIs", stats.GreenKPIs),
					fmt.Sprintf("Yellow Status: %d KPIs", stats.YellowKPIs),
					fmt.Sprintf("Red Status: %d KPIs", stats.RedKPIs),
				},
			},
		},
		Closing: "Keep up the great work!",
	}
	return Message{
		Kind:    KindWeeklyReport,
		To:      toEmail,
		Subject: "Weekly Performance Report - Week Ending " + weekEnding.Format("January 2, 2006"),
		HTML:    renderPage(d),
		Text:    renderText(d),
	}
}

// ErrorNotification renders the administrator failure summary. It is the one
// template the batch-failure threshold never suppresses.
func ErrorNotification(toEmail, toName, job, outcome, detail string) Message {
	d := pageData{
		Color:    "#f44336",
		Title:    "Automation Failure",
		Greeting: toName,
		Lead:     fmt.Sprintf("The scheduled job %q finished with outcome %s.", job, outcome),
		Items: []pageItem{
			{Title: job, Lines: []string{"Outcome: " + outcome, "Detail: " + detail}},
		},
		Closing: "See the audit log for the full invocation record.",
	}
	return Message{
		Kind:    KindError,
		To:      toEmail,
		Subject: "Automation Failure: " + job,
		HTML:    renderPage(d),
		Text:    renderText(d),
	}
}
