package sched

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type CadenceKind int

const (
	Hourly CadenceKind = iota
	Daily
	Weekly
)

// Cadence is a schedule specification: every hour, daily at HH:MM, or weekly
// at a weekday and HH:MM. The engine does not evaluate cadences itself; the
// trigger source does. WindowStart is what lets the engine absorb duplicate
// firings from an at-least-once trigger.
type Cadence struct {
	Kind    CadenceKind
	Hour    int
	Minute  int
	Weekday time.Weekday
}

func EveryHour() Cadence { return Cadence{Kind: Hourly} }

func DailyAt(hour, minute int) Cadence {
	return Cadence{Kind: Daily, Hour: hour, Minute: minute}
}

func WeeklyAt(day time.Weekday, hour, minute int) Cadence {
	return Cadence{Kind: Weekly, Weekday: day, Hour: hour, Minute: minute}
}

// ParseCadence accepts "hourly", "daily HH:MM" and "weekly <day> HH:MM"
// (day may be abbreviated to three letters, any case).
func ParseCadence(raw string) (Cadence, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(raw)))
	switch {
	case len(fields) == 1 && fields[0] == "hourly":
		return EveryHour(), nil
	case len(fields) == 2 && fields[0] == "daily":
		h, m, err := parseHHMM(fields[1])
		if err != nil {
			return Cadence{}, err
		}
		return DailyAt(h, m), nil
	case len(fields) == 3 && fields[0] == "weekly":
		day, err := parseWeekday(fields[1])
		if err != nil {
			return Cadence{}, err
		}
		h, m, err := parseHHMM(fields[2])
		if err != nil {
			return Cadence{}, err
		}
		return WeeklyAt(day, h, m), nil
	default:
		return Cadence{}, fmt.Errorf("invalid cadence %q, expected \"hourly\", \"daily HH:MM\" or \"weekly <day> HH:MM\"", raw)
	}
}

func (c Cadence) Validate() error {
	switch c.Kind {
	case Hourly:
		return nil
	case Daily, Weekly:
		if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
			return fmt.Errorf("invalid time %02d:%02d", c.Hour, c.Minute)
		}
		if c.Kind == Weekly && (c.Weekday < time.Sunday || c.Weekday > time.Saturday) {
			return fmt.Errorf("invalid weekday %d", c.Weekday)
		}
		return nil
	default:
		return fmt.Errorf("invalid cadence kind %d", c.Kind)
	}
}

func (c Cadence) String() string {
	switch c.Kind {
	case Hourly:
		return "hourly"
	case Daily:
		return fmt.Sprintf("daily %02d:%02d", c.Hour, c.Minute)
	case Weekly:
		return fmt.Sprintf("weekly %s %02d:%02d", strings.ToLower(c.Weekday.String()[:3]), c.Hour, c.Minute)
	default:
		return "invalid"
	}
}

// CronSpec compiles the cadence to a five-field cron expression for the
// trigger source.
func (c Cadence) CronSpec() string {
	switch c.Kind {
	case Hourly:
		return "0 * * * *"
	case Daily:
		return fmt.Sprintf("%d %d * * *", c.Minute, c.Hour)
	case Weekly:
		return fmt.Sprintf("%d %d * * %d", c.Minute, c.Hour, int(c.Weekday))
	default:
		return ""
	}
}

// WindowStart returns the start of the cadence window containing now. A run
// recorded at or after this instant means the window has already fired.
func (c Cadence) WindowStart(now time.Time) time.Time {
	y, mo, d := now.Date()
	loc := now.Location()
	switch c.Kind {
	case Hourly:
		return time.Date(y, mo, d, now.Hour(), 0, 0, 0, loc)
	case Daily:
		return time.Date(y, mo, d, 0, 0, 0, 0, loc)
	case Weekly:
		back := (int(now.Weekday()) - int(c.Weekday) + 7) % 7
		return time.Date(y, mo, d, 0, 0, 0, 0, loc).AddDate(0, 0, -back)
	default:
		return now
	}
}

func parseHHMM(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}
