package generate

import (
	"fmt"
	"time"

	"sheetops/internal/model"
)

// NextOccurrence computes the first occurrence of freq strictly after anchor.
// Results are normalized to midnight in anchor's location: due dates are
// calendar dates, not instants.
func NextOccurrence(freq model.Frequency, anchor time.Time) (time.Time, error) {
	day := midnight(anchor)
	switch freq {
	case model.FreqDaily:
		return day.AddDate(0, 0, 1), nil
	case model.FreqWeekly:
		return day.AddDate(0, 0, 7), nil
	case model.FreqMonthly:
		return addMonthClamped(day), nil
	default:
		return time.Time{}, fmt.Errorf("frequency %q does not recur", freq)
	}
}

// addMonthClamped advances one calendar month, clamping to the last valid day
// when the next month is shorter: Jan 31 -> Feb 28 (29 in a leap year), never
// Mar 3.
func addMonthClamped(day time.Time) time.Time {
	y, m, d := day.Date()
	loc := day.Location()
	firstOfNext := time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
	if last := daysIn(firstOfNext); d > last {
		d = last
	}
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), d, 0, 0, 0, 0, loc)
}

// daysIn returns the number of days in t's month.
func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
