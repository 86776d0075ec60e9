package sched

import (
	"testing"
	"time"
)

func TestParseCadenceVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want Cadence
		cron string
	}{
		{name: "hourly", raw: "hourly", want: EveryHour(), cron: "0 * * * *"},
		{name: "daily", raw: "daily 09:30", want: DailyAt(9, 30), cron: "30 9 * * *"},
		{name: "daily midnight", raw: "DAILY 00:00", want: DailyAt(0, 0), cron: "0 0 * * *"},
		{name: "weekly short day", raw: "weekly fri 17:00", want: WeeklyAt(time.Friday, 17, 0), cron: "0 17 * * 5"},
		{name: "weekly full day", raw: "weekly monday 08:15", want: WeeklyAt(time.Monday, 8, 15), cron: "15 8 * * 1"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCadence(tt.raw)
			if err != nil {
				t.Fatalf("ParseCadence(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ParseCadence(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
			if spec := got.CronSpec(); spec != tt.cron {
				t.Fatalf("CronSpec() = %q, want %q", spec, tt.cron)
			}
		})
	}
}

func TestParseCadenceInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "sometimes", "daily", "daily 25:00", "daily 12:61", "weekly 09:00", "weekly funday 09:00"} {
		if _, err := ParseCadence(raw); err == nil {
			t.Fatalf("ParseCadence(%q): expected error", raw)
		}
	}
}

func TestWindowStart(t *testing.T) {
	t.Parallel()
	// Wednesday.
	now := time.Date(2026, 8, 26, 14, 45, 12, 0, time.UTC)

	tests := []struct {
		name    string
		cadence Cadence
		want    time.Time
	}{
		{name: "hourly", cadence: EveryHour(), want: time.Date(2026, 8, 26, 14, 0, 0, 0, time.UTC)},
		{name: "daily", cadence: DailyAt(9, 0), want: time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)},
		{name: "weekly same day", cadence: WeeklyAt(time.Wednesday, 9, 0), want: time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)},
		{name: "weekly earlier day", cadence: WeeklyAt(time.Monday, 9, 0), want: time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)},
		{name: "weekly wraps back", cadence: WeeklyAt(time.Friday, 9, 0), want: time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cadence.WindowStart(now); !got.Equal(tt.want) {
				t.Fatalf("WindowStart = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCadenceStringRoundTrip(t *testing.T) {
	t.Parallel()
	for _, c := range []Cadence{EveryHour(), DailyAt(2, 0), WeeklyAt(time.Friday, 17, 0)} {
		parsed, err := ParseCadence(c.String())
		if err != nil {
			t.Fatalf("ParseCadence(%q) error: %v", c.String(), err)
		}
		if parsed != c {
			t.Fatalf("round trip of %q = %+v, want %+v", c.String(), parsed, c)
		}
	}
}
