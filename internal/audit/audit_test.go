package audit

import (
	"context"
	"testing"
	"time"

	"sheetops/internal/model"
	"sheetops/internal/store"
	"sheetops/pkg/logx"
)

func TestAppendAndRecent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemory()
	l := NewLog(st, logx.Nop())

	base := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		l.Append(ctx, Record{
			At:      base.Add(time.Duration(i) * time.Hour),
			Job:     "gen",
			Outcome: model.OutcomeSuccess,
			Counts:  Counts{Generated: i},
		})
	}

	recent, err := l.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent = %d records, want 2", len(recent))
	}
	// Newest first.
	if recent[0].Counts.Generated != 2 || recent[1].Counts.Generated != 1 {
		t.Fatalf("recent order wrong: %+v", recent)
	}
	if !recent[0].At.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("timestamp lost: %v", recent[0].At)
	}
}

func TestForJob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := NewLog(store.NewMemory(), logx.Nop())

	l.Append(ctx, Record{At: time.Now(), Job: "gen", Outcome: model.OutcomeSuccess})
	l.Append(ctx, Record{At: time.Now(), Job: "backup", Outcome: model.OutcomeFailure, Detail: "disk full"})
	l.Append(ctx, Record{At: time.Now(), Job: "gen", Outcome: model.OutcomeSkippedLocked})

	recs, err := l.ForJob(ctx, "gen")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("records for gen = %d, want 2", len(recs))
	}
	if recs[0].Outcome != model.OutcomeSuccess || recs[1].Outcome != model.OutcomeSkippedLocked {
		t.Fatalf("outcomes = %v", recs)
	}
}

func TestAppendSurvivesPersistFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemory()
	_ = st.Close()
	l := NewLog(st, logx.Nop())

	// Must not panic or raise: audit loss never fails the producing job.
	l.Append(ctx, Record{At: time.Now(), Job: "gen", Outcome: model.OutcomeSuccess})
}

func TestCountsAny(t *testing.T) {
	t.Parallel()
	if (Counts{}).Any() {
		t.Fatal("zero counts must report no work")
	}
	if !(Counts{BackedUp: 1}).Any() {
		t.Fatal("non-zero counts must report work")
	}
}
