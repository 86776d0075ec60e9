package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sheetops/internal/audit"
	"sheetops/internal/model"
	"sheetops/internal/store"
	"sheetops/pkg/logx"
)

type staticGuard struct{ errors int }

func (g staticGuard) TargetErrors(context.Context, ...string) (int, error) {
	return g.errors, nil
}

func seedStore(t *testing.T) *store.Memory {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()

	for i, name := range []string{"Close books", "Ship report", "Review KPIs"} {
		task := model.Task{
			ID:        "t-" + name[:2],
			Name:      name,
			Assignee:  "ana@example.com",
			DueDate:   time.Date(2026, 9, 1+i, 0, 0, 0, 0, time.UTC),
			Priority:  model.PriorityMedium,
			Status:    model.StatusToDo,
			Frequency: model.FreqOneTime,
		}
		if err := st.AppendRow(ctx, model.SheetTasks, task.Row()); err != nil {
			t.Fatal(err)
		}
	}
	m := model.TeamMember{Name: "Ana", Email: "ana@example.com", Department: "Ops", Role: "Lead"}
	if err := st.AppendRow(ctx, model.SheetTeam, m.Row()); err != nil {
		t.Fatal(err)
	}
	return st
}

func newManager(t *testing.T, st store.Store, guard Guard, keep int) *Manager {
	t.Helper()
	return NewManager(Config{Dir: t.TempDir(), Keep: keep}, st, guard, nil, logx.Nop())
}

func TestSnapshotVerifiesAndIndexes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := seedStore(t)
	m := newManager(t, st, staticGuard{}, 8)

	snap, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot error: %v", err)
	}
	if !snap.Verified {
		t.Fatal("snapshot should verify against its own export")
	}
	if snap.RowCounts[model.SheetTasks] != 3 || snap.RowCounts[model.SheetTeam] != 1 {
		t.Fatalf("RowCounts = %v", snap.RowCounts)
	}
	if _, err := os.Stat(snap.File); err != nil {
		t.Fatalf("export file missing: %v", err)
	}

	latest, ok, err := m.LatestGood(ctx)
	if err != nil || !ok {
		t.Fatalf("LatestGood = (%v, %v)", ok, err)
	}
	if latest.Ref != snap.Ref {
		t.Fatalf("LatestGood ref = %s, want %s", latest.Ref, snap.Ref)
	}
}

func TestRetentionKeepsNewest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := seedStore(t)
	m := newManager(t, st, staticGuard{}, 2)

	// Distinct clock values keep the index ordering unambiguous.
	base := time.Date(2026, 8, 26, 2, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		m.WithClock(func() time.Time { return at })
		if _, err := m.Snapshot(ctx); err != nil {
			t.Fatalf("snapshot %d: %v", i, err)
		}
	}

	snaps, err := m.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Fatalf("retained snapshots = %d, want 2", len(snaps))
	}
	// The survivors are the two newest.
	if !snaps[0].At.After(base) {
		t.Fatalf("oldest snapshot was not pruned: %+v", snaps[0])
	}
	for _, s := range snaps {
		if _, err := os.Stat(s.File); err != nil {
			t.Fatalf("retained snapshot file missing: %v", err)
		}
	}
}

func TestRestoreBlockedByIntegrityErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := seedStore(t)
	m := newManager(t, st, staticGuard{errors: 2}, 8)

	snap, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}

	err = m.Restore(ctx, snap.Ref, false)
	if !errors.Is(err, ErrRestoreBlocked) {
		t.Fatalf("err = %v, want ErrRestoreBlocked", err)
	}

	// Force bypasses the guard.
	if err := m.Restore(ctx, snap.Ref, true); err != nil {
		t.Fatalf("forced restore error: %v", err)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := seedStore(t)
	m := newManager(t, st, staticGuard{}, 8)

	snap, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}

	// Corrupt the live data after the snapshot.
	if _, err := st.DeleteRows(ctx, model.SheetTasks, func(store.Row) bool { return true }); err != nil {
		t.Fatal(err)
	}
	if err := st.AppendRow(ctx, model.SheetTasks, store.Row{model.ColTaskID: "junk"}); err != nil {
		t.Fatal(err)
	}

	if err := m.Restore(ctx, snap.Ref, false); err != nil {
		t.Fatalf("Restore error: %v", err)
	}
	rows, err := st.ReadRows(ctx, model.SheetTasks)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("restored task rows = %d, want 3", len(rows))
	}
	seen := map[string]bool{}
	for _, r := range rows {
		task, err := model.TaskFromRow(r)
		if err != nil {
			t.Fatalf("restored row unreadable: %v", err)
		}
		seen[task.Name] = true
	}
	if !seen["Close books"] || !seen["Ship report"] || !seen["Review KPIs"] {
		t.Fatalf("restored tasks = %v", seen)
	}
}

func TestRestoreUnknownRef(t *testing.T) {
	t.Parallel()
	m := newManager(t, seedStore(t), staticGuard{}, 8)
	if err := m.Restore(context.Background(), "no-such-ref", false); !errors.Is(err, ErrUnknownSnapshot) {
		t.Fatalf("err = %v, want ErrUnknownSnapshot", err)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := seedStore(t)
	m := newManager(t, st, staticGuard{}, 8)

	snap, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// Truncate the export so it no longer opens.
	if err := os.WriteFile(snap.File, []byte("not an xlsx"), 0o644); err != nil {
		t.Fatal(err)
	}

	var integrity *IntegrityError
	if err := m.verify(&snap); !errors.As(err, &integrity) {
		t.Fatalf("verify err = %v, want IntegrityError", err)
	}
}

func TestSnapshotFilesLiveInDir(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := seedStore(t)
	dir := t.TempDir()
	m := NewManager(Config{Dir: dir, Keep: 8}, st, staticGuard{}, nil, logx.Nop())

	snap, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(snap.File) != dir {
		t.Fatalf("snapshot written to %s, want %s", filepath.Dir(snap.File), dir)
	}
}

func TestRestoreLeavesEngineSheetsAlone(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := seedStore(t)
	auditLog := audit.NewLog(st, logx.Nop())
	m := NewManager(Config{Dir: t.TempDir(), Keep: 8}, st, staticGuard{}, auditLog, logx.Nop())

	auditLog.Append(ctx, audit.Record{At: time.Now(), Job: "gen", Outcome: model.OutcomeSuccess})
	snap, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// Activity after the snapshot must survive a rollback.
	auditLog.Append(ctx, audit.Record{At: time.Now(), Job: "gen", Outcome: model.OutcomeSuccess})
	later, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Restore(ctx, snap.Ref, true); err != nil {
		t.Fatalf("Restore error: %v", err)
	}

	recs, err := auditLog.ForJob(ctx, "gen")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("audit rows for gen after restore = %d, want 2", len(recs))
	}
	snaps, err := m.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	refs := map[string]bool{}
	for _, s := range snaps {
		refs[s.Ref] = true
	}
	if !refs[snap.Ref] || !refs[later.Ref] {
		t.Fatalf("snapshot index lost entries after restore: %v", refs)
	}
}
