// Package backup takes point-in-time, verifiable snapshots of the whole
// store and restores sheets from them under an integrity guard.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"sheetops/internal/audit"
	"sheetops/internal/model"
	"sheetops/internal/store"
	"sheetops/pkg/logx"
)

// ErrRestoreBlocked refuses a restore while the target sheets are failing
// Error-severity integrity checks. Override with force.
var ErrRestoreBlocked = errors.New("restore blocked by integrity errors")

var ErrUnknownSnapshot = errors.New("unknown snapshot")

// IntegrityError flags a snapshot whose re-read row counts do not match what
// was captured. The file is kept for inspection but never becomes the latest
// good backup.
type IntegrityError struct {
	Ref   string
	Sheet string
	Want  int
	Got   int
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("snapshot %s failed integrity check: sheet %s has %d rows, recorded %d",
		e.Ref, e.Sheet, e.Got, e.Want)
}

// Guard answers whether the given sheets currently hold Error-severity
// violations. The validator implements it.
type Guard interface {
	TargetErrors(ctx context.Context, sheets ...string) (int, error)
}

const (
	colRef      = "Ref"
	colAt       = "Timestamp"
	colFile     = "File"
	colCounts   = "Row Counts"
	colVerified = "Verified"
)

// DefaultKeep bounds retention when the config leaves it unset.
const DefaultKeep = 8

type Config struct {
	Dir  string
	Keep int
}

// Snapshot describes one indexed export.
type Snapshot struct {
	Ref       string
	At        time.Time
	File      string
	RowCounts map[string]int
	Verified  bool
}

type Manager struct {
	store store.Store
	guard Guard
	audit *audit.Log
	log   logx.Logger
	cfg   Config
	nowFn func() time.Time
}

func NewManager(cfg Config, st store.Store, guard Guard, auditLog *audit.Log, log logx.Logger) *Manager {
	if cfg.Keep <= 0 {
		cfg.Keep = DefaultKeep
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{store: st, guard: guard, audit: auditLog, log: log, cfg: cfg, nowFn: time.Now}
}

// WithClock overrides the manager's time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.nowFn = now
	return m
}

// Snapshot captures every sheet into an immutable .xlsx export, verifies the
// written file against the captured row counts, indexes it, and prunes old
// exports. An unverifiable snapshot is indexed and kept, but returned with an
// IntegrityError and excluded from retention's "latest good" protection.
func (m *Manager) Snapshot(ctx context.Context) (Snapshot, error) {
	now := m.nowFn()
	snap := Snapshot{
		Ref:       now.UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8],
		At:        now,
		RowCounts: map[string]int{},
	}
	snap.File = filepath.Join(m.cfg.Dir, snap.Ref+".xlsx")

	sheets, err := m.store.Sheets(ctx)
	if err != nil {
		return snap, fmt.Errorf("list sheets: %w", err)
	}
	if err := os.MkdirAll(m.cfg.Dir, 0o755); err != nil {
		return snap, err
	}

	f := excelize.NewFile()
	defer f.Close()
	for _, sheet := range sheets {
		rows, err := m.store.ReadRows(ctx, sheet)
		if err != nil {
			return snap, fmt.Errorf("read %s: %w", sheet, err)
		}
		snap.RowCounts[sheet] = len(rows)
		if err := writeSheet(f, sheet, rows); err != nil {
			return snap, fmt.Errorf("export %s: %w", sheet, err)
		}
	}
	// The workbook starts with a default sheet we never populated.
	if len(sheets) > 0 {
		_ = f.DeleteSheet("Sheet1")
	}
	if err := f.SaveAs(snap.File); err != nil {
		return snap, fmt.Errorf("save snapshot: %w", err)
	}

	verifyErr := m.verify(&snap)
	snap.Verified = verifyErr == nil
	if err := m.indexSnapshot(ctx, snap); err != nil {
		return snap, fmt.Errorf("index snapshot: %w", err)
	}
	if verifyErr != nil {
		m.log.Error("snapshot failed integrity check", logx.String("ref", snap.Ref), logx.Err(verifyErr))
		return snap, verifyErr
	}

	if err := m.prune(ctx, snap.Ref); err != nil {
		m.log.Warn("snapshot retention cleanup failed", logx.Err(err))
	}
	m.log.Info("snapshot captured",
		logx.String("ref", snap.Ref),
		logx.Int("sheets", len(sheets)))
	return snap, nil
}

// verify re-reads the written export and checks its row counts against what
// was captured.
func (m *Manager) verify(snap *Snapshot) error {
	f, err := excelize.OpenFile(snap.File)
	if err != nil {
		return &IntegrityError{Ref: snap.Ref, Sheet: "", Want: 0, Got: 0}
	}
	defer f.Close()

	for sheet, want := range snap.RowCounts {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return &IntegrityError{Ref: snap.Ref, Sheet: sheet, Want: want, Got: 0}
		}
		got := len(rows)
		if got > 0 {
			got-- // header row
		}
		if got != want {
			return &IntegrityError{Ref: snap.Ref, Sheet: sheet, Want: want, Got: got}
		}
	}
	return nil
}

// Restore overwrites the business sheets contained in the snapshot from its
// export. Engine-owned sheets in the export (audit log, snapshot index, run
// locks, schedule registry) are never restored: the audit log is append-only
// and the index must keep tracking snapshots taken after the restored ref.
// Without force it refuses while any target sheet has an Error-severity
// violation. The prior row counts go into the audit log for traceability.
func (m *Manager) Restore(ctx context.Context, ref string, force bool) error {
	snap, ok, err := m.find(ctx, ref)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSnapshot, ref)
	}

	f, err := excelize.OpenFile(snap.File)
	if err != nil {
		return fmt.Errorf("open snapshot %s: %w", ref, err)
	}
	defer f.Close()
	targets := make([]string, 0, len(f.GetSheetList()))
	for _, sheet := range f.GetSheetList() {
		if model.IsEngineSheet(sheet) {
			continue
		}
		targets = append(targets, sheet)
	}

	if !force && m.guard != nil {
		n, err := m.guard.TargetErrors(ctx, targets...)
		if err != nil {
			return fmt.Errorf("pre-restore validation: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: %d error(s) on target sheets", ErrRestoreBlocked, n)
		}
	}

	priorCounts := make([]string, 0, len(targets))
	for _, sheet := range targets {
		rows, err := m.store.ReadRows(ctx, sheet)
		if err != nil {
			return fmt.Errorf("read %s: %w", sheet, err)
		}
		priorCounts = append(priorCounts, fmt.Sprintf("%s=%d", sheet, len(rows)))
	}

	restored := 0
	for _, sheet := range targets {
		rows, err := readSheet(f, sheet)
		if err != nil {
			return fmt.Errorf("decode %s: %w", sheet, err)
		}
		if err := m.store.ReplaceSheet(ctx, sheet, rows); err != nil {
			return fmt.Errorf("replace %s: %w", sheet, err)
		}
		restored += len(rows)
	}

	if m.audit != nil {
		m.audit.Append(ctx, audit.Record{
			At:      m.nowFn(),
			Job:     "restore",
			Outcome: model.OutcomeSuccess,
			Counts:  audit.Counts{BackedUp: restored},
			Detail: fmt.Sprintf("restored %d sheet(s) from %s; prior row counts: %s",
				len(targets), ref, strings.Join(priorCounts, ", ")),
		})
	}
	m.log.Info("restore complete", logx.String("ref", ref), logx.Bool("forced", force))
	return nil
}

// LatestGood returns the newest verified snapshot.
func (m *Manager) LatestGood(ctx context.Context) (Snapshot, bool, error) {
	snaps, err := m.List(ctx)
	if err != nil {
		return Snapshot{}, false, err
	}
	for i := len(snaps) - 1; i >= 0; i-- {
		if snaps[i].Verified {
			return snaps[i], true, nil
		}
	}
	return Snapshot{}, false, nil
}

// List returns indexed snapshots ordered oldest first.
func (m *Manager) List(ctx context.Context) ([]Snapshot, error) {
	rows, err := m.store.ReadRows(ctx, model.SheetSnapshots)
	if err != nil {
		return nil, err
	}
	snaps := make([]Snapshot, 0, len(rows))
	for _, r := range rows {
		snaps = append(snaps, snapshotFromRow(r))
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].At.Before(snaps[j].At) })
	return snaps, nil
}

// prune deletes the oldest snapshots beyond the retention limit, oldest
// first. The most recent verified snapshot survives even when Keep is
// misconfigured to zero.
func (m *Manager) prune(ctx context.Context, latestVerified string) error {
	snaps, err := m.List(ctx)
	if err != nil {
		return err
	}
	excess := len(snaps) - m.cfg.Keep
	for _, snap := range snaps {
		if excess <= 0 {
			break
		}
		if snap.Ref == latestVerified {
			continue
		}
		if err := os.Remove(snap.File); err != nil && !os.IsNotExist(err) {
			return err
		}
		if _, err := m.store.DeleteRows(ctx, model.SheetSnapshots, func(r store.Row) bool {
			return r[colRef] == snap.Ref
		}); err != nil {
			return err
		}
		m.log.Debug("snapshot pruned", logx.String("ref", snap.Ref))
		excess--
	}
	return nil
}

func (m *Manager) indexSnapshot(ctx context.Context, snap Snapshot) error {
	counts := make([]string, 0, len(snap.RowCounts))
	for _, sheet := range sortedSheets(snap.RowCounts) {
		counts = append(counts, fmt.Sprintf("%s=%d", sheet, snap.RowCounts[sheet]))
	}
	row := store.Row{
		colRef:      snap.Ref,
		colAt:       snap.At.Format(time.RFC3339),
		colFile:     snap.File,
		colCounts:   strings.Join(counts, ","),
		colVerified: strconv.FormatBool(snap.Verified),
	}
	return m.store.AppendRow(ctx, model.SheetSnapshots, row)
}

func (m *Manager) find(ctx context.Context, ref string) (Snapshot, bool, error) {
	snaps, err := m.List(ctx)
	if err != nil {
		return Snapshot{}, false, err
	}
	for _, s := range snaps {
		if s.Ref == ref {
			return s, true, nil
		}
	}
	return Snapshot{}, false, nil
}

func snapshotFromRow(r store.Row) Snapshot {
	at, _ := time.Parse(time.RFC3339, r[colAt])
	verified, _ := strconv.ParseBool(r[colVerified])
	counts := map[string]int{}
	for _, pair := range strings.Split(r[colCounts], ",") {
		if sheet, n, ok := strings.Cut(pair, "="); ok {
			if v, err := strconv.Atoi(n); err == nil {
				counts[sheet] = v
			}
		}
	}
	return Snapshot{
		Ref:       r[colRef],
		At:        at,
		File:      r[colFile],
		RowCounts: counts,
		Verified:  verified,
	}
}

func sortedSheets(counts map[string]int) []string {
	out := make([]string, 0, len(counts))
	for sheet := range counts {
		out = append(out, sheet)
	}
	sort.Strings(out)
	return out
}

// writeSheet lays a sheet out as a header row plus one row per store row,
// with columns ordered by the sorted union of headers.
func writeSheet(f *excelize.File, sheet string, rows []store.Row) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	headers := headerUnion(rows)
	if len(headers) == 0 {
		return nil
	}
	cells := make([]interface{}, len(headers))
	for i, h := range headers {
		cells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &cells); err != nil {
		return err
	}
	for i, row := range rows {
		for j, h := range headers {
			cells[j] = row[h]
		}
		addr, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, addr, &cells); err != nil {
			return err
		}
	}
	return nil
}

// readSheet decodes a worksheet back into store rows using its header row.
func readSheet(f *excelize.File, sheet string) ([]store.Row, error) {
	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	headers := raw[0]
	out := make([]store.Row, 0, len(raw)-1)
	for _, cells := range raw[1:] {
		row := store.Row{}
		for i, h := range headers {
			if i < len(cells) {
				row[h] = cells[i]
			} else {
				row[h] = ""
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func headerUnion(rows []store.Row) []string {
	set := map[string]bool{}
	for _, r := range rows {
		for k := range r {
			set[k] = true
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
