package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"sheetops/pkg/logx"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS rows (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	sheet TEXT NOT NULL,
	data  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rows_sheet ON rows(sheet);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) ReadRows(ctx context.Context, sheet string) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM rows WHERE sheet=? ORDER BY id`, sheet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r Row
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("sheet %s: corrupt row: %w", sheet, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) AppendRow(ctx context.Context, sheet string, row Row) error {
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO rows(sheet, data) VALUES(?,?)`, sheet, string(data))
	return err
}

func (s *sqliteStore) UpsertByKey(ctx context.Context, sheet, keyCol, key string, row Row) error {
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE rows SET data=? WHERE sheet=? AND json_extract(data, '$.' || ?) = ?`,
		string(data), sheet, keyCol, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := tx.ExecContext(ctx, `INSERT INTO rows(sheet, data) VALUES(?,?)`, sheet, string(data)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) DeleteRows(ctx context.Context, sheet string, match func(Row) bool) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id, data FROM rows WHERE sheet=? ORDER BY id`, sheet)
	if err != nil {
		return 0, err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		var data string
		if err := rows.Scan(&id, &data); err != nil {
			rows.Close()
			return 0, err
		}
		var r Row
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			rows.Close()
			return 0, fmt.Errorf("sheet %s: corrupt row: %w", sheet, err)
		}
		if match(r) {
			ids = append(ids, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rows WHERE id=?`, id); err != nil {
			return 0, err
		}
	}
	return len(ids), tx.Commit()
}

func (s *sqliteStore) ReplaceSheet(ctx context.Context, sheet string, newRows []Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rows WHERE sheet=?`, sheet); err != nil {
		return err
	}
	for _, r := range newRows {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO rows(sheet, data) VALUES(?,?)`, sheet, string(data)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) Sheets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT sheet FROM rows ORDER BY sheet`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
