// Package sqlite stores workshop progress and events in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AaronLay10/RepairWorkshop/internal/progress"
	"github.com/AaronLay10/RepairWorkshop/internal/storage"
)

const timeLayout = time.RFC3339Nano

// Store is a storage.Backend over one SQLite database, scoped to a workshop id.
type Store struct {
	db         *sql.DB
	workshopID string
}

var _ storage.Backend = (*Store)(nil)

// New opens (creating if needed) the database at path.
func New(path, workshopID string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// Writers would otherwise race for the file lock.
	db.SetMaxOpenConns(1)
	return &Store{db: db, workshopID: workshopID}, nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			event_id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			level TEXT NOT NULL,
			event TEXT NOT NULL,
			msg TEXT,
			fields TEXT,
			workshop_id TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_workshop_ts ON events(workshop_id, ts DESC);`,
		`CREATE TABLE IF NOT EXISTS progress (
			workshop_id TEXT PRIMARY KEY,
			total_repairs INTEGER NOT NULL DEFAULT 0,
			perfect_repairs INTEGER NOT NULL DEFAULT 0,
			total_play_ms INTEGER NOT NULL DEFAULT 0,
			fastest_repair_ms INTEGER,
			last_played_ts TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS progress_tools (
			workshop_id TEXT NOT NULL,
			tool_id TEXT NOT NULL,
			PRIMARY KEY(workshop_id, tool_id)
		);`,
		`CREATE TABLE IF NOT EXISTS achievements (
			workshop_id TEXT NOT NULL,
			achievement_id TEXT NOT NULL,
			unlocked_ts TEXT NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY(workshop_id, achievement_id)
		);`,
		`CREATE TABLE IF NOT EXISTS repaired_tools (
			workshop_id TEXT NOT NULL,
			tool_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY(workshop_id, tool_id)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// AppendEvent inserts an event. It implements events.Sink.
func (s *Store) AppendEvent(ts time.Time, level, event, msg string, fields map[string]interface{}) error {
	var fieldsJSON *string
	if fields != nil {
		b, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
		str := string(b)
		fieldsJSON = &str
	}
	var msgPtr *string
	if msg != "" {
		msgPtr = &msg
	}
	_, err := s.db.Exec(
		`INSERT INTO events(ts, level, event, msg, fields, workshop_id) VALUES(?,?,?,?,?,?)`,
		ts.UTC().Format(timeLayout), level, event, msgPtr, fieldsJSON, s.workshopID,
	)
	return err
}

// QueryEvents returns the most recent events, newest first.
func (s *Store) QueryEvents(ctx context.Context, limit int) ([]storage.EventRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, ts, level, event, msg, fields, workshop_id
		FROM events
		WHERE workshop_id = ?
		ORDER BY event_id DESC
		LIMIT ?
	`, s.workshopID, storage.ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.EventRow
	for rows.Next() {
		var (
			e      storage.EventRow
			ts     string
			msg    sql.NullString
			fields sql.NullString
		)
		if err := rows.Scan(&e.EventID, &ts, &e.Level, &e.Event, &msg, &fields, &e.WorkshopID); err != nil {
			return nil, err
		}
		if t, err := time.Parse(timeLayout, ts); err == nil {
			e.Timestamp = t
		}
		if msg.Valid {
			e.Message = &msg.String
		}
		if fields.Valid && fields.String != "" {
			if err := json.Unmarshal([]byte(fields.String), &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LoadProgress returns saved progress, or the zero value if none was saved.
func (s *Store) LoadProgress(ctx context.Context) (progress.GameProgress, error) {
	var (
		p          progress.GameProgress
		playMS     int64
		fastestMS  sql.NullInt64
		lastPlayed string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT total_repairs, perfect_repairs, total_play_ms, fastest_repair_ms, last_played_ts
		FROM progress WHERE workshop_id = ?
	`, s.workshopID).Scan(&p.TotalRepairs, &p.PerfectRepairs, &playMS, &fastestMS, &lastPlayed)
	if err == sql.ErrNoRows {
		return p, nil
	}
	if err != nil {
		return p, err
	}
	p.TotalPlayTime = time.Duration(playMS) * time.Millisecond
	if fastestMS.Valid {
		fastest := time.Duration(fastestMS.Int64) * time.Millisecond
		p.FastestRepair = &fastest
	}
	if t, err := time.Parse(timeLayout, lastPlayed); err == nil {
		p.LastPlayed = t
	}

	rows, err := s.db.QueryContext(ctx, `SELECT tool_id FROM progress_tools WHERE workshop_id = ? ORDER BY tool_id`, s.workshopID)
	if err != nil {
		return p, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return p, err
		}
		p.ToolsRepaired = append(p.ToolsRepaired, id)
	}
	return p, rows.Err()
}

// SaveProgress replaces the saved progress.
func (s *Store) SaveProgress(ctx context.Context, p progress.GameProgress) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var fastest sql.NullInt64
	if p.FastestRepair != nil {
		fastest = sql.NullInt64{Int64: p.FastestRepair.Milliseconds(), Valid: true}
	}
	lastPlayed := ""
	if !p.LastPlayed.IsZero() {
		lastPlayed = p.LastPlayed.UTC().Format(timeLayout)
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO progress(workshop_id, total_repairs, perfect_repairs, total_play_ms, fastest_repair_ms, last_played_ts)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(workshop_id) DO UPDATE SET
			total_repairs = excluded.total_repairs,
			perfect_repairs = excluded.perfect_repairs,
			total_play_ms = excluded.total_play_ms,
			fastest_repair_ms = excluded.fastest_repair_ms,
			last_played_ts = excluded.last_played_ts
	`, s.workshopID, p.TotalRepairs, p.PerfectRepairs, p.TotalPlayTime.Milliseconds(), fastest, lastPlayed); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM progress_tools WHERE workshop_id = ?`, s.workshopID); err != nil {
		return err
	}
	for _, id := range p.ToolsRepaired {
		if _, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO progress_tools(workshop_id, tool_id) VALUES(?, ?)`, s.workshopID, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadAchievements returns the ids of unlocked achievements.
func (s *Store) LoadAchievements(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx, `SELECT achievement_id FROM achievements WHERE workshop_id = ? ORDER BY achievement_id`)
}

// SaveAchievements replaces the set of unlocked achievements. Existing unlock
// times are kept.
func (s *Store) SaveAchievements(ctx context.Context, ids []string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
		if _, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO achievements(workshop_id, achievement_id) VALUES(?, ?)`, s.workshopID, id); err != nil {
			return err
		}
	}
	existing, err := txIDs(ctx, tx, `SELECT achievement_id FROM achievements WHERE workshop_id = ?`, s.workshopID)
	if err != nil {
		return err
	}
	for _, id := range existing {
		if keep[id] {
			continue
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM achievements WHERE workshop_id = ? AND achievement_id = ?`, s.workshopID, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadRepairedTools returns repaired tool ids in the order they were saved.
func (s *Store) LoadRepairedTools(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx, `SELECT tool_id FROM repaired_tools WHERE workshop_id = ? ORDER BY position`)
}

// SaveRepairedTools replaces the list of repaired tools.
func (s *Store) SaveRepairedTools(ctx context.Context, ids []string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM repaired_tools WHERE workshop_id = ?`, s.workshopID); err != nil {
		return err
	}
	for i, id := range ids {
		if _, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO repaired_tools(workshop_id, tool_id, position) VALUES(?, ?, ?)`, s.workshopID, id, i); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) queryIDs(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, s.workshopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func txIDs(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
