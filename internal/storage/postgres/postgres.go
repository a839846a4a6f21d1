// Package postgres stores workshop progress and events in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/AaronLay10/RepairWorkshop/internal/progress"
	"github.com/AaronLay10/RepairWorkshop/internal/storage"
)

// Client manages the Postgres connection for one workshop.
type Client struct {
	db         *sql.DB
	workshopID string
}

var _ storage.Backend = (*Client)(nil)

// New connects using the PG* environment variables and creates the tables.
func New(workshopID string) (*Client, error) {
	db, err := sql.Open("postgres", ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{
		db:         db,
		workshopID: workshopID,
	}

	if err := client.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return client, nil
}

// ConnString builds a lib/pq connection string from PGHOST, PGPORT, PGUSER,
// PGDATABASE and PGPASSWORD.
func ConnString() string {
	host := getEnv("PGHOST", "127.0.0.1")
	port := getEnv("PGPORT", "5432")
	user := getEnv("PGUSER", "workshop")
	dbname := getEnv("PGDATABASE", "workshop")
	password := os.Getenv("PGPASSWORD")

	if password != "" {
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname)
	}
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		host, port, user, dbname)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func (c *Client) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS events (
			event_id    BIGSERIAL PRIMARY KEY,
			ts          TIMESTAMPTZ NOT NULL,
			level       TEXT NOT NULL,
			event       TEXT NOT NULL,
			msg         TEXT,
			fields      JSONB,
			workshop_id TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_events_workshop_id ON events(workshop_id);

		CREATE TABLE IF NOT EXISTS progress (
			workshop_id       TEXT PRIMARY KEY,
			total_repairs     INTEGER NOT NULL DEFAULT 0,
			perfect_repairs   INTEGER NOT NULL DEFAULT 0,
			total_play_ms     BIGINT NOT NULL DEFAULT 0,
			fastest_repair_ms BIGINT,
			last_played       TIMESTAMPTZ,
			tools_repaired    JSONB NOT NULL DEFAULT '[]'
		);

		CREATE TABLE IF NOT EXISTS achievements (
			workshop_id    TEXT NOT NULL,
			achievement_id TEXT NOT NULL,
			unlocked_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (workshop_id, achievement_id)
		);

		CREATE TABLE IF NOT EXISTS repaired_tools (
			workshop_id TEXT NOT NULL,
			tool_id     TEXT NOT NULL,
			position    INTEGER NOT NULL,
			PRIMARY KEY (workshop_id, tool_id)
		);
	`
	_, err := c.db.Exec(query)
	return err
}

// AppendEvent inserts an event into the database. It implements events.Sink.
func (c *Client) AppendEvent(ts time.Time, level, event, msg string, fields map[string]interface{}) error {
	var fieldsJSON []byte
	var err error
	if fields != nil {
		fieldsJSON, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	var msgPtr *string
	if msg != "" {
		msgPtr = &msg
	}

	query := `
		INSERT INTO events (ts, level, event, msg, fields, workshop_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = c.db.Exec(query, ts, level, event, msgPtr, fieldsJSON, c.workshopID)
	return err
}

// QueryEvents returns the last N events in descending order by timestamp.
func (c *Client) QueryEvents(ctx context.Context, limit int) ([]storage.EventRow, error) {
	query := `
		SELECT event_id, ts, level, event, msg, fields, workshop_id
		FROM events
		WHERE workshop_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, query, c.workshopID, storage.ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []storage.EventRow
	for rows.Next() {
		var e storage.EventRow
		var fieldsJSON []byte
		var msg sql.NullString

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fieldsJSON, &e.WorkshopID); err != nil {
			return nil, err
		}

		if msg.Valid {
			e.Message = &msg.String
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

// LoadProgress returns saved progress, or the zero value if none was saved.
func (c *Client) LoadProgress(ctx context.Context) (progress.GameProgress, error) {
	var (
		p          progress.GameProgress
		playMS     int64
		fastestMS  sql.NullInt64
		lastPlayed sql.NullTime
		toolsJSON  []byte
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT total_repairs, perfect_repairs, total_play_ms, fastest_repair_ms, last_played, tools_repaired
		FROM progress WHERE workshop_id = $1
	`, c.workshopID).Scan(&p.TotalRepairs, &p.PerfectRepairs, &playMS, &fastestMS, &lastPlayed, &toolsJSON)
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
	if lastPlayed.Valid {
		p.LastPlayed = lastPlayed.Time
	}
	if len(toolsJSON) > 0 {
		if err := json.Unmarshal(toolsJSON, &p.ToolsRepaired); err != nil {
			return p, fmt.Errorf("failed to unmarshal tools: %w", err)
		}
	}
	return p, nil
}

// SaveProgress upserts the workshop's progress row.
func (c *Client) SaveProgress(ctx context.Context, p progress.GameProgress) error {
	toolsJSON, err := json.Marshal(p.ToolsRepaired)
	if err != nil {
		return fmt.Errorf("failed to marshal tools: %w", err)
	}
	var fastest sql.NullInt64
	if p.FastestRepair != nil {
		fastest = sql.NullInt64{Int64: p.FastestRepair.Milliseconds(), Valid: true}
	}
	var lastPlayed sql.NullTime
	if !p.LastPlayed.IsZero() {
		lastPlayed = sql.NullTime{Time: p.LastPlayed, Valid: true}
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO progress (workshop_id, total_repairs, perfect_repairs, total_play_ms, fastest_repair_ms, last_played, tools_repaired)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (workshop_id) DO UPDATE SET
			total_repairs = EXCLUDED.total_repairs,
			perfect_repairs = EXCLUDED.perfect_repairs,
			total_play_ms = EXCLUDED.total_play_ms,
			fastest_repair_ms = EXCLUDED.fastest_repair_ms,
			last_played = EXCLUDED.last_played,
			tools_repaired = EXCLUDED.tools_repaired
	`, c.workshopID, p.TotalRepairs, p.PerfectRepairs, p.TotalPlayTime.Milliseconds(), fastest, lastPlayed, toolsJSON)
	return err
}

// LoadAchievements returns the ids of unlocked achievements.
func (c *Client) LoadAchievements(ctx context.Context) ([]string, error) {
	return c.queryIDs(ctx, `SELECT achievement_id FROM achievements WHERE workshop_id = $1 ORDER BY achievement_id`)
}

// SaveAchievements replaces the set of unlocked achievements, keeping the
// unlock time of those already stored.
func (c *Client) SaveAchievements(ctx context.Context, ids []string) (err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if ids == nil {
		ids = []string{}
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal achievements: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `
		DELETE FROM achievements
		WHERE workshop_id = $1
		AND NOT (achievement_id IN (SELECT jsonb_array_elements_text($2::jsonb)))
	`, c.workshopID, string(idsJSON)); err != nil {
		return err
	}
	for _, id := range ids {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO achievements (workshop_id, achievement_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, c.workshopID, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadRepairedTools returns repaired tool ids in saved order.
func (c *Client) LoadRepairedTools(ctx context.Context) ([]string, error) {
	return c.queryIDs(ctx, `SELECT tool_id FROM repaired_tools WHERE workshop_id = $1 ORDER BY position`)
}

// SaveRepairedTools replaces the list of repaired tools.
func (c *Client) SaveRepairedTools(ctx context.Context, ids []string) (err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM repaired_tools WHERE workshop_id = $1`, c.workshopID); err != nil {
		return err
	}
	for i, id := range ids {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO repaired_tools (workshop_id, tool_id, position) VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, c.workshopID, id, i); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (c *Client) queryIDs(ctx context.Context, query string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, query, c.workshopID)
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

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping checks the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
