// Package history persists finished conversions in a DuckDB file so the
// service can answer "recent conversions" and aggregate stats queries
// without keeping everything in memory.
package history

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/marcboeker/go-duckdb"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/models"
)

// Entry is one recorded conversion outcome.
type Entry struct {
	ID              string    `json:"id"`
	ToolID          string    `json:"toolId"`
	InputName       string    `json:"inputName"`
	TargetFormat    string    `json:"targetFormat"`
	InputSize       int64     `json:"inputSize"`
	OutputSize      int64     `json:"outputSize"`
	DurationSeconds float64   `json:"durationSeconds"`
	Status          string    `json:"status"` // completed | error
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Stats aggregates the recorded history.
type Stats struct {
	Total           int64              `json:"total"`
	Completed       int64              `json:"completed"`
	Failed          int64              `json:"failed"`
	AvgDurationSecs float64            `json:"avgDurationSeconds"`
	ByTool          map[string]int64   `json:"byTool"`
}

// Store is a DuckDB-backed conversion history.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at dbPath.
func Open(dbPath string) (*Store, error) {
	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='256MB'",
			"PRAGMA threads=2",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating duckdb connector: %w", err)
	}

	db := sql.OpenDB(connector)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS conversions (
			id               VARCHAR PRIMARY KEY,
			tool_id          VARCHAR NOT NULL,
			input_name       VARCHAR NOT NULL,
			target_format    VARCHAR NOT NULL,
			input_size       BIGINT,
			output_size      BIGINT,
			duration_seconds DOUBLE,
			status           VARCHAR NOT NULL,
			error            VARCHAR,
			created_at       BIGINT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating conversions table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one finished conversion.
func (s *Store) Record(e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO conversions
			(id, tool_id, input_name, target_format, input_size, output_size, duration_seconds, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ToolID, e.InputName, e.TargetFormat, e.InputSize, e.OutputSize,
		e.DurationSeconds, e.Status, e.Error, e.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("recording conversion: %w", err)
	}
	return nil
}

// RecordFromFile maps a terminal session record into a history entry.
func (s *Store) RecordFromFile(rec models.FileRecord, targetFormat string) error {
	e := Entry{
		ID:           rec.ID,
		ToolID:       rec.ToolID,
		InputName:    rec.Name,
		TargetFormat: targetFormat,
		InputSize:    rec.Size,
		Status:       string(rec.Status),
		Error:        rec.Error,
	}
	if rec.Result != nil {
		e.OutputSize = rec.Result.OutputSize
		e.DurationSeconds = rec.Result.DurationSeconds
		if targetFormat == "" {
			e.TargetFormat = rec.Result.OutputFormat
		}
	}
	return s.Record(e)
}

// Recent returns the latest entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, tool_id, input_name, target_format, input_size, output_size,
		       duration_seconds, status, COALESCE(error, ''), created_at
		FROM conversions
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var createdMs int64
		if err := rows.Scan(&e.ID, &e.ToolID, &e.InputName, &e.TargetFormat,
			&e.InputSize, &e.OutputSize, &e.DurationSeconds, &e.Status, &e.Error, &createdMs); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		e.CreatedAt = time.UnixMilli(createdMs)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats computes aggregate counters over the whole history.
func (s *Store) Stats() (*Stats, error) {
	st := &Stats{ByTool: make(map[string]int64)}

	row := s.db.QueryRow(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'error'),
		       COALESCE(AVG(duration_seconds) FILTER (WHERE status = 'completed'), 0)
		FROM conversions`)
	if err := row.Scan(&st.Total, &st.Completed, &st.Failed, &st.AvgDurationSecs); err != nil {
		return nil, fmt.Errorf("scanning stats: %w", err)
	}

	rows, err := s.db.Query(`SELECT tool_id, COUNT(*) FROM conversions GROUP BY tool_id`)
	if err != nil {
		return nil, fmt.Errorf("querying per-tool stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tool string
		var count int64
		if err := rows.Scan(&tool, &count); err != nil {
			return nil, fmt.Errorf("scanning per-tool row: %w", err)
		}
		st.ByTool[tool] = count
	}
	return st, rows.Err()
}
