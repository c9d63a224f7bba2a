// Package store provides SQLite-backed persistence for completed-sprint
// history. The planning engine itself never writes here implicitly; history
// is recorded explicitly by the caller and read back to derive auto velocity
// and estimation calibration.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // register sqlite3 driver

	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/estimate"
)

const (
	pragmaJournalModeWAL = `PRAGMA journal_mode = WAL;`
	pragmaForeignKeysOn  = `PRAGMA foreign_keys = ON;`

	sprintTableSchema = `CREATE TABLE IF NOT EXISTS sprints (
		id TEXT PRIMARY KEY,
		committed_points INTEGER NOT NULL DEFAULT 0,
		completed_points INTEGER NOT NULL DEFAULT 0,
		duration_days INTEGER NOT NULL DEFAULT 0,
		team_size INTEGER NOT NULL DEFAULT 0,
		ended_at DATETIME NOT NULL
	);`

	insertSprintSQL = `INSERT INTO sprints (
		id, committed_points, completed_points, duration_days, team_size, ended_at
	) VALUES (?, ?, ?, ?, ?, ?);`

	recentSprintsSQL = `SELECT id, committed_points, completed_points, duration_days, team_size, ended_at
		FROM sprints ORDER BY ended_at DESC LIMIT ?;`

	completionStatsSQL = `SELECT COUNT(*), COALESCE(SUM(committed_points), 0), COALESCE(SUM(completed_points), 0)
		FROM sprints WHERE ended_at >= ?;`
)

// SprintRecord is one completed sprint as persisted.
type SprintRecord struct {
	ID              string
	CommittedPoints int
	CompletedPoints int
	DurationDays    int
	TeamSize        int
	EndedAt         time.Time
}

// Outcome converts a record into the calibrator's throughput shape.
func (r SprintRecord) Outcome() estimate.SprintOutcome {
	return estimate.SprintOutcome{
		CommittedPoints: r.CommittedPoints,
		CompletedPoints: r.CompletedPoints,
		DurationDays:    r.DurationDays,
	}
}

// CompletionStats summarizes throughput over a window.
type CompletionStats struct {
	Sprints         int
	CommittedPoints int
	CompletedPoints int
}

// Store wraps the history database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path and ensures
// the schema exists. Use ":memory:" for tests.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing database handle without touching the schema.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates tables and applies pragmas. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{pragmaJournalModeWAL, pragmaForeignKeysOn, sprintTableSchema} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: ensure schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSprintRecord persists one completed sprint.
func (s *Store) SaveSprintRecord(ctx context.Context, rec SprintRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("store: sprint record requires an id")
	}
	if rec.EndedAt.IsZero() {
		rec.EndedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, insertSprintSQL,
		rec.ID, rec.CommittedPoints, rec.CompletedPoints, rec.DurationDays, rec.TeamSize,
		rec.EndedAt.UTC())
	if err != nil {
		return fmt.Errorf("store: save sprint %s: %w", rec.ID, err)
	}
	return nil
}

// RecentSprints returns up to n most recently ended sprints, newest first.
func (s *Store) RecentSprints(ctx context.Context, n int) ([]SprintRecord, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx, recentSprintsSQL, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent sprints: %w", err)
	}
	defer rows.Close()

	var records []SprintRecord
	for rows.Next() {
		var rec SprintRecord
		if err := rows.Scan(&rec.ID, &rec.CommittedPoints, &rec.CompletedPoints,
			&rec.DurationDays, &rec.TeamSize, &rec.EndedAt); err != nil {
			return nil, fmt.Errorf("store: scan sprint: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent sprints: %w", err)
	}
	return records, nil
}

// Outcomes returns the n most recent sprints in calibrator shape.
func (s *Store) Outcomes(ctx context.Context, n int) ([]estimate.SprintOutcome, error) {
	records, err := s.RecentSprints(ctx, n)
	if err != nil {
		return nil, err
	}
	outcomes := make([]estimate.SprintOutcome, 0, len(records))
	for _, rec := range records {
		outcomes = append(outcomes, rec.Outcome())
	}
	return outcomes, nil
}

// CompletionStats aggregates throughput for sprints ending within the window.
func (s *Store) CompletionStats(ctx context.Context, window time.Duration) (CompletionStats, error) {
	cutoff := time.Now().Add(-window).UTC()
	var stats CompletionStats
	err := s.db.QueryRowContext(ctx, completionStatsSQL, cutoff).
		Scan(&stats.Sprints, &stats.CommittedPoints, &stats.CompletedPoints)
	if err != nil {
		return CompletionStats{}, fmt.Errorf("store: completion stats: %w", err)
	}
	return stats, nil
}
