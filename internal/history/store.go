// Package history persists a provenance log of submitted routes in SQLite:
// one row per route that reached an outcome, whether it committed, was
// cancelled, or failed resolution.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS route_log (
	route_id      TEXT PRIMARY KEY,
	from_expr     TEXT NOT NULL,
	from_pose     TEXT NOT NULL,
	to_expr       TEXT NOT NULL,
	to_pose       TEXT NOT NULL,
	segments_json TEXT NOT NULL,
	outcome       TEXT NOT NULL,
	detail        TEXT,
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_route_log_finished ON route_log(finished_at);
`

// #endregion schema

// #region types

// SegmentRecord is the persisted form of one route segment.
type SegmentRecord struct {
	PathID    string `json:"path_id"`
	Direction string `json:"direction"`
}

// RouteRecord is one logged route outcome.
type RouteRecord struct {
	RouteID    string
	FromExpr   string
	FromPose   string
	ToExpr     string
	ToPose     string
	Segments   []SegmentRecord
	Outcome    string // committed | cancelled | fetch_error
	Detail     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store manages the route log database.
type Store struct {
	db *sql.DB
}

// #endregion types

// #region constructor

// NewStore opens the SQLite database at dbPath and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion constructor

// #region record

// RecordRoute writes one route outcome. Timestamps default to now when zero.
func (s *Store) RecordRoute(rec RouteRecord) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now().UTC()
	}

	segJSON, err := json.Marshal(rec.Segments)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO route_log (route_id, from_expr, from_pose, to_expr, to_pose, segments_json, outcome, detail, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RouteID,
		rec.FromExpr, rec.FromPose,
		rec.ToExpr, rec.ToPose,
		string(segJSON),
		rec.Outcome,
		nullIfEmpty(rec.Detail),
		rec.StartedAt.Format(time.RFC3339Nano),
		rec.FinishedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record route: %w", err)
	}
	return nil
}

// #endregion record

// #region list

// ListRecent returns the most recently finished routes, newest first.
func (s *Store) ListRecent(limit int) ([]RouteRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT route_id, from_expr, from_pose, to_expr, to_pose, segments_json, detail, outcome, started_at, finished_at
		 FROM route_log ORDER BY finished_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	defer rows.Close()

	var records []RouteRecord
	for rows.Next() {
		var rec RouteRecord
		var segJSON, startedStr, finishedStr string
		var detail sql.NullString
		if err := rows.Scan(
			&rec.RouteID,
			&rec.FromExpr, &rec.FromPose,
			&rec.ToExpr, &rec.ToPose,
			&segJSON, &detail, &rec.Outcome,
			&startedStr, &finishedStr,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(segJSON), &rec.Segments); err != nil {
			return nil, fmt.Errorf("unmarshal segments: %w", err)
		}
		if detail.Valid {
			rec.Detail = detail.String
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
		rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion list

// #region helpers

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
