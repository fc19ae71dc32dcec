// Package sqlstore keeps gage reading and stage transition history in SQL.
// SQLite (modernc, pure Go) is the default; MySQL is supported for shared
// deployments.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/couchcryptid/glof-monitor/internal/domain"
	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

type dialect struct {
	schema       []string
	insertIgnore string
}

var dialects = map[string]dialect{
	"sqlite": {
		schema: []string{
			`CREATE TABLE IF NOT EXISTS readings (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				gage_id TEXT NOT NULL,
				feet REAL NOT NULL,
				observed_at INTEGER NOT NULL,
				stage TEXT NOT NULL,
				UNIQUE (gage_id, observed_at)
			)`,
			`CREATE TABLE IF NOT EXISTS transitions (
				id TEXT PRIMARY KEY,
				gage_id TEXT NOT NULL,
				from_stage TEXT NOT NULL,
				to_stage TEXT NOT NULL,
				stage_index INTEGER NOT NULL,
				feet REAL NOT NULL,
				occurred_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_transitions_gage ON transitions (gage_id, occurred_at)`,
		},
		insertIgnore: "INSERT OR IGNORE INTO",
	},
	"mysql": {
		schema: []string{
			`CREATE TABLE IF NOT EXISTS readings (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				gage_id VARCHAR(32) NOT NULL,
				feet DOUBLE NOT NULL,
				observed_at BIGINT NOT NULL,
				stage VARCHAR(64) NOT NULL,
				UNIQUE KEY uq_readings_gage_time (gage_id, observed_at)
			)`,
			`CREATE TABLE IF NOT EXISTS transitions (
				id CHAR(36) PRIMARY KEY,
				gage_id VARCHAR(32) NOT NULL,
				from_stage VARCHAR(64) NOT NULL,
				to_stage VARCHAR(64) NOT NULL,
				stage_index INT NOT NULL,
				feet DOUBLE NOT NULL,
				occurred_at BIGINT NOT NULL,
				INDEX idx_transitions_gage (gage_id, occurred_at)
			)`,
		},
		insertIgnore: "INSERT IGNORE INTO",
	},
}

// Store is the reading and transition history.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// Open connects with driver ("sqlite" or "mysql"), verifies the connection
// and creates missing tables.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	if driver == "sqlite" {
		// One connection keeps :memory: databases shared and serializes writers.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s store: %w", driver, err)
	}

	s := &Store{db: db, dialect: d}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// RecordReading stores a reading. Re-recording the same gage and observation
// time is ignored.
func (s *Store) RecordReading(ctx context.Context, r domain.WaterLevel, stage string) error {
	q := s.dialect.insertIgnore + ` readings (gage_id, feet, observed_at, stage) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, r.GageID, r.Feet, r.Time.UnixMilli(), stage); err != nil {
		return fmt.Errorf("insert reading for %s: %w", r.GageID, err)
	}
	return nil
}

// RecordTransition stores a stage transition.
func (s *Store) RecordTransition(ctx context.Context, t domain.StageTransition) error {
	q := s.dialect.insertIgnore + ` transitions (id, gage_id, from_stage, to_stage, stage_index, feet, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, t.ID, t.GageID, t.From, t.To, t.StageIndex, t.Feet, t.At.UnixMilli()); err != nil {
		return fmt.Errorf("insert transition %s: %w", t.ID, err)
	}
	return nil
}

// RecentReadings returns up to limit readings for a gage, newest first.
func (s *Store) RecentReadings(ctx context.Context, gageID string, limit int) ([]domain.WaterLevel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT gage_id, feet, observed_at FROM readings WHERE gage_id = ? ORDER BY observed_at DESC LIMIT ?`,
		gageID, limit)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	out := []domain.WaterLevel{}
	for rows.Next() {
		var r domain.WaterLevel
		var ms int64
		if err := rows.Scan(&r.GageID, &r.Feet, &ms); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		r.Time = time.UnixMilli(ms).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentTransitions returns up to limit transitions, newest first. An empty
// gageID returns transitions for every gage.
func (s *Store) RecentTransitions(ctx context.Context, gageID string, limit int) ([]domain.StageTransition, error) {
	q := `SELECT id, gage_id, from_stage, to_stage, stage_index, feet, occurred_at FROM transitions`
	args := []any{}
	if gageID != "" {
		q += ` WHERE gage_id = ?`
		args = append(args, gageID)
	}
	q += ` ORDER BY occurred_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	out := []domain.StageTransition{}
	for rows.Next() {
		var t domain.StageTransition
		var ms int64
		if err := rows.Scan(&t.ID, &t.GageID, &t.From, &t.To, &t.StageIndex, &t.Feet, &ms); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.At = time.UnixMilli(ms).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
