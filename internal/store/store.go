package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/arturkwiek/SDD/internal/aggregate"
	"github.com/arturkwiek/SDD/internal/detection"
	"github.com/arturkwiek/SDD/internal/logger"
	"github.com/arturkwiek/SDD/internal/threat"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrRunNotFound is returned when a run ID is not in the database
var ErrRunNotFound = errors.New("run not found")

// Store keeps the history of detection runs in SQLite
type Store struct {
	db     *sql.DB
	dbPath string
	logger *logger.Logger
	mu     sync.Mutex
}

// RunInfo describes a run independently of what it detected
type RunInfo struct {
	Source      string
	Model       string
	Backend     string
	OrderPolicy string
	StartedAt   time.Time
	FinishedAt  time.Time
	Frames      int
}

// Run is a stored run with its totals
type Run struct {
	ID string
	RunInfo
	Detections  int
	Classes     int
	Regressions int
}

// ClassEvent is a stored per-class event row with its threat summary
type ClassEvent struct {
	aggregate.ClassEvent
	MaxThreat     float64
	MeanThreat    float64
	DominantLevel threat.Level
}

// Open opens or creates the database at dbPath
func Open(dbPath string, log *logger.Logger) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:     db,
		dbPath: dbPath,
		logger: log.WithComponent("store"),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		model TEXT NOT NULL,
		backend TEXT NOT NULL,
		order_policy TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		frames INTEGER NOT NULL,
		detections INTEGER NOT NULL,
		regressions INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Run log in arrival order (seq)
	CREATE TABLE IF NOT EXISTS detections (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		frame INTEGER NOT NULL,
		timestamp REAL NOT NULL,
		class TEXT NOT NULL,
		confidence REAL NOT NULL,
		x_min REAL NOT NULL,
		y_min REAL NOT NULL,
		x_max REAL NOT NULL,
		y_max REAL NOT NULL,
		PRIMARY KEY (run_id, seq),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS class_events (
		run_id TEXT NOT NULL,
		class TEXT NOT NULL,
		count INTEGER NOT NULL,
		first_timestamp REAL NOT NULL,
		last_timestamp REAL NOT NULL,
		min_score REAL NOT NULL,
		mean_score REAL NOT NULL,
		max_score REAL NOT NULL,
		max_threat REAL NOT NULL DEFAULT 0,
		mean_threat REAL NOT NULL DEFAULT 0,
		dominant_level TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, class),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_detections_class ON detections(run_id, class);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveRun stores a finalized run in a single transaction and returns its ID.
// threats may be nil when threat assessment was not performed.
func (s *Store) SaveRun(ctx context.Context, info RunInfo, res aggregate.Result, threats []threat.ClassThreat) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, source, model, backend, order_policy, started_at, finished_at, frames, detections, regressions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, info.Source, info.Model, info.Backend, info.OrderPolicy,
		info.StartedAt.UTC(), info.FinishedAt.UTC(), info.Frames, res.Total(), res.Regressions,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save run: %w", err)
	}

	detStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO detections (run_id, seq, frame, timestamp, class, confidence, x_min, y_min, x_max, y_max)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare detection insert: %w", err)
	}
	defer detStmt.Close()

	for i, d := range res.RunLog {
		if _, err := detStmt.ExecContext(ctx, id, i, d.FrameIndex, d.Timestamp, d.Class, d.Confidence,
			d.BBox.XMin(), d.BBox.YMin(), d.BBox.XMax(), d.BBox.YMax()); err != nil {
			return "", fmt.Errorf("failed to save detection %d: %w", i, err)
		}
	}

	byClass := make(map[string]threat.ClassThreat, len(threats))
	for _, ct := range threats {
		byClass[ct.Class] = ct
	}

	evStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO class_events (run_id, class, count, first_timestamp, last_timestamp, min_score, mean_score, max_score,
			max_threat, mean_threat, dominant_level)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer evStmt.Close()

	for _, e := range res.Events {
		ct := byClass[e.Class]
		if _, err := evStmt.ExecContext(ctx, id, e.Class, e.Count, e.FirstTimestamp, e.LastTimestamp,
			e.MinScore, e.MeanScore, e.MaxScore, ct.MaxScore, ct.MeanScore, string(ct.Dominant)); err != nil {
			return "", fmt.Errorf("failed to save event for %q: %w", e.Class, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug("Run saved", "run_id", id, "detections", res.Total(), "classes", len(res.Events))
	return id, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := runSelect + ` ORDER BY r.started_at DESC, r.created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryRuns(ctx, query, args...)
}

// GetRun returns one run by ID
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	runs, err := s.queryRuns(ctx, runSelect+` WHERE r.id = ?`, id)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return runs[0], nil
}

const runSelect = `
	SELECT r.id, r.source, r.model, r.backend, r.order_policy, r.started_at, r.finished_at,
		r.frames, r.detections, r.regressions,
		(SELECT COUNT(*) FROM class_events ce WHERE ce.run_id = r.id)
	FROM runs r`

func (s *Store) queryRuns(ctx context.Context, query string, args ...interface{}) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(
			&r.ID, &r.Source, &r.Model, &r.Backend, &r.OrderPolicy, &r.StartedAt, &r.FinishedAt,
			&r.Frames, &r.Detections, &r.Regressions, &r.Classes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ClassEvents returns the per-class events of a run sorted by class
func (s *Store) ClassEvents(ctx context.Context, runID string) ([]ClassEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT class, count, first_timestamp, last_timestamp, min_score, mean_score, max_score,
			max_threat, mean_threat, dominant_level
		FROM class_events
		WHERE run_id = ?
		ORDER BY class`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get class events: %w", err)
	}
	defer rows.Close()

	events := []ClassEvent{}
	for rows.Next() {
		var e ClassEvent
		var level string
		if err := rows.Scan(
			&e.Class, &e.Count, &e.FirstTimestamp, &e.LastTimestamp, &e.MinScore, &e.MeanScore, &e.MaxScore,
			&e.MaxThreat, &e.MeanThreat, &level,
		); err != nil {
			return nil, fmt.Errorf("failed to scan class event: %w", err)
		}
		e.DominantLevel = threat.Level(level)
		e.ScoreSum = e.MeanScore * float64(e.Count)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Detections returns the run log of a run in arrival order
func (s *Store) Detections(ctx context.Context, runID string) ([]detection.Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT frame, timestamp, class, confidence, x_min, y_min, x_max, y_max
		FROM detections
		WHERE run_id = ?
		ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get detections: %w", err)
	}
	defer rows.Close()

	dets := []detection.Detection{}
	for rows.Next() {
		var d detection.Detection
		if err := rows.Scan(&d.FrameIndex, &d.Timestamp, &d.Class, &d.Confidence,
			&d.BBox[0], &d.BBox[1], &d.BBox[2], &d.BBox[3]); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		dets = append(dets, d)
	}
	return dets, rows.Err()
}

// DeleteRun removes a run and, through the foreign keys, its rows
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
