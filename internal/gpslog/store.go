// Package gpslog persists GPS receiver quality diagnostics to sqlite.
// Positions are deliberately absent from the schema: only satellite counts,
// dilution of precision, fix classes, and speed statistics are stored, so a
// leaked database never reveals where anyone was.
package gpslog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a session id has no row.
var ErrNotFound = errors.New("session not found")

// Store wraps the diagnostics database. The schema is managed by the
// embedded migrations, not by Open.
type Store struct {
	*sql.DB
	path string
}

// Open opens (or creates) the database at path without touching the schema.
// Use OpenAndMigrate unless the caller manages migrations itself.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db, path: path}, nil
}

// OpenAndMigrate opens the database and applies any pending embedded
// migrations.
func OpenAndMigrate(path string) (*Store, error) {
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := s.MigrateUp(Migrations()); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return s, nil
}

// Path returns the database file path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Session is one recording window, usually the lifetime of a receiver
// connection.
type Session struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Snapshot is one stored aggregate of the receiver quality windows.
// Times are stored as unix milliseconds so rows round-trip exactly.
type Snapshot struct {
	SessionID        string    `json:"session_id"`
	RecordedAt       time.Time `json:"recorded_at"`
	WindowSamples    int       `json:"window_samples"`
	MeanSatellites   float64   `json:"mean_satellites"`
	StdDevSatellites float64   `json:"stddev_satellites"`
	MeanHDOP         float64   `json:"mean_hdop"`
	MinHDOP          float64   `json:"min_hdop"`
	MaxHDOP          float64   `json:"max_hdop"`
	HDOPRating       string    `json:"hdop_rating"`
	FixMode          string    `json:"fix_mode"`
	MeanSpeedMPS     float64   `json:"mean_speed_mps"`
	MaxSpeedMPS      float64   `json:"max_speed_mps"`
}

// CreateSession inserts a new open session row.
func (s *Store) CreateSession(sess Session) error {
	_, err := s.Exec(
		`INSERT INTO sessions (session_id, source, started_at) VALUES (?, ?, ?)`,
		sess.ID, sess.Source, sess.StartedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("create session %s: %w", sess.ID, err)
	}
	return nil
}

// EndSession stamps the session's end time.
func (s *Store) EndSession(id string, at time.Time) error {
	res, err := s.Exec(`UPDATE sessions SET ended_at = ? WHERE session_id = ?`, at.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Session returns a single session by id.
func (s *Store) Session(id string) (Session, error) {
	row := s.QueryRow(
		`SELECT session_id, source, started_at, ended_at FROM sessions WHERE session_id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return sess, err
}

// Sessions returns the most recently started sessions, newest first.
func (s *Store) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Query(
		`SELECT session_id, source, started_at, ended_at FROM sessions
		 ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		sess      Session
		startedMs int64
		endedMs   sql.NullInt64
	)
	if err := row.Scan(&sess.ID, &sess.Source, &startedMs, &endedMs); err != nil {
		return Session{}, err
	}
	sess.StartedAt = time.UnixMilli(startedMs).UTC()
	if endedMs.Valid {
		t := time.UnixMilli(endedMs.Int64).UTC()
		sess.EndedAt = &t
	}
	return sess, nil
}

// RecordSnapshot inserts one quality aggregate row.
func (s *Store) RecordSnapshot(snap Snapshot) error {
	_, err := s.Exec(
		`INSERT INTO quality_snapshots (
			session_id, recorded_at, window_samples,
			mean_satellites, stddev_satellites,
			mean_hdop, min_hdop, max_hdop, hdop_rating,
			fix_mode, mean_speed_mps, max_speed_mps
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.SessionID, snap.RecordedAt.UnixMilli(), snap.WindowSamples,
		snap.MeanSatellites, snap.StdDevSatellites,
		snap.MeanHDOP, snap.MinHDOP, snap.MaxHDOP, snap.HDOPRating,
		snap.FixMode, snap.MeanSpeedMPS, snap.MaxSpeedMPS,
	)
	if err != nil {
		return fmt.Errorf("record snapshot for %s: %w", snap.SessionID, err)
	}
	return nil
}

// Snapshots returns all stored aggregates for a session in recording order.
func (s *Store) Snapshots(sessionID string) ([]Snapshot, error) {
	rows, err := s.Query(
		`SELECT session_id, recorded_at, window_samples,
			mean_satellites, stddev_satellites,
			mean_hdop, min_hdop, max_hdop, hdop_rating,
			fix_mode, mean_speed_mps, max_speed_mps
		 FROM quality_snapshots WHERE session_id = ? ORDER BY recorded_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var (
			snap       Snapshot
			recordedMs int64
		)
		if err := rows.Scan(
			&snap.SessionID, &recordedMs, &snap.WindowSamples,
			&snap.MeanSatellites, &snap.StdDevSatellites,
			&snap.MeanHDOP, &snap.MinHDOP, &snap.MaxHDOP, &snap.HDOPRating,
			&snap.FixMode, &snap.MeanSpeedMPS, &snap.MaxSpeedMPS,
		); err != nil {
			return nil, err
		}
		snap.RecordedAt = time.UnixMilli(recordedMs).UTC()
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}
