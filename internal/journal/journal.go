// Package journal keeps a write-only sqlite audit log of committed camera
// calibrations. Nothing reads it back at startup; calibration always starts
// fresh in a new process.
package journal

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/lane-calibration/internal/calibration"
	"github.com/banshee-data/lane-calibration/internal/monitoring"
	"github.com/banshee-data/lane-calibration/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Event is one journaled calibration commit.
type Event struct {
	ID                int64
	SessionID         string
	FlushIndex        int
	FrameIndex        int
	SampleCount       int
	PitchDeg          float64
	YawDeg            float64
	RecordedUnixNanos int64
}

// Journal appends calibration events for one process session.
type Journal struct {
	db        *sql.DB
	sessionID string
	clock     timeutil.Clock
}

// Open opens (creating if needed) the journal database at path and applies
// pending migrations.
func Open(path string) (*Journal, error) {
	return OpenWithClock(path, timeutil.RealClock{})
}

// OpenWithClock is Open with an explicit clock for event timestamps.
func OpenWithClock(path string, clock timeutil.Clock) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; sqlite serialises anyway and this keeps migrations and
	// inserts on the same connection.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	j := &Journal{db: db, sessionID: uuid.NewString(), clock: clock}
	monitoring.Logf("calibration journal %s opened, session %s", path, j.sessionID)
	return j, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	// m is not closed: closing it would close db.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateLogger implements migrate.Logger interface
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// SessionID identifies this process's events.
func (j *Journal) SessionID() string { return j.sessionID }

// Record appends a flush event observed at frameIndex.
func (j *Journal) Record(frameIndex int, ev calibration.FlushEvent) (int64, error) {
	res, err := j.db.Exec(`INSERT INTO calibration_events
		(session_id, flush_index, frame_index, sample_count, pitch_deg, yaw_deg, recorded_unix_nanos)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.sessionID, ev.Index, frameIndex, ev.Samples, ev.PitchDeg, ev.YawDeg, j.clock.Now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("insert calibration event: %w", err)
	}
	return res.LastInsertId()
}

// Events lists a session's events in flush order.
func (j *Journal) Events(sessionID string) ([]Event, error) {
	rows, err := j.db.Query(`SELECT event_id, session_id, flush_index, frame_index, sample_count,
		pitch_deg, yaw_deg, recorded_unix_nanos
		FROM calibration_events WHERE session_id = ? ORDER BY flush_index`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query calibration events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.SessionID, &e.FlushIndex, &e.FrameIndex, &e.SampleCount,
			&e.PitchDeg, &e.YawDeg, &e.RecordedUnixNanos); err != nil {
			return nil, fmt.Errorf("scan calibration event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ObserveSample implements pipeline.Observer; samples are not journaled.
func (j *Journal) ObserveSample(int, calibration.AngleSample) {}

// ObserveFlush implements pipeline.Observer. Write failures are logged and
// never interrupt frame processing.
func (j *Journal) ObserveFlush(frameIndex int, ev calibration.FlushEvent) {
	if _, err := j.Record(frameIndex, ev); err != nil {
		monitoring.Logf("calibration journal: %v", err)
	}
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
