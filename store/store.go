// Package store persists one session record per completed or failed
// memory-read session to a local SQLite database. The BIN payload itself
// is never stored here; only the terminal progress snapshot and the
// selected ECU's identifying details.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"ecudump/discovery"
	"ecudump/memoryread"
)

// Session is one row of the sessions table: the record described in the
// specification's Session record type.
type Session struct {
	ID           int64
	ECUID        string
	Protocol     string
	Address      uint16
	VIN          string
	StartAddress uint32
	EndAddress   uint32
	BlockSize    uint32
	Status       string
	BytesRead    uint32
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Store wraps a SQLite connection used only by the facade, on the
// completion of each read_bin call.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ecu_id TEXT NOT NULL,
		protocol TEXT NOT NULL,
		address INTEGER NOT NULL,
		vin TEXT,
		start_address INTEGER NOT NULL,
		end_address INTEGER NOT NULL,
		block_size INTEGER NOT NULL,
		status TEXT NOT NULL,
		bytes_read INTEGER NOT NULL,
		error_message TEXT,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("store: creating sessions table: %w", err)
	}
	return nil
}

// RecordSession appends the terminal snapshot of one read session. startedAt
// is passed in since the engine itself doesn't track wall-clock time.
func (s *Store) RecordSession(ecu discovery.ECU, start, end, blockSize uint32, progress memoryread.Progress, startedAt, finishedAt time.Time) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO sessions (
			ecu_id, protocol, address, vin, start_address, end_address,
			block_size, status, bytes_read, error_message, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ecu.ID, string(ecu.Protocol), ecu.Address, ecu.VIN,
		start, end, blockSize, string(progress.Status), progress.BytesRead,
		progress.Error, startedAt, finishedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("store: recording session: %w", err)
	}
	return result.LastInsertId()
}

// ListSessions returns every recorded session, most recent first.
func (s *Store) ListSessions() ([]Session, error) {
	rows, err := s.db.Query(`SELECT id, ecu_id, protocol, address, vin, start_address,
		end_address, block_size, status, bytes_read, error_message, started_at, finished_at
		FROM sessions ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.ECUID, &sess.Protocol, &sess.Address, &sess.VIN,
			&sess.StartAddress, &sess.EndAddress, &sess.BlockSize, &sess.Status, &sess.BytesRead,
			&sess.ErrorMessage, &sess.StartedAt, &sess.FinishedAt); err != nil {
			return nil, fmt.Errorf("store: scanning session row: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
