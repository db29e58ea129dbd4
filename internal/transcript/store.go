// Package transcript persists session traffic (sent and received lines) in a
// SQLite or PostgreSQL database so sessions can be reviewed after the fact.
package transcript

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Direction marks who produced a transcript line.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// Line is one recorded transcript entry.
type Line struct {
	ID        int64
	SessionID string
	Direction Direction
	Text      string
	At        time.Time
}

// Store wraps the database connection and provides transcript operations.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open opens the transcript store. For SQLite, dsn is a file path whose
// directory is created if missing; for PostgreSQL it is a connection string.
func Open(dialectType DialectType, dsn string) (*Store, error) {
	dialect := NewDialect(dialectType)

	if dialectType != DialectPostgres {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create transcript directory: %w", err)
		}
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript database: %w", err)
	}

	for _, stmt := range dialect.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize transcript database: %w", err)
		}
	}

	s := &Store{db: db, dialect: dialect}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run transcript migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the transcript schema if it doesn't exist.
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			remote_addr TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS lines (
			id ` + s.dialect.SerialColumn() + `,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			direction TEXT NOT NULL,
			text TEXT NOT NULL,
			at TIMESTAMP NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_lines_session_id ON lines(session_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	return nil
}

// Session records lines for one connection. It implements the client's
// Recorder interface.
type Session struct {
	store *Store
	id    string
}

// BeginSession opens a new transcript session for the given remote address.
func (s *Store) BeginSession(remoteAddr string) (*Session, error) {
	id := uuid.NewString()

	query := rebind(s.dialect,
		`INSERT INTO sessions (id, remote_addr, started_at) VALUES (?, ?, ?)`)
	if _, err := s.db.Exec(query, id, remoteAddr, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to begin session: %w", err)
	}

	return &Session{store: s, id: id}, nil
}

// ID returns the session identifier.
func (sess *Session) ID() string {
	return sess.id
}

// Record stores one line of traffic for the session and returns its ID.
func (sess *Session) Record(direction Direction, text string) (int64, error) {
	dialect := sess.store.dialect
	query := rebind(dialect,
		`INSERT INTO lines (session_id, direction, text, at) VALUES (?, ?, ?, ?)`)
	args := []any{sess.id, string(direction), text, time.Now().UTC()}

	if dialect.SupportsLastInsertID() {
		result, err := sess.store.db.Exec(query, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to record line: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to get line ID: %w", err)
		}
		return id, nil
	}

	var id int64
	query += dialect.ReturningClause("id")
	if err := sess.store.db.QueryRow(query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to record line: %w", err)
	}
	return id, nil
}

// RecordSent stores one outgoing line.
func (sess *Session) RecordSent(text string) error {
	_, err := sess.Record(DirectionSent, text)
	return err
}

// RecordReceived stores one incoming line.
func (sess *Session) RecordReceived(text string) error {
	_, err := sess.Record(DirectionReceived, text)
	return err
}

// End marks the session as finished.
func (sess *Session) End() error {
	query := rebind(sess.store.dialect,
		`UPDATE sessions SET ended_at = ? WHERE id = ?`)
	if _, err := sess.store.db.Exec(query, time.Now().UTC(), sess.id); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// Lines returns all recorded lines for a session in insertion order.
func (s *Store) Lines(sessionID string) ([]Line, error) {
	query := rebind(s.dialect,
		`SELECT id, session_id, direction, text, at FROM lines WHERE session_id = ? ORDER BY id`)
	rows, err := s.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines: %w", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		var dir string
		if err := rows.Scan(&l.ID, &l.SessionID, &dir, &l.Text, &l.At); err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		l.Direction = Direction(dir)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
