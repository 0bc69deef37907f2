package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	intrnl "roomcast/internal"
)

const defaultBusyTimeout = 5000

// Store wraps the SQLite handle. It implements the optional history and
// directory collaborator contracts; the core runs fine without it.
type Store struct {
	db *sql.DB
}

// NewStore opens the SQLite database at the provided path. Call Close when done.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "roomcast.db"
	}
	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildDSN(path string) string {
	switch {
	case strings.HasPrefix(path, "sqlite://"):
		path = path[len("sqlite://"):]
	case strings.HasPrefix(path, "file:"), strings.HasPrefix(path, ":memory:"):
		// already in a form sqlite understands
	default:
		path = "file:" + path
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout=%d&_pragma=foreign_keys=ON", path, separator, defaultBusyTimeout)
}

// Migrate runs the schema creation statements.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			room TEXT NOT NULL,
			id TEXT NOT NULL,
			author TEXT NOT NULL,
			body TEXT NOT NULL,
			seq INTEGER NOT NULL,
			ts INTEGER NOT NULL,
			reactions INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (room, id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room_seq ON messages(room, seq);`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// UpsertUser records or refreshes a display name in the directory.
func (s *Store) UpsertUser(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, display_name) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name`,
		id, name)
	return err
}

// GetUserName looks up a display name; absent users return an empty string.
func (s *Store) GetUserName(ctx context.Context, id string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT display_name FROM users WHERE id = ?`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// Append persists one accepted message. Re-appending the same (room, id) is a
// no-op so retries stay harmless.
func (s *Store) Append(ctx context.Context, msg *intrnl.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (room, id, author, body, seq, ts, reactions)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(room, id) DO NOTHING`,
		msg.Room, msg.ID, msg.Author, msg.Body, msg.Seq, msg.Ts, msg.Reactions)
	return err
}

// Recent returns up to limit messages for a room in ascending sequence order.
func (s *Store) Recent(ctx context.Context, roomID string, limit int) ([]intrnl.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT room, id, author, body, seq, ts, reactions
		 FROM messages WHERE room = ? ORDER BY seq DESC LIMIT ?`,
		roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []intrnl.Message
	for rows.Next() {
		var m intrnl.Message
		if err := rows.Scan(&m.Room, &m.ID, &m.Author, &m.Body, &m.Seq, &m.Ts, &m.Reactions); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// query walks newest-first; callers want ascending sequence
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
