// Package history keeps an append-only audit log of stage transitions in
// SQLite, separate from the snapshot store so operators can inspect what
// happened to a record over time, not just where it is now.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/khalidmab/jobpress/internal/model"
)

// SQLiteLog records transitions in a SQLite database.
type SQLiteLog struct {
	db *sql.DB
}

// Open opens (or creates) the history database at dbPath and ensures the
// transitions table exists.
func Open(dbPath string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging history db: %w", err)
	}

	createTable := `CREATE TABLE IF NOT EXISTS transitions (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		identity   TEXT NOT NULL,
		from_stage TEXT NOT NULL,
		to_stage   TEXT NOT NULL,
		kind       TEXT,
		message    TEXT,
		at         DATETIME NOT NULL
	)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating transitions table: %w", err)
	}

	return &SQLiteLog{db: db}, nil
}

// Append records one transition.
func (l *SQLiteLog) Append(t model.Transition) error {
	_, err := l.db.Exec(
		"INSERT INTO transitions (identity, from_stage, to_stage, kind, message, at) VALUES (?, ?, ?, ?, ?, ?)",
		t.Identity, string(t.From), string(t.To), string(t.Kind), t.Message, t.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("appending transition for %s: %w", t.Identity, err)
	}
	return nil
}

// Recent returns the newest transitions, most recent first.
func (l *SQLiteLog) Recent(limit int) ([]model.Transition, error) {
	rows, err := l.db.Query(
		"SELECT identity, from_stage, to_stage, kind, message, at FROM transitions ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent transitions: %w", err)
	}
	defer rows.Close()

	var out []model.Transition
	for rows.Next() {
		var t model.Transition
		var from, to, kind string
		var at time.Time
		if err := rows.Scan(&t.Identity, &from, &to, &kind, &t.Message, &at); err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}
		t.From = model.Stage(from)
		t.To = model.Stage(to)
		t.Kind = model.FailureKind(kind)
		t.At = at
		out = append(out, t)
	}
	return out, rows.Err()
}

// RecentFor returns the newest transitions of one record, most recent first.
func (l *SQLiteLog) RecentFor(identity string, limit int) ([]model.Transition, error) {
	rows, err := l.db.Query(
		"SELECT identity, from_stage, to_stage, kind, message, at FROM transitions WHERE identity = ? ORDER BY id DESC LIMIT ?",
		identity, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying transitions for %s: %w", identity, err)
	}
	defer rows.Close()

	var out []model.Transition
	for rows.Next() {
		var t model.Transition
		var from, to, kind string
		var at time.Time
		if err := rows.Scan(&t.Identity, &from, &to, &kind, &t.Message, &at); err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}
		t.From = model.Stage(from)
		t.To = model.Stage(to)
		t.Kind = model.FailureKind(kind)
		t.At = at
		out = append(out, t)
	}
	return out, rows.Err()
}

// FailureCounts returns how many failure transitions were recorded per kind
// over the log's full history.
func (l *SQLiteLog) FailureCounts() (map[model.FailureKind]int, error) {
	rows, err := l.db.Query(
		"SELECT kind, COUNT(*) FROM transitions WHERE to_stage = ? GROUP BY kind",
		string(model.StageFailed),
	)
	if err != nil {
		return nil, fmt.Errorf("querying failure counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.FailureKind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scanning failure count: %w", err)
		}
		counts[model.FailureKind(kind)] = n
	}
	return counts, rows.Err()
}

// CountSince returns how many transitions were recorded at or after since.
func (l *SQLiteLog) CountSince(since time.Time) (int, error) {
	var n int
	err := l.db.QueryRow(
		"SELECT COUNT(*) FROM transitions WHERE at >= ?",
		since.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting transitions since %s: %w", since.Format(time.RFC3339), err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (l *SQLiteLog) Close() error {
	return l.db.Close()
}
