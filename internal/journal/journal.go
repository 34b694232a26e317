package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one handled request as recorded in the journal.
type Entry struct {
	ID         int64
	RequestID  string
	Command    string
	Client     string
	Success    bool
	Message    string
	DurationMS int64
	ReceivedAt time.Time
}

// CommandStats aggregates journal rows for a single command.
type CommandStats struct {
	Command    string
	Total      int64
	Failures   int64
	AvgMillis  float64
	LastSeenAt time.Time
}

// Store manages journal persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database and applies migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts one handled request and returns its row id.
func (s *Store) Record(ctx context.Context, entry Entry) (int64, error) {
	received := entry.ReceivedAt
	if received.IsZero() {
		received = time.Now().UTC()
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO requests (
            request_id, command, client, success, message, duration_ms, received_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.RequestID,
		entry.Command,
		entry.Client,
		boolToInt(entry.Success),
		entry.Message,
		entry.DurationMS,
		received.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert journal entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, request_id, command, client, success, message, duration_ms, received_at
         FROM requests ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal rows: %w", err)
	}
	return entries, nil
}

// Stats aggregates journal rows per command, most requested first.
func (s *Store) Stats(ctx context.Context) ([]CommandStats, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT command,
                COUNT(1),
                SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END),
                AVG(duration_ms),
                MAX(received_at)
         FROM requests GROUP BY command ORDER BY COUNT(1) DESC, command ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query journal stats: %w", err)
	}
	defer rows.Close()

	var stats []CommandStats
	for rows.Next() {
		var (
			item     CommandStats
			avg      sql.NullFloat64
			lastSeen string
		)
		if err := rows.Scan(&item.Command, &item.Total, &item.Failures, &avg, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan journal stats: %w", err)
		}
		if avg.Valid {
			item.AvgMillis = avg.Float64
		}
		item.LastSeenAt = parseTimestamp(lastSeen)
		stats = append(stats, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal stats: %w", err)
	}
	return stats, nil
}

// Prune deletes entries received before the cutoff and reports how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM requests WHERE received_at < ?`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}
	return removed, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		entry    Entry
		success  int
		received string
	)
	if err := rows.Scan(
		&entry.ID,
		&entry.RequestID,
		&entry.Command,
		&entry.Client,
		&success,
		&entry.Message,
		&entry.DurationMS,
		&received,
	); err != nil {
		return Entry{}, fmt.Errorf("scan journal entry: %w", err)
	}
	entry.Success = success != 0
	entry.ReceivedAt = parseTimestamp(received)
	return entry, nil
}

func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
