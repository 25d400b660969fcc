package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"favthanker/pkg/models"
)

// SQLiteWriter records audit entries in a SQLite database
type SQLiteWriter struct {
	conn *sql.DB
}

// NewSQLiteWriter opens the database at path and creates the tables
func NewSQLiteWriter(path string) (*SQLiteWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	w := &SQLiteWriter{conn: conn}
	if err := w.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return w, nil
}

func (w *SQLiteWriter) initSchema() error {
	schema := `
	PRAGMA journal_mode = WAL;
	PRAGMA synchronous = FULL;

	CREATE TABLE IF NOT EXISTS shouts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		recipient TEXT NOT NULL,
		group_name TEXT NOT NULL,
		message TEXT NOT NULL,
		profile_url TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_shouts_recipient ON shouts(recipient);

	CREATE TABLE IF NOT EXISTS favorites (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		recipient TEXT NOT NULL,
		recipient_profile_url TEXT NOT NULL,
		artwork_title TEXT NOT NULL,
		artwork_url TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	`
	_, err := w.conn.Exec(schema)
	return err
}

// RecordShout inserts a shout record
func (w *SQLiteWriter) RecordShout(rec models.ShoutRecord) error {
	_, err := w.conn.Exec(`
		INSERT INTO shouts (run_id, recipient, group_name, message, profile_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.Recipient, rec.Group, rec.Message, rec.ProfileURL, rec.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("insert shout: %w", err)
	}
	return nil
}

// RecordFavorite inserts a favorite record
func (w *SQLiteWriter) RecordFavorite(rec models.FavoriteRecord) error {
	_, err := w.conn.Exec(`
		INSERT INTO favorites (run_id, recipient, recipient_profile_url, artwork_title, artwork_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.RecipientName, rec.RecipientProfileURL, rec.ArtworkTitle, rec.ArtworkURL, rec.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("insert favorite: %w", err)
	}
	return nil
}

// Stats summarises what has been recorded
type Stats struct {
	Shouts    int
	Favorites int
	LastShout *time.Time
}

// Stats counts shouts and favorites and finds the most recent shout
func (w *SQLiteWriter) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := w.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM shouts`).Scan(&s.Shouts); err != nil {
		return s, fmt.Errorf("count shouts: %w", err)
	}
	if err := w.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM favorites`).Scan(&s.Favorites); err != nil {
		return s, fmt.Errorf("count favorites: %w", err)
	}

	var last time.Time
	err := w.conn.QueryRowContext(ctx, `SELECT created_at FROM shouts ORDER BY id DESC LIMIT 1`).Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return s, fmt.Errorf("last shout: %w", err)
	default:
		s.LastShout = &last
	}
	return s, nil
}

// Close closes the database connection
func (w *SQLiteWriter) Close() error {
	return w.conn.Close()
}
