package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"favthanker/pkg/models"
)

var (
	shoutHeader    = []string{"timestamp", "run_id", "recipient", "group", "message", "profile_url"}
	favoriteHeader = []string{"timestamp", "run_id", "recipient", "recipient_profile_url", "artwork_title", "artwork_url"}
)

// CSVWriter appends records to two CSV files, syncing each record to disk
type CSVWriter struct {
	shouts    *csvFile
	favorites *csvFile
}

type csvFile struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

// NewCSVWriter opens or creates the shout and favorite logs
func NewCSVWriter(shoutPath, favoritePath string) (*CSVWriter, error) {
	shouts, err := openCSV(shoutPath, shoutHeader)
	if err != nil {
		return nil, err
	}
	favorites, err := openCSV(favoritePath, favoriteHeader)
	if err != nil {
		_ = shouts.close()
		return nil, err
	}
	return &CSVWriter{shouts: shouts, favorites: favorites}, nil
}

func openCSV(path string, header []string) (*csvFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat audit log %s: %w", path, err)
	}

	cf := &csvFile{file: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := cf.write(header); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return cf, nil
}

func (c *csvFile) write(record []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.w.Write(record); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("failed to flush audit record: %w", err)
	}
	if err := c.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}
	return nil
}

func (c *csvFile) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w.Flush()
	return c.file.Close()
}

// RecordShout appends a shout record
func (w *CSVWriter) RecordShout(rec models.ShoutRecord) error {
	return w.shouts.write([]string{
		rec.Timestamp.Format(time.RFC3339),
		rec.RunID,
		rec.Recipient,
		rec.Group,
		rec.Message,
		rec.ProfileURL,
	})
}

// RecordFavorite appends a favorite record
func (w *CSVWriter) RecordFavorite(rec models.FavoriteRecord) error {
	return w.favorites.write([]string{
		rec.Timestamp.Format(time.RFC3339),
		rec.RunID,
		rec.RecipientName,
		rec.RecipientProfileURL,
		rec.ArtworkTitle,
		rec.ArtworkURL,
	})
}

// Close closes both files
func (w *CSVWriter) Close() error {
	err1 := w.shouts.close()
	err2 := w.favorites.close()
	if err1 != nil {
		return err1
	}
	return err2
}
