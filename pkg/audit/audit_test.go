package audit

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"favthanker/pkg/config"
	"favthanker/pkg/models"
)

var (
	when  = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	shout = models.ShoutRecord{
		RunID: "run-1", Recipient: "Alice", Group: "Friends", Message: "Thanks, café!",
		ProfileURL: "https://example.com/user/alice/", Timestamp: when,
	}
	fav = models.FavoriteRecord{
		RunID: "run-1", RecipientName: "Alice", RecipientProfileURL: "https://example.com/user/alice/",
		ArtworkTitle: "Sunset, again", ArtworkURL: "https://example.com/view/1/", Timestamp: when,
	}
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVWriter(t *testing.T) {
	dir := t.TempDir()
	shoutPath := filepath.Join(dir, "shouts.csv")
	favPath := filepath.Join(dir, "favorites.csv")

	w, err := NewCSVWriter(shoutPath, favPath)
	require.NoError(t, err)
	require.NoError(t, w.RecordShout(shout))
	require.NoError(t, w.RecordFavorite(fav))

	// records are on disk before Close
	rows := readCSV(t, shoutPath)
	require.Len(t, rows, 2)
	assert.Equal(t, shoutHeader, rows[0])
	assert.Equal(t, []string{"2024-03-01T12:00:00Z", "run-1", "Alice", "Friends", "Thanks, café!", "https://example.com/user/alice/"}, rows[1])

	favRows := readCSV(t, favPath)
	require.Len(t, favRows, 2)
	assert.Equal(t, "Sunset, again", favRows[1][4])
	require.NoError(t, w.Close())

	// reopening appends without repeating the header
	w, err = NewCSVWriter(shoutPath, favPath)
	require.NoError(t, err)
	require.NoError(t, w.RecordShout(shout))
	require.NoError(t, w.Close())
	assert.Len(t, readCSV(t, shoutPath), 3)
}

func TestSQLiteWriter(t *testing.T) {
	w, err := NewSQLiteWriter(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer w.Close()

	stats, err := w.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Shouts)
	assert.Nil(t, stats.LastShout)

	require.NoError(t, w.RecordShout(shout))
	require.NoError(t, w.RecordShout(shout))
	require.NoError(t, w.RecordFavorite(fav))

	stats, err = w.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Shouts)
	assert.Equal(t, 1, stats.Favorites)
	require.NotNil(t, stats.LastShout)
	assert.True(t, when.Equal(*stats.LastShout))
}

type failing struct{ err error }

func (f failing) RecordShout(models.ShoutRecord) error       { return f.err }
func (f failing) RecordFavorite(models.FavoriteRecord) error { return f.err }
func (f failing) Close() error                               { return nil }

type counting struct{ shouts, favs int }

func (c *counting) RecordShout(models.ShoutRecord) error       { c.shouts++; return nil }
func (c *counting) RecordFavorite(models.FavoriteRecord) error { c.favs++; return nil }
func (c *counting) Close() error                               { return nil }

func TestMultiContinuesPastFailures(t *testing.T) {
	boom := errors.New("disk full")
	c := &counting{}
	m := Multi(failing{boom}, c)

	assert.ErrorIs(t, m.RecordShout(shout), boom)
	assert.ErrorIs(t, m.RecordFavorite(fav), boom)
	assert.Equal(t, 1, c.shouts)
	assert.Equal(t, 1, c.favs)
	assert.NoError(t, m.Close())
}

func TestOpen(t *testing.T) {
	cfg := config.DefaultConfig().Audit
	cfg.Directory = t.TempDir()

	for _, format := range []string{"csv", "sqlite", "both"} {
		cfg.Format = format
		w, err := Open(cfg)
		require.NoError(t, err, format)
		require.NoError(t, w.RecordShout(shout), format)
		require.NoError(t, w.Close(), format)
	}
	assert.FileExists(t, filepath.Join(cfg.Directory, "shouts.csv"))
	assert.FileExists(t, filepath.Join(cfg.Directory, "favthanker.db"))

	cfg.Format = "xml"
	_, err := Open(cfg)
	assert.Error(t, err)
}
