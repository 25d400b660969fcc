package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"favthanker/pkg/logger"
)

// formatVersion changes whenever a stored checkpoint can no longer be resumed
const formatVersion = 2

// Checkpoint is the resumable progress of a thanking run. Favorites are
// identified by their artwork URL.
type Checkpoint struct {
	Username  string `json:"username"`
	RunID     string `json:"run_id"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	// Cleared counts favorites this run already removed from the site
	Cleared int `json:"cleared"`
	// Batch lists the favorites of the batch in progress
	Batch []string `json:"batch"`
	// Resolved holds the favorites of Batch already thanked or skipped
	Resolved  map[string]bool `json:"resolved"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Version   int             `json:"version"`
}

// IsResolved reports whether favorite id was already handled in the current batch
func (cp *Checkpoint) IsResolved(id string) bool {
	return cp.Resolved[id]
}

// Remaining is the pending count the site should report if nothing changed
// since the checkpoint was written
func (cp *Checkpoint) Remaining() int {
	return cp.Total - cp.Cleared
}

// MatchesBatch reports whether ids is exactly the checkpointed batch, in any order
func (cp *Checkpoint) MatchesBatch(ids []string) bool {
	if len(ids) != len(cp.Batch) {
		return false
	}
	want := make(map[string]int, len(cp.Batch))
	for _, id := range cp.Batch {
		want[id]++
	}
	for _, id := range ids {
		if want[id] == 0 {
			return false
		}
		want[id]--
	}
	return true
}

// Resumable reports whether a run that sees pending favorites and the batch
// ids can continue this checkpoint. Anything else means the notifications
// changed and the checkpoint is stale.
func (cp *Checkpoint) Resumable(pending int, ids []string) bool {
	if cp.Version != formatVersion || cp.Total <= 0 || cp.Processed >= cp.Total || pending != cp.Remaining() {
		return false
	}
	return len(cp.Batch) == 0 || cp.MatchesBatch(ids)
}

// Manager handles checkpoint operations for one operator
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a checkpoint manager. An empty dir selects the per-user data directory.
func NewManager(username, dir string) (*Manager, error) {
	if dir == "" {
		dataDir, err := getDataDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		dir = filepath.Join(dataDir, "checkpoints")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	name := fmt.Sprintf("%s.checkpoint.json", strings.ToLower(username))
	return &Manager{
		checkpointPath: filepath.Join(dir, name),
		logger:         logger.GetLogger().WithField("component", "checkpoint"),
	}, nil
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create starts a fresh checkpoint with a new run id
func (m *Manager) Create(username string, total int) (*Checkpoint, error) {
	now := time.Now()
	checkpoint := &Checkpoint{
		Username:  username,
		RunID:     uuid.NewString(),
		Total:     total,
		Resolved:  make(map[string]bool),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   formatVersion,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("checkpoint created", map[string]interface{}{
		"username": username,
		"run_id":   checkpoint.RunID,
		"path":     m.checkpointPath,
	})
	return checkpoint, nil
}

// Load returns the stored checkpoint, or nil when none exists
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.Resolved == nil {
		checkpoint.Resolved = make(map[string]bool)
	}

	m.logger.InfoWithFields("checkpoint loaded", map[string]interface{}{
		"run_id":     checkpoint.RunID,
		"processed":  checkpoint.Processed,
		"total":      checkpoint.Total,
		"updated_at": checkpoint.UpdatedAt,
	})
	return &checkpoint, nil
}

// Save writes the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("checkpoint saved", map[string]interface{}{
		"run_id":    checkpoint.RunID,
		"processed": checkpoint.Processed,
	})
	return nil
}

// RecordResolved marks a recipient's favorites handled and stores the new processed count
func (m *Manager) RecordResolved(checkpoint *Checkpoint, ids []string, processed int) error {
	for _, id := range ids {
		checkpoint.Resolved[id] = true
	}
	checkpoint.Processed = processed
	return m.Save(checkpoint)
}

// StartBatch records a freshly discovered batch. Resolved entries survive only
// when the batch is the one already checkpointed.
func (m *Manager) StartBatch(checkpoint *Checkpoint, ids []string) error {
	if !checkpoint.MatchesBatch(ids) {
		checkpoint.Batch = append([]string(nil), ids...)
		checkpoint.Resolved = make(map[string]bool)
	}
	return m.Save(checkpoint)
}

// BatchCleared forgets the batch once it is gone server-side
func (m *Manager) BatchCleared(checkpoint *Checkpoint) error {
	checkpoint.Cleared += len(checkpoint.Batch)
	checkpoint.Batch = nil
	checkpoint.Resolved = make(map[string]bool)
	return m.Save(checkpoint)
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.Debug("checkpoint deleted")
	return nil
}

func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "favthanker")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "favthanker")
	default:
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "favthanker")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "favthanker")
		}
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
