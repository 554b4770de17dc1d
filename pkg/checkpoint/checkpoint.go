package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"tweetcrawler/pkg/logger"
)

// Version of the checkpoint file format
const Version = 1

// DayRecord describes a day whose batch has been written
type DayRecord struct {
	Records     int       `json:"records"`
	Tweets      int       `json:"tweets"`
	Pages       int       `json:"pages"`
	File        string    `json:"file"`
	CompletedAt time.Time `json:"completed_at"`
}

// Checkpoint represents the state of a crawl over a date range
type Checkpoint struct {
	RunID         string               `json:"run_id"`
	Query         string               `json:"query"`
	Start         string               `json:"start"`
	End           string               `json:"end"`
	CompletedDays map[string]DayRecord `json:"completed_days"`
	TotalRecords  int                  `json:"total_records"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	Version       int                  `json:"version"`
}

// IsDayCompleted checks if day has already been written
func (cp *Checkpoint) IsDayCompleted(day string) bool {
	_, ok := cp.CompletedDays[day]
	return ok
}

// Days returns the completed days in calendar order
func (cp *Checkpoint) Days() []string {
	days := make([]string, 0, len(cp.CompletedDays))
	for day := range cp.CompletedDays {
		days = append(days, day)
	}
	sort.Strings(days)
	return days
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// Key identifies a crawl by its query and date range
func Key(query, start, end string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{query, start, end}, "\x00")))
	return hex.EncodeToString(sum[:8])
}

// NewManager creates a checkpoint manager storing key's checkpoint in the
// user data directory
func NewManager(key string) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	return NewManagerInDir(filepath.Join(dataDir, "checkpoints"), key)
}

// NewManagerInDir creates a checkpoint manager storing key's checkpoint in dir
func NewManagerInDir(dir, key string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{
		checkpointPath: filepath.Join(dir, fmt.Sprintf("%s.checkpoint.json", key)),
		logger:         logger.GetLogger(),
	}, nil
}

// SetLogger replaces the logger
func (m *Manager) SetLogger(l logger.Logger) {
	if l != nil {
		m.logger = l
	}
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create creates and saves a new checkpoint
func (m *Manager) Create(runID, query, start, end string) (*Checkpoint, error) {
	now := time.Now()
	checkpoint := &Checkpoint{
		RunID:         runID,
		Query:         query,
		Start:         start,
		End:           end,
		CompletedDays: make(map[string]DayRecord),
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       Version,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"run_id": runID,
		"path":   m.checkpointPath,
	})

	return checkpoint, nil
}

// Load loads an existing checkpoint. It returns nil, nil when none exists.
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
	if checkpoint.Version != Version {
		return nil, fmt.Errorf("unsupported checkpoint version %d", checkpoint.Version)
	}
	if checkpoint.CompletedDays == nil {
		checkpoint.CompletedDays = make(map[string]DayRecord)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"run_id":         checkpoint.RunID,
		"completed_days": len(checkpoint.CompletedDays),
		"total_records":  checkpoint.TotalRecords,
		"updated_at":     checkpoint.UpdatedAt,
	})

	return &checkpoint, nil
}

// Save saves the checkpoint to disk atomically
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

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"run_id":         checkpoint.RunID,
		"completed_days": len(checkpoint.CompletedDays),
	})

	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// RecordDay marks day as written and saves the checkpoint
func (m *Manager) RecordDay(checkpoint *Checkpoint, day string, rec DayRecord) error {
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now()
	}
	if prev, ok := checkpoint.CompletedDays[day]; ok {
		checkpoint.TotalRecords -= prev.Records
	}
	checkpoint.CompletedDays[day] = rec
	checkpoint.TotalRecords += rec.Records
	return m.Save(checkpoint)
}

// GetCheckpointInfo returns a summary of the checkpoint, or nil if none exists
func (m *Manager) GetCheckpointInfo() (map[string]interface{}, error) {
	checkpoint, err := m.Load()
	if err != nil {
		return nil, err
	}
	if checkpoint == nil {
		return nil, nil
	}

	return map[string]interface{}{
		"run_id":         checkpoint.RunID,
		"query":          checkpoint.Query,
		"range":          checkpoint.Start + " .. " + checkpoint.End,
		"completed_days": len(checkpoint.CompletedDays),
		"total_records":  checkpoint.TotalRecords,
		"created_at":     checkpoint.CreatedAt,
		"updated_at":     checkpoint.UpdatedAt,
		"age":            time.Since(checkpoint.UpdatedAt),
	}, nil
}

// BackupPath returns where BackupCheckpoint copies the checkpoint to
func (m *Manager) BackupPath() string {
	return m.checkpointPath + ".backup"
}

// BackupCheckpoint copies the current checkpoint next to itself
func (m *Manager) BackupCheckpoint() error {
	if !m.Exists() {
		return nil
	}

	backupPath := m.BackupPath()

	src, err := os.Open(m.checkpointPath)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy checkpoint to backup: %w", err)
	}

	m.logger.Debug("Checkpoint backed up")
	return nil
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "tweetcrawler")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "tweetcrawler")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "tweetcrawler")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "tweetcrawler")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
