package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const metadataFileName = "metadata.json"

// Status is a run's position in the state machine of spec §4.H.
type Status string

const (
	StatusRunning         Status = "RUNNING"
	StatusWaitingForInput Status = "WAITING_FOR_INPUT"
	StatusCompleted       Status = "COMPLETED"
	StatusFailed          Status = "FAILED"
	StatusInterrupted     Status = "INTERRUPTED"
)

// Metadata is the one mapping per run persisted at metadata.json. It is
// the only mutable file under .delta/<run_id>/; every update is written
// via a temp-file-then-rename so a reader never observes a partial write.
type Metadata struct {
	RunID          string     `json:"run_id"`
	WorkspaceID    string     `json:"workspace_id"`
	AgentName      string     `json:"agent_name"`
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	InitialMessage string     `json:"initial_message"`
	Iterations     int        `json:"iterations"`
	MaxIterations  int        `json:"max_iterations"`
	Error          string     `json:"error,omitempty"`
	AgentHome      string     `json:"agent_home"`
	WorkDir        string     `json:"work_dir"`
	Pid            int        `json:"pid"`
	Hostname       string     `json:"hostname"`
	StartTimeUnix  int64      `json:"start_time_unix"`
	ProcessName    string     `json:"process_name"`

	// Supplemental fields recovered for SPEC_FULL §5 (config-drift
	// detection on resume, advisory-only).
	WorkspacePath     string `json:"workspace_path,omitempty"`
	ConfigFingerprint string `json:"config_fingerprint,omitempty"`
}

// CreateInitial writes the first metadata.json for a new run.
func CreateInitial(runDir string, meta Metadata) error {
	now := meta.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	meta.CreatedAt = now
	meta.UpdatedAt = now
	if meta.Status == "" {
		meta.Status = StatusRunning
	}
	return writeMetadata(runDir, meta)
}

// ReadMetadata loads metadata.json from runDir.
func ReadMetadata(runDir string) (*Metadata, error) {
	path := filepath.Join(runDir, metadataFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata %s: %w", path, err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: metadata %s: %v", ErrCorrupt, path, err)
	}
	return &meta, nil
}

// UpdateMetadata applies patch to the current metadata.json and persists
// the result via write-rename. patch receives the current value by
// pointer and mutates it in place; UpdatedAt is stamped automatically.
func UpdateMetadata(runDir string, patch func(*Metadata)) (*Metadata, error) {
	meta, err := ReadMetadata(runDir)
	if err != nil {
		return nil, err
	}
	patch(meta)
	meta.UpdatedAt = time.Now().UTC()
	if err := writeMetadata(runDir, *meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func writeMetadata(runDir string, meta Metadata) error {
	path := filepath.Join(runDir, metadataFileName)
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tmp, err := os.CreateTemp(runDir, ".metadata-*.tmp")
	if err != nil {
		return fmt.Errorf("create metadata temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write metadata temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync metadata temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename metadata into place: %w", err)
	}
	return nil
}
