// Package status persists the per-project training status between cycles.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/labelhub/autotrain/internal/workspace"
)

const (
	// StatusFileName is the name of the status file
	StatusFileName = "status.json"
)

// Persistence stores training statuses keyed by project name
type Persistence interface {
	// SaveStatus saves the status of a project
	SaveStatus(ctx context.Context, project string, status *TrainingStatus) error

	// LoadStatus loads the status of a project.
	// Returns an empty TrainingStatus if the project has none yet
	LoadStatus(ctx context.Context, project string) (*TrainingStatus, error)

	// LoadAllStatus loads the status of every project
	LoadAllStatus(ctx context.Context) (map[string]*TrainingStatus, error)
}

// fileStatusPersistence keeps one JSON file per project under basePath
type fileStatusPersistence struct {
	basePath string
}

// NewFileStatusPersistence creates a file-based status persistence.
// Status files are stored at <basePath>/<project>/status.json
func NewFileStatusPersistence(basePath string) Persistence {
	return &fileStatusPersistence{
		basePath: basePath,
	}
}

func (f *fileStatusPersistence) path(project string) (string, error) {
	if err := workspace.CheckName(project); err != nil {
		return "", err
	}
	return filepath.Join(f.basePath, project, StatusFileName), nil
}

// SaveStatus writes the status through a temporary file and a rename
func (f *fileStatusPersistence) SaveStatus(_ context.Context, project string, status *TrainingStatus) error {
	filePath, err := f.path(project)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0750); err != nil {
		return fmt.Errorf("failed to create status directory for project '%s': %w", project, err)
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status for project '%s': %w", project, err)
	}

	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary status file for project '%s': %w", project, err)
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file for project '%s': %w", project, err)
	}
	return nil
}

// LoadStatus returns an empty status when the file doesn't exist
func (f *fileStatusPersistence) LoadStatus(_ context.Context, project string) (*TrainingStatus, error) {
	filePath, err := f.path(project)
	if err != nil {
		return nil, err
	}

	// #nosec G304 -- project is checked to be a single path element
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &TrainingStatus{}, nil
		}
		return nil, fmt.Errorf("failed to read status file for project '%s': %w", project, err)
	}

	var status TrainingStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status for project '%s': %w", project, err)
	}
	return &status, nil
}

// LoadAllStatus skips projects whose status file is unreadable
func (f *fileStatusPersistence) LoadAllStatus(ctx context.Context) (map[string]*TrainingStatus, error) {
	result := make(map[string]*TrainingStatus)

	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, fmt.Errorf("failed to read status directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		project := entry.Name()
		status, err := f.LoadStatus(ctx, project)
		if err != nil {
			slog.Warn("Skipping unreadable status", "project", project, "error", err)
			continue
		}
		result[project] = status
	}

	return result, nil
}
