package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Loader produces a fresh snapshot from some source.
type Loader interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// FileLoader reads a snapshot document from a JSON file on disk. Used for
// local development and as the offline fallback when no ERP connection is
// configured.
type FileLoader struct {
	path string
}

func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

func (l *FileLoader) Load(_ context.Context) (*Snapshot, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot file %s: %w", l.path, err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	if snap.Source == "" {
		snap.Source = "file:" + l.path
	}
	return &snap, nil
}
