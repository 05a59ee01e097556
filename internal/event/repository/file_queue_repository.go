package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/allisson/cecsync/internal/event/domain"
)

// FileQueueRepository persists the queue as a JSON file. Saves write a temporary file in the
// same directory, fsync it and rename it over the target, so readers observe either the old
// or the new document and never a partial one.
type FileQueueRepository struct {
	path string
}

// NewFileQueueRepository creates a FileQueueRepository for the given file path.
func NewFileQueueRepository(path string) *FileQueueRepository {
	return &FileQueueRepository{path: path}
}

// Path returns the queue file location.
func (r *FileQueueRepository) Path() string {
	return r.path
}

// Load reads the queue file. A missing file is an empty queue.
func (r *FileQueueRepository) Load(ctx context.Context) ([]*domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*domain.Event{}, nil
		}
		return nil, fmt.Errorf("failed to read queue file: %w", err)
	}

	return decodeQueue(data)
}

// Save replaces the queue file with the given events.
func (r *FileQueueRepository) Save(ctx context.Context, events []*domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encodeQueue(events)
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create queue directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary queue file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := writeAndSync(tmp, data); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace queue file: %w", err)
	}

	return nil
}

func writeAndSync(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write temporary queue file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync temporary queue file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temporary queue file: %w", err)
	}
	return nil
}
