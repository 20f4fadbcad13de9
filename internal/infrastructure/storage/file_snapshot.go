package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"

	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/ports"
)

// FileSnapshotStore keeps the latest snapshot in a single JSON file.
type FileSnapshotStore struct {
	path string
	mu   sync.Mutex
}

var _ ports.SnapshotStore = (*FileSnapshotStore)(nil)

func NewFileSnapshotStore(path string) *FileSnapshotStore {
	return &FileSnapshotStore{path: path}
}

// SaveSnapshot replaces the file atomically.
func (s *FileSnapshotStore) SaveSnapshot(ctx context.Context, snapshot domain.MetricsSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create snapshot dir")
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return errors.Wrap(err, "create temp snapshot")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "write snapshot")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "close snapshot")
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "replace snapshot")
	}
	return nil
}

// LatestSnapshot returns ErrNotFound when nothing was saved yet.
func (s *FileSnapshotStore) LatestSnapshot(ctx context.Context) (domain.MetricsSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.MetricsSnapshot{}, err
	}
	s.mu.Lock()
	raw, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return domain.MetricsSnapshot{}, domain.NewNotFoundError("no metrics snapshot at %s", s.path)
	}
	if err != nil {
		return domain.MetricsSnapshot{}, errors.Wrap(err, "read snapshot")
	}

	var snapshot domain.MetricsSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return domain.MetricsSnapshot{}, errors.Wrap(err, "decode snapshot")
	}
	return snapshot, nil
}
