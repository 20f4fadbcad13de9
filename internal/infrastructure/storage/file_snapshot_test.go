package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticlesClassifier/internal/domain"
)

func TestFileSnapshotStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "metrics_data.json")
	store := NewFileSnapshotStore(path)
	ctx := context.Background()

	_, err := store.LatestSnapshot(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))

	snapshot := domain.MetricsSnapshot{
		Overall:     domain.OverallMetrics{MicroF1: 0.8, TotalSamples: 10, CorrectPredictions: 8, IncorrectPredictions: 2},
		Labels:      []string{"Cardiovascular"},
		LastUpdated: time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC),
		HasData:     true,
	}
	require.NoError(t, store.SaveSnapshot(ctx, snapshot))

	got, err := store.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Overall, got.Overall)
	assert.True(t, snapshot.LastUpdated.Equal(got.LastUpdated))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"micro_f1_score": 0.8`)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not linger")
}
