package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticlesClassifier/internal/domain"
)

func fixedClock() func() time.Time {
	var (
		mu   sync.Mutex
		tick = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Second)
		return tick
	}
}

type memorySnapshots struct {
	saved *domain.MetricsSnapshot
}

func (m *memorySnapshots) SaveSnapshot(ctx context.Context, s domain.MetricsSnapshot) error {
	m.saved = &s
	return nil
}

func (m *memorySnapshots) LatestSnapshot(ctx context.Context) (domain.MetricsSnapshot, error) {
	if m.saved == nil {
		return domain.MetricsSnapshot{}, domain.NewNotFoundError("no snapshot")
	}
	return *m.saved, nil
}

func TestComputeSnapshotArithmetic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine := NewEngine(NewMemoryHistory(), domain.DefaultLabels, WithClock(fixedClock()))

	for i := 0; i < 8; i++ {
		require.NoError(t, engine.RecordOutcome(ctx, []string{"Oncological"}, []string{"Oncological"}))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, engine.RecordOutcome(ctx, []string{"Cardiovascular", "Neurological"}, []string{"Cardiovascular", "Hepatorenal"}))
	}

	snap, err := engine.ComputeSnapshot(ctx)
	require.NoError(t, err)

	assert.True(t, snap.HasData)
	assert.Equal(t, 10, snap.Overall.TotalSamples)
	assert.Equal(t, 8, snap.Overall.CorrectPredictions)
	assert.Equal(t, 2, snap.Overall.IncorrectPredictions)
	assert.Equal(t, 2, snap.Confusion.FalsePositives)
	assert.Equal(t, 2, snap.Confusion.FalseNegatives)
	assert.Equal(t, 10, snap.Confusion.TotalPredictions)
	assert.InDelta(t, 0.8, snap.Overall.Precision, 1e-9)
	assert.InDelta(t, 0.8, snap.Overall.Recall, 1e-9)
	assert.InDelta(t, 0.8, snap.Overall.MicroF1, 1e-9)
	assert.InDelta(t, 0.8, snap.Overall.OverallAccuracy, 1e-9)
	assert.InDelta(t, 0.8, snap.Confusion.Accuracy, 1e-9)
	assert.Equal(t, []string{"Cardiovascular", "Hepatorenal", "Neurological", "Oncological"}, snap.Labels)
}

func TestComputeSnapshotIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine := NewEngine(NewMemoryHistory(), nil, WithClock(fixedClock()))
	require.NoError(t, engine.RecordOutcome(ctx, []string{"A"}, []string{"A", "B"}))
	require.NoError(t, engine.RecordPrediction(ctx, []string{"C"}))

	first, err := engine.ComputeSnapshot(ctx)
	require.NoError(t, err)
	second, err := engine.ComputeSnapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, time.Date(2025, time.March, 1, 12, 0, 2, 0, time.UTC), first.LastUpdated)
}

func TestComputeSnapshotEmptyHistory(t *testing.T) {
	t.Parallel()

	engine := NewEngine(NewMemoryHistory(), domain.DefaultLabels)
	snap, err := engine.ComputeSnapshot(context.Background())
	require.NoError(t, err)

	assert.False(t, snap.HasData)
	assert.Zero(t, snap.Overall)
	assert.Zero(t, snap.Confusion)
	assert.Empty(t, snap.Labels)
	assert.True(t, snap.LastUpdated.IsZero())
}

func TestPredictionsWithoutGroundTruth(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine := NewEngine(NewMemoryHistory(), nil)
	require.NoError(t, engine.RecordPrediction(ctx, []string{"Oncological"}))
	require.NoError(t, engine.RecordPrediction(ctx, nil))

	snap, err := engine.ComputeSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Overall.TotalSamples)
	assert.Equal(t, 1, snap.Overall.CorrectPredictions)
	assert.Zero(t, snap.Confusion.FalsePositives)
	assert.InDelta(t, 0.5, snap.Overall.OverallAccuracy, 1e-9)
}

func TestRecordOutcomesRejectsMismatchedLengths(t *testing.T) {
	t.Parallel()

	engine := NewEngine(NewMemoryHistory(), nil)
	err := engine.RecordOutcomes(context.Background(), [][]string{{"A"}}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestRefreshPersistsAndLatestReadsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &memorySnapshots{}
	engine := NewEngine(NewMemoryHistory(), nil, WithSnapshotStore(store))

	latest, err := engine.Latest(ctx)
	require.NoError(t, err)
	assert.False(t, latest.HasData)

	require.NoError(t, engine.RecordOutcome(ctx, []string{"A"}, []string{"A"}))
	refreshed, err := engine.Refresh(ctx)
	require.NoError(t, err)
	require.NotNil(t, store.saved)

	latest, err = engine.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, refreshed, latest)
}

func TestHistoryListIsACopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	history := NewMemoryHistory()
	require.NoError(t, history.Append(ctx, domain.PredictionRecord{Predicted: []string{"A"}}))

	records, err := history.List(ctx)
	require.NoError(t, err)
	records[0].Predicted[0] = "mutated"

	again, err := history.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A", again[0].Predicted[0])
}

func TestConcurrentAppendsAndSnapshots(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine := NewEngine(NewMemoryHistory(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = engine.RecordOutcome(ctx, []string{"A"}, []string{"A"})
		}()
		go func() {
			defer wg.Done()
			snap, err := engine.ComputeSnapshot(ctx)
			if err == nil && snap.HasData {
				assert.Equal(t, snap.Overall.TotalSamples, snap.Overall.CorrectPredictions)
			}
		}()
	}
	wg.Wait()

	snap, err := engine.ComputeSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, snap.Overall.TotalSamples)
}
