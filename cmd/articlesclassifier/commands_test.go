package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/metrics"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "classify", "batch", "metrics", "warmup", "scan"} {
		assert.Contains(t, names, want)
	}
	require.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestBatchRequiresFile(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"batch"})
	assert.Error(t, root.Execute())
}

func TestClassifyRequiresFlags(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"classify", "--title", "only a title"})
	assert.Error(t, root.Execute())
}

type countingSnapshots struct {
	saved []domain.MetricsSnapshot
}

func (c *countingSnapshots) SaveSnapshot(_ context.Context, s domain.MetricsSnapshot) error {
	c.saved = append(c.saved, s)
	return nil
}

func (c *countingSnapshots) LatestSnapshot(context.Context) (domain.MetricsSnapshot, error) {
	if len(c.saved) == 0 {
		return domain.MetricsSnapshot{}, domain.NewNotFoundError("no snapshot")
	}
	return c.saved[len(c.saved)-1], nil
}

func TestLoadSnapshotRecomputesFromHistory(t *testing.T) {
	ctx := context.Background()
	store := &countingSnapshots{}
	engine := metrics.NewEngine(metrics.NewMemoryHistory(), domain.DefaultLabels, metrics.WithSnapshotStore(store))

	require.NoError(t, engine.RecordOutcome(ctx, []string{"Oncological"}, []string{"Oncological"}))
	_, err := engine.Refresh(ctx)
	require.NoError(t, err)

	require.NoError(t, engine.RecordOutcome(ctx, []string{"Neurological"}, []string{"Hepatorenal"}))

	snapshot, err := loadSnapshot(ctx, engine, false)
	require.NoError(t, err)
	assert.Equal(t, 2, snapshot.Overall.TotalSamples)
	assert.Len(t, store.saved, 1)

	snapshot, err = loadSnapshot(ctx, engine, true)
	require.NoError(t, err)
	assert.Equal(t, 2, snapshot.Overall.TotalSamples)
	require.Len(t, store.saved, 2)
	assert.Equal(t, 2, store.saved[1].Overall.TotalSamples)
}
