package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCronSchedulerValidates(t *testing.T) {
	_, err := NewCronScheduler("not a cron", Options{})
	assert.Error(t, err)

	_, err = NewCronScheduler("0 6 * * *", Options{Timezone: "Mars/Olympus"})
	assert.Error(t, err)

	s, err := NewCronScheduler("0 6 * * *", Options{Timezone: "Europe/Moscow"})
	require.NoError(t, err)

	from := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	next := s.Next(from)
	assert.Equal(t, 6, next.Hour())
	assert.Equal(t, 2, next.Day())
}

func TestCronSchedulerRunsAndStops(t *testing.T) {
	s, err := NewCronScheduler("@every 1s", Options{RunOnStart: true})
	require.NoError(t, err)

	var runs atomic.Int32
	require.NoError(t, s.Start(context.Background(), func(time.Time) { runs.Add(1) }))
	require.NoError(t, s.Start(context.Background(), func(time.Time) { t.Error("second start must be ignored") }))

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))

	after := runs.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestCronSchedulerStopsWithContext(t *testing.T) {
	s, err := NewCronScheduler("@every 1s", Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx, func(time.Time) {}))
	cancel()

	assert.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.cron == nil
	}, time.Second, 10*time.Millisecond)
}
