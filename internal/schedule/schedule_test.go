package schedule

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunnerRejectsBadSpecs(t *testing.T) {
	for _, expr := range []string{"", "   ", "every monday", "0 0 9 * * 1"} {
		_, err := NewRunner(expr, time.UTC)
		assert.Error(t, err, "expr=%q", expr)
	}
}

func TestRunnerNext(t *testing.T) {
	r, err := NewRunner("0 9 * * 1", time.UTC)
	require.NoError(t, err)

	// 2026-02-20 is a Friday.
	from := time.Date(2026, 2, 20, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 23, 9, 0, 0, 0, time.UTC), r.Next(from))
}

func TestRunnerRunTicksUntilCanceled(t *testing.T) {
	r, err := NewRunner("*/5 * * * *", time.UTC)
	require.NoError(t, err)

	clock := time.Date(2026, 2, 20, 14, 1, 0, 0, time.UTC)
	var waits []time.Duration
	r.now = func() time.Time { return clock }
	r.after = func(d time.Duration) <-chan time.Time {
		waits = append(waits, d)
		ch := make(chan time.Time, 1)
		ch <- clock.Add(d)
		return ch
	}

	ctx, cancel := context.WithCancel(context.Background())
	var ticks []time.Time
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx, func(_ context.Context, now time.Time) {
			ticks = append(ticks, now)
			clock = now
			if len(ticks) == 3 {
				cancel()
			}
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}

	require.GreaterOrEqual(t, len(ticks), 3)
	assert.Equal(t, time.Date(2026, 2, 20, 14, 5, 0, 0, time.UTC), ticks[0])
	assert.Equal(t, time.Date(2026, 2, 20, 14, 10, 0, 0, time.UTC), ticks[1])
	assert.Equal(t, 4*time.Minute, waits[0])
	assert.Equal(t, 5*time.Minute, waits[1])
}

func TestMatchDatasets(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b_reviews.json", "a_reviews.json", "notes.txt", "reviews.jsonl"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.json"), 0o755))

	got, err := MatchDatasets(dir, "*.json")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a_reviews.json"), filepath.Join(dir, "b_reviews.json")}, got)

	got, err = MatchDatasets(dir, "?_reviews.json*")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = MatchDatasets(filepath.Join(dir, "missing"), "*")
	assert.Error(t, err)
}

func TestNewRunnerRejectsScheduleThatNeverFires(t *testing.T) {
	_, err := NewRunner("0 0 30 2 *", time.UTC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "never fires")
}

type noFutureSchedule struct{}

func (noFutureSchedule) Next(time.Time) time.Time { return time.Time{} }

func TestRunnerRunStopsWithoutFutureTick(t *testing.T) {
	r, err := NewRunner("*/5 * * * *", time.UTC)
	require.NoError(t, err)
	r.schedule = noFutureSchedule{}
	waited := false
	r.after = func(time.Duration) <-chan time.Time {
		waited = true
		return make(chan time.Time)
	}

	calls := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(context.Background(), func(context.Context, time.Time) { calls++ })
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not return")
	}
	assert.False(t, waited)
	assert.Zero(t, calls)
}
