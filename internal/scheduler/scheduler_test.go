package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"favthanker/pkg/logger"
)

func TestNewInvalidTimezone(t *testing.T) {
	_, err := New("Invalid/Zone", logger.NewNopLogger())
	assert.Error(t, err)
}

func TestScheduleInvalidSpec(t *testing.T) {
	s, err := New("UTC", logger.NewNopLogger())
	require.NoError(t, err)
	defer s.Stop()

	assert.Error(t, s.Schedule("not a schedule", func(context.Context) {}))
	assert.True(t, s.Next().IsZero())
}

func TestScheduleReplacesJob(t *testing.T) {
	s, err := New("UTC", logger.NewNopLogger())
	require.NoError(t, err)
	defer s.Stop()

	require.NoError(t, s.Schedule("0 9 * * *", func(context.Context) {}))
	require.NoError(t, s.Schedule("@every 1h", func(context.Context) {}))
	s.Start()

	assert.Len(t, s.cron.Entries(), 1)
	assert.False(t, s.Next().IsZero())
}

func TestSkipsOverlappingRuns(t *testing.T) {
	s, err := New("UTC", logger.NewNopLogger())
	require.NoError(t, err)

	var running, maxRunning, runs atomic.Int32
	require.NoError(t, s.Schedule("@every 1s", func(ctx context.Context) {
		runs.Add(1)
		n := running.Add(1)
		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}
		select {
		case <-ctx.Done():
		case <-time.After(2500 * time.Millisecond):
		}
		running.Add(-1)
	}))
	s.Start()
	time.Sleep(3500 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, runs.Load(), int32(1))
	assert.Equal(t, int32(1), maxRunning.Load())
	assert.Equal(t, int32(0), running.Load())
}

func TestRunNowSharesOverlapGuard(t *testing.T) {
	s, err := New("UTC", logger.NewNopLogger())
	require.NoError(t, err)

	assert.Error(t, s.RunNow(), "nothing scheduled yet")

	var runs atomic.Int32
	started := make(chan struct{}, 4)
	done := make(chan struct{})
	require.NoError(t, s.Schedule("@every 1h", func(ctx context.Context) {
		runs.Add(1)
		started <- struct{}{}
		<-ctx.Done()
		close(done)
	}))
	s.Start()

	require.NoError(t, s.RunNow())
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("immediate run did not start")
	}

	// a second trigger while the first is running is skipped
	require.NoError(t, s.RunNow())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	s.Stop()
	select {
	case <-done:
	default:
		t.Fatal("Stop returned before the immediate run finished")
	}
	assert.Error(t, s.RunNow(), "stopped scheduler refuses new runs")
}
