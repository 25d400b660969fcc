package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"favthanker/pkg/config"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestSlidingWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	sw := NewSlidingWindow(3, time.Minute)
	sw.now = clock.Now

	for i := 0; i < 3; i++ {
		assert.False(t, sw.Full())
		sw.Record()
		clock.Advance(10 * time.Second)
	}
	assert.True(t, sw.Full())
	assert.Equal(t, 3, sw.Count())
	assert.Equal(t, 3, sw.Capacity())

	clock.Advance(35 * time.Second)
	assert.Equal(t, 2, sw.Count())
	assert.False(t, sw.Full())

	sw.Reset()
	assert.Equal(t, 0, sw.Count())
}

type recordedWait struct {
	waits []time.Duration
}

func (r *recordedWait) wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.waits = append(r.waits, d)
	return nil
}

func testPacing() config.PacingConfig {
	return config.PacingConfig{
		RequestDelay:  time.Second,
		ShoutDelay:    10 * time.Second,
		CooldownTotal: 5 * time.Minute,
		CooldownStep:  time.Minute,
		WindowShouts:  2,
		Window:        5 * time.Minute,
	}
}

func TestControllerCooldownSteps(t *testing.T) {
	var beats []Heartbeat
	c := NewController(testPacing(), func(h Heartbeat) { beats = append(beats, h) })
	rec := &recordedWait{}
	c.wait = rec.wait

	require.NoError(t, c.Cooldown(context.Background()))

	assert.Len(t, rec.waits, 5)
	for _, w := range rec.waits {
		assert.Equal(t, time.Minute, w)
	}
	require.Len(t, beats, 5)
	assert.Equal(t, 5*time.Minute, beats[4].Elapsed)
	assert.Equal(t, time.Duration(0), beats[4].Remaining)
	assert.Equal(t, 2, beats[0].WindowCapacity)
}

func TestControllerCooldownStopsMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	beats := 0
	c := NewController(testPacing(), func(Heartbeat) {
		beats++
		if beats == 2 {
			cancel()
		}
	})
	rec := &recordedWait{}
	c.wait = rec.wait

	err := c.Cooldown(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, beats)
	assert.Len(t, rec.waits, 2)
}

func TestControllerPostSuccess(t *testing.T) {
	c := NewController(testPacing(), nil)
	rec := &recordedWait{}
	c.wait = rec.wait

	require.NoError(t, c.PostSuccess(context.Background(), true))
	require.NoError(t, c.PostSuccess(context.Background(), false))

	assert.Equal(t, []time.Duration{10 * time.Second}, rec.waits)
	assert.Equal(t, 2, c.ShoutsInWindow())
}

func TestControllerProactiveCooldown(t *testing.T) {
	pacing := testPacing()
	pacing.ProactiveCooldown = true
	c := NewController(pacing, nil)
	rec := &recordedWait{}
	c.wait = rec.wait

	require.NoError(t, c.PreAttempt(context.Background()))
	assert.Equal(t, []time.Duration{time.Second}, rec.waits)

	c.window.Record()
	c.window.Record()
	rec.waits = nil
	require.NoError(t, c.PreAttempt(context.Background()))

	// five cooldown steps then the request delay
	assert.Len(t, rec.waits, 6)
	assert.Equal(t, time.Second, rec.waits[5])
	assert.Equal(t, 0, c.ShoutsInWindow())
}

func TestControllerPreAttemptCanceled(t *testing.T) {
	c := NewController(testPacing(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.PreAttempt(ctx), context.Canceled)
}
