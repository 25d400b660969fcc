package ratelimit

import (
	"context"
	"time"

	"favthanker/pkg/config"
	"favthanker/pkg/logger"
	"favthanker/pkg/retry"
)

// Heartbeat is emitted at every cooldown increment
type Heartbeat struct {
	Elapsed        time.Duration
	Remaining      time.Duration
	ShoutsInWindow int
	WindowCapacity int
}

// Controller owns the pacing rules of a dispatch run
type Controller struct {
	pacing      config.PacingConfig
	window      *SlidingWindow
	onHeartbeat func(Heartbeat)
	wait        func(ctx context.Context, d time.Duration) error
	logger      logger.Logger
}

// NewController creates a controller from the pacing configuration.
// onHeartbeat may be nil.
func NewController(pacing config.PacingConfig, onHeartbeat func(Heartbeat)) *Controller {
	windowShouts := pacing.WindowShouts
	if windowShouts < 1 {
		windowShouts = 1
	}
	if onHeartbeat == nil {
		onHeartbeat = func(Heartbeat) {}
	}
	return &Controller{
		pacing:      pacing,
		window:      NewSlidingWindow(windowShouts, pacing.Window),
		onHeartbeat: onHeartbeat,
		wait:        retry.Wait,
		logger:      logger.GetLogger().WithField("component", "ratelimit"),
	}
}

// SetHeartbeat replaces the heartbeat callback
func (c *Controller) SetHeartbeat(fn func(Heartbeat)) {
	if fn == nil {
		fn = func(Heartbeat) {}
	}
	c.onHeartbeat = fn
}

// PreAttempt applies the fixed delay before a dispatch attempt. With proactive
// cooldown enabled and the shout window full it cools down first.
func (c *Controller) PreAttempt(ctx context.Context) error {
	if c.pacing.ProactiveCooldown && c.window.Full() {
		c.logger.InfoWithFields("shout window full, cooling down before next attempt", map[string]interface{}{
			"shouts_in_window": c.window.Count(),
			"window_capacity":  c.window.Capacity(),
		})
		if err := c.Cooldown(ctx); err != nil {
			return err
		}
	}
	return c.wait(ctx, c.pacing.RequestDelay)
}

// PostSuccess records a verified shout and waits the post-success delay unless
// it was the last outstanding item
func (c *Controller) PostSuccess(ctx context.Context, moreRemaining bool) error {
	c.window.Record()
	if !moreRemaining {
		return nil
	}
	return c.wait(ctx, c.pacing.ShoutDelay)
}

// Cooldown pauses in fixed increments until the configured total elapses,
// emitting a heartbeat after each increment. It returns the context error as
// soon as the context is done.
func (c *Controller) Cooldown(ctx context.Context) error {
	total := c.pacing.CooldownTotal
	step := c.pacing.CooldownStep
	if step <= 0 || step > total {
		step = total
	}

	var elapsed time.Duration
	for elapsed < total {
		if err := ctx.Err(); err != nil {
			return err
		}
		d := step
		if remaining := total - elapsed; d > remaining {
			d = remaining
		}
		if err := c.wait(ctx, d); err != nil {
			return err
		}
		elapsed += d
		c.onHeartbeat(Heartbeat{
			Elapsed:        elapsed,
			Remaining:      total - elapsed,
			ShoutsInWindow: c.window.Count(),
			WindowCapacity: c.window.Capacity(),
		})
	}

	c.window.Reset()
	return nil
}

// ShoutsInWindow returns the number of verified shouts in the trailing window
func (c *Controller) ShoutsInWindow() int {
	return c.window.Count()
}
