package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"favthanker/pkg/config"
	"favthanker/pkg/dispatch"
	"favthanker/pkg/ratelimit"
)

type recordingSender struct {
	titles []string
}

func (r *recordingSender) Send(title, _ string) error {
	r.titles = append(r.titles, title)
	return nil
}

func TestBar(t *testing.T) {
	assert.Equal(t, "━━━━━─────", Bar(5, 10, 10))
	assert.Equal(t, "──────────", Bar(0, 0, 10))
	assert.Equal(t, "━━━━━━━━━━", Bar(12, 10, 10))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", FormatDuration(45*time.Second))
	assert.Equal(t, "4m05s", FormatDuration(4*time.Minute+5*time.Second))
	assert.Equal(t, "1h02m", FormatDuration(time.Hour+2*time.Minute))
}

func TestETA(t *testing.T) {
	assert.Equal(t, "--", ETA(0, 10, time.Minute))
	assert.Equal(t, "--", ETA(10, 10, time.Minute))
	assert.Equal(t, "3m00s", ETA(1, 4, time.Minute))
}

func TestNotifierRespectsConfig(t *testing.T) {
	sender := &recordingSender{}
	var out bytes.Buffer
	n := NewNotifierWithSender(config.NotificationConfig{Enabled: true, OnComplete: true, OnError: false, OnCooldown: true}, sender, &out)

	n.Completed("op", 3)
	n.Failed("op", errors.New("boom"))
	n.Cooldown("op")

	assert.Equal(t, []string{"Run complete", "Cooldown"}, sender.titles)
	assert.Contains(t, out.String(), "boom")

	disabled := NewNotifierWithSender(config.NotificationConfig{Enabled: false, OnComplete: true}, sender, &out)
	disabled.Completed("op", 1)
	assert.Len(t, sender.titles, 2)
}

func TestProgressDisplayConsume(t *testing.T) {
	SetColor(false)
	defer SetColor(true)

	var out bytes.Buffer
	d := NewProgressDisplay(&out, "op", true)
	cooldowns := 0
	d.OnCooldown = func() { cooldowns++ }

	sink := dispatch.NewChanSink(16)
	sink.Emit(dispatch.Event{Kind: dispatch.EventState, State: dispatch.StateProcessingRecipient, Total: 4})
	sink.Emit(dispatch.Event{Kind: dispatch.EventLog, Text: "Shouted at Alice", Processed: 0, Total: 4})
	sink.Emit(dispatch.Event{Kind: dispatch.EventProgress, Processed: 2, Total: 4})
	sink.Emit(dispatch.Event{Kind: dispatch.EventHeartbeat, Text: "...", Processed: 2, Total: 4, Heartbeat: &ratelimit.Heartbeat{Remaining: time.Minute}})
	sink.Emit(dispatch.Event{Kind: dispatch.EventHeartbeat, Text: "...", Processed: 2, Total: 4, Heartbeat: &ratelimit.Heartbeat{}})
	sink.Emit(dispatch.Event{Kind: dispatch.EventLog, Text: "Proceeding...", Processed: 2, Total: 4})
	sink.Close()

	require.NoError(t, d.Consume(context.Background(), sink.Events()))

	processed, total, state := d.Snapshot()
	assert.Equal(t, 2, processed)
	assert.Equal(t, 4, total)
	assert.Equal(t, dispatch.StateProcessingRecipient, state)
	assert.Equal(t, 1, cooldowns)
	assert.Contains(t, out.String(), "Shouted at Alice")
	assert.Contains(t, out.String(), "1m00s left")
	assert.Contains(t, out.String(), "state: processing_recipient")
}
