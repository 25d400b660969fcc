package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"favthanker/pkg/dispatch"
)

// ProgressDisplay renders dispatch events as a progress line plus an
// activity log. It is the only consumer of the event stream.
type ProgressDisplay struct {
	mu         sync.Mutex
	out        io.Writer
	username   string
	processed  int
	total      int
	startTime  time.Time
	state      dispatch.State
	inCooldown bool
	isDebug    bool

	// OnCooldown is called once when a cooldown starts
	OnCooldown func()
}

// NewProgressDisplay creates a display writing to out
func NewProgressDisplay(out io.Writer, username string, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:       out,
		username:  username,
		startTime: time.Now(),
		state:     dispatch.StateIdle,
		isDebug:   debug,
	}
}

// Consume renders events until the channel closes or ctx is done
func (p *ProgressDisplay) Consume(ctx context.Context, events <-chan dispatch.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				p.finish()
				return nil
			}
			p.Handle(e)
		}
	}
}

// Handle renders one event
func (p *ProgressDisplay) Handle(e dispatch.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = e.Total
	if e.Processed > p.processed || e.Kind == dispatch.EventProgress {
		p.processed = e.Processed
	}

	switch e.Kind {
	case dispatch.EventHeartbeat:
		if !p.inCooldown {
			p.inCooldown = true
			if p.OnCooldown != nil {
				p.OnCooldown()
			}
		}
		remaining := ""
		if e.Heartbeat != nil {
			remaining = " " + FormatDuration(e.Heartbeat.Remaining) + " left"
		}
		p.line(Dim(e.Text + remaining))
	case dispatch.EventLog:
		if e.Text == "Proceeding..." {
			p.inCooldown = false
		}
		p.line(p.colorFor(e.Text)(e.Text))
	case dispatch.EventState:
		p.state = e.State
		if p.isDebug {
			p.line(Dim("state: " + string(e.State)))
		}
	}
	p.printProgress()
}

// Snapshot returns the last rendered counts and state
func (p *ProgressDisplay) Snapshot() (processed, total int, state dispatch.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processed, p.total, p.state
}

func (p *ProgressDisplay) colorFor(text string) func(string) string {
	switch {
	case strings.HasPrefix(text, "Shouted at"):
		return Green
	case strings.HasPrefix(text, "Shout failed"), strings.HasPrefix(text, "Stopped"):
		return Red
	case strings.HasPrefix(text, "Skipping"), strings.HasPrefix(text, "Cooldown"), strings.Contains(text, "shouts"):
		return Yellow
	default:
		return func(s string) string { return s }
	}
}

// line prints a timestamped log line above the progress line
func (p *ProgressDisplay) line(text string) {
	fmt.Fprintf(p.out, "\r%s\r%s %s\n", strings.Repeat(" ", 100), Dim(time.Now().Format("15:04:05")), text)
}

// printProgress redraws the progress line in place
func (p *ProgressDisplay) printProgress() {
	elapsed := time.Since(p.startTime)
	line := fmt.Sprintf("%s [%s] %d/%d • %s • eta %s",
		Cyan(p.username),
		Bar(p.processed, p.total, 20),
		p.processed,
		p.total,
		FormatDuration(elapsed),
		ETA(p.processed, p.total, elapsed),
	)
	if p.inCooldown {
		line += " • " + Magenta("cooling down")
	}
	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 100), line)
}

func (p *ProgressDisplay) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out)
}
