package dispatch

import (
	"sync"
	"sync/atomic"
	"time"

	"favthanker/pkg/ratelimit"
)

// State is a dispatch state machine state
type State string

const (
	StateIdle                State = "idle"
	StateDiscovering         State = "discovering"
	StateGroupingBatch       State = "grouping_batch"
	StateProcessingRecipient State = "processing_recipient"
	StateClearingBatch       State = "clearing_batch"
	StateCompleted           State = "completed"
	StateStopped             State = "stopped"
	StateFailed              State = "failed"
)

// Terminal reports whether no further transitions follow s
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateStopped || s == StateFailed
}

// EventKind distinguishes notifications pushed to the caller
type EventKind int

const (
	EventProgress EventKind = iota
	EventLog
	EventState
	EventHeartbeat
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventLog:
		return "log"
	case EventState:
		return "state"
	case EventHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Event is a one-way notification from the worker
type Event struct {
	Kind      EventKind
	Time      time.Time
	Processed int
	Total     int
	Text      string
	State     State
	Heartbeat *ratelimit.Heartbeat
}

// Sink receives events. Emit must not block the worker.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event
var Discard Sink = SinkFunc(func(Event) {})

// ChanSink buffers events on a channel and drops them when the buffer is full
type ChanSink struct {
	ch      chan Event
	dropped atomic.Int64
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
}

// NewChanSink creates a sink with room for size pending events
func NewChanSink(size int) *ChanSink {
	if size < 1 {
		size = 1
	}
	return &ChanSink{ch: make(chan Event, size)}
}

// Emit queues e or drops it without blocking
func (s *ChanSink) Emit(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return
	}
	select {
	case s.ch <- e:
	default:
		s.dropped.Add(1)
	}
}

// Events is the channel consumers read from; it is closed by Close
func (s *ChanSink) Events() <-chan Event {
	return s.ch
}

// Dropped returns how many events were discarded
func (s *ChanSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops accepting events and closes the channel
func (s *ChanSink) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}
