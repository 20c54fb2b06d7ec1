package progress

import (
	"sync"
	"time"
)

// Event is one progress update for a long-running operation.
type Event struct {
	Operation  string  `json:"operation"`
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Elapsed    float64 `json:"elapsed"`
	Rate       float64 `json:"rate"`
	ETA        float64 `json:"eta"`
	Completed  bool    `json:"completed"`
}

// Notifier receives progress events. Implementations must tolerate being
// called from multiple goroutines.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

// Tracker emits throttled progress events for one operation. Intermediate
// updates are dropped when they arrive within the throttle interval; the
// first and final updates always go out.
type Tracker struct {
	operation string
	total     int
	notifier  Notifier
	throttle  time.Duration

	mu       sync.Mutex
	current  int
	started  time.Time
	lastEmit time.Time
}

// NewTracker creates a tracker for an operation with a known total. A nil
// notifier yields a tracker that only keeps counts.
func NewTracker(operation string, total int, notifier Notifier) *Tracker {
	return &Tracker{
		operation: operation,
		total:     total,
		notifier:  notifier,
		throttle:  time.Second,
		started:   time.Now(),
	}
}

// Increment advances progress by one
func (t *Tracker) Increment() {
	t.Add(1)
}

// Add advances progress by n, emitting an event if the throttle allows
func (t *Tracker) Add(n int) {
	t.mu.Lock()
	t.current += n
	first := t.lastEmit.IsZero()
	due := first || time.Since(t.lastEmit) >= t.throttle
	var event Event
	if due {
		t.lastEmit = time.Now()
		event = t.snapshotLocked(false)
	}
	t.mu.Unlock()

	if due && t.notifier != nil {
		t.notifier.Notify(event)
	}
}

// Done emits the final completed event regardless of throttling
func (t *Tracker) Done() {
	t.mu.Lock()
	event := t.snapshotLocked(true)
	t.mu.Unlock()

	if t.notifier != nil {
		t.notifier.Notify(event)
	}
}

// Current returns the current count
func (t *Tracker) Current() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *Tracker) snapshotLocked(completed bool) Event {
	elapsed := time.Since(t.started).Seconds()
	event := Event{
		Operation: t.operation,
		Current:   t.current,
		Total:     t.total,
		Elapsed:   elapsed,
		Completed: completed,
	}
	if t.total > 0 {
		event.Percentage = float64(t.current) / float64(t.total) * 100
	}
	if elapsed > 0 {
		event.Rate = float64(t.current) / elapsed
	}
	if event.Rate > 0 && t.current < t.total {
		event.ETA = float64(t.total-t.current) / event.Rate
	}
	return event
}
