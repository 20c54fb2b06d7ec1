package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestTrackerFirstAndFinalEvents(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker("parse", 10, rec)

	tr.Increment()
	tr.Done()

	events := rec.all()
	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, "parse", first.Operation)
	assert.Equal(t, 1, first.Current)
	assert.Equal(t, 10, first.Total)
	assert.InDelta(t, 10.0, first.Percentage, 0.01)
	assert.False(t, first.Completed)

	final := events[1]
	assert.True(t, final.Completed)
}

func TestTrackerThrottlesIntermediateEvents(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker("parse", 100, rec)

	// rapid-fire updates inside one throttle window collapse to the first
	for i := 0; i < 50; i++ {
		tr.Increment()
	}
	tr.Done()

	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Current)
	assert.Equal(t, 50, events[1].Current)
}

func TestTrackerEmitsAfterThrottleWindow(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker("lint", 4, rec)
	tr.throttle = 10 * time.Millisecond

	tr.Increment()
	time.Sleep(20 * time.Millisecond)
	tr.Increment()

	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, 2, events[1].Current)
}

func TestTrackerZeroTotal(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker("noop", 0, rec)
	tr.Done()

	events := rec.all()
	require.Len(t, events, 1)
	assert.Zero(t, events[0].Percentage)
	assert.True(t, events[0].Completed)
}

func TestNotifierFunc(t *testing.T) {
	var got Event
	NotifierFunc(func(e Event) { got = e }).Notify(Event{Operation: "x"})
	assert.Equal(t, "x", got.Operation)
}

func TestTrackerCurrent(t *testing.T) {
	tr := NewTracker("parse", 5, nil)
	tr.Add(3)
	assert.Equal(t, 3, tr.Current())
}
