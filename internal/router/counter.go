package router

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// eventCounter remembers the times of the last N events in a ring buffer
type eventCounter struct {
	clock clockwork.Clock
	buf   []time.Time
	ptr   int
}

func newEventCounter(maxN int, clock clockwork.Clock) *eventCounter {
	return &eventCounter{
		clock: clock,
		buf:   make([]time.Time, maxN),
	}
}

func (e *eventCounter) add() {
	e.buf[e.ptr] = e.clock.Now()
	e.ptr = (e.ptr + 1) % len(e.buf)
}

// since counts recorded events strictly after t
func (e *eventCounter) since(t time.Time) int {
	count := 0
	i := e.ptr
	for n := 0; n < len(e.buf); n++ {
		i--
		if i < 0 {
			i = len(e.buf) - 1
		}
		if e.buf[i].IsZero() || !e.buf[i].After(t) {
			break
		}
		count++
	}
	return count
}
