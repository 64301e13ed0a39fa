package session

import (
	"sync"

	"github.com/jfmyers9/pyxis/internal/channel"
	"github.com/rs/zerolog"
)

// maxPendingNotices bounds queued now-playing notifications; the oldest go first
const maxPendingNotices = 64

// Listener receives session changes on the dispatcher goroutine.
// Implementations must not call back into the Controller synchronously.
type Listener interface {
	// StateChanged is called with the latest snapshot. Snapshots that are
	// superseded before delivery are skipped, the newest one always arrives.
	StateChanged(s State)

	// NowPlayingChanged is called when a poll yields new text, and once
	// after every successful start
	NowPlayingChanged(ch channel.Channel, np channel.NowPlaying)
}

type notice struct {
	gen        uint64
	channel    channel.Channel
	nowPlaying channel.NowPlaying
}

// dispatcher delivers events without blocking the controller. Only the
// latest state is kept. Now-playing notices queue in order and are dropped
// when their playback ended before delivery.
type dispatcher struct {
	logger zerolog.Logger

	lmu       sync.RWMutex
	listeners []Listener

	mu      sync.Mutex
	pending *State
	notices []notice
	closed  bool

	wake chan struct{}
	done chan struct{}

	current func() uint64
}

func newDispatcher(logger zerolog.Logger, current func() uint64) *dispatcher {
	d := &dispatcher{
		logger:  logger,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		current: current,
	}
	go d.run()
	return d
}

func (d *dispatcher) subscribe(l Listener) {
	d.lmu.Lock()
	d.listeners = append(d.listeners, l)
	d.lmu.Unlock()
}

func (d *dispatcher) state(s State) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.pending = &s
	d.mu.Unlock()
	d.signal()
}

func (d *dispatcher) nowPlaying(gen uint64, ch channel.Channel, np channel.NowPlaying) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if len(d.notices) >= maxPendingNotices {
		d.logger.Warn().Str("channel", d.notices[0].channel.ID).Msg("Notice queue full, dropping oldest")
		d.notices = d.notices[1:]
	}
	d.notices = append(d.notices, notice{gen: gen, channel: ch, nowPlaying: np})
	d.mu.Unlock()
	d.signal()
}

func (d *dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// close stops accepting events and waits for pending ones to be delivered
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()
	d.signal()
	<-d.done
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		st, notices, closed := d.pending, d.notices, d.closed
		d.pending, d.notices = nil, nil
		d.mu.Unlock()

		if st == nil && len(notices) == 0 {
			if closed {
				return
			}
			<-d.wake
			continue
		}

		d.lmu.RLock()
		listeners := append([]Listener(nil), d.listeners...)
		d.lmu.RUnlock()

		if st != nil {
			for _, l := range listeners {
				l.StateChanged(*st)
			}
		}
		for _, n := range notices {
			if d.current != nil && d.current() != n.gen {
				d.logger.Debug().Str("channel", n.channel.ID).Msg("Dropping notification for ended playback")
				continue
			}
			for _, l := range listeners {
				l.NowPlayingChanged(n.channel, n.nowPlaying)
			}
		}
	}
}
