package router

import (
	"github.com/jfmyers9/pyxis/internal/channel"
	"github.com/jfmyers9/pyxis/internal/session"
)

// Kind identifies a raw input signal
type Kind int

const (
	ChannelActivated Kind = iota // Menu channel item, carries ChannelID
	StateActivated               // Menu play/stop item
	ScrollUp                     // Scroll or volume-up key
	ScrollDown                   // Scroll or volume-down key
	PlayKey                      // Hardware play/pause key
	StopKey                      // Hardware stop key
	Tick                         // Poll timer tick, carries Gen
)

// String returns a readable signal name
func (k Kind) String() string {
	switch k {
	case ChannelActivated:
		return "channel"
	case StateActivated:
		return "state"
	case ScrollUp:
		return "scroll-up"
	case ScrollDown:
		return "scroll-down"
	case PlayKey:
		return "play-key"
	case StopKey:
		return "stop-key"
	case Tick:
		return "tick"
	default:
		return "unknown"
	}
}

// Signal is one input event
type Signal struct {
	Kind      Kind
	ChannelID string // ChannelActivated only
	Gen       uint64 // Tick only, zero polls the current playback
}

// Result is the outcome of dispatching a signal
type Result struct {
	State      session.State
	NowPlaying *channel.NowPlaying // Set when a tick observed a change
	Ignored    bool                // The signal's precondition did not hold
	Err        error
}
