package session

import (
	"errors"
	"fmt"

	"github.com/jfmyers9/pyxis/internal/channel"
)

var (
	// ErrInvalidChannel matches every InvalidChannelError
	ErrInvalidChannel = errors.New("invalid channel")

	// ErrNoSelection is returned by ToggleStartStop when no channel was ever selected
	ErrNoSelection = errors.New("no channel selected")

	// ErrClosed is returned by operations issued after Shutdown
	ErrClosed = errors.New("session is shut down")
)

// State is a snapshot of the playback session
type State struct {
	SelectedChannel *channel.Channel
	IsPlaying       bool
	Volume          int // Always within [0,100]
	PollTimerActive bool
	LastNowPlaying  *channel.NowPlaying
}

// clone returns a deep copy so callers never share pointers with the controller
func (s State) clone() State {
	if s.SelectedChannel != nil {
		ch := *s.SelectedChannel
		s.SelectedChannel = &ch
	}
	if s.LastNowPlaying != nil {
		np := *s.LastNowPlaying
		s.LastNowPlaying = &np
	}
	return s
}

// SelectedID returns the selected channel id, or "" when none is selected
func (s State) SelectedID() string {
	if s.SelectedChannel == nil {
		return ""
	}
	return s.SelectedChannel.ID
}

// Persisted is the saved selection and volume the session starts from
type Persisted struct {
	ChannelID string
	Volume    int
	HasVolume bool
}

// Direction is a volume step direction
type Direction int

const (
	Up Direction = iota
	Down
)

// String returns "up" or "down"
func (d Direction) String() string {
	if d == Down {
		return "down"
	}
	return "up"
}

// InvalidChannelError is returned when a requested channel id does not resolve
type InvalidChannelError struct {
	ID  string
	Err error
}

func (e *InvalidChannelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid channel %q: %v", e.ID, e.Err)
	}
	return fmt.Sprintf("invalid channel %q", e.ID)
}

func (e *InvalidChannelError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrInvalidChannel) match
func (e *InvalidChannelError) Is(target error) bool { return target == ErrInvalidChannel }

// PlayerError reports a failed operation on the media player
type PlayerError struct {
	Op  string
	Err error
}

func (e *PlayerError) Error() string {
	return fmt.Sprintf("player %s failed: %v", e.Op, e.Err)
}

func (e *PlayerError) Unwrap() error { return e.Err }
