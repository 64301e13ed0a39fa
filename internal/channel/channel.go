package channel

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a channel identifier does not resolve
var ErrNotFound = errors.New("channel not found")

// Channel is a selectable stream from the directory
type Channel struct {
	ID    string // Directory identifier
	Name  string // Display name
	Genre string // Genre key used for menu grouping
	URL   string // Playback URL handed to the player
}

// NowPlaying is the result of one metadata poll for a channel
type NowPlaying struct {
	ChannelID string
	Text      string
	Changed   bool // Whether Text differs from the previous poll for ChannelID
	FetchedAt time.Time
}

// Directory resolves channels and fetches their now-playing text.
// ListChannels must return the same order for the lifetime of a session.
type Directory interface {
	// ListChannels returns every channel in display order
	ListChannels(ctx context.Context) ([]Channel, error)

	// ResolveChannel looks up a single channel, returning ErrNotFound when unknown
	ResolveChannel(ctx context.Context, id string) (Channel, error)

	// FetchNowPlaying returns the current now-playing text for a channel
	FetchNowPlaying(ctx context.Context, id string) (string, error)
}

// find returns the channel with the given id from an ordered list
func find(channels []Channel, id string) (Channel, error) {
	for _, ch := range channels {
		if ch.ID == id {
			return ch, nil
		}
	}
	return Channel{}, ErrNotFound
}
