package channel

import (
	"context"
	"errors"
	"fmt"
)

// StaticDirectory serves a fixed channel list, typically read from the config file.
// Now-playing text is read from the stream's own ICY metadata.
type StaticDirectory struct {
	channels []Channel
	meta     MetadataFetcher
}

// MetadataFetcher reads now-playing text straight from a stream URL
type MetadataFetcher interface {
	Fetch(ctx context.Context, streamURL string) (string, error)
}

// NewStaticDirectory creates a directory over the given channels.
// Channels without an ID or URL are rejected, as are duplicate IDs.
func NewStaticDirectory(channels []Channel, meta MetadataFetcher) (*StaticDirectory, error) {
	seen := make(map[string]bool, len(channels))
	list := make([]Channel, 0, len(channels))
	for i, ch := range channels {
		if ch.ID == "" || ch.URL == "" {
			return nil, fmt.Errorf("channel %d: id and url are required", i)
		}
		if seen[ch.ID] {
			return nil, fmt.Errorf("channel %q listed twice", ch.ID)
		}
		seen[ch.ID] = true
		if ch.Name == "" {
			ch.Name = ch.ID
		}
		list = append(list, ch)
	}
	return &StaticDirectory{channels: list, meta: meta}, nil
}

// ListChannels returns a copy of the configured channels in configured order
func (d *StaticDirectory) ListChannels(ctx context.Context) ([]Channel, error) {
	out := make([]Channel, len(d.channels))
	copy(out, d.channels)
	return out, nil
}

// ResolveChannel looks up a configured channel by id
func (d *StaticDirectory) ResolveChannel(ctx context.Context, id string) (Channel, error) {
	return find(d.channels, id)
}

// FetchNowPlaying reads the stream title of the channel's stream
func (d *StaticDirectory) FetchNowPlaying(ctx context.Context, id string) (string, error) {
	ch, err := find(d.channels, id)
	if err != nil {
		return "", err
	}
	if d.meta == nil {
		return "", errors.New("no metadata source configured")
	}
	return d.meta.Fetch(ctx, ch.URL)
}
