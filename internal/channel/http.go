package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jfmyers9/pyxis/pkg/directory"
)

// DirectoryClient is the subset of the directory SDK used here
type DirectoryClient interface {
	Channels(ctx context.Context) ([]directory.Channel, error)
	NowPlaying(ctx context.Context, id string) (*directory.NowPlaying, error)
}

// HTTPDirectory serves channels from a remote directory service.
// The channel list is fetched once and cached so its order stays stable
// for the lifetime of the session.
type HTTPDirectory struct {
	client DirectoryClient

	mu       sync.Mutex
	channels []Channel
}

// NewHTTPDirectory wraps a directory client
func NewHTTPDirectory(client DirectoryClient) *HTTPDirectory {
	return &HTTPDirectory{client: client}
}

// ListChannels returns the cached channel list, fetching it on first use
func (d *HTTPDirectory) ListChannels(ctx context.Context) ([]Channel, error) {
	list, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Channel, len(list))
	copy(out, list)
	return out, nil
}

// ResolveChannel looks up a channel in the cached list
func (d *HTTPDirectory) ResolveChannel(ctx context.Context, id string) (Channel, error) {
	list, err := d.load(ctx)
	if err != nil {
		return Channel{}, err
	}
	return find(list, id)
}

// FetchNowPlaying asks the service for the channel's current text
func (d *HTTPDirectory) FetchNowPlaying(ctx context.Context, id string) (string, error) {
	np, err := d.client.NowPlaying(ctx, id)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return "", err
	}
	return np.Text, nil
}

func (d *HTTPDirectory) load(ctx context.Context) ([]Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.channels != nil {
		return d.channels, nil
	}

	remote, err := d.client.Channels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}

	list := make([]Channel, 0, len(remote))
	for _, rc := range remote {
		if rc.ID == "" {
			continue
		}
		name := rc.Name
		if name == "" {
			name = rc.ID
		}
		list = append(list, Channel{ID: rc.ID, Name: name, Genre: rc.Genre, URL: rc.URL})
	}
	d.channels = list
	return list, nil
}
