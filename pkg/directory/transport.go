package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"
)

// maxBodySize caps how much of a response we read.
const maxBodySize = 4 << 20

// Channels returns every channel in directory order.
func (c *Client) Channels(ctx context.Context) ([]Channel, error) {
	var list channelList
	if err := c.get(ctx, "channels", &list); err != nil {
		return nil, err
	}
	return list.Channels, nil
}

// Channel returns a single channel. Unknown ids yield an error matching ErrNotFound.
func (c *Client) Channel(ctx context.Context, id string) (*Channel, error) {
	var ch Channel
	if err := c.get(ctx, "channels/"+url.PathEscape(id), &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// NowPlaying returns the current now-playing text of a channel.
func (c *Client) NowPlaying(ctx context.Context, id string) (*NowPlaying, error) {
	var np NowPlaying
	if err := c.get(ctx, "channels/"+url.PathEscape(id)+"/now-playing", &np); err != nil {
		return nil, err
	}
	if np.ChannelID == "" {
		np.ChannelID = id
	}
	return &np, nil
}

// get performs a GET request relative to the base URL and decodes the JSON body into out.
//
// It handles:
// - Basic auth when credentials are configured
// - Retries via go-retryablehttp
// - Error bodies, returned as *Error
// - Context cancellation
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}
	target := c.baseURL.ResolveReference(ref)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "pyxis/1.0")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	c.logDebugf("directory: GET %s", target.Redacted())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return parseError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

// parseError builds an *Error from a non-200 response.
func parseError(status int, body []byte) error {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != nil {
		if er.Error.Code == 0 {
			er.Error.Code = status
		}
		return er.Error
	}
	return &Error{Code: status, Message: http.StatusText(status)}
}
