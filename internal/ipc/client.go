package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrPingFail is returned when the host does not answer a ping
var ErrPingFail = errors.New("ping failed")

// Client talks to a running host over its control socket
type Client struct {
	httpC http.Client
}

// Connect dials the socket at path and checks that a host answers
func Connect(ctx context.Context, path string) (*Client, error) {
	c := &Client{httpC: http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", path)
			},
		},
	}}
	if err := c.Ping(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Ping checks that the host is alive
func (c *Client) Ping(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, PingPath, nil, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrPingFail, err)
	}
	return nil
}

// Play selects and starts the channel with the given id
func (c *Client) Play(ctx context.Context, id string) (Status, error) {
	var st Status
	err := c.do(ctx, http.MethodPost, PlayPath, url.Values{"id": {id}}, &st)
	return st, err
}

// Toggle starts the selected channel when stopped and stops it when playing
func (c *Client) Toggle(ctx context.Context) (Status, error) {
	return c.post(ctx, TogglePath)
}

// Stop stops playback
func (c *Client) Stop(ctx context.Context) (Status, error) {
	return c.post(ctx, StopPath)
}

// VolumeUp raises the volume by one step
func (c *Client) VolumeUp(ctx context.Context) (Status, error) {
	return c.post(ctx, VolumeUpPath)
}

// VolumeDown lowers the volume by one step
func (c *Client) VolumeDown(ctx context.Context) (Status, error) {
	return c.post(ctx, VolumeDownPath)
}

// Status returns the current session snapshot
func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.do(ctx, http.MethodGet, StatusPath, nil, &st)
	return st, err
}

// Channels lists the host's channels in display order
func (c *Client) Channels(ctx context.Context) ([]ChannelInfo, error) {
	var out []ChannelInfo
	err := c.do(ctx, http.MethodGet, ChannelsPath, nil, &out)
	return out, err
}

// History returns up to limit recent now-playing changes, newest first
func (c *Client) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var out []HistoryEntry
	err := c.do(ctx, http.MethodGet, HistoryPath, q, &out)
	return out, err
}

// Quit asks the host to shut down
func (c *Client) Quit(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, QuitPath, nil, nil)
}

func (c *Client) post(ctx context.Context, path string) (Status, error) {
	var st Status
	err := c.do(ctx, http.MethodPost, path, nil, &st)
	return st, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	u := "http://pyxis" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpC.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var r Response
		if err := json.NewDecoder(resp.Body).Decode(&r); err != nil || r.Error == "" {
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
		return errors.New(r.Error)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
