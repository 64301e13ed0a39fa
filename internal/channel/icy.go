package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrNoMetadata is returned when a stream does not carry ICY metadata
var ErrNoMetadata = errors.New("stream has no icy metadata")

// maxMetaInt bounds how much audio we are willing to skip to reach a metadata block
const maxMetaInt = 1 << 20

// ICYFetcher reads the StreamTitle from a Shoutcast/Icecast stream.
// It requests inline metadata, skips the first audio block and parses
// the metadata block that follows it.
type ICYFetcher struct {
	client *http.Client
}

// NewICYFetcher creates a fetcher with the given request timeout
func NewICYFetcher(timeout time.Duration) *ICYFetcher {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 1
	rc.Logger = nil
	c := rc.StandardClient()
	c.Timeout = timeout
	return &ICYFetcher{client: c}
}

// Fetch returns the current stream title. An empty metadata block yields "".
func (f *ICYFetcher) Fetch(ctx context.Context, streamURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Icy-MetaData", "1")
	req.Header.Set("User-Agent", "pyxis/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("stream request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	metaInt, err := strconv.Atoi(resp.Header.Get("icy-metaint"))
	if err != nil || metaInt <= 0 {
		return "", ErrNoMetadata
	}
	if metaInt > maxMetaInt {
		return "", fmt.Errorf("icy-metaint %d too large", metaInt)
	}

	if _, err := io.CopyN(io.Discard, resp.Body, int64(metaInt)); err != nil {
		return "", fmt.Errorf("failed to skip audio block: %w", err)
	}

	var size [1]byte
	if _, err := io.ReadFull(resp.Body, size[:]); err != nil {
		return "", fmt.Errorf("failed to read metadata length: %w", err)
	}
	n := int(size[0]) * 16
	if n == 0 {
		return "", nil
	}

	block := make([]byte, n)
	if _, err := io.ReadFull(resp.Body, block); err != nil {
		return "", fmt.Errorf("failed to read metadata block: %w", err)
	}

	return parseStreamTitle(string(block)), nil
}

// parseStreamTitle extracts StreamTitle='...'; from an ICY metadata block
func parseStreamTitle(block string) string {
	block = strings.TrimRight(block, "\x00")
	const key = "StreamTitle='"
	start := strings.Index(block, key)
	if start < 0 {
		return ""
	}
	rest := block[start+len(key):]
	if end := strings.Index(rest, "';"); end >= 0 {
		return strings.TrimSpace(rest[:end])
	}
	return strings.TrimSpace(strings.TrimSuffix(rest, "'"))
}
