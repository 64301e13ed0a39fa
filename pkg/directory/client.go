package directory

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Config holds client configuration.
type Config struct {
	BaseURL  string        // Required: directory API base URL
	Username string        // Optional: basic auth user
	Password string        // Optional: basic auth password
	Timeout  time.Duration // Optional: per-request timeout (defaults to 10s)
	RetryMax int           // Optional: retry attempts (defaults to 3)
	Logger   Logger        // Optional: Logger interface for debug logging
}

// Logger is an optional interface for logging.
type Logger interface {
	// Debugf logs a debug message with format and arguments.
	Debugf(format string, args ...interface{})
}

// Client is the main entry point for directory API operations.
type Client struct {
	baseURL  *url.URL
	username string
	password string
	http     *retryablehttp.Client
	logger   Logger
}

// NewClient creates a new directory API client.
//
// Returns an error if BaseURL is missing or not an absolute URL.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: BaseURL is required", ErrInvalidConfig)
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid BaseURL %q", ErrInvalidConfig, cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	if cfg.RetryMax > 0 {
		rc.RetryMax = cfg.RetryMax
	}
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = nil
	if cfg.Logger != nil {
		rc.Logger = leveledLogger{cfg.Logger}
	}

	return &Client{
		baseURL:  base,
		username: cfg.Username,
		password: cfg.Password,
		http:     rc,
		logger:   cfg.Logger,
	}, nil
}

// logDebugf logs a debug message if a logger is configured.
func (c *Client) logDebugf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}

// leveledLogger funnels retryablehttp's leveled logging into Debugf.
type leveledLogger struct {
	l Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.l.Debugf("directory: %s %v", msg, kv) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.l.Debugf("directory: %s %v", msg, kv) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.l.Debugf("directory: %s %v", msg, kv) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.l.Debugf("directory: %s %v", msg, kv) }
