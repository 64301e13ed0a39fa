package player

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrNotRunning is returned by operations that need a live player
	ErrNotRunning = errors.New("player is not running")

	// ErrNoTarget is returned by Start before SetTarget was called
	ErrNoTarget = errors.New("no stream target set")
)

// Process controls a media player that plays one stream URL at a time
type Process interface {
	// SetTarget sets the URL played by the next Start
	SetTarget(url string) error

	// Start begins playback of the target, replacing any running playback
	Start() error

	// Stop ends playback. Stopping an idle player is not an error.
	Stop() error

	// SetVolume sets the output volume, 0..100
	SetVolume(level int) error

	// IsActive reports whether playback is running
	IsActive() bool
}

// Config selects and configures a player backend
type Config struct {
	Backend       string        // "exec" (default) or "libmpv"
	Command       string        // External player binary
	Args          []string      // Arguments placed before the stream URL
	VolumeCommand string        // Slave-mode volume line, formatted with the level
	StopTimeout   time.Duration // Grace period before the process is killed
}

// DefaultConfig returns the settings for mplayer in slave mode
func DefaultConfig() Config {
	return Config{
		Backend:       "exec",
		Command:       "mplayer",
		Args:          []string{"-slave", "-quiet", "-really-quiet"},
		VolumeCommand: "volume %d 1",
		StopTimeout:   2 * time.Second,
	}
}

// New creates the backend named by cfg.Backend
func New(cfg Config, logger zerolog.Logger) (Process, error) {
	switch cfg.Backend {
	case "", "exec":
		return NewExecProcess(cfg, logger)
	case "libmpv":
		return newMPV(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown player backend %q", cfg.Backend)
	}
}

func clampVolume(level int) int {
	if level < 0 {
		return 0
	}
	if level > 100 {
		return 100
	}
	return level
}
