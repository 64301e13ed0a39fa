//go:build libmpv

package player

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/supersonic-app/go-mpv"
)

// MPVProcess plays streams in-process through libmpv
type MPVProcess struct {
	logger zerolog.Logger

	mu     sync.Mutex
	mpv    *mpv.Mpv
	target string
	active bool
	volume int64
}

func newMPV(cfg Config, logger zerolog.Logger) (Process, error) {
	m := mpv.Create()

	m.SetOptionString("idle", "yes")
	m.SetOptionString("video", "no")
	m.SetOptionString("audio-display", "no")
	m.SetOptionString("terminal", "no")
	m.SetOptionString("audio-client-name", "pyxis")
	m.SetOption("volume", mpv.FORMAT_INT64, int64(100))

	if err := m.Initialize(); err != nil {
		return nil, fmt.Errorf("error initializing mpv: %s", err.Error())
	}

	return &MPVProcess{
		logger: logger.With().Str("component", "player").Str("backend", "libmpv").Logger(),
		mpv:    m,
		volume: 100,
	}, nil
}

func (p *MPVProcess) SetTarget(url string) error {
	if url == "" {
		return ErrNoTarget
	}
	p.mu.Lock()
	p.target = url
	p.mu.Unlock()
	return nil
}

func (p *MPVProcess) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.target == "" {
		return ErrNoTarget
	}
	if err := p.mpv.Command([]string{"loadfile", p.target, "replace"}); err != nil {
		return fmt.Errorf("mpv loadfile: %w", err)
	}
	p.active = true
	p.logger.Info().Str("url", p.target).Msg("Player started")
	return nil
}

func (p *MPVProcess) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return nil
	}
	p.active = false
	if err := p.mpv.Command([]string{"stop"}); err != nil {
		return fmt.Errorf("mpv stop: %w", err)
	}
	return nil
}

func (p *MPVProcess) SetVolume(level int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return ErrNotRunning
	}
	vol := int64(clampVolume(level))
	if err := p.mpv.SetProperty("volume", mpv.FORMAT_INT64, vol); err != nil {
		return fmt.Errorf("mpv volume: %w", err)
	}
	p.volume = vol
	return nil
}

func (p *MPVProcess) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Close stops playback and destroys the mpv handle
func (p *MPVProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.mpv == nil {
		return nil
	}
	p.mpv.Command([]string{"stop"})
	p.mpv.TerminateDestroy()
	p.mpv = nil
	p.active = false
	return nil
}
