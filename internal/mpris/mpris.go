// Package mpris exposes the session over MPRIS2 so desktop media keys
// and applets can control playback.
package mpris

import (
	"context"
	"encoding/base32"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/events"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"
	"github.com/rs/zerolog"

	"github.com/jfmyers9/pyxis/internal/channel"
	"github.com/jfmyers9/pyxis/internal/presentation"
	"github.com/jfmyers9/pyxis/internal/router"
	"github.com/jfmyers9/pyxis/internal/session"
)

const (
	dbusChannelIDPrefix = "/Pyxis/Channel/"
	noTrackObjectPath   = "/org/mpris/MediaPlayer2/TrackList/NoTrack"

	// sendTimeout bounds how long a D-Bus method waits for the router
	sendTimeout = 5 * time.Second
)

var (
	_ types.OrgMprisMediaPlayer2Adapter       = (*Handler)(nil)
	_ types.OrgMprisMediaPlayer2PlayerAdapter = (*Handler)(nil)
)

var errNotSupported = errors.New("not supported")

// Sender delivers a signal to the router and waits for its result
type Sender interface {
	Send(ctx context.Context, sig router.Signal) (router.Result, error)
}

// StateSource reports the current session state
type StateSource interface {
	State() session.State
}

// Handler translates MPRIS calls into router signals
type Handler struct {
	// OnQuit is called when a client asks the player to quit.
	// It should start shutdown asynchronously and return immediately.
	OnQuit func() error

	sender Sender
	source StateSource
	logger zerolog.Logger

	mu        sync.Mutex
	connErr   error
	channelID string
	text      string
	s         *server.Server
	evt       *events.EventHandler
}

// New creates a handler registered under org.mpris.MediaPlayer2.<name>
func New(name string, sender Sender, source StateSource, logger zerolog.Logger) *Handler {
	h := &Handler{
		sender:  sender,
		source:  source,
		logger:  logger.With().Str("component", "mpris").Logger(),
		connErr: errors.New("not started"),
	}
	h.s = server.NewServer(name, h, h)
	h.evt = events.NewEventHandler(h.s)
	return h
}

// Start listens for MPRIS calls on the session bus
func (h *Handler) Start() {
	h.mu.Lock()
	h.connErr = nil
	h.mu.Unlock()

	go func() {
		// exits early with err if unable to establish D-Bus connection
		err := h.s.Listen()
		h.mu.Lock()
		h.connErr = err
		h.mu.Unlock()
		if err != nil {
			h.logger.Warn().Err(err).Msg("MPRIS unavailable")
		}
	}()
}

// Shutdown releases the bus name
func (h *Handler) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.connErr == nil {
		h.s.Stop()
		h.connErr = errors.New("stopped")
	}
}

func (h *Handler) connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connErr == nil
}

// StateChanged emits property change signals for the new state
func (h *Handler) StateChanged(s session.State) {
	h.mu.Lock()
	id := s.SelectedID()
	text := ""
	if s.LastNowPlaying != nil && s.LastNowPlaying.ChannelID == id {
		text = s.LastNowPlaying.Text
	}
	titleChanged := id != h.channelID || text != h.text
	h.channelID, h.text = id, text
	connected := h.connErr == nil
	h.mu.Unlock()

	if !connected {
		return
	}
	h.evt.Player.OnPlayPause()
	h.evt.Player.OnVolume()
	if titleChanged {
		h.evt.Player.OnTitle()
	}
}

// NowPlayingChanged emits a metadata change
func (h *Handler) NowPlayingChanged(ch channel.Channel, np channel.NowPlaying) {
	h.mu.Lock()
	h.channelID, h.text = ch.ID, np.Text
	h.mu.Unlock()

	if h.connected() {
		h.evt.Player.OnTitle()
	}
}

func (h *Handler) send(kind router.Kind) error {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	res, err := h.sender.Send(ctx, router.Signal{Kind: kind})
	if err != nil {
		return err
	}
	return res.Err
}

// OrgMprisMediaPlayer2Adapter implementation

func (h *Handler) Identity() (string, error) {
	return "Pyxis", nil
}

func (h *Handler) CanQuit() (bool, error) {
	return h.OnQuit != nil, nil
}

func (h *Handler) Quit() error {
	if h.OnQuit != nil {
		return h.OnQuit()
	}
	return errors.New("no quit handler added")
}

func (h *Handler) CanRaise() (bool, error) {
	return false, nil
}

func (h *Handler) Raise() error {
	return errNotSupported
}

func (h *Handler) HasTrackList() (bool, error) {
	return false, nil
}

func (h *Handler) SupportedUriSchemes() ([]string, error) {
	return nil, nil
}

func (h *Handler) SupportedMimeTypes() ([]string, error) {
	return nil, nil
}

// OrgMprisMediaPlayer2PlayerAdapter implementation

func (h *Handler) Next() error {
	return errNotSupported
}

func (h *Handler) Previous() error {
	return errNotSupported
}

// Pause stops the stream; live radio cannot be paused
func (h *Handler) Pause() error {
	if h.source.State().IsPlaying {
		return h.send(router.StopKey)
	}
	return nil
}

func (h *Handler) PlayPause() error {
	return h.send(router.PlayKey)
}

func (h *Handler) Stop() error {
	return h.send(router.StopKey)
}

func (h *Handler) Play() error {
	if h.source.State().IsPlaying {
		return nil
	}
	return h.send(router.PlayKey)
}

func (h *Handler) Seek(offset types.Microseconds) error {
	return errNotSupported
}

func (h *Handler) SetPosition(trackId string, position types.Microseconds) error {
	return errNotSupported
}

func (h *Handler) OpenUri(uri string) error {
	return errNotSupported
}

func (h *Handler) PlaybackStatus() (types.PlaybackStatus, error) {
	if h.source.State().IsPlaying {
		return types.PlaybackStatusPlaying, nil
	}
	return types.PlaybackStatusStopped, nil
}

func (h *Handler) Rate() (float64, error) {
	return 1, nil
}

func (h *Handler) SetRate(float64) error {
	return errNotSupported
}

func (h *Handler) Metadata() (types.Metadata, error) {
	s := h.source.State()
	if s.SelectedChannel == nil || !s.IsPlaying {
		return types.Metadata{TrackId: dbus.ObjectPath(noTrackObjectPath)}, nil
	}

	ch := *s.SelectedChannel
	label := presentation.ChannelLabel(ch)
	title := label
	if s.LastNowPlaying != nil && s.LastNowPlaying.ChannelID == ch.ID && s.LastNowPlaying.Text != "" {
		title = s.LastNowPlaying.Text
	}

	return types.Metadata{
		TrackId: dbus.ObjectPath(dbusChannelIDPrefix + encodeChannelID(ch.ID)),
		Title:   title,
		Artist:  []string{label},
		Album:   presentation.GenreDisplayName(ch.Genre),
		Genre:   []string{presentation.GenreDisplayName(ch.Genre)},
	}, nil
}

func (h *Handler) Volume() (float64, error) {
	return float64(h.source.State().Volume) / 100, nil
}

// SetVolume moves the volume one step toward v
func (h *Handler) SetVolume(v float64) error {
	target := int(math.Round(v * 100))
	current := h.source.State().Volume
	switch {
	case target > current:
		return h.send(router.ScrollUp)
	case target < current:
		return h.send(router.ScrollDown)
	}
	return nil
}

func (h *Handler) Position() (int64, error) {
	return 0, nil
}

func (h *Handler) MinimumRate() (float64, error) {
	return 1, nil
}

func (h *Handler) MaximumRate() (float64, error) {
	return 1, nil
}

func (h *Handler) CanGoNext() (bool, error) {
	return false, nil
}

func (h *Handler) CanGoPrevious() (bool, error) {
	return false, nil
}

func (h *Handler) CanPlay() (bool, error) {
	return h.source.State().SelectedChannel != nil, nil
}

func (h *Handler) CanPause() (bool, error) {
	return true, nil
}

func (h *Handler) CanSeek() (bool, error) {
	return false, nil
}

func (h *Handler) CanControl() (bool, error) {
	return true, nil
}

// encodeChannelID makes a channel id safe for a D-Bus object path
func encodeChannelID(id string) string {
	return base32.StdEncoding.WithPadding('0').EncodeToString([]byte(id))
}
