package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jfmyers9/pyxis/internal/channel"
	"github.com/jfmyers9/pyxis/internal/player"
	"github.com/jfmyers9/pyxis/internal/settings"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Config controls session timing and fallback policy
type Config struct {
	PollInterval    time.Duration   // Now-playing poll period while playing
	PersistInterval time.Duration   // Minimum time between settings writes, 0 writes through
	RestartDebounce time.Duration   // Repeat play requests for the playing channel inside this window are ignored
	DefaultVolume   int             // Volume used when none was persisted
	FallbackChannel string          // Channel used when no valid selection was persisted, "" means first listed
	Clock           clockwork.Clock // Defaults to the real clock
}

// DefaultConfig returns the stock session settings
func DefaultConfig() Config {
	return Config{
		PollInterval:    30 * time.Second,
		PersistInterval: 2 * time.Second,
		RestartDebounce: 750 * time.Millisecond,
		DefaultVolume:   100,
	}
}

// SettingsStore persists the selection and volume
type SettingsStore interface {
	ReadVolume(ctx context.Context) (int, bool, error)
	ReadLastChannel(ctx context.Context) (string, bool, error)
	Write(ctx context.Context, v settings.Values) error
}

// HistoryRecorder receives every now-playing change
type HistoryRecorder interface {
	Record(ctx context.Context, channelID, text string, at time.Time) error
}

// Controller owns the playback session. Every mutation happens under mu,
// so overlapping calls from different goroutines are serialized.
type Controller struct {
	cfg     Config
	clock   clockwork.Clock
	dir     channel.Directory
	proc    player.Process
	store   SettingsStore
	history HistoryRecorder
	logger  zerolog.Logger

	mu    sync.Mutex
	state State

	// gen identifies the current playback; it changes on every stop so
	// in-flight polls and queued notifications of older playbacks are dropped
	gen       uint64
	activeGen atomic.Uint64

	timerStop   chan struct{}
	onTick      func(gen uint64)
	lastStartAt time.Time

	dirty       bool
	lastPersist time.Time
	flushTimer  clockwork.Timer

	events   *dispatcher
	closed   bool
	shutdown sync.Once
}

// New creates a stopped controller. Call Initialize before use.
func New(cfg Config, dir channel.Directory, proc player.Process, store SettingsStore, logger zerolog.Logger) *Controller {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.PersistInterval < 0 {
		cfg.PersistInterval = 0
	}
	if cfg.RestartDebounce < 0 {
		cfg.RestartDebounce = 0
	}
	cfg.DefaultVolume = clamp(cfg.DefaultVolume)
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	logger = logger.With().Str("component", "session").Logger()

	c := &Controller{
		cfg:    cfg,
		clock:  cfg.Clock,
		dir:    dir,
		proc:   proc,
		store:  store,
		logger: logger,
		state:  State{Volume: cfg.DefaultVolume},
	}
	c.events = newDispatcher(logger, c.activeGen.Load)
	return c
}

// SetHistory records every now-playing change to h
func (c *Controller) SetHistory(h HistoryRecorder) {
	c.mu.Lock()
	c.history = h
	c.mu.Unlock()
}

// SetTickHandler routes poll timer ticks through fn instead of polling
// directly. fn receives the playback generation the tick belongs to and
// is expected to call PollTick with it.
func (c *Controller) SetTickHandler(fn func(gen uint64)) {
	c.mu.Lock()
	c.onTick = fn
	c.mu.Unlock()
}

// Subscribe registers a listener for state and now-playing changes
func (c *Controller) Subscribe(l Listener) {
	c.events.subscribe(l)
}

// State returns a copy of the current session state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Generation returns the id of the current playback
func (c *Controller) Generation() uint64 {
	return c.activeGen.Load()
}

// Initialize seeds the session from persisted settings. A missing or
// unknown channel falls back to FallbackChannel or the first listed
// channel; a missing volume falls back to DefaultVolume. Fallback values
// are persisted.
func (c *Controller) Initialize(ctx context.Context, p Persisted) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return c.state.clone(), ErrClosed
	}

	var initErr error
	selected, err := c.resolveInitial(ctx, p.ChannelID)
	if err != nil {
		initErr = err
		c.logger.Warn().Err(err).Msg("No channel available to select")
	} else {
		c.state.SelectedChannel = &selected
		if selected.ID != p.ChannelID {
			c.dirty = true
		}
	}

	if p.HasVolume && p.Volume >= 0 && p.Volume <= 100 {
		c.state.Volume = p.Volume
	} else {
		c.state.Volume = c.cfg.DefaultVolume
		c.dirty = true
	}

	c.state.IsPlaying = false
	c.state.PollTimerActive = false

	c.logger.Info().
		Str("channel", c.state.SelectedID()).
		Int("volume", c.state.Volume).
		Msg("Session initialized")

	c.persistLocked(false)
	c.emitStateLocked()
	return c.state.clone(), initErr
}

func (c *Controller) resolveInitial(ctx context.Context, persisted string) (channel.Channel, error) {
	if persisted != "" {
		ch, err := c.dir.ResolveChannel(ctx, persisted)
		if err == nil {
			return ch, nil
		}
		c.logger.Warn().Err(err).Str("channel", persisted).Msg("Persisted channel unavailable, falling back")
	}

	if c.cfg.FallbackChannel != "" {
		ch, err := c.dir.ResolveChannel(ctx, c.cfg.FallbackChannel)
		if err == nil {
			return ch, nil
		}
		c.logger.Warn().Err(err).Str("channel", c.cfg.FallbackChannel).Msg("Fallback channel unavailable")
	}

	channels, err := c.dir.ListChannels(ctx)
	if err != nil {
		return channel.Channel{}, err
	}
	if len(channels) == 0 {
		return channel.Channel{}, errors.New("directory lists no channels")
	}
	return channels[0], nil
}

// PlayChannel switches playback to the channel with the given id. An id
// that does not resolve returns an InvalidChannelError and leaves the
// session untouched. A failed start still records the selection so a
// later ToggleStartStop retries it.
func (c *Controller) PlayChannel(ctx context.Context, id string) (State, error) {
	c.mu.Lock()

	if c.closed {
		defer c.mu.Unlock()
		return c.state.clone(), ErrClosed
	}

	ch, err := c.dir.ResolveChannel(ctx, id)
	if err != nil {
		defer c.mu.Unlock()
		c.logger.Info().Err(err).Str("channel", id).Msg("Ignoring play request for unknown channel")
		return c.state.clone(), &InvalidChannelError{ID: id, Err: err}
	}

	if c.debouncedLocked(ch.ID) {
		defer c.mu.Unlock()
		c.logger.Debug().Str("channel", ch.ID).Msg("Ignoring repeated play request")
		return c.state.clone(), nil
	}

	gen, err := c.startLocked(ch)
	if err != nil {
		defer c.mu.Unlock()
		return c.state.clone(), err
	}
	c.mu.Unlock()

	c.poll(ctx, gen, true)
	return c.State(), nil
}

// ToggleStartStop stops playback when playing, and otherwise restarts
// the last selected channel.
func (c *Controller) ToggleStartStop(ctx context.Context) (State, error) {
	c.mu.Lock()

	if c.closed {
		defer c.mu.Unlock()
		return c.state.clone(), ErrClosed
	}

	if c.state.IsPlaying {
		defer c.mu.Unlock()
		c.stopLocked()
		c.emitStateLocked()
		return c.state.clone(), nil
	}

	if c.state.SelectedChannel == nil {
		defer c.mu.Unlock()
		return c.state.clone(), ErrNoSelection
	}

	ch := *c.state.SelectedChannel
	gen, err := c.startLocked(ch)
	if err != nil {
		defer c.mu.Unlock()
		return c.state.clone(), err
	}
	c.mu.Unlock()

	c.poll(ctx, gen, true)
	return c.State(), nil
}

// Stop stops playback. It never fails; player errors are logged.
func (c *Controller) Stop() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasPlaying := c.state.IsPlaying
	c.stopLocked()
	if wasPlaying && !c.closed {
		c.emitStateLocked()
	}
	return c.state.clone()
}

// AdjustVolume moves the volume one step. It is a no-op while stopped.
func (c *Controller) AdjustVolume(d Direction) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsPlaying || c.closed {
		return c.state.clone()
	}

	next := c.state.Volume + 1
	if d == Down {
		next = c.state.Volume - 1
	}
	next = clamp(next)
	if next == c.state.Volume {
		return c.state.clone()
	}

	c.state.Volume = next
	if err := c.proc.SetVolume(next); err != nil {
		c.logger.Warn().Err(err).Int("volume", next).Msg("Failed to set player volume")
	}

	c.dirty = true
	c.persistLocked(false)
	c.emitStateLocked()
	return c.state.clone()
}

// OnPollTick polls now-playing for the current playback. It returns the
// new value only when it differs from the last one seen.
func (c *Controller) OnPollTick(ctx context.Context) *channel.NowPlaying {
	return c.PollTick(ctx, c.Generation())
}

// PollTick polls now-playing on behalf of playback gen. Ticks of a
// playback that has since been stopped or replaced are ignored, as are
// fetch results that arrive after such a transition. A tick that finds
// the player gone stops the session without fetching.
func (c *Controller) PollTick(ctx context.Context, gen uint64) *channel.NowPlaying {
	return c.poll(ctx, gen, false)
}

func (c *Controller) poll(ctx context.Context, gen uint64, announce bool) *channel.NowPlaying {
	c.mu.Lock()
	if c.closed || !c.state.IsPlaying || c.gen != gen || c.state.SelectedChannel == nil {
		c.mu.Unlock()
		return nil
	}
	ch := *c.state.SelectedChannel
	if !announce && !c.proc.IsActive() {
		// The player exited on its own, the stream ended or crashed
		c.logger.Warn().Str("channel", ch.ID).Msg("Player no longer running, stopping playback")
		c.stopLocked()
		c.emitStateLocked()
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	// Fetch outside the lock so a slow directory never blocks stop or play
	text, err := c.dir.FetchNowPlaying(ctx, ch.ID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.state.IsPlaying || c.gen != gen {
		c.logger.Debug().Str("channel", ch.ID).Msg("Discarding stale now-playing result")
		return nil
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("channel", ch.ID).Msg("Now-playing fetch failed")
		return nil
	}

	prev := c.state.LastNowPlaying
	np := channel.NowPlaying{
		ChannelID: ch.ID,
		Text:      text,
		FetchedAt: c.clock.Now(),
	}
	np.Changed = prev == nil || prev.ChannelID != np.ChannelID || prev.Text != np.Text
	c.state.LastNowPlaying = &np

	if np.Changed {
		c.logger.Debug().Str("channel", ch.ID).Str("text", text).Msg("Now playing changed")
		if c.history != nil && text != "" {
			if err := c.history.Record(ctx, ch.ID, text, np.FetchedAt); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to record history")
			}
		}
	}

	if np.Changed || announce {
		c.events.nowPlaying(gen, ch, np)
		c.emitStateLocked()
	}

	if !np.Changed {
		return nil
	}
	out := np
	return &out
}

// Shutdown stops playback and flushes unsaved settings. Only the first
// call has any effect.
func (c *Controller) Shutdown() {
	c.shutdown.Do(func() {
		c.mu.Lock()
		c.stopLocked()
		c.persistLocked(true)
		if c.flushTimer != nil {
			c.flushTimer.Stop()
			c.flushTimer = nil
		}
		c.closed = true
		c.mu.Unlock()

		c.events.close()
		c.logger.Info().Msg("Session shut down")
	})
}

// startLocked tears down the current playback and starts ch
func (c *Controller) startLocked(ch channel.Channel) (uint64, error) {
	c.stopLocked()

	prevID := c.state.SelectedID()
	c.state.SelectedChannel = &ch
	if prevID != ch.ID {
		c.dirty = true
	}

	if err := c.proc.SetTarget(ch.URL); err != nil {
		c.persistLocked(false)
		c.emitStateLocked()
		return 0, &PlayerError{Op: "set target", Err: err}
	}
	if err := c.proc.Start(); err != nil {
		c.logger.Error().Err(err).Str("channel", ch.ID).Msg("Failed to start player")
		c.persistLocked(false)
		c.emitStateLocked()
		return 0, &PlayerError{Op: "start", Err: err}
	}

	c.state.IsPlaying = true
	c.lastStartAt = c.clock.Now()
	c.startTimerLocked()

	if err := c.proc.SetVolume(c.state.Volume); err != nil {
		c.logger.Warn().Err(err).Int("volume", c.state.Volume).Msg("Failed to apply volume after start")
	}

	c.logger.Info().Str("channel", ch.ID).Str("url", ch.URL).Msg("Playback started")

	c.persistLocked(false)
	c.emitStateLocked()
	return c.gen, nil
}

// stopLocked stops the player and the poll timer. Player errors are
// logged and never returned.
func (c *Controller) stopLocked() {
	if err := c.proc.Stop(); err != nil {
		c.logger.Debug().Err(err).Msg("Player stop failed")
	}

	if c.state.IsPlaying {
		c.logger.Info().Str("channel", c.state.SelectedID()).Msg("Playback stopped")
	}

	c.state.IsPlaying = false
	c.stopTimerLocked()

	// A new generation invalidates in-flight polls and queued notifications
	c.gen++
	c.activeGen.Store(c.gen)
}

func (c *Controller) debouncedLocked(id string) bool {
	if c.cfg.RestartDebounce <= 0 || !c.state.IsPlaying {
		return false
	}
	if c.state.SelectedID() != id {
		return false
	}
	return c.clock.Since(c.lastStartAt) < c.cfg.RestartDebounce
}

func (c *Controller) emitStateLocked() {
	if c.closed {
		return
	}
	c.events.state(c.state.clone())
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
