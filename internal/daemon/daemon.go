package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jfmyers9/pyxis/internal/channel"
	"github.com/jfmyers9/pyxis/internal/discord"
	"github.com/jfmyers9/pyxis/internal/ipc"
	"github.com/jfmyers9/pyxis/internal/mpris"
	"github.com/jfmyers9/pyxis/internal/notify"
	"github.com/jfmyers9/pyxis/internal/player"
	"github.com/jfmyers9/pyxis/internal/router"
	"github.com/jfmyers9/pyxis/internal/session"
	"github.com/jfmyers9/pyxis/internal/settings"
	"github.com/jfmyers9/pyxis/internal/tui"
	"github.com/rs/zerolog"
)

// shutdownTimeout bounds how long the control socket drains on exit
const shutdownTimeout = 3 * time.Second

// Config holds host configuration
type Config struct {
	Session          session.Config
	ScrollRate       int           // Scroll signals applied per second
	SocketPath       string        // Control socket, "" disables it
	StatusFile       string        // Status snapshot for `pyxis now`, "" disables it
	InitialChannel   string        // Played right after startup when set
	HistoryRetention time.Duration // History older than this is pruned at shutdown, 0 keeps everything
	Quiet            bool          // Suppress console now-playing lines
	Notifications    bool          // Desktop notifications over D-Bus
	MPRIS            bool          // Register as an MPRIS media player
	DiscordAppID     string        // Discord rich presence, "" disables it
	Tray             bool          // Attach the terminal tray
}

// Host wires the session controller to its event sources and listeners
// and owns their lifecycle.
type Host struct {
	config Config
	dir    channel.Directory
	proc   player.Process
	store  *settings.Store
	ctrl   *session.Controller
	router *router.Router
	status *StatusFile
	logger zerolog.Logger

	ipc      *ipc.Server
	mpris    *mpris.Handler
	presence *discord.Presence
	tray     *tui.App

	cancel   context.CancelFunc
	shutdown sync.Once
}

// New builds the host. The store is owned by the caller.
func New(cfg Config, dir channel.Directory, proc player.Process, store *settings.Store, logger zerolog.Logger) *Host {
	h := &Host{
		config: cfg,
		dir:    dir,
		proc:   proc,
		store:  store,
		logger: logger.With().Str("component", "host").Logger(),
	}

	h.ctrl = session.New(cfg.Session, dir, proc, store, logger)
	h.ctrl.SetHistory(store)

	var noticers notify.Noticers
	if !cfg.Tray {
		console := notify.NewConsole(os.Stdout, cfg.Quiet)
		h.ctrl.Subscribe(console)
		noticers = append(noticers, console)
	}
	if cfg.Notifications {
		desktop, err := notify.NewDesktop(logger)
		if err != nil {
			h.logger.Warn().Err(err).Msg("Desktop notifications unavailable")
		} else {
			h.ctrl.Subscribe(desktop)
			noticers = append(noticers, desktop)
		}
	}

	h.router = router.New(router.Config{ScrollRate: cfg.ScrollRate, Clock: cfg.Session.Clock}, h.ctrl, noticers, logger)
	h.ctrl.SetTickHandler(h.router.PostTick)

	h.status = NewStatusFile(cfg.StatusFile, logger)
	h.ctrl.Subscribe(h.status)

	if cfg.SocketPath != "" {
		h.ipc = ipc.NewServer(ipc.Deps{
			Sender:    h.router,
			State:     h.ctrl,
			Directory: dir,
			History:   store,
			Quit:      h.quit,
		}, logger)
	}
	if cfg.MPRIS {
		h.mpris = mpris.New("pyxis", h.router, h.ctrl, logger)
		h.mpris.OnQuit = func() error {
			h.quit()
			return nil
		}
		h.ctrl.Subscribe(h.mpris)
	}
	if cfg.DiscordAppID != "" {
		h.presence = discord.New(cfg.DiscordAppID, logger)
		h.ctrl.Subscribe(h.presence)
	}
	if cfg.Tray {
		h.tray = tui.New(tui.DefaultConfig(), h.router)
		h.ctrl.Subscribe(h.tray)
	}

	return h
}

// Controller exposes the session controller
func (h *Host) Controller() *session.Controller {
	return h.ctrl
}

// Run starts the host and blocks until a shutdown signal is received
func (h *Host) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		h.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		// Second signal forces exit
		<-sigChan
		h.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	// Run the host
	if err := h.RunContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// RunContext runs the host until ctx is cancelled, the user quits, or a
// component panics. The player is stopped and settings are flushed on
// every one of those paths.
func (h *Host) RunContext(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().Interface("panic", r).Msg("Host panicked, shutting down")
			h.Shutdown()
			panic(r)
		}
	}()

	h.logger.Info().Msg("Starting host")

	persisted := session.LoadPersisted(ctx, h.store, h.logger)
	state, err := h.ctrl.Initialize(ctx, persisted)
	if err != nil {
		h.Shutdown()
		return fmt.Errorf("failed to initialize session: %w", err)
	}
	h.logger.Info().
		Str("channel", state.SelectedID()).
		Int("volume", state.Volume).
		Msg("Session initialized")

	var wg sync.WaitGroup
	errs := make(chan error, 4)

	h.goSafe(&wg, "router", func() {
		_ = h.router.Run(ctx)
	})

	var listener net.Listener
	if h.ipc != nil {
		var lerr error
		listener, lerr = ipc.Listen(h.config.SocketPath)
		if lerr != nil {
			h.logger.Warn().Err(lerr).Msg("Control socket unavailable")
		} else {
			h.goSafe(&wg, "ipc", func() {
				if err := h.ipc.Serve(listener); err != nil {
					errs <- fmt.Errorf("control socket: %w", err)
				}
			})
		}
	}

	if h.mpris != nil {
		h.mpris.Start()
	}
	if h.presence != nil {
		h.goSafe(&wg, "discord", func() { h.presence.Run(ctx) })
	}

	if h.config.InitialChannel != "" {
		if _, err := h.router.Send(ctx, router.Signal{Kind: router.ChannelActivated, ChannelID: h.config.InitialChannel}); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to play initial channel")
		}
	}

	if h.tray != nil {
		if channels, err := h.dir.ListChannels(ctx); err == nil {
			h.tray.SetChannels(channels)
		}
		h.tray.StateChanged(h.ctrl.State())
		h.goSafe(&wg, "tray", func() {
			if err := h.tray.Run(ctx); err != nil {
				errs <- err
			}
			// Quitting the tray quits the host
			cancel()
		})
	}

	select {
	case <-ctx.Done():
	case err = <-errs:
		h.logger.Error().Err(err).Msg("Component failed")
		cancel()
	}

	h.logger.Info().Msg("Shutting down host")
	if h.ipc != nil && listener != nil {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := h.ipc.Shutdown(sctx); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to drain control socket")
		}
		scancel()
		if err := ipc.DestroyConn(h.config.SocketPath); err != nil {
			h.logger.Debug().Err(err).Msg("Failed to remove control socket")
		}
	}
	h.Shutdown()
	wg.Wait()

	h.logger.Info().Msg("Host stopped")
	return err
}

// Shutdown stops playback, flushes settings and releases the bus names.
// Safe to call more than once.
func (h *Host) Shutdown() {
	h.shutdown.Do(func() {
		h.ctrl.Shutdown()
		h.status.Clear()
		if h.mpris != nil {
			h.mpris.Shutdown()
		}
		if c, ok := h.proc.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				h.logger.Debug().Err(err).Msg("Failed to release player")
			}
		}
		if h.config.HistoryRetention > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if n, err := h.store.Prune(ctx, time.Now().Add(-h.config.HistoryRetention)); err != nil {
				h.logger.Warn().Err(err).Msg("Failed to prune history")
			} else if n > 0 {
				h.logger.Debug().Int64("count", n).Msg("Pruned history")
			}
		}
	})
}

// quit asks a running host to stop, used by the control socket and MPRIS
func (h *Host) quit() {
	if h.cancel != nil {
		h.cancel()
	}
}

// goSafe runs fn on its own goroutine. A panic is logged and turned into
// a host shutdown instead of killing the process with the player running.
func (h *Host) goSafe(wg *sync.WaitGroup, name string, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error().Interface("panic", r).Str("goroutine", name).Msg("Goroutine panicked, shutting down")
				h.Shutdown()
				h.quit()
			}
		}()
		fn()
	}()
}
