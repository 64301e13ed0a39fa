package router

import (
	"context"
	"errors"
	"time"

	"github.com/jfmyers9/pyxis/internal/channel"
	"github.com/jfmyers9/pyxis/internal/session"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// queueSize is how many posted signals may wait for the loop
const queueSize = 32

// ErrNotRunning is returned by Send when the loop has exited
var ErrNotRunning = errors.New("router is not running")

// Controller is the session surface the router drives
type Controller interface {
	State() session.State
	PlayChannel(ctx context.Context, id string) (session.State, error)
	ToggleStartStop(ctx context.Context) (session.State, error)
	Stop() session.State
	AdjustVolume(d session.Direction) session.State
	PollTick(ctx context.Context, gen uint64) *channel.NowPlaying
	OnPollTick(ctx context.Context) *channel.NowPlaying
}

// Noticer shows user-facing failures
type Noticer interface {
	Notice(err error)
}

// Config tunes the router
type Config struct {
	ScrollRate int             // Maximum scroll signals applied per second, 0 for no limit
	Clock      clockwork.Clock // Defaults to the real clock
}

type request struct {
	sig   Signal
	reply chan Result
}

// Router serializes every input signal onto one loop and maps it to a
// controller call. It holds no session state of its own.
type Router struct {
	ctrl    Controller
	noticer Noticer
	clock   clockwork.Clock
	scrolls *eventCounter
	rate    int
	logger  zerolog.Logger

	queue chan request
	done  chan struct{}
}

// New creates a router. noticer may be nil.
func New(cfg Config, ctrl Controller, noticer Noticer, logger zerolog.Logger) *Router {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	r := &Router{
		ctrl:    ctrl,
		noticer: noticer,
		clock:   cfg.Clock,
		rate:    cfg.ScrollRate,
		logger:  logger.With().Str("component", "router").Logger(),
		queue:   make(chan request, queueSize),
		done:    make(chan struct{}),
	}
	if cfg.ScrollRate > 0 {
		r.scrolls = newEventCounter(cfg.ScrollRate, cfg.Clock)
	}
	return r
}

// Run processes signals until ctx is cancelled
func (r *Router) Run(ctx context.Context) error {
	defer close(r.done)
	r.logger.Debug().Msg("Router started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug().Msg("Router stopped")
			return ctx.Err()
		case req := <-r.queue:
			res := r.Dispatch(ctx, req.sig)
			if req.reply != nil {
				req.reply <- res
			}
		}
	}
}

// Send queues sig and waits for its result
func (r *Router) Send(ctx context.Context, sig Signal) (Result, error) {
	req := request{sig: sig, reply: make(chan Result, 1)}

	select {
	case r.queue <- req:
	case <-r.done:
		return Result{}, ErrNotRunning
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case res := <-req.reply:
		return res, nil
	case <-r.done:
		return Result{}, ErrNotRunning
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Post queues sig without waiting. It reports false when the queue is
// full or the loop has exited.
func (r *Router) Post(sig Signal) bool {
	select {
	case <-r.done:
		return false
	default:
	}

	select {
	case r.queue <- request{sig: sig}:
		return true
	default:
		r.logger.Warn().Str("signal", sig.Kind.String()).Msg("Signal queue full, dropping")
		return false
	}
}

// PostTick is a poll timer hook that queues a tick for playback gen
func (r *Router) PostTick(gen uint64) {
	r.Post(Signal{Kind: Tick, Gen: gen})
}

// Dispatch applies one signal to the controller. It must only be called
// from the loop, or when no loop is running.
func (r *Router) Dispatch(ctx context.Context, sig Signal) Result {
	var res Result

	switch sig.Kind {
	case ChannelActivated:
		res.State, res.Err = r.ctrl.PlayChannel(ctx, sig.ChannelID)

	case StateActivated, PlayKey:
		res.State, res.Err = r.ctrl.ToggleStartStop(ctx)

	case StopKey:
		res.State = r.ctrl.Stop()

	case ScrollUp, ScrollDown:
		state := r.ctrl.State()
		if !state.IsPlaying || !r.allowScroll() {
			res.State = state
			res.Ignored = true
			break
		}
		d := session.Up
		if sig.Kind == ScrollDown {
			d = session.Down
		}
		res.State = r.ctrl.AdjustVolume(d)

	case Tick:
		state := r.ctrl.State()
		if !state.IsPlaying {
			res.State = state
			res.Ignored = true
			break
		}
		if sig.Gen == 0 {
			// Ticks from outside the poll timer refresh whatever is playing now
			res.NowPlaying = r.ctrl.OnPollTick(ctx)
		} else {
			res.NowPlaying = r.ctrl.PollTick(ctx, sig.Gen)
		}
		res.State = r.ctrl.State()

	default:
		res.State = r.ctrl.State()
		res.Ignored = true
		r.logger.Debug().Int("kind", int(sig.Kind)).Msg("Ignoring unknown signal")
	}

	if res.Err != nil {
		r.surface(sig, res.Err)
	}
	return res
}

func (r *Router) allowScroll() bool {
	if r.scrolls == nil {
		return true
	}
	if r.scrolls.since(r.clock.Now().Add(-time.Second)) >= r.rate {
		return false
	}
	r.scrolls.add()
	return true
}

// surface forwards user-facing errors to the noticer and logs the rest
func (r *Router) surface(sig Signal, err error) {
	var pe *session.PlayerError
	userFacing := errors.Is(err, session.ErrInvalidChannel) ||
		errors.Is(err, session.ErrNoSelection) ||
		errors.As(err, &pe)

	if !userFacing {
		r.logger.Debug().Err(err).Str("signal", sig.Kind.String()).Msg("Signal failed")
		return
	}

	r.logger.Info().Err(err).Str("signal", sig.Kind.String()).Msg("Signal rejected")
	if r.noticer != nil {
		r.noticer.Notice(err)
	}
}
