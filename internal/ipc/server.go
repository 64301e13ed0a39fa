package ipc

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/jfmyers9/pyxis/internal/channel"
	"github.com/jfmyers9/pyxis/internal/router"
	"github.com/jfmyers9/pyxis/internal/session"
	"github.com/jfmyers9/pyxis/internal/settings"
	"github.com/labstack/echo"
	"github.com/rs/zerolog"
)

const defaultHistoryLimit = 20

// Sender delivers a signal to the router loop and waits for its result
type Sender interface {
	Send(ctx context.Context, sig router.Signal) (router.Result, error)
}

// StateSource reports the current session snapshot
type StateSource interface {
	State() session.State
}

// HistorySource lists recorded now-playing changes
type HistorySource interface {
	Recent(ctx context.Context, limit int) ([]settings.Entry, error)
}

// Deps are the collaborators the server routes requests to.
// Directory, History and Quit may be nil.
type Deps struct {
	Sender    Sender
	State     StateSource
	Directory channel.Directory
	History   HistorySource
	Quit      func()
}

// Server answers control requests from the CLI on the local socket
type Server struct {
	deps   Deps
	echo   *echo.Echo
	logger zerolog.Logger
	srv    *http.Server
}

// NewServer builds the request router
func NewServer(deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		deps:   deps,
		echo:   echo.New(),
		logger: logger.With().Str("component", "ipc").Logger(),
	}
	s.echo.HideBanner = true
	s.srv = &http.Server{Handler: s.echo}

	s.echo.GET(PingPath, s.ping)
	s.echo.GET(StatusPath, s.status)
	s.echo.GET(ChannelsPath, s.channels)
	s.echo.GET(HistoryPath, s.history)
	s.echo.POST(PlayPath, s.play)
	s.echo.POST(TogglePath, s.signal(router.StateActivated))
	s.echo.POST(StopPath, s.signal(router.StopKey))
	s.echo.POST(VolumeUpPath, s.signal(router.ScrollUp))
	s.echo.POST(VolumeDownPath, s.signal(router.ScrollDown))
	s.echo.POST(QuitPath, s.quit)

	return s
}

// Handler exposes the router for tests and custom listeners
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Serve answers requests on l until Shutdown is called. After Shutdown it
// closes l and returns immediately.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info().Str("addr", l.Addr().String()).Msg("Control socket listening")
	if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) ping(c echo.Context) error {
	return c.String(http.StatusOK, "pong")
}

func (s *Server) status(c echo.Context) error {
	return c.JSON(http.StatusOK, NewStatus(s.deps.State.State()))
}

func (s *Server) channels(c echo.Context) error {
	if s.deps.Directory == nil {
		return c.JSON(http.StatusOK, []ChannelInfo{})
	}
	list, err := s.deps.Directory.ListChannels(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusBadGateway, err)
	}
	selected := s.deps.State.State().SelectedID()
	out := make([]ChannelInfo, 0, len(list))
	for _, ch := range list {
		out = append(out, newChannelInfo(ch, selected))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) history(c echo.Context) error {
	if s.deps.History == nil {
		return c.JSON(http.StatusOK, []HistoryEntry{})
	}
	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return fail(c, http.StatusBadRequest, errors.New("limit must be a positive integer"))
		}
		limit = n
	}
	entries, err := s.deps.History.Recent(c.Request().Context(), limit)
	if err != nil {
		return fail(c, http.StatusInternalServerError, err)
	}
	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntry{ChannelID: e.ChannelID, Text: e.Text, PlayedAt: e.PlayedAt})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) play(c echo.Context) error {
	id := c.QueryParam("id")
	if id == "" {
		return fail(c, http.StatusBadRequest, errors.New("missing channel id"))
	}
	return s.dispatch(c, router.Signal{Kind: router.ChannelActivated, ChannelID: id})
}

func (s *Server) signal(kind router.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		return s.dispatch(c, router.Signal{Kind: kind})
	}
}

func (s *Server) dispatch(c echo.Context, sig router.Signal) error {
	res, err := s.deps.Sender.Send(c.Request().Context(), sig)
	if err != nil {
		return fail(c, http.StatusServiceUnavailable, err)
	}
	if res.Err != nil {
		return fail(c, statusFor(res.Err), res.Err)
	}
	st := NewStatus(res.State)
	st.Ignored = res.Ignored
	return c.JSON(http.StatusOK, st)
}

func (s *Server) quit(c echo.Context) error {
	if s.deps.Quit == nil {
		return fail(c, http.StatusNotImplemented, errors.New("quit is not supported"))
	}
	s.logger.Info().Msg("Quit requested over control socket")
	if err := c.String(http.StatusOK, "bye"); err != nil {
		return err
	}
	go s.deps.Quit()
	return nil
}

func statusFor(err error) int {
	var pe *session.PlayerError
	switch {
	case errors.Is(err, session.ErrInvalidChannel):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoSelection):
		return http.StatusConflict
	case errors.As(err, &pe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c echo.Context, code int, err error) error {
	return c.JSON(code, Response{Error: err.Error()})
}
