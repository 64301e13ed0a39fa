package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"

	"github.com/jfmyers9/pyxis/internal/channel"
	"github.com/jfmyers9/pyxis/internal/presentation"
	"github.com/jfmyers9/pyxis/internal/session"
)

const (
	notificationsName   = "org.freedesktop.Notifications"
	notificationsPath   = "/org/freedesktop/Notifications"
	notificationsNotify = notificationsName + ".Notify"

	// callTimeout bounds a single D-Bus call
	callTimeout = 2 * time.Second

	// expireTimeout is how long a notification stays on screen, in milliseconds
	expireTimeout int32 = 5000
)

// Message is one desktop notification
type Message struct {
	Summary string
	Body    string
	Icon    string
}

// Sender delivers a notification, replacing the one with id replaces
// when non-zero, and returns the id of the shown notification
type Sender interface {
	Send(ctx context.Context, m Message, replaces uint32) (uint32, error)
}

// Desktop shows now-playing changes and notices as desktop notifications.
// Successive now-playing notifications replace each other.
type Desktop struct {
	sender Sender
	logger zerolog.Logger

	mu     sync.Mutex
	lastID uint32
}

// NewDesktop connects to the session bus
func NewDesktop(logger zerolog.Logger) (*Desktop, error) {
	sender, err := NewDBusSender()
	if err != nil {
		return nil, err
	}
	return NewDesktopWithSender(sender, logger), nil
}

// NewDesktopWithSender uses an explicit sender
func NewDesktopWithSender(sender Sender, logger zerolog.Logger) *Desktop {
	return &Desktop{
		sender: sender,
		logger: logger.With().Str("component", "notify").Logger(),
	}
}

// StateChanged is a no-op; desktop notifications cover now-playing text only
func (d *Desktop) StateChanged(session.State) {}

// NowPlayingChanged shows "Channel: text"
func (d *Desktop) NowPlayingChanged(ch channel.Channel, np channel.NowPlaying) {
	if np.Text == "" {
		return
	}
	d.show(Message{
		Summary: presentation.NotificationTitle,
		Body:    presentation.NotificationText(ch, np),
		Icon:    presentation.IconPlaying,
	}, true)
}

// Notice shows a user-facing failure
func (d *Desktop) Notice(err error) {
	d.show(Message{
		Summary: presentation.NotificationTitle,
		Body:    err.Error(),
		Icon:    "dialog-warning",
	}, false)
}

func (d *Desktop) show(m Message, replace bool) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	var replaces uint32
	if replace {
		replaces = d.lastID
	}
	id, err := d.sender.Send(ctx, m, replaces)
	if err != nil {
		d.logger.Debug().Err(err).Msg("Failed to show notification")
		return
	}
	if replace {
		d.lastID = id
	}
}

// DBusSender calls org.freedesktop.Notifications on the session bus
type DBusSender struct {
	obj dbus.BusObject
}

// NewDBusSender connects to the session bus
func NewDBusSender() (*DBusSender, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &DBusSender{obj: conn.Object(notificationsName, dbus.ObjectPath(notificationsPath))}, nil
}

func (s *DBusSender) Send(ctx context.Context, m Message, replaces uint32) (uint32, error) {
	call := s.obj.CallWithContext(ctx, notificationsNotify, 0,
		"pyxis",
		replaces,
		m.Icon,
		m.Summary,
		m.Body,
		[]string{},
		map[string]dbus.Variant{},
		expireTimeout,
	)
	if call.Err != nil {
		return 0, call.Err
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, errors.New("notification server returned no id")
	}
	return id, nil
}
