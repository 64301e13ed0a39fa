package discord

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/pyxis/internal/channel"
	"github.com/jfmyers9/pyxis/internal/presentation"
	"github.com/jfmyers9/pyxis/internal/session"
)

// updateBuffer bounds queued presence updates; older ones are superseded anyway
const updateBuffer = 8

type update struct {
	playing bool
	channel channel.Channel
	text    string
}

type rpcClient interface {
	SetActivity(Activity) error
	Close() error
}

// Presence mirrors the session into Discord Rich Presence. It listens to
// session events and talks to Discord from its own goroutine.
type Presence struct {
	appID   string
	logger  zerolog.Logger
	client  rpcClient
	connect func(string) (rpcClient, error)
	updates chan update
	now     func() time.Time

	last    lastActivity
	started time.Time
	text    string
}

type lastActivity struct {
	channelID, text string
	playing         bool
}

func New(appID string, logger zerolog.Logger) *Presence {
	return &Presence{
		appID:  appID,
		logger: logger.With().Str("component", "discord").Logger(),
		connect: func(appID string) (rpcClient, error) {
			return ipcConnect(appID)
		},
		updates: make(chan update, updateBuffer),
		now:     time.Now,
	}
}

// StateChanged queues the playing state for Discord
func (p *Presence) StateChanged(s session.State) {
	u := update{playing: s.IsPlaying}
	if s.SelectedChannel != nil {
		u.channel = *s.SelectedChannel
	}
	if s.LastNowPlaying != nil && s.LastNowPlaying.ChannelID == u.channel.ID {
		u.text = s.LastNowPlaying.Text
	}
	p.push(u)
}

// NowPlayingChanged queues the new now-playing text for Discord
func (p *Presence) NowPlayingChanged(ch channel.Channel, np channel.NowPlaying) {
	p.push(update{playing: true, channel: ch, text: np.Text})
}

func (p *Presence) push(u update) {
	select {
	case p.updates <- u:
	default:
		p.logger.Debug().Msg("Presence update queue full, dropping")
	}
}

// Run applies queued updates until ctx is cancelled.
// Connects lazily on first playback. If Discord isn't
// running, logs the error and retries on the next update.
func (p *Presence) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.clearActivity()
			p.close()
			return
		case u := <-p.updates:
			p.handleUpdate(u)
		}
	}
}

func (p *Presence) handleUpdate(u update) {
	if !u.playing {
		if p.last.playing {
			p.clearActivity()
			p.last = lastActivity{}
		}
		return
	}

	cur := lastActivity{channelID: u.channel.ID, text: u.text, playing: true}
	if cur == p.last {
		return
	}
	if cur.channelID != p.last.channelID || !p.last.playing {
		p.started = p.now()
	}

	if err := p.ensureConnected(); err != nil {
		p.logger.Warn().Err(err).Msg("Discord not available")
		return
	}

	startUnix := p.started.Unix()
	label := presentation.ChannelLabel(u.channel)
	details := u.text
	if details == "" {
		details = label
	}

	err := p.client.SetActivity(Activity{
		Type:    ActivityListening,
		Name:    "Pyxis",
		Details: details,
		State:   "on " + label,
		Timestamps: &Timestamps{
			Start: &startUnix,
		},
		Assets: &Assets{
			LargeImage: "pyxis",
			LargeText:  presentation.GenreDisplayName(u.channel.Genre),
		},
	})
	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to set activity")
		p.close()
		return
	}
	p.last = cur
}

func (p *Presence) ensureConnected() error {
	if p.client != nil {
		return nil
	}
	client, err := p.connect(p.appID)
	if err != nil {
		return err
	}
	p.logger.Info().Msg("Connected to Discord")
	p.client = client
	return nil
}

func (p *Presence) clearActivity() {
	if p.client == nil {
		return
	}
	if err := p.client.SetActivity(Activity{}); err != nil {
		p.logger.Debug().Err(err).Msg("Failed to clear activity")
		p.close()
	}
}

func (p *Presence) close() {
	if p.client == nil {
		return
	}
	_ = p.client.Close()
	p.client = nil
}
