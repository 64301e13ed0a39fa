package ipc

import (
	"time"

	"github.com/jfmyers9/pyxis/internal/channel"
	"github.com/jfmyers9/pyxis/internal/session"
)

// Request paths. PlayPath takes ?id=<channel>, HistoryPath takes ?limit=<n>.
const (
	PingPath       = "/ping"
	PlayPath       = "/play"
	TogglePath     = "/toggle"
	StopPath       = "/stop"
	VolumeUpPath   = "/volume/up"
	VolumeDownPath = "/volume/down"
	StatusPath     = "/status"
	ChannelsPath   = "/channels"
	HistoryPath    = "/history"
	QuitPath       = "/quit"
)

// Response is the error envelope returned with non-200 statuses
type Response struct {
	Error string `json:"error"`
}

// Status is a JSON view of the session snapshot
type Status struct {
	ChannelID  string `json:"channel_id,omitempty"`
	Channel    string `json:"channel,omitempty"`
	Genre      string `json:"genre,omitempty"`
	Playing    bool   `json:"playing"`
	Volume     int    `json:"volume"`
	Polling    bool   `json:"polling"`
	NowPlaying string `json:"now_playing,omitempty"`
	Ignored    bool   `json:"ignored,omitempty"`
}

// ChannelInfo is one entry of the channel listing
type ChannelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Genre    string `json:"genre"`
	Selected bool   `json:"selected"`
}

// HistoryEntry is one recorded now-playing change
type HistoryEntry struct {
	ChannelID string    `json:"channel_id"`
	Text      string    `json:"text"`
	PlayedAt  time.Time `json:"played_at"`
}

// NewStatus converts a snapshot to its wire form
func NewStatus(s session.State) Status {
	st := Status{
		Playing: s.IsPlaying,
		Volume:  s.Volume,
		Polling: s.PollTimerActive,
	}
	if s.SelectedChannel != nil {
		st.ChannelID = s.SelectedChannel.ID
		st.Channel = s.SelectedChannel.Name
		st.Genre = s.SelectedChannel.Genre
	}
	if s.LastNowPlaying != nil && s.LastNowPlaying.ChannelID == st.ChannelID {
		st.NowPlaying = s.LastNowPlaying.Text
	}
	return st
}

func newChannelInfo(ch channel.Channel, selected string) ChannelInfo {
	return ChannelInfo{ID: ch.ID, Name: ch.Name, Genre: ch.Genre, Selected: ch.ID == selected}
}
