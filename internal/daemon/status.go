package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jfmyers9/pyxis/internal/channel"
	"github.com/jfmyers9/pyxis/internal/session"
	"github.com/rs/zerolog"
)

// Status is the snapshot written for status-bar readers such as `pyxis now`
type Status struct {
	ChannelID  string    `json:"channel_id,omitempty"`
	Channel    string    `json:"channel,omitempty"`
	Genre      string    `json:"genre,omitempty"`
	Playing    bool      `json:"playing"`
	Volume     int       `json:"volume"`
	NowPlaying string    `json:"now_playing,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StatusFile mirrors session changes into a JSON file so readers never
// need to reach the running host.
type StatusFile struct {
	mu       sync.Mutex
	current  Status
	filePath string
	now      func() time.Time
	logger   zerolog.Logger
}

// NewStatusFile writes to filePath; an empty path disables writing
func NewStatusFile(filePath string, logger zerolog.Logger) *StatusFile {
	return &StatusFile{
		filePath: filePath,
		now:      time.Now,
		logger:   logger.With().Str("component", "status").Logger(),
	}
}

// StateChanged records selection, playing flag and volume
func (s *StatusFile) StateChanged(st session.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current
	s.current = Status{Playing: st.IsPlaying, Volume: st.Volume}
	if st.SelectedChannel != nil {
		s.current.ChannelID = st.SelectedChannel.ID
		s.current.Channel = st.SelectedChannel.Name
		s.current.Genre = st.SelectedChannel.Genre
	}
	// Keep the text while the same channel plays on
	if st.IsPlaying && prev.ChannelID == s.current.ChannelID {
		s.current.NowPlaying = prev.NowPlaying
	}
	if st.IsPlaying && st.LastNowPlaying != nil && st.LastNowPlaying.ChannelID == s.current.ChannelID {
		s.current.NowPlaying = st.LastNowPlaying.Text
	}
	s.persistLocked()
}

// NowPlayingChanged records the latest now-playing text
func (s *StatusFile) NowPlayingChanged(ch channel.Channel, np channel.NowPlaying) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch.ID != s.current.ChannelID || !s.current.Playing {
		return
	}
	s.current.NowPlaying = np.Text
	s.persistLocked()
}

// Clear marks playback as stopped, used at shutdown
func (s *StatusFile) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Playing = false
	s.current.NowPlaying = ""
	s.persistLocked()
}

// persistLocked must be called with s.mu held
func (s *StatusFile) persistLocked() {
	if s.filePath == "" {
		return
	}
	s.current.UpdatedAt = s.now()
	if err := writeStatus(s.filePath, s.current); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to write status file")
	}
}

func writeStatus(filePath string, st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}

	// Write atomically via temp file + rename
	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, filePath)
}

// ReadStatus loads the snapshot written by a running host
func ReadStatus(filePath string) (Status, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Status{}, err
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return Status{}, err
	}
	return st, nil
}
