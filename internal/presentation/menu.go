package presentation

import (
	"github.com/jfmyers9/pyxis/internal/channel"
	"github.com/jfmyers9/pyxis/internal/session"
)

// Menu is the tray menu model
type Menu struct {
	State  string // Play/stop item label
	Icon   string
	Volume string
	Genres []Genre
}

// Genre is a submenu of channels sharing a genre key
type Genre struct {
	Key      string
	Label    string
	Channels []Item
}

// Item is one selectable channel
type Item struct {
	ID       string
	Label    string
	Selected bool
}

// BuildMenu groups channels by genre, in order of first appearance
func BuildMenu(channels []channel.Channel, s session.State) Menu {
	m := Menu{
		State:  StateLabel(s),
		Icon:   IconName(s),
		Volume: VolumeLabel(s.Volume),
	}

	index := make(map[string]int)
	selected := s.SelectedID()
	for _, ch := range channels {
		i, ok := index[ch.Genre]
		if !ok {
			i = len(m.Genres)
			index[ch.Genre] = i
			m.Genres = append(m.Genres, Genre{
				Key:   ch.Genre,
				Label: GenreDisplayName(ch.Genre),
			})
		}
		m.Genres[i].Channels = append(m.Genres[i].Channels, Item{
			ID:       ch.ID,
			Label:    ChannelLabel(ch),
			Selected: ch.ID == selected,
		})
	}
	return m
}
