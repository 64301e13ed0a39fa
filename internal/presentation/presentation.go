// Package presentation turns session state into labels, menus and
// notification text. Everything here is a pure function of its inputs.
package presentation

import (
	"fmt"
	"strings"
	"time"

	"github.com/jfmyers9/pyxis/internal/channel"
	"github.com/jfmyers9/pyxis/internal/session"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Icon names for the tray
const (
	IconPlaying = "dog_white_mono"
	IconStopped = "dog_gray_mono"
)

// NotificationTitle heads every desktop notification
const NotificationTitle = "Pyxis"

// genreNames holds genre keys whose title-cased form reads wrong
var genreNames = map[string]string{
	"trafficandnews":  "Traffic and News",
	"howardstern":     "Howard Stern",
	"familyandhealth": "Family and Health",
	"hiphop":          "Hip Hop",
	"publicradio":     "Public Radio",
}

// GenreDisplayName returns the menu label for a genre key
func GenreDisplayName(key string) string {
	if name, ok := genreNames[strings.ToLower(key)]; ok {
		return name
	}
	if key == "" {
		return "Other"
	}
	return title(key)
}

// ChannelLabel returns the display label for a channel
func ChannelLabel(ch channel.Channel) string {
	name := ch.Name
	if name == "" {
		name = ch.ID
	}
	return title(name)
}

// StateLabel returns the play/stop menu label, e.g. `Stop "Hip Hop Nation"`
func StateLabel(s session.State) string {
	verb := "Play"
	if s.IsPlaying {
		verb = "Stop"
	}
	if s.SelectedChannel == nil {
		return verb
	}
	return fmt.Sprintf("%s %q", verb, ChannelLabel(*s.SelectedChannel))
}

// IconName returns the tray icon for the state
func IconName(s session.State) string {
	if s.IsPlaying {
		return IconPlaying
	}
	return IconStopped
}

// VolumeLabel returns e.g. "Volume: 80%"
func VolumeLabel(volume int) string {
	return fmt.Sprintf("Volume: %d%%", volume)
}

// NotificationText returns the body of a now-playing notification
func NotificationText(ch channel.Channel, np channel.NowPlaying) string {
	return ChannelLabel(ch) + ": " + np.Text
}

// ConsoleLine returns the console form of a now-playing change, e.g.
// "14:05 - Hip Hop Nation: Artist - Song"
func ConsoleLine(at time.Time, ch channel.Channel, np channel.NowPlaying) string {
	return at.Format("15:04") + " - " + NotificationText(ch, np)
}

// Truncate shortens s to width display cells, ending with an ellipsis.
// A width of zero or less disables truncation.
func Truncate(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

func title(s string) string {
	return cases.Title(language.English).String(s)
}
