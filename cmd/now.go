package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/jfmyers9/pyxis/internal/channel"
	"github.com/jfmyers9/pyxis/internal/config"
	"github.com/jfmyers9/pyxis/internal/daemon"
	"github.com/jfmyers9/pyxis/internal/ipc"
	"github.com/jfmyers9/pyxis/internal/presentation"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

// nowCmd represents the now command
var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Display the channel and now-playing text",
	Long: `Display the playing channel and its now-playing text.

The output format can be customized in config.yaml using a Go template.
Available fields: .Channel, .ChannelID, .Genre, .NowPlaying, .Volume

The text is read from the status file the host keeps up to date, so this
command is cheap enough for tmux status lines.

Exit codes:
  0 - A channel is playing
  1 - Nothing playing, or the host is not running`,
	RunE: runNow,
}

// nowData is the template input for the now command
type nowData struct {
	Channel    string
	ChannelID  string
	Genre      string
	NowPlaying string
	Volume     int
}

func init() {
	rootCmd.AddCommand(nowCmd)

	// Add format flag to override config
	nowCmd.Flags().StringP("format", "f", "", "Output format template (overrides config)")
	// Add width flag to set fixed output width
	nowCmd.Flags().IntP("width", "w", 0, "Fixed output width (0=disabled, overrides config)")
	// Add marquee flag to enable scrolling
	nowCmd.Flags().Bool("marquee", false, "Enable marquee scrolling for long text (overrides config)")
}

func runNow(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Check for format flag override
	formatFlag, _ := cmd.Flags().GetString("format")
	if formatFlag != "" {
		cfg.OutputFormat = formatFlag
	}

	// A status file left behind by a crashed host must not count as playing
	conn, err := ipc.Dial(socketPath(cmd))
	if err != nil {
		os.Exit(1)
		return nil
	}
	_ = conn.Close()

	st, err := daemon.ReadStatus(statusFilePath(cfg))
	if err != nil || !st.Playing {
		os.Exit(1)
		return nil
	}

	// Format and print output
	output, err := formatNow(newNowData(st), cfg.OutputFormat)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	// Apply width padding/marquee if requested
	width, _ := cmd.Flags().GetInt("width")
	if width == 0 {
		width = cfg.OutputWidth
	}

	marquee, _ := cmd.Flags().GetBool("marquee")
	if !marquee && !cmd.Flags().Changed("marquee") {
		// Flag not set, use config default
		marquee = cfg.MarqueeEnabled
	}

	if width > 0 {
		if marquee {
			output = marqueeText(output, width, cfg.MarqueeSpeed, cfg.MarqueeSeparator, time.Now())
		} else {
			output = padToWidth(output, width)
		}
	}

	fmt.Println(output)
	return nil
}

func newNowData(st daemon.Status) nowData {
	ch := channel.Channel{ID: st.ChannelID, Name: st.Channel, Genre: st.Genre}
	return nowData{
		Channel:    presentation.ChannelLabel(ch),
		ChannelID:  st.ChannelID,
		Genre:      presentation.GenreDisplayName(st.Genre),
		NowPlaying: st.NowPlaying,
		Volume:     st.Volume,
	}
}

// formatNow applies the template to the now-playing data
func formatNow(data nowData, templateStr string) (string, error) {
	tmpl, err := template.New("output").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	// Without now-playing text the default "Channel: " format would dangle
	return strings.TrimSuffix(strings.TrimSpace(buf.String()), ":"), nil
}

// padToWidth pads or truncates text to exactly width display columns.
// Long text is cut with a "..." suffix. A width <= 0 leaves text unchanged.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}

	const ellipsis = "..."
	w := runewidth.StringWidth(text)
	switch {
	case w > width:
		if width <= len(ellipsis) {
			return runewidth.Truncate(ellipsis, width, "")
		}
		text = runewidth.Truncate(text, width-len(ellipsis), "") + ellipsis
		// Wide runes can leave the cut one column short
		return runewidth.FillRight(text, width)
	case w < width:
		return text + strings.Repeat(" ", width-w)
	}
	return text
}

// marqueeText scrolls text through a window of width columns. Text that
// fits is padded instead. The offset is derived from at, so repeated
// calls from a status line (tmux status-interval) step through the text
// speed characters per second without keeping any state.
func marqueeText(text string, width int, speed int, separator string, at time.Time) string {
	if width <= 0 {
		return text
	}
	if runewidth.StringWidth(text) <= width {
		return padToWidth(text, width)
	}

	// Loop the text so the window can wrap around
	loop := []rune(text + separator + text)
	total := len(loop)
	position := int(at.Unix()*int64(speed)) % total
	if position < 0 {
		position += total
	}

	var sb strings.Builder
	used := 0
	for i := 0; i < total; i++ {
		r := loop[(position+i)%total]
		rw := runewidth.RuneWidth(r)
		if used+rw > width {
			break
		}
		sb.WriteRune(r)
		used += rw
	}

	if used < width {
		sb.WriteString(strings.Repeat(" ", width-used))
	}
	return sb.String()
}
