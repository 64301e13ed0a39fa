package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jfmyers9/pyxis/internal/ipc"
	"github.com/jfmyers9/pyxis/internal/presentation"
	"github.com/spf13/cobra"
)

// controlTimeout bounds a single request to the host
const controlTimeout = 10 * time.Second

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play <channel>",
	Short: "Play a channel",
	Long:  `Switch the running host to the given channel and start playback. Use 'pyxis list' to see channel ids.`,
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(ctx context.Context, c *ipc.Client, args []string) error {
		st, err := c.Play(ctx, args[0])
		if err != nil {
			return err
		}
		printStatus(os.Stdout, st)
		return nil
	}),
}

// toggleCmd represents the toggle command
var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Toggle play/stop",
	Long:  `Stop playback when playing, otherwise restart the selected channel.`,
	Args:  cobra.NoArgs,
	RunE:  statusCall((*ipc.Client).Toggle),
}

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop playback",
	Long:  `Stop playback. The selected channel is kept for the next 'pyxis toggle'.`,
	Args:  cobra.NoArgs,
	RunE:  statusCall((*ipc.Client).Stop),
}

// volumeCmd represents the volume command
var volumeCmd = &cobra.Command{
	Use:   "volume <up|down>",
	Short: "Change the volume by one step",
	Long: `Raise or lower the volume by one step.

Volume only changes while a channel is playing.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"up", "down"},
	RunE: withClient(func(ctx context.Context, c *ipc.Client, args []string) error {
		var (
			st  ipc.Status
			err error
		)
		switch args[0] {
		case "up", "+":
			st, err = c.VolumeUp(ctx)
		case "down", "-":
			st, err = c.VolumeDown(ctx)
		default:
			return fmt.Errorf("volume direction must be 'up' or 'down', got %q", args[0])
		}
		if err != nil {
			return err
		}
		if st.Ignored {
			fmt.Println("Volume unchanged (not playing)")
			return nil
		}
		fmt.Println(presentation.VolumeLabel(st.Volume))
		return nil
	}),
}

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the host's playback state",
	Args:  cobra.NoArgs,
	RunE:  statusCall((*ipc.Client).Status),
}

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List channels",
	Long:  `List the host's channels in menu order. The selected channel is marked with '*'.`,
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, c *ipc.Client, args []string) error {
		channels, err := c.Channels(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, ch := range channels {
			mark := " "
			if ch.Selected {
				mark = "*"
			}
			_, _ = fmt.Fprintf(w, "%s %s\t%s\t%s\n", mark, ch.ID, ch.Name, presentation.GenreDisplayName(ch.Genre))
		}
		return w.Flush()
	}),
}

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently played now-playing text",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, c *ipc.Client, args []string) error {
		if historyLimit <= 0 {
			return fmt.Errorf("--limit must be positive, got %d", historyLimit)
		}
		entries, err := c.History(ctx, historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No history yet")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %-12s %s\n", e.PlayedAt.Local().Format("2006-01-02 15:04"), e.ChannelID, e.Text)
		}
		return nil
	}),
}

// quitCmd represents the quit command
var quitCmd = &cobra.Command{
	Use:   "quit",
	Short: "Stop the running host",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, c *ipc.Client, args []string) error {
		if err := c.Quit(ctx); err != nil {
			return err
		}
		fmt.Println("✓ Host is shutting down")
		return nil
	}),
}

var historyLimit int

func init() {
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(volumeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(quitCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")
}

// socketPath returns the --socket flag or the default socket location
func socketPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("socket"); p != "" {
		return p
	}
	return ipc.SocketPath()
}

// withClient connects to the running host before calling fn
func withClient(fn func(ctx context.Context, c *ipc.Client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
		defer cancel()

		c, err := ipc.Connect(ctx, socketPath(cmd))
		if err != nil {
			return fmt.Errorf("pyxis is not running (start it with 'pyxis run'): %w", err)
		}
		return fn(ctx, c, args)
	}
}

// statusCall runs a status-returning request and prints the result
func statusCall(call func(*ipc.Client, context.Context) (ipc.Status, error)) func(*cobra.Command, []string) error {
	return withClient(func(ctx context.Context, c *ipc.Client, args []string) error {
		st, err := call(c, ctx)
		if err != nil {
			return err
		}
		printStatus(os.Stdout, st)
		return nil
	})
}

// printStatus writes a short human-readable view of the host state
func printStatus(w io.Writer, st ipc.Status) {
	state := "Stopped"
	if st.Playing {
		state = "Playing"
	}
	name := st.Channel
	if name == "" {
		name = st.ChannelID
	}
	if name == "" {
		name = "(no channel)"
	}
	_, _ = fmt.Fprintf(w, "%s: %s\n", state, name)
	if st.NowPlaying != "" {
		_, _ = fmt.Fprintf(w, "Now playing: %s\n", st.NowPlaying)
	}
	_, _ = fmt.Fprintln(w, presentation.VolumeLabel(st.Volume))
}
