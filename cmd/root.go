/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pyxis",
	Short: "Satellite radio player for the desktop",
	Long: `pyxis plays satellite radio channels from a tray-style controller.

It runs as a background host that owns the media player, polls the
selected channel's now-playing text and shows it as desktop notifications.
Media keys work through MPRIS.

The other commands talk to a running host over a local socket, which
makes pyxis easy to drive from scripts, window manager bindings and
tmux status lines.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("socket", "", "Control socket path (default: $XDG_RUNTIME_DIR/pyxis.sock)")
}
