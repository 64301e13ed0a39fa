package cmd

import (
	"github.com/spf13/cobra"
)

// trayCmd represents the tray command
var trayCmd = &cobra.Command{
	Use:   "tray [channel]",
	Short: "Run the radio host with the terminal tray",
	Long: `Run the pyxis host with a terminal tray attached.

The tray shows the play/stop item, the volume and every channel grouped
by genre. It is the same host as 'pyxis run --tray'; logs go to
$TMPDIR/pyxis.log unless --log-file is given.

Keys:
  enter     play the highlighted channel
  space, p  play/stop
  s         stop
  +, -      volume up/down (also the mouse wheel over the header)
  q         quit`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runTray = true
		return runHost(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(trayCmd)

	trayCmd.Flags().StringVar(&runLogFile, "log-file", "", "Log file path (default: $TMPDIR/pyxis.log)")
	trayCmd.Flags().StringVar(&runLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	trayCmd.Flags().StringVar(&runDataDir, "data-dir", "", "Data directory for settings and history (default: user cache dir)")
}
