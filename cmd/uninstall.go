package cmd

import (
	"fmt"
	"os"

	"github.com/jfmyers9/pyxis/internal/daemon"
	"github.com/spf13/cobra"
)

// uninstallCmd represents the uninstall command
var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the pyxis systemd user service",
	Long: `Stop and disable the pyxis user service and remove its unit file.

Settings and history are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		unitPath, err := daemon.GetUnitPath()
		if err != nil {
			return fmt.Errorf("failed to get unit path: %w", err)
		}

		if _, err := os.Stat(unitPath); os.IsNotExist(err) {
			fmt.Println("Service is not installed (unit not found)")
			return nil
		}

		fmt.Println("Stopping service...")
		if err := systemctl("disable", "--now", daemon.UnitName); err != nil {
			fmt.Printf("Warning: failed to stop service: %v\n", err)
			fmt.Println("Continuing with unit removal...")
		} else {
			fmt.Println("✓ Service stopped")
		}

		if err := os.Remove(unitPath); err != nil {
			return fmt.Errorf("failed to remove unit file: %w", err)
		}
		if err := systemctl("daemon-reload"); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}

		fmt.Printf("✓ Removed unit from %s\n", unitPath)
		fmt.Println("\nTo reinstall, run:")
		fmt.Println("  pyxis install")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
