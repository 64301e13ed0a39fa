package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jfmyers9/pyxis/internal/daemon"
	"github.com/spf13/cobra"
)

// installCmd represents the install command
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the pyxis host as a systemd user service",
	Long: `Install the pyxis host as a systemd user service that starts with your session.

This command will:
  - Generate a systemd unit for 'pyxis run'
  - Install it to ~/.config/systemd/user/
  - Enable and start it with systemctl --user`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get the path to the current executable
		binaryPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}

		// Resolve symlinks to get the actual binary path
		binaryPath, err = filepath.EvalSymlinks(binaryPath)
		if err != nil {
			return fmt.Errorf("failed to resolve executable path: %w", err)
		}

		logPath, err := daemon.GetDefaultLogPath()
		if err != nil {
			return fmt.Errorf("failed to get log path: %w", err)
		}
		if err := os.MkdirAll(logPath, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		unit, err := daemon.GenerateUnit(daemon.UnitConfig{
			BinaryPath:       binaryPath,
			LogPath:          logPath,
			WorkingDirectory: home,
		})
		if err != nil {
			return fmt.Errorf("failed to generate unit: %w", err)
		}

		unitPath, err := daemon.GetUnitPath()
		if err != nil {
			return fmt.Errorf("failed to get unit path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(unitPath), 0755); err != nil {
			return fmt.Errorf("failed to create unit directory: %w", err)
		}

		if _, err := os.Stat(unitPath); err == nil {
			fmt.Println("Service is already installed. Replacing it...")
			if err := systemctl("stop", daemon.UnitName); err != nil {
				fmt.Printf("Warning: failed to stop existing service: %v\n", err)
			}
		}

		if err := os.WriteFile(unitPath, []byte(unit), 0644); err != nil {
			return fmt.Errorf("failed to write unit file: %w", err)
		}
		fmt.Printf("✓ Installed unit to %s\n", unitPath)

		if err := systemctl("daemon-reload"); err != nil {
			return err
		}
		if err := systemctl("enable", "--now", daemon.UnitName); err != nil {
			return err
		}

		fmt.Println("✓ Service enabled and started")
		fmt.Printf("✓ Logs will be written to %s\n", logPath)
		fmt.Println("\nYou can check the service with:")
		fmt.Println("  systemctl --user status pyxis")
		fmt.Println("\nTo uninstall, run:")
		fmt.Println("  pyxis uninstall")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}

// systemctl runs systemctl against the user manager
func systemctl(args ...string) error {
	cmd := exec.Command("systemctl", append([]string{"--user"}, args...)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(output)); msg != "" {
			return fmt.Errorf("systemctl %s failed: %s", strings.Join(args, " "), msg)
		}
		return fmt.Errorf("failed to run systemctl %s: %w", strings.Join(args, " "), err)
	}
	return nil
}
