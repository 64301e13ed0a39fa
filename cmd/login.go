package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jfmyers9/pyxis/internal/config"
	"github.com/jfmyers9/pyxis/pkg/directory"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to a channel directory",
	Long: `Sign in to an HTTP channel directory.

This command will:
1. Prompt for the directory URL, your username and your password
2. Check the credentials by listing the directory's channels
3. Save the URL and username to config.yaml and the password to the OS keyring

Without a directory, pyxis plays the channels listed under 'channels' in config.yaml.`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	// Load existing config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("Channel Directory Login")
	fmt.Println("=======================")
	fmt.Println()

	cfg.Directory.URL = prompt(reader, "Directory URL", cfg.Directory.URL)
	cfg.Directory.Username = prompt(reader, "Username", cfg.Directory.Username)
	if cfg.Directory.URL == "" || cfg.Directory.Username == "" {
		return fmt.Errorf("directory URL and username are required")
	}

	fmt.Print("Password: ")
	password, err := readPassword(reader)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	// Check the credentials before saving anything
	client, err := directory.NewClient(directory.Config{
		BaseURL:  cfg.Directory.URL,
		Username: cfg.Directory.Username,
		Password: password,
		Timeout:  cfg.Directory.Timeout,
	})
	if err != nil {
		return fmt.Errorf("invalid directory settings: %w", err)
	}

	fmt.Println("\nChecking credentials...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	channels, err := client.Channels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list channels: %w", err)
	}

	if err := config.SetPassword(cfg.Directory.Username, password); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	configPath := config.GetConfigDir()
	fmt.Printf("\n✓ Signed in, %d channels available\n", len(channels))
	fmt.Printf("✓ Directory saved to %s/config.yaml\n", configPath)
	fmt.Println("✓ Password saved to the OS keyring")
	fmt.Println("\nRestart 'pyxis run' to use the directory.")

	return nil
}

// prompt reads one line, keeping current when the answer is empty
func prompt(reader *bufio.Reader, label, current string) string {
	if current != "" {
		fmt.Printf("%s [%s]: ", label, current)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, err := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && line == "" {
		return current
	}
	if line == "" {
		return current
	}
	return line
}

// readPassword reads without echo from a terminal, or a plain line from a pipe
func readPassword(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		return strings.TrimSpace(string(b)), err
	}
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
