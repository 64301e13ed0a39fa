package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jfmyers9/pyxis/internal/channel"
	"github.com/jfmyers9/pyxis/internal/config"
	"github.com/jfmyers9/pyxis/internal/daemon"
	"github.com/jfmyers9/pyxis/internal/player"
	"github.com/jfmyers9/pyxis/internal/session"
	"github.com/jfmyers9/pyxis/internal/settings"
	"github.com/jfmyers9/pyxis/pkg/directory"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// historyRetention is how long now-playing history is kept
const historyRetention = 30 * 24 * time.Hour

var (
	runLogFile  string
	runLogLevel string
	runDataDir  string
	runTray     bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [channel]",
	Short: "Run the radio host",
	Long: `Run the pyxis host that owns the media player and the playback session.

The host will:
- Restore the last selected channel and volume
- Play the given channel right away, when one is passed
- Poll the playing channel's now-playing text and announce changes
- Accept commands from 'pyxis play', 'pyxis stop' and friends
- Answer media keys through MPRIS
- Stop the player and save settings on SIGINT/SIGTERM

The host runs in the foreground and logs to stderr by default.
Use the --log-file flag to log to a file (useful for systemd).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHost,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Command-line flags
	runCmd.Flags().StringVar(&runLogFile, "log-file", "", "Log file path (default: stderr)")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&runDataDir, "data-dir", "", "Data directory for settings and history (default: user cache dir)")
	runCmd.Flags().BoolVar(&runTray, "tray", false, "Attach the terminal tray")
}

func runHost(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// The tray owns the terminal, so logs must go elsewhere
	logFile := runLogFile
	if runTray && logFile == "" {
		logFile = filepath.Join(os.TempDir(), "pyxis.log")
	}

	// Set up logging
	logger := setupLogger(logFile, runLogLevel)

	logger.Info().
		Str("version", version).
		Msg("Starting pyxis host")

	// Determine data directory
	dataDir := runDataDir
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	logger.Info().Str("data_dir", cfg.DataDir).Msg("Using data directory")

	store, err := settings.Open(cfg.DatabasePath(), logger)
	if err != nil {
		return fmt.Errorf("failed to open settings: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close settings")
		}
	}()

	dir, err := buildDirectory(cfg, logger)
	if err != nil {
		return err
	}

	proc, err := player.New(player.Config{
		Backend:       cfg.Player.Backend,
		Command:       cfg.Player.Command,
		Args:          cfg.Player.Args,
		VolumeCommand: cfg.Player.VolumeCommand,
		StopTimeout:   cfg.Player.StopTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}

	hostCfg := daemon.Config{
		Session: session.Config{
			PollInterval:    time.Duration(cfg.PollInterval) * time.Second,
			PersistInterval: time.Duration(cfg.PersistInterval) * time.Second,
			RestartDebounce: cfg.RestartDebounce,
			DefaultVolume:   cfg.DefaultVolume,
			FallbackChannel: cfg.FallbackChannel,
		},
		ScrollRate:       cfg.ScrollRate,
		SocketPath:       socketPath(cmd),
		StatusFile:       statusFilePath(cfg),
		HistoryRetention: historyRetention,
		Quiet:            cfg.Quiet,
		Notifications:    cfg.Notifications,
		MPRIS:            cfg.MPRIS,
		DiscordAppID:     cfg.Discord.AppID,
		Tray:             runTray,
	}
	if len(args) == 1 {
		hostCfg.InitialChannel = args[0]
	}

	h := daemon.New(hostCfg, dir, proc, store, logger)

	// Run host (blocks until shutdown signal)
	if err := h.Run(); err != nil {
		return fmt.Errorf("host error: %w", err)
	}

	logger.Info().Msg("Host stopped")
	return nil
}

// buildDirectory picks the HTTP directory when one is configured and
// falls back to the static channel list
func buildDirectory(cfg *config.Config, logger zerolog.Logger) (channel.Directory, error) {
	if cfg.Directory.URL == "" {
		if len(cfg.Channels) == 0 {
			return nil, errors.New("no channels configured: set directory.url or list channels in config.yaml")
		}
		channels := make([]channel.Channel, 0, len(cfg.Channels))
		for _, c := range cfg.Channels {
			channels = append(channels, channel.Channel{ID: c.ID, Name: c.Name, Genre: c.Genre, URL: c.URL})
		}
		dir, err := channel.NewStaticDirectory(channels, channel.NewICYFetcher(cfg.Directory.Timeout))
		if err != nil {
			return nil, fmt.Errorf("invalid channel list: %w", err)
		}
		logger.Info().Int("channels", len(channels)).Msg("Using configured channels")
		return dir, nil
	}

	var password string
	if cfg.Directory.Username != "" {
		p, err := config.Password(cfg.Directory.Username)
		if err != nil {
			return nil, err
		}
		password = p
	}

	client, err := directory.NewClient(directory.Config{
		BaseURL:  cfg.Directory.URL,
		Username: cfg.Directory.Username,
		Password: password,
		Timeout:  cfg.Directory.Timeout,
		Logger:   directoryLogger{logger.With().Str("component", "directory").Logger()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create directory client: %w", err)
	}
	logger.Info().Str("url", cfg.Directory.URL).Msg("Using channel directory")
	return channel.NewHTTPDirectory(client), nil
}

// statusFilePath is where the host mirrors its state for `pyxis now`
func statusFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "status.json")
}

// directoryLogger adapts zerolog to the directory client's Logger
type directoryLogger struct {
	l zerolog.Logger
}

func (d directoryLogger) Debugf(format string, args ...interface{}) {
	d.l.Debug().Msgf(format, args...)
}

// setupLogger creates a logger with the specified configuration
func setupLogger(logFile, logLevel string) zerolog.Logger {
	// Parse log level
	level := zerolog.InfoLevel
	switch logLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	// Set up output
	var output *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			output = os.Stderr
		} else {
			output = f
		}
	} else {
		output = os.Stderr
	}

	// Create logger
	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Use pretty console output if logging to stderr
	if output == os.Stderr {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return logger
}
