package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/20after4/configdir"
	"github.com/spf13/viper"
)

const appName = "pyxis"

// Config holds application configuration
type Config struct {
	// Now-playing poll period (in seconds)
	PollInterval int

	// Minimum seconds between settings writes, 0 writes through
	PersistInterval int

	// Identical play requests for the playing channel inside this window are ignored
	RestartDebounce time.Duration

	// Volume used when none is persisted
	DefaultVolume int

	// Channel used when no valid selection is persisted, "" for the first listed
	FallbackChannel string

	// Scroll signals applied per second, 0 for no limit
	ScrollRate int

	Notifications bool
	Quiet         bool
	MPRIS         bool

	// Settings database directory
	DataDir string

	// Output format template for the now command
	// Default: "{{.Channel}}: {{.NowPlaying}}"
	OutputFormat string

	// Display options for the now command
	OutputWidth      int
	MarqueeEnabled   bool
	MarqueeSpeed     int
	MarqueeSeparator string

	Player    PlayerConfig
	Directory DirectoryConfig
	Discord   DiscordConfig

	// Static channel list, used when Directory.URL is empty
	Channels []ChannelConfig
}

// PlayerConfig selects and tunes the media player
type PlayerConfig struct {
	Backend       string
	Command       string
	Args          []string
	VolumeCommand string
	StopTimeout   time.Duration
}

// DirectoryConfig points at an HTTP channel directory.
// The password lives in the OS keyring, see Password.
type DirectoryConfig struct {
	URL      string
	Username string
	Timeout  time.Duration
}

// DiscordConfig enables rich presence when AppID is set
type DiscordConfig struct {
	AppID string
}

// ChannelConfig is one statically configured channel
type ChannelConfig struct {
	ID    string `mapstructure:"id"`
	Name  string `mapstructure:"name"`
	Genre string `mapstructure:"genre"`
	URL   string `mapstructure:"url"`
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Config file locations (in order of precedence)
	v.AddConfigPath(getConfigDir())
	v.AddConfigPath(".")

	return load(v)
}

// LoadFile reads configuration from an explicit file
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// The file is optional, but a broken one is reported
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Read from environment variables
	v.SetEnvPrefix("PYXIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		PollInterval:     v.GetInt("poll_interval"),
		PersistInterval:  v.GetInt("persist_interval"),
		RestartDebounce:  v.GetDuration("restart_debounce"),
		DefaultVolume:    v.GetInt("default_volume"),
		FallbackChannel:  v.GetString("fallback_channel"),
		ScrollRate:       v.GetInt("scroll_rate"),
		Notifications:    v.GetBool("notifications"),
		Quiet:            v.GetBool("quiet"),
		MPRIS:            v.GetBool("mpris"),
		DataDir:          v.GetString("data_dir"),
		OutputFormat:     v.GetString("output_format"),
		OutputWidth:      v.GetInt("output_width"),
		MarqueeEnabled:   v.GetBool("marquee_enabled"),
		MarqueeSpeed:     v.GetInt("marquee_speed"),
		MarqueeSeparator: v.GetString("marquee_separator"),
		Player: PlayerConfig{
			Backend:       v.GetString("player.backend"),
			Command:       v.GetString("player.command"),
			Args:          v.GetStringSlice("player.args"),
			VolumeCommand: v.GetString("player.volume_command"),
			StopTimeout:   v.GetDuration("player.stop_timeout"),
		},
		Directory: DirectoryConfig{
			URL:      v.GetString("directory.url"),
			Username: v.GetString("directory.username"),
			Timeout:  v.GetDuration("directory.timeout"),
		},
		Discord: DiscordConfig{
			AppID: v.GetString("discord.app_id"),
		},
	}

	if err := v.UnmarshalKey("channels", &cfg.Channels); err != nil {
		return nil, fmt.Errorf("invalid channels: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("poll_interval", 30)
	v.SetDefault("persist_interval", 2)
	v.SetDefault("restart_debounce", "750ms")
	v.SetDefault("default_volume", 100)
	v.SetDefault("fallback_channel", "")
	v.SetDefault("scroll_rate", 20)
	v.SetDefault("notifications", true)
	v.SetDefault("quiet", false)
	v.SetDefault("mpris", true)
	v.SetDefault("data_dir", GetDataDir())
	v.SetDefault("output_format", "{{.Channel}}: {{.NowPlaying}}")
	v.SetDefault("output_width", 0)
	v.SetDefault("marquee_enabled", false)
	v.SetDefault("marquee_speed", 1)
	v.SetDefault("marquee_separator", " • ")
	v.SetDefault("player.backend", "exec")
	v.SetDefault("player.command", "mplayer")
	v.SetDefault("player.args", []string{"-slave", "-quiet", "-really-quiet"})
	v.SetDefault("player.volume_command", "volume %d 1")
	v.SetDefault("player.stop_timeout", "2s")
	v.SetDefault("directory.timeout", "10s")
}

// Validate rejects values the controller cannot run with
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %d", c.PollInterval)
	}
	if c.PersistInterval < 0 {
		return fmt.Errorf("persist_interval must not be negative, got %d", c.PersistInterval)
	}
	if c.DefaultVolume < 0 || c.DefaultVolume > 100 {
		return fmt.Errorf("default_volume must be within 0..100, got %d", c.DefaultVolume)
	}
	switch c.Player.Backend {
	case "exec", "libmpv":
	default:
		return fmt.Errorf("unknown player.backend %q", c.Player.Backend)
	}
	return nil
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	if dir := os.Getenv("PYXIS_CONFIG_DIR"); dir != "" {
		_ = configdir.MakePath(dir)
		return dir
	}
	dir := configdir.LocalConfig(appName)
	_ = configdir.MakePath(dir)
	return dir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// GetDataDir returns the default directory for the settings database
func GetDataDir() string {
	return configdir.LocalCache(appName)
}

// DatabasePath returns the settings database file inside DataDir
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "pyxis.db")
}

// Save writes configuration to file
func (c *Config) Save() error {
	return c.SaveAs(filepath.Join(getConfigDir(), "config.yaml"))
}

// SaveAs writes configuration to the given file
func (c *Config) SaveAs(configFile string) error {
	v := viper.New()

	v.Set("poll_interval", c.PollInterval)
	v.Set("persist_interval", c.PersistInterval)
	v.Set("restart_debounce", c.RestartDebounce.String())
	v.Set("default_volume", c.DefaultVolume)
	v.Set("fallback_channel", c.FallbackChannel)
	v.Set("scroll_rate", c.ScrollRate)
	v.Set("notifications", c.Notifications)
	v.Set("quiet", c.Quiet)
	v.Set("mpris", c.MPRIS)
	v.Set("data_dir", c.DataDir)
	v.Set("output_format", c.OutputFormat)
	v.Set("output_width", c.OutputWidth)
	v.Set("marquee_enabled", c.MarqueeEnabled)
	v.Set("marquee_speed", c.MarqueeSpeed)
	v.Set("marquee_separator", c.MarqueeSeparator)
	v.Set("player.backend", c.Player.Backend)
	v.Set("player.command", c.Player.Command)
	v.Set("player.args", c.Player.Args)
	v.Set("player.volume_command", c.Player.VolumeCommand)
	v.Set("player.stop_timeout", c.Player.StopTimeout.String())
	v.Set("directory.url", c.Directory.URL)
	v.Set("directory.username", c.Directory.Username)
	v.Set("directory.timeout", c.Directory.Timeout.String())
	v.Set("discord.app_id", c.Discord.AppID)

	channels := make([]map[string]string, 0, len(c.Channels))
	for _, ch := range c.Channels {
		channels = append(channels, map[string]string{
			"id": ch.ID, "name": ch.Name, "genre": ch.Genre, "url": ch.URL,
		})
	}
	v.Set("channels", channels)

	// Write to file
	return v.WriteConfigAs(configFile)
}
