package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PYXIS_CONFIG_DIR", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.PollInterval != 30 {
		t.Errorf("PollInterval = %d, want 30", cfg.PollInterval)
	}
	if cfg.PersistInterval != 2 {
		t.Errorf("PersistInterval = %d, want 2", cfg.PersistInterval)
	}
	if cfg.RestartDebounce != 750*time.Millisecond {
		t.Errorf("RestartDebounce = %v, want 750ms", cfg.RestartDebounce)
	}
	if cfg.DefaultVolume != 100 {
		t.Errorf("DefaultVolume = %d, want 100", cfg.DefaultVolume)
	}
	if !cfg.Notifications || cfg.Quiet || !cfg.MPRIS {
		t.Errorf("unexpected toggles: notifications=%v quiet=%v mpris=%v", cfg.Notifications, cfg.Quiet, cfg.MPRIS)
	}
	if cfg.Player.Backend != "exec" || cfg.Player.Command != "mplayer" {
		t.Errorf("unexpected player: %+v", cfg.Player)
	}
	if strings.Join(cfg.Player.Args, " ") != "-slave -quiet -really-quiet" {
		t.Errorf("Player.Args = %v", cfg.Player.Args)
	}
	if cfg.Player.StopTimeout != 2*time.Second {
		t.Errorf("Player.StopTimeout = %v, want 2s", cfg.Player.StopTimeout)
	}
	if cfg.Directory.Timeout != 10*time.Second {
		t.Errorf("Directory.Timeout = %v, want 10s", cfg.Directory.Timeout)
	}
	if cfg.OutputFormat != "{{.Channel}}: {{.NowPlaying}}" {
		t.Errorf("OutputFormat = %q", cfg.OutputFormat)
	}
	if len(cfg.Channels) != 0 {
		t.Errorf("Channels = %v, want none", cfg.Channels)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
poll_interval: 10
restart_debounce: 1s
default_volume: 40
fallback_channel: jazz
quiet: true
player:
  command: mpv
  args: ["--no-video"]
  stop_timeout: 500ms
directory:
  url: https://radio.example.com
  username: alice
channels:
  - id: jazz
    name: Jazz FM
    genre: jazz
    url: http://jazz.example.com/stream
  - id: rock
    url: http://rock.example.com/stream
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.PollInterval != 10 || cfg.RestartDebounce != time.Second || cfg.DefaultVolume != 40 {
		t.Errorf("unexpected timing/volume: %+v", cfg)
	}
	if cfg.FallbackChannel != "jazz" || !cfg.Quiet {
		t.Errorf("unexpected fallback/quiet: %q %v", cfg.FallbackChannel, cfg.Quiet)
	}
	if cfg.Player.Command != "mpv" || len(cfg.Player.Args) != 1 || cfg.Player.StopTimeout != 500*time.Millisecond {
		t.Errorf("unexpected player: %+v", cfg.Player)
	}
	if cfg.Directory.URL != "https://radio.example.com" || cfg.Directory.Username != "alice" {
		t.Errorf("unexpected directory: %+v", cfg.Directory)
	}
	if len(cfg.Channels) != 2 {
		t.Fatalf("got %d channels, want 2", len(cfg.Channels))
	}
	if cfg.Channels[0] != (ChannelConfig{ID: "jazz", Name: "Jazz FM", Genre: "jazz", URL: "http://jazz.example.com/stream"}) {
		t.Errorf("Channels[0] = %+v", cfg.Channels[0])
	}
	if cfg.Channels[1].ID != "rock" || cfg.Channels[1].Name != "" {
		t.Errorf("Channels[1] = %+v", cfg.Channels[1])
	}
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "poll_interval: 10\n")
	t.Setenv("PYXIS_POLL_INTERVAL", "5")
	t.Setenv("PYXIS_PLAYER_COMMAND", "mplayer2")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.PollInterval != 5 {
		t.Errorf("PollInterval = %d, want 5", cfg.PollInterval)
	}
	if cfg.Player.Command != "mplayer2" {
		t.Errorf("Player.Command = %q, want mplayer2", cfg.Player.Command)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero poll interval", "poll_interval: 0\n"},
		{"negative persist interval", "persist_interval: -1\n"},
		{"volume out of range", "default_volume: 101\n"},
		{"unknown backend", "player:\n  backend: vlc\n"},
		{"malformed yaml", "poll_interval: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFile(writeConfig(t, tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSaveAs_RoundTrip(t *testing.T) {
	t.Setenv("PYXIS_CONFIG_DIR", t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg.Directory.URL = "https://radio.example.com"
	cfg.Directory.Username = "alice"
	cfg.Channels = []ChannelConfig{{ID: "jazz", Name: "Jazz FM", Genre: "jazz", URL: "http://jazz"}}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.SaveAs(path); err != nil {
		t.Fatalf("SaveAs failed: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if loaded.Directory != cfg.Directory {
		t.Errorf("Directory = %+v, want %+v", loaded.Directory, cfg.Directory)
	}
	if loaded.RestartDebounce != cfg.RestartDebounce {
		t.Errorf("RestartDebounce = %v, want %v", loaded.RestartDebounce, cfg.RestartDebounce)
	}
	if len(loaded.Channels) != 1 || loaded.Channels[0] != cfg.Channels[0] {
		t.Errorf("Channels = %+v", loaded.Channels)
	}
}

func TestDatabasePath(t *testing.T) {
	cfg := &Config{DataDir: "/var/lib/pyxis"}
	if got := cfg.DatabasePath(); got != "/var/lib/pyxis/pyxis.db" {
		t.Errorf("DatabasePath() = %q", got)
	}
}
