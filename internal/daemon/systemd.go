package daemon

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// UnitName is the systemd user unit installed by `pyxis install`
const UnitName = "pyxis.service"

const unitTemplate = `[Unit]
Description=Pyxis satellite radio controller
After=graphical-session.target sound.target
PartOf=graphical-session.target

[Service]
Type=simple
ExecStart={{.BinaryPath}} run --log-file {{.LogPath}}/pyxis.log
WorkingDirectory={{.WorkingDirectory}}
Restart=on-failure
RestartSec=5
Environment=PATH=/usr/local/bin:/usr/bin:/bin

[Install]
WantedBy=default.target
`

// UnitConfig holds the configuration for generating a systemd user unit
type UnitConfig struct {
	BinaryPath       string
	LogPath          string
	WorkingDirectory string
}

// GenerateUnit generates a systemd unit file from the template
func GenerateUnit(config UnitConfig) (string, error) {
	tmpl, err := template.New("unit").Parse(unitTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse unit template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, config); err != nil {
		return "", fmt.Errorf("failed to execute unit template: %w", err)
	}

	return buf.String(), nil
}

// GetUnitPath returns the path where the unit should be installed
func GetUnitPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "systemd", "user", UnitName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".config", "systemd", "user", UnitName), nil
}

// GetDefaultLogPath returns the default directory for host logs
func GetDefaultLogPath() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "pyxis", "logs"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".local", "state", "pyxis", "logs"), nil
}
