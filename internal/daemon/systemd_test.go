package daemon

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateUnit(t *testing.T) {
	unit, err := GenerateUnit(UnitConfig{
		BinaryPath:       "/usr/local/bin/pyxis",
		LogPath:          "/home/me/.local/state/pyxis/logs",
		WorkingDirectory: "/home/me",
	})
	if err != nil {
		t.Fatalf("GenerateUnit failed: %v", err)
	}

	for _, want := range []string{
		"ExecStart=/usr/local/bin/pyxis run --log-file /home/me/.local/state/pyxis/logs/pyxis.log",
		"WorkingDirectory=/home/me",
		"WantedBy=default.target",
	} {
		if !strings.Contains(unit, want) {
			t.Errorf("unit missing %q:\n%s", want, unit)
		}
	}
}

func TestGetUnitPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	path, err := GetUnitPath()
	if err != nil {
		t.Fatalf("GetUnitPath failed: %v", err)
	}
	if path != filepath.Join("/cfg", "systemd", "user", UnitName) {
		t.Errorf("GetUnitPath() = %q", path)
	}
}
