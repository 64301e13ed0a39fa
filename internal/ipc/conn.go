package ipc

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
)

// SocketPath returns the control socket location:
// $XDG_RUNTIME_DIR/pyxis.sock, or /tmp/pyxis-{uid}.sock when unset.
// PYXIS_SOCKET overrides both.
func SocketPath() string {
	if p := os.Getenv("PYXIS_SOCKET"); p != "" {
		return p
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "pyxis.sock")
	}
	if u, err := user.Current(); err == nil {
		return fmt.Sprintf("/tmp/pyxis-%s.sock", u.Uid)
	}
	return "/tmp/pyxis.sock"
}

// Dial connects to the socket at path
func Dial(path string) (net.Conn, error) {
	return net.Dial("unix", path)
}

// Listen creates the socket at path. A stale socket file left behind by a
// crashed host is removed first; a live one is reported as in use.
func Listen(path string) (net.Listener, error) {
	if conn, err := Dial(path); err == nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s is in use by another pyxis instance", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale socket: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}
	return net.Listen("unix", path)
}

// DestroyConn removes the socket file
func DestroyConn(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
