package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// ErrNoPassword is returned when the keyring holds no directory password
var ErrNoPassword = errors.New("no directory password stored, run `pyxis login`")

// Password reads the directory password for user from the OS keyring
func Password(user string) (string, error) {
	pass, err := keyring.Get(appName, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoPassword
	}
	if err != nil {
		return "", fmt.Errorf("failed to read keyring: %w", err)
	}
	return pass, nil
}

// SetPassword stores the directory password for user in the OS keyring
func SetPassword(user, password string) error {
	if err := keyring.Set(appName, user, password); err != nil {
		return fmt.Errorf("failed to write keyring: %w", err)
	}
	return nil
}

// DeletePassword removes the stored password, ignoring a missing entry
func DeletePassword(user string) error {
	err := keyring.Delete(appName, user)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete keyring entry: %w", err)
	}
	return nil
}
