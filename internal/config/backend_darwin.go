//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.faultchat.app"

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Library", "Application Support", "faultchat")
	}
	return "faultchat-data"
}

// defaultsRunner runs the `defaults` tool; tests substitute it.
type defaultsRunner func(args ...string) (string, error)

func runDefaults(args ...string) (string, error) {
	out, err := exec.Command("defaults", args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// defaultsBackend stores each key under its dotted name in the app's
// UserDefaults domain, typed with -string, -int or -bool.
type defaultsBackend struct {
	domain string
	run    defaultsRunner
}

func newPlatformBackend() ConfigBackend {
	return &defaultsBackend{domain: defaultsDomain, run: runDefaults}
}

// missing reports the exit status `defaults` uses for an absent key.
func missing(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr) && exitErr.ExitCode() == 1
}

func (b *defaultsBackend) read(key string) (string, bool, error) {
	out, err := b.run("read", b.domain, key)
	if err != nil {
		if missing(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading %s from %s: %w: %s", key, b.domain, err, out)
	}
	return out, true, nil
}

func (b *defaultsBackend) GetString(key string) (string, bool, error) {
	return b.read(key)
}

func (b *defaultsBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := b.read(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("%s: invalid integer: %w", key, err)
	}
	return i, true, nil
}

// GetBool reads both -bool values, which `defaults` prints as 1 or 0, and
// strings written by hand.
func (b *defaultsBackend) GetBool(key string) (bool, bool, error) {
	s, ok, err := b.read(key)
	if !ok || err != nil {
		return false, ok, err
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, true, fmt.Errorf("%s: invalid boolean %q", key, s)
	}
	return v, true, nil
}

func (b *defaultsBackend) write(key, typ, val string) error {
	if out, err := b.run("write", b.domain, key, typ, val); err != nil {
		return fmt.Errorf("writing %s to %s: %w: %s", key, b.domain, err, out)
	}
	return nil
}

func (b *defaultsBackend) SetString(key, val string) error {
	return b.write(key, "-string", val)
}

func (b *defaultsBackend) SetInt(key string, val int) error {
	return b.write(key, "-int", strconv.Itoa(val))
}

func (b *defaultsBackend) SetBool(key string, val bool) error {
	return b.write(key, "-bool", strconv.FormatBool(val))
}

// Delete succeeds when the key is already absent.
func (b *defaultsBackend) Delete(key string) error {
	out, err := b.run("delete", b.domain, key)
	if err != nil && !missing(err) {
		return fmt.Errorf("deleting %s from %s: %w: %s", key, b.domain, err, out)
	}
	return nil
}
