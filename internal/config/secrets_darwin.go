//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// keychainSecrets stores tokens as generic passwords in the login Keychain.
type keychainSecrets struct {
	service string
}

func platformSecrets() secretStore {
	return keychainSecrets{service: secretService}
}

var errSecretNotFound = errors.New("secret not found")

func (k keychainSecrets) Get(account string) (string, error) {
	out, err := exec.Command("security", "find-generic-password", "-s", k.service, "-a", account, "-w").Output()
	if err != nil {
		// security exits 44 when the item does not exist.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 44 {
			return "", fmt.Errorf("%w: %s", errSecretNotFound, account)
		}
		return "", fmt.Errorf("reading keychain item %s: %w", account, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (k keychainSecrets) Set(account, value string) error {
	out, err := exec.Command("security", "add-generic-password", "-U", "-s", k.service, "-a", account, "-w", value).CombinedOutput()
	if err != nil {
		return fmt.Errorf("storing keychain item %s: %w: %s", account, err, out)
	}
	return nil
}

func (k keychainSecrets) Location(account string) string {
	return fmt.Sprintf("macOS Keychain (service: %s, account: %s)", k.service, account)
}
