//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// fileSecrets keeps tokens in a JSON file only the owner may read:
//
//	{"faultchat": {"gateway_token": "...", "server_token": "..."}}
type fileSecrets struct {
	path string
}

func platformSecrets() secretStore {
	return fileSecrets{path: secretsFilePath()}
}

func secretsFilePath() string {
	return filepath.Join(defaultDataDir(), "secrets.json")
}

var errSecretNotFound = errors.New("secret not found")

func (f fileSecrets) read() (map[string]map[string]string, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return nil, err
	}
	// Group or world readable token files are refused, as ssh does for keys.
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o077 != 0 {
		return nil, fmt.Errorf("%s is accessible by other users (mode %#o); run chmod 600 on it", f.path, info.Mode().Perm())
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	var secrets map[string]map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f.path, err)
	}
	return secrets, nil
}

func (f fileSecrets) Get(account string) (string, error) {
	secrets, err := f.read()
	if err != nil {
		return "", err
	}
	v, ok := secrets[secretService][account]
	if !ok {
		return "", fmt.Errorf("%w: %s", errSecretNotFound, account)
	}
	return v, nil
}

// Set replaces the file atomically so a crash never leaves a torn token.
func (f fileSecrets) Set(account, value string) error {
	secrets, err := f.read()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if secrets == nil {
		secrets = make(map[string]map[string]string)
	}
	if secrets[secretService] == nil {
		secrets[secretService] = make(map[string]string)
	}
	secrets[secretService][account] = value

	out, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	return writePrivate(f.path, out)
}

func (f fileSecrets) Location(account string) string {
	return fmt.Sprintf("%s ({%q: {%q: \"...\"}})", f.path, secretService, account)
}

// writePrivate writes data to path with mode 0600 via a temp file and rename.
func writePrivate(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
