//go:build !darwin

package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "faultchat-data"
		}
	}
	return filepath.Join(dir, "faultchat")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "faultchat", "config.json")
}

// fileBackend keeps config.json grouped by section, mirroring the dotted
// key names:
//
//	{"gateway": {"base_url": "http://10.0.0.5:5000"}, "server": {"port": 4700}}
//
// Flat dotted keys ({"server.port": 4700}) are read too and written back
// grouped on the next save. Keys missing from the key table are reported and
// dropped when the file is rewritten.
type fileBackend struct {
	path string
	// data holds values by dotted key.
	data map[string]any
}

func newPlatformBackend() ConfigBackend {
	b := &fileBackend{path: configFilePath(), data: make(map[string]any)}
	b.load()
	return b
}

func (b *fileBackend) load() {
	raw, err := os.ReadFile(b.path)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "[WARN] could not read config file %s: %v. Using default values.\n", b.path, err)
		}
		return
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] could not parse config file %s: %v. Using default values.\n", b.path, err)
		return
	}

	for k, v := range doc {
		if section, ok := v.(map[string]any); ok {
			for name, sv := range section {
				b.put(k+"."+name, sv)
			}
			continue
		}
		b.put(k, v)
	}
}

func (b *fileBackend) put(key string, v any) {
	if s, ok := lookupSpec(key); !ok || s.secret {
		fmt.Fprintf(os.Stderr, "[WARN] ignoring unknown key %q in %s\n", key, b.path)
		return
	}
	b.data[key] = v
}

func (b *fileBackend) save() error {
	doc := make(map[string]map[string]any)
	for _, key := range slices.Sorted(maps.Keys(b.data)) {
		section, name, _ := strings.Cut(key, ".")
		if doc[section] == nil {
			doc[section] = make(map[string]any)
		}
		doc[section][name] = b.data[key]
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return writePrivate(b.path, out)
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	if s, ok := v.(string); ok {
		return s, true, nil
	}
	return fmt.Sprintf("%v", v), true, nil
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	switch val := v.(type) {
	case float64:
		if val < math.MinInt || val > math.MaxInt || val != math.Trunc(val) {
			return 0, true, fmt.Errorf("%s: %v is not a whole number", key, val)
		}
		return int(val), true, nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, true, fmt.Errorf("%s: invalid integer: %w", key, err)
		}
		return i, true, nil
	}
	return 0, true, fmt.Errorf("%s: want a number, got %T", key, v)
}

// GetBool accepts JSON booleans and the strings strconv.ParseBool knows.
func (b *fileBackend) GetBool(key string) (bool, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return false, false, nil
	}
	switch val := v.(type) {
	case bool:
		return val, true, nil
	case string:
		bv, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return false, true, fmt.Errorf("%s: invalid boolean %q", key, val)
		}
		return bv, true, nil
	}
	return false, true, fmt.Errorf("%s: want true or false, got %T", key, v)
}

func (b *fileBackend) SetString(key, val string) error {
	b.data[key] = val
	return b.save()
}

func (b *fileBackend) SetInt(key string, val int) error {
	b.data[key] = val
	return b.save()
}

func (b *fileBackend) SetBool(key string, val bool) error {
	b.data[key] = val
	return b.save()
}

func (b *fileBackend) Delete(key string) error {
	delete(b.data, key)
	return b.save()
}
