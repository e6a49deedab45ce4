package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	// account names a secret in the platform secret store.
	account string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "gateway.base_url", typ: kString, env: "FAULTCHAT_GATEWAY_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Gateway.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Gateway.BaseURL },
	},
	{
		key: "gateway.diagnose_path", typ: kString, env: "FAULTCHAT_GATEWAY_DIAGNOSE_PATH",
		apply:   func(cfg *Config, v any) { cfg.Gateway.DiagnosePath = v.(string) },
		extract: func(cfg Config) any { return cfg.Gateway.DiagnosePath },
	},
	{
		key: "gateway.reset_path", typ: kString, env: "FAULTCHAT_GATEWAY_RESET_PATH",
		apply:   func(cfg *Config, v any) { cfg.Gateway.ResetPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Gateway.ResetPath },
	},
	{
		key: "gateway.health_path", typ: kString, env: "FAULTCHAT_GATEWAY_HEALTH_PATH",
		apply:   func(cfg *Config, v any) { cfg.Gateway.HealthPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Gateway.HealthPath },
	},
	{
		key: "gateway.engine", typ: kString, env: "FAULTCHAT_GATEWAY_ENGINE",
		apply:   func(cfg *Config, v any) { cfg.Gateway.Engine = v.(string) },
		extract: func(cfg Config) any { return cfg.Gateway.Engine },
	},
	{
		key: "gateway.token", typ: kString, env: "FAULTCHAT_GATEWAY_TOKEN",
		secret: true, account: "gateway_token",
		apply:   func(cfg *Config, v any) { cfg.Gateway.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Gateway.Token },
	},
	{
		key: "server.port", typ: kInt, env: "FAULTCHAT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "FAULTCHAT_SERVER_TOKEN",
		secret: true, account: "server_token",
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "server.allowed_origins", typ: kString, env: "FAULTCHAT_SERVER_ALLOWED_ORIGINS",
		apply:   func(cfg *Config, v any) { cfg.Server.AllowedOrigins = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.AllowedOrigins },
	},
	{
		key: "storage.data_dir", typ: kString, env: "FAULTCHAT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.archive", typ: kBool, env: "FAULTCHAT_STORAGE_ARCHIVE",
		apply:   func(cfg *Config, v any) { cfg.Storage.Archive = v.(bool) },
		extract: func(cfg Config) any { return cfg.Storage.Archive },
	},
	{
		key: "log.level", typ: kString, env: "FAULTCHAT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "ui.options_file", typ: kString, env: "FAULTCHAT_UI_OPTIONS_FILE",
		apply:   func(cfg *Config, v any) { cfg.UI.OptionsFile = v.(string) },
		extract: func(cfg Config) any { return cfg.UI.OptionsFile },
	},
	{
		key: "ui.no_color", typ: kBool, env: "FAULTCHAT_UI_NO_COLOR",
		apply:   func(cfg *Config, v any) { cfg.UI.NoColor = v.(bool) },
		extract: func(cfg Config) any { return cfg.UI.NoColor },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetBool(s.key)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] %v. Using default value.\n", err)
				continue
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

// applySecrets fills secrets the environment left empty from the secret
// store. A missing entry is not an error: tokens are optional.
func applySecrets(cfg *Config, sec secretStore) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg) != "" {
			continue
		}
		if v, err := sec.Get(s.account); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
