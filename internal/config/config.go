package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the resolved faultchat configuration.
type Config struct {
	Gateway GatewayConfig
	Server  ServerConfig
	Storage StorageConfig
	Log     LogConfig
	UI      UIConfig
}

// GatewayConfig locates the remote diagnosis service.
type GatewayConfig struct {
	BaseURL      string
	DiagnosePath string
	ResetPath    string
	HealthPath   string
	Engine       string
	Token        string
}

// ServerConfig controls `faultchat serve`.
type ServerConfig struct {
	Port int
	// Token, when set, is required as a bearer token on /v1 routes.
	Token string
	// AllowedOrigins is a comma-separated CORS origin list; empty allows any.
	AllowedOrigins string
}

type StorageConfig struct {
	DataDir string
	Archive bool
}

type LogConfig struct {
	Level string
}

type UIConfig struct {
	OptionsFile string
	NoColor     bool
}

// secretService is the Keychain service (or secrets file) holding tokens.
const secretService = "faultchat"

func defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			BaseURL:      "http://127.0.0.1:5000",
			DiagnosePath: "/api/diagnose",
			ResetPath:    "/api/reset",
			HealthPath:   "/api/health",
		},
		Server: ServerConfig{
			Port: 4700,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
			Archive: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, a .env file in
// the working directory, environment variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.faultchat.app) and tokens
// fall back to the Keychain. Elsewhere the backend is a JSON file at
// $XDG_CONFIG_HOME/faultchat/config.json and tokens live in a private
// secrets.json under the data dir.
//
// Environment variables (FAULTCHAT_*) override backend values on all
// platforms. Variables already set in the environment win over .env.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "[WARN] could not read .env: %v\n", err)
	}
	return loadWith(newPlatformBackend(), platformSecrets())
}

func loadWith(b ConfigBackend, sec secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	applySecrets(&cfg, sec)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	u := strings.TrimSpace(c.Gateway.BaseURL)
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return fmt.Errorf("invalid gateway.base_url %q: must start with http:// or https://", c.Gateway.BaseURL)
	}
	for key, p := range map[string]string{
		"gateway.diagnose_path": c.Gateway.DiagnosePath,
		"gateway.reset_path":    c.Gateway.ResetPath,
		"gateway.health_path":   c.Gateway.HealthPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("invalid %s %q: must start with /", key, p)
		}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q (want debug, info, warn or error)", c.Log.Level)
	}
	return nil
}

// StoreSecret saves a token key (gateway.token or server.token) in the
// platform secret store.
func StoreSecret(key, value string) error {
	return storeSecretWith(platformSecrets(), key, value)
}

func storeSecretWith(sec secretStore, key, value string) error {
	s, ok := lookupSpec(key)
	if !ok || !s.secret {
		return fmt.Errorf("%q is not a secret key (want gateway.token or server.token)", key)
	}
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is empty", key)
	}
	return sec.Set(s.account, value)
}

// SecretHint tells the user where a token key can be provided.
func SecretHint(key string) string {
	s, ok := lookupSpec(key)
	if !ok || !s.secret {
		return ""
	}
	return "environment variable " + s.env + " or " + platformSecrets().Location(s.account)
}
