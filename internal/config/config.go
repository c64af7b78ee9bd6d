package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config is the root configuration for pointage, stored in
// ~/.pointage/config.json. The file supports single-line // comments for
// documentation purposes.
type Config struct {
	// UserID identifies the worker this device punches for.
	UserID string `json:"user_id"`
	// DefaultWorksite is used when `pointage start` is run without one.
	DefaultWorksite string         `json:"default_worksite"`
	Remote          RemoteConfig   `json:"remote"`
	Storage         StorageConfig  `json:"storage"`
	Location        LocationConfig `json:"location"`
	Server          ServerConfig   `json:"server"`
}

// RemoteConfig holds the hosted backend settings.
type RemoteConfig struct {
	// URL is the backend base URL, e.g. "https://workforce.example.com".
	URL string `json:"url"`
	// APIKey is the project API key sent with every request.
	APIKey string `json:"api_key"`
	// ProbeIntervalSeconds is how often reachability is probed in serve mode.
	ProbeIntervalSeconds int `json:"probe_interval_seconds"`
	// ForceOffline pins the connectivity monitor offline (depots with no coverage).
	ForceOffline bool `json:"force_offline"`
}

// StorageConfig selects the local durable queue backend.
type StorageConfig struct {
	// Backend is "file" (single JSON list) or "sqlite".
	Backend string `json:"backend"`
	// Path overrides the default queue location.
	Path string `json:"path"`
}

// LocationConfig selects the positioning source.
type LocationConfig struct {
	// Mode is "http" (positioning endpoint) or "static" (fixed terminal).
	Mode string `json:"mode"`
	// Endpoint is the positioning URL for http mode.
	Endpoint string `json:"endpoint"`
	// Latitude/Longitude are the terminal's coordinates for static mode.
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	// GeocodeURL is a Nominatim-compatible base URL for best-effort
	// reverse geocoding. Empty disables address resolution.
	GeocodeURL string `json:"geocode_url"`
}

// ServerConfig holds the serve-mode listener settings.
type ServerConfig struct {
	// Addr is the localhost listen address for the UI-facing API.
	Addr string `json:"addr"`
}

const (
	// DefaultProbeInterval is the reachability probe cadence in seconds.
	DefaultProbeInterval = 30
	// DefaultServerAddr binds the UI API to the loopback interface only.
	DefaultServerAddr = "127.0.0.1:7420"
	// DefaultStorageBackend keeps small installs on the JSON file queue.
	DefaultStorageBackend = "file"
	// DefaultLocationMode expects a local positioning endpoint.
	DefaultLocationMode = "http"
	// DefaultLocationEndpoint is the conventional port of the device's
	// positioning bridge.
	DefaultLocationEndpoint = "http://127.0.0.1:7421/fix"
)

// defaultConfig returns a Config pre-filled with sensible defaults.
func defaultConfig() Config {
	return Config{
		Remote: RemoteConfig{
			ProbeIntervalSeconds: DefaultProbeInterval,
		},
		Storage: StorageConfig{
			Backend: DefaultStorageBackend,
		},
		Location: LocationConfig{
			Mode:     DefaultLocationMode,
			Endpoint: DefaultLocationEndpoint,
		},
		Server: ServerConfig{
			Addr: DefaultServerAddr,
		},
	}
}

// configTemplate is the annotated config written on first run.
// Lines whose trimmed content starts with // are stripped before JSON
// parsing, allowing human-readable documentation inside the file.
const configTemplate = `// pointage configuration – ~/.pointage/config.json
//
// Edit this file to customise pointage behaviour. Settings left empty fall
// back to built-in defaults or environment variables (POINTAGE_REMOTE_URL,
// POINTAGE_API_KEY, POINTAGE_USER_ID).
{
  // Worker this device punches for.
  "user_id": "",

  // Worksite used when none is given on the command line.
  "default_worksite": "",

  // ── Hosted workforce backend ─────────────────────────────────────────────
  "remote": {
    // Base URL of the backend, e.g. "https://workforce.example.com".
    "url": "",
    // Project API key.
    "api_key": "",
    // Reachability probe cadence in serve mode (seconds).
    "probe_interval_seconds": 30,
    // Pin the device offline (depots with no coverage).
    "force_offline": false
  },

  // ── Local durable queue ──────────────────────────────────────────────────
  "storage": {
    // "file" keeps one JSON list in ~/.pointage/queue.json,
    // "sqlite" keeps a database in ~/.pointage/queue.db.
    "backend": "file",
    // Override the queue location; empty uses the default above.
    "path": ""
  },

  // ── Positioning ──────────────────────────────────────────────────────────
  "location": {
    // "http" asks the endpoint below for a fix, "static" uses the fixed
    // coordinates (wall-mounted terminals).
    "mode": "http",
    "endpoint": "http://127.0.0.1:7421/fix",
    "latitude": 0,
    "longitude": 0,
    // Nominatim-compatible base URL for best-effort address resolution.
    // Empty disables it.
    "geocode_url": ""
  },

  // ── UI-facing API (serve mode) ───────────────────────────────────────────
  "server": {
    "addr": "127.0.0.1:7420"
  }
}
`

// configFilePath returns the path to ~/.pointage/config.json.
func configFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".pointage", "config.json"), nil
}

// stripLineComments removes lines whose leading non-whitespace content
// starts with //. Only full-line comments are handled.
func stripLineComments(data []byte) []byte {
	var out []byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimLeft(line, " \t"), []byte("//")) {
			continue
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out
}

// Load reads ~/.pointage/config.json, creating it with annotated defaults
// on first run, then applies environment overrides.
func Load() (Config, error) {
	path, err := configFilePath()
	if err != nil {
		return defaultConfig(), err
	}

	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
	case err != nil:
		return defaultConfig(), fmt.Errorf("reading config file %s: %w", path, err)
	default:
		cleaned := stripLineComments(data)
		if err := json.Unmarshal(cleaned, &cfg); err != nil {
			return defaultConfig(), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
		}
	}

	applyEnv(&cfg)
	backfill(&cfg)
	return cfg, nil
}

// applyEnv lets deployment settings override the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("POINTAGE_REMOTE_URL"); v != "" {
		cfg.Remote.URL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("POINTAGE_API_KEY"); v != "" {
		cfg.Remote.APIKey = v
	}
	if v := os.Getenv("POINTAGE_USER_ID"); v != "" {
		cfg.UserID = v
	}
}

// backfill fills zero-value fields with built-in defaults so callers always
// get a usable Config even if the user only partially fills in the file.
func backfill(cfg *Config) {
	if cfg.Remote.ProbeIntervalSeconds <= 0 {
		cfg.Remote.ProbeIntervalSeconds = DefaultProbeInterval
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Location.Mode == "" {
		cfg.Location.Mode = DefaultLocationMode
	}
	if cfg.Location.Mode == "http" && cfg.Location.Endpoint == "" {
		cfg.Location.Endpoint = DefaultLocationEndpoint
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	cfg.Remote.URL = strings.TrimRight(cfg.Remote.URL, "/")
}

// writeDefault creates the config directory and writes the annotated
// default config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
