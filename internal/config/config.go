package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Backend kinds accepted in [backend].kind.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

var ErrUnknownBackend = errors.New("config: unknown backend kind")

// Config is the full daemon configuration. Zero values are filled by Default.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Protocol ProtocolConfig `toml:"protocol"`
	Backend  BackendConfig  `toml:"backend"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

type LogConfig struct {
	Path  string `toml:"path"`
	Debug bool   `toml:"debug"`
}

type ProtocolConfig struct {
	ExactPayload bool `toml:"exact_payload"`
}

type BackendConfig struct {
	Kind        string `toml:"kind"`
	ReadOnly    bool   `toml:"read_only"`
	UsersFile   string `toml:"users_file"`
	RedisURL    string `toml:"redis_url"`
	RedisPrefix string `toml:"redis_prefix"`
	SQLitePath  string `toml:"sqlite_path"`
}

// MetricsConfig enables the HTTP metrics listener when Addr is set.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

func Default() Config {
	return Config{
		Backend: BackendConfig{Kind: BackendMemory},
	}
}

// Load reads path over Default. Keys absent from the file keep their
// defaults; keys the schema does not know are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("config parse failed (%s): unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// Normalize trims string fields and lowercases the backend kind.
func (c *Config) Normalize() {
	c.Log.Path = strings.TrimSpace(c.Log.Path)
	c.Metrics.Addr = strings.TrimSpace(c.Metrics.Addr)
	b := &c.Backend
	b.Kind = strings.ToLower(strings.TrimSpace(b.Kind))
	if b.Kind == "" {
		b.Kind = BackendMemory
	}
	b.UsersFile = strings.TrimSpace(b.UsersFile)
	b.RedisURL = strings.TrimSpace(b.RedisURL)
	b.RedisPrefix = strings.TrimSpace(b.RedisPrefix)
	b.SQLitePath = strings.TrimSpace(b.SQLitePath)
}

func (c Config) Validate() error {
	return c.Backend.Validate()
}

func (b BackendConfig) Validate() error {
	switch b.Kind {
	case BackendMemory:
		return nil
	case BackendRedis:
		if b.RedisURL == "" {
			return fmt.Errorf("backend redis requires redis_url")
		}
		return nil
	case BackendSQLite:
		if b.SQLitePath == "" {
			return fmt.Errorf("backend sqlite requires sqlite_path")
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, b.Kind)
	}
}
