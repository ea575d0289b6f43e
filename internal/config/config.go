package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	DefaultConfigDir  = ".fortress"
	DefaultConfigFile = "config.yaml"
	DefaultPolicyFile = "policy.yaml"
	DefaultLogFile    = "events.jsonl"
	DefaultPacksDir   = "packs"

	EnvPrefix = "FORTRESS_"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Policy   PolicyConfig   `koanf:"policy"`
	Log      LogConfig      `koanf:"log"`
	Audit    AuditConfig    `koanf:"audit"`
	Scan     ScanConfig     `koanf:"scan"`
	Profiles ProfilesConfig `koanf:"profiles"`
	Redis    RedisConfig    `koanf:"redis"`

	// ConfigDir is the resolved base directory, not read from any source.
	ConfigDir string `koanf:"-"`
}

type PolicyConfig struct {
	Path     string `koanf:"path"`
	PacksDir string `koanf:"packsdir"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type AuditConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

type ScanConfig struct {
	MaxInputBytes int `koanf:"maxinputbytes"`
}

type ProfilesConfig struct {
	Backend  string        `koanf:"backend"`
	Capacity int           `koanf:"capacity"`
	TTL      time.Duration `koanf:"ttl"`
}

type RedisConfig struct {
	Addr       string `koanf:"addr"`
	Password   string `koanf:"password"`
	DB         int    `koanf:"db"`
	MaxRetries int    `koanf:"maxretries"`
}

// DefaultPaths returns the config files Load reads when none are given.
func DefaultPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(home, DefaultConfigDir, DefaultConfigFile)}
}

// Load layers defaults, the given YAML files (missing files are skipped)
// and FORTRESS_* environment variables, in that order.
func Load(configPaths ...string) (*Config, error) {
	configDir := DefaultConfigDir
	if home, err := os.UserHomeDir(); err == nil {
		configDir = filepath.Join(home, DefaultConfigDir)
	}

	k := koanf.New(".")

	_ = k.Load(confmap.Provider(map[string]any{
		"policy.path":        filepath.Join(configDir, DefaultPolicyFile),
		"policy.packsdir":    filepath.Join(configDir, DefaultPacksDir),
		"log.level":          "info",
		"log.format":         "json",
		"audit.enabled":      true,
		"audit.path":         filepath.Join(configDir, DefaultLogFile),
		"scan.maxinputbytes": 64 * 1024,
		"profiles.backend":   BackendMemory,
		"profiles.capacity":  10000,
		"profiles.ttl":       "24h",
		"redis.addr":         "localhost:6379",
		"redis.db":           0,
		"redis.maxretries":   3,
	}, "."), nil)

	// YAML files are optional; a missing file is skipped.
	for _, path := range configPaths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	// FORTRESS_SCAN_MAXINPUTBYTES -> scan.maxinputbytes
	_ = k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, EnvPrefix)),
			"_", ".",
		)
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.ConfigDir = configDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Profiles.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("profiles.backend must be %q or %q, got %q", BackendMemory, BackendRedis, c.Profiles.Backend)
	}
	if c.Scan.MaxInputBytes < 0 {
		return fmt.Errorf("scan.maxinputbytes must not be negative, got %d", c.Scan.MaxInputBytes)
	}
	if c.Profiles.Capacity < 0 {
		return fmt.Errorf("profiles.capacity must not be negative, got %d", c.Profiles.Capacity)
	}
	return nil
}

// EnsureDir creates the directory holding path with owner-only permissions.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0700)
	}
	return nil
}
