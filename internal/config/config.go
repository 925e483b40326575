package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultConfigRelPath = ".ssidmap/config.yaml"

type LookupConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIName        string        `yaml:"api_name"`
	APIToken       string        `yaml:"api_token"`
	Timeout        time.Duration `yaml:"timeout"`
	Delay          time.Duration `yaml:"delay"`
	ResultsPerPage int           `yaml:"results_per_page"`
}

type CacheConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type DataConfig struct {
	Dir     string `yaml:"dir"`
	MapsDir string `yaml:"maps_dir"`
	LogsDir string `yaml:"logs_dir"`
}

type OutputConfig struct {
	CSV       string `yaml:"csv"`
	Map       string `yaml:"map"`
	Anonymise bool   `yaml:"anonymise"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type Config struct {
	Lookup LookupConfig `yaml:"lookup"`
	Cache  CacheConfig  `yaml:"cache"`
	Data   DataConfig   `yaml:"data"`
	Output OutputConfig `yaml:"output"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// DefaultPath returns ~/.ssidmap/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, defaultConfigRelPath), nil
}

// DefaultDelay is the pause between live lookups when none is configured.
const DefaultDelay = 2500 * time.Millisecond

// Load loads YAML config, then applies env overrides. The delay default is
// seeded before parsing so an explicit "delay: 0s" disables the pause.
func Load(configPath string) (*Config, error) {
	cfg := &Config{Lookup: LookupConfig{Delay: DefaultDelay}}

	if configPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.fillDefaults()
	return cfg, nil
}

// SetDefaults fills unset fields. A zero delay counts as unset here; use
// Load to configure no delay.
func (c *Config) SetDefaults() {
	if c.Lookup.Delay == 0 {
		c.Lookup.Delay = DefaultDelay
	}
	c.fillDefaults()
}

func (c *Config) fillDefaults() {
	if c.Lookup.BaseURL == "" {
		c.Lookup.BaseURL = "https://api.wigle.net/api/v2/network/search"
	}
	if c.Lookup.Timeout == 0 {
		c.Lookup.Timeout = 10 * time.Second
	}
	if c.Lookup.ResultsPerPage == 0 {
		c.Lookup.ResultsPerPage = 1
	}
	if c.Data.Dir == "" {
		c.Data.Dir = "data"
	}
	if c.Data.MapsDir == "" {
		c.Data.MapsDir = filepath.Join(c.Data.Dir, "maps")
	}
	if c.Data.LogsDir == "" {
		c.Data.LogsDir = filepath.Join(c.Data.Dir, "logs")
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "json"
	}
	if c.Cache.Path == "" {
		if c.Cache.Backend == "sqlite" {
			c.Cache.Path = filepath.Join(c.Data.Dir, "wigle_cache.db")
		} else {
			c.Cache.Path = filepath.Join(c.Data.Dir, "wigle_cache.json")
		}
	}
	if c.Output.CSV == "" {
		c.Output.CSV = filepath.Join(c.Data.Dir, "mapped_results.csv")
	}
	if c.Output.Map == "" {
		c.Output.Map = filepath.Join(c.Data.MapsDir, "WiFiGeoMap_all_locations.html")
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 10
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Data.Dir) == "" {
		return errors.New("data.dir cannot be empty")
	}
	if c.Lookup.Delay < 0 {
		return errors.New("lookup.delay cannot be negative")
	}
	switch c.Cache.Backend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("cache.backend %q not supported", c.Cache.Backend)
	}
	if err := ensureWritableDir(c.Data.Dir); err != nil {
		return fmt.Errorf("data.dir not writable: %w", err)
	}
	return nil
}

// Credentials returns the lookup credentials. ok is false unless both the
// name and token are set; a partial pair is logged and treated as absent.
func (c *Config) Credentials(logger *slog.Logger) (name, token string, ok bool) {
	name = strings.TrimSpace(c.Lookup.APIName)
	token = strings.TrimSpace(c.Lookup.APIToken)
	if name != "" && token != "" {
		return name, token, true
	}
	if (name == "") != (token == "") {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("incomplete lookup credentials, running in mock mode")
	}
	return "", "", false
}

func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func applyEnvOverrides(c *Config) {
	setString(&c.Lookup.APIName, "WIGLE_API_NAME")
	setString(&c.Lookup.APIToken, "WIGLE_API_TOKEN")
	setString(&c.Lookup.APIName, "SSIDMAP_LOOKUP_API_NAME")
	setString(&c.Lookup.APIToken, "SSIDMAP_LOOKUP_API_TOKEN")
	setString(&c.Lookup.BaseURL, "SSIDMAP_LOOKUP_BASE_URL")
	setDuration(&c.Lookup.Delay, "SSIDMAP_LOOKUP_DELAY")
	setDuration(&c.Lookup.Timeout, "SSIDMAP_LOOKUP_TIMEOUT")
	setString(&c.Cache.Backend, "SSIDMAP_CACHE_BACKEND")
	setString(&c.Cache.Path, "SSIDMAP_CACHE_PATH")
	setString(&c.Data.Dir, "SSIDMAP_DATA_DIR")
	setBool(&c.Output.Anonymise, "SSIDMAP_OUTPUT_ANONYMISE")
	setString(&c.Server.Host, "SSIDMAP_SERVER_HOST")
	setInt(&c.Server.Port, "SSIDMAP_SERVER_PORT")
	setString(&c.Log.Level, "SSIDMAP_LOG_LEVEL")
	setString(&c.Log.Format, "SSIDMAP_LOG_FORMAT")
	setString(&c.Log.File, "SSIDMAP_LOG_FILE")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
