package utils

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "24h".
// Bare numbers are interpreted as seconds.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if parsed, err := time.ParseDuration(s); err == nil {
		*d = Duration(parsed)
		return nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

// PostgresConfig describes the connection to the style/language table store.
// Host may also be a full postgres:// URL, in which case the other fields are
// ignored.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// Config holds the full service configuration, loaded once at startup.
type Config struct {
	Server struct {
		Host    string `yaml:"host"`
		Port    string `yaml:"port"`
		Prefork bool   `yaml:"prefork"`
	} `yaml:"server"`

	Logger struct {
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
		Level      string `yaml:"level"`
	} `yaml:"logger"`

	Cache struct {
		RedisHost       string   `yaml:"redis_host"`
		SVGCacheDB      int      `yaml:"svg_cache_db"`
		RateLimitDB     int      `yaml:"rate_limit_db"`
		SVGCacheEnabled bool     `yaml:"svg_cache_enabled"`
		SVGCacheTTL     Duration `yaml:"svg_cache_ttl"`
	} `yaml:"cache"`

	SVG struct {
		TemplatesDir      string   `yaml:"templates_dir"`
		DefaultStyleID    int      `yaml:"default_style_id"`
		DefaultLanguageID int      `yaml:"default_language_id"`
		ExpiresTTL        Duration `yaml:"expires_ttl"`
	} `yaml:"svg"`

	Themes struct {
		Postgres        PostgresConfig `yaml:"postgres"`
		RefreshInterval Duration       `yaml:"refresh_interval"`
	} `yaml:"themes"`

	RateLimiter struct {
		UserLimit         int      `yaml:"user_limit"`
		Interval          Duration `yaml:"interval"`
		EnableUserLimiter bool     `yaml:"enable_user_limiter"`
	} `yaml:"rate_limiter"`
}

var currentConfig struct {
	sync.RWMutex
	cfg Config
}

func defaultConfig() Config {
	var cfg Config
	cfg.Server.Host = ""
	cfg.Server.Port = ":8080"
	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 10
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 14
	cfg.Cache.RedisHost = "localhost:6379"
	cfg.Cache.SVGCacheEnabled = true
	cfg.Cache.SVGCacheTTL = Duration(24 * time.Hour)
	cfg.SVG.TemplatesDir = "templates"
	cfg.SVG.ExpiresTTL = Duration(365 * 24 * time.Hour)
	cfg.Themes.RefreshInterval = Duration(time.Minute)
	cfg.RateLimiter.Interval = Duration(time.Minute)
	return cfg
}

// LoadConfig reads the YAML config file (CONFIG_PATH or ./config.yaml) on top
// of built-in defaults, stores the result globally and returns it. A missing
// file is not an error; a malformed one is logged and the defaults are kept.
func LoadConfig() Config {
	cfg := defaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			Warn("Config file is malformed, using defaults", "path", path, "error", err)
			cfg = defaultConfig()
		}
	}

	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Cache.RedisHost = v
	}

	SetConfig(cfg)
	return cfg
}

// SetConfig replaces the global configuration. Intended for startup and tests.
func SetConfig(cfg Config) {
	currentConfig.Lock()
	currentConfig.cfg = cfg
	currentConfig.Unlock()
}

// GetConfig returns the configuration stored by the last LoadConfig/SetConfig.
func GetConfig() Config {
	currentConfig.RLock()
	defer currentConfig.RUnlock()
	return currentConfig.cfg
}
