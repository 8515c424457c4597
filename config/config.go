package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type SMTP struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type Config struct {
	Port          string        `yaml:"port"`
	DatabaseURL   string        `yaml:"database_url"`
	SessionSecret string        `yaml:"session_secret"`
	Domain        string        `yaml:"domain"`
	MediaDir      string        `yaml:"media_dir"`
	CacheDir      string        `yaml:"cache_dir"`
	CacheMaxAge   time.Duration `yaml:"cache_max_age"`
	LogJSON       bool          `yaml:"log_json"`
	SMTP          SMTP          `yaml:"smtp"`
}

// Load reads .env (if present), then the YAML file at path (or
// $AUTOCATALOG_CONFIG), then lets environment variables override.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{}

	if path == "" {
		path = os.Getenv("AUTOCATALOG_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Port)
	str("DATABASE_URL", &c.DatabaseURL)
	str("SESSION_SECRET", &c.SessionSecret)
	str("DOMAIN", &c.Domain)
	str("MEDIA_DIR", &c.MediaDir)
	str("CACHE_DIR", &c.CacheDir)
	str("SMTP_HOST", &c.SMTP.Host)
	str("SMTP_PORT", &c.SMTP.Port)
	str("SMTP_USER", &c.SMTP.User)
	str("SMTP_PASSWORD", &c.SMTP.Password)
	str("SMTP_FROM", &c.SMTP.From)

	if c.DatabaseURL == "" {
		if v := os.Getenv("sqlite_db"); v != "" {
			c.DatabaseURL = "sqlite://" + v
		}
	}
	if v := os.Getenv("CACHE_MAX_AGE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CACHE_MAX_AGE: %w", err)
		}
		c.CacheMaxAge = d
	}
	if v := os.Getenv("LOG_JSON"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid LOG_JSON: %w", err)
		}
		c.LogJSON = b
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.Domain == "" {
		c.Domain = "http://localhost:" + c.Port
	}
	if c.MediaDir == "" {
		c.MediaDir = "./media"
	}
	if c.CacheDir == "" {
		c.CacheDir = "./cache"
	}
	if c.CacheMaxAge == 0 {
		c.CacheMaxAge = 5 * time.Minute
	}
	if c.SMTP.Port == "" {
		c.SMTP.Port = "587"
	}
}

// Validate checks the settings needed to connect to the store.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}
	return nil
}

// ValidateServe additionally requires what the HTTP server needs.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("session_secret is required")
	}
	return nil
}
