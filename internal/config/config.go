package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	DBHost     string `yaml:"db_host"`
	DBPort     int    `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`
	DBSSLMode  string `yaml:"db_sslmode"`

	Store       string   `yaml:"store"`
	HTTPAddr    string   `yaml:"http_addr"`
	JWTSecret   string   `yaml:"jwt_secret"`
	CORSOrigins []string `yaml:"cors_origins"`

	DecayThresholdDays int           `yaml:"decay_threshold_days"`
	DecayInterval      time.Duration `yaml:"decay_interval"`
}

func Default() *Config {
	return &Config{
		DBHost:             "localhost",
		DBPort:             5432,
		DBSSLMode:          "disable",
		Store:              StorePostgres,
		HTTPAddr:           ":8080",
		CORSOrigins:        []string{"*"},
		DecayThresholdDays: 14,
		DecayInterval:      time.Hour,
	}
}

// Load reads the configuration from the environment; unset variables keep defaults.
func Load() *Config {
	cfg := Default()

	// DB_PORT falls back to 5432 when missing or malformed
	if port, err := strconv.Atoi(os.Getenv("DB_PORT")); err == nil {
		cfg.DBPort = port
	}
	setString(&cfg.DBHost, "DB_HOST")
	setString(&cfg.DBUser, "DB_USER")
	setString(&cfg.DBPassword, "DB_PASSWORD")
	setString(&cfg.DBName, "DB_NAME")
	setString(&cfg.DBSSLMode, "DB_SSLMODE")
	setString(&cfg.Store, "STORE")
	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setString(&cfg.JWTSecret, "JWT_SECRET")

	if v := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	if days, err := strconv.Atoi(os.Getenv("DECAY_THRESHOLD_DAYS")); err == nil && days >= 0 {
		cfg.DecayThresholdDays = days
	}
	if d, err := time.ParseDuration(os.Getenv("DECAY_INTERVAL")); err == nil {
		cfg.DecayInterval = d
	}

	return cfg
}

// LoadFile reads a YAML config; keys it does not set keep defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file (%s): %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StorePostgres, StoreMemory)
	}
	if c.DecayThresholdDays < 0 || c.DecayThresholdDays > 36500 {
		return fmt.Errorf("decay_threshold_days must be between 0 and 36500")
	}
	return nil
}

func (c *Config) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
