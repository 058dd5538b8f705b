package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const devJWTSecret = "dev-secret-change-me"

type (
	Config struct {
		Server   ServerConfig   `yaml:"server"`
		Database DatabaseConfig `yaml:"database"`
		Redis    RedisConfig    `yaml:"redis"`
		Auth     AuthConfig     `yaml:"auth"`
		Logger   LoggerConfig   `yaml:"logger"`
		Metrics  MetricsConfig  `yaml:"metrics"`
		Loans    LoansConfig    `yaml:"loans"`
	}

	ServerConfig struct {
		Port        string   `yaml:"port"`
		Mode        string   `yaml:"mode"` // debug, release, test
		CORSOrigins []string `yaml:"cors_origins"`
	}

	DatabaseConfig struct {
		Type     string `yaml:"type"` // postgres, sqlite
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"ssl_mode"`
		Path     string `yaml:"path"` // sqlite file, ":memory:" allowed
		Seed     bool   `yaml:"seed"`
		LogSQL   bool   `yaml:"log_sql"` // every statement at debug level
	}

	RedisConfig struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	}

	AuthConfig struct {
		JWTSecret  string        `yaml:"jwt_secret"`
		Issuer     string        `yaml:"issuer"`
		AccessTTL  time.Duration `yaml:"access_ttl"`
		RefreshTTL time.Duration `yaml:"refresh_ttl"`
	}

	LoggerConfig struct {
		Level      string `yaml:"level"`     // debug, info, warn, error
		Format     string `yaml:"format"`    // json, console
		Output     string `yaml:"output"`    // stdout, file
		FilePath   string `yaml:"file_path"` // used when output is file
		MaxSize    int    `yaml:"max_size"`  // MB
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"` // days
		Compress   bool   `yaml:"compress"`
	}

	MetricsConfig struct {
		Enabled   bool      `yaml:"enabled"`
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}

	LoansConfig struct {
		// SweepInterval drives the periodic overdue sweep; 0 disables it.
		SweepInterval time.Duration `yaml:"sweep_interval"`
		LockTTL       time.Duration `yaml:"lock_ttl"`
	}
)

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

// Default returns the configuration used when no file or env overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Mode:        "debug",
			CORSOrigins: []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		},
		Database: DatabaseConfig{
			Type:     "postgres",
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			Name:     "postgres",
			SSLMode:  "disable",
			Path:     "assetlend.db",
			Seed:     true,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "assetlend:",
		},
		Auth: AuthConfig{
			Issuer:     "assetlend",
			AccessTTL:  30 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "assetlend",
		},
		Loans: LoansConfig{
			SweepInterval: 10 * time.Minute,
			LockTTL:       5 * time.Second,
		},
	}
}

// Load reads the optional YAML file at path, then configs/.env, then the
// process environment. Later sources win.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	// Missing .env is fine outside local development.
	_ = godotenv.Load("configs/.env")

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Database.Type, "DB_TYPE")
	setString(&cfg.Database.Host, "DB_HOST")
	setString(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.Name, "DB_NAME")
	setString(&cfg.Database.SSLMode, "DB_SSLMODE")
	setString(&cfg.Database.Path, "DB_PATH")
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.Mode, "GIN_MODE")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Logger.Level, "LOG_LEVEL")

	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_ENABLED: %w", err)
		}
		cfg.Redis.Enabled = b
	}
	if v := os.Getenv("OVERDUE_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid OVERDUE_SWEEP_INTERVAL: %w", err)
		}
		cfg.Loans.SweepInterval = d
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate fills the JWT secret in development and rejects unusable settings.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		if c.Server.Mode == "release" {
			return errors.New("JWT_SECRET is required in release mode")
		}
		c.Auth.JWTSecret = devJWTSecret
	}
	switch c.Database.Type {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}
	if c.Loans.SweepInterval < 0 {
		return errors.New("loans.sweep_interval must not be negative")
	}
	if c.Loans.LockTTL <= 0 {
		c.Loans.LockTTL = 5 * time.Second
	}
	return nil
}
