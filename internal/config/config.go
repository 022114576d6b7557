package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config defines configuration shared by the reference server and tablectl.
type Config struct {
	Remote RemoteConfig `yaml:"remote"`
	DB     DBConfig     `yaml:"db"`
	Local  LocalConfig  `yaml:"local"`
	Server ServerConfig `yaml:"server"`
	Redis  RedisConfig  `yaml:"redis"`
	Log    LogConfig    `yaml:"log"`
}

// RemoteConfig locates the remote service tier. An empty BaseURL disables it.
type RemoteConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Token         string        `yaml:"token"`
	Timeout       time.Duration `yaml:"timeout"`
	HealthTimeout time.Duration `yaml:"health_timeout"`
}

// DBConfig locates the relational tier. An empty DSN disables it.
type DBConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LocalConfig selects the local durable store. An empty Path uses the
// backend's default location under the user config directory.
type LocalConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type ServerConfig struct {
	Host      string  `yaml:"host"`
	Port      int     `yaml:"port"`
	Token     string  `yaml:"token"`
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Remote: RemoteConfig{
			Timeout:       5 * time.Second,
			HealthTimeout: 3 * time.Second,
		},
		DB: DBConfig{
			Driver: "sqlite",
		},
		Local: LocalConfig{
			Backend: "bolt",
		},
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      8080,
			RateLimit: 50,
			RateBurst: 100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, an optional .env file, an
// optional YAML file named by TABLETIME_CONFIG_PATH and TABLETIME_*
// environment variables, in that order.
func Load() (Config, error) {
	envFile := os.Getenv("TABLETIME_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("TABLETIME_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString("TABLETIME_REMOTE_URL", &cfg.Remote.BaseURL)
	setString("TABLETIME_REMOTE_TOKEN", &cfg.Remote.Token)
	setString("TABLETIME_DB_DRIVER", &cfg.DB.Driver)
	setString("TABLETIME_DB_DSN", &cfg.DB.DSN)
	setString("TABLETIME_LOCAL_BACKEND", &cfg.Local.Backend)
	setString("TABLETIME_LOCAL_PATH", &cfg.Local.Path)
	setString("TABLETIME_SERVER_HOST", &cfg.Server.Host)
	setString("TABLETIME_SERVER_TOKEN", &cfg.Server.Token)
	setString("TABLETIME_REDIS_ADDR", &cfg.Redis.Addr)
	setString("TABLETIME_REDIS_PASSWORD", &cfg.Redis.Password)
	setString("TABLETIME_LOG_LEVEL", &cfg.Log.Level)

	if err := setDuration("TABLETIME_REMOTE_TIMEOUT", &cfg.Remote.Timeout); err != nil {
		return err
	}
	if err := setDuration("TABLETIME_REMOTE_HEALTH_TIMEOUT", &cfg.Remote.HealthTimeout); err != nil {
		return err
	}
	if err := setInt("TABLETIME_SERVER_PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if err := setInt("TABLETIME_SERVER_RATE_BURST", &cfg.Server.RateBurst); err != nil {
		return err
	}
	if err := setInt("TABLETIME_REDIS_DB", &cfg.Redis.DB); err != nil {
		return err
	}
	if v := os.Getenv("TABLETIME_SERVER_RATE_LIMIT"); v != "" {
		limit, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid TABLETIME_SERVER_RATE_LIMIT: %w", err)
		}
		cfg.Server.RateLimit = limit
	}
	return nil
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

// SlogLevel maps the configured level name to a slog level. Unknown names
// fall back to info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
