package godbf

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config controls how a table is opened and mapped.
type Config struct {
	// Encoding overrides the codepage mark of the header when set.
	Encoding    string `mapstructure:"encoding"`
	Workers     int    `mapstructure:"workers"`
	TrimSpace   bool   `mapstructure:"trim_space"`
	SkipDeleted bool   `mapstructure:"skip_deleted"`
	// Century is added to the two digit header year.
	Century  int    `mapstructure:"century"`
	LogLevel string `mapstructure:"log_level"`

	Logger *slog.Logger `mapstructure:"-"`
}

func DefaultConfig() Config {
	return Config{
		Workers:     4,
		TrimSpace:   true,
		SkipDeleted: false,
		Century:     1900,
		LogLevel:    "info",
	}
}

// LoadConfig reads a yaml file (optional when path is empty) layered with
// GODBF_* environment variables. .env and .env.local are loaded first if present.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	def := DefaultConfig()
	v := viper.New()
	v.SetDefault("encoding", def.Encoding)
	v.SetDefault("workers", def.Workers)
	v.SetDefault("trim_space", def.TrimSpace)
	v.SetDefault("skip_deleted", def.SkipDeleted)
	v.SetDefault("century", def.Century)
	v.SetDefault("log_level", def.LogLevel)

	v.SetEnvPrefix("godbf")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if _, err := parseLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	level, err := parseLogLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("component", "godbf")
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warning", "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
}
