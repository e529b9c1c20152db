// Package config loads reactor configuration from YAML files.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v2"
)

const (
	HistoryMemory = "memory"
	HistorySQLite = "sqlite"
	HistoryMySQL  = "mysql"
)

// Config is the configuration used by reactorctl and reactor.NewFromConfig.
type Config struct {
	// Bound on the result future of every submitted payload, in
	// milliseconds. Zero means no bound.
	DefaultTimeoutMs int `yaml:"default_timeout_ms"`

	Log     Log     `yaml:"log"`
	History History `yaml:"history"`
	API     API     `yaml:"api"`
}

// Log configures the slog logger.
type Log struct {
	// One of debug, info, warn, error.
	Level string `yaml:"level"`
	// Either text or json.
	Format string `yaml:"format"`
}

// History configures where graph models and execution events are kept.
type History struct {
	// One of memory, sqlite or mysql.
	Driver string `yaml:"driver"`
	// The data source name passed to sql.Open. For sqlite, ex:
	// "file:reactor.db?_pragma=busy_timeout(5000)". For mysql see
	// https://github.com/go-sql-driver/mysql#dsn-data-source-name, ex:
	// "reactor:secret@tcp(127.0.0.1:3306)/reactor".
	DSN string `yaml:"dsn"`
}

// Durable reports whether models and events outlive the process.
func (h History) Durable() bool {
	return h.Driver == HistorySQLite || h.Driver == HistoryMySQL
}

// API configures the read-only model and history HTTP API.
type API struct {
	// The address the server will listen on (ex: "127.0.0.1:8080").
	ListenAddress string `yaml:"listen_address"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log:     Log{Level: "info", Format: "text"},
		History: History{Driver: HistoryMemory},
		API:     API{ListenAddress: "127.0.0.1:8080"},
	}
}

// Load reads a YAML configuration file on top of Default.
func Load(configFile string) (Config, error) {
	cfg := Default()

	// Make sure the file exists.
	if _, err := os.Stat(configFile); err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(configFile)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", configFile, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", configFile, err)
	}
	return cfg, nil
}

// Validate checks option values.
func (c Config) Validate() error {
	if c.DefaultTimeoutMs < 0 {
		return fmt.Errorf("default_timeout_ms must not be negative, got %d", c.DefaultTimeoutMs)
	}
	switch c.History.Driver {
	case "", HistoryMemory:
	case HistorySQLite, HistoryMySQL:
		if c.History.DSN == "" {
			return fmt.Errorf("history.dsn is required for the %s driver", c.History.Driver)
		}
		if c.History.Driver == HistoryMySQL {
			if _, err := mysql.ParseDSN(c.History.DSN); err != nil {
				return fmt.Errorf("history.dsn: %w", err)
			}
		}
	default:
		return fmt.Errorf("unknown history.driver %q", c.History.Driver)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}

// Timeout returns DefaultTimeoutMs as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.DefaultTimeoutMs) * time.Millisecond
}

// Logger builds a slog.Logger writing to w.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log.level %q", s)
}
