// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingToken is returned when no bot token is configured.
var ErrMissingToken = errors.New("BOT_TOKEN not found")

// DefaultSettingsPath is where the optional YAML settings file is looked up.
const DefaultSettingsPath = "settings.yml"

const (
	TransportTelegram = "telegram"
	TransportHTTP     = "http"
)

// Config holds all application configuration.
type Config struct {
	BotToken       string
	DBPath         string
	Transport      string // "telegram" (long polling) or "http" (REST + WebSocket)
	Port           string
	Locale         string
	SessionTTL     time.Duration // 0 disables idle dialogue expiry
	SweepInterval  time.Duration
	PollTimeout    int // seconds
	Debug          bool
	LogLevel       string
	SettingsPath   string
	AllowedOrigins []string
}

// fileSettings mirrors settings.yml. Keys match the environment variable names.
type fileSettings struct {
	BotToken       string   `yaml:"BOT_TOKEN"`
	DBPath         string   `yaml:"DB_PATH"`
	Transport      string   `yaml:"TRANSPORT"`
	Port           string   `yaml:"PORT"`
	Locale         string   `yaml:"LOCALE"`
	SessionTTL     string   `yaml:"SESSION_TTL"`
	SweepInterval  string   `yaml:"SESSION_SWEEP_INTERVAL"`
	PollTimeout    int      `yaml:"TELEGRAM_POLL_TIMEOUT"`
	Debug          bool     `yaml:"DEBUG"`
	LogLevel       string   `yaml:"LOG_LEVEL"`
	AllowedOrigins []string `yaml:"ALLOWED_ORIGINS"`
}

// Load reads the optional settings file at settingsPath and then applies
// environment variables on top of it. A missing bot token is an error.
func Load(settingsPath string) (*Config, error) {
	return load(settingsPath, true)
}

// LoadOffline is Load without the bot token requirement, for commands that
// only touch the database.
func LoadOffline(settingsPath string) (*Config, error) {
	return load(settingsPath, false)
}

func load(settingsPath string, requireToken bool) (*Config, error) {
	if settingsPath == "" {
		settingsPath = getEnv("SETTINGS_PATH", DefaultSettingsPath)
	}

	fs, err := readSettings(settingsPath)
	if err != nil {
		return nil, err
	}

	ttl, err := parseDuration(orDefault(fs.SessionTTL, "30m"))
	if err != nil {
		return nil, fmt.Errorf("SESSION_TTL: %w", err)
	}
	sweep, err := parseDuration(orDefault(fs.SweepInterval, "1m"))
	if err != nil {
		return nil, fmt.Errorf("SESSION_SWEEP_INTERVAL: %w", err)
	}
	pollTimeout := fs.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 60
	}

	cfg := &Config{
		BotToken:       getEnv("BOT_TOKEN", fs.BotToken),
		DBPath:         getEnv("DB_PATH", orDefault(fs.DBPath, "./data/bot.db")),
		Transport:      strings.ToLower(getEnv("TRANSPORT", orDefault(fs.Transport, TransportTelegram))),
		Port:           getEnv("PORT", orDefault(fs.Port, "8080")),
		Locale:         getEnv("LOCALE", orDefault(fs.Locale, "en")),
		SessionTTL:     getEnvDuration("SESSION_TTL", ttl),
		SweepInterval:  getEnvDuration("SESSION_SWEEP_INTERVAL", sweep),
		PollTimeout:    getEnvInt("TELEGRAM_POLL_TIMEOUT", pollTimeout),
		Debug:          getEnvBool("DEBUG", fs.Debug),
		LogLevel:       getEnv("LOG_LEVEL", orDefault(fs.LogLevel, "info")),
		SettingsPath:   settingsPath,
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", fs.AllowedOrigins),
	}
	cfg.BotToken = strings.TrimSpace(cfg.BotToken)

	validate := cfg.Validate
	if !requireToken {
		validate = cfg.validateSettings
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return ErrMissingToken
	}
	return c.validateSettings()
}

func (c *Config) validateSettings() error {
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	switch c.Transport {
	case TransportTelegram:
	case TransportHTTP:
		if c.Port == "" {
			return fmt.Errorf("PORT cannot be empty")
		}
	default:
		return fmt.Errorf("TRANSPORT must be %q or %q, got %q", TransportTelegram, TransportHTTP, c.Transport)
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("SESSION_TTL cannot be negative")
	}
	if c.SessionTTL > 0 && c.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be > 0")
	}
	return nil
}

func readSettings(path string) (fileSettings, error) {
	var fs fileSettings
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fs, nil
	}
	if err != nil {
		return fs, fmt.Errorf("read settings %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return fs, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return fs, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// parseDuration accepts Go durations ("30m") and bare seconds ("1800").
func parseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(value)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := parseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
