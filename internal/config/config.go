// Package config loads server settings from ~/.config/rentagent/config.yaml
// with flag overrides. A missing auth token is generated once and written
// back so restarts keep the same token.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port              int    `yaml:"port"`
	Token             string `yaml:"token"`
	DBPath            string `yaml:"db_path"`
	Provider          string `yaml:"provider"`
	Model             string `yaml:"model"`
	SearchBaseURL     string `yaml:"search_base_url"`
	CalendarTokenPath string `yaml:"calendar_token_path"`
	TimeZone          string `yaml:"timezone"`

	ConfigPath string `yaml:"-"`
	PrintToken bool   `yaml:"-"`
}

// Location resolves the configured timezone; an empty setting means the
// server's local time.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	cfg := &Config{
		Port:       8787,
		DBPath:     filepath.Join(homeDir, ".config", "rentagent", "rentagent.db"),
		Provider:   "anthropic",
		ConfigPath: filepath.Join(homeDir, ".config", "rentagent", "config.yaml"),
	}

	if err := cfg.loadFromFile(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	flag.IntVar(&cfg.Port, "port", cfg.Port, "server port (1-65535)")
	flag.StringVar(&cfg.Token, "token", cfg.Token, "authentication token (auto-generated if empty)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite database path")
	flag.StringVar(&cfg.Provider, "provider", cfg.Provider, "LLM provider: anthropic or openai")
	flag.StringVar(&cfg.Model, "model", cfg.Model, "model name (provider default if empty)")
	flag.StringVar(&cfg.SearchBaseURL, "search-url", cfg.SearchBaseURL, "rental search API base URL")
	flag.StringVar(&cfg.CalendarTokenPath, "calendar-token", cfg.CalendarTokenPath, "Google Calendar token file (calendar disabled if empty)")
	flag.StringVar(&cfg.TimeZone, "timezone", cfg.TimeZone, "IANA timezone for viewing slots (local time if empty)")
	flag.BoolVar(&cfg.PrintToken, "print-token", false, "print token to stdout (for local debugging)")
	flag.Parse()

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d: must be between 1 and 65535", cfg.Port)
	}
	if cfg.Provider != "anthropic" && cfg.Provider != "openai" {
		return nil, fmt.Errorf("invalid provider %q: must be anthropic or openai", cfg.Provider)
	}

	if cfg.Token == "" {
		token, err := generateToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate token: %w", err)
		}
		cfg.Token = token
		if err := cfg.saveToFile(); err != nil {
			return nil, fmt.Errorf("failed to save config file: %w", err)
		}
	}

	return cfg, nil
}

func (c *Config) loadFromFile() error {
	data, err := os.ReadFile(c.ConfigPath)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("invalid config %q: %w", c.ConfigPath, err)
	}
	return nil
}

func (c *Config) saveToFile() error {
	dir := filepath.Dir(c.ConfigPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(c.ConfigPath, data, 0600)
}

func generateToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
