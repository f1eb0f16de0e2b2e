// Package config loads service settings from an optional YAML or JSONC file
// with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ce-fello/bugbash-service/src/internal/model"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string         `yaml:"port"`
	DatabaseURL string         `yaml:"database_url"`
	LogLevel    string         `yaml:"log_level"`
	Database    DatabaseConfig `yaml:"database"`
	WorkItems   WorkItemConfig `yaml:"work_items"`
	User        UserConfig     `yaml:"user"`
}

// DatabaseConfig tunes how the document store is reached at startup.
type DatabaseConfig struct {
	ConnectAttempts int           `yaml:"connect_attempts"`
	ConnectDelay    time.Duration `yaml:"connect_delay"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MigrationsDir   string        `yaml:"migrations_dir"`
}

type WorkItemConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Token      string        `yaml:"token"`
	ProjectID  string        `yaml:"project_id"`
	Type       string        `yaml:"type"`
	APIVersion string        `yaml:"api_version"`
	Timeout    time.Duration `yaml:"timeout"`
}

type UserConfig struct {
	DisplayName string `yaml:"display_name"`
	UniqueName  string `yaml:"unique_name"`
}

func Default() Config {
	return Config{
		Port:        "8080",
		DatabaseURL: "postgres://pguser:pgpass@db:5432/bugbashdb?sslmode=disable",
		LogLevel:    "info",
		Database: DatabaseConfig{
			ConnectAttempts: 15,
			ConnectDelay:    2 * time.Second,
			MaxOpenConns:    10,
			MigrationsDir:   "./migrations",
		},
		WorkItems: WorkItemConfig{
			Type:       model.DefaultWorkItemType,
			APIVersion: "7.0",
			Timeout:    10 * time.Second,
		},
	}
}

// Load reads path when it is not empty and then applies environment
// overrides. A missing file is an error only when path was given.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if isJSON(path) {
			// JSON is valid YAML once comments and trailing commas are gone.
			raw = jsonc.ToJSON(raw)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Port = getenv("PORT", cfg.Port)
	cfg.DatabaseURL = getenv("DATABASE_URL", cfg.DatabaseURL)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.WorkItems.BaseURL = getenv("WORKITEM_BASE_URL", cfg.WorkItems.BaseURL)
	cfg.WorkItems.Token = getenv("WORKITEM_TOKEN", cfg.WorkItems.Token)
	cfg.WorkItems.ProjectID = getenv("PROJECT_ID", cfg.WorkItems.ProjectID)
	cfg.User.DisplayName = getenv("USER_NAME", cfg.User.DisplayName)
	cfg.User.UniqueName = getenv("USER_UNIQUE_NAME", cfg.User.UniqueName)
	cfg.Database.MigrationsDir = getenv("MIGRATIONS_DIR", cfg.Database.MigrationsDir)
	if v := os.Getenv("WORKITEM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("WORKITEM_TIMEOUT: %w", err)
		}
		cfg.WorkItems.Timeout = d
	}
	if v := os.Getenv("DB_CONNECT_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("DB_CONNECT_ATTEMPTS: %w", err)
		}
		cfg.Database.ConnectAttempts = n
	}
	if v := os.Getenv("DB_CONNECT_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("DB_CONNECT_DELAY: %w", err)
		}
		cfg.Database.ConnectDelay = d
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if c.WorkItems.Timeout <= 0 {
		return fmt.Errorf("work item timeout must be positive")
	}
	if c.Database.ConnectAttempts < 1 {
		return fmt.Errorf("database connect attempts must be at least 1")
	}
	if c.Database.ConnectDelay < 0 {
		return fmt.Errorf("database connect delay must not be negative")
	}
	return nil
}

// Identity is the acting user and project fixed for the process lifetime.
func (c Config) Identity() model.Identity {
	return model.Identity{
		DisplayName: c.User.DisplayName,
		UniqueName:  c.User.UniqueName,
		ProjectID:   c.WorkItems.ProjectID,
	}
}

func isJSON(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return true
	}
	return false
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
