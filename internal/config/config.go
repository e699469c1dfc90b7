// Package config loads Ralph's TOML configuration file and exposes the
// knobs the rest of the system depends on (database path, host, port,
// concurrency cap). These knobs come from the file and defaults only: the
// CLI entrypoint binds just the config-file path (--config / RALPHD_CONFIG)
// and --json through viper, and no environment variable or flag overrides
// the database path, host, port or concurrency cap.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
type Config struct {
	General       GeneralConfig       `toml:"general"`
	Agent         AgentConfig         `toml:"agent"`
	Notifications NotificationsConfig `toml:"notifications"`
	Server        ServerConfig        `toml:"server"`
}

// GeneralConfig holds general settings.
type GeneralConfig struct {
	WorktreeDir   string `toml:"worktree_dir"`
	MaxConcurrent int    `toml:"max_concurrent"`
	DatabasePath  string `toml:"database_path"`
}

// AgentConfig holds default agent selection.
type AgentConfig struct {
	Name                   string `toml:"name"`
	Model                  string `toml:"model"`
	ProgressFile           string `toml:"progress_file"`
	FailureContextMaxChars int    `toml:"failure_context_max_chars"`
	GitCheckpoint          bool   `toml:"git_checkpoint"`
	IterationDelaySeconds  int    `toml:"iteration_delay_seconds"`
}

// NotificationsConfig holds notification settings.
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// ServerConfig holds HTTP+WS control plane settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			WorktreeDir:   filepath.Join(home, ".ralph", "worktrees"),
			MaxConcurrent: 2,
			DatabasePath:  filepath.Join(home, ".ralph", "ralph.db"),
		},
		Agent: AgentConfig{
			Name:                   "claude",
			ProgressFile:           "",
			FailureContextMaxChars: 8000,
			GitCheckpoint:          true,
			IterationDelaySeconds:  0,
		},
		Notifications: NotificationsConfig{
			Desktop: false,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 4242,
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.General.WorktreeDir = ExpandPath(cfg.General.WorktreeDir)
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)

	return cfg, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ralph", "config.toml")
}
