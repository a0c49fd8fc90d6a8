package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	koanftoml "github.com/knadh/koanf/parsers/toml/v2"
	koanfenv "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
)

const (
	appName   = "kaliguru"
	envPrefix = "KALIGURU_"
)

// Config represents the application configuration structure
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
	Mentor  MentorConfig  `koanf:"mentor"`
	Chat    ChatConfig    `koanf:"chat"`
	History HistoryConfig `koanf:"history"`
	Storage StorageConfig `koanf:"storage"`

	// projectPath is where SaveConfig writes. Set by LoadConfig.
	projectPath string
}

// ServerConfig points the client at the KaliGuru backend
type ServerConfig struct {
	BaseURL        string `koanf:"base_url"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `koanf:"level"`
}

// MentorConfig holds the learner profile sent with every mentor request
type MentorConfig struct {
	LearningMode string `koanf:"learning_mode"`
	Cert         string `koanf:"cert"`
}

// ChatConfig holds chat mode behaviour
type ChatConfig struct {
	// CancelOnExit aborts in-flight mentor replies when leaving chat mode.
	CancelOnExit bool `koanf:"cancel_on_exit"`
}

// HistoryConfig holds persistent command history configuration
type HistoryConfig struct {
	Enabled bool `koanf:"enabled"`
	MaxSize int  `koanf:"max_size"`
}

// StorageConfig selects where session tokens and provider keys live
type StorageConfig struct {
	Backend string `koanf:"backend"` // "keyring" or "file"
	Service string `koanf:"service"`
}

// defaultConfig returns the configuration populated with sensible defaults.
func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:3000",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Mentor: MentorConfig{
			LearningMode: "beginner",
			Cert:         "OSCP",
		},
		History: HistoryConfig{
			Enabled: true,
			MaxSize: 1000,
		},
		Storage: StorageConfig{
			Backend: "keyring",
			Service: "kaliguru-cli",
		},
	}
}

// Timeout returns the request timeout for non-streaming calls. Zero means none.
func (c ServerConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SlogLevel maps the configured level name to a slog level, defaulting to info.
func (c LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadConfig loads configuration from the user file, the project file and
// the environment, in that order of precedence (later wins).
func LoadConfig() (*Config, error) {
	var userConfigPath string
	homeDir, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("failed to get user home directory", "error", err)
	} else {
		userConfigPath = filepath.Join(homeDir, ".config", appName, "conf.toml")
	}
	return loadConfig(userConfigPath, filepath.Join("."+appName, "conf.toml"))
}

func loadConfig(userConfigPath, projectConfigPath string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range []string{userConfigPath, projectConfigPath} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			if !os.IsNotExist(err) {
				slog.Warn("unable to stat config file", "path", path, "error", err)
			}
			continue
		}
		if err := k.Load(file.Provider(path), koanftoml.Parser()); err != nil {
			slog.Warn("failed to load config file", "path", path, "error", err)
		}
	}

	// KALIGURU_SERVER_BASE_URL becomes "server.base_url": only the first
	// underscore separates the section from the key.
	if err := k.Load(koanfenv.Provider(".", koanfenv.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
			section, rest, found := strings.Cut(key, "_")
			if !found {
				return key, value
			}
			return section + "." + rest, value
		},
	}), nil); err != nil {
		slog.Warn("failed to load environment variables", "error", err)
	}

	config := defaultConfig()
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Server.BaseURL = strings.TrimRight(config.Server.BaseURL, "/")
	config.projectPath = projectConfigPath

	return &config, nil
}

// SaveConfig writes the learner profile back to the project-level conf.toml,
// keeping whatever else the file holds.
func SaveConfig(config *Config) error {
	path := config.projectPath
	if path == "" {
		path = filepath.Join("."+appName, "conf.toml")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	k := koanf.New(".")
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), koanftoml.Parser()); err != nil {
			return fmt.Errorf("failed to load existing project config: %w", err)
		}
	}

	if err := k.Set("mentor.learning_mode", config.Mentor.LearningMode); err != nil {
		return fmt.Errorf("failed to update learning mode in config: %w", err)
	}
	if err := k.Set("mentor.cert", config.Mentor.Cert); err != nil {
		return fmt.Errorf("failed to update cert in config: %w", err)
	}

	data, err := k.Marshal(koanftoml.Parser())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// dataDir returns ~/.local/share/kaliguru, creating it when missing.
func dataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	dir := filepath.Join(homeDir, ".local", "share", appName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}
