package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tempDir := t.TempDir()
	userPath := filepath.Join(tempDir, "user", "conf.toml")
	projectPath := filepath.Join(tempDir, ".kaliguru", "conf.toml")

	t.Run("load with defaults", func(t *testing.T) {
		config, err := loadConfig(userPath, projectPath)
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:3000", config.Server.BaseURL)
		assert.Equal(t, "beginner", config.Mentor.LearningMode)
		assert.Equal(t, "OSCP", config.Mentor.Cert)
		assert.True(t, config.History.Enabled)
		assert.Equal(t, 1000, config.History.MaxSize)
		assert.Equal(t, "keyring", config.Storage.Backend)
		assert.False(t, config.Chat.CancelOnExit)
		assert.Equal(t, projectPath, config.projectPath)
	})

	t.Run("project config overrides user config", func(t *testing.T) {
		require.NoError(t, os.MkdirAll(filepath.Dir(userPath), 0o755))
		require.NoError(t, os.MkdirAll(filepath.Dir(projectPath), 0o755))
		defer os.RemoveAll(filepath.Dir(userPath))
		defer os.RemoveAll(filepath.Dir(projectPath))

		userContent := `[server]
base_url = "https://guru.example.com/"
timeout_seconds = 15

[mentor]
cert = "CEH"
`
		projectContent := `[mentor]
cert = "PNPT"
learning_mode = "oscp"

[history]
enabled = false
`
		require.NoError(t, os.WriteFile(userPath, []byte(userContent), 0o644))
		require.NoError(t, os.WriteFile(projectPath, []byte(projectContent), 0o644))

		config, err := loadConfig(userPath, projectPath)
		require.NoError(t, err)
		assert.Equal(t, "https://guru.example.com", config.Server.BaseURL)
		assert.Equal(t, 15*time.Second, config.Server.Timeout())
		assert.Equal(t, "PNPT", config.Mentor.Cert)
		assert.Equal(t, "oscp", config.Mentor.LearningMode)
		assert.False(t, config.History.Enabled)
	})

	t.Run("environment variables override config", func(t *testing.T) {
		require.NoError(t, os.MkdirAll(filepath.Dir(projectPath), 0o755))
		defer os.RemoveAll(filepath.Dir(projectPath))
		require.NoError(t, os.WriteFile(projectPath, []byte("[server]\nbase_url = \"http://file\"\n"), 0o644))

		t.Setenv("KALIGURU_SERVER_BASE_URL", "http://env:8080")
		t.Setenv("KALIGURU_CHAT_CANCEL_ON_EXIT", "true")
		t.Setenv("KALIGURU_STORAGE_BACKEND", "file")

		config, err := loadConfig(userPath, projectPath)
		require.NoError(t, err)
		assert.Equal(t, "http://env:8080", config.Server.BaseURL)
		assert.True(t, config.Chat.CancelOnExit)
		assert.Equal(t, "file", config.Storage.Backend)
	})

	t.Run("broken file keeps defaults", func(t *testing.T) {
		require.NoError(t, os.MkdirAll(filepath.Dir(projectPath), 0o755))
		defer os.RemoveAll(filepath.Dir(projectPath))
		require.NoError(t, os.WriteFile(projectPath, []byte("[server\nbase_url = "), 0o644))

		config, err := loadConfig(userPath, projectPath)
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:3000", config.Server.BaseURL)
	})
}

func TestSaveConfig(t *testing.T) {
	tempDir := t.TempDir()
	projectPath := filepath.Join(tempDir, ".kaliguru", "conf.toml")

	t.Run("save config creates directory", func(t *testing.T) {
		config := defaultConfig()
		config.projectPath = projectPath
		config.Mentor.LearningMode = "oscp"

		require.NoError(t, SaveConfig(&config))
		_, err := os.Stat(projectPath)
		assert.NoError(t, err)
	})

	t.Run("save config preserves other settings", func(t *testing.T) {
		initial := `[server]
base_url = "http://saved"

[mentor]
cert = "OSCP"
`
		require.NoError(t, os.WriteFile(projectPath, []byte(initial), 0o644))

		config := defaultConfig()
		config.projectPath = projectPath
		config.Mentor.Cert = "OSWE"
		require.NoError(t, SaveConfig(&config))

		loaded, err := loadConfig("", projectPath)
		require.NoError(t, err)
		assert.Equal(t, "OSWE", loaded.Mentor.Cert)
		assert.Equal(t, "beginner", loaded.Mentor.LearningMode)
		assert.Equal(t, "http://saved", loaded.Server.BaseURL)
	})
}

func TestLoggingLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, LoggingConfig{Level: tt.level}.SlogLevel())
		})
	}
}

func TestServerTimeout(t *testing.T) {
	assert.Equal(t, time.Duration(0), ServerConfig{}.Timeout())
	assert.Equal(t, time.Duration(0), ServerConfig{TimeoutSeconds: -3}.Timeout())
	assert.Equal(t, 30*time.Second, ServerConfig{TimeoutSeconds: 30}.Timeout())
}
