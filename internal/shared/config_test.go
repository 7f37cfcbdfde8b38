package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Backend.BaseURL != "https://backend.postsiva.com" {
			t.Errorf("expected backend base URL https://backend.postsiva.com, got %s", config.Backend.BaseURL)
		}

		if config.Media.PageSize != 12 {
			t.Errorf("expected page size 12, got %d", config.Media.PageSize)
		}

		if config.Guard.FallbackDelay.Duration != 5*time.Second {
			t.Errorf("expected fallback delay 5s, got %v", config.Guard.FallbackDelay)
		}

		if config.Integration.ConsentTimeout.Duration != 5*time.Minute {
			t.Errorf("expected consent timeout 5m, got %v", config.Integration.ConsentTimeout)
		}

		if config.Posts.SuccessGrace.Duration != 1500*time.Millisecond {
			t.Errorf("expected success grace 1.5s, got %v", config.Posts.SuccessGrace)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nested", "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[backend]
base_url = "http://localhost:8000"

[auth]
store = "sqlite"
callback_port = 4000

[media]
page_size = 24
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0o644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Backend.BaseURL != "http://localhost:8000" {
			t.Errorf("expected base URL http://localhost:8000, got %s", config.Backend.BaseURL)
		}
		if config.Auth.Store != "sqlite" {
			t.Errorf("expected store sqlite, got %s", config.Auth.Store)
		}
		if got := config.Auth.CallbackOrigin(); got != "http://127.0.0.1:4000" {
			t.Errorf("expected callback origin http://127.0.0.1:4000, got %s", got)
		}
		if config.Media.PageSize != 24 {
			t.Errorf("expected page size 24, got %d", config.Media.PageSize)
		}
		if config.Upload.Concurrency != 4 {
			t.Errorf("unset values should keep defaults, got concurrency %d", config.Upload.Concurrency)
		}
	})

	t.Run("LoadConfig rejects invalid values", func(t *testing.T) {
		tests := []struct {
			name    string
			content string
		}{
			{name: "unknown store", content: "[auth]\nstore = \"cookie\"\n"},
			{name: "zero concurrency", content: "[upload]\nconcurrency = 0\n"},
			{name: "bad duration", content: "[guard]\nfallback_delay = \"soon\"\n"},
			{name: "zero poll interval", content: "[integration]\npoll_interval = \"0s\"\n"},
			{name: "negative poll interval", content: "[integration]\npoll_interval = \"-1s\"\n"},
			{name: "zero consent timeout", content: "[integration]\nconsent_timeout = \"0s\"\n"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				configPath := filepath.Join(t.TempDir(), "config.toml")
				if err := os.WriteFile(configPath, []byte(tt.content), 0o644); err != nil {
					t.Fatalf("failed to write test config: %v", err)
				}

				if _, err := LoadConfig(configPath); !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("ExpandPath", func(t *testing.T) {
		home, err := os.UserHomeDir()
		if err != nil {
			t.Skip("no home directory")
		}

		if got := ExpandPath("~/token.json"); got != filepath.Join(home, "token.json") {
			t.Errorf("ExpandPath() = %s", got)
		}
		if got := ExpandPath("/abs/token.json"); got != "/abs/token.json" {
			t.Errorf("absolute paths should be untouched, got %s", got)
		}
	})
}
