package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Backend     BackendConfig     `toml:"backend"`
	Auth        AuthConfig        `toml:"auth"`
	Upload      UploadConfig      `toml:"upload"`
	Media       MediaConfig       `toml:"media"`
	Guard       GuardConfig       `toml:"guard"`
	Integration IntegrationConfig `toml:"integration"`
	Posts       PostsConfig       `toml:"posts"`
	Database    DatabaseConfig    `toml:"database"`
}

// BackendConfig locates the remote API.
type BackendConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"`
}

// AuthConfig selects the credential store and the local OAuth callback listener.
type AuthConfig struct {
	Store        string `toml:"store"`
	TokenPath    string `toml:"token_path"`
	RedirectPath string `toml:"redirect_path"`
	CallbackHost string `toml:"callback_host"`
	CallbackPort int    `toml:"callback_port"`
}

// CallbackOrigin is the origin handed to the backend so the Google login redirects back to the local listener.
func (a AuthConfig) CallbackOrigin() string {
	return fmt.Sprintf("http://%s:%d", a.CallbackHost, a.CallbackPort)
}

// UploadConfig bounds the upload fan-out.
type UploadConfig struct {
	Concurrency int     `toml:"concurrency"`
	RateLimit   float64 `toml:"rate_limit"`
}

type MediaConfig struct {
	PageSize int `toml:"page_size"`
}

type GuardConfig struct {
	FallbackDelay Duration `toml:"fallback_delay"`
}

// IntegrationConfig bounds the LinkedIn consent flow.
type IntegrationConfig struct {
	ConsentTimeout Duration `toml:"consent_timeout"`
	PollInterval   Duration `toml:"poll_interval"`
}

type PostsConfig struct {
	SuccessGrace Duration `toml:"success_grace"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// Duration wraps [time.Duration] so it can be written as a string ("5s") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep their defaults from the embedded example config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate reports the first setting that cannot drive the client.
func (c *Config) Validate() error {
	switch {
	case c.Backend.BaseURL == "":
		return fmt.Errorf("%w: backend.base_url is empty", ErrInvalidConfig)
	case c.Upload.Concurrency < 1:
		return fmt.Errorf("%w: upload.concurrency must be positive", ErrInvalidConfig)
	case c.Media.PageSize < 1:
		return fmt.Errorf("%w: media.page_size must be positive", ErrInvalidConfig)
	case c.Integration.PollInterval.Duration <= 0:
		return fmt.Errorf("%w: integration.poll_interval must be positive", ErrInvalidConfig)
	case c.Integration.ConsentTimeout.Duration <= 0:
		return fmt.Errorf("%w: integration.consent_timeout must be positive", ErrInvalidConfig)
	case c.Posts.SuccessGrace.Duration < 0:
		return fmt.Errorf("%w: posts.success_grace cannot be negative", ErrInvalidConfig)
	}

	switch c.Auth.Store {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("%w: unknown auth.store %q", ErrInvalidConfig, c.Auth.Store)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ExpandPath resolves a leading "~" to the user's home directory.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
