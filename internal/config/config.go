// Package config loads and validates the process configuration.
//
// Configuration comes from environment variables, optionally seeded from a
// .env file in development. Everything the rest of the code needs is read
// once here into a Config struct and passed down explicitly — no package
// reads os.Getenv on its own.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Backend names the identity-store implementations the server can run on.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config is the full configuration surface of the server.
//
// The envconfig tags map each field to its environment variable; defaults
// keep a bare `go run ./cmd/server` working for local development (OAuth
// routes are only registered for providers whose credentials are set).
type Config struct {
	Port    int    `envconfig:"PORT" default:"3001"`
	BaseURL string `envconfig:"BASE_URL" default:"http://localhost:3001"`

	// SessionSecret signs the session cookie. Generate with:
	//   SESSION_SECRET=$(openssl rand -hex 32)
	SessionSecret string `envconfig:"SESSION_SECRET" required:"true"`
	SessionDir    string `envconfig:"SESSION_DIR" default:"data/sessions"`
	SessionTTLMin int    `envconfig:"SESSION_TTL_MINUTES" default:"1440"`

	// StoreBackend selects the identity store: "file" or "sqlite".
	StoreBackend string `envconfig:"STORE_BACKEND" default:"file"`
	StorePath    string `envconfig:"STORE_PATH" default:"data/users.json"`
	DBPath       string `envconfig:"DB_PATH" default:"data/users.db"`

	GitHubClientID     string `envconfig:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `envconfig:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string `envconfig:"GITHUB_CALLBACK_URL"`

	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `envconfig:"GOOGLE_CALLBACK_URL"`

	TemplateDir string `envconfig:"TEMPLATE_DIR" default:"web/templates"`
}

// Load reads the .env file (if present), processes the environment, and
// validates the result. A missing .env is not an error — production
// deployments set real environment variables instead.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: processing environment: %w", err)
	}

	// Callback URLs default to the standard paths under BaseURL, matching
	// what gets registered in the provider's OAuth app settings.
	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = cfg.BaseURL + "/auth/github/callback"
	}
	if cfg.GoogleCallbackURL == "" {
		cfg.GoogleCallbackURL = cfg.BaseURL + "/auth/google/callback"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var problems []string

	if len(c.SessionSecret) < 32 {
		problems = append(problems, "SESSION_SECRET must be at least 32 characters")
	}
	if c.StoreBackend != BackendFile && c.StoreBackend != BackendSQLite {
		problems = append(problems, fmt.Sprintf("STORE_BACKEND must be %q or %q, got %q",
			BackendFile, BackendSQLite, c.StoreBackend))
	}
	if c.SessionTTLMin <= 0 {
		problems = append(problems, "SESSION_TTL_MINUTES must be positive")
	}
	// Credentials come in pairs; half a pair is always a misconfiguration.
	if (c.GitHubClientID == "") != (c.GitHubClientSecret == "") {
		problems = append(problems, "GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET must be set together")
	}
	if (c.GoogleClientID == "") != (c.GoogleClientSecret == "") {
		problems = append(problems, "GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set together")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

// GitHubEnabled reports whether GitHub OAuth credentials are configured.
func (c *Config) GitHubEnabled() bool { return c.GitHubClientID != "" }

// GoogleEnabled reports whether Google OAuth credentials are configured.
func (c *Config) GoogleEnabled() bool { return c.GoogleClientID != "" }
