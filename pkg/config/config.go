// Package config loads the process-bootstrap configuration: provider
// credentials, the KB/LMS service endpoints, the auth signing secret, and
// log level (spec §6.5). Per-organization and per-assistant configuration
// is runtime data read from pkg/store, never from this file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/lamb-project/lamb-core/pkg/observability"
)

// Config is the root bootstrap configuration structure.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Log           LogConfig           `yaml:"log"`
	Auth          AuthConfig          `yaml:"auth"`
	Store         StoreConfig         `yaml:"store"`
	Providers     ProvidersConfig     `yaml:"providers"`
	KB            ServiceConfig       `yaml:"kb"`
	LMS           ServiceConfig       `yaml:"lms"`
	Embeddings    EmbeddingsConfig    `yaml:"embeddings"`
	Observability observability.Config `yaml:"observability"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LogConfig configures pkg/logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AuthConfig configures the native token verifier and legacy fallback.
type AuthConfig struct {
	SigningSecret string `yaml:"signing_secret"`
	LegacyBaseURL string `yaml:"legacy_base_url"`
}

// StoreConfig selects the relational driver backing pkg/store.
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres | mysql
	DSN    string `yaml:"dsn"`
}

// ProviderConfig is the credential/endpoint pair every LLM connector needs.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// ProvidersConfig holds per-vendor provider defaults, overridden per
// organization by pkg/orgconfig.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `yaml:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic"`
	Gemini    ProviderConfig `yaml:"gemini"`
	Ollama    ProviderConfig `yaml:"ollama"`
}

// ServiceConfig is the URL/token pair shared by the KB and LMS clients.
type ServiceConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// EmbeddingsConfig points at the embeddings endpoint used by RAG tools.
type EmbeddingsConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
}

// SetDefaults fills in zero-valued fields with process defaults.
func (c *Config) SetDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "simple"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.DSN == "" && c.Store.Driver == "sqlite" {
		c.Store.DSN = "lamb.db"
	}
	if c.KB.Timeout == 0 {
		c.KB.Timeout = 30 * time.Second
	}
	if c.LMS.Timeout == 0 {
		c.LMS.Timeout = 5 * time.Second
	}
	c.Observability.SetDefaults()
}

// Validate checks the configuration for the minimum viable process
// bootstrap. It does not validate organization-level overrides.
func (c *Config) Validate() error {
	var problems []string

	if c.Auth.SigningSecret == "" {
		problems = append(problems, "auth.signing_secret is required")
	}
	switch strings.ToLower(c.Store.Driver) {
	case "sqlite", "postgres", "mysql":
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not one of sqlite, postgres, mysql", c.Store.Driver))
	}
	if c.Store.DSN == "" {
		problems = append(problems, "store.dsn is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
