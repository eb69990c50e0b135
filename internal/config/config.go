package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"freshnest/internal/seed"
)

// Config models freshnest.yml.
type Config struct {
	Identities struct {
		Host    Identity `yaml:"host"`
		Cleaner Identity `yaml:"cleaner"`
	} `yaml:"identities"`
	Engine struct {
		// PauseMS simulates storage latency between accepting and applying
		// a transition. Zero disables the pause.
		PauseMS int `yaml:"pause_ms"`
	} `yaml:"engine"`
	Auth struct {
		// JWTSecret signs dev-login tokens. A fixed default keeps the demo
		// zero-config; override it anywhere tokens leave the machine.
		JWTSecret string `yaml:"jwt_secret"`
		TokenTTL  string `yaml:"token_ttl"`
	} `yaml:"auth"`
	Webhooks []Webhook `yaml:"webhooks"`
}

// Identity is a demo account one side of the marketplace acts as.
type Identity struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Avatar string `yaml:"avatar"`
}

// Webhook is an outbound subscription to the notification feed.
type Webhook struct {
	URL     string   `yaml:"url"`
	Secret  string   `yaml:"secret"`
	Roles   []string `yaml:"roles"`
	Enabled bool     `yaml:"enabled"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Identities.Host.ID == "" {
		return fmt.Errorf("config.identities.host.id is required")
	}
	if c.Identities.Cleaner.ID == "" {
		return fmt.Errorf("config.identities.cleaner.id is required")
	}
	if c.Identities.Host.ID == c.Identities.Cleaner.ID {
		return fmt.Errorf("config.identities host and cleaner must differ")
	}
	if c.Engine.PauseMS < 0 {
		return fmt.Errorf("config.engine.pause_ms must not be negative")
	}
	if c.Auth.TokenTTL != "" {
		if _, err := time.ParseDuration(c.Auth.TokenTTL); err != nil {
			return fmt.Errorf("config.auth.token_ttl: %w", err)
		}
	}
	for i, wh := range c.Webhooks {
		if wh.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		for _, role := range wh.Roles {
			if role != "host" && role != "cleaner" {
				return fmt.Errorf("config.webhooks[%d] has unknown role %s", i, role)
			}
		}
	}
	return nil
}

// TokenTTL returns the configured token lifetime, defaulting to 24h.
func (c *Config) TokenTTL() time.Duration {
	if c.Auth.TokenTTL == "" {
		return 24 * time.Hour
	}
	d, err := time.ParseDuration(c.Auth.TokenTTL)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// Pause returns the simulated latency as a duration.
func (c *Config) Pause() time.Duration {
	return time.Duration(c.Engine.PauseMS) * time.Millisecond
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "freshnest.yml")
}

// Load reads config from workspace, falling back to defaults when the file
// does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the built-in demo configuration.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("default config template: %v", err))
	}
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

var defaultTemplate = fmt.Sprintf(`identities:
  host:
    id: %s
    name: %q
    avatar: %s
  cleaner:
    id: %s
    name: %q
    avatar: %s

engine:
  pause_ms: 0

auth:
  jwt_secret: freshnest-dev-secret
  token_ttl: 24h

webhooks: []
`,
	seed.HostID, seed.HostName, seed.HostAvatar,
	seed.CleanerID, seed.CleanerName, seed.CleanerAvatar,
)
