package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"rampline/internal/domain"
)

// Config models rampline.yml.
type Config struct {
	Company struct {
		ID             string `yaml:"id"`
		Name           string `yaml:"name"`
		DefaultRoleKey string `yaml:"default_role_key"`
	} `yaml:"company"`
	Roles struct {
		Catalog map[string]RoleProfile `yaml:"catalog"`
	} `yaml:"roles"`
	Scan struct {
		PollIntervalSeconds int  `yaml:"poll_interval_seconds"`
		WorkerEnabled       bool `yaml:"worker_enabled"`
	} `yaml:"scan"`
	Auth struct {
		TokenTTLMinutes int `yaml:"token_ttl_minutes"`
	} `yaml:"auth"`
}

type RoleProfile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with rl company config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Company.ID == "" {
		return fmt.Errorf("config.company.id is required")
	}
	if c.Company.DefaultRoleKey != "" && !domain.ValidRole(c.Company.DefaultRoleKey) {
		return fmt.Errorf("config.company.default_role_key %s is not a known role", c.Company.DefaultRoleKey)
	}
	for key, profile := range c.Roles.Catalog {
		if key == "" {
			return fmt.Errorf("config.roles.catalog contains empty role key")
		}
		if !domain.ValidRole(key) {
			return fmt.Errorf("config.roles.catalog key %s is not a known role", key)
		}
		if profile.Name == "" {
			return fmt.Errorf("role %s has no name", key)
		}
	}
	if c.Scan.PollIntervalSeconds < 0 {
		return fmt.Errorf("config.scan.poll_interval_seconds must not be negative")
	}
	if c.Auth.TokenTTLMinutes < 0 {
		return fmt.Errorf("config.auth.token_ttl_minutes must not be negative")
	}
	return nil
}

// PollInterval returns the scan poll interval, defaulting to 5s.
func (c *Config) PollInterval() time.Duration {
	if c.Scan.PollIntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Scan.PollIntervalSeconds) * time.Second
}

// TokenTTL returns the access token lifetime, defaulting to 12h.
func (c *Config) TokenTTL() time.Duration {
	if c.Auth.TokenTTLMinutes <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "rampline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(companyID string) string {
	return fmt.Sprintf(defaultTemplate, companyID)
}

// Default returns the default Config struct for a company.
func Default(companyID string) *Config {
	var cfg Config
	cfg.Company.ID = companyID
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, companyID))).Decode(&cfg)
	return &cfg
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

const defaultTemplate = `company:
  id: %s
  name: Acme
  default_role_key: dev

roles:
  catalog:
    intern:
      name: Intern
      description: "Short-term onboarding with mentoring checkpoints"
    manager:
      name: Engineering Manager
      description: "People and process tooling setup"
    cto:
      name: CTO
      description: "Full platform and vendor access"
    dev:
      name: Developer
      description: "Standard engineering environment setup"

scan:
  poll_interval_seconds: 5
  worker_enabled: true

auth:
  token_ttl_minutes: 720
`
