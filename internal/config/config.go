// Package config loads the run configuration: the tracked-account catalog,
// the store connection, and import defaults. Configuration is loaded once,
// validated, and passed explicitly into the pipeline, never consulted as
// ambient global state.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rumor-ml/commons.systems/walletparse/internal/domain"
)

// CatalogSource selects where the tracked-account catalog comes from.
type CatalogSource string

const (
	// CatalogFromConfig uses the accounts listed in the config file.
	CatalogFromConfig CatalogSource = "config"
	// CatalogFromStore reads the store's accounts table metadata.
	CatalogFromStore CatalogSource = "store"
)

// Store holds the persistent store connection settings.
type Store struct {
	// Driver is the database/sql driver name: "postgres" or "sqlite".
	Driver string `yaml:"driver"`
	// DSN is the driver connection string. Overridable via WALLETPARSE_DSN.
	DSN string `yaml:"dsn"`
}

// AccountEntry is one tracked account in the config file.
type AccountEntry struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	MatchName  string `yaml:"match_name"`
	Identifier string `yaml:"identifier"`
}

// Config is the validated, immutable run configuration.
type Config struct {
	Store          Store          `yaml:"store"`
	Currency       string         `yaml:"currency"`
	Provider       string         `yaml:"provider"`
	Notes          string         `yaml:"notes"`
	CatalogSource  CatalogSource  `yaml:"catalog_source"`
	DefaultAccount string         `yaml:"default_account"`
	Accounts       []AccountEntry `yaml:"accounts"`
}

// LoadFromFile reads and validates a YAML config file. Environment variables
// WALLETPARSE_DSN and WALLETPARSE_DRIVER override the store settings, the way
// the upstream deployment passes credentials.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse unmarshals, applies defaults and env overrides, and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if dsn := os.Getenv("WALLETPARSE_DSN"); dsn != "" {
		cfg.Store.DSN = dsn
	}
	if driver := os.Getenv("WALLETPARSE_DRIVER"); driver != "" {
		cfg.Store.Driver = driver
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Currency == "" {
		c.Currency = "INR"
	}
	if c.Provider == "" {
		c.Provider = "PhonePe"
	}
	if c.Notes == "" {
		c.Notes = "Imported via statement automation"
	}
	if c.CatalogSource == "" {
		c.CatalogSource = CatalogFromConfig
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "postgres"
	}
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported store driver %q (must be 'postgres' or 'sqlite')", c.Store.Driver)
	}
	if strings.TrimSpace(c.Store.DSN) == "" {
		return fmt.Errorf("store DSN is required (set store.dsn or WALLETPARSE_DSN)")
	}

	switch c.CatalogSource {
	case CatalogFromConfig:
		if len(c.Accounts) == 0 {
			return fmt.Errorf("catalog_source is 'config' but no accounts are listed")
		}
	case CatalogFromStore:
	default:
		return fmt.Errorf("unsupported catalog_source %q (must be 'config' or 'store')", c.CatalogSource)
	}

	if c.DefaultAccount == "" {
		return fmt.Errorf("default_account is required")
	}

	seen := make(map[string]bool, len(c.Accounts))
	for i, a := range c.Accounts {
		if a.ID == "" {
			return fmt.Errorf("accounts[%d]: id is required", i)
		}
		if a.Name == "" {
			return fmt.Errorf("accounts[%d] (%s): name is required", i, a.ID)
		}
		if seen[a.ID] {
			return fmt.Errorf("accounts[%d]: duplicate account id %s", i, a.ID)
		}
		seen[a.ID] = true
	}
	if c.CatalogSource == CatalogFromConfig && !seen[c.DefaultAccount] {
		return fmt.Errorf("default_account %s is not in the accounts list", c.DefaultAccount)
	}
	return nil
}

// CatalogAccounts converts the configured account entries to domain accounts,
// preserving file order (matching is first-match-wins in this order).
func (c *Config) CatalogAccounts() []domain.Account {
	out := make([]domain.Account, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		out = append(out, domain.Account{
			ID:         a.ID,
			Name:       a.Name,
			MatchName:  a.MatchName,
			Identifier: a.Identifier,
		})
	}
	return out
}
