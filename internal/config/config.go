// Package config holds the a11ycheck configuration: browser launch settings,
// the credit store, and audit defaults, loaded from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"a11ycheck/internal/browser"
	"a11ycheck/internal/credits"
	"a11ycheck/internal/device"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the working directory when
// no explicit path is given.
const DefaultFileName = "a11ycheck.yaml"

// Config holds all a11ycheck configuration.
type Config struct {
	Browser browser.Config `yaml:"browser"`
	Credits credits.Config `yaml:"credits"`
	Audit   AuditConfig    `yaml:"audit"`
}

// AuditConfig configures orchestrator defaults.
type AuditConfig struct {
	DefaultDevice string `yaml:"default_device"`
	CreditCost    int    `yaml:"credit_cost"`
	ToolKey       string `yaml:"tool_key"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		Browser: browser.DefaultConfig(),
		Credits: credits.DefaultConfig(),
		Audit: AuditConfig{
			DefaultDevice: device.DefaultName,
			CreditCost:    1,
			ToolKey:       "mobile-accessibility-checker",
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults when
// the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultFileName
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if mode := os.Getenv("A11YCHECK_BROWSER_MODE"); mode != "" {
		c.Browser.Mode = browser.Mode(mode)
	}
	if bin := os.Getenv("A11YCHECK_BROWSER_BIN"); bin != "" {
		c.Browser.Bin = bin
	}
	if path := os.Getenv("A11YCHECK_DB"); path != "" {
		c.Credits.DatabasePath = path
	}
	if limit := os.Getenv("A11YCHECK_TRIAL_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			c.Credits.TrialLimit = n
		}
	}
	if name := os.Getenv("A11YCHECK_DEVICE"); name != "" {
		c.Audit.DefaultDevice = name
	}
}
