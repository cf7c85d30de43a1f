package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and parses the config file at path. YAML is a superset of
// JSON, so both formats work.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses config bytes, expands env references, applies
// defaults, and validates.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.ExpandEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ExpandEnv expands ${VAR} references in the fields that commonly carry
// them: host, proxy, routes file, and all credential fields.
func (c *Config) ExpandEnv() error {
	fields := []struct {
		name string
		val  *string
	}{
		{"host", &c.Host},
		{"proxy", &c.Proxy},
		{"routes_file", &c.RoutesFile},
		{"auth.username", &c.Auth.Username},
		{"auth.password", &c.Auth.Password},
		{"auth.client_id", &c.Auth.ClientID},
		{"auth.client_secret", &c.Auth.ClientSecret},
	}
	for _, f := range fields {
		if *f.val == "" {
			continue
		}
		expanded, err := ExpandEnvStrict(*f.val)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.val = expanded
	}
	return nil
}
