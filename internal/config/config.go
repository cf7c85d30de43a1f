package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Config holds the connection settings for one Octane server plus the
// shared-space/workspace pair every request is scoped to.
type Config struct {
	Host        string `json:"host" yaml:"host"`
	Protocol    string `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	Port        int    `json:"port,omitempty" yaml:"port,omitempty"`
	PathPrefix  string `json:"path_prefix,omitempty" yaml:"path_prefix,omitempty"`
	SharedSpace int64  `json:"shared_space_id" yaml:"shared_space_id"`
	Workspace   int64  `json:"workspace_id" yaml:"workspace_id"`
	Proxy       string `json:"proxy,omitempty" yaml:"proxy,omitempty"`

	// RoutesFile points at the route document consumed by the route-table
	// client. Empty means the caller supplies the document directly.
	RoutesFile string `json:"routes_file,omitempty" yaml:"routes_file,omitempty"`

	TimeoutSeconds int               `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	Headers        map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	Auth      AuthConfig       `json:"auth" yaml:"auth"`
	RateLimit *RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// AuthConfig carries one credential pair: username/password for user
// sessions or client_id/client_secret for API-access sessions.
type AuthConfig struct {
	Username     string `json:"username,omitempty" yaml:"username,omitempty"`
	Password     string `json:"password,omitempty" yaml:"password,omitempty"`
	ClientID     string `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty" yaml:"client_secret,omitempty"`
}

// RateLimitConfig enables the optional client-side request limiter.
// Zero values mean unlimited.
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute,omitempty" yaml:"requests_per_minute,omitempty"`
	RequestsPerHour   int `json:"requests_per_hour,omitempty" yaml:"requests_per_hour,omitempty"`
}

func (c *Config) ApplyDefaults() {
	if c.Protocol == "" {
		c.Protocol = "https"
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 60
	}
}

func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.SharedSpace <= 0 {
		return fmt.Errorf("shared_space_id is required")
	}
	if c.Workspace <= 0 {
		return fmt.Errorf("workspace_id is required")
	}
	switch c.Protocol {
	case "http", "https":
	default:
		return fmt.Errorf("unsupported protocol %q", c.Protocol)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must be >= 0")
	}
	if c.Proxy != "" {
		if _, err := url.Parse(c.Proxy); err != nil {
			return fmt.Errorf("proxy: %w", err)
		}
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if c.RateLimit != nil {
		if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.RequestsPerHour < 0 {
			return fmt.Errorf("rate_limit values must be >= 0")
		}
	}
	return nil
}

// Validate checks credential pair consistency. Credentials are optional at
// construction time (sign-in fails later without them), but a half-filled
// pair is always a configuration mistake.
func (a *AuthConfig) Validate() error {
	if (a.Username == "") != (a.Password == "") {
		return fmt.Errorf("auth.username and auth.password must be set together")
	}
	if (a.ClientID == "") != (a.ClientSecret == "") {
		return fmt.Errorf("auth.client_id and auth.client_secret must be set together")
	}
	return nil
}

// HasCredentials reports whether any complete credential pair is present.
func (a *AuthConfig) HasCredentials() bool {
	return (a.Username != "" && a.Password != "") || (a.ClientID != "" && a.ClientSecret != "")
}

// BaseURL renders the server base URL from protocol, host, port, and path
// prefix.
func (c *Config) BaseURL() string {
	var b strings.Builder
	b.WriteString(c.Protocol)
	b.WriteString("://")
	b.WriteString(c.Host)
	if c.Port != 0 {
		fmt.Fprintf(&b, ":%d", c.Port)
	}
	if prefix := strings.Trim(c.PathPrefix, "/"); prefix != "" {
		b.WriteString("/")
		b.WriteString(prefix)
	}
	return b.String()
}

// Secrets lists credential values that must never appear in log output.
func (c *Config) Secrets() []string {
	var secrets []string
	if c.Auth.Password != "" {
		secrets = append(secrets, c.Auth.Password)
	}
	if c.Auth.ClientSecret != "" {
		secrets = append(secrets, c.Auth.ClientSecret)
	}
	return secrets
}
