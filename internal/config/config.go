// ABOUTME: Configuration loading and parsing for assistant-core and assistant-bridge
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration shared by both binaries
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Auth     AuthConfig     `yaml:"auth" toml:"auth"`
	MCP      MCPConfig      `yaml:"mcp" toml:"mcp"`
	Bridge   BridgeConfig   `yaml:"bridge" toml:"bridge"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the protocol server's listen address and external URL
type ServerConfig struct {
	HTTPAddr  string `yaml:"http_addr" toml:"http_addr"`
	PublicURL string `yaml:"public_url" toml:"public_url"` // used in discovery documents and WWW-Authenticate
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret" toml:"jwt_secret"`
	RequireAuth *bool  `yaml:"require_auth,omitempty" toml:"require_auth,omitempty"`
	Realm       string `yaml:"realm" toml:"realm"`
}

// Required reports whether unauthenticated protocol calls are rejected (default true).
func (a AuthConfig) Required() bool {
	return a.RequireAuth == nil || *a.RequireAuth
}

// MCPConfig holds protocol server identity and resource settings
type MCPConfig struct {
	ServerName          string `yaml:"server_name" toml:"server_name"`
	ServerVersion       string `yaml:"server_version" toml:"server_version"`
	ProtocolVersion     string `yaml:"protocol_version" toml:"protocol_version"`
	EnableResources     bool   `yaml:"enable_resources" toml:"enable_resources"`
	DocsDir             string `yaml:"docs_dir" toml:"docs_dir"`
	MinimalDescriptions bool   `yaml:"minimal_descriptions" toml:"minimal_descriptions"`
}

// BridgeConfig holds SSE bridge configuration
type BridgeConfig struct {
	HTTPAddr     string `yaml:"http_addr" toml:"http_addr"`
	PublicURL    string `yaml:"public_url" toml:"public_url"`
	ServerURL    string `yaml:"server_url" toml:"server_url"`
	MCPPath      string `yaml:"mcp_path" toml:"mcp_path"`
	IdentityPath string `yaml:"identity_path" toml:"identity_path"`
	APISecret    string `yaml:"api_secret" toml:"api_secret"`

	GracePeriod     time.Duration `yaml:"-" toml:"-"`
	SweepInterval   time.Duration `yaml:"-" toml:"-"`
	Keepalive       time.Duration `yaml:"-" toml:"-"`
	StabilizeDelay  time.Duration `yaml:"-" toml:"-"`
	RequestTimeout  time.Duration `yaml:"-" toml:"-"`
	ValidateTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	GracePeriodRaw     string `yaml:"grace_period" toml:"grace_period"`
	SweepIntervalRaw   string `yaml:"sweep_interval" toml:"sweep_interval"`
	KeepaliveRaw       string `yaml:"keepalive" toml:"keepalive"`
	StabilizeDelayRaw  string `yaml:"stabilize_delay" toml:"stabilize_delay"`
	RequestTimeoutRaw  string `yaml:"request_timeout" toml:"request_timeout"`
	ValidateTimeoutRaw string `yaml:"validate_timeout" toml:"validate_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Defaults
const (
	DefaultHTTPAddr        = "localhost:8080"
	DefaultBridgeAddr      = "localhost:8081"
	DefaultRealm           = "assistant-core"
	DefaultServerName      = "assistant-core"
	DefaultServerVersion   = "2.0.0"
	DefaultProtocolVersion = "2025-03-26"
	DefaultMCPPath         = "/mcp"
	DefaultIdentityPath    = "/api/whoami"
)

var bridgeDurationDefaults = struct {
	GracePeriod, SweepInterval, Keepalive, StabilizeDelay, RequestTimeout, ValidateTimeout time.Duration
}{
	GracePeriod:     5 * time.Second,
	SweepInterval:   10 * time.Second,
	Keepalive:       5 * time.Second,
	StabilizeDelay:  100 * time.Millisecond,
	RequestTimeout:  30 * time.Second,
	ValidateTimeout: 10 * time.Second,
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded. Files ending in
// .toml are decoded as TOML, everything else as YAML. Defaults are applied but
// the result is not validated; callers pick Validate or ValidateBridge.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data, formatOf(path))
}

// Parse decodes configuration content in the given format ("yaml" or "toml").
func Parse(data []byte, format string) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	switch format {
	case "toml":
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Save writes cfg to path, creating parent directories. The format follows
// the file extension as in Load.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	switch formatOf(path) {
	case "toml":
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
	default:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		_ = enc.Close()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func formatOf(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return "toml"
	}
	return "yaml"
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = "http://" + c.Server.HTTPAddr
	}
	c.Server.PublicURL = strings.TrimRight(c.Server.PublicURL, "/")

	if c.Auth.Realm == "" {
		c.Auth.Realm = DefaultRealm
	}

	if c.MCP.ServerName == "" {
		c.MCP.ServerName = DefaultServerName
	}
	if c.MCP.ServerVersion == "" {
		c.MCP.ServerVersion = DefaultServerVersion
	}
	if c.MCP.ProtocolVersion == "" {
		c.MCP.ProtocolVersion = DefaultProtocolVersion
	}

	b := &c.Bridge
	if b.HTTPAddr == "" {
		b.HTTPAddr = DefaultBridgeAddr
	}
	if b.PublicURL == "" {
		b.PublicURL = "http://" + b.HTTPAddr
	}
	if b.ServerURL == "" {
		b.ServerURL = c.Server.PublicURL
	}
	if b.MCPPath == "" {
		b.MCPPath = DefaultMCPPath
	}
	if b.IdentityPath == "" {
		b.IdentityPath = DefaultIdentityPath
	}
	d := bridgeDurationDefaults
	setDefault(&b.GracePeriod, d.GracePeriod)
	setDefault(&b.SweepInterval, d.SweepInterval)
	setDefault(&b.Keepalive, d.Keepalive)
	setDefault(&b.StabilizeDelay, d.StabilizeDelay)
	setDefault(&b.RequestTimeout, d.RequestTimeout)
	setDefault(&b.ValidateTimeout, d.ValidateTimeout)

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func setDefault(d *time.Duration, v time.Duration) {
	if *d == 0 {
		*d = v
	}
}

// Validate checks the fields the protocol server needs.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if err := validateURL("server.public_url", c.Server.PublicURL); err != nil {
		return err
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.Required() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth.require_auth is true")
	}
	if c.MCP.EnableResources && c.MCP.DocsDir == "" {
		return fmt.Errorf("mcp.docs_dir is required when mcp.enable_resources is true")
	}
	return c.validateLogging()
}

// ValidateBridge checks the fields the SSE bridge needs.
func (c *Config) ValidateBridge() error {
	b := c.Bridge
	if b.HTTPAddr == "" {
		return fmt.Errorf("bridge.http_addr is required")
	}
	if b.ServerURL != "" {
		if err := validateURL("bridge.server_url", b.ServerURL); err != nil {
			return err
		}
	}
	if !strings.HasPrefix(b.MCPPath, "/") {
		return fmt.Errorf("bridge.mcp_path must start with /")
	}
	if !strings.HasPrefix(b.IdentityPath, "/") {
		return fmt.Errorf("bridge.identity_path must start with /")
	}
	if b.Keepalive <= 0 || b.SweepInterval <= 0 || b.GracePeriod <= 0 {
		return fmt.Errorf("bridge.keepalive, bridge.sweep_interval and bridge.grace_period must be positive")
	}
	return c.validateLogging()
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "json", "text":
		return nil
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", field, raw)
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	b := &cfg.Bridge
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"grace_period", b.GracePeriodRaw, &b.GracePeriod},
		{"sweep_interval", b.SweepIntervalRaw, &b.SweepInterval},
		{"keepalive", b.KeepaliveRaw, &b.Keepalive},
		{"stabilize_delay", b.StabilizeDelayRaw, &b.StabilizeDelay},
		{"request_timeout", b.RequestTimeoutRaw, &b.RequestTimeout},
		{"validate_timeout", b.ValidateTimeoutRaw, &b.ValidateTimeout},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
