// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  http_addr: "0.0.0.0:8080"
  public_url: "https://assistant.example.com/"

database:
  path: "./test.db"

auth:
  jwt_secret: "a-very-long-secret-for-testing-purposes"
  realm: "example"

mcp:
  enable_resources: true
  docs_dir: "./docs"
  minimal_descriptions: true

bridge:
  server_url: "https://assistant.example.com"
  api_secret: "shh"
  grace_period: "2s"
  keepalive: "1s"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if err := cfg.ValidateBridge(); err != nil {
		t.Fatalf("ValidateBridge() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Server.PublicURL != "https://assistant.example.com" {
		t.Errorf("Server.PublicURL = %q, want trailing slash trimmed", cfg.Server.PublicURL)
	}
	if cfg.Auth.Realm != "example" {
		t.Errorf("Auth.Realm = %q", cfg.Auth.Realm)
	}
	if !cfg.Auth.Required() {
		t.Error("Auth.Required() = false, want true by default")
	}
	if !cfg.MCP.EnableResources || !cfg.MCP.MinimalDescriptions || cfg.MCP.DocsDir != "./docs" {
		t.Errorf("MCP = %+v", cfg.MCP)
	}
	if cfg.Bridge.GracePeriod != 2*time.Second {
		t.Errorf("Bridge.GracePeriod = %v, want 2s", cfg.Bridge.GracePeriod)
	}
	if cfg.Bridge.Keepalive != time.Second {
		t.Errorf("Bridge.Keepalive = %v, want 1s", cfg.Bridge.Keepalive)
	}
	if cfg.Bridge.APISecret != "shh" {
		t.Errorf("Bridge.APISecret = %q", cfg.Bridge.APISecret)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
database:
  path: "./test.db"
auth:
  jwt_secret: "secret"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	checks := []struct {
		name      string
		got, want any
	}{
		{"server.http_addr", cfg.Server.HTTPAddr, DefaultHTTPAddr},
		{"server.public_url", cfg.Server.PublicURL, "http://" + DefaultHTTPAddr},
		{"auth.realm", cfg.Auth.Realm, DefaultRealm},
		{"mcp.server_name", cfg.MCP.ServerName, "assistant-core"},
		{"mcp.server_version", cfg.MCP.ServerVersion, "2.0.0"},
		{"mcp.protocol_version", cfg.MCP.ProtocolVersion, "2025-03-26"},
		{"bridge.http_addr", cfg.Bridge.HTTPAddr, DefaultBridgeAddr},
		{"bridge.server_url", cfg.Bridge.ServerURL, "http://" + DefaultHTTPAddr},
		{"bridge.mcp_path", cfg.Bridge.MCPPath, "/mcp"},
		{"bridge.identity_path", cfg.Bridge.IdentityPath, "/api/whoami"},
		{"bridge.grace_period", cfg.Bridge.GracePeriod, 5 * time.Second},
		{"bridge.sweep_interval", cfg.Bridge.SweepInterval, 10 * time.Second},
		{"bridge.keepalive", cfg.Bridge.Keepalive, 5 * time.Second},
		{"bridge.stabilize_delay", cfg.Bridge.StabilizeDelay, 100 * time.Millisecond},
		{"bridge.request_timeout", cfg.Bridge.RequestTimeout, 30 * time.Second},
		{"bridge.validate_timeout", cfg.Bridge.ValidateTimeout, 10 * time.Second},
		{"logging.level", cfg.Logging.Level, "info"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[server]
http_addr = "127.0.0.1:9000"

[database]
path = "/var/lib/assistant/db.sqlite"

[auth]
jwt_secret = "secret"
require_auth = false

[bridge]
sweep_interval = "30s"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:9000" {
		t.Errorf("Server.HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Database.Path != "/var/lib/assistant/db.sqlite" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Auth.Required() {
		t.Error("Auth.Required() = true, want false")
	}
	if cfg.Bridge.SweepInterval != 30*time.Second {
		t.Errorf("Bridge.SweepInterval = %v", cfg.Bridge.SweepInterval)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "from-env")
	t.Setenv("TEST_DB_PATH", "/tmp/env.db")

	path := writeConfig(t, "config.yaml", `
database:
  path: "${TEST_DB_PATH}"
auth:
  jwt_secret: "${TEST_JWT_SECRET}"
bridge:
  api_secret: "${TEST_UNSET_VARIABLE_XYZ}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Errorf("Auth.JWTSecret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Bridge.APISecret != "" {
		t.Errorf("Bridge.APISecret = %q, want empty for unset var", cfg.Bridge.APISecret)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", "server:\n  http_addr: [unclosed\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "parsing config file") {
		t.Fatalf("Load() error = %v, want parse error", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, "config.yaml", "bridge:\n  keepalive: \"soon\"\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "keepalive") {
		t.Fatalf("Load() error = %v, want keepalive duration error", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Parse([]byte("database:\n  path: x.db\nauth:\n  jwt_secret: s\n"), "yaml")
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"missing jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }, "auth.jwt_secret"},
		{"auth optional without secret", func(c *Config) {
			off := false
			c.Auth.RequireAuth = &off
			c.Auth.JWTSecret = ""
		}, ""},
		{"bad public url", func(c *Config) { c.Server.PublicURL = "not a url" }, "server.public_url"},
		{"resources without docs", func(c *Config) { c.MCP.EnableResources = true }, "mcp.docs_dir"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateBridge(t *testing.T) {
	cfg, err := Parse(nil, "yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := cfg.ValidateBridge(); err != nil {
		t.Fatalf("ValidateBridge() on defaults error = %v", err)
	}

	cfg.Bridge.MCPPath = "mcp"
	if err := cfg.ValidateBridge(); err == nil {
		t.Error("ValidateBridge() expected error for relative mcp_path")
	}
}

func TestSave_RoundTrip(t *testing.T) {
	for _, name := range []string{"out.yaml", "out.toml"} {
		t.Run(name, func(t *testing.T) {
			cfg, err := Parse([]byte("database:\n  path: x.db\nauth:\n  jwt_secret: s3cret\n"), "yaml")
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}

			path := filepath.Join(t.TempDir(), "nested", name)
			if err := cfg.Save(path); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("stat: %v", err)
			}
			if info.Mode().Perm() != 0o600 {
				t.Errorf("mode = %v, want 0600", info.Mode().Perm())
			}

			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if loaded.Auth.JWTSecret != "s3cret" || loaded.Database.Path != "x.db" {
				t.Errorf("round trip lost fields: %+v", loaded)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("EXPAND_A", "alpha")

	tests := []struct {
		in, want string
	}{
		{"${EXPAND_A}", "alpha"},
		{"x-${EXPAND_A}-y", "x-alpha-y"},
		{"${EXPAND_MISSING_ZZZ}", ""},
		{"$EXPAND_A", "$EXPAND_A"},
		{"no vars", "no vars"},
	}
	for _, tt := range tests {
		if got := expandEnvVars(tt.in); got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("ASSISTANT_CONFIG", "/etc/assistant.toml")
	if got := DefaultPath("assistant-core"); got != "/etc/assistant.toml" {
		t.Errorf("DefaultPath() = %q, want env override", got)
	}

	t.Setenv("ASSISTANT_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got, want := DefaultPath("assistant-bridge"), filepath.Join("/xdg", "assistant", "assistant-bridge.yaml"); got != want {
		t.Errorf("DefaultPath() = %q, want %q", got, want)
	}
}

func TestDataDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	if got, want := DataDir(), filepath.Join("/data", "assistant"); got != want {
		t.Errorf("DataDir() = %q, want %q", got, want)
	}
}
