// Package config loads the configuration shared by assistant-core and
// assistant-bridge.
//
// # File Formats
//
// Files ending in .toml are decoded as TOML; anything else is YAML. Before
// decoding, ${VAR} references are replaced with environment values (unset
// variables become empty strings).
//
// # Example
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  public_url: "https://assistant.example.com"
//
//	database:
//	  path: "/var/lib/assistant/assistant.db"
//
//	auth:
//	  jwt_secret: "${ASSISTANT_JWT_SECRET}"
//	  require_auth: true
//	  realm: "assistant-core"
//
//	mcp:
//	  server_name: "assistant-core"
//	  enable_resources: true
//	  docs_dir: "/etc/assistant/docs"
//	  minimal_descriptions: true
//
//	bridge:
//	  http_addr: "0.0.0.0:8081"
//	  server_url: "https://assistant.example.com"
//	  api_secret: "${ASSISTANT_API_SECRET}"
//	  grace_period: "5s"
//	  sweep_interval: "10s"
//	  keepalive: "5s"
//
//	logging:
//	  level: "info"
//	  format: "text"
//
// # Durations
//
// Duration settings are written as Go duration strings ("5s", "100ms") and
// parsed after decoding into the matching time.Duration field.
//
// # Defaults and Validation
//
// Load applies defaults for every optional field. It does not validate:
// the protocol server calls Validate and the bridge calls ValidateBridge,
// since each binary needs a different subset of the file.
package config
