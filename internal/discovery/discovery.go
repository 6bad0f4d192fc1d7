// ABOUTME: OAuth/OIDC discovery, protected-resource metadata, and MCP discovery endpoints.
// ABOUTME: Anonymous, CORS-enabled GET handlers with an hour of public caching.

package discovery

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Endpoint paths served by the handler.
const (
	PathOpenIDConfiguration = "/.well-known/openid-configuration"
	PathAuthorizationServer = "/.well-known/oauth-authorization-server"
	PathProtectedResource   = "/.well-known/oauth-protected-resource"
	PathJWKS                = "/api/discovery/jwks"
	PathMCP                 = "/api/discovery/mcp"
)

// Transport advertised for the MCP endpoint.
const Transport = "StreamableHTTP"

// Config describes the deployment being advertised.
type Config struct {
	PublicURL        string // base URL of this server
	Issuer           string // OAuth issuer; defaults to PublicURL
	MCPPath          string // defaults to /mcp
	ProtocolVersion  string
	ServerName       string
	ServerVersion    string
	ResourcesEnabled bool
}

// OpenIDConfiguration is the /.well-known/openid-configuration document.
type OpenIDConfiguration struct {
	AuthorizationServerMetadata
	UserinfoEndpoint                 string   `json:"userinfo_endpoint"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	MCPEndpoint                      string   `json:"mcp_endpoint"`
	MCPTransport                     string   `json:"mcp_transport"`
	MCPProtocolVersion               string   `json:"mcp_protocol_version"`
}

// AuthorizationServerMetadata is the RFC 8414 document.
type AuthorizationServerMetadata struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	RevocationEndpoint            string   `json:"revocation_endpoint"`
	IntrospectionEndpoint         string   `json:"introspection_endpoint"`
	JWKSURI                       string   `json:"jwks_uri"`
	ResponseTypesSupported        []string `json:"response_types_supported"`
	GrantTypesSupported           []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`
}

// ProtectedResourceMetadata is the RFC 9728 document for the MCP endpoint.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
	ResourceName           string   `json:"resource_name"`
}

// MCPDiscovery is the /api/discovery/mcp document.
type MCPDiscovery struct {
	MCPEndpoint        string          `json:"mcp_endpoint"`
	MCPTransport       string          `json:"mcp_transport"`
	MCPProtocolVersion string          `json:"mcp_protocol_version"`
	OAuthMetadataURL   string          `json:"oauth_metadata_url"`
	Capabilities       map[string]bool `json:"capabilities"`
	ServerInfo         ServerInfo      `json:"server_info"`
}

// ServerInfo names the server in MCPDiscovery.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Handler serves the discovery documents.
type Handler struct {
	cfg Config
}

// New creates a discovery handler.
func New(cfg Config) *Handler {
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	if cfg.Issuer == "" {
		cfg.Issuer = cfg.PublicURL
	}
	cfg.Issuer = strings.TrimRight(cfg.Issuer, "/")
	if cfg.MCPPath == "" {
		cfg.MCPPath = "/mcp"
	}
	return &Handler{cfg: cfg}
}

// RegisterRoutes registers every discovery endpoint on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(PathOpenIDConfiguration, h.serve(func() any { return h.OpenIDConfiguration() }))
	mux.HandleFunc(PathAuthorizationServer, h.serve(func() any { return h.AuthorizationServer() }))
	mux.HandleFunc(PathProtectedResource, h.serve(func() any { return h.ProtectedResource() }))
	mux.HandleFunc(PathJWKS, h.serve(func() any { return map[string][]any{"keys": {}} }))
	mux.HandleFunc(PathMCP, h.serve(func() any { return h.MCP() }))
}

// AuthorizationServer builds the authorization server metadata.
func (h *Handler) AuthorizationServer() AuthorizationServerMetadata {
	iss := h.cfg.Issuer
	return AuthorizationServerMetadata{
		Issuer:                        iss,
		AuthorizationEndpoint:         iss + "/oauth/authorize",
		TokenEndpoint:                 iss + "/oauth/token",
		RevocationEndpoint:            iss + "/oauth/revoke",
		IntrospectionEndpoint:         iss + "/oauth/introspect",
		JWKSURI:                       h.cfg.PublicURL + PathJWKS,
		ResponseTypesSupported:        []string{"code"},
		GrantTypesSupported:           []string{"authorization_code", "refresh_token"},
		CodeChallengeMethodsSupported: []string{"S256"},
	}
}

// OpenIDConfiguration builds the OIDC discovery document.
func (h *Handler) OpenIDConfiguration() OpenIDConfiguration {
	as := h.AuthorizationServer()
	as.ResponseTypesSupported = []string{
		"code",
		"token",
		"code id_token",
		"code token id_token",
		"id_token",
		"id_token token",
	}
	return OpenIDConfiguration{
		AuthorizationServerMetadata:      as,
		UserinfoEndpoint:                 h.cfg.Issuer + "/oauth/userinfo",
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{"HS256"},
		MCPEndpoint:                      h.mcpEndpoint(),
		MCPTransport:                     Transport,
		MCPProtocolVersion:               h.cfg.ProtocolVersion,
	}
}

// ProtectedResource builds the protected-resource metadata for the MCP endpoint.
func (h *Handler) ProtectedResource() ProtectedResourceMetadata {
	return ProtectedResourceMetadata{
		Resource:               h.mcpEndpoint(),
		AuthorizationServers:   []string{h.cfg.Issuer},
		BearerMethodsSupported: []string{"header"},
		ResourceName:           h.cfg.ServerName,
	}
}

// MCP builds the MCP discovery document.
func (h *Handler) MCP() MCPDiscovery {
	return MCPDiscovery{
		MCPEndpoint:        h.mcpEndpoint(),
		MCPTransport:       Transport,
		MCPProtocolVersion: h.cfg.ProtocolVersion,
		OAuthMetadataURL:   h.cfg.PublicURL + PathOpenIDConfiguration,
		Capabilities: map[string]bool{
			"tools":     true,
			"prompts":   false,
			"resources": h.cfg.ResourcesEnabled,
			"streaming": false,
		},
		ServerInfo: ServerInfo{Name: h.cfg.ServerName, Version: h.cfg.ServerVersion},
	}
}

func (h *Handler) mcpEndpoint() string {
	return h.cfg.PublicURL + h.cfg.MCPPath
}

func (h *Handler) serve(build func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
			return
		case http.MethodGet, http.MethodHead:
		default:
			w.Header().Set("Allow", "GET, OPTIONS")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_ = json.NewEncoder(w).Encode(build())
	}
}
