// ABOUTME: JSON-RPC 2.0 envelope types, error codes and the closed MCP method set.
// ABOUTME: Requests remember whether an id was present so notifications can be told apart.

package mcp

import (
	"bytes"
	"encoding/json"
	"strings"
)

// JSONRPCVersion is the only protocol version accepted and emitted.
const JSONRPCVersion = "2.0"

// NotificationPrefix marks methods that never receive a response body.
const NotificationPrefix = "notifications/"

// Standard JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// Request is a decoded JSON-RPC request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// HasID reports whether the request carries a non-null id.
func (r *Request) HasID() bool {
	return len(r.ID) > 0 && !bytes.Equal(bytes.TrimSpace(r.ID), []byte("null"))
}

// IsNotification reports whether the method is in the notification namespace.
func (r *Request) IsNotification() bool {
	return strings.HasPrefix(r.Method, NotificationPrefix)
}

// Response is a JSON-RPC response envelope. Exactly one of Result or Error is
// set. ID is always emitted, as null when unknown.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// NewResult builds a success envelope.
func NewResult(id json.RawMessage, result any) *Response {
	if result == nil {
		result = struct{}{}
	}
	return &Response{JSONRPC: JSONRPCVersion, ID: normalizeID(id), Result: result}
}

// NewError builds an error envelope.
func NewError(id json.RawMessage, code int, message string, data any) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      normalizeID(id),
		Error:   &Error{Code: code, Message: message, Data: data},
	}
}

func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

// Method is the closed set of methods the server routes.
type Method int

const (
	MethodUnknown Method = iota
	MethodInitialize
	MethodToolsList
	MethodToolsCall
	MethodPing
	MethodResourcesList
	MethodResourcesRead
)

var methodNames = map[Method]string{
	MethodInitialize:    "initialize",
	MethodToolsList:     "tools/list",
	MethodToolsCall:     "tools/call",
	MethodPing:          "ping",
	MethodResourcesList: "resources/list",
	MethodResourcesRead: "resources/read",
}

var methodsByName = func() map[string]Method {
	m := make(map[string]Method, len(methodNames))
	for k, v := range methodNames {
		m[v] = k
	}
	return m
}()

// ParseMethod maps a wire method name to a Method. Unrecognized names map to
// MethodUnknown.
func ParseMethod(name string) Method {
	return methodsByName[name]
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return "unknown"
}

// MCP result and param shapes

// ServerInfo identifies the server in the initialize result.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the result of initialize. Capabilities are empty objects.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

// Capabilities advertised in initialize.
type Capabilities struct {
	Tools     struct{} `json:"tools"`
	Prompts   struct{} `json:"prompts"`
	Resources struct{} `json:"resources"`
}

// ToolInfo is one tools/list entry.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
	Annotations map[string]any  `json:"annotations,omitempty"`
}

// ListToolsResult is the result of tools/list.
type ListToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

// CallToolResult is the result of tools/call. IsError is always emitted.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

// Content is a single piece of tool output.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ReadResourceParams are the params of resources/read.
type ReadResourceParams struct {
	URI string `json:"uri"`
}

func textResult(text string, isError bool) *CallToolResult {
	return &CallToolResult{
		Content: []Content{{Type: "text", Text: text}},
		IsError: isError,
	}
}
