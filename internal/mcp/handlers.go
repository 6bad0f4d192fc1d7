// ABOUTME: Method handlers for initialize, tools/*, and resources/*.
// ABOUTME: Tool failures are reported in-band with isError, never as JSON-RPC errors.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/2389/assistant-core/internal/resources"
	"github.com/2389/assistant-core/internal/tools"
)

// ListResourcesResult is the result of resources/list.
type ListResourcesResult struct {
	Resources []resources.Resource `json:"resources"`
}

// ReadResourceResult is the result of resources/read.
type ReadResourceResult struct {
	Contents []resources.Content `json:"contents"`
}

func (s *Server) initializeResult() InitializeResult {
	return InitializeResult{
		ProtocolVersion: s.info.ProtocolVersion,
		ServerInfo: ServerInfo{
			Name:    s.info.Name,
			Version: s.info.Version,
		},
	}
}

func (s *Server) listTools(ctx context.Context, reg *tools.Registry, caller tools.Caller) ListToolsResult {
	visible := reg.List(ctx, caller)
	result := ListToolsResult{Tools: make([]ToolInfo, 0, len(visible))}
	for _, d := range visible {
		desc := d.Description
		if s.minimal && s.resources != nil && s.resources.Has(d.Name) {
			desc = resources.Summarize(d.Name, desc)
		}
		result.Tools = append(result.Tools, ToolInfo{
			Name:        d.Name,
			Description: desc,
			InputSchema: d.Schema(),
			Annotations: d.Annotations,
		})
	}

	s.logger.Debug("tools/list", "count", len(result.Tools), "user_id", caller.UserID)
	return result
}

func (s *Server) callTool(ctx context.Context, reg *tools.Registry, caller tools.Caller, req *Request) *Response {
	name, args, argErr := parseCallParams(req.Params)

	start := time.Now()
	var result *CallToolResult
	switch {
	case name == "":
		result = notFound(name)
	case argErr != nil && !s.callable(ctx, reg, caller, name):
		result = notFound(name)
	case argErr != nil:
		result = textResult(fmt.Sprintf("Error executing %s: %s", name, argErr), true)
	default:
		out, err := runTool(ctx, reg, caller, name, args)
		switch {
		case err == nil:
			result = textResult(ToText(out), false)
		case errors.Is(err, tools.ErrToolNotFound), errors.Is(err, tools.ErrToolNotAccessible):
			// Inaccessible tools are indistinguishable from unknown ones.
			result = notFound(name)
		default:
			s.logger.Warn("tool execution failed",
				"tool_name", name,
				"user_id", caller.UserID,
				"error", err,
			)
			result = textResult(formatToolError(name, err), true)
		}
	}
	elapsed := time.Since(start)

	s.logger.Debug("tools/call complete",
		"tool_name", name,
		"is_error", result.IsError,
		"duration", elapsed,
	)

	if s.onToolCall != nil {
		s.onToolCall(ctx, CallRecord{
			UserID:   caller.UserID,
			ToolName: name,
			IsError:  result.IsError,
			Duration: elapsed.Milliseconds(),
		})
	}

	return NewResult(req.ID, result)
}

// callable reports whether name resolves to a tool the caller may use.
func (s *Server) callable(ctx context.Context, reg *tools.Registry, caller tools.Caller, name string) bool {
	d, err := reg.Resolve(name)
	return err == nil && reg.Accessible(ctx, caller, d)
}

func notFound(name string) *CallToolResult {
	return textResult(fmt.Sprintf("Tool '%s' not found", name), true)
}

// parseCallParams extracts the tool name and arguments of tools/call. A
// missing or malformed name comes back empty. Arguments that are not a JSON
// object yield a non-nil error, reported in-band by the caller.
func parseCallParams(raw json.RawMessage) (string, map[string]any, error) {
	var p struct {
		Name      json.RawMessage `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &p) != nil {
		return "", nil, nil
	}

	var name string
	if len(p.Name) > 0 && string(p.Name) != "null" {
		if err := json.Unmarshal(p.Name, &name); err != nil {
			name = string(p.Name)
		}
	}

	var args map[string]any
	if len(p.Arguments) > 0 && string(p.Arguments) != "null" {
		if err := json.Unmarshal(p.Arguments, &args); err != nil {
			return name, nil, errors.New("arguments must be a JSON object")
		}
	}
	return name, args, nil
}

// panicError carries a recovered tool panic and the stack at the point of recovery.
type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

// runTool invokes a tool, converting a panic into an error.
func runTool(ctx context.Context, reg *tools.Registry, caller tools.Caller, name string, args map[string]any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return reg.Invoke(ctx, caller, name, args)
}

// formatToolError renders a tool failure with its message and trace.
func formatToolError(name string, err error) string {
	var trace string
	var pe *panicError
	if errors.As(err, &pe) {
		trace = string(pe.stack)
	} else {
		trace = fmt.Sprintf("%+v", err)
	}
	return fmt.Sprintf("Error executing %s: %s\n\nTraceback:\n%s", name, err.Error(), trace)
}

func (s *Server) listResources(ctx context.Context, req *Request) *Response {
	if s.resources == nil {
		return NewResult(req.ID, ListResourcesResult{Resources: []resources.Resource{}})
	}
	list, err := s.resources.List(ctx)
	if err != nil {
		s.logger.Error("listing resources", "error", err)
		return NewError(req.ID, JSONRPCInternalError, "Internal error", nil)
	}
	if list == nil {
		list = []resources.Resource{}
	}
	return NewResult(req.ID, ListResourcesResult{Resources: list})
}

func (s *Server) readResource(ctx context.Context, req *Request) *Response {
	var params ReadResourceParams
	if len(req.Params) > 0 {
		// Malformed params are treated the same as a missing uri.
		_ = json.Unmarshal(req.Params, &params)
	}
	if params.URI == "" {
		return NewError(req.ID, JSONRPCInvalidParams, "Missing required parameter: uri", nil)
	}
	if s.resources == nil {
		return NewError(req.ID, JSONRPCInvalidParams, "Resource not found: "+params.URI, nil)
	}

	content, err := s.resources.Read(ctx, params.URI)
	if err != nil {
		s.logger.Debug("resources/read failed", "uri", params.URI, "error", err)
		return NewError(req.ID, JSONRPCInvalidParams, "Resource not found: "+params.URI, nil)
	}
	return NewResult(req.ID, ReadResourceResult{Contents: []resources.Content{*content}})
}
