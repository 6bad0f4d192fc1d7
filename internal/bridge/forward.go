// ABOUTME: Forwarding of JSON-RPC requests to the remote protocol server.
// ABOUTME: Remote replies are normalized into JSON-RPC envelopes with gjson/sjson.

package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// JSON-RPC error code used for every bridge-side failure.
const codeInternalError = -32603

// maxBodySize bounds both inbound request bodies and remote replies.
const maxBodySize = 1 << 20

// ErrInvalidJSON is returned for request bodies that are not a JSON object.
var ErrInvalidJSON = errors.New("invalid JSON in request body")

// rpcRequest is an inbound JSON-RPC request kept in its raw form.
type rpcRequest struct {
	raw    []byte
	method string
	id     string // raw JSON of the id, empty when absent
}

func parseRequest(body []byte) (*rpcRequest, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidJSON
	}
	r := gjson.ParseBytes(body)
	if !r.IsObject() {
		return nil, ErrInvalidJSON
	}
	req := &rpcRequest{raw: body, method: r.Get("method").String()}
	if id := r.Get("id"); id.Exists() {
		req.id = id.Raw
	}
	return req, nil
}

func (r *rpcRequest) isNotification() bool {
	return strings.HasPrefix(r.method, "notifications/")
}

// idOrNull returns the raw id, or null when the request carried none.
func (r *rpcRequest) idOrNull() []byte {
	if r.id == "" {
		return []byte("null")
	}
	return []byte(r.id)
}

// errorResponse builds a JSON-RPC error envelope for id.
func errorResponse(id []byte, code int, message string, data any) []byte {
	out := []byte(`{"jsonrpc":"2.0"}`)
	out, _ = sjson.SetRawBytes(out, "id", id)
	out, _ = sjson.SetBytes(out, "error.code", code)
	out, _ = sjson.SetBytes(out, "error.message", message)
	if data != nil {
		out, _ = sjson.SetBytes(out, "error.data", data)
	}
	return out
}

// resultResponse wraps an arbitrary JSON value as the result of id.
func resultResponse(id []byte, result string) []byte {
	out := []byte(`{"jsonrpc":"2.0"}`)
	out, _ = sjson.SetRawBytes(out, "id", id)
	out, _ = sjson.SetRawBytes(out, "result", []byte(result))
	return out
}

// normalize coerces a remote reply into a JSON-RPC response for req.
func normalize(body []byte, req *rpcRequest) []byte {
	if !gjson.ValidBytes(body) {
		return errorResponse(req.idOrNull(), codeInternalError, "Internal error", "invalid JSON from server")
	}
	payload := gjson.ParseBytes(body)
	if payload.IsObject() {
		if inner := payload.Get("message"); inner.Exists() {
			payload = inner
		}
	}
	if !payload.IsObject() {
		return resultResponse(req.idOrNull(), payload.Raw)
	}
	if !payload.Get("result").Exists() && !payload.Get("error").Exists() {
		return resultResponse(req.idOrNull(), payload.Raw)
	}

	out := []byte(payload.Raw)
	if !payload.Get("jsonrpc").Exists() {
		out, _ = sjson.SetBytes(out, "jsonrpc", "2.0")
	}
	if req.id != "" && !payload.Get("id").Exists() {
		out, _ = sjson.SetRawBytes(out, "id", []byte(req.id))
	}
	return out
}

// forwarder posts requests to the remote protocol endpoint.
type forwarder struct {
	client  *http.Client
	mcpPath string
	timeout time.Duration
}

func (f *forwarder) endpoint(server string) string {
	return server + f.mcpPath
}

func (f *forwarder) post(ctx context.Context, server, auth string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint(server), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	return f.client.Do(req)
}

// send forwards req and always returns a JSON-RPC response.
func (f *forwarder) send(ctx context.Context, server, auth string, req *rpcRequest) []byte {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.post(ctx, server, auth, req.raw)
	if err != nil {
		return errorResponse(req.idOrNull(), codeInternalError, "Internal error", err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return errorResponse(req.idOrNull(), codeInternalError, "Internal error", err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		// A JSON-RPC error envelope is a complete answer whatever the status.
		if r := gjson.ParseBytes(body); gjson.ValidBytes(body) && r.Get("error.code").Exists() {
			return normalize(body, req)
		}
		return errorResponse(req.idOrNull(), codeInternalError,
			fmt.Sprintf("Server error: %d", resp.StatusCode), string(body))
	}
	return normalize(body, req)
}

// notify forwards a notification and discards the reply.
func (f *forwarder) notify(ctx context.Context, server, auth string, req *rpcRequest) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.post(ctx, server, auth, req.raw)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return nil
}
