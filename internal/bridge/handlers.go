// ABOUTME: HTTP handlers for the bridge: stream, submit, session message and health.
// ABOUTME: Every request is authenticated against the remote server first.

package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// RegisterRoutes mounts the bridge endpoints on mux.
func (b *Bridge) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /mcp/sse", b.handleStream)
	mux.HandleFunc("POST /mcp/sse", b.handleSubmit)
	mux.HandleFunc("POST /mcp/messages", b.handleSessionMessage)
	mux.HandleFunc("POST /mcp/request", b.handleRequest)
	mux.HandleFunc("GET /health", b.handleHealth)
	mux.HandleFunc("OPTIONS /", handlePreflight)
}

// Handler returns the bridge endpoints wrapped in CORS headers.
func (b *Bridge) Handler() http.Handler {
	mux := http.NewServeMux()
	b.RegisterRoutes(mux)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)
		mux.ServeHTTP(w, r)
	})
}

func setCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
}

func handlePreflight(w http.ResponseWriter, _ *http.Request) {
	setCORS(w)
	w.WriteHeader(http.StatusNoContent)
}

// serverURL picks the remote server for r: the server or server_url query
// parameter, then the configured default.
func (b *Bridge) serverURL(r *http.Request) (string, error) {
	q := r.URL.Query()
	raw := q.Get("server")
	if raw == "" {
		raw = q.Get("server_url")
	}
	if raw == "" {
		raw = b.cfg.ServerURL
	}
	if raw == "" {
		return "", errors.New("server parameter required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid server URL: %s", raw)
	}
	return strings.TrimRight(raw, "/"), nil
}

// authenticate resolves the server and caller, writing the error response on failure.
func (b *Bridge) authenticate(w http.ResponseWriter, r *http.Request) (string, *principal, bool) {
	server, err := b.serverURL(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", nil, false
	}
	p, err := b.creds.validate(r.Context(), server, r.Header.Get("Authorization"))
	if err != nil {
		b.logger.Warn("credential validation failed", "server", server, "error", err)
		writeError(w, http.StatusUnauthorized, "Invalid or missing authorization token")
		return "", nil, false
	}
	return server, p, true
}

func readRequest(w http.ResponseWriter, r *http.Request) (*rpcRequest, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	req, err := parseRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return req, true
}

func (b *Bridge) handleStream(w http.ResponseWriter, r *http.Request) {
	server, p, ok := b.authenticate(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	conn := &connection{
		id:          newConnectionID(p.UserContext),
		userContext: p.UserContext,
		server:      server,
		auth:        p.Authorization,
		opened:      b.now(),
		queue:       newQueue(),
	}
	if old := b.state.open(conn); old != nil {
		b.logger.Info("replacing stream", "user_context", p.UserContext, "old_connection_id", old.id)
	}
	b.logger.Info("stream opened", "connection_id", conn.id, "user_context", conn.userContext)
	defer func() {
		b.state.close(conn)
		b.logger.Info("stream closed", "connection_id", conn.id)
	}()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "Authorization")
	w.WriteHeader(http.StatusOK)

	endpoint := "/mcp/messages?session_id=" + url.QueryEscape(conn.id)
	if err := writeSSEEvent(w, flusher, "endpoint", []byte(endpoint)); err != nil {
		return
	}

	ctx := r.Context()
	if !sleepCtx(ctx, b.cfg.StabilizeDelay) {
		return
	}
	b.drain(ctx, conn.userContext)
	b.stream(ctx, w, flusher, conn)
}

type submitAccepted struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	SSE     sseInfo `json:"sse"`
}

type sseInfo struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

func (b *Bridge) handleSubmit(w http.ResponseWriter, r *http.Request) {
	server, p, ok := b.authenticate(w, r)
	if !ok {
		return
	}
	req, ok := readRequest(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if req.isNotification() {
		b.forwardNotification(r, server, p.Authorization, req)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		return
	}
	if handshakeMethods[req.method] {
		writeRaw(w, http.StatusOK, b.process(ctx, req, server, p.Authorization))
		return
	}

	pending := &pendingRequest{req: req, server: server, auth: p.Authorization, received: b.now()}
	if conn := b.state.connectionOrBuffer(p.UserContext, pending); conn != nil {
		resp := b.process(ctx, req, server, p.Authorization)
		if !b.state.deliver(p.UserContext, resp) {
			b.logger.Warn("stream closed before response delivery", "user_context", p.UserContext, "method", req.method)
		}
	} else {
		b.logger.Debug("buffered request until stream opens", "user_context", p.UserContext, "method", req.method)
	}

	writeJSON(w, http.StatusAccepted, submitAccepted{
		Status:  "accepted",
		Message: "Response will be sent via SSE stream",
		SSE: sseInfo{
			URL:    b.streamURL(r),
			Events: []string{"message", "error", "ping"},
		},
	})
}

func (b *Bridge) handleSessionMessage(w http.ResponseWriter, r *http.Request) {
	conn := b.state.session(r.URL.Query().Get("session_id"))
	if conn == nil {
		writeError(w, http.StatusBadRequest, "Invalid session ID or no active connection")
		return
	}
	p, err := b.creds.validate(r.Context(), conn.server, r.Header.Get("Authorization"))
	if err != nil || p.UserContext != conn.userContext {
		writeError(w, http.StatusUnauthorized, "Invalid or missing authorization token")
		return
	}
	req, ok := readRequest(w, r)
	if !ok {
		return
	}

	if req.isNotification() {
		b.forwardNotification(r, conn.server, conn.auth, req)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		return
	}

	resp := b.process(r.Context(), req, conn.server, conn.auth)
	if !b.state.deliver(conn.userContext, resp) {
		b.logger.Warn("stream closed before response delivery", "connection_id", conn.id, "method", req.method)
	}
	writeJSON(w, http.StatusAccepted, struct {
		Status string          `json:"status"`
		ID     json.RawMessage `json:"id"`
	}{"accepted", req.idOrNull()})
}

func (b *Bridge) handleRequest(w http.ResponseWriter, r *http.Request) {
	server, p, ok := b.authenticate(w, r)
	if !ok {
		return
	}
	req, ok := readRequest(w, r)
	if !ok {
		return
	}
	if req.isNotification() {
		b.forwardNotification(r, server, p.Authorization, req)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		return
	}
	writeRaw(w, http.StatusOK, b.process(r.Context(), req, server, p.Authorization))
}

func (b *Bridge) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s := b.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"service":            ServerName,
		"active_connections": s.ActiveConnections,
		"pending_requests":   s.PendingRequests,
	})
}

func (b *Bridge) forwardNotification(r *http.Request, server, auth string, req *rpcRequest) {
	if err := b.forwarder.notify(r.Context(), server, auth, req); err != nil {
		b.logger.Warn("notification forward failed", "method", req.method, "error", err)
	}
}

// streamURL is the absolute URL of the stream endpoint as seen by the client.
func (b *Bridge) streamURL(r *http.Request) string {
	if b.cfg.PublicURL != "" {
		return b.cfg.PublicURL + "/mcp/sse"
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host + "/mcp/sse"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
