// ABOUTME: Tests for the SSE bridge against a fake remote protocol server.
// ABOUTME: Covers credentials, normalization, buffering, expiry and stream delivery.

package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const (
	goodBearer = "Bearer good-token"
	goodKey    = "token abcdefghijklmnop:s3cret"
)

// fakeRemote is a minimal protocol server with an identity endpoint.
type fakeRemote struct {
	*httptest.Server

	mu    sync.Mutex
	calls []string
}

func newFakeRemote(t *testing.T) *fakeRemote {
	t.Helper()
	f := &fakeRemote{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/whoami", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != goodBearer {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"message":"abc"}`)
	})
	mux.HandleFunc("POST /mcp", func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth != goodBearer && auth != goodKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		req := gjson.ParseBytes(body)
		method := req.Get("method").String()

		f.mu.Lock()
		f.calls = append(f.calls, method)
		f.mu.Unlock()

		switch method {
		case "ping":
			_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":{}}`)
		case "initialize":
			_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":`+req.Get("id").Raw+`,"result":{"protocolVersion":"2025-03-26","capabilities":{"tools":{}},"serverInfo":{"name":"remote","version":"1"}}}`)
		case "notifications/initialized":
			w.WriteHeader(http.StatusAccepted)
		case "boom":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "kaboom")
		case "bare":
			_, _ = io.WriteString(w, `"just a string"`)
		case "wrapped":
			_, _ = io.WriteString(w, `{"message":{"result":{"ok":true}}}`)
		default:
			_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":`+req.Get("id").Raw+`,"result":{"content":[{"type":"text","text":"`+method+`"}]}}`)
		}
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeRemote) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testBridge struct {
	*Bridge
	remote *fakeRemote
	server *httptest.Server
	clock  *fakeClock
}

func newTestBridge(t *testing.T, mutate ...func(*Config)) *testBridge {
	t.Helper()
	remote := newFakeRemote(t)
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg := Config{
		ServerURL:      remote.URL,
		StabilizeDelay: time.Millisecond,
		Keepalive:      2 * time.Second,
		Now:            clock.Now,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	b := New(cfg)
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)
	return &testBridge{Bridge: b, remote: remote, server: srv, clock: clock}
}

func (tb *testBridge) post(t *testing.T, path, auth, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, tb.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

type sseEvent struct {
	name string
	data string
}

// openStream connects to the stream endpoint and returns its events.
func (tb *testBridge) openStream(t *testing.T, auth string) <-chan sseEvent {
	t.Helper()
	return tb.openStreamAt(t, "/mcp/sse", auth)
}

func (tb *testBridge) openStreamAt(t *testing.T, path, auth string) <-chan sseEvent {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tb.server.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", auth)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan sseEvent, 16)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		var ev sseEvent
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			case line == "":
				events <- ev
				ev = sseEvent{}
			}
		}
	}()
	return events
}

func nextEvent(t *testing.T, events <-chan sseEvent) sseEvent {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "stream closed")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return sseEvent{}
	}
}

func decodeBody(t *testing.T, resp *http.Response) gjson.Result {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return gjson.ParseBytes(body)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestSubmit_BuffersUntilStreamOpens(t *testing.T) {
	tb := newTestBridge(t)

	resp := tb.post(t, "/mcp/sse", goodBearer, `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"x"}}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "accepted", body.Get("status").String())
	assert.Equal(t, tb.server.URL+"/mcp/sse", body.Get("sse.url").String())
	assert.Equal(t, `["message","error","ping"]`, body.Get("sse.events").Raw)
	assert.Equal(t, 1, tb.Stats().PendingRequests)

	events := tb.openStream(t, goodBearer)
	ev := nextEvent(t, events)
	assert.Equal(t, "endpoint", ev.name)
	assert.True(t, strings.HasPrefix(ev.data, "/mcp/messages?session_id=user_abc_"))

	ev = nextEvent(t, events)
	assert.Equal(t, "message", ev.name)
	msg := gjson.Parse(ev.data)
	assert.Equal(t, int64(7), msg.Get("id").Int())
	assert.Equal(t, "tools/call", msg.Get("result.content.0.text").String())
	assert.Equal(t, 0, tb.Stats().PendingRequests)
}

func TestSubmit_ExpiredPendingIsNeverDelivered(t *testing.T) {
	tb := newTestBridge(t, func(c *Config) { c.Keepalive = 50 * time.Millisecond })

	resp := tb.post(t, "/mcp/sse", goodBearer, `{"jsonrpc":"2.0","id":1,"method":"tools/call"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	tb.clock.Advance(DefaultGracePeriod + time.Second)

	events := tb.openStream(t, goodBearer)
	assert.Equal(t, "endpoint", nextEvent(t, events).name)
	ev := nextEvent(t, events)
	assert.Equal(t, "ping", ev.name)
	assert.Equal(t, int64(1), gjson.Get(ev.data, "counter").Int())
	assert.Equal(t, int64(1), gjson.Get(ev.data, "active_connections").Int())
	assert.NotContains(t, tb.remote.methods(), "tools/call")
}

func TestSweep_DropsExpiredPending(t *testing.T) {
	tb := newTestBridge(t)

	tb.post(t, "/mcp/sse", goodBearer, `{"jsonrpc":"2.0","id":1,"method":"tools/call"}`)
	tb.clock.Advance(2 * time.Second)
	tb.post(t, "/mcp/sse", goodBearer, `{"jsonrpc":"2.0","id":2,"method":"tools/call"}`)
	require.Equal(t, 2, tb.Stats().PendingRequests)

	tb.clock.Advance(4 * time.Second)
	tb.sweep()
	assert.Equal(t, 1, tb.Stats().PendingRequests)

	tb.clock.Advance(10 * time.Second)
	tb.sweep()
	assert.Equal(t, 0, tb.Stats().PendingRequests)
}

func TestSubmit_DeliversToOpenStream(t *testing.T) {
	tb := newTestBridge(t)
	events := tb.openStream(t, goodBearer)
	require.Equal(t, "endpoint", nextEvent(t, events).name)
	waitFor(t, func() bool { return tb.Stats().ActiveConnections == 1 })

	resp := tb.post(t, "/mcp/sse", goodBearer, `{"jsonrpc":"2.0","id":"a","method":"tools/call"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	ev := nextEvent(t, events)
	assert.Equal(t, "message", ev.name)
	assert.Equal(t, "a", gjson.Get(ev.data, "id").String())
	assert.Equal(t, 0, tb.Stats().PendingRequests)
}

func TestSubmit_HandshakeAnsweredDirectly(t *testing.T) {
	tb := newTestBridge(t)

	resp := tb.post(t, "/mcp/sse", goodBearer, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "remote", body.Get("result.serverInfo.name").String())

	resp = tb.post(t, "/mcp/sse", goodBearer, `{"jsonrpc":"2.0","id":2,"method":"resources/list"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `[]`, decodeBody(t, resp).Get("result.resources").Raw)

	resp = tb.post(t, "/mcp/sse", goodBearer, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, 0, tb.Stats().PendingRequests)
}

func TestSubmit_Rejections(t *testing.T) {
	tb := newTestBridge(t)

	resp := tb.post(t, "/mcp/sse", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = tb.post(t, "/mcp/sse", "Bearer nope", `{}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = tb.post(t, "/mcp/sse", goodBearer, `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = tb.post(t, "/mcp/sse?server=ftp://example.com", goodBearer, `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServerURL_Required(t *testing.T) {
	tb := newTestBridge(t, func(c *Config) { c.ServerURL = "" })

	resp := tb.post(t, "/mcp/request", goodBearer, `{"jsonrpc":"2.0","id":1,"method":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "server parameter required", decodeBody(t, resp).Get("error").String())

	resp = tb.post(t, "/mcp/request?server_url="+tb.remote.URL, goodBearer, `{"jsonrpc":"2.0","id":1,"method":"x"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLastRegistrationWins(t *testing.T) {
	tb := newTestBridge(t)

	first := tb.openStream(t, goodBearer)
	firstEndpoint := nextEvent(t, first)
	second := tb.openStream(t, goodBearer)
	require.Equal(t, "endpoint", nextEvent(t, second).name)
	waitFor(t, func() bool {
		c := tb.state.current("user_abc")
		return c != nil && !strings.HasSuffix(firstEndpoint.data, c.id)
	})

	tb.post(t, "/mcp/sse", goodBearer, `{"jsonrpc":"2.0","id":3,"method":"tools/call"}`)
	ev := nextEvent(t, second)
	assert.Equal(t, "message", ev.name)
	assert.Equal(t, int64(3), gjson.Get(ev.data, "id").Int())

	// The replaced session can no longer submit messages.
	resp := tb.post(t, firstEndpoint.data, goodBearer, `{"jsonrpc":"2.0","id":4,"method":"tools/call"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionMessage(t *testing.T) {
	tb := newTestBridge(t)
	events := tb.openStream(t, goodBearer)
	endpoint := nextEvent(t, events).data

	resp := tb.post(t, endpoint, goodBearer, `{"jsonrpc":"2.0","id":11,"method":"tools/call"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "accepted", body.Get("status").String())
	assert.Equal(t, int64(11), body.Get("id").Int())

	ev := nextEvent(t, events)
	assert.Equal(t, "message", ev.name)
	assert.Equal(t, int64(11), gjson.Get(ev.data, "id").Int())

	// A different user cannot post into this session.
	resp = tb.post(t, endpoint, goodKey, `{"jsonrpc":"2.0","id":12,"method":"tools/call"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = tb.post(t, "/mcp/messages?session_id=unknown", goodBearer, `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid session ID or no active connection", decodeBody(t, resp).Get("error").String())
}

func TestStreamClose_UnregistersConnection(t *testing.T) {
	tb := newTestBridge(t)

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tb.server.URL+"/mcp/sse", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", goodBearer)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	waitFor(t, func() bool { return tb.Stats().ActiveConnections == 1 })
	cancel()
	waitFor(t, func() bool { return tb.Stats().ActiveConnections == 0 })
}

func TestRequest_ErrorNormalization(t *testing.T) {
	tb := newTestBridge(t)

	resp := tb.post(t, "/mcp/request", goodBearer, `{"jsonrpc":"2.0","id":5,"method":"boom"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, int64(-32603), body.Get("error.code").Int())
	assert.Equal(t, "Server error: 500", body.Get("error.message").String())
	assert.Equal(t, "kaboom", body.Get("error.data").String())
	assert.Equal(t, int64(5), body.Get("id").Int())

	resp = tb.post(t, "/mcp/request", goodBearer, `{"jsonrpc":"2.0","id":6,"method":"bare"}`)
	body = decodeBody(t, resp)
	assert.Equal(t, "just a string", body.Get("result").String())
	assert.Equal(t, int64(6), body.Get("id").Int())

	resp = tb.post(t, "/mcp/request", goodBearer, `{"jsonrpc":"2.0","id":8,"method":"wrapped"}`)
	body = decodeBody(t, resp)
	assert.True(t, body.Get("result.ok").Bool())
	assert.Equal(t, "2.0", body.Get("jsonrpc").String())
	assert.Equal(t, int64(8), body.Get("id").Int())
}

func TestRequest_UnreachableServer(t *testing.T) {
	tb := newTestBridge(t)
	p := &principal{UserContext: "user_abc", Authorization: goodBearer}

	out := tb.process(context.Background(), &rpcRequest{raw: []byte(`{}`), method: "tools/call", id: "9"}, "http://127.0.0.1:1", p.Authorization)
	r := gjson.ParseBytes(out)
	assert.Equal(t, int64(-32603), r.Get("error.code").Int())
	assert.Equal(t, "Internal error", r.Get("error.message").String())
	assert.NotEmpty(t, r.Get("error.data").String())
}

func TestHealth(t *testing.T) {
	tb := newTestBridge(t)
	resp, err := http.Get(tb.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, ServerName, body["service"])
	assert.Equal(t, float64(0), body["active_connections"])
	assert.Equal(t, float64(0), body["pending_requests"])
}

func TestPreflight(t *testing.T) {
	tb := newTestBridge(t)
	req, err := http.NewRequest(http.MethodOptions, tb.server.URL+"/mcp/sse", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestStream_OtherServerCannotClaimUser(t *testing.T) {
	tb := newTestBridge(t)

	// A server that vouches for anyone as the default server's user.
	impostor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"message":"abc"}`)
	}))
	t.Cleanup(impostor.Close)

	stolen := tb.openStreamAt(t, "/mcp/sse?server="+impostor.URL, "Bearer anything")
	endpoint := nextEvent(t, stolen)
	require.Equal(t, "endpoint", endpoint.name)
	assert.Contains(t, endpoint.data, url.QueryEscape("@"+strings.TrimPrefix(impostor.URL, "http://")))
	assert.Nil(t, tb.state.current("user_abc"))

	resp := tb.post(t, "/mcp/sse", goodBearer, `{"jsonrpc":"2.0","id":7,"method":"secret/data"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, 1, tb.Stats().PendingRequests)

	own := tb.openStream(t, goodBearer)
	require.Equal(t, "endpoint", nextEvent(t, own).name)
	ev := nextEvent(t, own)
	assert.Equal(t, "message", ev.name)
	assert.Equal(t, "secret/data", gjson.Get(ev.data, "result.content.0.text").String())

	select {
	case ev := <-stolen:
		assert.NotEqual(t, "message", ev.name, "response leaked to another server's stream")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestProcess_SurvivesCallerCancellation(t *testing.T) {
	tb := newTestBridge(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := tb.process(ctx, &rpcRequest{raw: []byte(`{"jsonrpc":"2.0","id":4,"method":"tools/call"}`), method: "tools/call", id: "4"}, tb.remote.URL, goodBearer)
	r := gjson.ParseBytes(out)
	assert.False(t, r.Get("error").Exists(), string(out))
	assert.Equal(t, "tools/call", r.Get("result.content.0.text").String())
	assert.Equal(t, []string{"tools/call"}, tb.remote.methods())
}
