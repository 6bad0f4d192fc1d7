// ABOUTME: SSE bridge wiring: configuration, request processing and the pending sweeper.
// ABOUTME: Requests are answered directly or delivered to the caller's event stream.

package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/2389/assistant-core/internal/logging"
	"github.com/2389/assistant-core/internal/mcp"
)

// Identity advertised by the locally synthesized initialize result.
const (
	ServerName    = "assistant-bridge"
	ServerVersion = "2.0.0"
)

// Defaults applied by New to zero Config fields.
const (
	DefaultMCPPath         = "/mcp"
	DefaultIdentityPath    = "/api/whoami"
	DefaultGracePeriod     = 5 * time.Second
	DefaultSweepInterval   = 10 * time.Second
	DefaultKeepalive       = 5 * time.Second
	DefaultStabilizeDelay  = 100 * time.Millisecond
	DefaultRequestTimeout  = 30 * time.Second
	DefaultValidateTimeout = 10 * time.Second
)

// Config configures a Bridge.
type Config struct {
	// ServerURL is the remote server used when a request names none.
	ServerURL string
	// PublicURL is this bridge's externally visible base URL.
	PublicURL    string
	MCPPath      string
	IdentityPath string
	// APISecret turns bare API keys into key:secret credentials.
	APISecret string

	GracePeriod     time.Duration
	SweepInterval   time.Duration
	Keepalive       time.Duration
	StabilizeDelay  time.Duration
	RequestTimeout  time.Duration
	ValidateTimeout time.Duration

	// HTTPClient overrides the outbound client; it defaults to one with a
	// logging transport.
	HTTPClient *http.Client
	Logger     *slog.Logger
	// Now overrides the clock used for pending-request ages.
	Now func() time.Time
}

// Stats is a snapshot of bridge occupancy.
type Stats struct {
	ActiveConnections int `json:"active_connections"`
	PendingRequests   int `json:"pending_requests"`
}

// Bridge fronts a request/response protocol server with SSE streams.
type Bridge struct {
	cfg       Config
	state     *state
	forwarder *forwarder
	creds     *credentialValidator
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Bridge, filling unset fields with defaults.
func New(cfg Config) *Bridge {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("component", "bridge")

	if cfg.MCPPath == "" {
		cfg.MCPPath = DefaultMCPPath
	}
	if cfg.IdentityPath == "" {
		cfg.IdentityPath = DefaultIdentityPath
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	defaultDuration(&cfg.GracePeriod, DefaultGracePeriod)
	defaultDuration(&cfg.SweepInterval, DefaultSweepInterval)
	defaultDuration(&cfg.Keepalive, DefaultKeepalive)
	defaultDuration(&cfg.StabilizeDelay, DefaultStabilizeDelay)
	defaultDuration(&cfg.RequestTimeout, DefaultRequestTimeout)
	defaultDuration(&cfg.ValidateTimeout, DefaultValidateTimeout)

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Transport: logging.Transport(logger, nil)}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Bridge{
		cfg:   cfg,
		state: newState(),
		forwarder: &forwarder{
			client:  client,
			mcpPath: cfg.MCPPath,
			timeout: cfg.RequestTimeout,
		},
		creds: &credentialValidator{
			home:         origin(cfg.ServerURL),
			client:       client,
			mcpPath:      cfg.MCPPath,
			identityPath: cfg.IdentityPath,
			apiSecret:    cfg.APISecret,
			timeout:      cfg.ValidateTimeout,
		},
		logger: logger,
		now:    now,
	}
}

func defaultDuration(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}

// Stats reports the current number of streams and buffered requests.
func (b *Bridge) Stats() Stats {
	conns, pending := b.state.counts()
	return Stats{ActiveConnections: conns, PendingRequests: pending}
}

// Run sweeps expired pending requests until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.sweep()
		case <-ctx.Done():
			return nil
		}
	}
}

// sweep performs one pass of pending-request expiry.
func (b *Bridge) sweep() {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("pending sweep panicked", "panic", r)
		}
	}()

	dropped := b.state.sweep(b.now().Add(-b.cfg.GracePeriod))
	if dropped > 0 {
		b.logger.Info("dropped expired pending requests", "count", dropped)
	}
}

// handshakeMethods are answered on the POST itself rather than via the stream.
var handshakeMethods = map[string]bool{
	"initialize":     true,
	"tools/list":     true,
	"prompts/list":   true,
	"resources/list": true,
}

// process produces the JSON-RPC response for req. It never fails: remote and
// local errors become error envelopes. The remote call outlives ctx's
// cancellation and is bounded by the request timeout only.
func (b *Bridge) process(ctx context.Context, req *rpcRequest, server, auth string) (out []byte) {
	ctx = context.WithoutCancel(ctx)
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("request processing panicked", "method", req.method, "panic", r)
			out = errorResponse(req.idOrNull(), codeInternalError, "Internal error", fmt.Sprint(r))
		}
	}()

	switch req.method {
	case "resources/list":
		return resultResponse(req.idOrNull(), `{"resources":[]}`)
	case "initialize":
		resp := b.forwarder.send(ctx, server, auth, req)
		if gjson.GetBytes(resp, "result.capabilities").Exists() {
			return resp
		}
		b.logger.Debug("server returned no capabilities, using local initialize result")
		return defaultInitialize(req.idOrNull())
	default:
		return b.forwarder.send(ctx, server, auth, req)
	}
}

// defaultInitialize is the initialize result used when the remote has none.
func defaultInitialize(id []byte) []byte {
	out := resultResponse(id, `{}`)
	out, _ = sjson.SetBytes(out, "result.protocolVersion", mcp.DefaultProtocolVersion)
	for _, c := range []string{"tools", "prompts", "resources"} {
		out, _ = sjson.SetBytes(out, "result.capabilities."+c+".listChanged", true)
	}
	out, _ = sjson.SetBytes(out, "result.serverInfo.name", ServerName)
	out, _ = sjson.SetBytes(out, "result.serverInfo.version", ServerVersion)
	return out
}

// drain processes the user's buffered requests in arrival order and queues
// the responses on the user's current stream.
func (b *Bridge) drain(ctx context.Context, userContext string) {
	pending := b.state.takePending(userContext, b.now().Add(-b.cfg.GracePeriod))
	if len(pending) == 0 {
		return
	}
	b.logger.Info("delivering pending requests", "user_context", userContext, "count", len(pending))

	for _, p := range pending {
		resp := b.process(ctx, p.req, p.server, p.auth)
		if !b.state.deliver(userContext, resp) {
			b.logger.Warn("no stream for pending response", "user_context", userContext, "method", p.req.method)
		}
	}
}

// sleepCtx waits for d, reporting false if ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
