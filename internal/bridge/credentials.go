// ABOUTME: Credential validation against the remote server.
// ABOUTME: Maps bearer tokens and API keys onto a stable per-user context key.

package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

var (
	// ErrMissingCredentials is returned when no Authorization header is sent.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrInvalidCredentials is returned when the remote server rejects a credential.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// pingRequest validates API key credentials against the remote server.
var pingRequest = []byte(`{"jsonrpc":"2.0","method":"ping","id":1}`)

// principal is a validated caller.
type principal struct {
	// UserContext keys the caller's connection and pending buffer.
	UserContext string
	// Authorization is the header forwarded to the remote server.
	Authorization string
}

// contextReplacer strips the characters that separate a context from its
// server scope.
var contextReplacer = strings.NewReplacer("@", "_", ".", "_")

type credentialValidator struct {
	// home is the origin of the configured default server. Identities it
	// vouches for keep the bare user_<id> form.
	home         string
	client       *http.Client
	mcpPath      string
	identityPath string
	apiSecret    string
	timeout      time.Duration
}

// validate resolves the Authorization header into a principal.
func (v *credentialValidator) validate(ctx context.Context, server, header string) (*principal, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, ErrMissingCredentials
	}

	scheme, cred, _ := strings.Cut(header, " ")
	switch strings.ToLower(scheme) {
	case "bearer":
		return v.validateBearer(ctx, server, header, strings.TrimSpace(cred))
	case "token":
		return v.validateKey(ctx, server, header, strings.TrimSpace(cred))
	}

	// A bare API key is combined with the configured secret.
	if v.apiSecret == "" {
		return nil, fmt.Errorf("%w: bare API key without configured secret", ErrInvalidCredentials)
	}
	cred = header + ":" + v.apiSecret
	return v.validateKey(ctx, server, "token "+cred, cred)
}

func (v *credentialValidator) validateBearer(ctx context.Context, server, header, token string) (*principal, error) {
	if token == "" {
		return nil, ErrMissingCredentials
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server+v.identityPath, nil)
	if err != nil {
		return nil, fmt.Errorf("building identity request: %w", err)
	}
	req.Header.Set("Authorization", header)

	body, err := v.do(req)
	if err != nil {
		return nil, err
	}

	id := gjson.GetBytes(body, "message")
	if !id.Exists() {
		id = gjson.GetBytes(body, "user")
	}
	email := id.String()
	if email == "" {
		return nil, fmt.Errorf("%w: identity response names no user", ErrInvalidCredentials)
	}
	return &principal{UserContext: v.userContext(server, email), Authorization: header}, nil
}

func (v *credentialValidator) validateKey(ctx context.Context, server, header, cred string) (*principal, error) {
	key, secret, ok := strings.Cut(cred, ":")
	if !ok || key == "" || secret == "" {
		return nil, fmt.Errorf("%w: expected key:secret", ErrInvalidCredentials)
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+v.mcpPath, bytes.NewReader(pingRequest))
	if err != nil {
		return nil, fmt.Errorf("building ping request: %w", err)
	}
	req.Header.Set("Authorization", header)
	req.Header.Set("Content-Type", "application/json")

	if _, err := v.do(req); err != nil {
		return nil, err
	}
	if len(key) > 10 {
		key = key[:10]
	}
	return &principal{UserContext: v.userContext(server, key), Authorization: header}, nil
}

// userContext names the subject as vouched for by server. Identities from any
// server other than the default are suffixed with "@<host>"; the subject has
// its '@' replaced, so two servers can never produce the same context.
func (v *credentialValidator) userContext(server, subject string) string {
	uc := "user_" + contextReplacer.Replace(subject)
	o := origin(server)
	if o != "" && o == v.home {
		return uc
	}
	_, host, found := strings.Cut(o, "://")
	if !found {
		host = server
	}
	return uc + "@" + host
}

// origin reduces a server URL to scheme://host.
func origin(server string) string {
	u, err := url.Parse(strings.TrimSpace(server))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

// do performs req and returns the body of a 200 reply.
func (v *credentialValidator) do(req *http.Request) ([]byte, error) {
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: server returned %d", ErrInvalidCredentials, resp.StatusCode)
	}
	return body, nil
}
