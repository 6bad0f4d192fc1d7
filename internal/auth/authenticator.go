// ABOUTME: Resolves an Authorization header into an AuthContext
// ABOUTME: Supports "Bearer <jwt>" and "token <key>:<secret>" schemes

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/2389/assistant-core/internal/store"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrUnsupportedScheme  = errors.New("unsupported authorization scheme")
	ErrAccessDisabled     = errors.New("assistant access disabled")
)

// UserStore is the subset of the store needed to load identities.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*store.User, error)
	ListRoles(ctx context.Context, userID string) ([]string, error)
}

// KeyStore checks API key credentials.
type KeyStore interface {
	VerifyAPIKey(ctx context.Context, key, secret string) (userID string, err error)
}

// APIKeyVerifier validates "<key>:<secret>" credentials.
type APIKeyVerifier struct {
	keys KeyStore
}

// NewAPIKeyVerifier creates a verifier backed by keys.
func NewAPIKeyVerifier(keys KeyStore) *APIKeyVerifier {
	return &APIKeyVerifier{keys: keys}
}

// Verify checks a "<key>:<secret>" credential and returns the owning user ID.
func (v *APIKeyVerifier) Verify(ctx context.Context, credential string) (string, error) {
	key, secret, ok := strings.Cut(credential, ":")
	if !ok || key == "" || secret == "" {
		return "", fmt.Errorf("%w: malformed api key", ErrInvalidToken)
	}
	userID, err := v.keys.VerifyAPIKey(ctx, key, secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return userID, nil
}

// Authenticator combines JWT and API key verification with a user lookup.
type Authenticator struct {
	jwt   TokenVerifier
	keys  *APIKeyVerifier
	users UserStore
}

// NewAuthenticator creates an authenticator. Either verifier may be nil to
// disable that scheme.
func NewAuthenticator(jwt TokenVerifier, keys *APIKeyVerifier, users UserStore) *Authenticator {
	return &Authenticator{jwt: jwt, keys: keys, users: users}
}

// Authenticate validates the Authorization header value and loads the user.
// Users with assistant access disabled get ErrAccessDisabled.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (*AuthContext, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, ErrMissingCredentials
	}

	scheme, credential, _ := strings.Cut(header, " ")
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, ErrMissingCredentials
	}

	var userID string
	var err error
	switch {
	case strings.EqualFold(scheme, "Bearer") && a.jwt != nil:
		userID, err = a.jwt.Verify(credential)
	case strings.EqualFold(scheme, "token") && a.keys != nil:
		userID, err = a.keys.Verify(ctx, credential)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
	if err != nil {
		return nil, err
	}

	user, err := a.users.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown user", ErrInvalidToken)
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if !user.AssistantEnabled {
		return nil, fmt.Errorf("%w: %s", ErrAccessDisabled, user.Email)
	}

	roles, err := a.users.ListRoles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading roles: %w", err)
	}

	return &AuthContext{UserID: user.UserID, Email: user.Email, Roles: roles}, nil
}
