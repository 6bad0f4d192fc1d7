// Package auth provides authentication and authorization for assistant-core.
//
// # Authentication Methods
//
// Two Authorization header schemes are accepted:
//
//   - Bearer <jwt>: HS256 tokens signed with the configured jwt_secret. The
//     "sub" claim carries the user ID. Secrets shorter than MinSecretLength
//     are rejected at startup.
//
//   - token <key>:<secret>: API keys created by the admin API or the bootstrap
//     command. Secrets are stored as bcrypt hashes.
//
// Authenticator combines both, loads the user and their roles from the
// store, and refuses users whose assistant access is disabled.
//
// # Roles
//
// Roles are free-form strings. "System Manager" is the superuser: it passes
// RequireAdminHTTP and bypasses role-based tool access.
//
// # HTTP Middleware
//
//	mux.Handle("/api/admin/", auth.HTTPAuthMiddleware(a)(auth.RequireAdminHTTP()(adminHandler)))
//
// Handlers read the identity with FromContext. WhoAmIHandler echoes the
// caller's email for remote identity checks.
//
// # Errors
//
//   - ErrMissingCredentials: no Authorization header
//   - ErrInvalidToken: bad signature, unknown key, wrong secret, unknown user
//   - ErrExpiredToken: JWT past its exp claim
//   - ErrAccessDisabled: valid identity with assistant_enabled = false
package auth
