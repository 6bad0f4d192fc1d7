// Package store provides persistent storage for assistant-core using SQLite.
//
// # Architecture
//
// SQLiteStore is a single struct over modernc.org/sqlite (pure Go, no cgo).
// The database runs in WAL mode with foreign keys enabled; the schema is
// created idempotently on open and column additions go through runMigrations.
//
// # Data Models
//
//   - User: account with an email and an assistant_enabled flag
//   - user_roles: free-form role names per user ("System Manager" is the superuser)
//   - APIKey: key with a bcrypt-hashed secret, used as "token <key>:<secret>"
//   - ToolConfig: per-tool enabled flag, category, and role access mode
//   - tool_role_access: role -> allow rows consulted in "Role Based" mode
//   - Plugin: per-plugin enabled flag
//   - Note: per-user key/value pairs for the notes plugin
//   - ToolCall: audit of every tools/call dispatch
//
// # Defaults
//
// Policy tables are sparse. A tool without a tool_configs row is enabled with
// "Allow All"; a plugin without a plugins row is enabled. Callers use
// DefaultToolConfig when GetToolConfig returns ErrNotFound.
//
// # Errors
//
// Lookups return ErrNotFound for missing rows and unique violations surface as
// ErrDuplicate. All other errors are wrapped with the failing operation.
//
// # Usage
//
//	s, err := store.NewSQLiteStore("/var/lib/assistant/assistant.db")
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	u := &store.User{Email: "ada@example.com", AssistantEnabled: true}
//	if err := s.CreateUser(ctx, u); err != nil {
//		return err
//	}
//	key, secret, err := s.CreateAPIKey(ctx, u.UserID)
package store
