// ABOUTME: Shared argument decoding, validation and error codes for built-in tools.
// ABOUTME: Arguments decode with mapstructure and validate with validator struct tags.

package builtins

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/morikuni/failure/v2"

	"github.com/2389/assistant-core/internal/schema"
	"github.com/2389/assistant-core/internal/tools"
)

// ErrorCode classifies built-in tool failures.
type ErrorCode string

const (
	// ErrInvalidArguments means the arguments failed to decode or validate.
	ErrInvalidArguments ErrorCode = "InvalidArguments"
	// ErrUnauthenticated means the tool needs a caller identity and none was present.
	ErrUnauthenticated ErrorCode = "Unauthenticated"
	// ErrNoteNotFound means the requested note does not exist for the caller.
	ErrNoteNotFound ErrorCode = "NoteNotFound"
	// ErrStorage means the backing store failed.
	ErrStorage ErrorCode = "Storage"
)

var validate = validator.New()

var (
	readOnly    = map[string]any{"readOnlyHint": true}
	destructive = map[string]any{"destructiveHint": true}
)

// decode copies args into out and validates it.
func decode(ctx context.Context, args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return failure.Wrap(err)
	}
	if err := dec.Decode(args); err != nil {
		return failure.New(ErrInvalidArguments,
			failure.Message("Arguments could not be decoded"),
			failure.Context{"error": err.Error()},
		)
	}
	if err := validate.StructCtx(ctx, out); err != nil {
		return failure.New(ErrInvalidArguments,
			failure.Message("Invalid arguments: "+err.Error()),
		)
	}
	return nil
}

// inputSchema renders the schema of an argument struct.
func inputSchema(v any) json.RawMessage {
	return schema.FromStruct(v).JSON()
}

// callerOf returns the authenticated caller or an Unauthenticated failure.
func callerOf(ctx context.Context) (tools.Caller, error) {
	c, ok := tools.CallerFromContext(ctx)
	if !ok || c.UserID == "" {
		return tools.Caller{}, failure.New(ErrUnauthenticated,
			failure.Message("This tool requires an authenticated user"),
		)
	}
	return c, nil
}
