// ABOUTME: Notes plugin provides per-user key-value storage.
// ABOUTME: Notes are scoped to the authenticated caller's user id.

package builtins

import (
	"context"
	"errors"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/samber/lo"

	"github.com/2389/assistant-core/internal/store"
	"github.com/2389/assistant-core/internal/tools"
)

// NotesPluginName is the plugin name of the notes tools.
const NotesPluginName = "notes"

// NoteStore is the persistence the notes plugin needs.
type NoteStore interface {
	SetNote(ctx context.Context, note *store.Note) error
	GetNote(ctx context.Context, userID, key string) (*store.Note, error)
	ListNotes(ctx context.Context, userID string) ([]*store.Note, error)
	DeleteNote(ctx context.Context, userID, key string) error
}

type noteSetArgs struct {
	Key   string `json:"key" desc:"Note key" validate:"required,max=200"`
	Value string `json:"value" desc:"Note contents" validate:"required"`
}

type noteKeyArgs struct {
	Key string `json:"key" desc:"Note key" validate:"required"`
}

// NotesPlugin creates the notes plugin.
func NotesPlugin(s NoteStore) *tools.Plugin {
	n := &notesHandlers{store: s}
	return &tools.Plugin{
		Name:        NotesPluginName,
		Description: "Per-user notes",
		Tools: []*tools.Descriptor{
			{
				Name:        "note_set",
				Description: "Store a note under a key, replacing any previous value.",
				InputSchema: inputSchema(noteSetArgs{}),
				Invoke:      n.Set,
			},
			{
				Name:        "note_get",
				Description: "Retrieve a note by key.",
				InputSchema: inputSchema(noteKeyArgs{}),
				Annotations: readOnly,
				Invoke:      n.Get,
			},
			{
				Name:        "note_list",
				Description: "List the keys of all your notes.",
				InputSchema: inputSchema(noArgs{}),
				Annotations: readOnly,
				Invoke:      n.List,
			},
			{
				Name:        "note_delete",
				Description: "Delete a note by key.",
				InputSchema: inputSchema(noteKeyArgs{}),
				Annotations: destructive,
				Invoke:      n.Delete,
			},
		},
	}
}

type notesHandlers struct {
	store NoteStore
}

// Set stores a note.
func (n *notesHandlers) Set(ctx context.Context, args map[string]any) (any, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	var in noteSetArgs
	if err := decode(ctx, args, &in); err != nil {
		return nil, err
	}

	if err := n.store.SetNote(ctx, &store.Note{UserID: caller.UserID, Key: in.Key, Value: in.Value}); err != nil {
		return nil, storageFailure(err)
	}
	return map[string]string{"status": "saved", "key": in.Key}, nil
}

// Get retrieves a note.
func (n *notesHandlers) Get(ctx context.Context, args map[string]any) (any, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	var in noteKeyArgs
	if err := decode(ctx, args, &in); err != nil {
		return nil, err
	}

	note, err := n.store.GetNote(ctx, caller.UserID, in.Key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, noteNotFound(in.Key)
	}
	if err != nil {
		return nil, storageFailure(err)
	}
	return map[string]string{
		"key":        note.Key,
		"value":      note.Value,
		"updated_at": note.UpdatedAt.Format(time.RFC3339),
	}, nil
}

// List returns the caller's note keys.
func (n *notesHandlers) List(ctx context.Context, _ map[string]any) (any, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}

	notes, err := n.store.ListNotes(ctx, caller.UserID)
	if err != nil {
		return nil, storageFailure(err)
	}
	keys := lo.Map(notes, func(note *store.Note, _ int) string { return note.Key })
	return map[string]any{"keys": keys, "count": len(keys)}, nil
}

// Delete removes a note.
func (n *notesHandlers) Delete(ctx context.Context, args map[string]any) (any, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	var in noteKeyArgs
	if err := decode(ctx, args, &in); err != nil {
		return nil, err
	}

	err = n.store.DeleteNote(ctx, caller.UserID, in.Key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, noteNotFound(in.Key)
	}
	if err != nil {
		return nil, storageFailure(err)
	}
	return map[string]string{"status": "deleted", "key": in.Key}, nil
}

func noteNotFound(key string) error {
	return failure.New(ErrNoteNotFound,
		failure.Message("Note not found"),
		failure.Context{"key": key},
	)
}

func storageFailure(err error) error {
	return failure.New(ErrStorage,
		failure.Message("Note storage failed"),
		failure.Context{"error": err.Error()},
	)
}
