// ABOUTME: Admin handlers for user accounts and role assignments
// ABOUTME: Users are created enabled unless stated otherwise

package admin

import (
	"net/http"
	"strings"

	"github.com/2389/assistant-core/internal/store"
)

// UserView is a user with roles.
type UserView struct {
	UserID           string   `json:"user_id"`
	Email            string   `json:"email"`
	DisplayName      string   `json:"display_name"`
	AssistantEnabled bool     `json:"assistant_enabled"`
	Roles            []string `json:"roles"`
	CreatedAt        string   `json:"created_at"`
}

type createUserRequest struct {
	Email            string   `json:"email" validate:"required,email"`
	DisplayName      string   `json:"display_name" validate:"max=200"`
	AssistantEnabled *bool    `json:"assistant_enabled"`
	Roles            []string `json:"roles" validate:"dive,required"`
}

type updateUserRequest struct {
	AssistantEnabled *bool `json:"assistant_enabled" validate:"required"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required,max=100"`
}

func (h *Handler) userView(r *http.Request, u *store.User) (*UserView, error) {
	roles, err := h.store.ListRoles(r.Context(), u.UserID)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []string{}
	}
	return &UserView{
		UserID:           u.UserID,
		Email:            u.Email,
		DisplayName:      u.DisplayName,
		AssistantEnabled: u.AssistantEnabled,
		Roles:            roles,
		CreatedAt:        u.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.storeError(w, "list users", err)
		return
	}

	out := make([]*UserView, 0, len(users))
	for _, u := range users {
		v, err := h.userView(r, u)
		if err != nil {
			h.storeError(w, "list roles", err)
			return
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	u := &store.User{
		Email:            req.Email,
		DisplayName:      strings.TrimSpace(req.DisplayName),
		AssistantEnabled: req.AssistantEnabled == nil || *req.AssistantEnabled,
	}
	if err := h.store.CreateUser(r.Context(), u); err != nil {
		h.storeError(w, "create user", err)
		return
	}
	for _, role := range req.Roles {
		if err := h.store.AddRole(r.Context(), u.UserID, role); err != nil {
			h.storeError(w, "add role", err)
			return
		}
	}
	h.audit(r, "create_user", "user_id", u.UserID, "email", u.Email, "roles", req.Roles)

	v, err := h.userView(r, u)
	if err != nil {
		h.storeError(w, "list roles", err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updateUserRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if err := h.store.SetAssistantEnabled(r.Context(), id, *req.AssistantEnabled); err != nil {
		h.storeError(w, "set assistant enabled", err)
		return
	}
	h.audit(r, "update_user", "user_id", id, "assistant_enabled", *req.AssistantEnabled)

	u, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		h.storeError(w, "get user", err)
		return
	}
	v, err := h.userView(r, u)
	if err != nil {
		h.storeError(w, "list roles", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleAddRole(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req roleRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if _, err := h.store.GetUser(r.Context(), id); err != nil {
		h.storeError(w, "get user", err)
		return
	}
	if err := h.store.AddRole(r.Context(), id, req.Role); err != nil {
		h.storeError(w, "add role", err)
		return
	}
	h.audit(r, "add_role", "user_id", id, "role", req.Role)

	roles, err := h.store.ListRoles(r.Context(), id)
	if err != nil {
		h.storeError(w, "list roles", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": id, "roles": roles})
}

func (h *Handler) handleRemoveRole(w http.ResponseWriter, r *http.Request) {
	id, role := r.PathValue("id"), r.PathValue("role")

	if err := h.store.RemoveRole(r.Context(), id, role); err != nil {
		h.storeError(w, "remove role", err)
		return
	}
	h.audit(r, "remove_role", "user_id", id, "role", role)

	w.WriteHeader(http.StatusNoContent)
}
