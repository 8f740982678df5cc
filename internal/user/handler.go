package user

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"directory-api/internal/auth"
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9_.-]{3,32}$`)
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const maxJSONBodyBytes = 1 << 20

// Handler exposes the user-management endpoints. Role requirements are
// enforced by the gate at the mux; the handler only adds the
// self-or-admin ownership checks.
type Handler struct {
	repo *auth.Repository
}

func NewHandler(repo *auth.Repository) *Handler {
	return &Handler{repo: repo}
}

type updateRequest struct {
	Email    *string `json:"email"`
	Username *string `json:"username"`
	FullName *string `json:"full_name"`
	Bio      *string `json:"bio"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	users, err := h.repo.List(r.Context(), limit, offset)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	users, err := h.repo.ListActive(r.Context(), limit, offset)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) ListByRole(w http.ResponseWriter, r *http.Request) {
	role := auth.Role(r.PathValue("role"))
	if !auth.ValidRole(role) {
		writeError(w, http.StatusBadRequest, "unknown role")
		return
	}

	limit, offset := pagination(r)
	users, err := h.repo.ListByRole(r.Context(), role, limit, offset)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.canAccess(w, r, id) {
		return
	}

	user, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.canAccess(w, r, id) {
		return
	}

	h.applyUpdate(w, r, id)
}

// Me returns the authenticated caller's record. API-key callers have no
// backing row, so they get the synthetic system identity instead.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if identity.Scheme == auth.SchemeAPIKey {
		writeJSON(w, http.StatusOK, map[string]string{
			"id":   identity.UserID,
			"role": string(identity.Role),
		})
		return
	}

	user, err := h.repo.GetByID(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok || identity.Scheme != auth.SchemeJWT {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	h.applyUpdate(w, r, identity.UserID)
}

func (h *Handler) applyUpdate(w http.ResponseWriter, r *http.Request, id string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body updateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	current, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	email := current.Email
	if body.Email != nil {
		email = strings.TrimSpace(strings.ToLower(*body.Email))
		if !emailRegex.MatchString(email) {
			writeError(w, http.StatusBadRequest, "email format is invalid")
			return
		}
	}
	username := current.Username
	if body.Username != nil {
		username = strings.TrimSpace(strings.ToLower(*body.Username))
		if !usernameRegex.MatchString(username) {
			writeError(w, http.StatusBadRequest, "username format is invalid")
			return
		}
	}
	fullName := current.FullName
	if body.FullName != nil {
		fullName = body.FullName
	}
	bio := current.Bio
	if body.Bio != nil {
		bio = body.Bio
	}

	if email != current.Email {
		if _, err := h.repo.GetByEmail(r.Context(), email); err == nil {
			writeError(w, http.StatusBadRequest, "email already registered")
			return
		} else if !errors.Is(err, sql.ErrNoRows) {
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to update user")
			return
		}
	}
	if username != current.Username {
		if _, err := h.repo.GetByUsername(r.Context(), username); err == nil {
			writeError(w, http.StatusBadRequest, "username already taken")
			return
		} else if !errors.Is(err, sql.ErrNoRows) {
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to update user")
			return
		}
	}

	updated, err := h.repo.UpdateProfile(r.Context(), id, email, username, fullName, bio)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := r.PathValue("id")
	if err := h.repo.SetActive(r.Context(), id, active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"is_active": active})
}

// Unlock lifts an account lock before it expires.
func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.repo.ClearLock(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to unlock user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "account unlocked"})
}

// canAccess allows the resource owner and admins through; everyone else
// gets a 403 without learning whether the user exists.
func (h *Handler) canAccess(w http.ResponseWriter, r *http.Request, id string) bool {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return false
	}
	if identity.UserID != id && !auth.HasPermission(identity.Role, auth.RoleAdmin) {
		writeError(w, http.StatusForbidden, "insufficient privileges")
		return false
	}
	return true
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 100
	offset = 0

	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
