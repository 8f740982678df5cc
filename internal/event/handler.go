package event

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
)

const maxJSONBodyBytes = 1 << 20

var participantRoles = map[string]bool{
	"attendee":  true,
	"organizer": true,
	"speaker":   true,
	"guest":     true,
}

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	events, err := h.repo.List(r.Context(), limit, offset)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	e, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}

	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	e, err := h.repo.Create(r.Context(), input)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	e, err := h.repo.Update(r.Context(), id, input)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}

	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	participants, err := h.repo.ListParticipants(r.Context(), id)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list participants")
		return
	}

	writeJSON(w, http.StatusOK, participants)
}

type addPersonRequest struct {
	Role string `json:"role"`
}

func (h *Handler) AddPerson(w http.ResponseWriter, r *http.Request) {
	eventID, personID, ok := participantPathIDs(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	role := "attendee"
	var body addPersonRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Role != "" {
		role = strings.ToLower(strings.TrimSpace(body.Role))
	}
	if !participantRoles[role] {
		writeError(w, http.StatusBadRequest, "unknown participant role")
		return
	}

	if err := h.repo.AddPerson(r.Context(), eventID, personID, role); err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to add participant")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RemovePerson(w http.ResponseWriter, r *http.Request) {
	eventID, personID, ok := participantPathIDs(w, r)
	if !ok {
		return
	}

	if err := h.repo.RemovePerson(r.Context(), eventID, personID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "participant not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to remove participant")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func participantPathIDs(w http.ResponseWriter, r *http.Request) (eventID, personID string, ok bool) {
	eventID = r.PathValue("id")
	personID = r.PathValue("personID")
	if _, err := uuid.Parse(eventID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return "", "", false
	}
	if _, err := uuid.Parse(personID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid person id")
		return "", "", false
	}
	return eventID, personID, true
}

func parseInput(w http.ResponseWriter, r *http.Request) (EventInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input EventInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return EventInput{}, false
	}

	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return EventInput{}, false
	}
	if !utf8.ValidString(input.Title) || len(input.Title) > 150 {
		writeError(w, http.StatusBadRequest, "title is invalid")
		return EventInput{}, false
	}
	if input.StartsAt.IsZero() {
		writeError(w, http.StatusBadRequest, "starts_at is required")
		return EventInput{}, false
	}
	if input.EndsAt != nil && input.EndsAt.Before(input.StartsAt) {
		writeError(w, http.StatusBadRequest, "ends_at must not precede starts_at")
		return EventInput{}, false
	}
	if input.Description != nil && len(*input.Description) > 2000 {
		writeError(w, http.StatusBadRequest, "description is too long")
		return EventInput{}, false
	}
	if input.Location != nil && len(*input.Location) > 255 {
		writeError(w, http.StatusBadRequest, "location is too long")
		return EventInput{}, false
	}

	return input, true
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
