package media

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/getsentry/sentry-go"

	"directory-api/internal/auth"
)

const maxAvatarBytes = 5 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// Uploader is satisfied by the Cloudinary client; nil when uploads are
// not configured.
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte) (string, error)
}

// AvatarHandler stores an uploaded image and writes the hosted URL onto
// the caller's user record.
type AvatarHandler struct {
	uploader Uploader
	users    *auth.Repository
}

func NewAvatarHandler(uploader Uploader, users *auth.Repository) *AvatarHandler {
	return &AvatarHandler{uploader: uploader, users: users}
}

func (h *AvatarHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		writeError(w, http.StatusServiceUnavailable, "avatar uploads are not configured")
		return
	}

	identity, ok := auth.IdentityFrom(r.Context())
	if !ok || identity.Scheme != auth.SchemeJWT {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	if !allowedImageTypes[http.DetectContentType(data)] {
		writeError(w, http.StatusBadRequest, "file must be a jpeg, png, webp or gif image")
		return
	}

	hostedURL, err := h.uploader.Upload(r.Context(), header.Filename, data)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusBadGateway, "failed to upload avatar")
		return
	}

	if err := h.users.UpdateAvatar(r.Context(), identity.UserID, hostedURL); err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to save avatar")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"avatar_url": hostedURL})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
