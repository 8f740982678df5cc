package maintenance

import (
	"encoding/json"
	"net/http"
	"strings"

	"directory-api/internal/auth"
	"directory-api/internal/observability"
)

// CleanupHandler releases expired account locks and prunes the login
// rate limiter. Guarded by a bearer cron secret; disabled (404) when no
// secret is configured.
type CleanupHandler struct {
	repo       *auth.Repository
	limiter    *auth.LoginRateLimiter
	logger     *observability.Logger
	cronSecret string
}

func NewCleanupHandler(repo *auth.Repository, limiter *auth.LoginRateLimiter, logger *observability.Logger, cronSecret string) *CleanupHandler {
	return &CleanupHandler{
		repo:       repo,
		limiter:    limiter,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	releasedLocks, err := h.repo.ReleaseExpiredLocks(r.Context())
	if err != nil {
		h.logger.Error("cleanup_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	prunedIPs := h.limiter.Prune()

	h.logger.Info("cleanup_completed", map[string]any{
		"released_locks": releasedLocks,
		"pruned_ips":     prunedIPs,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"released_locks": releasedLocks,
		"pruned_ips":     prunedIPs,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
