package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate(t *testing.T) {
	codec := newTestCodec(t)
	verifier := NewCredentialVerifier(codec, "sk-test-key", "X-API-Key")

	store := newMemStore(
		User{ID: "u1", Email: "alice@example.com", Username: "alice", Role: RoleUser, IsActive: true},
		User{ID: "m1", Email: "mod@example.com", Username: "mod", Role: RoleModerator, IsActive: true},
		User{ID: "d1", Email: "gone@example.com", Username: "gone", Role: RoleUser, IsActive: false},
	)
	gate := NewGate(verifier, store)

	echoIdentity := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFrom(r.Context())
		if !ok {
			writeJSON(w, http.StatusOK, map[string]string{"user_id": ""})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"user_id": identity.UserID,
			"role":    string(identity.Role),
			"scheme":  string(identity.Scheme),
		})
	})

	bearer := func(t *testing.T, subject string, role Role) string {
		t.Helper()
		token, err := codec.IssueAccess(subject, subject+"@example.com", role, 0)
		require.NoError(t, err)
		return "Bearer " + token
	}

	do := func(handler http.Handler, headers map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/persons", nil)
		for key, value := range headers {
			req.Header.Set(key, value)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("no credential denied with 401", func(t *testing.T) {
		rec := do(gate.RequireUser(echoIdentity), nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"authentication required"}`, rec.Body.String())
	})

	t.Run("api key passes every tier as admin", func(t *testing.T) {
		for _, mw := range []func(http.Handler) http.Handler{gate.RequireUser, gate.RequireModerator, gate.RequireAdmin} {
			rec := do(mw(echoIdentity), map[string]string{"X-API-Key": "sk-test-key"})
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), `"scheme":"api_key"`)
			assert.Contains(t, rec.Body.String(), `"role":"admin"`)
		}
	})

	t.Run("wrong api key denied", func(t *testing.T) {
		rec := do(gate.RequireUser(echoIdentity), map[string]string{"X-API-Key": "sk-wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("jwt user passes user tier, fails moderator tier", func(t *testing.T) {
		headers := map[string]string{"Authorization": bearer(t, "u1", RoleUser)}

		rec := do(gate.RequireUser(echoIdentity), headers)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"user_id":"u1"`)
		assert.Contains(t, rec.Body.String(), `"scheme":"jwt"`)

		rec = do(gate.RequireModerator(echoIdentity), headers)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, `{"error":"insufficient privileges"}`, rec.Body.String())
	})

	t.Run("moderator passes moderator tier, fails admin tier", func(t *testing.T) {
		headers := map[string]string{"Authorization": bearer(t, "m1", RoleModerator)}

		rec := do(gate.RequireModerator(echoIdentity), headers)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = do(gate.RequireAdmin(echoIdentity), headers)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("stored role wins over token role claim", func(t *testing.T) {
		// Token claims admin but the store says the account is a user.
		rec := do(gate.RequireAdmin(echoIdentity), map[string]string{"Authorization": bearer(t, "u1", RoleAdmin)})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("deactivated account denied despite valid token", func(t *testing.T) {
		rec := do(gate.RequireUser(echoIdentity), map[string]string{"Authorization": bearer(t, "d1", RoleUser)})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token for unknown subject denied", func(t *testing.T) {
		rec := do(gate.RequireUser(echoIdentity), map[string]string{"Authorization": bearer(t, "ghost", RoleUser)})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("store failure denies rather than grants", func(t *testing.T) {
		failing := newMemStore()
		failing.fail = errors.New("connection refused")
		failingGate := NewGate(verifier, failing)

		rec := do(failingGate.RequireUser(echoIdentity), map[string]string{"Authorization": bearer(t, "u1", RoleUser)})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("optional passes through without credential", func(t *testing.T) {
		rec := do(gate.Optional(echoIdentity), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"user_id":""}`, rec.Body.String())
	})

	t.Run("optional attaches identity when present", func(t *testing.T) {
		rec := do(gate.Optional(echoIdentity), map[string]string{"Authorization": bearer(t, "u1", RoleUser)})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"user_id":"u1"`)
	})

	t.Run("optional passes through on bad credential", func(t *testing.T) {
		rec := do(gate.Optional(echoIdentity), map[string]string{"Authorization": "Bearer garbage"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"user_id":""}`, rec.Body.String())
	})
}
