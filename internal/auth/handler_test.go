package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandlerFixture(t *testing.T) (*Handler, *serviceFixture) {
	t.Helper()
	f := newServiceFixture(t)
	return NewHandler(f.service), f
}

func post(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandlerRegister(t *testing.T) {
	t.Run("creates user", func(t *testing.T) {
		handler, f := newHandlerFixture(t)

		rec := post(t, handler.Register, "/auth/register",
			`{"email":"Alice@Example.com","username":"alice","password":"Secret123!"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		var created User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, "alice@example.com", created.Email)
		assert.Empty(t, created.HashedPassword, "hash must not serialize")

		_, err := f.store.GetByEmail(t.Context(), "alice@example.com")
		assert.NoError(t, err)
	})

	t.Run("input validation", func(t *testing.T) {
		handler, _ := newHandlerFixture(t)

		cases := map[string]string{
			"bad email":      `{"email":"not-an-email","username":"alice","password":"Secret123!"}`,
			"short username": `{"email":"a@b.com","username":"ab","password":"Secret123!"}`,
			"bad username":   `{"email":"a@b.com","username":"has space","password":"Secret123!"}`,
			"short password": `{"email":"a@b.com","username":"alice","password":"short"}`,
			"unknown field":  `{"email":"a@b.com","username":"alice","password":"Secret123!","role":"admin"}`,
			"invalid json":   `{`,
		}
		for name, body := range cases {
			t.Run(name, func(t *testing.T) {
				rec := post(t, handler.Register, "/auth/register", body)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			})
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		handler, f := newHandlerFixture(t)
		f.addUser(t, "u1", "alice@example.com", "alice", "Secret123!", RoleUser)

		rec := post(t, handler.Register, "/auth/register",
			`{"email":"alice@example.com","username":"alice2","password":"Secret123!"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "email")
	})
}

func TestHandlerLogin(t *testing.T) {
	t.Run("success returns token pair", func(t *testing.T) {
		handler, f := newHandlerFixture(t)
		f.addUser(t, "u1", "alice@example.com", "alice", "Secret123!", RoleUser)

		rec := post(t, handler.Login, "/auth/login", `{"username":"alice","password":"Secret123!"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var tokens Tokens
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
		assert.NotEmpty(t, tokens.AccessToken)
		assert.NotEmpty(t, tokens.RefreshToken)
		assert.Equal(t, "bearer", tokens.TokenType)
	})

	t.Run("missing fields", func(t *testing.T) {
		handler, _ := newHandlerFixture(t)
		rec := post(t, handler.Login, "/auth/login", `{"username":"","password":""}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong password then lockout", func(t *testing.T) {
		handler, f := newHandlerFixture(t)
		f.addUser(t, "u1", "alice@example.com", "alice", "Secret123!", RoleUser)

		for i := 0; i < 5; i++ {
			rec := post(t, handler.Login, "/auth/login", `{"username":"alice","password":"wrong"}`)
			assert.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
			assert.JSONEq(t, `{"error":"incorrect credentials"}`, rec.Body.String())
		}

		// Locked now, even with the correct password.
		rec := post(t, handler.Login, "/auth/login", `{"username":"alice","password":"Secret123!"}`)
		assert.Equal(t, http.StatusLocked, rec.Code)

		retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
		require.NoError(t, err)
		assert.Greater(t, retryAfter, 0)
		assert.LessOrEqual(t, retryAfter, 30*60)
	})

	t.Run("unknown user", func(t *testing.T) {
		handler, _ := newHandlerFixture(t)
		rec := post(t, handler.Login, "/auth/login", `{"username":"nobody","password":"Secret123!"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHandlerRefresh(t *testing.T) {
	handler, f := newHandlerFixture(t)
	f.addUser(t, "u1", "alice@example.com", "alice", "Secret123!", RoleUser)

	t.Run("valid refresh", func(t *testing.T) {
		refresh, err := f.codec.IssueRefresh("u1")
		require.NoError(t, err)

		rec := post(t, handler.Refresh, "/auth/refresh", `{"refresh_token":"`+refresh+`"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var tokens Tokens
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
		assert.NotEmpty(t, tokens.AccessToken)
	})

	t.Run("invalid refresh", func(t *testing.T) {
		rec := post(t, handler.Refresh, "/auth/refresh", `{"refresh_token":"garbage"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHandlerChangePassword(t *testing.T) {
	handler, f := newHandlerFixture(t)
	f.addUser(t, "u1", "alice@example.com", "alice", "Secret123!", RoleUser)

	asUser := func(t *testing.T, identity Identity, body string) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest(http.MethodPost, "/auth/change-password", strings.NewReader(body))
		req = req.WithContext(WithIdentity(req.Context(), identity))
		rec := httptest.NewRecorder()
		handler.ChangePassword(rec, req)
		return rec
	}

	t.Run("requires jwt identity", func(t *testing.T) {
		rec := post(t, handler.ChangePassword, "/auth/change-password",
			`{"current_password":"Secret123!","new_password":"NewSecret123!"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("api key identity rejected", func(t *testing.T) {
		rec := asUser(t, Identity{UserID: APIKeySubject, Role: RoleAdmin, Scheme: SchemeAPIKey},
			`{"current_password":"Secret123!","new_password":"NewSecret123!"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong current password", func(t *testing.T) {
		rec := asUser(t, Identity{UserID: "u1", Role: RoleUser, Scheme: SchemeJWT},
			`{"current_password":"wrong","new_password":"NewSecret123!"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("weak new password", func(t *testing.T) {
		rec := asUser(t, Identity{UserID: "u1", Role: RoleUser, Scheme: SchemeJWT},
			`{"current_password":"Secret123!","new_password":"short"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("success", func(t *testing.T) {
		rec := asUser(t, Identity{UserID: "u1", Role: RoleUser, Scheme: SchemeJWT},
			`{"current_password":"Secret123!","new_password":"NewSecret123!"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		assert.True(t, f.hasher.Verify("NewSecret123!", f.store.get("u1").HashedPassword))
	})
}

func TestHandlerLogout(t *testing.T) {
	handler, _ := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	handler.Logout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"logged out"}`, rec.Body.String())
}
