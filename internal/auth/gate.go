package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
)

type contextKey struct{}

var identityKey contextKey

// WithIdentity returns a context carrying the resolved identity.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFrom extracts the request identity attached by the gate.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// Gate is the per-request authorization dependency. It resolves the
// credential, compares roles and attaches the identity to the request
// context. Denials are terminal: 401 when no valid credential resolved,
// 403 when the role is too low.
type Gate struct {
	verifier *CredentialVerifier
	store    Store
}

func NewGate(verifier *CredentialVerifier, store Store) *Gate {
	return &Gate{verifier: verifier, store: store}
}

func (g *Gate) RequireUser(next http.Handler) http.Handler {
	return g.require(RoleUser, next)
}

func (g *Gate) RequireModerator(next http.Handler) http.Handler {
	return g.require(RoleModerator, next)
}

func (g *Gate) RequireAdmin(next http.Handler) http.Handler {
	return g.require(RoleAdmin, next)
}

// Optional never denies. It attaches an identity when a valid credential
// is present and passes the request through unauthenticated otherwise.
func (g *Gate) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity, ok := g.resolve(r); ok {
			r = r.WithContext(WithIdentity(r.Context(), identity))
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gate) require(required Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := g.resolve(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !HasPermission(identity.Role, required) {
			writeError(w, http.StatusForbidden, "insufficient privileges")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// resolve maps the credential outcome to an identity. JWT subjects are
// checked against the store so deactivated accounts lose access as soon
// as their next request, not when the token expires; the stored role wins
// over the token's role claim for the same reason. Store failures deny
// rather than grant.
func (g *Gate) resolve(r *http.Request) (Identity, bool) {
	outcome := g.verifier.Resolve(r.Header)

	switch outcome.Kind {
	case OutcomeAPIKeyAccepted:
		return Identity{UserID: outcome.Subject, Role: RoleAdmin, Scheme: SchemeAPIKey}, true

	case OutcomeJWTAccepted:
		user, err := g.store.GetByID(r.Context(), outcome.Subject)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				sentry.CaptureException(err)
			}
			return Identity{}, false
		}
		if !user.IsActive {
			return Identity{}, false
		}
		return Identity{UserID: user.ID, Role: user.Role, Scheme: SchemeJWT}, true

	default:
		return Identity{}, false
	}
}
