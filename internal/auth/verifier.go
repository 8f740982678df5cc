package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// OutcomeKind tags the result of resolving request credentials.
type OutcomeKind int

const (
	OutcomeNoCredential OutcomeKind = iota
	OutcomeAPIKeyAccepted
	OutcomeAPIKeyRejected
	OutcomeJWTAccepted
	OutcomeJWTRejected
)

type Outcome struct {
	Kind    OutcomeKind
	Subject string
	Role    Role
}

// APIKeySubject is the synthetic identity attached to static-key callers.
const APIKeySubject = "system"

// CredentialVerifier resolves request headers to an authentication outcome.
// It is a pure function of the headers plus startup configuration: one
// constant-time comparison for the static key, one signature check for
// bearer tokens, no I/O.
type CredentialVerifier struct {
	codec        *TokenCodec
	apiKey       []byte
	apiKeyHeader string
}

func NewCredentialVerifier(codec *TokenCodec, apiKey, apiKeyHeader string) *CredentialVerifier {
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	return &CredentialVerifier{
		codec:        codec,
		apiKey:       []byte(apiKey),
		apiKeyHeader: apiKeyHeader,
	}
}

// Resolve checks the static-key header first; when present it decides the
// outcome and any bearer token is ignored. The key header may be
// configured as Authorization itself, in which case a non-matching value
// falls through to bearer parsing of that same header.
func (v *CredentialVerifier) Resolve(headers http.Header) Outcome {
	sharedHeader := strings.EqualFold(v.apiKeyHeader, "Authorization")

	rawKey := strings.TrimSpace(headers.Get(v.apiKeyHeader))
	if rawKey != "" {
		if subtle.ConstantTimeCompare([]byte(rawKey), v.apiKey) == 1 {
			return Outcome{Kind: OutcomeAPIKeyAccepted, Subject: APIKeySubject, Role: RoleAdmin}
		}
		if !sharedHeader {
			return Outcome{Kind: OutcomeAPIKeyRejected}
		}
	}

	header := strings.TrimSpace(headers.Get("Authorization"))
	if header == "" {
		return Outcome{Kind: OutcomeNoCredential}
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		if sharedHeader {
			return Outcome{Kind: OutcomeAPIKeyRejected}
		}
		return Outcome{Kind: OutcomeJWTRejected}
	}

	raw := strings.TrimSpace(parts[1])
	if raw == "" {
		return Outcome{Kind: OutcomeJWTRejected}
	}

	claims, ok := v.codec.Verify(raw)
	if !ok || claims.Type != TokenTypeAccess {
		return Outcome{Kind: OutcomeJWTRejected}
	}

	role := claims.Role
	if role == "" {
		role = RoleUser
	}

	return Outcome{Kind: OutcomeJWTAccepted, Subject: claims.Subject, Role: role}
}
