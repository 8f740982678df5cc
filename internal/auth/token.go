package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenCodec signs and verifies the access and refresh JWTs. All knobs are
// fixed at construction; the codec is safe for concurrent use.
type TokenCodec struct {
	secret     []byte
	method     jwt.SigningMethod
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenCodec(secret, algorithm, issuer, audience string, accessTTL, refreshTTL time.Duration) (*TokenCodec, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	method := jwt.GetSigningMethod(algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm: %s", algorithm)
	}

	if accessTTL <= 0 {
		accessTTL = 30 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}

	return &TokenCodec{
		secret:     []byte(secret),
		method:     method,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// IssueAccess signs an access token for the subject. A non-zero ttl
// overrides the configured access TTL.
func (c *TokenCodec) IssueAccess(subject, email string, role Role, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = c.accessTTL
	}

	claims := jwt.MapClaims{
		"sub":   subject,
		"email": email,
		"role":  string(role),
		"typ":   TokenTypeAccess,
	}
	return c.sign(claims, ttl)
}

// IssueRefresh signs a refresh token carrying only the subject. Refresh
// tokens never embed email or role; renewal re-reads them from the store.
func (c *TokenCodec) IssueRefresh(subject string) (string, error) {
	claims := jwt.MapClaims{
		"sub": subject,
		"typ": TokenTypeRefresh,
	}
	return c.sign(claims, c.refreshTTL)
}

func (c *TokenCodec) sign(claims jwt.MapClaims, ttl time.Duration) (string, error) {
	now := c.now()
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(ttl).Unix()
	if c.issuer != "" {
		claims["iss"] = c.issuer
	}
	if c.audience != "" {
		claims["aud"] = c.audience
	}

	encoded, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}

	return encoded, nil
}

// Verify decodes the token and checks signature, algorithm, expiry, issuer
// and audience in one pass. Failures are expected traffic (expired
// sessions, garbage headers) so the result is a plain ok flag, never an
// error.
func (c *TokenCodec) Verify(raw string) (Claims, bool) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		options = append(options, jwt.WithIssuer(c.issuer))
	}
	if c.audience != "" {
		options = append(options, jwt.WithAudience(c.audience))
	}

	parsed := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, parsed, func(token *jwt.Token) (any, error) {
		return c.secret, nil
	}, options...)
	if err != nil || !token.Valid {
		return Claims{}, false
	}

	subject, _ := parsed["sub"].(string)
	if subject == "" {
		return Claims{}, false
	}

	claims := Claims{Subject: subject}
	claims.Email, _ = parsed["email"].(string)
	if role, ok := parsed["role"].(string); ok {
		claims.Role = Role(role)
	}
	claims.Type, _ = parsed["typ"].(string)
	if iat, ok := parsed["iat"].(float64); ok {
		claims.IssuedAt = time.Unix(int64(iat), 0).UTC()
	}
	if exp, ok := parsed["exp"].(float64); ok {
		claims.ExpiresAt = time.Unix(int64(exp), 0).UTC()
	}

	return claims, true
}

// ExpiresInSeconds is the configured access-token lifetime, exposed for
// the login response body.
func (c *TokenCodec) ExpiresInSeconds() int64 {
	return int64(c.accessTTL.Seconds())
}
