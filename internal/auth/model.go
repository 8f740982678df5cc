package auth

import "time"

// User is the stored account record. The auth core owns the lockout and
// last-login fields; profile fields are managed by the user endpoints.
type User struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Username       string     `json:"username"`
	FullName       *string    `json:"full_name,omitempty"`
	AvatarURL      *string    `json:"avatar_url,omitempty"`
	Bio            *string    `json:"bio,omitempty"`
	HashedPassword string     `json:"-"`
	Role           Role       `json:"role"`
	IsActive       bool       `json:"is_active"`
	FailedAttempts int        `json:"-"`
	LockedUntil    *time.Time `json:"-"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Scheme identifies how a request authenticated.
type Scheme string

const (
	SchemeAPIKey Scheme = "api_key"
	SchemeJWT    Scheme = "jwt"
)

// Identity is the per-request result of a successful credential check.
// It lives in the request context and nowhere else.
type Identity struct {
	UserID string
	Role   Role
	Scheme Scheme
}

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims is the decoded payload of a verified token.
type Claims struct {
	Subject   string
	Email     string
	Role      Role
	Type      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Tokens struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
}
