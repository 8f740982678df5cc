package auth

import (
	"errors"
	"time"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrEmailTaken          = errors.New("email already registered")
	ErrUsernameTaken       = errors.New("username already taken")
	ErrInactiveUser        = errors.New("user is inactive")
	ErrWeakPassword        = errors.New("password must be at least 8 characters")
)

// ErrAccountLocked carries the moment the lock expires so handlers can
// emit a Retry-After header.
type ErrAccountLocked struct {
	Until time.Time
}

func (e ErrAccountLocked) Error() string {
	return "account temporarily locked"
}
