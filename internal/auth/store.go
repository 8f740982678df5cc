package auth

import (
	"context"
	"time"
)

// Store is the user-record collaborator the auth core reads and writes
// through. The core only ever mutates lockout, last-login and password
// fields; everything else belongs to the user-management surface.
// Implementations return sql.ErrNoRows for misses.
type Store interface {
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	Create(ctx context.Context, user User) error
	UpdateLockout(ctx context.Context, id string, failedAttempts int, lockedUntil *time.Time) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id string, hashedPassword string) error

	// UpdateRole serves the bootstrap-admin path only; the login flow
	// never changes roles.
	UpdateRole(ctx context.Context, id string, role Role) error
}
