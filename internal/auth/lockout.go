package auth

import (
	"context"
	"time"
)

// LockoutPolicy converts consecutive failed logins into a timed lock on
// the user record. Threshold and duration are process-wide startup
// parameters.
//
// Persistence is read-then-write per attempt: two concurrent failures for
// the same user may both observe count 4 and both write 5. That race is
// accepted; the lock still arms within one attempt of the threshold.
type LockoutPolicy struct {
	store        Store
	maxAttempts  int
	lockDuration time.Duration
	now          func() time.Time
}

func NewLockoutPolicy(store Store, maxAttempts int, lockDuration time.Duration) *LockoutPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if lockDuration <= 0 {
		lockDuration = 30 * time.Minute
	}
	return &LockoutPolicy{
		store:        store,
		maxAttempts:  maxAttempts,
		lockDuration: lockDuration,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Check reports whether the account is currently locked. A lock that has
// already expired counts as unlocked; it is cleared on the next
// successful login.
func (p *LockoutPolicy) Check(user User) (time.Time, bool) {
	if user.LockedUntil != nil && p.now().Before(*user.LockedUntil) {
		return *user.LockedUntil, true
	}
	return time.Time{}, false
}

// RecordFailure bumps the failure counter and arms the lock when the new
// count reaches the threshold. The returned user reflects the persisted
// state.
func (p *LockoutPolicy) RecordFailure(ctx context.Context, user User) (User, error) {
	user.FailedAttempts++
	user.LockedUntil = nil
	if user.FailedAttempts >= p.maxAttempts {
		until := p.now().Add(p.lockDuration)
		user.LockedUntil = &until
	}

	if err := p.store.UpdateLockout(ctx, user.ID, user.FailedAttempts, user.LockedUntil); err != nil {
		return User{}, err
	}

	return user, nil
}

// RecordSuccess zeroes the counter, clears any stale lock and stamps the
// login time. Only called after the password verified and the account was
// not locked.
func (p *LockoutPolicy) RecordSuccess(ctx context.Context, user User) (User, error) {
	user.FailedAttempts = 0
	user.LockedUntil = nil
	if err := p.store.UpdateLockout(ctx, user.ID, 0, nil); err != nil {
		return User{}, err
	}

	at := p.now()
	user.LastLogin = &at
	if err := p.store.UpdateLastLogin(ctx, user.ID, at); err != nil {
		return User{}, err
	}

	return user, nil
}
