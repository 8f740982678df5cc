package auth

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// memStore is an in-memory Store for exercising the auth flows without a
// database.
type memStore struct {
	mu    sync.Mutex
	users map[string]User
	fail  error
}

func newMemStore(users ...User) *memStore {
	store := &memStore{users: make(map[string]User)}
	for _, u := range users {
		store.users[u.ID] = u
	}
	return store
}

func (s *memStore) GetByID(_ context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return User{}, s.fail
	}
	user, ok := s.users[id]
	if !ok {
		return User{}, sql.ErrNoRows
	}
	return user, nil
}

func (s *memStore) GetByEmail(_ context.Context, email string) (User, error) {
	return s.find(func(u User) bool { return u.Email == email })
}

func (s *memStore) GetByUsername(_ context.Context, username string) (User, error) {
	return s.find(func(u User) bool { return u.Username == username })
}

func (s *memStore) find(match func(User) bool) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return User{}, s.fail
	}
	for _, user := range s.users {
		if match(user) {
			return user, nil
		}
	}
	return User{}, sql.ErrNoRows
}

func (s *memStore) Create(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

func (s *memStore) UpdateLockout(_ context.Context, id string, failedAttempts int, lockedUntil *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.FailedAttempts = failedAttempts
	user.LockedUntil = lockedUntil
	s.users[id] = user
	return nil
}

func (s *memStore) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.LastLogin = &at
	s.users[id] = user
	return nil
}

func (s *memStore) UpdatePassword(_ context.Context, id string, hashedPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.HashedPassword = hashedPassword
	s.users[id] = user
	return nil
}

func (s *memStore) UpdateRole(_ context.Context, id string, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.Role = role
	s.users[id] = user
	return nil
}

func (s *memStore) get(id string) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}
