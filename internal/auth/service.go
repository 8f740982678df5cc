package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service owns the credential flows: registration, login with lockout,
// token refresh and password changes. All collaborators are injected at
// startup and immutable afterwards.
type Service struct {
	store   Store
	codec   *TokenCodec
	hasher  *PasswordHasher
	lockout *LockoutPolicy
}

func NewService(store Store, codec *TokenCodec, hasher *PasswordHasher, lockout *LockoutPolicy) *Service {
	return &Service{store: store, codec: codec, hasher: hasher, lockout: lockout}
}

type RegisterInput struct {
	Email    string
	Username string
	Password string
	FullName *string
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	username := strings.TrimSpace(strings.ToLower(input.Username))

	if len(input.Password) < 8 {
		return User{}, ErrWeakPassword
	}

	if _, err := s.store.GetByEmail(ctx, email); err == nil {
		return User{}, ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return User{}, err
	}
	if _, err := s.store.GetByUsername(ctx, username); err == nil {
		return User{}, ErrUsernameTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return User{}, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return User{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	user := User{
		ID:             id.String(),
		Email:          email,
		Username:       username,
		FullName:       input.FullName,
		HashedPassword: hash,
		Role:           RoleUser,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.Create(ctx, user); err != nil {
		return User{}, err
	}

	return user, nil
}

// Login authenticates by email or username. The lock is checked before
// the password so a locked account answers 423 no matter what was typed.
// A wrong password on the attempt that reaches the threshold still
// answers invalid-credentials; the lock is only observed from the next
// attempt on.
func (s *Service) Login(ctx context.Context, identifier, password string) (Tokens, error) {
	identifier = strings.TrimSpace(strings.ToLower(identifier))
	if identifier == "" || password == "" {
		return Tokens{}, ErrInvalidCredentials
	}

	user, err := s.store.GetByEmail(ctx, identifier)
	if errors.Is(err, sql.ErrNoRows) {
		user, err = s.store.GetByUsername(ctx, identifier)
	}
	if err != nil {
		// Store failures surface as a generic deny; the client cannot
		// distinguish them from a wrong password.
		if errors.Is(err, sql.ErrNoRows) {
			return Tokens{}, ErrInvalidCredentials
		}
		return Tokens{}, err
	}

	if until, locked := s.lockout.Check(user); locked {
		return Tokens{}, ErrAccountLocked{Until: until}
	}

	if !user.IsActive {
		return Tokens{}, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.HashedPassword) {
		if _, err := s.lockout.RecordFailure(ctx, user); err != nil {
			return Tokens{}, err
		}
		return Tokens{}, ErrInvalidCredentials
	}

	if _, err := s.lockout.RecordSuccess(ctx, user); err != nil {
		return Tokens{}, err
	}

	return s.issueTokens(user)
}

// Refresh trades a valid refresh token for a fresh access token. Role and
// email are re-read from the store, not trusted from the old token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	claims, ok := s.codec.Verify(strings.TrimSpace(refreshToken))
	if !ok || claims.Type != TokenTypeRefresh {
		return Tokens{}, ErrInvalidRefreshToken
	}

	user, err := s.store.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Tokens{}, ErrInvalidRefreshToken
		}
		return Tokens{}, err
	}
	if !user.IsActive {
		return Tokens{}, ErrInvalidRefreshToken
	}

	access, err := s.codec.IssueAccess(user.ID, user.Email, user.Role, 0)
	if err != nil {
		return Tokens{}, err
	}

	return Tokens{
		AccessToken: access,
		TokenType:   "bearer",
		ExpiresIn:   s.codec.ExpiresInSeconds(),
	}, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(currentPassword, user.HashedPassword) {
		return ErrInvalidCredentials
	}
	if len(newPassword) < 8 {
		return ErrWeakPassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.store.UpdatePassword(ctx, userID, hash)
}

// EnsureAdmin creates or repairs the bootstrap admin account from the
// environment. No-op when the values are absent.
func (s *Service) EnsureAdmin(ctx context.Context, email, username, password string) error {
	if email == "" && username == "" && password == "" {
		return nil
	}

	user, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		created, regErr := s.Register(ctx, RegisterInput{Email: email, Username: username, Password: password})
		if regErr != nil {
			return fmt.Errorf("bootstrap admin: %w", regErr)
		}
		user = created
	} else if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	if user.Role != RoleAdmin {
		if promoteErr := s.store.UpdateRole(ctx, user.ID, RoleAdmin); promoteErr != nil {
			return fmt.Errorf("bootstrap admin: %w", promoteErr)
		}
	}

	return nil
}

func (s *Service) issueTokens(user User) (Tokens, error) {
	access, err := s.codec.IssueAccess(user.ID, user.Email, user.Role, 0)
	if err != nil {
		return Tokens{}, err
	}

	refresh, err := s.codec.IssueRefresh(user.ID)
	if err != nil {
		return Tokens{}, err
	}

	return Tokens{
		AccessToken:  access,
		TokenType:    "bearer",
		ExpiresIn:    s.codec.ExpiresInSeconds(),
		RefreshToken: refresh,
	}, nil
}
