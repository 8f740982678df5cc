package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository is the Postgres-backed user store.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `
	id, email, username, full_name, avatar_url, bio, hashed_password,
	role, is_active, failed_login_attempts, locked_until, last_login,
	created_at, updated_at`

func (r *Repository) GetByID(ctx context.Context, id string) (User, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.getOne(ctx, `WHERE email = $1`, email)
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (User, error) {
	return r.getOne(ctx, `WHERE username = $1`, username)
}

func (r *Repository) getOne(ctx context.Context, where string, arg any) (User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users `+where, arg)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, err
		}
		return User{}, fmt.Errorf("query user: %w", err)
	}

	return user, nil
}

func (r *Repository) Create(ctx context.Context, user User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			id, email, username, full_name, avatar_url, bio, hashed_password,
			role, is_active, failed_login_attempts, locked_until, last_login,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, user.ID, user.Email, user.Username, user.FullName, user.AvatarURL, user.Bio,
		user.HashedPassword, string(user.Role), user.IsActive, user.FailedAttempts,
		user.LockedUntil, user.LastLogin, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

func (r *Repository) UpdateLockout(ctx context.Context, id string, failedAttempts int, lockedUntil *time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET failed_login_attempts = $2, locked_until = $3, updated_at = NOW()
		WHERE id = $1
	`, id, failedAttempts, lockedUntil)
	if err != nil {
		return fmt.Errorf("update lockout: %w", err)
	}

	return nil
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET last_login = $2, updated_at = NOW()
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}

	return nil
}

func (r *Repository) UpdatePassword(ctx context.Context, id string, hashedPassword string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET hashed_password = $2, updated_at = NOW()
		WHERE id = $1
	`, id, hashedPassword)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return nil
}

func (r *Repository) UpdateRole(ctx context.Context, id string, role Role) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET role = $2, updated_at = NOW()
		WHERE id = $1
	`, id, string(role))
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}

	return nil
}

// UpdateProfile writes the caller-editable fields. Email and username
// uniqueness is enforced by the schema; callers pre-check to return a
// friendly error before hitting the constraint.
func (r *Repository) UpdateProfile(ctx context.Context, id string, email, username string, fullName, bio *string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET email = $2, username = $3, full_name = $4, bio = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, id, email, username, fullName, bio)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, err
		}
		return User{}, fmt.Errorf("update profile: %w", err)
	}

	return user, nil
}

func (r *Repository) UpdateAvatar(ctx context.Context, id string, avatarURL string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET avatar_url = $2, updated_at = NOW()
		WHERE id = $1
	`, id, avatarURL)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}

	return nil
}

func (r *Repository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1
	`, id, active)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}

	return requireAffected(res)
}

// ClearLock lifts a lock ahead of its expiry (admin unlock).
func (r *Repository) ClearLock(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET failed_login_attempts = 0, locked_until = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("clear lock: %w", err)
	}

	return requireAffected(res)
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]User, error) {
	return r.list(ctx, `
		SELECT `+userColumns+` FROM users
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
}

func (r *Repository) ListActive(ctx context.Context, limit, offset int) ([]User, error) {
	return r.list(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE is_active = TRUE
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
}

func (r *Repository) ListByRole(ctx context.Context, role Role, limit, offset int) ([]User, error) {
	return r.list(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE role = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`, string(role), limit, offset)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	return requireAffected(res)
}

// ReleaseExpiredLocks clears lock state that has aged out, so stale rows
// do not linger between logins. Called from the maintenance endpoint.
func (r *Repository) ReleaseExpiredLocks(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET failed_login_attempts = 0, locked_until = NULL, updated_at = NOW()
		WHERE locked_until IS NOT NULL AND locked_until < NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("release expired locks: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("released locks rows affected: %w", err)
	}

	return affected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var user User
	var role string
	var lockedUntil, lastLogin sql.NullTime

	err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.FullName, &user.AvatarURL,
		&user.Bio, &user.HashedPassword, &role, &user.IsActive,
		&user.FailedAttempts, &lockedUntil, &lastLogin,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}

	user.Role = Role(role)
	if lockedUntil.Valid {
		value := lockedUntil.Time.UTC()
		user.LockedUntil = &value
	}
	if lastLogin.Valid {
		value := lastLogin.Time.UTC()
		user.LastLogin = &value
	}

	return user, nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
