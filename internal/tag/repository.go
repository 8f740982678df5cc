package tag

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]Tag, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, color, created_at, updated_at
		FROM tags
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	tags := make([]Tag, 0)
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}

	return tags, nil
}

func (r *Repository) GetByName(ctx context.Context, name string) (Tag, error) {
	var t Tag
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, color, created_at, updated_at
		FROM tags
		WHERE name = $1
	`, name).Scan(&t.ID, &t.Name, &t.Color, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Tag{}, err
		}
		return Tag{}, fmt.Errorf("query tag: %w", err)
	}

	return t, nil
}

func (r *Repository) Create(ctx context.Context, input TagInput) (Tag, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Tag{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	t := Tag{
		ID:        id.String(),
		Name:      input.Name,
		Color:     input.Color,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tags (id, name, color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.Name, t.Color, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return Tag{}, fmt.Errorf("insert tag: %w", err)
	}

	return t, nil
}

func (r *Repository) Update(ctx context.Context, id string, input TagInput) (Tag, error) {
	var t Tag
	err := r.db.QueryRowContext(ctx, `
		UPDATE tags
		SET name = $2, color = $3, updated_at = $4
		WHERE id = $1
		RETURNING id, name, color, created_at, updated_at
	`, id, input.Name, input.Color, time.Now().UTC()).
		Scan(&t.ID, &t.Name, &t.Color, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Tag{}, err
		}
		return Tag{}, fmt.Errorf("update tag: %w", err)
	}

	return t, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}
