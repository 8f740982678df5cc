package person

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

func (r *Repository) List(ctx context.Context, query string, limit, offset int) ([]Person, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, birth_date, memo, created_at, updated_at
		FROM persons
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%'
		ORDER BY name ASC
		LIMIT $2 OFFSET $3
	`, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()

	persons := make([]Person, 0)
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.BirthDate, &p.Memo, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}

	return persons, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Person, error) {
	var p Person
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, birth_date, memo, created_at, updated_at
		FROM persons
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Email, &p.BirthDate, &p.Memo, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Person{}, err
		}
		return Person{}, fmt.Errorf("query person: %w", err)
	}

	return p, nil
}

func (r *Repository) Create(ctx context.Context, input PersonInput) (Person, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Person{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	p := Person{
		ID:        id.String(),
		Name:      input.Name,
		Email:     input.Email,
		BirthDate: input.BirthDate,
		Memo:      input.Memo,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO persons (id, name, email, birth_date, memo, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.Name, p.Email, p.BirthDate, p.Memo, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return Person{}, fmt.Errorf("insert person: %w", err)
	}

	return p, nil
}

func (r *Repository) Update(ctx context.Context, id string, input PersonInput) (Person, error) {
	var p Person
	err := r.db.QueryRowContext(ctx, `
		UPDATE persons
		SET name = $2, email = $3, birth_date = $4, memo = $5, updated_at = $6
		WHERE id = $1
		RETURNING id, name, email, birth_date, memo, created_at, updated_at
	`, id, input.Name, input.Email, input.BirthDate, input.Memo, time.Now().UTC()).
		Scan(&p.ID, &p.Name, &p.Email, &p.BirthDate, &p.Memo, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Person{}, err
		}
		return Person{}, fmt.Errorf("update person: %w", err)
	}

	return p, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM persons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
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

func (r *Repository) AddTag(ctx context.Context, personID, tagID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO person_tags (person_id, tag_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, personID, tagID)
	if err != nil {
		return fmt.Errorf("add person tag: %w", err)
	}

	return nil
}

func (r *Repository) RemoveTag(ctx context.Context, personID, tagID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM person_tags WHERE person_id = $1 AND tag_id = $2
	`, personID, tagID)
	if err != nil {
		return fmt.Errorf("remove person tag: %w", err)
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

func (r *Repository) ListTags(ctx context.Context, personID string) ([]TagRef, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.color
		FROM tags t
		JOIN person_tags pt ON pt.tag_id = t.id
		WHERE pt.person_id = $1
		ORDER BY t.name ASC
	`, personID)
	if err != nil {
		return nil, fmt.Errorf("query person tags: %w", err)
	}
	defer rows.Close()

	tags := make([]TagRef, 0)
	for rows.Next() {
		var t TagRef
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, fmt.Errorf("scan person tag: %w", err)
		}
		tags = append(tags, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate person tags: %w", err)
	}

	return tags, nil
}
