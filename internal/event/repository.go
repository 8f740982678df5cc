package event

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

func (r *Repository) List(ctx context.Context, limit, offset int) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, description, starts_at, ends_at, location, created_at, updated_at
		FROM events
		ORDER BY starts_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.StartsAt, &e.EndsAt, &e.Location, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Event, error) {
	var e Event
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, description, starts_at, ends_at, location, created_at, updated_at
		FROM events
		WHERE id = $1
	`, id).Scan(&e.ID, &e.Title, &e.Description, &e.StartsAt, &e.EndsAt, &e.Location, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Event{}, err
		}
		return Event{}, fmt.Errorf("query event: %w", err)
	}

	return e, nil
}

func (r *Repository) Create(ctx context.Context, input EventInput) (Event, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Event{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	e := Event{
		ID:          id.String(),
		Title:       input.Title,
		Description: input.Description,
		StartsAt:    input.StartsAt,
		EndsAt:      input.EndsAt,
		Location:    input.Location,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO events (id, title, description, starts_at, ends_at, location, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.Title, e.Description, e.StartsAt, e.EndsAt, e.Location, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return Event{}, fmt.Errorf("insert event: %w", err)
	}

	return e, nil
}

func (r *Repository) Update(ctx context.Context, id string, input EventInput) (Event, error) {
	var e Event
	err := r.db.QueryRowContext(ctx, `
		UPDATE events
		SET title = $2, description = $3, starts_at = $4, ends_at = $5, location = $6, updated_at = $7
		WHERE id = $1
		RETURNING id, title, description, starts_at, ends_at, location, created_at, updated_at
	`, id, input.Title, input.Description, input.StartsAt, input.EndsAt, input.Location, time.Now().UTC()).
		Scan(&e.ID, &e.Title, &e.Description, &e.StartsAt, &e.EndsAt, &e.Location, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Event{}, err
		}
		return Event{}, fmt.Errorf("update event: %w", err)
	}

	return e, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
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

func (r *Repository) AddPerson(ctx context.Context, eventID, personID, role string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO event_persons (event_id, person_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id, person_id) DO UPDATE SET role = EXCLUDED.role
	`, eventID, personID, role)
	if err != nil {
		return fmt.Errorf("add event person: %w", err)
	}

	return nil
}

func (r *Repository) RemovePerson(ctx context.Context, eventID, personID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM event_persons WHERE event_id = $1 AND person_id = $2
	`, eventID, personID)
	if err != nil {
		return fmt.Errorf("remove event person: %w", err)
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

func (r *Repository) ListParticipants(ctx context.Context, eventID string) ([]Participant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.name, ep.role
		FROM persons p
		JOIN event_persons ep ON ep.person_id = p.id
		WHERE ep.event_id = $1
		ORDER BY p.name ASC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	participants := make([]Participant, 0)
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.PersonID, &p.Name, &p.Role); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}

	return participants, nil
}
