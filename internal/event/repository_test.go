package event

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eventColumns = []string{"id", "title", "description", "starts_at", "ends_at", "location", "created_at", "updated_at"}

func newRepositoryMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func TestRepositoryList(t *testing.T) {
	repo, mock := newRepositoryMock(t)
	now := time.Now().UTC()
	ends := now.Add(2 * time.Hour)

	rows := sqlmock.NewRows(eventColumns).
		AddRow("e1", "Team offsite", "annual planning", now, ends, "Berlin", now, now).
		AddRow("e2", "Standup", nil, now, nil, nil, now, now)

	mock.ExpectQuery(`SELECT (.+) FROM events ORDER BY starts_at DESC LIMIT \$1 OFFSET \$2`).
		WithArgs(100, 0).
		WillReturnRows(rows)

	events, err := repo.List(context.Background(), 100, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "Team offsite", events[0].Title)
	require.NotNil(t, events[0].EndsAt)
	assert.Nil(t, events[1].EndsAt)
	assert.Nil(t, events[1].Location)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetNotFound(t *testing.T) {
	repo, mock := newRepositoryMock(t)

	mock.ExpectQuery(`SELECT (.+) FROM events WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(eventColumns))

	_, err := repo.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCreate(t *testing.T) {
	repo, mock := newRepositoryMock(t)
	starts := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO events`).
		WithArgs(sqlmock.AnyArg(), "Meetup", nil, starts, nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	e, err := repo.Create(context.Background(), EventInput{Title: "Meetup", StartsAt: starts})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, starts, e.StartsAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryParticipants(t *testing.T) {
	repo, mock := newRepositoryMock(t)

	t.Run("add upserts role", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO event_persons \(event_id, person_id, role\) VALUES \(\$1, \$2, \$3\) ON CONFLICT`).
			WithArgs("e1", "p1", "organizer").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.AddPerson(context.Background(), "e1", "p1", "organizer"))
	})

	t.Run("remove missing link surfaces sql.ErrNoRows", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM event_persons WHERE event_id = \$1 AND person_id = \$2`).
			WithArgs("e1", "p1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.RemovePerson(context.Background(), "e1", "p1"), sql.ErrNoRows)
	})

	t.Run("list", func(t *testing.T) {
		mock.ExpectQuery(`SELECT p.id, p.name, ep.role FROM persons p JOIN event_persons ep`).
			WithArgs("e1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "role"}).
				AddRow("p1", "Alice", "organizer").
				AddRow("p2", "Bob", "attendee"))

		participants, err := repo.ListParticipants(context.Background(), "e1")
		require.NoError(t, err)
		require.Len(t, participants, 2)
		assert.Equal(t, "organizer", participants[0].Role)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
