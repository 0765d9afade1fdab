package sessions

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupHasSession(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	lookup := NewLookup(repo)

	ok, err := lookup.HasSession(ctx, "appt-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Create(ctx, &Record{ID: "s1", AppointmentID: "appt-1", PatientID: "pat-1"}))
	ok, err = lookup.HasSession(ctx, "appt-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLookupSurfacesStoreErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM sessions WHERE appointment_id").WithArgs("appt-1").WillReturnError(assert.AnError)

	ok, err := NewLookup(NewSQLRepository(db)).HasSession(context.Background(), "appt-1")
	assert.False(t, ok)
	assert.ErrorIs(t, err, assert.AnError)
	require.NoError(t, mock.ExpectationsWereMet())
}
