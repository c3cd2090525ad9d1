package review

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"orgreview/internal/common/logger"
	"orgreview/internal/models"
)

func TestCollab_SkipsInviterAndDuplicates(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	// Collaborators 7 (the inviter) and the repeated 12 collapse to a single
	// invitation for 12.
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(1), int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO collaboration_requests`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

	coord := NewCollaborationCoordinator(db, logger.NewTestLogger(t))
	requests, err := coord.CreateRequests(context.Background(), 1, 42, "Blood Drive", 7, []int64{7, 12, 12})

	assert.NoError(t, err)
	assert.Len(t, requests, 1)
	req := requests[0]
	assert.Equal(t, int64(9), req.ID)
	assert.Equal(t, int64(12), req.CollaboratorAdminID)
	assert.Equal(t, int64(7), req.InvitedByAdminID)
	assert.Equal(t, models.CollabPending, req.Status)
	assert.Equal(t, "Blood Drive", req.ProgramTitle)
	if assert.NotNil(t, req.ProgramID) {
		assert.Equal(t, int64(42), *req.ProgramID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollab_ExistingRequestNotDuplicated(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(1), int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	coord := NewCollaborationCoordinator(db, logger.NewTestLogger(t))
	requests, err := coord.CreateRequests(context.Background(), 1, 42, "Blood Drive", 7, []int64{12})

	assert.NoError(t, err)
	assert.Empty(t, requests)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollab_ZeroProgramIDStoredAsNull(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(1), int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO collaboration_requests`).
		WithArgs(int64(1), nil, int64(12), int64(7), "pending", "Blood Drive", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

	coord := NewCollaborationCoordinator(db, logger.NewTestLogger(t))
	requests, err := coord.CreateRequests(context.Background(), 1, 0, "Blood Drive", 7, []int64{12})

	assert.NoError(t, err)
	assert.Len(t, requests, 1)
	assert.Nil(t, requests[0].ProgramID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
