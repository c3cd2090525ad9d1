package review

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	apperrors "orgreview/internal/common/errors"
	"orgreview/internal/common/logger"
	"orgreview/internal/models"
)

func submissionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "organization_id", "section", "previous_data", "proposed_data",
		"status", "submitted_by", "rejection_comment", "submitted_at",
	})
}

func TestStore_CreateBatch_AllPendingInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO submissions`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO submissions`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectCommit()

	store := NewSubmissionStore(db, logger.NewTestLogger(t))
	created, err := store.CreateBatch(context.Background(), []NewSubmission{
		{
			OrganizationID: 5,
			Section:        SectionPrograms,
			ProposedData:   json.RawMessage(`{"title":"Blood Drive"}`),
			SubmittedBy:    7,
		},
		{
			OrganizationID: 5,
			Section:        SectionAdvocacy,
			ProposedData:   json.RawMessage(`"Clean water"`),
			SubmittedBy:    7,
		},
	})

	assert.NoError(t, err)
	assert.Len(t, created, 2)
	for _, sub := range created {
		assert.Equal(t, models.StatusPending, sub.Status)
		assert.False(t, sub.SubmittedAt.IsZero())
		assert.True(t, sub.CanEdit)
		assert.True(t, sub.CanCancel)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateBatch_RollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO submissions`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO submissions`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	store := NewSubmissionStore(db, logger.NewTestLogger(t))
	_, err = store.CreateBatch(context.Background(), []NewSubmission{
		{OrganizationID: 5, Section: SectionNews, ProposedData: json.RawMessage(`{"title":"a"}`), SubmittedBy: 7},
		{OrganizationID: 5, Section: SectionNews, ProposedData: json.RawMessage(`{"title":"b"}`), SubmittedBy: 7},
	})

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateBatch_EmptyRejected(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	store := NewSubmissionStore(db, logger.NewTestLogger(t))
	_, err = store.CreateBatch(context.Background(), nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidInput))
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM submissions WHERE id`).
		WithArgs(int64(404)).
		WillReturnRows(submissionRows())

	store := NewSubmissionStore(db, logger.NewTestLogger(t))
	_, err = store.GetByID(context.Background(), 404)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListByOrganization_AnnotatesEditability(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM submissions`).
		WithArgs(int64(5)).
		WillReturnRows(submissionRows().
			AddRow(2, 5, "news", nil, []byte(`{"title":"b"}`), "pending", 7, nil, now).
			AddRow(1, 5, "news", nil, []byte(`{"title":"a"}`), "approved", 7, nil, now.Add(-time.Hour)))

	store := NewSubmissionStore(db, logger.NewTestLogger(t))
	subs, err := store.ListByOrganization(context.Background(), 5)

	assert.NoError(t, err)
	assert.Len(t, subs, 2)
	assert.True(t, subs[0].CanEdit)
	assert.True(t, subs[0].CanCancel)
	assert.False(t, subs[1].CanEdit)
	assert.False(t, subs[1].CanCancel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateProposedData_NonPendingFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	for _, status := range []string{"approved", "rejected"} {
		mock.ExpectQuery(`FROM submissions WHERE id`).
			WithArgs(int64(1)).
			WillReturnRows(submissionRows().
				AddRow(1, 5, "news", nil, []byte(`{"title":"a"}`), status, 7, nil, now))

		store := NewSubmissionStore(db, logger.NewTestLogger(t))
		err := store.UpdateProposedData(context.Background(), 1, json.RawMessage(`{"title":"b"}`))
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidState), "status %s", status)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateProposedData_ShapeMismatchFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM submissions WHERE id`).
		WithArgs(int64(1)).
		WillReturnRows(submissionRows().
			AddRow(1, 5, "advocacy", nil, []byte(`"old text"`), "pending", 7, nil, now))

	store := NewSubmissionStore(db, logger.NewTestLogger(t))
	err = store.UpdateProposedData(context.Background(), 1, json.RawMessage(`{"text":"not a string"}`))
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidPayload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateProposedData_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM submissions WHERE id`).
		WithArgs(int64(1)).
		WillReturnRows(submissionRows().
			AddRow(1, 5, "advocacy", nil, []byte(`"old text"`), "pending", 7, nil, now))
	mock.ExpectExec(`UPDATE submissions SET proposed_data`).
		WithArgs([]byte(`"new text"`), int64(1), "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewSubmissionStore(db, logger.NewTestLogger(t))
	err = store.UpdateProposedData(context.Background(), 1, json.RawMessage(`"new text"`))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateProposedData_ConcurrentDecisionLosesRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM submissions WHERE id`).
		WithArgs(int64(1)).
		WillReturnRows(submissionRows().
			AddRow(1, 5, "advocacy", nil, []byte(`"old text"`), "pending", 7, nil, now))
	mock.ExpectExec(`UPDATE submissions SET proposed_data`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewSubmissionStore(db, logger.NewTestLogger(t))
	err = store.UpdateProposedData(context.Background(), 1, json.RawMessage(`"new text"`))
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidState))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM submissions WHERE id`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM submissions WHERE id`).
		WithArgs(int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewSubmissionStore(db, logger.NewTestLogger(t))
	assert.NoError(t, store.Delete(context.Background(), 1))

	err = store.Delete(context.Background(), 404)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
