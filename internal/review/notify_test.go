package review

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"

	"orgreview/internal/common/logger"
	"orgreview/internal/models"
)

type capturingEmailSender struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (s *capturingEmailSender) SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	s.inputs = append(s.inputs, input)
	if s.err != nil {
		return nil, s.err
	}
	return &ses.SendEmailOutput{}, nil
}

func testSubmission(section string, proposed string) models.Submission {
	return models.Submission{
		ID:             1,
		OrganizationID: 5,
		Section:        section,
		ProposedData:   json.RawMessage(proposed),
		Status:         models.StatusPending,
		SubmittedBy:    7,
		SubmittedAt:    time.Now().UTC(),
	}
}

func TestNotify_PendingFansOutToEveryReviewer(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id FROM admins WHERE role`).
		WithArgs(string(models.RoleReviewer)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(100).AddRow(101).AddRow(102))
	for i := 0; i < 3; i++ {
		mock.ExpectExec(`INSERT INTO reviewer_notifications`).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}

	d := NewNotificationDispatcher(db, nil, "", logger.NewTestLogger(t))
	d.NotifyPendingCreated(context.Background(),
		testSubmission("programs", `{"title":"Blood Drive"}`),
		&models.Organization{ID: 5, Name: "Faith Initiative"})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotify_NoReviewersIsQuiet(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id FROM admins WHERE role`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	d := NewNotificationDispatcher(db, nil, "", logger.NewTestLogger(t))
	d.NotifyPendingCreated(context.Background(),
		testSubmission("news", `{"title":"a"}`), nil)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotify_ApprovedSendsEmailToSubmitter(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT email FROM admins WHERE id`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("ana@faith.org"))

	sender := &capturingEmailSender{}
	d := NewNotificationDispatcher(db, sender, "noreply@portal.example", logger.NewTestLogger(t))
	d.NotifyApproved(context.Background(),
		testSubmission("programs", `{"title":"Blood Drive"}`),
		&models.Organization{ID: 5, Name: "Faith Initiative"})

	if assert.Len(t, sender.inputs, 1) {
		input := sender.inputs[0]
		assert.Equal(t, "noreply@portal.example", *input.Source)
		assert.Equal(t, []string{"ana@faith.org"}, input.Destination.ToAddresses)
		assert.Equal(t, "Submission approved", *input.Message.Subject.Data)
		assert.Contains(t, *input.Message.Body.Text.Data, `"Blood Drive"`)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotify_RejectedMessageCarriesComment(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT email FROM admins WHERE id`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("ana@faith.org"))

	sender := &capturingEmailSender{}
	d := NewNotificationDispatcher(db, sender, "noreply@portal.example", logger.NewTestLogger(t))
	d.NotifyRejected(context.Background(),
		testSubmission("programs", `{"title":"Blood Drive"}`),
		nil, "Missing budget breakdown")

	if assert.Len(t, sender.inputs, 1) {
		assert.Contains(t, *sender.inputs[0].Message.Body.Text.Data, "Missing budget breakdown")
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotify_InsertFailureIsSwallowed(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnError(assert.AnError)

	sender := &capturingEmailSender{}
	d := NewNotificationDispatcher(db, sender, "noreply@portal.example", logger.NewTestLogger(t))
	d.NotifyApproved(context.Background(),
		testSubmission("news", `{"title":"a"}`), nil)

	// The failed record also suppresses the email; nothing propagates.
	assert.Empty(t, sender.inputs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotify_CollaboratorsOnePerRequest(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnResult(sqlmock.NewResult(2, 1))

	d := NewNotificationDispatcher(db, nil, "", logger.NewTestLogger(t))
	d.NotifyCollaborators(context.Background(),
		testSubmission("programs", `{"title":"Blood Drive"}`),
		[]models.CollaborationRequest{
			{ID: 9, SubmissionID: 1, CollaboratorAdminID: 12, ProgramTitle: "Blood Drive"},
			{ID: 10, SubmissionID: 1, CollaboratorAdminID: 13, ProgramTitle: "Blood Drive"},
		})

	assert.NoError(t, mock.ExpectationsWereMet())
}
