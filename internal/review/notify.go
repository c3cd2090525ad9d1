package review

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/google/uuid"

	"orgreview/internal/common/logger"
	"orgreview/internal/common/metrics"
	"orgreview/internal/models"
)

// EmailSender is the outbound mail channel; satisfied by the SES wrapper.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// NotificationDispatcher composes and records notifications for the
// reviewing role and for submitters. Notifications are advisory: every
// failure here is logged, counted and swallowed, never propagated to the
// operation that triggered it.
type NotificationDispatcher struct {
	db        *sql.DB
	email     EmailSender
	fromEmail string
	logger    logger.Logger
}

func NewNotificationDispatcher(db *sql.DB, email EmailSender, fromEmail string, log logger.Logger) *NotificationDispatcher {
	return &NotificationDispatcher{
		db:        db,
		email:     email,
		fromEmail: fromEmail,
		logger:    log.WithFields(map[string]interface{}{"component": "notification-dispatcher"}),
	}
}

// NotifyPendingCreated records one reviewer notification per principal
// holding the reviewing role.
func (d *NotificationDispatcher) NotifyPendingCreated(ctx context.Context, sub models.Submission, org *models.Organization) {
	title, message := composePendingMessage(sub, org)

	reviewers, err := d.reviewerIDs(ctx)
	if err != nil {
		d.swallow("reviewer fan-out", sub.ID, err)
		return
	}
	if len(reviewers) == 0 {
		d.logger.Warn("no reviewers to notify", map[string]interface{}{
			"submissionId": sub.ID,
		})
		return
	}

	for _, reviewerID := range reviewers {
		if err := d.insert(ctx, "reviewer_notifications", reviewerID,
			models.NotificationTypePending, title, message, sub); err != nil {
			d.swallow("reviewer notification", sub.ID, err)
		}
	}
}

// NotifyApproved records an approval notice addressed to the submitter.
func (d *NotificationDispatcher) NotifyApproved(ctx context.Context, sub models.Submission, org *models.Organization) {
	subject := subjectOf(sub, org)
	title := "Submission approved"
	message := fmt.Sprintf("Your %s submission%s has been approved.", sub.Section, subject)

	if err := d.insert(ctx, "notifications", sub.SubmittedBy,
		models.NotificationTypeApproved, title, message, sub); err != nil {
		d.swallow("approval notification", sub.ID, err)
		return
	}
	d.sendEmail(ctx, sub.SubmittedBy, title, message)
}

// NotifyRejected records a rejection notice including the reviewer comment.
func (d *NotificationDispatcher) NotifyRejected(ctx context.Context, sub models.Submission, org *models.Organization, comment string) {
	subject := subjectOf(sub, org)
	title := "Submission rejected"
	message := fmt.Sprintf("Your %s submission%s has been rejected. Reviewer comment: %s",
		sub.Section, subject, comment)

	if err := d.insert(ctx, "notifications", sub.SubmittedBy,
		models.NotificationTypeRejected, title, message, sub); err != nil {
		d.swallow("rejection notification", sub.ID, err)
		return
	}
	d.sendEmail(ctx, sub.SubmittedBy, title, message)
}

// NotifyCollaborators records one invitation notice per collaboration
// request. Whether this runs at submission time or after approval is a
// deployment choice; both call sites share this path.
func (d *NotificationDispatcher) NotifyCollaborators(ctx context.Context, sub models.Submission, requests []models.CollaborationRequest) {
	for _, req := range requests {
		title := "Program collaboration invitation"
		message := fmt.Sprintf("You have been invited to collaborate on the program %q.", req.ProgramTitle)
		if err := d.insert(ctx, "notifications", req.CollaboratorAdminID,
			models.NotificationTypeCollab, title, message, sub); err != nil {
			d.swallow("collaboration notification", sub.ID, err)
		}
	}
}

func (d *NotificationDispatcher) insert(ctx context.Context, table string, recipientID int64, notifType, title, message string, sub models.Submission) error {
	_, err := d.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			id, recipient_id, type, title, message, section,
			submission_id, organization_id, is_read, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9)`, table),
		uuid.New().String(), recipientID, notifType, title, message,
		sub.Section, sub.ID, sub.OrganizationID, time.Now().UTC())
	return err
}

func (d *NotificationDispatcher) reviewerIDs(ctx context.Context) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id FROM admins WHERE role = $1`, models.RoleReviewer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// sendEmail delivers the notice over SES when the channel is configured.
// Best-effort like everything else here.
func (d *NotificationDispatcher) sendEmail(ctx context.Context, recipientID int64, subject, body string) {
	if d.email == nil {
		return
	}

	var address string
	err := d.db.QueryRowContext(ctx,
		`SELECT email FROM admins WHERE id = $1`, recipientID).Scan(&address)
	if err != nil {
		d.swallow("email address lookup", 0, err)
		return
	}
	if address == "" {
		return
	}

	_, err = d.email.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(d.fromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{address},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
	})
	if err != nil {
		d.swallow("email delivery", 0, err)
	}
}

func (d *NotificationDispatcher) swallow(kind string, submissionID int64, err error) {
	metrics.NotificationFailures.WithLabelValues(kind).Inc()
	d.logger.Error("notification failed", map[string]interface{}{
		"type":         kind,
		"submissionId": submissionID,
		"error":        err.Error(),
	})
}

func composePendingMessage(sub models.Submission, org *models.Organization) (string, string) {
	orgName := ""
	if org != nil {
		orgName = org.Name
	}

	title := fmt.Sprintf("New %s submission", sub.Section)
	message := fmt.Sprintf("%s submitted a %s change for review.", orgName, sub.Section)

	if display := DisplayField(Section(sub.Section), sub.ProposedData); display != "" {
		switch Section(sub.Section) {
		case SectionPrograms:
			message = fmt.Sprintf("%s submitted the program %q for review.", orgName, display)
		case SectionNews:
			message = fmt.Sprintf("%s submitted the news item %q for review.", orgName, display)
		case SectionOrganization:
			message = fmt.Sprintf("%s proposed renaming the organization to %q.", orgName, display)
		}
	}
	return title, message
}

func subjectOf(sub models.Submission, org *models.Organization) string {
	if display := DisplayField(Section(sub.Section), sub.ProposedData); display != "" {
		return fmt.Sprintf(" %q", display)
	}
	if org != nil && org.Name != "" {
		return fmt.Sprintf(" for %s", org.Name)
	}
	return ""
}
