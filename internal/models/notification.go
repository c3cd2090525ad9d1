package models

import "time"

// Notification is a submitter-facing in-app notification. Reviewer-facing
// rows share the shape but live in their own table so the reviewer queue
// can be purged independently.
type Notification struct {
	ID             string    `json:"id"`
	RecipientID    int64     `json:"recipientId"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Section        string    `json:"section"`
	SubmissionID   *int64    `json:"submissionId,omitempty"`
	OrganizationID int64     `json:"organizationId"`
	IsRead         bool      `json:"isRead"`
	CreatedAt      time.Time `json:"createdAt"`
}

const (
	NotificationTypePending  = "submission_pending"
	NotificationTypeApproved = "submission_approved"
	NotificationTypeRejected = "submission_rejected"
	NotificationTypeCollab   = "collaboration_invite"
)
