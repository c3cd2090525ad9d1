package models

import "time"

// CollaborationRequestStatus tracks the invitee's answer.
type CollaborationRequestStatus string

const (
	CollabPending  CollaborationRequestStatus = "pending"
	CollabAccepted CollaborationRequestStatus = "accepted"
	CollabDeclined CollaborationRequestStatus = "declined"
)

// CollaborationRequest links a collaborator admin to a programs submission.
// ProgramTitle is denormalized so invitations render before the program row
// exists; ProgramID is filled once approval creates it.
type CollaborationRequest struct {
	ID                  int64                      `json:"id"`
	SubmissionID        int64                      `json:"submissionId"`
	ProgramID           *int64                     `json:"programId,omitempty"`
	CollaboratorAdminID int64                      `json:"collaboratorAdminId"`
	InvitedByAdminID    int64                      `json:"invitedByAdminId"`
	Status              CollaborationRequestStatus `json:"status"`
	ProgramTitle        string                     `json:"programTitle"`
	CreatedAt           time.Time                  `json:"createdAt"`
}
