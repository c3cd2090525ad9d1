package models

import (
	"encoding/json"
	"time"
)

// SubmissionStatus is the lifecycle state of a submission. Transitions are
// pending -> approved and pending -> rejected only; both end states are
// terminal and removable solely by hard delete.
type SubmissionStatus string

const (
	StatusPending  SubmissionStatus = "pending"
	StatusApproved SubmissionStatus = "approved"
	StatusRejected SubmissionStatus = "rejected"
)

type Submission struct {
	ID               int64            `json:"id"`
	OrganizationID   int64            `json:"organizationId"`
	Section          string           `json:"section"`
	PreviousData     json.RawMessage  `json:"previousData,omitempty"`
	ProposedData     json.RawMessage  `json:"proposedData"`
	Status           SubmissionStatus `json:"status"`
	SubmittedBy      int64            `json:"submittedBy"`
	RejectionComment *string          `json:"rejectionComment,omitempty"`
	SubmittedAt      time.Time        `json:"submittedAt"`

	// Annotations for listing endpoints; true only while pending.
	CanEdit   bool `json:"canEdit"`
	CanCancel bool `json:"canCancel"`
}

// Annotate sets the list-view edit/cancel flags from the current status.
func (s *Submission) Annotate() {
	editable := s.Status == StatusPending
	s.CanEdit = editable
	s.CanCancel = editable
}
