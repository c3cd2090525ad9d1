package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"orgreview/internal/common/config"
	apperrors "orgreview/internal/common/errors"
	"orgreview/internal/common/logger"
	"orgreview/internal/common/metrics"
	"orgreview/internal/models"
)

// BatchItem is one proposed change in a CreateSubmissionBatch call.
type BatchItem struct {
	OrganizationIdentifier string          `json:"organizationIdentifier"`
	Section                string          `json:"section"`
	PreviousData           json.RawMessage `json:"previousData,omitempty"`
	ProposedData           json.RawMessage `json:"proposedData"`
	SubmittedBy            int64           `json:"submittedBy,omitempty"`
}

// Service exposes the workflow operations. It consumes a verified actor
// identity from the transport layer and trusts it without re-verifying
// credentials.
type Service struct {
	resolver   *OrganizationResolver
	store      *SubmissionStore
	machine    *ApprovalStateMachine
	bulk       *BulkOperationRunner
	dispatcher *NotificationDispatcher

	noticeOnSubmission bool

	logger logger.Logger
}

func NewService(
	resolver *OrganizationResolver,
	store *SubmissionStore,
	machine *ApprovalStateMachine,
	bulk *BulkOperationRunner,
	dispatcher *NotificationDispatcher,
	collaboratorNotice string,
	log logger.Logger,
) *Service {
	return &Service{
		resolver:           resolver,
		store:              store,
		machine:            machine,
		bulk:               bulk,
		dispatcher:         dispatcher,
		noticeOnSubmission: collaboratorNotice == config.CollaboratorNoticeSubmission,
		logger:             log.WithFields(map[string]interface{}{"component": "review-service"}),
	}
}

// CreateSubmissionBatch validates and persists a batch of proposals. Every
// organization identifier must resolve and every payload must match its
// section contract before any row is written; there is no partial batch.
func (s *Service) CreateSubmissionBatch(ctx context.Context, actor models.Actor, items []BatchItem) (int, error) {
	if len(items) == 0 {
		return 0, apperrors.NewInvalidInputError("empty submission batch")
	}

	identifiers := make([]string, 0, len(items))
	sections := make([]Section, len(items))
	for i, item := range items {
		if strings.TrimSpace(item.OrganizationIdentifier) == "" {
			return 0, apperrors.NewInvalidInputError(fmt.Sprintf("item %d has no organization identifier", i))
		}
		section, err := ParseSection(item.Section)
		if err != nil {
			return 0, err
		}
		if err := ValidatePayload(section, item.ProposedData); err != nil {
			return 0, err
		}
		sections[i] = section
		identifiers = append(identifiers, item.OrganizationIdentifier)
	}

	resolved, err := s.resolver.Resolve(ctx, identifiers)
	if err != nil {
		return 0, err
	}

	newSubs := make([]NewSubmission, len(items))
	for i, item := range items {
		submittedBy := item.SubmittedBy
		if submittedBy == 0 {
			submittedBy = actor.ID
		}
		newSubs[i] = NewSubmission{
			OrganizationID: resolved[strings.TrimSpace(item.OrganizationIdentifier)],
			Section:        sections[i],
			PreviousData:   item.PreviousData,
			ProposedData:   item.ProposedData,
			SubmittedBy:    submittedBy,
		}
	}

	created, err := s.store.CreateBatch(ctx, newSubs)
	if err != nil {
		return 0, err
	}

	// Post-commit, best-effort fan-out to the reviewing role.
	for _, sub := range created {
		metrics.SubmissionsCreated.WithLabelValues(sub.Section).Inc()

		org, orgErr := s.resolver.GetByID(ctx, sub.OrganizationID)
		if orgErr != nil {
			org = nil
		}
		s.dispatcher.NotifyPendingCreated(ctx, sub, org)

		if s.noticeOnSubmission && Section(sub.Section) == SectionPrograms {
			s.announceCollaborators(ctx, sub)
		}
	}

	return len(created), nil
}

// announceCollaborators implements the "submission" collaborator notice
// policy: invitees hear about the proposal before the reviewer decides.
// Request rows are still only created on approval.
func (s *Service) announceCollaborators(ctx context.Context, sub models.Submission) {
	payload, err := ParseProgramPayload(sub.ProposedData)
	if err != nil || len(payload.Collaborators) == 0 {
		return
	}

	seen := map[int64]bool{}
	var pending []models.CollaborationRequest
	for _, collaboratorID := range payload.Collaborators {
		if collaboratorID == sub.SubmittedBy || seen[collaboratorID] {
			continue
		}
		seen[collaboratorID] = true
		pending = append(pending, models.CollaborationRequest{
			SubmissionID:        sub.ID,
			CollaboratorAdminID: collaboratorID,
			InvitedByAdminID:    sub.SubmittedBy,
			Status:              models.CollabPending,
			ProgramTitle:        payload.Title,
		})
	}
	if len(pending) > 0 {
		s.dispatcher.NotifyCollaborators(ctx, sub, pending)
	}
}

// ListSubmissionsByOrganization accepts a numeric id or an acronym.
func (s *Service) ListSubmissionsByOrganization(ctx context.Context, identifier string) ([]models.Submission, error) {
	orgID, err := s.resolver.ResolveOne(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return s.store.ListByOrganization(ctx, orgID)
}

func (s *Service) GetSubmission(ctx context.Context, id int64) (*models.Submission, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) UpdateSubmission(ctx context.Context, id int64, proposedData json.RawMessage) error {
	return s.store.UpdateProposedData(ctx, id, proposedData)
}

// CancelSubmission is the submitter-initiated hard delete; it works in any
// status so decided history can be purged too.
func (s *Service) CancelSubmission(ctx context.Context, id int64) error {
	return s.store.Delete(ctx, id)
}

func (s *Service) BulkDeleteSubmissions(ctx context.Context, ids []int64) BulkResult {
	return s.bulk.BulkDelete(ctx, ids)
}

// ListPendingSubmissions is the reviewer queue.
func (s *Service) ListPendingSubmissions(ctx context.Context, actor models.Actor) ([]models.Submission, error) {
	if err := requireReviewer(actor); err != nil {
		return nil, err
	}
	return s.store.ListPending(ctx)
}

func (s *Service) ApproveSubmission(ctx context.Context, actor models.Actor, id int64) error {
	if err := requireReviewer(actor); err != nil {
		return err
	}
	return s.machine.Approve(ctx, id)
}

func (s *Service) RejectSubmission(ctx context.Context, actor models.Actor, id int64, comment string) error {
	if err := requireReviewer(actor); err != nil {
		return err
	}
	return s.machine.Reject(ctx, id, comment)
}

func (s *Service) BulkApprove(ctx context.Context, actor models.Actor, ids []int64) (BulkResult, error) {
	if err := requireReviewer(actor); err != nil {
		return BulkResult{}, err
	}
	return s.bulk.BulkApprove(ctx, ids), nil
}

func (s *Service) BulkReject(ctx context.Context, actor models.Actor, ids []int64, comment string) (BulkResult, error) {
	if err := requireReviewer(actor); err != nil {
		return BulkResult{}, err
	}
	return s.bulk.BulkReject(ctx, ids, comment), nil
}

func requireReviewer(actor models.Actor) error {
	if actor.Role != models.RoleReviewer {
		return apperrors.NewForbiddenError(
			fmt.Sprintf("actor %s holds role %q, reviewer required", strconv.FormatInt(actor.ID, 10), actor.Role))
	}
	return nil
}
