package review

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"orgreview/internal/common/config"
	apperrors "orgreview/internal/common/errors"
	"orgreview/internal/common/logger"
	"orgreview/internal/common/metrics"
	"orgreview/internal/models"
)

// DefaultRejectionComment is stored when the reviewer rejects without a
// comment; the column is never left null on a rejected row.
const DefaultRejectionComment = "No comment provided."

// ApprovalStateMachine orchestrates approve/reject. The section mutation and
// the status flip share one transaction; the flip is conditional on the row
// still being pending, which closes the race between two concurrent
// reviewers. Collaboration requests and notifications run after commit and
// never undo a decision.
type ApprovalStateMachine struct {
	db         *sql.DB
	store      *SubmissionStore
	applier    *SectionApplier
	collab     *CollaborationCoordinator
	dispatcher *NotificationDispatcher
	resolver   *OrganizationResolver

	// collaborator invitations fire here only when the notice policy is
	// "approval"; the "submission" policy announces them at create time.
	noticeOnApproval bool

	logger logger.Logger
}

func NewApprovalStateMachine(
	db *sql.DB,
	store *SubmissionStore,
	applier *SectionApplier,
	collab *CollaborationCoordinator,
	dispatcher *NotificationDispatcher,
	resolver *OrganizationResolver,
	collaboratorNotice string,
	log logger.Logger,
) *ApprovalStateMachine {
	return &ApprovalStateMachine{
		db:               db,
		store:            store,
		applier:          applier,
		collab:           collab,
		dispatcher:       dispatcher,
		resolver:         resolver,
		noticeOnApproval: collaboratorNotice != config.CollaboratorNoticeSubmission,
		logger:           log.WithFields(map[string]interface{}{"component": "approval-state-machine"}),
	}
}

// Approve applies the submission's section mutation and flips the status to
// approved in one transaction. On any handler failure the transaction rolls
// back, the submission stays pending and the caller may retry.
func (m *ApprovalStateMachine) Approve(ctx context.Context, id int64) error {
	start := time.Now()

	sub, err := m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status != models.StatusPending {
		return apperrors.NewInvalidStateError(
			fmt.Sprintf("submission %d is %s, only pending submissions can be approved", id, sub.Status))
	}

	section, err := ParseSection(sub.Section)
	if err != nil {
		return err
	}
	if err := ValidatePayload(section, sub.ProposedData); err != nil {
		return err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("begin approve tx: %w", err))
	}
	defer tx.Rollback()

	result, err := m.applier.Apply(ctx, tx, section, sub.OrganizationID, sub.ProposedData)
	if err != nil {
		var stdErr *apperrors.StandardError
		if stderrors.As(err, &stdErr) {
			return stdErr
		}
		return apperrors.NewApplyFailedError(sub.Section, err)
	}

	flip, err := tx.ExecContext(ctx, `
		UPDATE submissions SET status = $1
		WHERE id = $2 AND status = $3`,
		string(models.StatusApproved), id, string(models.StatusPending))
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("flip status: %w", err))
	}
	affected, err := flip.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("flip status: %w", err))
	}
	if affected == 0 {
		// Lost the race against a concurrent reviewer.
		return apperrors.NewInvalidStateError(
			fmt.Sprintf("submission %d was decided concurrently", id))
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError(fmt.Errorf("commit approve tx: %w", err))
	}

	metrics.Decisions.WithLabelValues(sub.Section, "approved").Inc()
	metrics.DecisionDuration.WithLabelValues("approve").Observe(time.Since(start).Seconds())
	m.logger.Info("submission approved", map[string]interface{}{
		"submissionId": id,
		"section":      sub.Section,
	})

	if section == SectionPrograms {
		m.runCollaborationStep(ctx, sub, result)
	}

	org := m.loadOrg(ctx, sub.OrganizationID)
	m.dispatcher.NotifyApproved(ctx, *sub, org)
	return nil
}

// Reject flips the status to rejected and stores the comment, defaulting to
// a fixed placeholder so the column is never null on a rejected row.
func (m *ApprovalStateMachine) Reject(ctx context.Context, id int64, comment string) error {
	start := time.Now()

	sub, err := m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status != models.StatusPending {
		return apperrors.NewInvalidStateError(
			fmt.Sprintf("submission %d is %s, only pending submissions can be rejected", id, sub.Status))
	}

	if comment == "" {
		comment = DefaultRejectionComment
	}

	result, err := m.db.ExecContext(ctx, `
		UPDATE submissions SET status = $1, rejection_comment = $2
		WHERE id = $3 AND status = $4`,
		string(models.StatusRejected), comment, id, string(models.StatusPending))
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("reject submission: %w", err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("reject submission: %w", err))
	}
	if affected == 0 {
		return apperrors.NewInvalidStateError(
			fmt.Sprintf("submission %d was decided concurrently", id))
	}

	metrics.Decisions.WithLabelValues(sub.Section, "rejected").Inc()
	metrics.DecisionDuration.WithLabelValues("reject").Observe(time.Since(start).Seconds())
	m.logger.Info("submission rejected", map[string]interface{}{
		"submissionId": id,
		"section":      sub.Section,
	})

	org := m.loadOrg(ctx, sub.OrganizationID)
	m.dispatcher.NotifyRejected(ctx, *sub, org, comment)
	return nil
}

// runCollaborationStep creates collaboration requests for an approved
// programs submission carrying a non-empty collaborator list. Runs after
// the approval committed; a failure here is logged, not propagated.
func (m *ApprovalStateMachine) runCollaborationStep(ctx context.Context, sub *models.Submission, result *ApplyResult) {
	payload, err := ParseProgramPayload(sub.ProposedData)
	if err != nil || len(payload.Collaborators) == 0 {
		return
	}

	var programID int64
	if result != nil {
		programID = result.ProgramID
	}

	requests, err := m.collab.CreateRequests(ctx, sub.ID, programID,
		payload.Title, sub.SubmittedBy, payload.Collaborators)
	if err != nil {
		m.logger.Error("collaboration step failed", map[string]interface{}{
			"submissionId": sub.ID,
			"error":        err.Error(),
		})
	}
	if m.noticeOnApproval && len(requests) > 0 {
		m.dispatcher.NotifyCollaborators(ctx, *sub, requests)
	}
}

func (m *ApprovalStateMachine) loadOrg(ctx context.Context, orgID int64) *models.Organization {
	org, err := m.resolver.GetByID(ctx, orgID)
	if err != nil {
		m.logger.Warn("organization load for notification failed", map[string]interface{}{
			"organizationId": orgID,
			"error":          err.Error(),
		})
		return nil
	}
	return org
}
