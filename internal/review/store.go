package review

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	apperrors "orgreview/internal/common/errors"
	"orgreview/internal/common/logger"
	"orgreview/internal/models"
)

// NewSubmission is one item of a batch create, already resolved to a
// canonical organization id and shape-validated.
type NewSubmission struct {
	OrganizationID int64
	Section        Section
	PreviousData   json.RawMessage
	ProposedData   json.RawMessage
	SubmittedBy    int64
}

// SubmissionStore persists submissions and their lifecycle bookkeeping.
type SubmissionStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewSubmissionStore(db *sql.DB, log logger.Logger) *SubmissionStore {
	return &SubmissionStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "submission-store"}),
	}
}

const submissionColumns = `id, organization_id, section, previous_data, proposed_data,
	status, submitted_by, rejection_comment, submitted_at`

// CreateBatch inserts every item with status=pending inside one transaction.
// The whole batch commits or none of it does.
func (s *SubmissionStore) CreateBatch(ctx context.Context, items []NewSubmission) ([]models.Submission, error) {
	if len(items) == 0 {
		return nil, apperrors.NewInvalidInputError("empty submission batch")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("begin batch tx: %w", err))
	}
	defer tx.Rollback()

	created := make([]models.Submission, 0, len(items))
	now := time.Now().UTC()

	for _, item := range items {
		var id int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO submissions (
				organization_id, section, previous_data, proposed_data,
				status, submitted_by, submitted_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			item.OrganizationID,
			string(item.Section),
			nullableJSON(item.PreviousData),
			[]byte(item.ProposedData),
			string(models.StatusPending),
			item.SubmittedBy,
			now,
		).Scan(&id)
		if err != nil {
			return nil, apperrors.NewInternalError(fmt.Errorf("insert submission: %w", err))
		}

		sub := models.Submission{
			ID:             id,
			OrganizationID: item.OrganizationID,
			Section:        string(item.Section),
			PreviousData:   item.PreviousData,
			ProposedData:   item.ProposedData,
			Status:         models.StatusPending,
			SubmittedBy:    item.SubmittedBy,
			SubmittedAt:    now,
		}
		sub.Annotate()
		created = append(created, sub)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("commit batch tx: %w", err))
	}

	s.logger.Info("submission batch created", map[string]interface{}{
		"count": len(created),
	})
	return created, nil
}

// GetByID loads one submission.
func (s *SubmissionStore) GetByID(ctx context.Context, id int64) (*models.Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("submission", fmt.Sprintf("id: %d", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("load submission: %w", err))
	}
	return sub, nil
}

// ListByOrganization returns the organization's submissions newest-first,
// annotated with can_edit/can_cancel.
func (s *SubmissionStore) ListByOrganization(ctx context.Context, orgID int64) ([]models.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE organization_id = $1
		 ORDER BY submitted_at DESC, id DESC`, orgID)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("list submissions: %w", err))
	}
	defer rows.Close()
	return collectSubmissions(rows)
}

// ListPending returns the reviewer queue, oldest-first.
func (s *SubmissionStore) ListPending(ctx context.Context) ([]models.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE status = $1
		 ORDER BY submitted_at ASC, id ASC`, string(models.StatusPending))
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("list pending submissions: %w", err))
	}
	defer rows.Close()
	return collectSubmissions(rows)
}

// UpdateProposedData replaces proposed_data on a still-pending submission.
// The new payload must match the submission's section contract.
func (s *SubmissionStore) UpdateProposedData(ctx context.Context, id int64, newData json.RawMessage) error {
	sub, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status != models.StatusPending {
		return apperrors.NewInvalidStateError(
			fmt.Sprintf("submission %d is %s, only pending submissions can be edited", id, sub.Status))
	}

	section, err := ParseSection(sub.Section)
	if err != nil {
		return err
	}
	if err := ValidatePayload(section, newData); err != nil {
		return err
	}

	// The status guard repeats inside the UPDATE so a concurrent decision
	// between the read and the write cannot slip an edit onto a decided row.
	result, err := s.db.ExecContext(ctx, `
		UPDATE submissions SET proposed_data = $1
		WHERE id = $2 AND status = $3`,
		[]byte(newData), id, string(models.StatusPending))
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("update proposed data: %w", err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("update proposed data: %w", err))
	}
	if affected == 0 {
		return apperrors.NewInvalidStateError(
			fmt.Sprintf("submission %d left pending before the edit was applied", id))
	}
	return nil
}

// Delete hard-deletes a submission regardless of status. Used both for the
// submitter-initiated cancel and for post-decision history cleanup.
func (s *SubmissionStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM submissions WHERE id = $1`, id)
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("delete submission: %w", err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("delete submission: %w", err))
	}
	if affected == 0 {
		return apperrors.NewNotFoundError("submission", fmt.Sprintf("id: %d", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var sub models.Submission
	var status string
	var previous []byte
	var proposed []byte
	var comment sql.NullString

	err := row.Scan(&sub.ID, &sub.OrganizationID, &sub.Section, &previous, &proposed,
		&status, &sub.SubmittedBy, &comment, &sub.SubmittedAt)
	if err != nil {
		return nil, err
	}

	sub.Status = models.SubmissionStatus(status)
	if len(previous) > 0 {
		sub.PreviousData = json.RawMessage(previous)
	}
	sub.ProposedData = json.RawMessage(proposed)
	if comment.Valid {
		sub.RejectionComment = &comment.String
	}
	sub.Annotate()
	return &sub, nil
}

func collectSubmissions(rows *sql.Rows) ([]models.Submission, error) {
	var out []models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, apperrors.NewInternalError(fmt.Errorf("scan submission: %w", err))
		}
		out = append(out, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("iterate submissions: %w", err))
	}
	return out, nil
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
