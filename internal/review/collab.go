package review

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "orgreview/internal/common/errors"
	"orgreview/internal/common/logger"
	"orgreview/internal/models"
)

// CollaborationCoordinator creates cross-organization collaboration
// invitations for approved programs submissions.
type CollaborationCoordinator struct {
	db     *sql.DB
	logger logger.Logger
}

func NewCollaborationCoordinator(db *sql.DB, log logger.Logger) *CollaborationCoordinator {
	return &CollaborationCoordinator{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "collab-coordinator"}),
	}
}

// CreateRequests deduplicates collaboratorIDs, excludes invitedBy (no
// self-invite) and inserts one pending request per remaining id unless a
// request for (submissionID, collaborator) already exists. The program id is
// recorded when known (zero before the program row exists).
func (c *CollaborationCoordinator) CreateRequests(ctx context.Context, submissionID, programID int64, programTitle string, invitedBy int64, collaboratorIDs []int64) ([]models.CollaborationRequest, error) {
	seen := map[int64]bool{}
	var created []models.CollaborationRequest

	for _, collaboratorID := range collaboratorIDs {
		if collaboratorID == invitedBy || seen[collaboratorID] {
			continue
		}
		seen[collaboratorID] = true

		var exists bool
		err := c.db.QueryRowContext(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM collaboration_requests
				WHERE submission_id = $1 AND collaborator_admin_id = $2
			)`, submissionID, collaboratorID).Scan(&exists)
		if err != nil {
			return created, apperrors.NewInternalError(fmt.Errorf("collaboration request check: %w", err))
		}
		if exists {
			continue
		}

		now := time.Now().UTC()
		var id int64
		err = c.db.QueryRowContext(ctx, `
			INSERT INTO collaboration_requests (
				submission_id, program_id, collaborator_admin_id,
				invited_by_admin_id, status, program_title, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			submissionID, nullableID(programID), collaboratorID, invitedBy,
			string(models.CollabPending), programTitle, now,
		).Scan(&id)
		if err != nil {
			return created, apperrors.NewInternalError(fmt.Errorf("insert collaboration request: %w", err))
		}

		req := models.CollaborationRequest{
			ID:                  id,
			SubmissionID:        submissionID,
			CollaboratorAdminID: collaboratorID,
			InvitedByAdminID:    invitedBy,
			Status:              models.CollabPending,
			ProgramTitle:        programTitle,
			CreatedAt:           now,
		}
		if programID != 0 {
			pid := programID
			req.ProgramID = &pid
		}
		created = append(created, req)
	}

	if len(created) > 0 {
		c.logger.Info("collaboration requests created", map[string]interface{}{
			"submissionId": submissionID,
			"programId":    programID,
			"count":        len(created),
		})
	}
	return created, nil
}

func nullableID(id int64) interface{} {
	if id == 0 {
		return nil
	}
	return id
}
