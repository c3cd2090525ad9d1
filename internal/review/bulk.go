package review

import (
	"context"

	apperrors "orgreview/internal/common/errors"
	"orgreview/internal/common/logger"
	"orgreview/internal/common/metrics"
)

// BulkOutcome distinguishes the three aggregate results of a bulk call so
// callers cannot mistake a partial failure for success.
type BulkOutcome string

const (
	BulkAllSucceeded BulkOutcome = "all_succeeded"
	BulkPartial      BulkOutcome = "partial"
	BulkAllFailed    BulkOutcome = "all_failed"
)

// BulkItemError is one failed item of a bulk operation.
type BulkItemError struct {
	ID    int64               `json:"id"`
	Code  apperrors.ErrorCode `json:"code"`
	Error string              `json:"error"`
}

// BulkResult accumulates per-item outcomes of a bulk operation.
type BulkResult struct {
	SuccessCount int             `json:"successCount"`
	ErrorCount   int             `json:"errorCount"`
	Errors       []BulkItemError `json:"errors,omitempty"`
}

// Outcome reports the aggregate result.
func (r BulkResult) Outcome() BulkOutcome {
	switch {
	case r.ErrorCount == 0:
		return BulkAllSucceeded
	case r.SuccessCount == 0:
		return BulkAllFailed
	default:
		return BulkPartial
	}
}

// BulkOperationRunner applies a single-item operation across an id list.
// Items run sequentially so shared rows (an organization's single advocacy
// or competency row) are not contended, and each item commits or rolls back
// on its own; one failure never aborts the batch.
type BulkOperationRunner struct {
	machine *ApprovalStateMachine
	store   *SubmissionStore
	logger  logger.Logger
}

func NewBulkOperationRunner(machine *ApprovalStateMachine, store *SubmissionStore, log logger.Logger) *BulkOperationRunner {
	return &BulkOperationRunner{
		machine: machine,
		store:   store,
		logger:  log.WithFields(map[string]interface{}{"component": "bulk-runner"}),
	}
}

// BulkApprove approves each id independently.
func (b *BulkOperationRunner) BulkApprove(ctx context.Context, ids []int64) BulkResult {
	return b.run(ctx, "approve", ids, func(id int64) error {
		return b.machine.Approve(ctx, id)
	})
}

// BulkReject rejects each id independently with the shared comment.
func (b *BulkOperationRunner) BulkReject(ctx context.Context, ids []int64, comment string) BulkResult {
	return b.run(ctx, "reject", ids, func(id int64) error {
		return b.machine.Reject(ctx, id, comment)
	})
}

// BulkDelete hard-deletes each id independently.
func (b *BulkOperationRunner) BulkDelete(ctx context.Context, ids []int64) BulkResult {
	return b.run(ctx, "delete", ids, func(id int64) error {
		return b.store.Delete(ctx, id)
	})
}

func (b *BulkOperationRunner) run(ctx context.Context, operation string, ids []int64, op func(id int64) error) BulkResult {
	var result BulkResult
	for _, id := range ids {
		if err := op(id); err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, BulkItemError{
				ID:    id,
				Code:  apperrors.CodeOf(err),
				Error: err.Error(),
			})
			metrics.BulkItems.WithLabelValues(operation, "error").Inc()
			continue
		}
		result.SuccessCount++
		metrics.BulkItems.WithLabelValues(operation, "success").Inc()
	}

	b.logger.Info("bulk operation finished", map[string]interface{}{
		"operation":    operation,
		"total":        len(ids),
		"successCount": result.SuccessCount,
		"errorCount":   result.ErrorCount,
		"outcome":      string(result.Outcome()),
	})
	return result
}
