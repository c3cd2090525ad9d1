// Package http is a thin adapter over the review service. Authentication is
// an external collaborator: the upstream proxy verifies credentials and
// forwards the actor identity in headers, which this adapter trusts.
package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apperrors "orgreview/internal/common/errors"
	"orgreview/internal/common/logger"
	"orgreview/internal/models"
	"orgreview/internal/review"
)

type Server struct {
	svc    *review.Service
	logger logger.Logger
}

func NewServer(svc *review.Service, log logger.Logger) *Server {
	return &Server{
		svc:    svc,
		logger: log.WithFields(map[string]interface{}{"component": "http-server"}),
	}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/submissions", s.handleCreateBatch)
		r.Get("/submissions/{id}", s.handleGetSubmission)
		r.Put("/submissions/{id}", s.handleUpdateSubmission)
		r.Delete("/submissions/{id}", s.handleCancelSubmission)
		r.Post("/submissions/bulk-delete", s.handleBulkDelete)

		r.Get("/organizations/{identifier}/submissions", s.handleListByOrganization)

		r.Get("/review/pending", s.handleListPending)
		r.Post("/review/{id}/approve", s.handleApprove)
		r.Post("/review/{id}/reject", s.handleReject)
		r.Post("/review/bulk-approve", s.handleBulkApprove)
		r.Post("/review/bulk-reject", s.handleBulkReject)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// actorFrom reads the upstream-verified identity headers.
func actorFrom(r *http.Request) (models.Actor, error) {
	idStr := r.Header.Get("X-Actor-Id")
	role := r.Header.Get("X-Actor-Role")
	if idStr == "" || role == "" {
		return models.Actor{}, apperrors.NewInvalidInputError("missing actor identity headers")
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return models.Actor{}, apperrors.NewInvalidInputError("malformed X-Actor-Id header")
	}
	return models.Actor{ID: id, Role: role}, nil
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req struct {
		Items []review.BatchItem `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.NewInvalidInputError("malformed request body"))
		return
	}

	count, err := s.svc.CreateSubmissionBatch(r.Context(), actor, req.Items)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"count": count})
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sub, err := s.svc.GetSubmission(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleUpdateSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req struct {
		ProposedData json.RawMessage `json:"proposedData"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.NewInvalidInputError("malformed request body"))
		return
	}

	if err := s.svc.UpdateSubmission(r.Context(), id, req.ProposedData); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleCancelSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.svc.CancelSubmission(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	ids, err := readIDs(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	result := s.svc.BulkDeleteSubmissions(r.Context(), ids)
	writeJSON(w, bulkStatus(result), map[string]interface{}{
		"deletedCount": result.SuccessCount,
		"errorCount":   result.ErrorCount,
		"errors":       result.Errors,
		"outcome":      result.Outcome(),
	})
}

func (s *Server) handleListByOrganization(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	subs, err := s.svc.ListSubmissionsByOrganization(r.Context(), identifier)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"submissions": subs})
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	subs, err := s.svc.ListPendingSubmissions(r.Context(), actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"submissions": subs})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.svc.ApproveSubmission(r.Context(), actor, id); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req struct {
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.NewInvalidInputError("malformed request body"))
		return
	}

	if err := s.svc.RejectSubmission(r.Context(), actor, id, req.Comment); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleBulkApprove(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ids, err := readIDs(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	result, err := s.svc.BulkApprove(r.Context(), actor, ids)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeBulk(w, result)
}

func (s *Server) handleBulkReject(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req struct {
		IDs     []int64 `json:"ids"`
		Comment string  `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.NewInvalidInputError("malformed request body"))
		return
	}
	if len(req.IDs) == 0 {
		s.writeError(w, apperrors.NewInvalidInputError("ids is required"))
		return
	}

	result, err := s.svc.BulkReject(r.Context(), actor, req.IDs, req.Comment)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeBulk(w, result)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, apperrors.NewInvalidInputError("malformed submission id")
	}
	return id, nil
}

func readIDs(r *http.Request) ([]int64, error) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, apperrors.NewInvalidInputError("malformed request body")
	}
	if len(req.IDs) == 0 {
		return nil, apperrors.NewInvalidInputError("ids is required")
	}
	return req.IDs, nil
}

func writeBulk(w http.ResponseWriter, result review.BulkResult) {
	writeJSON(w, bulkStatus(result), map[string]interface{}{
		"successCount": result.SuccessCount,
		"errorCount":   result.ErrorCount,
		"errors":       result.Errors,
		"outcome":      result.Outcome(),
	})
}

// bulkStatus keeps partial failure visible at the protocol level instead of
// an unconditional 200.
func bulkStatus(result review.BulkResult) int {
	switch result.Outcome() {
	case review.BulkAllSucceeded:
		return http.StatusOK
	case review.BulkPartial:
		return http.StatusMultiStatus
	default:
		return http.StatusUnprocessableEntity
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeInvalidInput, apperrors.ErrCodeInvalidPayload, apperrors.ErrCodeUnsupportedSection:
		status = http.StatusBadRequest
	case apperrors.ErrCodeInvalidState:
		status = http.StatusConflict
	case apperrors.ErrCodeForbidden:
		status = http.StatusForbidden
	case apperrors.ErrCodeApplyFailed:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{"error": err.Error()})
	}

	var stdErr *apperrors.StandardError
	body := map[string]interface{}{"error": err.Error()}
	if e, ok := err.(*apperrors.StandardError); ok {
		stdErr = e
		body = map[string]interface{}{
			"code":      stdErr.Code,
			"message":   stdErr.Message,
			"details":   stdErr.Details,
			"retryable": stdErr.Retryable,
		}
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
