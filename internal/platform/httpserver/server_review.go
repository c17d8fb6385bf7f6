package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	reviewerrors "agegate/contexts/review-core/review-service/domain/errors"
	reviewhttp "agegate/contexts/review-core/review-service/transport/http"
	"agegate/internal/platform/metrics"
)

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var req reviewhttp.CreateRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReviewError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.review.Handler.CreateRequestHandler(r.Context(), req)
	if err != nil {
		writeReviewDomainError(w, err)
		return
	}
	metrics.ReviewTransitionsTotal.WithLabelValues("created").Inc()
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleRequestStatus(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("request_id")
	callerID := callerFrom(r)
	resp, err := s.review.Handler.RequestStatusHandler(r.Context(), requestID, callerID)
	if err != nil {
		writeReviewDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	var req reviewhttp.CancelRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReviewError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if req.CallerID == "" {
		req.CallerID = callerFrom(r)
	}
	requestID := r.PathValue("request_id")
	resp, err := s.review.Handler.CancelRequestHandler(r.Context(), requestID, req)
	if err != nil {
		writeReviewDomainError(w, err)
		return
	}
	metrics.ReviewTransitionsTotal.WithLabelValues("cancelled").Inc()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAssignRequest(w http.ResponseWriter, r *http.Request) {
	var req reviewhttp.AssignRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReviewError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if req.ReviewerID == "" {
		req.ReviewerID = callerFrom(r)
	}
	requestID := r.PathValue("request_id")
	resp, err := s.review.Handler.AssignRequestHandler(r.Context(), requestID, req)
	if err != nil {
		writeReviewDomainError(w, err)
		return
	}
	metrics.ReviewTransitionsTotal.WithLabelValues("assigned").Inc()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	resp, err := s.review.Handler.QueueHandler(r.Context(), callerFrom(r))
	if err != nil {
		writeReviewDomainError(w, err)
		return
	}
	metrics.QueueDepth.Set(float64(len(resp.Items)))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResolveSession(w http.ResponseWriter, r *http.Request) {
	var req reviewhttp.ResolveSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReviewError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if req.ReviewerID == "" {
		req.ReviewerID = callerFrom(r)
	}
	sessionID := r.PathValue("session_id")
	resp, err := s.review.Handler.ResolveSessionHandler(r.Context(), sessionID, req)
	if err != nil {
		writeReviewDomainError(w, err)
		return
	}
	metrics.ReviewTransitionsTotal.WithLabelValues("resolved").Inc()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInactivityClose(w http.ResponseWriter, r *http.Request) {
	var req reviewhttp.InactivityCloseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReviewError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if req.ReviewerID == "" {
		req.ReviewerID = callerFrom(r)
	}
	sessionID := r.PathValue("session_id")
	resp, err := s.review.Handler.InactivityCloseHandler(r.Context(), sessionID, req)
	if err != nil {
		writeReviewDomainError(w, err)
		return
	}
	metrics.ReviewTransitionsTotal.WithLabelValues("inactivity_closed").Inc()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOwnerEvidence(w http.ResponseWriter, r *http.Request) {
	var req reviewhttp.AttachEvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReviewError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if req.AccountID == "" {
		req.AccountID = callerFrom(r)
	}
	sessionID := r.PathValue("session_id")
	resp, err := s.review.Handler.AttachOwnerEvidenceHandler(r.Context(), sessionID, req)
	if err != nil {
		writeReviewDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReviewerEvidence(w http.ResponseWriter, r *http.Request) {
	var req reviewhttp.AttachEvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReviewError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if req.AccountID == "" {
		req.AccountID = callerFrom(r)
	}
	sessionID := r.PathValue("session_id")
	resp, err := s.review.Handler.AttachReviewerEvidenceHandler(r.Context(), sessionID, req)
	if err != nil {
		writeReviewDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleActiveSessions(w http.ResponseWriter, r *http.Request) {
	reviewerID := r.PathValue("reviewer_id")
	resp, err := s.review.Handler.ActiveSessionsHandler(r.Context(), reviewerID)
	if err != nil {
		writeReviewDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReviewerStats(w http.ResponseWriter, r *http.Request) {
	reviewerID := r.PathValue("reviewer_id")
	resp, err := s.review.Handler.ReviewerStatsHandler(r.Context(), reviewerID)
	if err != nil {
		writeReviewDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	resp, err := s.review.Handler.SummaryHandler(r.Context(), callerFrom(r))
	if err != nil {
		writeReviewDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func callerFrom(r *http.Request) string {
	if fromHeader := strings.TrimSpace(r.Header.Get("X-User-Id")); fromHeader != "" {
		return fromHeader
	}
	return strings.TrimSpace(r.URL.Query().Get("caller_id"))
}

func writeReviewDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reviewerrors.ErrInsufficientBalance):
		writeReviewError(w, http.StatusPaymentRequired, "insufficient_balance", err.Error())
	case errors.Is(err, reviewerrors.ErrDuplicateActiveRequest):
		writeReviewError(w, http.StatusConflict, "duplicate_active_request", err.Error())
	case errors.Is(err, reviewerrors.ErrInvalidTransition):
		writeReviewError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, reviewerrors.ErrInactivityThresholdNotMet):
		writeReviewError(w, http.StatusConflict, "inactivity_threshold_not_met", err.Error())
	case errors.Is(err, reviewerrors.ErrNotOwner),
		errors.Is(err, reviewerrors.ErrNotAssignedReviewer),
		errors.Is(err, reviewerrors.ErrForbidden):
		writeReviewError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, reviewerrors.ErrRequestNotFound):
		writeReviewError(w, http.StatusNotFound, "request_not_found", err.Error())
	case errors.Is(err, reviewerrors.ErrSessionNotFound):
		writeReviewError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, reviewerrors.ErrStoreContention):
		metrics.StoreContentionTotal.Inc()
		writeReviewError(w, http.StatusServiceUnavailable, "store_contention", err.Error())
	case errors.Is(err, reviewerrors.ErrInvalidRequest):
		writeReviewError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeReviewError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeReviewError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, reviewhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
