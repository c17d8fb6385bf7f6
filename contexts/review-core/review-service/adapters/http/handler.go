package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"agegate/contexts/review-core/review-service/application"
	"agegate/contexts/review-core/review-service/domain/entities"
	"agegate/contexts/review-core/review-service/ports"
	httptransport "agegate/contexts/review-core/review-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

// CreateRequestHandler godoc
// @Summary Open a review request
// @Description Debits the request fee and enqueues the request; fails without side effects when the balance is short or an active request already exists.
// @Tags review
// @Accept json
// @Produce json
// @Param request body httptransport.CreateRequestRequest true "Request payload"
// @Success 201 {object} httptransport.RequestResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 402 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /api/review/v1/requests [post]
func (h Handler) CreateRequestHandler(ctx context.Context, req httptransport.CreateRequestRequest) (httptransport.RequestResponse, error) {
	request, err := h.Service.CreateRequest(ctx, req.OwnerID)
	if err != nil {
		return httptransport.RequestResponse{}, err
	}
	return mapRequest(request), nil
}

// CancelRequestHandler godoc
// @Summary Cancel a queued request
// @Description Owner-only; refunds the fee and recomputes queue positions.
// @Tags review
// @Accept json
// @Produce json
// @Param request_id path string true "Request id"
// @Param request body httptransport.CancelRequestRequest true "Cancel payload"
// @Success 200 {object} httptransport.RequestResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /api/review/v1/requests/{request_id}/cancel [post]
func (h Handler) CancelRequestHandler(ctx context.Context, requestID string, req httptransport.CancelRequestRequest) (httptransport.RequestResponse, error) {
	request, err := h.Service.CancelRequest(ctx, requestID, req.CallerID)
	if err != nil {
		return httptransport.RequestResponse{}, err
	}
	return mapRequest(request), nil
}

// AssignRequestHandler godoc
// @Summary Assign a queued request to a reviewer
// @Tags review
// @Accept json
// @Produce json
// @Param request_id path string true "Request id"
// @Param request body httptransport.AssignRequestRequest true "Assignment payload"
// @Success 200 {object} httptransport.AssignmentResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /api/review/v1/requests/{request_id}/assign [post]
func (h Handler) AssignRequestHandler(ctx context.Context, requestID string, req httptransport.AssignRequestRequest) (httptransport.AssignmentResponse, error) {
	result, err := h.Service.Assign(ctx, requestID, req.ReviewerID)
	if err != nil {
		return httptransport.AssignmentResponse{}, err
	}
	return httptransport.AssignmentResponse{
		Request: mapRequest(result.Request),
		Session: mapSession(result.Session),
	}, nil
}

// ResolveSessionHandler godoc
// @Summary Resolve a session with a verdict
// @Tags review
// @Accept json
// @Produce json
// @Param session_id path string true "Session id"
// @Param request body httptransport.ResolveSessionRequest true "Resolution payload"
// @Success 200 {object} httptransport.ResolutionResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /api/review/v1/sessions/{session_id}/resolve [post]
func (h Handler) ResolveSessionHandler(ctx context.Context, sessionID string, req httptransport.ResolveSessionRequest) (httptransport.ResolutionResponse, error) {
	result, err := h.Service.ResolveWithVerdict(ctx, sessionID, req.ReviewerID, entities.Verdict(req.Verdict))
	if err != nil {
		return httptransport.ResolutionResponse{}, err
	}
	return mapResolution(result), nil
}

// InactivityCloseHandler godoc
// @Summary Close a session for owner inactivity
// @Description Allowed once the owner has been idle for the configured threshold; no refund is issued.
// @Tags review
// @Accept json
// @Produce json
// @Param session_id path string true "Session id"
// @Param request body httptransport.InactivityCloseRequest true "Close payload"
// @Success 200 {object} httptransport.ResolutionResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /api/review/v1/sessions/{session_id}/inactivity-close [post]
func (h Handler) InactivityCloseHandler(ctx context.Context, sessionID string, req httptransport.InactivityCloseRequest) (httptransport.ResolutionResponse, error) {
	result, err := h.Service.ResolveByInactivity(ctx, sessionID, req.ReviewerID)
	if err != nil {
		return httptransport.ResolutionResponse{}, err
	}
	return mapResolution(result), nil
}

// AttachOwnerEvidenceHandler godoc
// @Summary Attach owner evidence to a session
// @Description Also refreshes the owner-activity timestamp used by the inactivity gate.
// @Tags review
// @Accept json
// @Produce json
// @Param session_id path string true "Session id"
// @Param request body httptransport.AttachEvidenceRequest true "Evidence payload"
// @Success 200 {object} httptransport.SessionResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /api/review/v1/sessions/{session_id}/owner-evidence [post]
func (h Handler) AttachOwnerEvidenceHandler(ctx context.Context, sessionID string, req httptransport.AttachEvidenceRequest) (httptransport.SessionResponse, error) {
	session, err := h.Service.AttachOwnerEvidence(ctx, sessionID, req.AccountID, req.EvidenceRef)
	if err != nil {
		return httptransport.SessionResponse{}, err
	}
	return mapSession(session), nil
}

// AttachReviewerEvidenceHandler godoc
// @Summary Attach reviewer evidence to a session
// @Tags review
// @Accept json
// @Produce json
// @Param session_id path string true "Session id"
// @Param request body httptransport.AttachEvidenceRequest true "Evidence payload"
// @Success 200 {object} httptransport.SessionResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /api/review/v1/sessions/{session_id}/reviewer-evidence [post]
func (h Handler) AttachReviewerEvidenceHandler(ctx context.Context, sessionID string, req httptransport.AttachEvidenceRequest) (httptransport.SessionResponse, error) {
	session, err := h.Service.AttachReviewerEvidence(ctx, sessionID, req.AccountID, req.EvidenceRef)
	if err != nil {
		return httptransport.SessionResponse{}, err
	}
	return mapSession(session), nil
}

// RequestStatusHandler godoc
// @Summary Get a request with its stored position and wait estimate
// @Tags review
// @Produce json
// @Param request_id path string true "Request id"
// @Param caller_id query string true "Caller account id"
// @Success 200 {object} httptransport.RequestResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /api/review/v1/requests/{request_id} [get]
func (h Handler) RequestStatusHandler(ctx context.Context, requestID string, callerID string) (httptransport.RequestResponse, error) {
	request, err := h.Service.RequestStatus(ctx, requestID, callerID)
	if err != nil {
		return httptransport.RequestResponse{}, err
	}
	return mapRequest(request), nil
}

// QueueHandler godoc
// @Summary Browse the queued requests in order
// @Tags review
// @Produce json
// @Param caller_id query string true "Caller account id"
// @Success 200 {object} httptransport.QueueResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Router /api/review/v1/queue [get]
func (h Handler) QueueHandler(ctx context.Context, callerID string) (httptransport.QueueResponse, error) {
	queued, err := h.Service.Queue(ctx, callerID)
	if err != nil {
		return httptransport.QueueResponse{}, err
	}
	items := make([]httptransport.RequestResponse, 0, len(queued))
	for _, request := range queued {
		items = append(items, mapRequest(request))
	}
	return httptransport.QueueResponse{Items: items}, nil
}

// ActiveSessionsHandler godoc
// @Summary List a reviewer's active sessions
// @Tags review
// @Produce json
// @Param reviewer_id path string true "Reviewer account id"
// @Success 200 {object} httptransport.SessionsResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Router /api/review/v1/reviewers/{reviewer_id}/sessions [get]
func (h Handler) ActiveSessionsHandler(ctx context.Context, reviewerID string) (httptransport.SessionsResponse, error) {
	sessions, err := h.Service.ActiveSessions(ctx, reviewerID)
	if err != nil {
		return httptransport.SessionsResponse{}, err
	}
	items := make([]httptransport.SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		items = append(items, mapSession(session))
	}
	return httptransport.SessionsResponse{Items: items}, nil
}

// ReviewerStatsHandler godoc
// @Summary Get aggregate session stats for a reviewer
// @Tags review
// @Produce json
// @Param reviewer_id path string true "Reviewer account id"
// @Success 200 {object} httptransport.ReviewerStatsDTO
// @Failure 400 {object} httptransport.ErrorResponse
// @Router /api/review/v1/reviewers/{reviewer_id}/stats [get]
func (h Handler) ReviewerStatsHandler(ctx context.Context, reviewerID string) (httptransport.ReviewerStatsDTO, error) {
	stats, err := h.Service.ReviewerStats(ctx, reviewerID)
	if err != nil {
		return httptransport.ReviewerStatsDTO{}, err
	}
	return mapStats(stats), nil
}

// SummaryHandler godoc
// @Summary Operational summary of requests and sessions
// @Tags review
// @Produce json
// @Param caller_id query string true "Caller account id"
// @Success 200 {object} httptransport.SummaryResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Router /api/review/v1/summary [get]
func (h Handler) SummaryHandler(ctx context.Context, callerID string) (httptransport.SummaryResponse, error) {
	summary, err := h.Service.Summary(ctx, callerID)
	if err != nil {
		return httptransport.SummaryResponse{}, err
	}
	byStatus := make(map[string]int64, len(summary.RequestsByStatus))
	for status, total := range summary.RequestsByStatus {
		byStatus[string(status)] = total
	}
	return httptransport.SummaryResponse{
		RequestsByStatus:     byStatus,
		ActiveSessions:       summary.ActiveSessions,
		GlobalAverageSeconds: summary.GlobalAverageSeconds,
	}, nil
}

func mapRequest(request entities.Request) httptransport.RequestResponse {
	return httptransport.RequestResponse{
		RequestID:            request.RequestID,
		OwnerID:              request.OwnerID,
		Status:               string(request.Status),
		QueuePosition:        request.QueuePosition,
		EstimatedWaitSeconds: request.EstimatedWaitSeconds,
		ReviewerID:           request.ReviewerID,
		CreatedAt:            request.CreatedAt.UTC().Format(time.RFC3339),
		AssignedAt:           formatOptional(request.AssignedAt),
		ResolvedAt:           formatOptional(request.ResolvedAt),
	}
}

func mapSession(session entities.Session) httptransport.SessionResponse {
	return httptransport.SessionResponse{
		SessionID:           session.SessionID,
		RequestID:           session.RequestID,
		OwnerID:             session.OwnerID,
		ReviewerID:          session.ReviewerID,
		Status:              string(session.Status),
		OwnerEvidenceRef:    session.OwnerEvidenceRef,
		ReviewerEvidenceRef: session.ReviewerEvidenceRef,
		CreatedAt:           session.CreatedAt.UTC().Format(time.RFC3339),
		LastOwnerActivityAt: formatOptional(session.LastOwnerActivityAt),
		ResolvedAt:          formatOptional(session.ResolvedAt),
	}
}

func mapResolution(result ports.ResolutionResult) httptransport.ResolutionResponse {
	return httptransport.ResolutionResponse{
		Request:         mapRequest(result.Request),
		Session:         mapSession(result.Session),
		DurationSeconds: result.DurationSeconds,
		Stats:           mapStats(result.Stats),
	}
}

func mapStats(stats ports.ReviewerStats) httptransport.ReviewerStatsDTO {
	return httptransport.ReviewerStatsDTO{
		ReviewerID:           stats.ReviewerID,
		TotalSessions:        stats.TotalSessions,
		TotalDurationSeconds: stats.TotalDurationSeconds,
		AverageSeconds:       stats.AverageSeconds,
	}
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
