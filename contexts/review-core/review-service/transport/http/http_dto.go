package httptransport

type CreateRequestRequest struct {
	OwnerID string `json:"owner_id"`
}

type CancelRequestRequest struct {
	CallerID string `json:"caller_id"`
}

type AssignRequestRequest struct {
	ReviewerID string `json:"reviewer_id"`
}

type ResolveSessionRequest struct {
	ReviewerID string `json:"reviewer_id"`
	Verdict    string `json:"verdict"`
}

type InactivityCloseRequest struct {
	ReviewerID string `json:"reviewer_id"`
}

type AttachEvidenceRequest struct {
	AccountID   string `json:"account_id"`
	EvidenceRef string `json:"evidence_ref"`
}

type RequestResponse struct {
	RequestID            string `json:"request_id"`
	OwnerID              string `json:"owner_id"`
	Status               string `json:"status"`
	QueuePosition        *int   `json:"queue_position,omitempty"`
	EstimatedWaitSeconds *int64 `json:"estimated_wait_seconds,omitempty"`
	ReviewerID           string `json:"reviewer_id,omitempty"`
	CreatedAt            string `json:"created_at"`
	AssignedAt           string `json:"assigned_at,omitempty"`
	ResolvedAt           string `json:"resolved_at,omitempty"`
}

type SessionResponse struct {
	SessionID           string `json:"session_id"`
	RequestID           string `json:"request_id"`
	OwnerID             string `json:"owner_id"`
	ReviewerID          string `json:"reviewer_id"`
	Status              string `json:"status"`
	OwnerEvidenceRef    string `json:"owner_evidence_ref,omitempty"`
	ReviewerEvidenceRef string `json:"reviewer_evidence_ref,omitempty"`
	CreatedAt           string `json:"created_at"`
	LastOwnerActivityAt string `json:"last_owner_activity_at,omitempty"`
	ResolvedAt          string `json:"resolved_at,omitempty"`
}

type AssignmentResponse struct {
	Request RequestResponse `json:"request"`
	Session SessionResponse `json:"session"`
}

type ResolutionResponse struct {
	Request         RequestResponse  `json:"request"`
	Session         SessionResponse  `json:"session"`
	DurationSeconds int64            `json:"duration_seconds"`
	Stats           ReviewerStatsDTO `json:"reviewer_stats"`
}

type ReviewerStatsDTO struct {
	ReviewerID           string  `json:"reviewer_id"`
	TotalSessions        int64   `json:"total_sessions"`
	TotalDurationSeconds int64   `json:"total_duration_seconds"`
	AverageSeconds       float64 `json:"average_seconds"`
}

type QueueResponse struct {
	Items []RequestResponse `json:"items"`
}

type SessionsResponse struct {
	Items []SessionResponse `json:"items"`
}

type SummaryResponse struct {
	RequestsByStatus     map[string]int64 `json:"requests_by_status"`
	ActiveSessions       int64            `json:"active_sessions"`
	GlobalAverageSeconds float64          `json:"global_average_seconds"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
