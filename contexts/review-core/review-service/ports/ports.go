package ports

import (
	"context"
	"time"

	"agegate/contexts/review-core/review-service/domain/entities"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// Actor is the identity projection the coordinator needs for capability
// gating; roles never leak in as raw strings.
type Actor struct {
	AccountID     string
	DisplayName   string
	CanReview     bool
	CanAdminister bool
}

type ActorDirectory interface {
	Lookup(ctx context.Context, accountID string) (Actor, error)
}

// Notification event kinds emitted after state transitions.
const (
	EventRequestCreated         = "request_created"
	EventRequestCancelled       = "request_cancelled"
	EventRequestAssigned        = "request_assigned"
	EventSessionResolved        = "session_resolved"
	EventSessionInactivityClose = "session_inactivity_closed"
)

// Notifier is the delivery-agnostic sink called after each transition
// commits. Delivery and formatting belong to the outer shims.
type Notifier interface {
	Notify(ctx context.Context, accountID string, eventKind string, payload map[string]any) error
}

// Charge is a ledger movement performed inside a repository transaction.
type Charge struct {
	Amount int64
	Reason string
}

type ReviewerStats struct {
	ReviewerID           string
	TotalSessions        int64
	TotalDurationSeconds int64
	AverageSeconds       float64
}

type AssignmentResult struct {
	Request entities.Request
	Session entities.Session
}

type ResolutionResult struct {
	Request         entities.Request
	Session         entities.Session
	DurationSeconds int64
	Stats           ReviewerStats
}

type StatusSummary struct {
	RequestsByStatus     map[entities.RequestStatus]int64
	ActiveSessions       int64
	GlobalAverageSeconds float64
}

// Repository is the transactional store behind the coordinator. Every
// mutating method is one atomic unit: precondition checks, request/session
// writes, ledger movements, stats updates, and queue recomputation either all
// commit or none do. Implementations signal lock-wait exhaustion with
// ErrStoreContention. fallbackAvgSeconds feeds the wait estimator when no
// reviewer has completed a session yet.
type Repository interface {
	CreateRequest(ctx context.Context, request entities.Request, fee Charge, fallbackAvgSeconds float64) (entities.Request, error)
	CancelRequest(ctx context.Context, requestID string, callerID string, refund Charge, fallbackAvgSeconds float64, now time.Time) (entities.Request, error)
	AssignRequest(ctx context.Context, requestID string, reviewerID string, sessionID string, fallbackAvgSeconds float64, now time.Time) (AssignmentResult, error)
	ResolveSession(ctx context.Context, sessionID string, reviewerID string, verdict entities.Verdict, now time.Time) (ResolutionResult, error)
	ResolveSessionByInactivity(ctx context.Context, sessionID string, reviewerID string, threshold time.Duration, now time.Time) (ResolutionResult, error)
	AttachOwnerEvidence(ctx context.Context, sessionID string, ownerID string, evidenceRef string, now time.Time) (entities.Session, error)
	AttachReviewerEvidence(ctx context.Context, sessionID string, reviewerID string, evidenceRef string, now time.Time) (entities.Session, error)

	GetRequest(ctx context.Context, requestID string) (entities.Request, error)
	ActiveRequestByOwner(ctx context.Context, ownerID string) (entities.Request, bool, error)
	ListQueued(ctx context.Context) ([]entities.Request, error)
	GetSession(ctx context.Context, sessionID string) (entities.Session, error)
	ListActiveSessionsByReviewer(ctx context.Context, reviewerID string) ([]entities.Session, error)
	ListIdleSessions(ctx context.Context, threshold time.Duration, now time.Time) ([]entities.Session, error)
	GetReviewerStats(ctx context.Context, reviewerID string) (ReviewerStats, error)
	GetStatusSummary(ctx context.Context, fallbackAvgSeconds float64) (StatusSummary, error)
}
