package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"agegate/contexts/review-core/review-service/domain/entities"
	domainerrors "agegate/contexts/review-core/review-service/domain/errors"
	"agegate/contexts/review-core/review-service/ports"

	"github.com/codeGROOVE-dev/retry"
)

const (
	defaultRequestFee           = 300
	defaultSessionSeconds       = 300
	defaultInactivityThreshold  = 3 * time.Minute
	defaultContentionAttempts   = 3
	defaultContentionRetryDelay = 200 * time.Millisecond
	defaultContentionMaxDelay   = 2 * time.Second
	moduleLabel                 = "review-core/review-service"
)

// Service is the coordinator: it composes the request and session state
// machines, the ledger movements, the reviewer stats, and the queue
// estimator into single all-or-nothing repository transactions.
type Service struct {
	Repo                  ports.Repository
	Directory             ports.ActorDirectory
	Notifier              ports.Notifier
	Clock                 ports.Clock
	IDGenerator           ports.IDGenerator
	RequestFee            int64
	DefaultSessionSeconds float64
	InactivityThreshold   time.Duration
	ContentionAttempts    uint
	Logger                *slog.Logger
}

// CreateRequest debits the fee, enqueues the request, and recomputes queue
// positions, all in one transaction. Preconditions (balance, single active
// request) are re-checked inside that transaction; validation failures leave
// no trace in the store.
func (s Service) CreateRequest(ctx context.Context, ownerID string) (entities.Request, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return entities.Request{}, domainerrors.ErrInvalidRequest
	}

	requestID, err := s.IDGenerator.NewID(ctx)
	if err != nil {
		return entities.Request{}, err
	}
	request, err := entities.NewQueuedRequest(requestID, ownerID, s.now())
	if err != nil {
		return entities.Request{}, err
	}
	fee := ports.Charge{Amount: s.fee(), Reason: "review request fee"}

	var created entities.Request
	err = s.withContentionRetry(ctx, func() error {
		var repoErr error
		created, repoErr = s.Repo.CreateRequest(ctx, request, fee, s.sessionSeconds())
		return repoErr
	})
	if err != nil {
		return entities.Request{}, err
	}

	s.log().Info("review request created",
		"event", "review_request_created",
		"module", moduleLabel,
		"layer", "application",
		"request_id", created.RequestID,
		"owner_id", ownerID,
		"queue_position", derefInt(created.QueuePosition),
	)
	s.notify(ctx, ownerID, ports.EventRequestCreated, map[string]any{
		"request_id":             created.RequestID,
		"queue_position":         derefInt(created.QueuePosition),
		"estimated_wait_seconds": derefInt64(created.EstimatedWaitSeconds),
	})
	return created, nil
}

// CancelRequest is the owner cancellation path: legal only while queued, and
// the only transition that refunds the fee.
func (s Service) CancelRequest(ctx context.Context, requestID string, callerID string) (entities.Request, error) {
	requestID = strings.TrimSpace(requestID)
	callerID = strings.TrimSpace(callerID)
	if requestID == "" || callerID == "" {
		return entities.Request{}, domainerrors.ErrInvalidRequest
	}
	refund := ports.Charge{Amount: s.fee(), Reason: "review request fee refund"}

	var cancelled entities.Request
	err := s.withContentionRetry(ctx, func() error {
		var repoErr error
		cancelled, repoErr = s.Repo.CancelRequest(ctx, requestID, callerID, refund, s.sessionSeconds(), s.now())
		return repoErr
	})
	if err != nil {
		return entities.Request{}, err
	}

	s.log().Info("review request cancelled",
		"event", "review_request_cancelled",
		"module", moduleLabel,
		"layer", "application",
		"request_id", requestID,
		"owner_id", callerID,
	)
	s.notify(ctx, callerID, ports.EventRequestCancelled, map[string]any{
		"request_id": requestID,
		"refunded":   true,
	})
	return cancelled, nil
}

// Assign moves a queued request to a reviewer and opens its session. Two
// racing assigns on the same request serialize in the store; the loser sees
// ErrInvalidTransition.
func (s Service) Assign(ctx context.Context, requestID string, reviewerID string) (ports.AssignmentResult, error) {
	requestID = strings.TrimSpace(requestID)
	reviewerID = strings.TrimSpace(reviewerID)
	if requestID == "" || reviewerID == "" {
		return ports.AssignmentResult{}, domainerrors.ErrInvalidRequest
	}
	if err := s.requireReviewCapability(ctx, reviewerID); err != nil {
		return ports.AssignmentResult{}, err
	}

	sessionID, err := s.IDGenerator.NewID(ctx)
	if err != nil {
		return ports.AssignmentResult{}, err
	}

	var result ports.AssignmentResult
	err = s.withContentionRetry(ctx, func() error {
		var repoErr error
		result, repoErr = s.Repo.AssignRequest(ctx, requestID, reviewerID, sessionID, s.sessionSeconds(), s.now())
		return repoErr
	})
	if err != nil {
		return ports.AssignmentResult{}, err
	}

	s.log().Info("review request assigned",
		"event", "review_request_assigned",
		"module", moduleLabel,
		"layer", "application",
		"request_id", requestID,
		"reviewer_id", reviewerID,
		"session_id", result.Session.SessionID,
	)
	s.notify(ctx, result.Request.OwnerID, ports.EventRequestAssigned, map[string]any{
		"request_id": requestID,
		"session_id": result.Session.SessionID,
	})
	s.notify(ctx, reviewerID, ports.EventRequestAssigned, map[string]any{
		"request_id": requestID,
		"session_id": result.Session.SessionID,
		"owner_id":   result.Request.OwnerID,
	})
	return result, nil
}

// ResolveWithVerdict closes the session with approve/reject, resolves the
// request accordingly, and records the session duration into reviewer stats.
func (s Service) ResolveWithVerdict(ctx context.Context, sessionID string, reviewerID string, verdict entities.Verdict) (ports.ResolutionResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	reviewerID = strings.TrimSpace(reviewerID)
	if sessionID == "" || reviewerID == "" || !entities.IsValidVerdict(verdict) {
		return ports.ResolutionResult{}, domainerrors.ErrInvalidRequest
	}
	if err := s.requireReviewCapability(ctx, reviewerID); err != nil {
		return ports.ResolutionResult{}, err
	}

	var result ports.ResolutionResult
	err := s.withContentionRetry(ctx, func() error {
		var repoErr error
		result, repoErr = s.Repo.ResolveSession(ctx, sessionID, reviewerID, verdict, s.now())
		return repoErr
	})
	if err != nil {
		return ports.ResolutionResult{}, err
	}

	s.log().Info("review session resolved",
		"event", "review_session_resolved",
		"module", moduleLabel,
		"layer", "application",
		"session_id", sessionID,
		"reviewer_id", reviewerID,
		"verdict", string(verdict),
		"duration_seconds", result.DurationSeconds,
	)
	s.notify(ctx, result.Request.OwnerID, ports.EventSessionResolved, map[string]any{
		"request_id": result.Request.RequestID,
		"session_id": sessionID,
		"status":     string(result.Request.Status),
	})
	return result, nil
}

// ResolveByInactivity closes the session without a verdict once the owner
// has been idle for at least the configured threshold. The reviewer's time
// still counts toward stats; the fee is not refunded.
func (s Service) ResolveByInactivity(ctx context.Context, sessionID string, reviewerID string) (ports.ResolutionResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	reviewerID = strings.TrimSpace(reviewerID)
	if sessionID == "" || reviewerID == "" {
		return ports.ResolutionResult{}, domainerrors.ErrInvalidRequest
	}
	if err := s.requireReviewCapability(ctx, reviewerID); err != nil {
		return ports.ResolutionResult{}, err
	}

	var result ports.ResolutionResult
	err := s.withContentionRetry(ctx, func() error {
		var repoErr error
		result, repoErr = s.Repo.ResolveSessionByInactivity(ctx, sessionID, reviewerID, s.inactivityThreshold(), s.now())
		return repoErr
	})
	if err != nil {
		return ports.ResolutionResult{}, err
	}

	s.log().Info("review session closed for inactivity",
		"event", "review_session_inactivity_closed",
		"module", moduleLabel,
		"layer", "application",
		"session_id", sessionID,
		"reviewer_id", reviewerID,
		"duration_seconds", result.DurationSeconds,
	)
	s.notify(ctx, result.Request.OwnerID, ports.EventSessionInactivityClose, map[string]any{
		"request_id": result.Request.RequestID,
		"session_id": sessionID,
	})
	return result, nil
}

// AttachOwnerEvidence stores the owner's evidence reference and bumps the
// session's owner-activity timestamp, resetting the inactivity window.
func (s Service) AttachOwnerEvidence(ctx context.Context, sessionID string, ownerID string, evidenceRef string) (entities.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	ownerID = strings.TrimSpace(ownerID)
	evidenceRef = strings.TrimSpace(evidenceRef)
	if sessionID == "" || ownerID == "" || evidenceRef == "" {
		return entities.Session{}, domainerrors.ErrInvalidRequest
	}
	var session entities.Session
	err := s.withContentionRetry(ctx, func() error {
		var repoErr error
		session, repoErr = s.Repo.AttachOwnerEvidence(ctx, sessionID, ownerID, evidenceRef, s.now())
		return repoErr
	})
	return session, err
}

func (s Service) AttachReviewerEvidence(ctx context.Context, sessionID string, reviewerID string, evidenceRef string) (entities.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	reviewerID = strings.TrimSpace(reviewerID)
	evidenceRef = strings.TrimSpace(evidenceRef)
	if sessionID == "" || reviewerID == "" || evidenceRef == "" {
		return entities.Session{}, domainerrors.ErrInvalidRequest
	}
	var session entities.Session
	err := s.withContentionRetry(ctx, func() error {
		var repoErr error
		session, repoErr = s.Repo.AttachReviewerEvidence(ctx, sessionID, reviewerID, evidenceRef, s.now())
		return repoErr
	})
	return session, err
}

// RequestStatus returns a request for its owner or for reviewer-capable
// callers. Position and wait come from the stored fields written by the last
// recomputation, never derived per read.
func (s Service) RequestStatus(ctx context.Context, requestID string, callerID string) (entities.Request, error) {
	requestID = strings.TrimSpace(requestID)
	callerID = strings.TrimSpace(callerID)
	if requestID == "" || callerID == "" {
		return entities.Request{}, domainerrors.ErrInvalidRequest
	}
	request, err := s.Repo.GetRequest(ctx, requestID)
	if err != nil {
		return entities.Request{}, err
	}
	if request.OwnerID == callerID {
		return request, nil
	}
	if err := s.requireReviewCapability(ctx, callerID); err != nil {
		return entities.Request{}, domainerrors.ErrNotOwner
	}
	return request, nil
}

func (s Service) Queue(ctx context.Context, callerID string) ([]entities.Request, error) {
	if err := s.requireReviewCapability(ctx, strings.TrimSpace(callerID)); err != nil {
		return nil, err
	}
	return s.Repo.ListQueued(ctx)
}

func (s Service) ActiveSessions(ctx context.Context, reviewerID string) ([]entities.Session, error) {
	reviewerID = strings.TrimSpace(reviewerID)
	if err := s.requireReviewCapability(ctx, reviewerID); err != nil {
		return nil, err
	}
	return s.Repo.ListActiveSessionsByReviewer(ctx, reviewerID)
}

func (s Service) ReviewerStats(ctx context.Context, reviewerID string) (ports.ReviewerStats, error) {
	reviewerID = strings.TrimSpace(reviewerID)
	if reviewerID == "" {
		return ports.ReviewerStats{}, domainerrors.ErrInvalidRequest
	}
	return s.Repo.GetReviewerStats(ctx, reviewerID)
}

func (s Service) Summary(ctx context.Context, callerID string) (ports.StatusSummary, error) {
	actor, err := s.lookup(ctx, strings.TrimSpace(callerID))
	if err != nil {
		return ports.StatusSummary{}, err
	}
	if !actor.CanAdminister {
		return ports.StatusSummary{}, domainerrors.ErrForbidden
	}
	return s.Repo.GetStatusSummary(ctx, s.sessionSeconds())
}

func (s Service) requireReviewCapability(ctx context.Context, accountID string) error {
	actor, err := s.lookup(ctx, accountID)
	if err != nil {
		return err
	}
	if !actor.CanReview {
		return domainerrors.ErrForbidden
	}
	return nil
}

func (s Service) lookup(ctx context.Context, accountID string) (ports.Actor, error) {
	if accountID == "" {
		return ports.Actor{}, domainerrors.ErrInvalidRequest
	}
	if s.Directory == nil {
		return ports.Actor{}, domainerrors.ErrForbidden
	}
	return s.Directory.Lookup(ctx, accountID)
}

// withContentionRetry retries only ErrStoreContention, with bounded backoff.
// Every other error kind surfaces to the caller untouched.
func (s Service) withContentionRetry(ctx context.Context, op func() error) error {
	attempts := s.ContentionAttempts
	if attempts == 0 {
		attempts = defaultContentionAttempts
	}
	return retry.Do(op,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, domainerrors.ErrStoreContention)
		}),
		retry.Delay(defaultContentionRetryDelay),
		retry.MaxDelay(defaultContentionMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

func (s Service) notify(ctx context.Context, accountID string, eventKind string, payload map[string]any) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(ctx, accountID, eventKind, payload); err != nil {
		s.log().Warn("notification delivery failed",
			"event", "review_notify_failed",
			"module", moduleLabel,
			"layer", "application",
			"account_id", accountID,
			"event_kind", eventKind,
			"error", err.Error(),
		)
	}
}

func (s Service) fee() int64 {
	if s.RequestFee > 0 {
		return s.RequestFee
	}
	return defaultRequestFee
}

func (s Service) sessionSeconds() float64 {
	if s.DefaultSessionSeconds > 0 {
		return s.DefaultSessionSeconds
	}
	return defaultSessionSeconds
}

func (s Service) inactivityThreshold() time.Duration {
	if s.InactivityThreshold > 0 {
		return s.InactivityThreshold
	}
	return defaultInactivityThreshold
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func (s Service) log() *slog.Logger {
	return resolveLogger(s.Logger)
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
