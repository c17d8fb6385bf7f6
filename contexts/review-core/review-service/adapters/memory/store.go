package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	ledgerports "agegate/contexts/finance-core/ledger-service/ports"
	"agegate/contexts/review-core/review-service/domain/entities"
	domainerrors "agegate/contexts/review-core/review-service/domain/errors"
	"agegate/contexts/review-core/review-service/domain/services"
	"agegate/contexts/review-core/review-service/ports"
)

const defaultLockWait = 30 * time.Second

// Notification is a recorded Notify call, kept for inspection in tests.
type Notification struct {
	AccountID string
	EventKind string
	Payload   map[string]any
}

// Store is the in-memory transactional repository. A single bounded lock
// serializes every mutating operation so each one behaves as an atomic unit
// spanning requests, sessions, reviewer stats, and the owned ledger store.
// Callers that cannot take the lock within LockWait get ErrStoreContention.
type Store struct {
	// Ledger backs the fee movements. Exposed so composition code can seed
	// balances and share the store with the ledger service.
	Ledger LedgerStore

	// LockWait bounds how long an operation waits for the store lock.
	LockWait time.Duration

	lock chan struct{}

	requests map[string]entities.Request
	sessions map[string]entities.Session
	stats    map[string]ports.ReviewerStats
	actors   map[string]ports.Actor

	notifications []Notification
	sequence      uint64
}

// LedgerStore is the ledger-side contract the review store needs: balance
// reads plus atomic deltas. The finance-core memory store satisfies it.
type LedgerStore interface {
	EnsureAccount(ctx context.Context, accountID string, now time.Time) (ledgerports.Account, error)
	ApplyDelta(ctx context.Context, delta ledgerports.Delta, now time.Time) (ledgerports.Account, ledgerports.Entry, error)
}

func NewStore(ledger LedgerStore) *Store {
	return &Store{
		Ledger:   ledger,
		LockWait: defaultLockWait,
		lock:     make(chan struct{}, 1),
		requests: map[string]entities.Request{},
		sessions: map[string]entities.Session{},
		stats:    map[string]ports.ReviewerStats{},
		actors:   map[string]ports.Actor{},
	}
}

func (s *Store) acquire(ctx context.Context) (func(), error) {
	wait := s.LockWait
	if wait <= 0 {
		wait = defaultLockWait
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case s.lock <- struct{}{}:
		return func() { <-s.lock }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, domainerrors.ErrStoreContention
	}
}

func (s *Store) CreateRequest(ctx context.Context, request entities.Request, fee ports.Charge, fallbackAvgSeconds float64) (entities.Request, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return entities.Request{}, err
	}
	defer release()

	for _, existing := range s.requests {
		if existing.OwnerID == request.OwnerID && existing.IsActive() {
			return entities.Request{}, domainerrors.ErrDuplicateActiveRequest
		}
	}

	account, err := s.Ledger.EnsureAccount(ctx, request.OwnerID, request.CreatedAt)
	if err != nil {
		return entities.Request{}, err
	}
	if account.Balance < fee.Amount {
		return entities.Request{}, domainerrors.ErrInsufficientBalance
	}
	if _, _, err := s.Ledger.ApplyDelta(ctx, ledgerports.Delta{
		AccountID: request.OwnerID,
		Amount:    fee.Amount,
		Kind:      ledgerports.EntryKindDebit,
		Reason:    fee.Reason,
	}, request.CreatedAt); err != nil {
		return entities.Request{}, err
	}

	s.requests[request.RequestID] = request
	s.rankQueueLocked(fallbackAvgSeconds)
	return s.requests[request.RequestID], nil
}

func (s *Store) CancelRequest(ctx context.Context, requestID string, callerID string, refund ports.Charge, fallbackAvgSeconds float64, now time.Time) (entities.Request, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return entities.Request{}, err
	}
	defer release()

	request, ok := s.requests[requestID]
	if !ok {
		return entities.Request{}, domainerrors.ErrRequestNotFound
	}
	if request.OwnerID != callerID {
		return entities.Request{}, domainerrors.ErrNotOwner
	}
	if err := request.Cancel(now); err != nil {
		return entities.Request{}, err
	}
	if _, _, err := s.Ledger.ApplyDelta(ctx, ledgerports.Delta{
		AccountID: request.OwnerID,
		Amount:    refund.Amount,
		Kind:      ledgerports.EntryKindCredit,
		Reason:    refund.Reason,
	}, now); err != nil {
		return entities.Request{}, err
	}

	s.requests[requestID] = request
	s.rankQueueLocked(fallbackAvgSeconds)
	return request, nil
}

func (s *Store) AssignRequest(ctx context.Context, requestID string, reviewerID string, sessionID string, fallbackAvgSeconds float64, now time.Time) (ports.AssignmentResult, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return ports.AssignmentResult{}, err
	}
	defer release()

	request, ok := s.requests[requestID]
	if !ok {
		return ports.AssignmentResult{}, domainerrors.ErrRequestNotFound
	}
	if err := request.Assign(reviewerID, now); err != nil {
		return ports.AssignmentResult{}, err
	}
	session, err := entities.NewActiveSession(sessionID, requestID, request.OwnerID, reviewerID, now)
	if err != nil {
		return ports.AssignmentResult{}, err
	}

	s.requests[requestID] = request
	s.sessions[sessionID] = session
	s.rankQueueLocked(fallbackAvgSeconds)
	return ports.AssignmentResult{Request: request, Session: session}, nil
}

func (s *Store) ResolveSession(ctx context.Context, sessionID string, reviewerID string, verdict entities.Verdict, now time.Time) (ports.ResolutionResult, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return ports.ResolutionResult{}, err
	}
	defer release()

	session, ok := s.sessions[sessionID]
	if !ok {
		return ports.ResolutionResult{}, domainerrors.ErrSessionNotFound
	}
	if session.ReviewerID != reviewerID {
		return ports.ResolutionResult{}, domainerrors.ErrNotAssignedReviewer
	}
	request, ok := s.requests[session.RequestID]
	if !ok {
		return ports.ResolutionResult{}, domainerrors.ErrRequestNotFound
	}

	outcome := entities.RequestStatusCompleted
	if verdict == entities.VerdictReject {
		outcome = entities.RequestStatusRejected
	}
	duration := session.Duration(now)
	if err := session.Complete(now); err != nil {
		return ports.ResolutionResult{}, err
	}
	if err := request.Resolve(outcome, now); err != nil {
		return ports.ResolutionResult{}, err
	}

	stats := s.recordSessionLocked(reviewerID, duration)
	s.sessions[sessionID] = session
	s.requests[request.RequestID] = request
	return ports.ResolutionResult{
		Request:         request,
		Session:         session,
		DurationSeconds: int64(duration.Seconds()),
		Stats:           stats,
	}, nil
}

func (s *Store) ResolveSessionByInactivity(ctx context.Context, sessionID string, reviewerID string, threshold time.Duration, now time.Time) (ports.ResolutionResult, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return ports.ResolutionResult{}, err
	}
	defer release()

	session, ok := s.sessions[sessionID]
	if !ok {
		return ports.ResolutionResult{}, domainerrors.ErrSessionNotFound
	}
	if session.ReviewerID != reviewerID {
		return ports.ResolutionResult{}, domainerrors.ErrNotAssignedReviewer
	}
	if session.IdleFor(now) < threshold {
		return ports.ResolutionResult{}, domainerrors.ErrInactivityThresholdNotMet
	}
	request, ok := s.requests[session.RequestID]
	if !ok {
		return ports.ResolutionResult{}, domainerrors.ErrRequestNotFound
	}

	duration := session.Duration(now)
	if err := session.Complete(now); err != nil {
		return ports.ResolutionResult{}, err
	}
	if err := request.CancelByInactivity(now); err != nil {
		return ports.ResolutionResult{}, err
	}

	stats := s.recordSessionLocked(reviewerID, duration)
	s.sessions[sessionID] = session
	s.requests[request.RequestID] = request
	return ports.ResolutionResult{
		Request:         request,
		Session:         session,
		DurationSeconds: int64(duration.Seconds()),
		Stats:           stats,
	}, nil
}

func (s *Store) AttachOwnerEvidence(ctx context.Context, sessionID string, ownerID string, evidenceRef string, now time.Time) (entities.Session, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return entities.Session{}, err
	}
	defer release()

	session, ok := s.sessions[sessionID]
	if !ok {
		return entities.Session{}, domainerrors.ErrSessionNotFound
	}
	if session.OwnerID != ownerID {
		return entities.Session{}, domainerrors.ErrNotOwner
	}
	if err := session.RecordOwnerActivity(now); err != nil {
		return entities.Session{}, err
	}
	session.OwnerEvidenceRef = evidenceRef
	s.sessions[sessionID] = session
	return session, nil
}

func (s *Store) AttachReviewerEvidence(ctx context.Context, sessionID string, reviewerID string, evidenceRef string, now time.Time) (entities.Session, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return entities.Session{}, err
	}
	defer release()

	session, ok := s.sessions[sessionID]
	if !ok {
		return entities.Session{}, domainerrors.ErrSessionNotFound
	}
	if session.ReviewerID != reviewerID {
		return entities.Session{}, domainerrors.ErrNotAssignedReviewer
	}
	if session.Status != entities.SessionStatusActive {
		return entities.Session{}, domainerrors.ErrInvalidTransition
	}
	session.ReviewerEvidenceRef = evidenceRef
	s.sessions[sessionID] = session
	return session, nil
}

func (s *Store) GetRequest(ctx context.Context, requestID string) (entities.Request, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return entities.Request{}, err
	}
	defer release()

	request, ok := s.requests[requestID]
	if !ok {
		return entities.Request{}, domainerrors.ErrRequestNotFound
	}
	return request, nil
}

func (s *Store) ActiveRequestByOwner(ctx context.Context, ownerID string) (entities.Request, bool, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return entities.Request{}, false, err
	}
	defer release()

	for _, request := range s.requests {
		if request.OwnerID == ownerID && request.IsActive() {
			return request, true, nil
		}
	}
	return entities.Request{}, false, nil
}

func (s *Store) ListQueued(ctx context.Context) ([]entities.Request, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.queuedLocked(), nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (entities.Session, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return entities.Session{}, err
	}
	defer release()

	session, ok := s.sessions[sessionID]
	if !ok {
		return entities.Session{}, domainerrors.ErrSessionNotFound
	}
	return session, nil
}

func (s *Store) ListActiveSessionsByReviewer(ctx context.Context, reviewerID string) ([]entities.Session, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var items []entities.Session
	for _, session := range s.sessions {
		if session.ReviewerID == reviewerID && session.Status == entities.SessionStatusActive {
			items = append(items, session)
		}
	}
	return items, nil
}

func (s *Store) ListIdleSessions(ctx context.Context, threshold time.Duration, now time.Time) ([]entities.Session, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var items []entities.Session
	for _, session := range s.sessions {
		if session.Status == entities.SessionStatusActive && session.IdleFor(now) >= threshold {
			items = append(items, session)
		}
	}
	return items, nil
}

func (s *Store) GetReviewerStats(ctx context.Context, reviewerID string) (ports.ReviewerStats, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return ports.ReviewerStats{}, err
	}
	defer release()

	stats, ok := s.stats[reviewerID]
	if !ok {
		return ports.ReviewerStats{ReviewerID: reviewerID}, nil
	}
	return stats, nil
}

func (s *Store) GetStatusSummary(ctx context.Context, fallbackAvgSeconds float64) (ports.StatusSummary, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return ports.StatusSummary{}, err
	}
	defer release()

	summary := ports.StatusSummary{
		RequestsByStatus: map[entities.RequestStatus]int64{},
	}
	for _, request := range s.requests {
		summary.RequestsByStatus[request.Status]++
	}
	for _, session := range s.sessions {
		if session.Status == entities.SessionStatusActive {
			summary.ActiveSessions++
		}
	}
	summary.GlobalAverageSeconds = services.GlobalAverageSeconds(s.reviewerAveragesLocked(), fallbackAvgSeconds)
	return summary, nil
}

// rankQueueLocked recomputes positions and waits for the whole queued set.
// Called inside every mutating operation that changes queue membership, so
// the stored positions are always the output of the latest recomputation.
func (s *Store) rankQueueLocked(fallbackAvgSeconds float64) {
	average := services.GlobalAverageSeconds(s.reviewerAveragesLocked(), fallbackAvgSeconds)
	for _, request := range services.RankQueue(s.queuedLocked(), average) {
		s.requests[request.RequestID] = request
	}
}

func (s *Store) queuedLocked() []entities.Request {
	var queued []entities.Request
	for _, request := range s.requests {
		if request.Status == entities.RequestStatusQueued {
			queued = append(queued, request)
		}
	}
	sort.SliceStable(queued, func(i, j int) bool {
		a, b := queued[i], queued[j]
		switch {
		case a.QueuePosition == nil && b.QueuePosition != nil:
			return false
		case a.QueuePosition != nil && b.QueuePosition == nil:
			return true
		case a.QueuePosition != nil && b.QueuePosition != nil && *a.QueuePosition != *b.QueuePosition:
			return *a.QueuePosition < *b.QueuePosition
		case !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.Before(b.CreatedAt)
		default:
			return a.RequestID < b.RequestID
		}
	})
	return queued
}

func (s *Store) reviewerAveragesLocked() []float64 {
	var averages []float64
	for _, stats := range s.stats {
		if stats.TotalSessions > 0 {
			averages = append(averages, stats.AverageSeconds)
		}
	}
	return averages
}

func (s *Store) recordSessionLocked(reviewerID string, duration time.Duration) ports.ReviewerStats {
	stats := s.stats[reviewerID]
	stats.ReviewerID = reviewerID
	stats.TotalSessions++
	stats.TotalDurationSeconds += int64(duration.Seconds())
	stats.AverageSeconds = float64(stats.TotalDurationSeconds) / float64(stats.TotalSessions)
	s.stats[reviewerID] = stats
	return stats
}

// PutActor seeds the in-process actor directory.
func (s *Store) PutActor(actor ports.Actor) {
	s.lock <- struct{}{}
	defer func() { <-s.lock }()
	s.actors[actor.AccountID] = actor
}

// Lookup returns the seeded actor, or a plain requester projection for
// accounts the directory has never seen.
func (s *Store) Lookup(ctx context.Context, accountID string) (ports.Actor, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return ports.Actor{}, err
	}
	defer release()

	actor, ok := s.actors[accountID]
	if !ok {
		return ports.Actor{AccountID: accountID}, nil
	}
	return actor, nil
}

func (s *Store) Notify(ctx context.Context, accountID string, eventKind string, payload map[string]any) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	s.notifications = append(s.notifications, Notification{
		AccountID: accountID,
		EventKind: eventKind,
		Payload:   payload,
	})
	return nil
}

// Notifications returns a copy of everything Notify has recorded.
func (s *Store) Notifications() []Notification {
	s.lock <- struct{}{}
	defer func() { <-s.lock }()
	return append([]Notification(nil), s.notifications...)
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(ctx context.Context) (string, error) {
	s.lock <- struct{}{}
	defer func() { <-s.lock }()
	s.sequence++
	return fmt.Sprintf("review-%d", s.sequence), nil
}

var _ ports.Repository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
var _ ports.ActorDirectory = (*Store)(nil)
var _ ports.Notifier = (*Store)(nil)
