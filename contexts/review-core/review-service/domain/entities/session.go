package entities

import (
	"strings"
	"time"

	domainerrors "agegate/contexts/review-core/review-service/domain/errors"
)

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
)

type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
)

func IsValidVerdict(v Verdict) bool {
	return v == VerdictApprove || v == VerdictReject
}

// Session is the bounded reviewer/requester interaction for one assigned
// request. Exactly one session exists per request, created at assignment.
type Session struct {
	SessionID           string
	RequestID           string
	OwnerID             string
	ReviewerID          string
	Status              SessionStatus
	OwnerEvidenceRef    string
	ReviewerEvidenceRef string
	CreatedAt           time.Time
	LastOwnerActivityAt *time.Time
	ResolvedAt          *time.Time
}

func NewActiveSession(sessionID string, requestID string, ownerID string, reviewerID string, now time.Time) (Session, error) {
	if strings.TrimSpace(sessionID) == "" ||
		strings.TrimSpace(requestID) == "" ||
		strings.TrimSpace(ownerID) == "" ||
		strings.TrimSpace(reviewerID) == "" {
		return Session{}, domainerrors.ErrInvalidRequest
	}
	return Session{
		SessionID:  sessionID,
		RequestID:  requestID,
		OwnerID:    ownerID,
		ReviewerID: reviewerID,
		Status:     SessionStatusActive,
		CreatedAt:  now.UTC(),
	}, nil
}

// IdleSince is the reference point for the inactivity gate: the last owner
// activity, or session creation when the owner never sent anything.
func (s Session) IdleSince() time.Time {
	if s.LastOwnerActivityAt != nil {
		return *s.LastOwnerActivityAt
	}
	return s.CreatedAt
}

func (s Session) IdleFor(now time.Time) time.Duration {
	return now.UTC().Sub(s.IdleSince())
}

func (s Session) Duration(now time.Time) time.Duration {
	d := now.UTC().Sub(s.CreatedAt)
	if d < 0 {
		return 0
	}
	return d
}

func (s *Session) RecordOwnerActivity(now time.Time) error {
	if s.Status != SessionStatusActive {
		return domainerrors.ErrInvalidTransition
	}
	at := now.UTC()
	s.LastOwnerActivityAt = &at
	return nil
}

func (s *Session) Complete(now time.Time) error {
	if s.Status != SessionStatusActive {
		return domainerrors.ErrInvalidTransition
	}
	at := now.UTC()
	s.Status = SessionStatusCompleted
	s.ResolvedAt = &at
	return nil
}
