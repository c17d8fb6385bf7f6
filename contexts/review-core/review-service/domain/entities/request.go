package entities

import (
	"strings"
	"time"

	domainerrors "agegate/contexts/review-core/review-service/domain/errors"
)

type RequestStatus string

const (
	RequestStatusQueued    RequestStatus = "queued"
	RequestStatusAssigned  RequestStatus = "assigned"
	RequestStatusCompleted RequestStatus = "completed"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// Request is one credit-gated review submission. QueuePosition and
// EstimatedWaitSeconds are non-nil only while the request is queued;
// ReviewerID is set from assignment onward.
type Request struct {
	RequestID            string
	OwnerID              string
	Status               RequestStatus
	QueuePosition        *int
	EstimatedWaitSeconds *int64
	ReviewerID           string
	CreatedAt            time.Time
	AssignedAt           *time.Time
	ResolvedAt           *time.Time
}

func NewQueuedRequest(requestID string, ownerID string, now time.Time) (Request, error) {
	if strings.TrimSpace(requestID) == "" || strings.TrimSpace(ownerID) == "" {
		return Request{}, domainerrors.ErrInvalidRequest
	}
	return Request{
		RequestID: requestID,
		OwnerID:   ownerID,
		Status:    RequestStatusQueued,
		CreatedAt: now.UTC(),
	}, nil
}

// IsActive reports whether the request still blocks its owner from opening
// another one.
func (r Request) IsActive() bool {
	return r.Status == RequestStatusQueued || r.Status == RequestStatusAssigned
}

func (r Request) IsTerminal() bool {
	switch r.Status {
	case RequestStatusCompleted, RequestStatusRejected, RequestStatusCancelled:
		return true
	default:
		return false
	}
}

// Assign moves queued → assigned and clears position accounting.
func (r *Request) Assign(reviewerID string, now time.Time) error {
	if r.Status != RequestStatusQueued {
		return domainerrors.ErrInvalidTransition
	}
	if strings.TrimSpace(reviewerID) == "" {
		return domainerrors.ErrInvalidRequest
	}
	at := now.UTC()
	r.Status = RequestStatusAssigned
	r.ReviewerID = reviewerID
	r.AssignedAt = &at
	r.QueuePosition = nil
	r.EstimatedWaitSeconds = nil
	return nil
}

// Cancel is the owner cancellation path, legal only from queued.
func (r *Request) Cancel(now time.Time) error {
	if r.Status != RequestStatusQueued {
		return domainerrors.ErrInvalidTransition
	}
	at := now.UTC()
	r.Status = RequestStatusCancelled
	r.ResolvedAt = &at
	r.QueuePosition = nil
	r.EstimatedWaitSeconds = nil
	return nil
}

// Resolve closes an assigned request with a verdict outcome.
func (r *Request) Resolve(outcome RequestStatus, now time.Time) error {
	if r.Status != RequestStatusAssigned {
		return domainerrors.ErrInvalidTransition
	}
	if outcome != RequestStatusCompleted && outcome != RequestStatusRejected {
		return domainerrors.ErrInvalidRequest
	}
	at := now.UTC()
	r.Status = outcome
	r.ResolvedAt = &at
	return nil
}

// CancelByInactivity closes an assigned request without a verdict. The fee
// stays consumed: the review service was rendered.
func (r *Request) CancelByInactivity(now time.Time) error {
	if r.Status != RequestStatusAssigned {
		return domainerrors.ErrInvalidTransition
	}
	at := now.UTC()
	r.Status = RequestStatusCancelled
	r.ResolvedAt = &at
	return nil
}
