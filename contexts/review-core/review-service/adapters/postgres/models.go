package postgresadapter

import (
	"context"
	"time"

	"agegate/contexts/review-core/review-service/domain/entities"
	"agegate/contexts/review-core/review-service/ports"

	"github.com/google/uuid"
)

type requestModel struct {
	RequestID            string     `gorm:"column:request_id;primaryKey"`
	OwnerID              string     `gorm:"column:owner_id"`
	Status               string     `gorm:"column:status"`
	QueuePosition        *int       `gorm:"column:queue_position"`
	EstimatedWaitSeconds *int64     `gorm:"column:estimated_wait_seconds"`
	ReviewerID           string     `gorm:"column:reviewer_id"`
	CreatedAt            time.Time  `gorm:"column:created_at"`
	AssignedAt           *time.Time `gorm:"column:assigned_at"`
	ResolvedAt           *time.Time `gorm:"column:resolved_at"`
}

func (requestModel) TableName() string {
	return "review_requests"
}

func (m requestModel) toEntity() entities.Request {
	return entities.Request{
		RequestID:            m.RequestID,
		OwnerID:              m.OwnerID,
		Status:               entities.RequestStatus(m.Status),
		QueuePosition:        m.QueuePosition,
		EstimatedWaitSeconds: m.EstimatedWaitSeconds,
		ReviewerID:           m.ReviewerID,
		CreatedAt:            m.CreatedAt.UTC(),
		AssignedAt:           m.AssignedAt,
		ResolvedAt:           m.ResolvedAt,
	}
}

func requestFromEntity(request entities.Request) requestModel {
	return requestModel{
		RequestID:            request.RequestID,
		OwnerID:              request.OwnerID,
		Status:               string(request.Status),
		QueuePosition:        request.QueuePosition,
		EstimatedWaitSeconds: request.EstimatedWaitSeconds,
		ReviewerID:           request.ReviewerID,
		CreatedAt:            request.CreatedAt.UTC(),
		AssignedAt:           request.AssignedAt,
		ResolvedAt:           request.ResolvedAt,
	}
}

type sessionModel struct {
	SessionID           string     `gorm:"column:session_id;primaryKey"`
	RequestID           string     `gorm:"column:request_id"`
	OwnerID             string     `gorm:"column:owner_id"`
	ReviewerID          string     `gorm:"column:reviewer_id"`
	Status              string     `gorm:"column:status"`
	OwnerEvidenceRef    string     `gorm:"column:owner_evidence_ref"`
	ReviewerEvidenceRef string     `gorm:"column:reviewer_evidence_ref"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
	LastOwnerActivityAt *time.Time `gorm:"column:last_owner_activity_at"`
	ResolvedAt          *time.Time `gorm:"column:resolved_at"`
}

func (sessionModel) TableName() string {
	return "review_sessions"
}

func (m sessionModel) toEntity() entities.Session {
	return entities.Session{
		SessionID:           m.SessionID,
		RequestID:           m.RequestID,
		OwnerID:             m.OwnerID,
		ReviewerID:          m.ReviewerID,
		Status:              entities.SessionStatus(m.Status),
		OwnerEvidenceRef:    m.OwnerEvidenceRef,
		ReviewerEvidenceRef: m.ReviewerEvidenceRef,
		CreatedAt:           m.CreatedAt.UTC(),
		LastOwnerActivityAt: m.LastOwnerActivityAt,
		ResolvedAt:          m.ResolvedAt,
	}
}

func sessionFromEntity(session entities.Session) sessionModel {
	return sessionModel{
		SessionID:           session.SessionID,
		RequestID:           session.RequestID,
		OwnerID:             session.OwnerID,
		ReviewerID:          session.ReviewerID,
		Status:              string(session.Status),
		OwnerEvidenceRef:    session.OwnerEvidenceRef,
		ReviewerEvidenceRef: session.ReviewerEvidenceRef,
		CreatedAt:           session.CreatedAt.UTC(),
		LastOwnerActivityAt: session.LastOwnerActivityAt,
		ResolvedAt:          session.ResolvedAt,
	}
}

type reviewerStatsModel struct {
	ReviewerID           string  `gorm:"column:reviewer_id;primaryKey"`
	TotalSessions        int64   `gorm:"column:total_sessions"`
	TotalDurationSeconds int64   `gorm:"column:total_duration_seconds"`
	AverageSeconds       float64 `gorm:"column:average_seconds"`
}

func (reviewerStatsModel) TableName() string {
	return "reviewer_stats"
}

func (m reviewerStatsModel) toPort() ports.ReviewerStats {
	return ports.ReviewerStats{
		ReviewerID:           m.ReviewerID,
		TotalSessions:        m.TotalSessions,
		TotalDurationSeconds: m.TotalDurationSeconds,
		AverageSeconds:       m.AverageSeconds,
	}
}

// Ledger rows share the tables owned by the finance-core postgres adapter;
// writing them here keeps fee movements in the review transaction.
type ledgerAccountModel struct {
	AccountID string    `gorm:"column:account_id;primaryKey"`
	Balance   int64     `gorm:"column:balance"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (ledgerAccountModel) TableName() string {
	return "ledger_accounts"
}

type ledgerEntryModel struct {
	EntryID   string    `gorm:"column:entry_id;primaryKey"`
	AccountID string    `gorm:"column:account_id"`
	Amount    int64     `gorm:"column:amount"`
	Kind      string    `gorm:"column:kind"`
	Reason    string    `gorm:"column:reason"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (ledgerEntryModel) TableName() string {
	return "ledger_entries"
}

// SystemClock implements ports.Clock using wall-clock UTC time.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// UUIDGenerator implements ports.IDGenerator with random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(ctx context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.Clock = SystemClock{}
var _ ports.IDGenerator = UUIDGenerator{}
