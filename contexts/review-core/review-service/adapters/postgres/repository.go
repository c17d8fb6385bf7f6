package postgresadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"agegate/contexts/review-core/review-service/domain/entities"
	domainerrors "agegate/contexts/review-core/review-service/domain/errors"
	"agegate/contexts/review-core/review-service/domain/services"
	"agegate/contexts/review-core/review-service/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgLockNotAvailable = "55P03"
	pgUniqueViolation  = "23505"

	defaultLockWait = 30 * time.Second
)

// queueLockKey is the pg_advisory_xact_lock key taken by every transaction
// that changes queue membership. Row locks cannot cover rows a concurrent
// transaction has inserted but not committed, so create/cancel/assign
// serialize here before any check or rerank. Advisory waits honor the
// transaction's lock_timeout, so contention still maps to ErrStoreContention.
const queueLockKey = 824243901

// Repository is the transactional store on Postgres. Every mutating method
// runs in a single transaction with a bounded lock_timeout, so lock-wait
// exhaustion surfaces as ErrStoreContention instead of blocking forever.
// Ledger rows live in the same database and are written in the same
// transaction as the review rows they pay for.
type Repository struct {
	db       *gorm.DB
	lockWait time.Duration
	logger   *slog.Logger
}

func NewRepository(db *gorm.DB, lockWait time.Duration, logger *slog.Logger) *Repository {
	if lockWait <= 0 {
		lockWait = defaultLockWait
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, lockWait: lockWait, logger: logger}
}

func (r *Repository) CreateRequest(ctx context.Context, request entities.Request, fee ports.Charge, fallbackAvgSeconds float64) (entities.Request, error) {
	var created entities.Request
	err := r.transact(ctx, func(tx *gorm.DB) error {
		if err := lockQueue(tx); err != nil {
			return err
		}

		// The account row lock is the per-owner serialization point: a
		// racing create for the same owner blocks here, and its duplicate
		// check below then sees this transaction's committed row.
		account, err := lockLedgerAccount(tx, request.OwnerID, request.CreatedAt)
		if err != nil {
			return err
		}

		var active int64
		if err := tx.Model(&requestModel{}).
			Where("owner_id = ? AND status IN ?", request.OwnerID, activeStatuses()).
			Count(&active).
			Error; err != nil {
			return err
		}
		if active > 0 {
			return domainerrors.ErrDuplicateActiveRequest
		}
		if account.Balance < fee.Amount {
			return domainerrors.ErrInsufficientBalance
		}
		if err := applyLedgerDelta(tx, account, -fee.Amount, "debit", fee.Reason, request.CreatedAt); err != nil {
			return err
		}

		row := requestFromEntity(request)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if err := rerankQueue(tx, fallbackAvgSeconds); err != nil {
			return err
		}
		created, err = loadRequest(tx, request.RequestID)
		return err
	})
	if err != nil {
		return entities.Request{}, r.mapError(err)
	}
	return created, nil
}

func (r *Repository) CancelRequest(ctx context.Context, requestID string, callerID string, refund ports.Charge, fallbackAvgSeconds float64, now time.Time) (entities.Request, error) {
	var cancelled entities.Request
	err := r.transact(ctx, func(tx *gorm.DB) error {
		if err := lockQueue(tx); err != nil {
			return err
		}
		request, err := lockRequest(tx, requestID)
		if err != nil {
			return err
		}
		if request.OwnerID != callerID {
			return domainerrors.ErrNotOwner
		}
		if err := request.Cancel(now); err != nil {
			return err
		}

		account, err := lockLedgerAccount(tx, request.OwnerID, now)
		if err != nil {
			return err
		}
		if err := applyLedgerDelta(tx, account, refund.Amount, "credit", refund.Reason, now); err != nil {
			return err
		}
		if err := saveRequest(tx, request); err != nil {
			return err
		}
		if err := rerankQueue(tx, fallbackAvgSeconds); err != nil {
			return err
		}
		cancelled = request
		return nil
	})
	if err != nil {
		return entities.Request{}, r.mapError(err)
	}
	return cancelled, nil
}

func (r *Repository) AssignRequest(ctx context.Context, requestID string, reviewerID string, sessionID string, fallbackAvgSeconds float64, now time.Time) (ports.AssignmentResult, error) {
	var result ports.AssignmentResult
	err := r.transact(ctx, func(tx *gorm.DB) error {
		if err := lockQueue(tx); err != nil {
			return err
		}
		request, err := lockRequest(tx, requestID)
		if err != nil {
			return err
		}
		if err := request.Assign(reviewerID, now); err != nil {
			return err
		}
		session, err := entities.NewActiveSession(sessionID, requestID, request.OwnerID, reviewerID, now)
		if err != nil {
			return err
		}

		if err := saveRequest(tx, request); err != nil {
			return err
		}
		row := sessionFromEntity(session)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if err := rerankQueue(tx, fallbackAvgSeconds); err != nil {
			return err
		}
		result = ports.AssignmentResult{Request: request, Session: session}
		return nil
	})
	if err != nil {
		return ports.AssignmentResult{}, r.mapError(err)
	}
	return result, nil
}

func (r *Repository) ResolveSession(ctx context.Context, sessionID string, reviewerID string, verdict entities.Verdict, now time.Time) (ports.ResolutionResult, error) {
	var result ports.ResolutionResult
	err := r.transact(ctx, func(tx *gorm.DB) error {
		session, err := lockSession(tx, sessionID)
		if err != nil {
			return err
		}
		if session.ReviewerID != reviewerID {
			return domainerrors.ErrNotAssignedReviewer
		}
		request, err := lockRequest(tx, session.RequestID)
		if err != nil {
			return err
		}

		outcome := entities.RequestStatusCompleted
		if verdict == entities.VerdictReject {
			outcome = entities.RequestStatusRejected
		}
		duration := session.Duration(now)
		if err := session.Complete(now); err != nil {
			return err
		}
		if err := request.Resolve(outcome, now); err != nil {
			return err
		}

		stats, err := recordSession(tx, reviewerID, duration)
		if err != nil {
			return err
		}
		if err := saveSession(tx, session); err != nil {
			return err
		}
		if err := saveRequest(tx, request); err != nil {
			return err
		}
		result = ports.ResolutionResult{
			Request:         request,
			Session:         session,
			DurationSeconds: int64(duration.Seconds()),
			Stats:           stats,
		}
		return nil
	})
	if err != nil {
		return ports.ResolutionResult{}, r.mapError(err)
	}
	return result, nil
}

func (r *Repository) ResolveSessionByInactivity(ctx context.Context, sessionID string, reviewerID string, threshold time.Duration, now time.Time) (ports.ResolutionResult, error) {
	var result ports.ResolutionResult
	err := r.transact(ctx, func(tx *gorm.DB) error {
		session, err := lockSession(tx, sessionID)
		if err != nil {
			return err
		}
		if session.ReviewerID != reviewerID {
			return domainerrors.ErrNotAssignedReviewer
		}
		if session.IdleFor(now) < threshold {
			return domainerrors.ErrInactivityThresholdNotMet
		}
		request, err := lockRequest(tx, session.RequestID)
		if err != nil {
			return err
		}

		duration := session.Duration(now)
		if err := session.Complete(now); err != nil {
			return err
		}
		if err := request.CancelByInactivity(now); err != nil {
			return err
		}

		stats, err := recordSession(tx, reviewerID, duration)
		if err != nil {
			return err
		}
		if err := saveSession(tx, session); err != nil {
			return err
		}
		if err := saveRequest(tx, request); err != nil {
			return err
		}
		result = ports.ResolutionResult{
			Request:         request,
			Session:         session,
			DurationSeconds: int64(duration.Seconds()),
			Stats:           stats,
		}
		return nil
	})
	if err != nil {
		return ports.ResolutionResult{}, r.mapError(err)
	}
	return result, nil
}

func (r *Repository) AttachOwnerEvidence(ctx context.Context, sessionID string, ownerID string, evidenceRef string, now time.Time) (entities.Session, error) {
	var updated entities.Session
	err := r.transact(ctx, func(tx *gorm.DB) error {
		session, err := lockSession(tx, sessionID)
		if err != nil {
			return err
		}
		if session.OwnerID != ownerID {
			return domainerrors.ErrNotOwner
		}
		if err := session.RecordOwnerActivity(now); err != nil {
			return err
		}
		session.OwnerEvidenceRef = evidenceRef
		if err := saveSession(tx, session); err != nil {
			return err
		}
		updated = session
		return nil
	})
	if err != nil {
		return entities.Session{}, r.mapError(err)
	}
	return updated, nil
}

func (r *Repository) AttachReviewerEvidence(ctx context.Context, sessionID string, reviewerID string, evidenceRef string, now time.Time) (entities.Session, error) {
	var updated entities.Session
	err := r.transact(ctx, func(tx *gorm.DB) error {
		session, err := lockSession(tx, sessionID)
		if err != nil {
			return err
		}
		if session.ReviewerID != reviewerID {
			return domainerrors.ErrNotAssignedReviewer
		}
		if session.Status != entities.SessionStatusActive {
			return domainerrors.ErrInvalidTransition
		}
		session.ReviewerEvidenceRef = evidenceRef
		if err := saveSession(tx, session); err != nil {
			return err
		}
		updated = session
		return nil
	})
	if err != nil {
		return entities.Session{}, r.mapError(err)
	}
	return updated, nil
}

func (r *Repository) GetRequest(ctx context.Context, requestID string) (entities.Request, error) {
	var row requestModel
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Request{}, domainerrors.ErrRequestNotFound
		}
		return entities.Request{}, r.mapError(err)
	}
	return row.toEntity(), nil
}

func (r *Repository) ActiveRequestByOwner(ctx context.Context, ownerID string) (entities.Request, bool, error) {
	var row requestModel
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND status IN ?", ownerID, activeStatuses()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Request{}, false, nil
		}
		return entities.Request{}, false, r.mapError(err)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListQueued(ctx context.Context) ([]entities.Request, error) {
	var rows []requestModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(entities.RequestStatusQueued)).
		Order("queue_position ASC NULLS LAST, created_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.mapError(err)
	}
	items := make([]entities.Request, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetSession(ctx context.Context, sessionID string) (entities.Session, error) {
	var row sessionModel
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Session{}, domainerrors.ErrSessionNotFound
		}
		return entities.Session{}, r.mapError(err)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListActiveSessionsByReviewer(ctx context.Context, reviewerID string) ([]entities.Session, error) {
	var rows []sessionModel
	err := r.db.WithContext(ctx).
		Where("reviewer_id = ? AND status = ?", reviewerID, string(entities.SessionStatusActive)).
		Order("created_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.mapError(err)
	}
	items := make([]entities.Session, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ListIdleSessions(ctx context.Context, threshold time.Duration, now time.Time) ([]entities.Session, error) {
	cutoff := now.UTC().Add(-threshold)
	var rows []sessionModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND COALESCE(last_owner_activity_at, created_at) <= ?", string(entities.SessionStatusActive), cutoff).
		Order("created_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, r.mapError(err)
	}
	items := make([]entities.Session, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetReviewerStats(ctx context.Context, reviewerID string) (ports.ReviewerStats, error) {
	var row reviewerStatsModel
	err := r.db.WithContext(ctx).
		Where("reviewer_id = ?", reviewerID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ReviewerStats{ReviewerID: reviewerID}, nil
		}
		return ports.ReviewerStats{}, r.mapError(err)
	}
	return row.toPort(), nil
}

func (r *Repository) GetStatusSummary(ctx context.Context, fallbackAvgSeconds float64) (ports.StatusSummary, error) {
	summary := ports.StatusSummary{
		RequestsByStatus: map[entities.RequestStatus]int64{},
	}

	type statusCount struct {
		Status string
		Total  int64
	}
	var counts []statusCount
	if err := r.db.WithContext(ctx).
		Model(&requestModel{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&counts).
		Error; err != nil {
		return ports.StatusSummary{}, r.mapError(err)
	}
	for _, c := range counts {
		summary.RequestsByStatus[entities.RequestStatus(c.Status)] = c.Total
	}

	if err := r.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("status = ?", string(entities.SessionStatusActive)).
		Count(&summary.ActiveSessions).
		Error; err != nil {
		return ports.StatusSummary{}, r.mapError(err)
	}

	averages, err := reviewerAverages(r.db.WithContext(ctx))
	if err != nil {
		return ports.StatusSummary{}, r.mapError(err)
	}
	summary.GlobalAverageSeconds = services.GlobalAverageSeconds(averages, fallbackAvgSeconds)
	return summary, nil
}

// transact opens one transaction with a bounded lock_timeout so a contended
// row wait fails fast instead of queueing behind a stuck peer.
func (r *Repository) transact(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockWait.Milliseconds())).Error; err != nil {
			return err
		}
		return fn(tx)
	})
}

func (r *Repository) mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable:
			return domainerrors.ErrStoreContention
		case pgUniqueViolation:
			return domainerrors.ErrDuplicateActiveRequest
		}
	}
	return err
}

func lockRequest(tx *gorm.DB, requestID string) (entities.Request, error) {
	var row requestModel
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("request_id = ?", requestID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Request{}, domainerrors.ErrRequestNotFound
		}
		return entities.Request{}, err
	}
	return row.toEntity(), nil
}

func lockSession(tx *gorm.DB, sessionID string) (entities.Session, error) {
	var row sessionModel
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("session_id = ?", sessionID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Session{}, domainerrors.ErrSessionNotFound
		}
		return entities.Session{}, err
	}
	return row.toEntity(), nil
}

func saveRequest(tx *gorm.DB, request entities.Request) error {
	row := requestFromEntity(request)
	return tx.Model(&requestModel{}).
		Where("request_id = ?", request.RequestID).
		Select("status", "queue_position", "estimated_wait_seconds", "reviewer_id", "assigned_at", "resolved_at").
		Updates(&row).
		Error
}

func saveSession(tx *gorm.DB, session entities.Session) error {
	row := sessionFromEntity(session)
	return tx.Model(&sessionModel{}).
		Where("session_id = ?", session.SessionID).
		Select("status", "owner_evidence_ref", "reviewer_evidence_ref", "last_owner_activity_at", "resolved_at").
		Updates(&row).
		Error
}

func loadRequest(tx *gorm.DB, requestID string) (entities.Request, error) {
	var row requestModel
	if err := tx.Where("request_id = ?", requestID).First(&row).Error; err != nil {
		return entities.Request{}, err
	}
	return row.toEntity(), nil
}

// lockQueue takes the queue-wide advisory lock for the rest of the
// transaction. Callers that mutate queue membership take it before their
// first read so the rerank sees every prior committed mutation.
func lockQueue(tx *gorm.DB) error {
	return tx.Exec("SELECT pg_advisory_xact_lock(?)", queueLockKey).Error
}

// rerankQueue rewrites queue positions and wait estimates for the whole
// queued set inside the caller's transaction. Callers hold the queue
// advisory lock, so recomputations never interleave.
func rerankQueue(tx *gorm.DB, fallbackAvgSeconds float64) error {
	var rows []requestModel
	if err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status = ?", string(entities.RequestStatusQueued)).
		Order("queue_position ASC NULLS LAST, created_at ASC").
		Find(&rows).
		Error; err != nil {
		return err
	}

	averages, err := reviewerAverages(tx)
	if err != nil {
		return err
	}
	average := services.GlobalAverageSeconds(averages, fallbackAvgSeconds)

	queued := make([]entities.Request, 0, len(rows))
	for _, row := range rows {
		queued = append(queued, row.toEntity())
	}
	for _, request := range services.RankQueue(queued, average) {
		if err := tx.Model(&requestModel{}).
			Where("request_id = ?", request.RequestID).
			Updates(map[string]any{
				"queue_position":         request.QueuePosition,
				"estimated_wait_seconds": request.EstimatedWaitSeconds,
			}).
			Error; err != nil {
			return err
		}
	}
	return nil
}

func reviewerAverages(tx *gorm.DB) ([]float64, error) {
	var averages []float64
	err := tx.Model(&reviewerStatsModel{}).
		Where("total_sessions > 0").
		Pluck("average_seconds", &averages).
		Error
	return averages, err
}

func recordSession(tx *gorm.DB, reviewerID string, duration time.Duration) (ports.ReviewerStats, error) {
	var row reviewerStatsModel
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("reviewer_id = ?", reviewerID).
		First(&row).
		Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ReviewerStats{}, err
		}
		row = reviewerStatsModel{ReviewerID: reviewerID}
	}
	row.TotalSessions++
	row.TotalDurationSeconds += int64(duration.Seconds())
	row.AverageSeconds = float64(row.TotalDurationSeconds) / float64(row.TotalSessions)

	if err := tx.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reviewer_id"}},
			UpdateAll: true,
		}).
		Create(&row).
		Error; err != nil {
		return ports.ReviewerStats{}, err
	}
	return row.toPort(), nil
}

func lockLedgerAccount(tx *gorm.DB, accountID string, now time.Time) (ledgerAccountModel, error) {
	seed := ledgerAccountModel{
		AccountID: accountID,
		Balance:   0,
		CreatedAt: now.UTC(),
	}
	if err := tx.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}},
			DoNothing: true,
		}).
		Create(&seed).
		Error; err != nil {
		return ledgerAccountModel{}, err
	}
	var row ledgerAccountModel
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ?", accountID).
		First(&row).
		Error
	return row, err
}

func applyLedgerDelta(tx *gorm.DB, account ledgerAccountModel, signedAmount int64, kind string, reason string, now time.Time) error {
	if err := tx.Model(&ledgerAccountModel{}).
		Where("account_id = ?", account.AccountID).
		Update("balance", account.Balance+signedAmount).
		Error; err != nil {
		return err
	}
	amount := signedAmount
	if amount < 0 {
		amount = -amount
	}
	entry := ledgerEntryModel{
		EntryID:   uuid.NewString(),
		AccountID: account.AccountID,
		Amount:    amount,
		Kind:      kind,
		Reason:    reason,
		CreatedAt: now.UTC(),
	}
	return tx.Create(&entry).Error
}

func activeStatuses() []string {
	return []string{
		string(entities.RequestStatusQueued),
		string(entities.RequestStatusAssigned),
	}
}

var _ ports.Repository = (*Repository)(nil)
