package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"agegate/contexts/review-core/review-service/application"
	domainerrors "agegate/contexts/review-core/review-service/domain/errors"
	"agegate/contexts/review-core/review-service/ports"
)

// InactivitySweeper closes sessions whose owner has gone quiet past the
// threshold, on behalf of the assigned reviewer. A session whose owner
// resurfaces between listing and closing is skipped, not failed.
type InactivitySweeper struct {
	Service   application.Service
	Repo      ports.Repository
	Clock     ports.Clock
	Threshold time.Duration
	Logger    *slog.Logger
}

func (j InactivitySweeper) RunOnce(ctx context.Context) error {
	logger := resolveLogger(j.Logger)
	now := time.Now().UTC()
	if j.Clock != nil {
		now = j.Clock.Now().UTC()
	}
	threshold := j.Threshold
	if threshold <= 0 {
		threshold = 3 * time.Minute
	}

	idle, err := j.Repo.ListIdleSessions(ctx, threshold, now)
	if err != nil {
		logger.Error("inactivity sweep listing failed",
			"event", "review_inactivity_sweep_failed",
			"module", "review-core/review-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	closed := 0
	for _, session := range idle {
		_, err := j.Service.ResolveByInactivity(ctx, session.SessionID, session.ReviewerID)
		switch {
		case err == nil:
			closed++
		case errors.Is(err, domainerrors.ErrInactivityThresholdNotMet),
			errors.Is(err, domainerrors.ErrInvalidTransition),
			errors.Is(err, domainerrors.ErrSessionNotFound):
			// the owner came back or another closer won the race
		default:
			logger.Error("inactivity close failed",
				"event", "review_inactivity_close_failed",
				"module", "review-core/review-service",
				"layer", "worker",
				"session_id", session.SessionID,
				"error", err.Error(),
			)
			return err
		}
	}
	if closed > 0 {
		logger.Info("inactivity sweep completed",
			"event", "review_inactivity_sweep_completed",
			"module", "review-core/review-service",
			"layer", "worker",
			"closed_count", closed,
		)
	}
	return nil
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
