package services

import (
	"sort"

	"agegate/contexts/review-core/review-service/domain/entities"
)

// RankQueue is the single writer of queue positions and wait estimates.
// It orders the queued set so that requests holding a position keep ranking
// ahead of brand-new unranked ones, then reassigns positions 1..N and the
// wait estimate for each. Running it twice without intervening changes
// produces the same output.
func RankQueue(queued []entities.Request, averageSeconds float64) []entities.Request {
	ranked := append([]entities.Request(nil), queued...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
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
	for i := range ranked {
		position := i + 1
		wait := EstimatedWaitSeconds(position, averageSeconds)
		ranked[i].QueuePosition = &position
		ranked[i].EstimatedWaitSeconds = &wait
	}
	return ranked
}

// EstimatedWaitSeconds is (position−1) × average, floored at zero.
func EstimatedWaitSeconds(position int, averageSeconds float64) int64 {
	wait := int64(float64(position-1) * averageSeconds)
	if wait < 0 {
		return 0
	}
	return wait
}

// GlobalAverageSeconds averages the per-reviewer averages of reviewers with
// at least one session, each reviewer weighing equally regardless of volume.
// Falls back when no reviewer has completed a session yet.
func GlobalAverageSeconds(reviewerAverages []float64, fallback float64) float64 {
	if len(reviewerAverages) == 0 {
		return fallback
	}
	var sum float64
	for _, avg := range reviewerAverages {
		sum += avg
	}
	return sum / float64(len(reviewerAverages))
}
