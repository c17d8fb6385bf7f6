package services

import (
	"testing"
	"time"

	"agegate/contexts/review-core/review-service/domain/entities"
)

func queuedRequest(id string, position *int, createdAt time.Time) entities.Request {
	return entities.Request{
		RequestID:     id,
		OwnerID:       "owner-" + id,
		Status:        entities.RequestStatusQueued,
		QueuePosition: position,
		CreatedAt:     createdAt,
	}
}

func intPtr(v int) *int { return &v }

func TestRankQueueAssignsContiguousPositions(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	queued := []entities.Request{
		queuedRequest("req-c", nil, base.Add(2*time.Minute)),
		queuedRequest("req-a", intPtr(1), base),
		queuedRequest("req-b", intPtr(2), base.Add(time.Minute)),
	}

	ranked := RankQueue(queued, 300)
	if len(ranked) != 3 {
		t.Fatalf("expected 3 ranked requests, got %d", len(ranked))
	}
	for i, req := range ranked {
		if req.QueuePosition == nil || *req.QueuePosition != i+1 {
			t.Fatalf("position %d expected at index %d, got %+v", i+1, i, req.QueuePosition)
		}
	}
	if ranked[0].RequestID != "req-a" || ranked[1].RequestID != "req-b" || ranked[2].RequestID != "req-c" {
		t.Fatalf("unexpected order: %s %s %s", ranked[0].RequestID, ranked[1].RequestID, ranked[2].RequestID)
	}
}

func TestRankQueueKeepsRankedAheadOfUnranked(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// the unranked request is older, but the ranked one must stay ahead
	queued := []entities.Request{
		queuedRequest("req-old-unranked", nil, base),
		queuedRequest("req-ranked", intPtr(3), base.Add(time.Hour)),
	}

	ranked := RankQueue(queued, 60)
	if ranked[0].RequestID != "req-ranked" {
		t.Fatalf("ranked request must keep its place, got %s first", ranked[0].RequestID)
	}
	if *ranked[0].QueuePosition != 1 || *ranked[1].QueuePosition != 2 {
		t.Fatalf("positions must compact to 1..N, got %d and %d", *ranked[0].QueuePosition, *ranked[1].QueuePosition)
	}
}

func TestRankQueueIsIdempotent(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	queued := []entities.Request{
		queuedRequest("req-b", nil, base.Add(time.Minute)),
		queuedRequest("req-a", nil, base),
	}

	first := RankQueue(queued, 120)
	second := RankQueue(first, 120)
	for i := range first {
		if first[i].RequestID != second[i].RequestID {
			t.Fatalf("order changed between runs at index %d", i)
		}
		if *first[i].QueuePosition != *second[i].QueuePosition {
			t.Fatalf("position changed between runs at index %d", i)
		}
		if *first[i].EstimatedWaitSeconds != *second[i].EstimatedWaitSeconds {
			t.Fatalf("wait changed between runs at index %d", i)
		}
	}
}

func TestEstimatedWaitSeconds(t *testing.T) {
	if got := EstimatedWaitSeconds(1, 300); got != 0 {
		t.Fatalf("head of queue must wait 0, got %d", got)
	}
	if got := EstimatedWaitSeconds(4, 300); got != 900 {
		t.Fatalf("expected 900, got %d", got)
	}
	if got := EstimatedWaitSeconds(0, 300); got != 0 {
		t.Fatalf("wait must never be negative, got %d", got)
	}
}

func TestGlobalAverageSeconds(t *testing.T) {
	if got := GlobalAverageSeconds(nil, 300); got != 300 {
		t.Fatalf("expected fallback 300, got %f", got)
	}
	// average of averages: each reviewer weighs equally
	if got := GlobalAverageSeconds([]float64{100, 300}, 300); got != 200 {
		t.Fatalf("expected 200, got %f", got)
	}
}
