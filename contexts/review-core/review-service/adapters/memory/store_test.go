package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	ledgermemory "agegate/contexts/finance-core/ledger-service/adapters/memory"
	ledgerports "agegate/contexts/finance-core/ledger-service/ports"
	"agegate/contexts/review-core/review-service/domain/entities"
	domainerrors "agegate/contexts/review-core/review-service/domain/errors"
	"agegate/contexts/review-core/review-service/ports"
)

func fundedStore(t *testing.T, accountID string, amount int64) *Store {
	t.Helper()
	ledger := ledgermemory.NewStore()
	store := NewStore(ledger)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if _, err := ledger.EnsureAccount(context.Background(), accountID, now); err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	if amount > 0 {
		if _, _, err := ledger.ApplyDelta(context.Background(), ledgerports.Delta{
			AccountID: accountID,
			Amount:    amount,
			Kind:      ledgerports.EntryKindCredit,
			Reason:    "test funding",
		}, now); err != nil {
			t.Fatalf("fund: %v", err)
		}
	}
	return store
}

func mustQueue(t *testing.T, store *Store, requestID string, ownerID string, at time.Time) entities.Request {
	t.Helper()
	request, err := entities.NewQueuedRequest(requestID, ownerID, at)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	created, err := store.CreateRequest(context.Background(), request, ports.Charge{Amount: 300, Reason: "fee"}, 300)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return created
}

func TestStoreContentionWhenLockHeld(t *testing.T) {
	store := fundedStore(t, "owner-1", 300)
	store.LockWait = 20 * time.Millisecond

	// hold the store lock so the operation cannot acquire it in time
	store.lock <- struct{}{}
	defer func() { <-store.lock }()

	request, err := entities.NewQueuedRequest("req-1", "owner-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	_, err = store.CreateRequest(context.Background(), request, ports.Charge{Amount: 300}, 300)
	if !errors.Is(err, domainerrors.ErrStoreContention) {
		t.Fatalf("expected ErrStoreContention, got %v", err)
	}
}

func TestStoreContextCancelledWhileWaiting(t *testing.T) {
	store := fundedStore(t, "owner-1", 300)
	store.LockWait = time.Minute

	store.lock <- struct{}{}
	defer func() { <-store.lock }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.GetRequest(ctx, "req-1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestListIdleSessionsHonorsOwnerActivity(t *testing.T) {
	store := fundedStore(t, "owner-1", 300)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	created := mustQueue(t, store, "req-1", "owner-1", base)
	assigned, err := store.AssignRequest(context.Background(), created.RequestID, "reviewer-1", "sess-1", 300, base)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	threshold := 3 * time.Minute
	idle, err := store.ListIdleSessions(context.Background(), threshold, base.Add(threshold))
	if err != nil {
		t.Fatalf("list idle: %v", err)
	}
	if len(idle) != 1 || idle[0].SessionID != assigned.Session.SessionID {
		t.Fatalf("expected the session to be idle, got %+v", idle)
	}

	if _, err := store.AttachOwnerEvidence(context.Background(), "sess-1", "owner-1", "media/doc", base.Add(threshold)); err != nil {
		t.Fatalf("attach evidence: %v", err)
	}
	idle, err = store.ListIdleSessions(context.Background(), threshold, base.Add(threshold+time.Minute))
	if err != nil {
		t.Fatalf("list idle after activity: %v", err)
	}
	if len(idle) != 0 {
		t.Fatalf("owner activity must reset idleness, got %d sessions", len(idle))
	}
}

func TestQueueOrderingSurvivesMutations(t *testing.T) {
	ledger := ledgermemory.NewStore()
	store := NewStore(ledger)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for _, owner := range []string{"owner-1", "owner-2", "owner-3"} {
		if _, _, err := ledger.ApplyDelta(context.Background(), ledgerports.Delta{
			AccountID: owner,
			Amount:    300,
			Kind:      ledgerports.EntryKindCredit,
		}, base); err != nil {
			t.Fatalf("fund %s: %v", owner, err)
		}
	}

	first := mustQueue(t, store, "req-1", "owner-1", base)
	second := mustQueue(t, store, "req-2", "owner-2", base.Add(time.Second))
	third := mustQueue(t, store, "req-3", "owner-3", base.Add(2*time.Second))
	if *first.QueuePosition != 1 || *second.QueuePosition != 2 || *third.QueuePosition != 3 {
		t.Fatalf("initial positions wrong: %d %d %d", *first.QueuePosition, *second.QueuePosition, *third.QueuePosition)
	}

	if _, err := store.AssignRequest(context.Background(), "req-1", "reviewer-1", "sess-1", 300, base.Add(time.Minute)); err != nil {
		t.Fatalf("assign: %v", err)
	}
	queued, err := store.ListQueued(context.Background())
	if err != nil {
		t.Fatalf("list queued: %v", err)
	}
	if len(queued) != 2 {
		t.Fatalf("expected 2 queued, got %d", len(queued))
	}
	if queued[0].RequestID != "req-2" || *queued[0].QueuePosition != 1 {
		t.Fatalf("req-2 must lead after assignment, got %+v", queued[0])
	}
	if queued[1].RequestID != "req-3" || *queued[1].QueuePosition != 2 {
		t.Fatalf("req-3 must follow, got %+v", queued[1])
	}
}
