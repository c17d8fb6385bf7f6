package workers

import (
	"context"
	"testing"
	"time"

	ledgermemory "agegate/contexts/finance-core/ledger-service/adapters/memory"
	ledgerports "agegate/contexts/finance-core/ledger-service/ports"
	"agegate/contexts/review-core/review-service/adapters/memory"
	"agegate/contexts/review-core/review-service/application"
	"agegate/contexts/review-core/review-service/domain/entities"
	"agegate/contexts/review-core/review-service/ports"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

func TestSweeperClosesIdleSessions(t *testing.T) {
	ledger := ledgermemory.NewStore()
	store := memory.NewStore(ledger)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fixedClock{now: base}

	store.PutActor(ports.Actor{AccountID: "reviewer-1", CanReview: true})
	if _, _, err := ledger.ApplyDelta(context.Background(), ledgerports.Delta{
		AccountID: "owner-1",
		Amount:    300,
		Kind:      ledgerports.EntryKindCredit,
	}, base); err != nil {
		t.Fatalf("fund: %v", err)
	}

	service := application.Service{
		Repo:                  store,
		Directory:             store,
		Notifier:              store,
		Clock:                 clock,
		IDGenerator:           store,
		RequestFee:            300,
		DefaultSessionSeconds: 300,
		InactivityThreshold:   3 * time.Minute,
	}

	request, err := service.CreateRequest(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assigned, err := service.Assign(context.Background(), request.RequestID, "reviewer-1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	sweeper := InactivitySweeper{
		Service:   service,
		Repo:      store,
		Clock:     clock,
		Threshold: 3 * time.Minute,
	}

	// not yet idle
	if err := sweeper.RunOnce(context.Background()); err != nil {
		t.Fatalf("early sweep: %v", err)
	}
	session, err := store.GetSession(context.Background(), assigned.Session.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.Status != entities.SessionStatusActive {
		t.Fatalf("early sweep must not close, got %s", session.Status)
	}

	clock.now = base.Add(3 * time.Minute)
	if err := sweeper.RunOnce(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	session, err = store.GetSession(context.Background(), assigned.Session.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.Status != entities.SessionStatusCompleted {
		t.Fatalf("idle session must be closed, got %s", session.Status)
	}
	closedRequest, err := store.GetRequest(context.Background(), request.RequestID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if closedRequest.Status != entities.RequestStatusCancelled {
		t.Fatalf("request must be cancelled without refund, got %s", closedRequest.Status)
	}
}
