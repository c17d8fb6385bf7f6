package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	ledgermemory "agegate/contexts/finance-core/ledger-service/adapters/memory"
	ledgerports "agegate/contexts/finance-core/ledger-service/ports"
	"agegate/contexts/review-core/review-service/adapters/memory"
	"agegate/contexts/review-core/review-service/domain/entities"
	domainerrors "agegate/contexts/review-core/review-service/domain/errors"
	"agegate/contexts/review-core/review-service/ports"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type fixture struct {
	service Service
	store   *memory.Store
	ledger  *ledgermemory.Store
	clock   *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ledger := ledgermemory.NewStore()
	store := memory.NewStore(ledger)
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	store.PutActor(ports.Actor{AccountID: "owner-1"})
	store.PutActor(ports.Actor{AccountID: "owner-2"})
	store.PutActor(ports.Actor{AccountID: "reviewer-1", CanReview: true})
	store.PutActor(ports.Actor{AccountID: "reviewer-2", CanReview: true})
	store.PutActor(ports.Actor{AccountID: "admin-1", CanReview: true, CanAdminister: true})

	return &fixture{
		service: Service{
			Repo:                  store,
			Directory:             store,
			Notifier:              store,
			Clock:                 clock,
			IDGenerator:           store,
			RequestFee:            300,
			DefaultSessionSeconds: 300,
			InactivityThreshold:   3 * time.Minute,
		},
		store:  store,
		ledger: ledger,
		clock:  clock,
	}
}

func (f *fixture) fund(t *testing.T, accountID string, amount int64) {
	t.Helper()
	if _, err := f.ledger.EnsureAccount(context.Background(), accountID, f.clock.now); err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	if _, _, err := f.ledger.ApplyDelta(context.Background(), ledgerports.Delta{
		AccountID: accountID,
		Amount:    amount,
		Kind:      ledgerports.EntryKindCredit,
		Reason:    "test funding",
	}, f.clock.now); err != nil {
		t.Fatalf("fund account: %v", err)
	}
}

func (f *fixture) balance(t *testing.T, accountID string) int64 {
	t.Helper()
	account, err := f.ledger.GetAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	return account.Balance
}

func TestCreateRequestDebitsFeeAndEnqueues(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "owner-1", 300)

	request, err := f.service.CreateRequest(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if request.Status != entities.RequestStatusQueued {
		t.Fatalf("expected queued, got %s", request.Status)
	}
	if request.QueuePosition == nil || *request.QueuePosition != 1 {
		t.Fatalf("expected position 1, got %+v", request.QueuePosition)
	}
	if request.EstimatedWaitSeconds == nil || *request.EstimatedWaitSeconds != 0 {
		t.Fatalf("head of queue must wait 0, got %+v", request.EstimatedWaitSeconds)
	}
	if got := f.balance(t, "owner-1"); got != 0 {
		t.Fatalf("fee must be debited, balance = %d", got)
	}
}

func TestCreateRequestInsufficientBalanceLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "owner-1", 299)

	_, err := f.service.CreateRequest(context.Background(), "owner-1")
	if !errors.Is(err, domainerrors.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := f.balance(t, "owner-1"); got != 299 {
		t.Fatalf("failed create must not move money, balance = %d", got)
	}
	queued, err := f.store.ListQueued(context.Background())
	if err != nil {
		t.Fatalf("list queued: %v", err)
	}
	if len(queued) != 0 {
		t.Fatalf("failed create must not enqueue, got %d requests", len(queued))
	}
}

func TestCreateRequestRejectsSecondActiveRequest(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "owner-1", 600)

	if _, err := f.service.CreateRequest(context.Background(), "owner-1"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := f.service.CreateRequest(context.Background(), "owner-1")
	if !errors.Is(err, domainerrors.ErrDuplicateActiveRequest) {
		t.Fatalf("expected ErrDuplicateActiveRequest, got %v", err)
	}
	if got := f.balance(t, "owner-1"); got != 300 {
		t.Fatalf("second create must not debit, balance = %d", got)
	}
}

func TestCancelRefundsAndPromotesNextInQueue(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "owner-1", 300)
	f.fund(t, "owner-2", 300)

	first, err := f.service.CreateRequest(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	f.clock.Advance(time.Second)
	second, err := f.service.CreateRequest(context.Background(), "owner-2")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if *second.QueuePosition != 2 {
		t.Fatalf("expected position 2, got %d", *second.QueuePosition)
	}

	cancelled, err := f.service.CancelRequest(context.Background(), first.RequestID, "owner-1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != entities.RequestStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if got := f.balance(t, "owner-1"); got != 300 {
		t.Fatalf("cancel must refund the fee, balance = %d", got)
	}

	promoted, err := f.store.GetRequest(context.Background(), second.RequestID)
	if err != nil {
		t.Fatalf("get promoted: %v", err)
	}
	if promoted.QueuePosition == nil || *promoted.QueuePosition != 1 {
		t.Fatalf("remaining request must move to position 1, got %+v", promoted.QueuePosition)
	}
}

func TestCancelTwiceRefundsOnce(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "owner-1", 300)

	request, err := f.service.CreateRequest(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.service.CancelRequest(context.Background(), request.RequestID, "owner-1"); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	_, err = f.service.CancelRequest(context.Background(), request.RequestID, "owner-1")
	if !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("second cancel must lose, got %v", err)
	}
	if got := f.balance(t, "owner-1"); got != 300 {
		t.Fatalf("exactly one refund must land, balance = %d", got)
	}
}

func TestConcurrentCreatesKeepSingleActiveRequest(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "owner-1", 600)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.CreateRequest(context.Background(), "owner-1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var losses int
	for err := range results {
		if err == nil {
			continue
		}
		if !errors.Is(err, domainerrors.ErrDuplicateActiveRequest) {
			t.Fatalf("unexpected error: %v", err)
		}
		losses++
	}
	if losses != 1 {
		t.Fatalf("exactly one racing create must lose, got %d losses", losses)
	}
	if got := f.balance(t, "owner-1"); got != 300 {
		t.Fatalf("exactly one fee must be debited, balance = %d", got)
	}
	queued, err := f.store.ListQueued(context.Background())
	if err != nil {
		t.Fatalf("list queued: %v", err)
	}
	if len(queued) != 1 {
		t.Fatalf("owner must hold a single active request, got %d", len(queued))
	}
}

func TestConcurrentCreatesAssignDistinctPositions(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "owner-1", 300)
	f.fund(t, "owner-2", 300)

	var wg sync.WaitGroup
	for _, owner := range []string{"owner-1", "owner-2"} {
		wg.Add(1)
		go func(owner string) {
			defer wg.Done()
			if _, err := f.service.CreateRequest(context.Background(), owner); err != nil {
				t.Errorf("create %s: %v", owner, err)
			}
		}(owner)
	}
	wg.Wait()

	queued, err := f.store.ListQueued(context.Background())
	if err != nil {
		t.Fatalf("list queued: %v", err)
	}
	if len(queued) != 2 {
		t.Fatalf("expected 2 queued requests, got %d", len(queued))
	}
	seen := map[int]bool{}
	for _, request := range queued {
		if request.QueuePosition == nil {
			t.Fatalf("queued request without position: %+v", request)
		}
		seen[*request.QueuePosition] = true
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("positions must be exactly 1..N, got %v", seen)
	}
}

func TestCancelRejectsNonOwner(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "owner-1", 300)

	request, err := f.service.CreateRequest(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = f.service.CancelRequest(context.Background(), request.RequestID, "owner-2")
	if !errors.Is(err, domainerrors.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestAssignOpensSessionAndLeavesQueue(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "owner-1", 300)

	request, err := f.service.CreateRequest(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	result, err := f.service.Assign(context.Background(), request.RequestID, "reviewer-1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if result.Request.Status != entities.RequestStatusAssigned {
		t.Fatalf("expected assigned, got %s", result.Request.Status)
	}
	if result.Request.QueuePosition != nil {
		t.Fatalf("assigned request must leave the queue, position = %d", *result.Request.QueuePosition)
	}
	if result.Session.Status != entities.SessionStatusActive {
		t.Fatalf("expected active session, got %s", result.Session.Status)
	}
	if result.Session.ReviewerID != "reviewer-1" || result.Session.OwnerID != "owner-1" {
		t.Fatalf("session parties wrong: %+v", result.Session)
	}
}

func TestAssignIsExclusive(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "owner-1", 300)

	request, err := f.service.CreateRequest(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.service.Assign(context.Background(), request.RequestID, "reviewer-1"); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	_, err = f.service.Assign(context.Background(), request.RequestID, "reviewer-2")
	if !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("second assign must lose, got %v", err)
	}
}

func TestAssignRequiresReviewCapability(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "owner-1", 300)

	request, err := f.service.CreateRequest(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = f.service.Assign(context.Background(), request.RequestID, "owner-2")
	if !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestResolveApproveFeedsReviewerStats(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "owner-1", 300)

	request, err := f.service.CreateRequest(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assigned, err := f.service.Assign(context.Background(), request.RequestID, "reviewer-1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	f.clock.Advance(2 * time.Minute)
	result, err := f.service.ResolveWithVerdict(context.Background(), assigned.Session.SessionID, "reviewer-1", entities.VerdictApprove)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Request.Status != entities.RequestStatusCompleted {
		t.Fatalf("expected completed, got %s", result.Request.Status)
	}
	if result.DurationSeconds != 120 {
		t.Fatalf("expected 120s duration, got %d", result.DurationSeconds)
	}
	if result.Stats.TotalSessions != 1 || result.Stats.AverageSeconds != 120 {
		t.Fatalf("stats not updated: %+v", result.Stats)
	}
	if got := f.balance(t, "owner-1"); got != 0 {
		t.Fatalf("resolution must not refund, balance = %d", got)
	}
}

func TestResolveRejectMapsToRejected(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "owner-1", 300)

	request, err := f.service.CreateRequest(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assigned, err := f.service.Assign(context.Background(), request.RequestID, "reviewer-1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	result, err := f.service.ResolveWithVerdict(context.Background(), assigned.Session.SessionID, "reviewer-1", entities.VerdictReject)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Request.Status != entities.RequestStatusRejected {
		t.Fatalf("expected rejected, got %s", result.Request.Status)
	}
}

func TestResolveRejectsWrongReviewer(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "owner-1", 300)

	request, err := f.service.CreateRequest(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assigned, err := f.service.Assign(context.Background(), request.RequestID, "reviewer-1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	_, err = f.service.ResolveWithVerdict(context.Background(), assigned.Session.SessionID, "reviewer-2", entities.VerdictApprove)
	if !errors.Is(err, domainerrors.ErrNotAssignedReviewer) {
		t.Fatalf("expected ErrNotAssignedReviewer, got %v", err)
	}
}

func TestInactivityCloseRespectsThresholdBoundary(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "owner-1", 300)

	request, err := f.service.CreateRequest(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assigned, err := f.service.Assign(context.Background(), request.RequestID, "reviewer-1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	f.clock.Advance(3*time.Minute - time.Second)
	_, err = f.service.ResolveByInactivity(context.Background(), assigned.Session.SessionID, "reviewer-1")
	if !errors.Is(err, domainerrors.ErrInactivityThresholdNotMet) {
		t.Fatalf("one second short must be rejected, got %v", err)
	}

	f.clock.Advance(time.Second)
	result, err := f.service.ResolveByInactivity(context.Background(), assigned.Session.SessionID, "reviewer-1")
	if err != nil {
		t.Fatalf("close at exact threshold: %v", err)
	}
	if result.Request.Status != entities.RequestStatusCancelled {
		t.Fatalf("expected cancelled, got %s", result.Request.Status)
	}
	if result.Stats.TotalSessions != 1 {
		t.Fatalf("inactivity close must still feed stats: %+v", result.Stats)
	}
	if got := f.balance(t, "owner-1"); got != 0 {
		t.Fatalf("inactivity close must not refund, balance = %d", got)
	}
}

func TestOwnerEvidenceResetsInactivityWindow(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "owner-1", 300)

	request, err := f.service.CreateRequest(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assigned, err := f.service.Assign(context.Background(), request.RequestID, "reviewer-1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	f.clock.Advance(2 * time.Minute)
	session, err := f.service.AttachOwnerEvidence(context.Background(), assigned.Session.SessionID, "owner-1", "media/owner-doc-1")
	if err != nil {
		t.Fatalf("attach evidence: %v", err)
	}
	if session.OwnerEvidenceRef != "media/owner-doc-1" {
		t.Fatalf("evidence ref not stored: %q", session.OwnerEvidenceRef)
	}

	// 4 minutes after assignment, but only 2 since the owner's last activity
	f.clock.Advance(2 * time.Minute)
	_, err = f.service.ResolveByInactivity(context.Background(), assigned.Session.SessionID, "reviewer-1")
	if !errors.Is(err, domainerrors.ErrInactivityThresholdNotMet) {
		t.Fatalf("owner activity must reset the window, got %v", err)
	}
}

func TestWaitEstimatesFollowReviewerAverage(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "owner-1", 600)
	f.fund(t, "owner-2", 300)

	request, err := f.service.CreateRequest(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assigned, err := f.service.Assign(context.Background(), request.RequestID, "reviewer-1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	f.clock.Advance(2 * time.Minute)
	if _, err := f.service.ResolveWithVerdict(context.Background(), assigned.Session.SessionID, "reviewer-1", entities.VerdictApprove); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if _, err := f.service.CreateRequest(context.Background(), "owner-1"); err != nil {
		t.Fatalf("requeue owner-1: %v", err)
	}
	f.clock.Advance(time.Second)
	second, err := f.service.CreateRequest(context.Background(), "owner-2")
	if err != nil {
		t.Fatalf("create owner-2: %v", err)
	}
	// one reviewer averaging 120s, so position 2 waits (2-1)*120
	if second.EstimatedWaitSeconds == nil || *second.EstimatedWaitSeconds != 120 {
		t.Fatalf("expected 120s wait, got %+v", second.EstimatedWaitSeconds)
	}
}

func TestBalanceConservationAcrossLifecycle(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "owner-1", 1000)

	first, err := f.service.CreateRequest(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.service.CancelRequest(context.Background(), first.RequestID, "owner-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := f.balance(t, "owner-1"); got != 1000 {
		t.Fatalf("cancel must restore the full balance, got %d", got)
	}

	second, err := f.service.CreateRequest(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	assigned, err := f.service.Assign(context.Background(), second.RequestID, "reviewer-1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.service.ResolveWithVerdict(context.Background(), assigned.Session.SessionID, "reviewer-1", entities.VerdictApprove); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := f.balance(t, "owner-1"); got != 700 {
		t.Fatalf("exactly one fee must be consumed, balance = %d", got)
	}
}

func TestNotificationsEmittedOnTransitions(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "owner-1", 300)

	request, err := f.service.CreateRequest(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assigned, err := f.service.Assign(context.Background(), request.RequestID, "reviewer-1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.service.ResolveWithVerdict(context.Background(), assigned.Session.SessionID, "reviewer-1", entities.VerdictApprove); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	kinds := map[string]int{}
	for _, n := range f.store.Notifications() {
		kinds[n.EventKind]++
	}
	if kinds[ports.EventRequestCreated] != 1 {
		t.Fatalf("expected one created notification, got %d", kinds[ports.EventRequestCreated])
	}
	if kinds[ports.EventRequestAssigned] != 2 {
		t.Fatalf("both parties must hear about assignment, got %d", kinds[ports.EventRequestAssigned])
	}
	if kinds[ports.EventSessionResolved] != 1 {
		t.Fatalf("expected one resolved notification, got %d", kinds[ports.EventSessionResolved])
	}
}

func TestSummaryRequiresAdminCapability(t *testing.T) {
	f := newFixture(t)

	if _, err := f.service.Summary(context.Background(), "reviewer-1"); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("reviewer must not see the summary, got %v", err)
	}
	summary, err := f.service.Summary(context.Background(), "admin-1")
	if err != nil {
		t.Fatalf("admin summary: %v", err)
	}
	if summary.GlobalAverageSeconds != 300 {
		t.Fatalf("empty stats must fall back to the default session time, got %f", summary.GlobalAverageSeconds)
	}
}

func TestRequestStatusVisibility(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "owner-1", 300)

	request, err := f.service.CreateRequest(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.service.RequestStatus(context.Background(), request.RequestID, "owner-1"); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := f.service.RequestStatus(context.Background(), request.RequestID, "reviewer-1"); err != nil {
		t.Fatalf("reviewer read: %v", err)
	}
	if _, err := f.service.RequestStatus(context.Background(), request.RequestID, "owner-2"); !errors.Is(err, domainerrors.ErrNotOwner) {
		t.Fatalf("stranger read must fail, got %v", err)
	}
}
