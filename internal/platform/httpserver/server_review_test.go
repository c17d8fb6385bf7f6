package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	ledgerservice "agegate/contexts/finance-core/ledger-service"
	accountsservice "agegate/contexts/identity-access/accounts-service"
	reviewservice "agegate/contexts/review-core/review-service"
	reviewhttp "agegate/contexts/review-core/review-service/transport/http"
	"agegate/contexts/review-core/review-service/ports"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ledger := ledgerservice.NewInMemoryModule(nil)
	accounts := accountsservice.NewInMemoryModule(nil)
	review := reviewservice.NewInMemoryModule(ledger.Store, nil)

	review.Store.PutActor(ports.Actor{AccountID: "reviewer-1", CanReview: true})
	review.Store.PutActor(ports.Actor{AccountID: "owner-1"})

	return New(ledger, accounts, review, nil, ":0")
}

func do(t *testing.T, server *Server, method string, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestCreateRequestRequiresBalance(t *testing.T) {
	server := newTestServer(t)

	rec := do(t, server, http.MethodPost, "/api/review/v1/requests", reviewhttp.CreateRequestRequest{OwnerID: "owner-1"}, nil)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp reviewhttp.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Code != "insufficient_balance" {
		t.Fatalf("expected insufficient_balance, got %q", resp.Code)
	}
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	server := newTestServer(t)

	rec := do(t, server, http.MethodPost, "/api/ledger/v1/accounts/owner-1/deposit", map[string]any{"amount": 300}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("deposit failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, server, http.MethodPost, "/api/review/v1/requests", reviewhttp.CreateRequestRequest{OwnerID: "owner-1"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", rec.Code, rec.Body.String())
	}
	var created reviewhttp.RequestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if created.QueuePosition == nil || *created.QueuePosition != 1 {
		t.Fatalf("expected position 1, got %+v", created.QueuePosition)
	}

	rec = do(t, server, http.MethodPost, "/api/review/v1/requests/"+created.RequestID+"/assign", reviewhttp.AssignRequestRequest{}, map[string]string{"X-User-Id": "reviewer-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("assign failed: %d %s", rec.Code, rec.Body.String())
	}
	var assigned reviewhttp.AssignmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &assigned); err != nil {
		t.Fatalf("decode assignment: %v", err)
	}

	rec = do(t, server, http.MethodPost, "/api/review/v1/sessions/"+assigned.Session.SessionID+"/resolve",
		reviewhttp.ResolveSessionRequest{Verdict: "approve"}, map[string]string{"X-User-Id": "reviewer-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve failed: %d %s", rec.Code, rec.Body.String())
	}
	var resolved reviewhttp.ResolutionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resolved); err != nil {
		t.Fatalf("decode resolution: %v", err)
	}
	if resolved.Request.Status != "completed" {
		t.Fatalf("expected completed, got %s", resolved.Request.Status)
	}
}

func TestQueueRequiresReviewCapability(t *testing.T) {
	server := newTestServer(t)

	rec := do(t, server, http.MethodGet, "/api/review/v1/queue", nil, map[string]string{"X-User-Id": "owner-1"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	rec = do(t, server, http.MethodGet, "/api/review/v1/queue", nil, map[string]string{"X-User-Id": "reviewer-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAssignConflictMapsTo409(t *testing.T) {
	server := newTestServer(t)

	if rec := do(t, server, http.MethodPost, "/api/ledger/v1/accounts/owner-1/deposit", map[string]any{"amount": 300}, nil); rec.Code != http.StatusOK {
		t.Fatalf("deposit failed: %d", rec.Code)
	}
	rec := do(t, server, http.MethodPost, "/api/review/v1/requests", reviewhttp.CreateRequestRequest{OwnerID: "owner-1"}, nil)
	var created reviewhttp.RequestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode request: %v", err)
	}

	if rec := do(t, server, http.MethodPost, "/api/review/v1/requests/"+created.RequestID+"/assign", reviewhttp.AssignRequestRequest{}, map[string]string{"X-User-Id": "reviewer-1"}); rec.Code != http.StatusOK {
		t.Fatalf("first assign failed: %d", rec.Code)
	}
	rec = do(t, server, http.MethodPost, "/api/review/v1/requests/"+created.RequestID+"/assign", reviewhttp.AssignRequestRequest{}, map[string]string{"X-User-Id": "reviewer-1"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}
