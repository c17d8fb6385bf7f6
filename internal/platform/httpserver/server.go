package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	ledgerservice "agegate/contexts/finance-core/ledger-service"
	accountsservice "agegate/contexts/identity-access/accounts-service"
	reviewservice "agegate/contexts/review-core/review-service"
	"agegate/internal/platform/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "agegate/internal/platform/httpserver/docs"
)

type Server struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	addr     string
	ledger   ledgerservice.Module
	accounts accountsservice.Module
	review   reviewservice.Module
}

func New(
	ledger ledgerservice.Module,
	accounts accountsservice.Module,
	review reviewservice.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger,
		addr:     addr,
		ledger:   ledger,
		accounts: accounts,
		review:   review,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the routed mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.Handle("/metrics", promhttp.Handler())

	s.handle("POST /api/ledger/v1/accounts/{account_id}/deposit", s.handleDeposit)
	s.handle("GET /api/ledger/v1/accounts/{account_id}", s.handleBalance)
	s.handle("GET /api/ledger/v1/accounts/{account_id}/entries", s.handleStatement)

	s.handle("POST /api/accounts/v1/register", s.handleRegister)
	s.handle("GET /api/accounts/v1/accounts/{account_id}", s.handleProfile)
	s.handle("POST /api/accounts/v1/accounts/{account_id}/role", s.handleGrantRole)
	s.handle("GET /api/accounts/v1/reviewers", s.handleListReviewers)

	s.handle("POST /api/review/v1/requests", s.handleCreateRequest)
	s.handle("GET /api/review/v1/requests/{request_id}", s.handleRequestStatus)
	s.handle("POST /api/review/v1/requests/{request_id}/cancel", s.handleCancelRequest)
	s.handle("POST /api/review/v1/requests/{request_id}/assign", s.handleAssignRequest)
	s.handle("GET /api/review/v1/queue", s.handleQueue)
	s.handle("POST /api/review/v1/sessions/{session_id}/resolve", s.handleResolveSession)
	s.handle("POST /api/review/v1/sessions/{session_id}/inactivity-close", s.handleInactivityClose)
	s.handle("POST /api/review/v1/sessions/{session_id}/owner-evidence", s.handleOwnerEvidence)
	s.handle("POST /api/review/v1/sessions/{session_id}/reviewer-evidence", s.handleReviewerEvidence)
	s.handle("GET /api/review/v1/reviewers/{reviewer_id}/sessions", s.handleActiveSessions)
	s.handle("GET /api/review/v1/reviewers/{reviewer_id}/stats", s.handleReviewerStats)
	s.handle("GET /api/review/v1/summary", s.handleSummary)
}

// handle registers the route with request counting and latency observation.
func (s *Server) handle(pattern string, fn http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(recorder, r)
		metrics.HTTPRequestsTotal.WithLabelValues(pattern, strconv.Itoa(recorder.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(pattern).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
