package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	accountserrors "agegate/contexts/identity-access/accounts-service/domain/errors"
	accountshttp "agegate/contexts/identity-access/accounts-service/transport/http"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req accountshttp.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAccountsError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.accounts.Handler.RegisterHandler(r.Context(), req)
	if err != nil {
		writeAccountsDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("account_id")
	resp, err := s.accounts.Handler.ProfileHandler(r.Context(), accountID)
	if err != nil {
		writeAccountsDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	callerID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if callerID == "" {
		writeAccountsError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req accountshttp.GrantRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAccountsError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	accountID := r.PathValue("account_id")
	resp, err := s.accounts.Handler.GrantRoleHandler(r.Context(), callerID, accountID, req)
	if err != nil {
		writeAccountsDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListReviewers(w http.ResponseWriter, r *http.Request) {
	resp, err := s.accounts.Handler.ListReviewersHandler(r.Context())
	if err != nil {
		writeAccountsDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeAccountsDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, accountserrors.ErrAccountNotFound):
		writeAccountsError(w, http.StatusNotFound, "account_not_found", err.Error())
	case errors.Is(err, accountserrors.ErrUnknownRole):
		writeAccountsError(w, http.StatusUnprocessableEntity, "unknown_role", err.Error())
	case errors.Is(err, accountserrors.ErrForbidden):
		writeAccountsError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, accountserrors.ErrInvalidRequest):
		writeAccountsError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeAccountsError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeAccountsError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, accountshttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
