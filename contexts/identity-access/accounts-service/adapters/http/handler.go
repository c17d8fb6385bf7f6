package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"agegate/contexts/identity-access/accounts-service/application"
	"agegate/contexts/identity-access/accounts-service/ports"
	httptransport "agegate/contexts/identity-access/accounts-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

// RegisterHandler godoc
// @Summary Register an account
// @Description Creates the account on first contact; idempotent on repeats.
// @Tags accounts
// @Accept json
// @Produce json
// @Param request body httptransport.RegisterRequest true "Registration payload"
// @Success 200 {object} httptransport.AccountResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Router /api/accounts/v1/register [post]
func (h Handler) RegisterHandler(ctx context.Context, req httptransport.RegisterRequest) (httptransport.AccountResponse, error) {
	account, err := h.Service.Register(ctx, req.AccountID, req.DisplayName)
	if err != nil {
		return httptransport.AccountResponse{}, err
	}
	return mapAccount(account), nil
}

// ProfileHandler godoc
// @Summary Get an account profile
// @Tags accounts
// @Produce json
// @Param account_id path string true "Account id"
// @Success 200 {object} httptransport.AccountResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /api/accounts/v1/{account_id} [get]
func (h Handler) ProfileHandler(ctx context.Context, accountID string) (httptransport.AccountResponse, error) {
	account, err := h.Service.Profile(ctx, accountID)
	if err != nil {
		return httptransport.AccountResponse{}, err
	}
	return mapAccount(account), nil
}

// GrantRoleHandler godoc
// @Summary Grant a role to an account
// @Description Requires the manage_roles capability on the caller.
// @Tags accounts
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Caller account id"
// @Param account_id path string true "Target account id"
// @Param request body httptransport.GrantRoleRequest true "Role payload"
// @Success 200 {object} httptransport.AccountResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Router /api/accounts/v1/{account_id}/role [post]
func (h Handler) GrantRoleHandler(ctx context.Context, callerID string, accountID string, req httptransport.GrantRoleRequest) (httptransport.AccountResponse, error) {
	account, err := h.Service.GrantRole(ctx, callerID, accountID, ports.Role(req.Role))
	if err != nil {
		return httptransport.AccountResponse{}, err
	}
	return mapAccount(account), nil
}

// ListReviewersHandler godoc
// @Summary List reviewer accounts
// @Tags accounts
// @Produce json
// @Success 200 {object} httptransport.ListAccountsResponse
// @Router /api/accounts/v1/reviewers [get]
func (h Handler) ListReviewersHandler(ctx context.Context) (httptransport.ListAccountsResponse, error) {
	accounts, err := h.Service.ListReviewers(ctx)
	if err != nil {
		return httptransport.ListAccountsResponse{}, err
	}
	items := make([]httptransport.AccountResponse, 0, len(accounts))
	for _, account := range accounts {
		items = append(items, mapAccount(account))
	}
	return httptransport.ListAccountsResponse{Items: items}, nil
}

func mapAccount(account ports.Account) httptransport.AccountResponse {
	return httptransport.AccountResponse{
		AccountID:   account.AccountID,
		DisplayName: account.DisplayName,
		Role:        string(account.Role),
		CreatedAt:   account.CreatedAt.UTC().Format(time.RFC3339),
	}
}
