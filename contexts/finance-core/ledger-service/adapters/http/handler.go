package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"agegate/contexts/finance-core/ledger-service/application"
	"agegate/contexts/finance-core/ledger-service/ports"
	httptransport "agegate/contexts/finance-core/ledger-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

// DepositHandler godoc
// @Summary Apply a signed credit delta
// @Description Credits an account; the account is created on first contact.
// @Tags ledger
// @Accept json
// @Produce json
// @Param account_id path string true "Account id"
// @Param request body httptransport.DepositRequest true "Deposit payload"
// @Success 200 {object} httptransport.DepositResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Router /api/ledger/v1/accounts/{account_id}/deposit [post]
func (h Handler) DepositHandler(ctx context.Context, accountID string, req httptransport.DepositRequest) (httptransport.DepositResponse, error) {
	account, entry, err := h.Service.Deposit(ctx, accountID, req.Amount, req.Reason)
	if err != nil {
		return httptransport.DepositResponse{}, err
	}
	return httptransport.DepositResponse{
		Account: mapAccount(account),
		Entry:   mapEntry(entry),
	}, nil
}

// BalanceHandler godoc
// @Summary Get account balance
// @Tags ledger
// @Produce json
// @Param account_id path string true "Account id"
// @Success 200 {object} httptransport.AccountResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /api/ledger/v1/accounts/{account_id} [get]
func (h Handler) BalanceHandler(ctx context.Context, accountID string) (httptransport.AccountResponse, error) {
	account, err := h.Service.Balance(ctx, accountID)
	if err != nil {
		return httptransport.AccountResponse{}, err
	}
	return mapAccount(account), nil
}

// StatementHandler godoc
// @Summary List ledger entries for an account
// @Tags ledger
// @Produce json
// @Param account_id path string true "Account id"
// @Param limit query int false "Page size"
// @Success 200 {object} httptransport.StatementResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /api/ledger/v1/accounts/{account_id}/entries [get]
func (h Handler) StatementHandler(ctx context.Context, accountID string, limit int) (httptransport.StatementResponse, error) {
	entries, err := h.Service.Statement(ctx, accountID, limit)
	if err != nil {
		return httptransport.StatementResponse{}, err
	}
	items := make([]httptransport.EntryDTO, 0, len(entries))
	for _, entry := range entries {
		items = append(items, mapEntry(entry))
	}
	return httptransport.StatementResponse{Items: items}, nil
}

func mapAccount(account ports.Account) httptransport.AccountResponse {
	return httptransport.AccountResponse{
		AccountID: account.AccountID,
		Balance:   account.Balance,
		CreatedAt: account.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func mapEntry(entry ports.Entry) httptransport.EntryDTO {
	return httptransport.EntryDTO{
		EntryID:   entry.EntryID,
		AccountID: entry.AccountID,
		Amount:    entry.Amount,
		Kind:      entry.Kind,
		Reason:    entry.Reason,
		CreatedAt: entry.CreatedAt.UTC().Format(time.RFC3339),
	}
}
