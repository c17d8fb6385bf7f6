package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	domainerrors "agegate/contexts/identity-access/accounts-service/domain/errors"
	"agegate/contexts/identity-access/accounts-service/ports"
)

type Service struct {
	Repo   ports.Repository
	Clock  ports.Clock
	Logger *slog.Logger
}

// Register creates the account on first contact; repeated calls return the
// existing account unchanged except for an empty display name being filled.
func (s Service) Register(ctx context.Context, accountID string, displayName string) (ports.Account, error) {
	accountID = strings.TrimSpace(accountID)
	displayName = strings.TrimSpace(displayName)
	if accountID == "" {
		return ports.Account{}, domainerrors.ErrInvalidRequest
	}
	return s.Repo.EnsureAccount(ctx, accountID, displayName, s.now())
}

func (s Service) Profile(ctx context.Context, accountID string) (ports.Account, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return ports.Account{}, domainerrors.ErrInvalidRequest
	}
	return s.Repo.GetAccount(ctx, accountID)
}

// GrantRole changes an account's role. Only callers holding the manage_roles
// capability may do this.
func (s Service) GrantRole(ctx context.Context, callerID string, accountID string, role ports.Role) (ports.Account, error) {
	callerID = strings.TrimSpace(callerID)
	accountID = strings.TrimSpace(accountID)
	role = ports.Role(strings.ToLower(strings.TrimSpace(string(role))))
	if callerID == "" || accountID == "" {
		return ports.Account{}, domainerrors.ErrInvalidRequest
	}
	if !ports.IsValidRole(role) {
		return ports.Account{}, domainerrors.ErrUnknownRole
	}

	caller, err := s.Repo.GetAccount(ctx, callerID)
	if err != nil {
		return ports.Account{}, err
	}
	if !caller.Role.Can(ports.CapabilityManageRoles) {
		return ports.Account{}, domainerrors.ErrForbidden
	}

	account, err := s.Repo.SetRole(ctx, accountID, role)
	if err != nil {
		return ports.Account{}, err
	}
	resolveLogger(s.Logger).Info("account role granted",
		"event", "account_role_granted",
		"module", "identity-access/accounts-service",
		"layer", "application",
		"caller_id", callerID,
		"account_id", accountID,
		"role", string(role),
	)
	return account, nil
}

func (s Service) ListReviewers(ctx context.Context) ([]ports.Account, error) {
	return s.Repo.ListByRole(ctx, ports.RoleReviewer)
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
