package ports

import (
	"context"
	"time"
)

type Clock interface {
	Now() time.Time
}

// Role is the closed set of account roles. Privileged operations check
// capabilities through Role.Can, never by comparing raw strings elsewhere.
type Role string

const (
	RoleRequester Role = "requester"
	RoleReviewer  Role = "reviewer"
	RoleAdmin     Role = "admin"
)

type Capability string

const (
	CapabilityReview      Capability = "review"
	CapabilityManageRoles Capability = "manage_roles"
)

func (r Role) Can(capability Capability) bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleReviewer:
		return capability == CapabilityReview
	default:
		return false
	}
}

func IsValidRole(role Role) bool {
	switch role {
	case RoleRequester, RoleReviewer, RoleAdmin:
		return true
	default:
		return false
	}
}

type Account struct {
	AccountID   string
	DisplayName string
	Role        Role
	CreatedAt   time.Time
}

type Repository interface {
	EnsureAccount(ctx context.Context, accountID string, displayName string, now time.Time) (Account, error)
	GetAccount(ctx context.Context, accountID string) (Account, error)
	SetRole(ctx context.Context, accountID string, role Role) (Account, error)
	ListByRole(ctx context.Context, role Role) ([]Account, error)
}
