package application

import (
	"context"
	"errors"
	"testing"

	"agegate/contexts/identity-access/accounts-service/adapters/memory"
	domainerrors "agegate/contexts/identity-access/accounts-service/domain/errors"
	"agegate/contexts/identity-access/accounts-service/ports"
)

func TestRegisterIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	svc := Service{Repo: store, Clock: store}
	ctx := context.Background()

	first, err := svc.Register(ctx, "user-1", "Alice")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if first.Role != ports.RoleRequester {
		t.Fatalf("new accounts must start as requester, got %s", first.Role)
	}
	second, err := svc.Register(ctx, "user-1", "Someone Else")
	if err != nil {
		t.Fatalf("second register failed: %v", err)
	}
	if second.DisplayName != "Alice" {
		t.Fatalf("repeat registration must not rename, got %q", second.DisplayName)
	}
}

func TestGrantRoleRequiresManageCapability(t *testing.T) {
	store := memory.NewStore()
	svc := Service{Repo: store, Clock: store}
	ctx := context.Background()

	if _, err := svc.Register(ctx, "admin-1", "Admin"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := svc.Register(ctx, "user-1", "Alice"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, err := svc.GrantRole(ctx, "admin-1", "user-1", ports.RoleReviewer)
	if !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("requester must not grant roles, got %v", err)
	}

	if _, err := store.SetRole(ctx, "admin-1", ports.RoleAdmin); err != nil {
		t.Fatalf("seed admin failed: %v", err)
	}
	account, err := svc.GrantRole(ctx, "admin-1", "user-1", ports.RoleReviewer)
	if err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	if account.Role != ports.RoleReviewer {
		t.Fatalf("expected reviewer role, got %s", account.Role)
	}
	if !account.Role.Can(ports.CapabilityReview) {
		t.Fatalf("reviewer role must carry the review capability")
	}
}

func TestGrantRoleRejectsUnknownRole(t *testing.T) {
	store := memory.NewStore()
	svc := Service{Repo: store, Clock: store}
	ctx := context.Background()

	if _, err := svc.Register(ctx, "admin-1", "Admin"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := store.SetRole(ctx, "admin-1", ports.RoleAdmin); err != nil {
		t.Fatalf("seed admin failed: %v", err)
	}
	_, err := svc.GrantRole(ctx, "admin-1", "admin-1", ports.Role("superuser"))
	if !errors.Is(err, domainerrors.ErrUnknownRole) {
		t.Fatalf("expected unknown role, got %v", err)
	}
}
