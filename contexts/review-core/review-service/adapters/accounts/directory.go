// Package accountsadapter projects identity-access accounts into the actor
// shape the review coordinator gates on.
package accountsadapter

import (
	"context"
	"errors"

	accountsapp "agegate/contexts/identity-access/accounts-service/application"
	accountserrors "agegate/contexts/identity-access/accounts-service/domain/errors"
	accountsports "agegate/contexts/identity-access/accounts-service/ports"
	"agegate/contexts/review-core/review-service/ports"
)

// Directory adapts the accounts application service to ports.ActorDirectory.
// Accounts the identity context has never seen come back as plain requesters
// with no capabilities.
type Directory struct {
	Accounts accountsapp.Service
}

func (d Directory) Lookup(ctx context.Context, accountID string) (ports.Actor, error) {
	account, err := d.Accounts.Profile(ctx, accountID)
	if err != nil {
		if errors.Is(err, accountserrors.ErrAccountNotFound) {
			return ports.Actor{AccountID: accountID}, nil
		}
		return ports.Actor{}, err
	}
	return ports.Actor{
		AccountID:     account.AccountID,
		DisplayName:   account.DisplayName,
		CanReview:     account.Role.Can(accountsports.CapabilityReview),
		CanAdminister: account.Role.Can(accountsports.CapabilityManageRoles),
	}, nil
}

var _ ports.ActorDirectory = Directory{}
