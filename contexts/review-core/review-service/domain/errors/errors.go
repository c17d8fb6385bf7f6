package errors

import "errors"

var (
	ErrInsufficientBalance       = errors.New("balance is below the review request fee")
	ErrDuplicateActiveRequest    = errors.New("owner already has a queued or assigned request")
	ErrInvalidTransition         = errors.New("entity is not in the required source state")
	ErrNotOwner                  = errors.New("caller is not the owner of the target entity")
	ErrNotAssignedReviewer       = errors.New("caller is not the reviewer assigned to the session")
	ErrInactivityThresholdNotMet = errors.New("owner inactivity window has not elapsed yet")
	ErrStoreContention           = errors.New("store lock wait exceeded, retry the operation")
	ErrForbidden                 = errors.New("caller lacks the required capability")
	ErrRequestNotFound           = errors.New("review request not found")
	ErrSessionNotFound           = errors.New("review session not found")
	ErrInvalidRequest            = errors.New("review request input is invalid")
)
