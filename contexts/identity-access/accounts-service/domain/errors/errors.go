package errors

import "errors"

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrUnknownRole     = errors.New("role is not part of the closed role set")
	ErrForbidden       = errors.New("caller lacks the required capability")
	ErrInvalidRequest  = errors.New("accounts request is invalid")
)
