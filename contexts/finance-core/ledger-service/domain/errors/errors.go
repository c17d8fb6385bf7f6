package errors

import "errors"

var (
	ErrAccountNotFound = errors.New("ledger account not found")
	ErrInvalidAmount   = errors.New("ledger amount must be a positive integer")
	ErrInvalidRequest  = errors.New("ledger request is invalid")
)
