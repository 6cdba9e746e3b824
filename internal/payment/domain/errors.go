package domain

import "errors"

var (
	ErrInvalidRequest   = errors.New("invalid_request")
	ErrDuplicatePayment = errors.New("duplicate_payment")
	ErrLedgerFailure    = errors.New("ledger_failure")
)
