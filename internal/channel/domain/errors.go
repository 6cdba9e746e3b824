package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidUser          = errors.New("invalid_user")
	ErrInvalidDeposit       = errors.New("invalid_deposit")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrChannelOpenFailed    = errors.New("channel_open_failed")
	ErrNoOpenChannel        = errors.New("no_open_channel")
	ErrNoOpenChannelToClose = errors.New("no_open_channel_to_close")
	ErrChannelCloseFailed   = errors.New("channel_close_failed")
	ErrTransportUnavailable = errors.New("transport_unavailable")
	ErrOpenTimeout          = errors.New("open_timeout")
	ErrActiveChannelExists  = errors.New("active_channel_exists")
	ErrInvalidChannel       = errors.New("invalid_channel")
	ErrPaymentNotFound      = errors.New("payment_not_found")
)

// InsufficientBalanceError carries both sides of the failed balance check.
type InsufficientBalanceError struct {
	Balance decimal.Decimal
	Amount  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %s, need %s", e.Balance.String(), e.Amount.String())
}

// PaymentFailedError means the head rejected or never confirmed the transfer.
// FallbackToL1 tells the caller the slow path is still available.
type PaymentFailedError struct {
	Reason       string
	FallbackToL1 bool
}

func (e *PaymentFailedError) Error() string {
	return "payment failed: " + e.Reason
}

// OpenFailure wraps the transport reason behind ErrChannelOpenFailed.
func OpenFailure(reason string) error {
	return fmt.Errorf("%w: %s", ErrChannelOpenFailed, reason)
}

func CloseFailure(reason string) error {
	return fmt.Errorf("%w: %s", ErrChannelCloseFailed, reason)
}
