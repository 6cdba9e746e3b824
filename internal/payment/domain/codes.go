package domain

// Result codes. The server maps these onto HTTP statuses.
const (
	CodeInvalidUser          = "invalid_user"
	CodeInvalidDeposit       = "invalid_deposit"
	CodeInvalidAmount        = "invalid_amount"
	CodeInvalidRequest       = "invalid_request"
	CodeChannelOpenFailed    = "channel_open_failed"
	CodeNoOpenChannel        = "no_open_channel"
	CodeInsufficientBalance  = "insufficient_balance"
	CodePaymentFailed        = "payment_failed"
	CodeNoOpenChannelToClose = "no_open_channel_to_close"
	CodeChannelCloseFailed   = "channel_close_failed"
	CodeTransportUnavailable = "transport_unavailable"
	CodeOpenTimeout          = "open_timeout"
	CodePaymentNotFound      = "payment_not_found"
	CodeDuplicatePayment     = "duplicate_payment"
	CodeCanceled             = "canceled"
	CodeInternal             = "internal_error"
)
