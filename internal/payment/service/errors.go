package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	channeldomain "github.com/smallbiznis/hydrapay/internal/channel/domain"
	paymentdomain "github.com/smallbiznis/hydrapay/internal/payment/domain"
	"go.uber.org/zap"
)

type failureInfo struct {
	code     string
	message  string
	fallback bool
}

func failure[T any](f failureInfo) paymentdomain.Result[T] {
	return paymentdomain.Result[T]{
		Success:      false,
		Error:        f.message,
		Code:         f.code,
		FallbackToL1: f.fallback,
	}
}

// describe turns a domain error into the code and message callers see.
func (s *Service) describe(err error) failureInfo {
	var insufficient *channeldomain.InsufficientBalanceError
	var failed *channeldomain.PaymentFailedError

	switch {
	case errors.Is(err, channeldomain.ErrInvalidDeposit):
		return failureInfo{
			code:    paymentdomain.CodeInvalidDeposit,
			message: fmt.Sprintf("Minimum deposit is %s ADA", s.policy.Get().MinimumDepositAmount().String()),
		}
	case errors.Is(err, channeldomain.ErrInvalidUser):
		return failureInfo{code: paymentdomain.CodeInvalidUser, message: "Missing required fields"}
	case errors.Is(err, channeldomain.ErrInvalidAmount):
		return failureInfo{code: paymentdomain.CodeInvalidAmount, message: "Amount must be greater than zero"}
	case errors.Is(err, paymentdomain.ErrInvalidRequest):
		return failureInfo{code: paymentdomain.CodeInvalidRequest, message: "Invalid request"}
	case errors.Is(err, channeldomain.ErrChannelOpenFailed):
		return failureInfo{
			code:    paymentdomain.CodeChannelOpenFailed,
			message: "Failed to open Hydra channel: " + reasonOf(err, channeldomain.ErrChannelOpenFailed),
		}
	case errors.Is(err, channeldomain.ErrNoOpenChannel):
		return failureInfo{
			code:     paymentdomain.CodeNoOpenChannel,
			message:  "No open Hydra channel. Please open one first.",
			fallback: true,
		}
	case errors.As(err, &insufficient):
		return failureInfo{
			code: paymentdomain.CodeInsufficientBalance,
			message: fmt.Sprintf("Insufficient balance. Have: %s ADA, Need: %s ADA",
				insufficient.Balance.String(), insufficient.Amount.String()),
		}
	case errors.As(err, &failed):
		return failureInfo{code: paymentdomain.CodePaymentFailed, message: failed.Reason, fallback: failed.FallbackToL1}
	case errors.Is(err, channeldomain.ErrNoOpenChannelToClose):
		return failureInfo{code: paymentdomain.CodeNoOpenChannelToClose, message: "No open channel found"}
	case errors.Is(err, channeldomain.ErrChannelCloseFailed):
		return failureInfo{
			code:    paymentdomain.CodeChannelCloseFailed,
			message: "Failed to close Hydra channel: " + reasonOf(err, channeldomain.ErrChannelCloseFailed),
		}
	case errors.Is(err, channeldomain.ErrTransportUnavailable):
		return failureInfo{code: paymentdomain.CodeTransportUnavailable, message: "Hydra node unavailable"}
	case errors.Is(err, channeldomain.ErrOpenTimeout):
		return failureInfo{code: paymentdomain.CodeOpenTimeout, message: "Channel did not open in time"}
	case errors.Is(err, channeldomain.ErrPaymentNotFound):
		return failureInfo{code: paymentdomain.CodePaymentNotFound, message: "Payment not found"}
	case errors.Is(err, paymentdomain.ErrDuplicatePayment):
		return failureInfo{code: paymentdomain.CodeDuplicatePayment, message: "Payment already recorded"}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return failureInfo{code: paymentdomain.CodeCanceled, message: "Request canceled"}
	default:
		s.log.Error("unexpected payment service error", zap.Error(err))
		return failureInfo{code: paymentdomain.CodeInternal, message: "Internal server error"}
	}
}

func reasonOf(err, sentinel error) string {
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}
