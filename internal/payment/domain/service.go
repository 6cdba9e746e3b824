package domain

import (
	"context"

	"github.com/shopspring/decimal"
	channeldomain "github.com/smallbiznis/hydrapay/internal/channel/domain"
)

const (
	HealthOperational = "operational"
	HealthDegraded    = "degraded"
)

// Result is the uniform envelope every façade operation returns. Code is a
// stable machine-readable reason; Error is the message shown to users.
type Result[T any] struct {
	Success      bool   `json:"success"`
	Data         T      `json:"data,omitempty"`
	Error        string `json:"error,omitempty"`
	Code         string `json:"code,omitempty"`
	FallbackToL1 bool   `json:"fallbackToL1,omitempty"`
}

type OpenChannelRequest struct {
	UserID        string          `json:"userId"`
	DepositAmount decimal.Decimal `json:"depositAmount"`
}

type OpenChannelResponse struct {
	HeadID               string               `json:"headId"`
	Status               channeldomain.Status `json:"status"`
	EstimatedTimeSeconds int                  `json:"estimatedTime"`
	AlreadyExisted       bool                 `json:"alreadyExisted,omitempty"`
	Message              string               `json:"message"`
}

type CloseChannelResponse struct {
	HeadID           string          `json:"headId"`
	CloseTxHash      string          `json:"closeTxHash"`
	FinalBalance     decimal.Decimal `json:"finalBalance"`
	TransactionCount int             `json:"transactionCount"`
	Message          string          `json:"message"`
}

type L1PaymentRequest struct {
	UserID         string          `json:"userId"`
	CreatorID      string          `json:"creatorId"`
	Amount         decimal.Decimal `json:"amount"`
	ContentID      string          `json:"contentId"`
	SubscriptionID string          `json:"subscriptionId,omitempty"`
}

type L1PaymentResponse struct {
	Payment          channeldomain.Payment `json:"payment"`
	ProcessingTimeMs int64                 `json:"processingTimeMs"`
	Fee              decimal.Decimal       `json:"fee"`
}

type History struct {
	Payments []channeldomain.Payment `json:"payments"`
	Total    int                     `json:"total"`
}

type Health struct {
	HydraAvailable bool   `json:"hydraAvailable"`
	ActiveHeads    int    `json:"activeHeads"`
	OpenHeads      int    `json:"openHeads"`
	Status         string `json:"status"`
}

type Service interface {
	OpenChannel(ctx context.Context, req OpenChannelRequest) Result[OpenChannelResponse]
	GetChannelStatus(ctx context.Context, userID string) Result[channeldomain.StatusSnapshot]
	AwaitOpen(ctx context.Context, userID string) Result[channeldomain.StatusSnapshot]
	ExecutePayment(ctx context.Context, req channeldomain.PayRequest) Result[channeldomain.PayResult]
	ExecuteL1Payment(ctx context.Context, req L1PaymentRequest) Result[L1PaymentResponse]
	CloseChannel(ctx context.Context, userID string) Result[CloseChannelResponse]
	GetPaymentHistory(ctx context.Context, userID string, limit int) Result[History]
	GetPayment(ctx context.Context, paymentID string) Result[channeldomain.Payment]
	HealthCheck(ctx context.Context) Result[Health]
}
