package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/hydrapay/internal/hydra"
)

type Service interface {
	OpenChannel(ctx context.Context, userID string, deposit decimal.Decimal) (OpenResult, error)
	GetStatus(ctx context.Context, userID string) (StatusSnapshot, error)
	AwaitOpen(ctx context.Context, userID string) (StatusSnapshot, error)
	Pay(ctx context.Context, req PayRequest) (PayResult, error)
	CloseChannel(ctx context.Context, userID string) (CloseResult, error)
	// ApplyEvent reports whether the event changed the stored channel.
	ApplyEvent(ctx context.Context, event hydra.HeadEvent) bool
	Stats() Stats
}
