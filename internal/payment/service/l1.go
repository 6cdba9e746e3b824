package service

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
	channeldomain "github.com/smallbiznis/hydrapay/internal/channel/domain"
	"github.com/smallbiznis/hydrapay/internal/clock"
	"github.com/smallbiznis/hydrapay/internal/hydra"
	"github.com/smallbiznis/hydrapay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/hydrapay/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/hydrapay/internal/payment/domain"
	"go.uber.org/zap"
)

// ExecuteL1Payment settles on the slow path: it waits out the simulated
// block latency, charges the flat fee and records the payment in the ledger.
func (s *Service) ExecuteL1Payment(ctx context.Context, req paymentdomain.L1PaymentRequest) paymentdomain.Result[paymentdomain.L1PaymentResponse] {
	var err error
	defer func() {
		s.channelMetrics.RecordPayment(string(channeldomain.MethodL1), req.Amount, err)
		s.metrics.RecordL1Payment(ctx, obsmetrics.ClassifyPaymentOutcome(err))
	}()

	req.UserID = strings.TrimSpace(req.UserID)
	req.CreatorID = strings.TrimSpace(req.CreatorID)
	if req.UserID == "" || req.CreatorID == "" {
		err = channeldomain.ErrInvalidUser
		return failure[paymentdomain.L1PaymentResponse](s.describe(err))
	}
	if !req.Amount.IsPositive() || !hydra.WholeLovelace(req.Amount) {
		err = channeldomain.ErrInvalidAmount
		return failure[paymentdomain.L1PaymentResponse](s.describe(err))
	}

	policy := s.policy.Get()
	log := logger.WithContext(ctx, s.log)
	log.Info("l1 payment submitted", zap.String("amount", req.Amount.String()), zap.Duration("latency", policy.L1Latency))

	started := s.clock.Now()
	if err = clock.Sleep(ctx, s.clock, policy.L1Latency); err != nil {
		return failure[paymentdomain.L1PaymentResponse](s.describe(err))
	}
	executedAt := s.clock.Now()

	entry := &paymentdomain.LedgerEntry{
		ID:               s.genID.Generate(),
		UserID:           req.UserID,
		CreatorID:        req.CreatorID,
		Amount:           req.Amount,
		Fee:              policy.L1FeeAmount(),
		TxHash:           "tx_l1_" + strings.ToLower(ulid.Make().String()),
		Status:           string(channeldomain.PaymentStatusSuccess),
		ProcessingTimeMs: executedAt.Sub(started).Milliseconds(),
		Metadata: paymentdomain.EncodeMetadata(paymentdomain.Metadata{
			ContentID:      req.ContentID,
			SubscriptionID: req.SubscriptionID,
		}),
		ExecutedAt: executedAt,
	}
	if err = s.repo.Insert(ctx, s.db, entry); err != nil {
		log.Error("l1 payment not recorded", zap.String("tx_hash", entry.TxHash), zap.Error(err))
		return failure[paymentdomain.L1PaymentResponse](s.describe(err))
	}

	log.Info("l1 payment settled",
		zap.String("payment_id", entry.ID.String()),
		zap.String("tx_hash", entry.TxHash),
		zap.String("fee", entry.Fee.String()),
	)
	return succeed(paymentdomain.L1PaymentResponse{
		Payment:          entry.Payment(),
		ProcessingTimeMs: entry.ProcessingTimeMs,
		Fee:              entry.Fee,
	})
}
