package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	channeldomain "github.com/smallbiznis/hydrapay/internal/channel/domain"
	"github.com/smallbiznis/hydrapay/internal/clock"
	"github.com/smallbiznis/hydrapay/internal/config"
	"github.com/smallbiznis/hydrapay/internal/hydra"
	"github.com/smallbiznis/hydrapay/internal/hydra/events"
	"github.com/smallbiznis/hydrapay/internal/lock"
	"github.com/smallbiznis/hydrapay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/hydrapay/internal/observability/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Repo      channeldomain.Repository
	Transport hydra.Transport
	Locker    lock.Locker
	Policy    *config.PolicyHolder
	GenID     *snowflake.Node
	Bus       *events.Bus                `optional:"true"`
	Metrics   *obsmetrics.ChannelMetrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	clock     clock.Clock
	repo      channeldomain.Repository
	transport hydra.Transport
	locker    lock.Locker
	policy    *config.PolicyHolder
	genID     *snowflake.Node
	bus       *events.Bus
	metrics   *obsmetrics.ChannelMetrics
	tracer    trace.Tracer
}

func New(p Params) channeldomain.Service {
	return &Service{
		log:       p.Log.Named("channel.service"),
		clock:     p.Clock,
		repo:      p.Repo,
		transport: p.Transport,
		locker:    p.Locker,
		policy:    p.Policy,
		genID:     p.GenID,
		bus:       p.Bus,
		metrics:   p.Metrics,
		tracer:    otel.Tracer("hydrapay/channel"),
	}
}

func userKey(userID string) string { return "user:" + userID }
func headKey(headID string) string { return "head:" + headID }

func (s *Service) OpenChannel(ctx context.Context, userID string, deposit decimal.Decimal) (channeldomain.OpenResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return channeldomain.OpenResult{}, channeldomain.ErrInvalidUser
	}
	policy := s.policy.Get()
	if deposit.LessThan(policy.MinimumDepositAmount()) || !hydra.WholeLovelace(deposit) {
		return channeldomain.OpenResult{}, channeldomain.ErrInvalidDeposit
	}

	unlock, err := s.locker.Lock(ctx, userKey(userID))
	if err != nil {
		return channeldomain.OpenResult{}, err
	}
	defer unlock()

	log := logger.WithContext(ctx, s.log)

	if existing, ok := s.repo.FindAnyByUser(userID); ok {
		if existing.Active() {
			return channeldomain.OpenResult{
				HeadID:               existing.HeadID,
				Status:               existing.Status,
				EstimatedTimeSeconds: policy.EstimatedOpenSeconds,
				AlreadyExisted:       true,
			}, nil
		}
		s.repo.Remove(existing.HeadID)
		// the closed head's event replay goes with its record
		s.bus.Forget(existing.HeadID)
	}

	ctx, span := s.startSpan(ctx, "hydra.init_head", "")
	init, failure := s.transport.InitHead(ctx, []string{userID}, hydra.ToLovelace(deposit))
	endSpan(span, failure)
	if failure != nil {
		s.transportFailure("init_head", failure)
		log.Warn("head init failed", zap.String("reason", failure.Reason))
		return channeldomain.OpenResult{}, channeldomain.OpenFailure(failure.Reason)
	}

	status := channeldomain.StatusInitializing
	if init.Status == hydra.HeadOpen {
		status = channeldomain.StatusOpen
	}
	ch := &channeldomain.Channel{
		HeadID:         init.HeadID,
		UserID:         userID,
		Status:         status,
		Balance:        deposit,
		InitialBalance: deposit,
		OpenedAt:       s.clock.Now(),
	}
	if err := s.repo.Put(ch); err != nil {
		return channeldomain.OpenResult{}, err
	}

	log = logger.WithHead(log, ch.HeadID)
	// polling still reconciles the status if the push feed is down
	if err := s.transport.Subscribe(ctx, ch.HeadID); err != nil {
		log.Warn("head subscription failed", zap.Error(err))
	}

	s.metrics.ChannelOpened()
	s.refreshOpenHeads()
	log.Info("channel opening", zap.String("deposit", deposit.String()))

	return channeldomain.OpenResult{
		HeadID:               ch.HeadID,
		Status:               ch.Status,
		EstimatedTimeSeconds: policy.EstimatedOpenSeconds,
	}, nil
}

func (s *Service) GetStatus(ctx context.Context, userID string) (channeldomain.StatusSnapshot, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return channeldomain.StatusSnapshot{}, channeldomain.ErrInvalidUser
	}

	ch, ok := s.repo.FindAnyByUser(userID)
	if !ok {
		return channeldomain.SnapshotOf(nil), nil
	}
	if !ch.Active() {
		return channeldomain.SnapshotOf(ch), nil
	}

	spanCtx, span := s.startSpan(ctx, "hydra.get_status", ch.HeadID)
	remote, failure := s.transport.GetStatus(spanCtx, ch.HeadID)
	endSpan(span, failure)
	if failure != nil {
		s.transportFailure("get_status", failure)
		logger.WithHead(logger.WithContext(ctx, s.log), ch.HeadID).
			Debug("status refresh failed, keeping stored status", zap.String("reason", failure.Reason))
		return channeldomain.SnapshotOf(ch), nil
	}

	next, known := statusOf(remote.Status)
	if !known || !ch.Status.Advances(next) {
		s.checkBalance(ctx, ch, remote)
		return channeldomain.SnapshotOf(ch), nil
	}

	unlock, err := s.locker.Lock(ctx, headKey(ch.HeadID))
	if err != nil {
		return channeldomain.StatusSnapshot{}, err
	}
	defer unlock()

	// re-read: an event or a close may have landed while the node answered
	current, ok := s.repo.FindByHead(ch.HeadID)
	if !ok {
		return channeldomain.SnapshotOf(nil), nil
	}
	if current.Status.Advances(next) {
		s.advance(ctx, current, next, obsmetrics.CloseReasonNode)
	}
	return channeldomain.SnapshotOf(current), nil
}

// AwaitOpen polls until the channel is open or the poll budget runs out. A
// timed out channel stays initializing so a late open is still observed.
func (s *Service) AwaitOpen(ctx context.Context, userID string) (channeldomain.StatusSnapshot, error) {
	policy := s.policy.Get()
	attempts := policy.OpenPollAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var snap channeldomain.StatusSnapshot
	for attempt := 1; ; attempt++ {
		var err error
		snap, err = s.GetStatus(ctx, userID)
		if err != nil {
			return snap, err
		}
		switch {
		case !snap.HasChannel, snap.Status == channeldomain.StatusClosed:
			return snap, channeldomain.ErrNoOpenChannel
		case snap.Status == channeldomain.StatusOpen:
			return snap, nil
		}
		if attempt >= attempts {
			break
		}
		if err := clock.Sleep(ctx, s.clock, policy.OpenPollInterval); err != nil {
			return snap, err
		}
	}

	logger.WithHead(logger.WithContext(ctx, s.log), snap.HeadID).
		Warn("channel did not open in time", zap.Int("attempts", attempts))
	return snap, channeldomain.ErrOpenTimeout
}

func (s *Service) Pay(ctx context.Context, req channeldomain.PayRequest) (res channeldomain.PayResult, err error) {
	defer func() {
		s.metrics.RecordPayment(string(channeldomain.MethodHydra), req.Amount, err)
	}()

	userID := strings.TrimSpace(req.UserID)
	creatorID := strings.TrimSpace(req.CreatorID)
	if userID == "" || creatorID == "" {
		return channeldomain.PayResult{}, channeldomain.ErrInvalidUser
	}
	// the head counts whole lovelace; anything finer would drift from the node
	if !req.Amount.IsPositive() || !hydra.WholeLovelace(req.Amount) {
		return channeldomain.PayResult{}, channeldomain.ErrInvalidAmount
	}

	ch, ok := s.repo.FindActiveByUser(userID)
	if !ok || ch.Status != channeldomain.StatusOpen {
		return channeldomain.PayResult{}, channeldomain.ErrNoOpenChannel
	}

	unlock, err := s.locker.Lock(ctx, headKey(ch.HeadID))
	if err != nil {
		return channeldomain.PayResult{}, err
	}
	defer unlock()

	ch, ok = s.repo.FindByHead(ch.HeadID)
	if !ok || ch.Status != channeldomain.StatusOpen {
		return channeldomain.PayResult{}, channeldomain.ErrNoOpenChannel
	}
	if ch.Balance.LessThan(req.Amount) {
		return channeldomain.PayResult{}, &channeldomain.InsufficientBalanceError{Balance: ch.Balance, Amount: req.Amount}
	}

	log := logger.WithHead(logger.WithContext(ctx, s.log), ch.HeadID)

	spanCtx, span := s.startSpan(ctx, "hydra.submit_transaction", ch.HeadID)
	submitted, failure := s.transport.SubmitTransaction(spanCtx, ch.HeadID, hydra.Tx{
		From:           userID,
		To:             creatorID,
		AmountLovelace: hydra.ToLovelace(req.Amount),
		Metadata: hydra.TxMetadata{
			ContentID:      req.ContentID,
			SubscriptionID: req.SubscriptionID,
			Timestamp:      s.clock.Now(),
		},
	})
	endSpan(span, failure)
	if failure != nil {
		s.transportFailure("submit_transaction", failure)
		log.Warn("payment rejected by head", zap.String("reason", failure.Reason))
		return channeldomain.PayResult{}, &channeldomain.PaymentFailedError{Reason: failure.Reason, FallbackToL1: true}
	}

	executedAt := submitted.ConfirmedAt
	if executedAt.IsZero() {
		executedAt = s.clock.Now()
	}
	payment := channeldomain.Payment{
		ID:               s.genID.Generate().String(),
		From:             userID,
		To:               creatorID,
		Amount:           req.Amount,
		ContentID:        req.ContentID,
		SubscriptionID:   req.SubscriptionID,
		TxHash:           submitted.TxHash,
		ProcessingTimeMs: submitted.ProcessingTimeMs,
		ExecutedAt:       executedAt,
		Status:           channeldomain.PaymentStatusSuccess,
		Method:           channeldomain.MethodHydra,
		HeadID:           ch.HeadID,
	}

	ch.Balance = ch.Balance.Sub(req.Amount)
	ch.Transactions = append(ch.Transactions, payment)
	ch.TransactionCount = len(ch.Transactions)
	if err := s.repo.Put(ch); err != nil {
		log.Error("payment confirmed but channel update failed", zap.String("tx_hash", submitted.TxHash), zap.Error(err))
		return channeldomain.PayResult{}, err
	}

	log.Info("payment settled",
		zap.String("payment_id", payment.ID),
		zap.String("amount", req.Amount.String()),
		zap.String("balance", ch.Balance.String()),
		zap.Int64("processing_ms", submitted.ProcessingTimeMs),
	)

	return channeldomain.PayResult{
		Payment:          payment,
		NewBalance:       ch.Balance,
		ProcessingTimeMs: submitted.ProcessingTimeMs,
		TxHash:           submitted.TxHash,
	}, nil
}

func (s *Service) CloseChannel(ctx context.Context, userID string) (channeldomain.CloseResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return channeldomain.CloseResult{}, channeldomain.ErrInvalidUser
	}

	ch, ok := s.repo.FindActiveByUser(userID)
	if !ok {
		return channeldomain.CloseResult{}, channeldomain.ErrNoOpenChannelToClose
	}

	unlock, err := s.locker.Lock(ctx, headKey(ch.HeadID))
	if err != nil {
		return channeldomain.CloseResult{}, err
	}
	defer unlock()

	ch, ok = s.repo.FindByHead(ch.HeadID)
	if !ok || !ch.Active() {
		return channeldomain.CloseResult{}, channeldomain.ErrNoOpenChannelToClose
	}

	log := logger.WithHead(logger.WithContext(ctx, s.log), ch.HeadID)

	spanCtx, span := s.startSpan(ctx, "hydra.close_head", ch.HeadID)
	closed, failure := s.transport.CloseHead(spanCtx, ch.HeadID)
	endSpan(span, failure)
	if failure != nil {
		s.transportFailure("close_head", failure)
		log.Warn("head close failed", zap.String("reason", failure.Reason))
		return channeldomain.CloseResult{}, channeldomain.CloseFailure(failure.Reason)
	}

	if remote := hydra.FromLovelace(closed.FinalBalanceLovelace); !remote.Equal(ch.Balance) {
		log.Warn("node final balance differs from channel balance",
			zap.String("node", remote.String()),
			zap.String("channel", ch.Balance.String()),
		)
	}

	ch.Settle(s.clock.Now())
	if err := s.repo.Put(ch); err != nil {
		return channeldomain.CloseResult{}, err
	}

	s.metrics.ChannelClosed(obsmetrics.CloseReasonUser)
	s.refreshOpenHeads()
	log.Info("channel closed",
		zap.String("close_tx_hash", closed.CloseTxHash),
		zap.String("final_balance", ch.FinalBalance.String()),
		zap.Int("transactions", ch.TransactionCount),
	)

	return channeldomain.CloseResult{
		HeadID:           ch.HeadID,
		CloseTxHash:      closed.CloseTxHash,
		FinalBalance:     *ch.FinalBalance,
		TransactionCount: ch.TransactionCount,
	}, nil
}

func (s *Service) ApplyEvent(ctx context.Context, event hydra.HeadEvent) bool {
	if _, ok := s.repo.FindByHead(event.HeadID); !ok {
		return false
	}

	var next channeldomain.Status
	switch event.Tag {
	case hydra.TagHeadIsOpen:
		next = channeldomain.StatusOpen
	case hydra.TagHeadIsClosed:
		next = channeldomain.StatusClosed
	case hydra.TagTxValid:
		s.log.Debug("transaction confirmed by head",
			zap.String("head_id", event.HeadID),
			zap.String("tx_hash", event.TxHash),
		)
		return false
	default:
		return false
	}

	unlock, err := s.locker.Lock(ctx, headKey(event.HeadID))
	if err != nil {
		s.log.Warn("event dropped, head lock unavailable", zap.String("head_id", event.HeadID), zap.Error(err))
		return false
	}
	defer unlock()

	ch, ok := s.repo.FindByHead(event.HeadID)
	if !ok || !ch.Status.Advances(next) {
		return false
	}
	// HeadIsOpen only applies to a channel still waiting on it
	if next == channeldomain.StatusOpen && ch.Status != channeldomain.StatusInitializing {
		return false
	}
	return s.advance(ctx, ch, next, obsmetrics.CloseReasonNode)
}

func (s *Service) Stats() channeldomain.Stats {
	return s.repo.Stats()
}

// advance moves ch forward to next and persists it. Callers hold the head lock.
func (s *Service) advance(ctx context.Context, ch *channeldomain.Channel, next channeldomain.Status, closeReason string) bool {
	log := logger.WithHead(logger.WithContext(ctx, s.log), ch.HeadID)

	if next == channeldomain.StatusClosed {
		ch.Settle(s.clock.Now())
	} else {
		ch.Status = next
	}
	if err := s.repo.Put(ch); err != nil {
		log.Error("channel transition not stored", zap.String("status", string(next)), zap.Error(err))
		return false
	}

	if next == channeldomain.StatusClosed {
		s.metrics.ChannelClosed(closeReason)
	}
	s.refreshOpenHeads()
	log.Info("channel status advanced", zap.String("status", string(next)))
	return true
}

func (s *Service) checkBalance(ctx context.Context, ch *channeldomain.Channel, remote hydra.StatusResult) {
	if ch.Status != channeldomain.StatusOpen {
		return
	}
	if node := hydra.FromLovelace(remote.BalanceLovelace); !node.Equal(ch.Balance) {
		logger.WithHead(logger.WithContext(ctx, s.log), ch.HeadID).Debug("node balance differs from channel balance",
			zap.String("node", node.String()),
			zap.String("channel", ch.Balance.String()),
		)
	}
}

func (s *Service) refreshOpenHeads() {
	s.metrics.SetOpenHeads(s.repo.Stats().Open)
}

func (s *Service) transportFailure(operation string, f *hydra.Failure) {
	kind := obsmetrics.FailureKindRejected
	switch {
	case f.Unavailable:
		kind = obsmetrics.FailureKindUnavailable
	case f.NotOpen:
		kind = obsmetrics.FailureKindNotOpen
	}
	s.metrics.TransportFailure(operation, kind)
}

func statusOf(status hydra.HeadStatus) (channeldomain.Status, bool) {
	switch status {
	case hydra.HeadInitializing:
		return channeldomain.StatusInitializing, true
	case hydra.HeadOpen:
		return channeldomain.StatusOpen, true
	case hydra.HeadClosed:
		return channeldomain.StatusClosed, true
	default:
		return "", false
	}
}
