package service

import (
	"context"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	channeldomain "github.com/smallbiznis/hydrapay/internal/channel/domain"
	paymentdomain "github.com/smallbiznis/hydrapay/internal/payment/domain"
)

// GetPaymentHistory merges the user's current channel transactions with the
// L1 ledger, newest first.
func (s *Service) GetPaymentHistory(ctx context.Context, userID string, limit int) paymentdomain.Result[paymentdomain.History] {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return failure[paymentdomain.History](s.describe(channeldomain.ErrInvalidUser))
	}
	if limit <= 0 {
		limit = s.policy.Get().HistoryLimit
	}

	var payments []channeldomain.Payment
	if ch, found := s.channelRepo.FindAnyByUser(userID); found {
		payments = append(payments, ch.Transactions...)
	}

	entries, err := s.repo.ListByUser(ctx, s.db, userID, limit)
	if err != nil {
		return failure[paymentdomain.History](s.describe(err))
	}
	for _, e := range entries {
		payments = append(payments, e.Payment())
	}

	sortNewestFirst(payments)
	if len(payments) > limit {
		payments = payments[:limit]
	}
	if payments == nil {
		payments = []channeldomain.Payment{}
	}
	return succeed(paymentdomain.History{Payments: payments, Total: len(payments)})
}

// GetPayment looks in the channel store first, then the ledger.
func (s *Service) GetPayment(ctx context.Context, paymentID string) paymentdomain.Result[channeldomain.Payment] {
	paymentID = strings.TrimSpace(paymentID)
	if p, found := s.channelRepo.FindPayment(paymentID); found {
		return succeed(p)
	}

	id, err := snowflake.ParseString(paymentID)
	if err != nil {
		return failure[channeldomain.Payment](s.describe(channeldomain.ErrPaymentNotFound))
	}
	entry, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return failure[channeldomain.Payment](s.describe(err))
	}
	if entry == nil {
		return failure[channeldomain.Payment](s.describe(channeldomain.ErrPaymentNotFound))
	}
	return succeed(entry.Payment())
}

// sortNewestFirst orders by execution time, breaking ties with the snowflake
// id so the later insert wins.
func sortNewestFirst(payments []channeldomain.Payment) {
	sort.SliceStable(payments, func(i, j int) bool {
		a, b := payments[i], payments[j]
		if !a.ExecutedAt.Equal(b.ExecutedAt) {
			return a.ExecutedAt.After(b.ExecutedAt)
		}
		return idOrder(a.ID) > idOrder(b.ID)
	})
}

func idOrder(id string) int64 {
	parsed, err := snowflake.ParseString(id)
	if err != nil {
		return 0
	}
	return parsed.Int64()
}
