package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusInitializing Status = "initializing"
	StatusOpen         Status = "open"
	StatusClosed       Status = "closed"
)

// rank orders statuses along the only allowed direction of travel.
func (s Status) rank() int {
	switch s {
	case StatusInitializing:
		return 1
	case StatusOpen:
		return 2
	case StatusClosed:
		return 3
	default:
		return 0
	}
}

// Advances reports whether moving from s to next is a forward transition.
func (s Status) Advances(next Status) bool {
	return next.rank() > s.rank()
}

type PaymentStatus string

const (
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

type PaymentMethod string

const (
	MethodHydra PaymentMethod = "hydra"
	MethodL1    PaymentMethod = "l1"
)

// Payment is a single settled transfer. Hydra payments live inside their
// channel; L1 payments are kept in the payment ledger.
type Payment struct {
	ID               string           `json:"id"`
	From             string           `json:"userId"`
	To               string           `json:"creatorId"`
	Amount           decimal.Decimal  `json:"amount"`
	ContentID        string           `json:"contentId"`
	SubscriptionID   string           `json:"subscriptionId,omitempty"`
	TxHash           string           `json:"txHash"`
	ProcessingTimeMs int64            `json:"processingTimeMs"`
	ExecutedAt       time.Time        `json:"executedAt"`
	Status           PaymentStatus    `json:"status"`
	Method           PaymentMethod    `json:"method"`
	HeadID           string           `json:"headId,omitempty"`
	Fee              *decimal.Decimal `json:"fee,omitempty"`
}

// Channel is one Layer-2 head owned by a single user.
type Channel struct {
	HeadID           string
	UserID           string
	Status           Status
	Balance          decimal.Decimal
	InitialBalance   decimal.Decimal
	TransactionCount int
	Transactions     []Payment
	OpenedAt         time.Time
	ClosedAt         *time.Time
	FinalBalance     *decimal.Decimal
}

func (c *Channel) Active() bool {
	return c != nil && c.Status != StatusClosed
}

// Clone returns a deep copy so callers never share the stored slices.
func (c *Channel) Clone() *Channel {
	if c == nil {
		return nil
	}
	out := *c
	out.Transactions = append([]Payment(nil), c.Transactions...)
	if c.ClosedAt != nil {
		closedAt := *c.ClosedAt
		out.ClosedAt = &closedAt
	}
	if c.FinalBalance != nil {
		final := *c.FinalBalance
		out.FinalBalance = &final
	}
	return &out
}

// Settle flips the channel to closed and captures the final balance together.
func (c *Channel) Settle(at time.Time) {
	final := c.Balance
	c.Status = StatusClosed
	c.ClosedAt = &at
	c.FinalBalance = &final
}

type OpenResult struct {
	HeadID               string `json:"headId"`
	Status               Status `json:"status"`
	EstimatedTimeSeconds int    `json:"estimatedTime"`
	AlreadyExisted       bool   `json:"alreadyExisted"`
}

type StatusSnapshot struct {
	HasChannel       bool             `json:"hasChannel"`
	HeadID           string           `json:"headId,omitempty"`
	Status           Status           `json:"status,omitempty"`
	Balance          *decimal.Decimal `json:"balance,omitempty"`
	InitialBalance   *decimal.Decimal `json:"initialBalance,omitempty"`
	TransactionCount int              `json:"transactionCount"`
	OpenedAt         *time.Time       `json:"openedAt,omitempty"`
	ClosedAt         *time.Time       `json:"closedAt,omitempty"`
	FinalBalance     *decimal.Decimal `json:"finalBalance,omitempty"`
	Transactions     []Payment        `json:"transactions,omitempty"`
}

func SnapshotOf(c *Channel) StatusSnapshot {
	if c == nil {
		return StatusSnapshot{HasChannel: false}
	}
	balance := c.Balance
	initial := c.InitialBalance
	openedAt := c.OpenedAt
	snap := StatusSnapshot{
		HasChannel:       true,
		HeadID:           c.HeadID,
		Status:           c.Status,
		Balance:          &balance,
		InitialBalance:   &initial,
		TransactionCount: c.TransactionCount,
		OpenedAt:         &openedAt,
		Transactions:     append([]Payment{}, c.Transactions...),
	}
	if c.ClosedAt != nil {
		closedAt := *c.ClosedAt
		snap.ClosedAt = &closedAt
	}
	if c.FinalBalance != nil {
		final := *c.FinalBalance
		snap.FinalBalance = &final
	}
	return snap
}

type PayRequest struct {
	UserID         string
	CreatorID      string
	Amount         decimal.Decimal
	ContentID      string
	SubscriptionID string
}

type PayResult struct {
	Payment          Payment         `json:"payment"`
	NewBalance       decimal.Decimal `json:"newBalance"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
	TxHash           string          `json:"txHash"`
}

type CloseResult struct {
	HeadID           string          `json:"headId"`
	CloseTxHash      string          `json:"closeTxHash"`
	FinalBalance     decimal.Decimal `json:"finalBalance"`
	TransactionCount int             `json:"transactionCount"`
}

// Stats summarizes the store for health reporting.
type Stats struct {
	Total int
	Open  int
}
