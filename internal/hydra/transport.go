package hydra

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type HeadStatus string

const (
	HeadInitializing HeadStatus = "Initializing"
	HeadOpen         HeadStatus = "Open"
	HeadClosed       HeadStatus = "Closed"
	HeadUnknown      HeadStatus = "unknown"
)

// LovelacePerAda is the wire conversion factor; the node protocol counts lovelace.
const LovelacePerAda = 1_000_000

var lovelaceFactor = decimal.NewFromInt(LovelacePerAda)

func ToLovelace(ada decimal.Decimal) int64 {
	return ada.Mul(lovelaceFactor).Round(0).IntPart()
}

// WholeLovelace reports whether ada converts to lovelace without rounding.
func WholeLovelace(ada decimal.Decimal) bool {
	return ada.Equal(ada.Truncate(6))
}

func FromLovelace(lovelace int64) decimal.Decimal {
	return decimal.NewFromInt(lovelace).Div(lovelaceFactor)
}

// Failure is the value returned when the node refused or could not be reached.
type Failure struct {
	Reason string
	// NotOpen marks a rejection because the head is not in the Open state.
	NotOpen bool
	// NotFound marks an unknown headId.
	NotFound bool
	// Unavailable marks a transport-level failure (connection, timeout, 5xx).
	Unavailable bool
}

func (f *Failure) String() string {
	if f == nil {
		return ""
	}
	return f.Reason
}

func Unavailable(reason string) *Failure {
	return &Failure{Reason: reason, Unavailable: true}
}

type InitResult struct {
	HeadID string
	Status HeadStatus
}

type StatusResult struct {
	HeadID           string
	Status           HeadStatus
	Parties          []string
	BalanceLovelace  int64
	TransactionCount int
	CreatedAt        time.Time
	OpenedAt         *time.Time
}

type TxMetadata struct {
	ContentID      string    `json:"contentId"`
	SubscriptionID string    `json:"subscriptionId,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type Tx struct {
	From           string     `json:"from"`
	To             string     `json:"to"`
	AmountLovelace int64      `json:"amount"`
	Metadata       TxMetadata `json:"metadata"`
}

type SubmitResult struct {
	TxHash           string
	ConfirmedAt      time.Time
	ProcessingTimeMs int64
}

type CloseResult struct {
	CloseTxHash          string
	FinalBalanceLovelace int64
	TransactionCount     int
}

// Transport is the only path to the head node. Ordinary node failures come
// back as *Failure and never as panics or Go errors.
type Transport interface {
	InitHead(ctx context.Context, parties []string, depositLovelace int64) (InitResult, *Failure)
	GetStatus(ctx context.Context, headID string) (StatusResult, *Failure)
	SubmitTransaction(ctx context.Context, headID string, tx Tx) (SubmitResult, *Failure)
	CloseHead(ctx context.Context, headID string) (CloseResult, *Failure)
	// Subscribe asks the transport to forward events for headID onto the bus.
	Subscribe(ctx context.Context, headID string) error
	HealthCheck(ctx context.Context) bool
}
