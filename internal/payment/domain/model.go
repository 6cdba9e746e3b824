package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	channeldomain "github.com/smallbiznis/hydrapay/internal/channel/domain"
	"gorm.io/datatypes"
)

// LedgerEntry is one settled L1 payment.
type LedgerEntry struct {
	ID               snowflake.ID    `json:"id" gorm:"primaryKey"`
	UserID           string          `json:"user_id" gorm:"type:text;not null;index:idx_l1_payments_user_executed,priority:1"`
	CreatorID        string          `json:"creator_id" gorm:"type:text;not null"`
	Amount           decimal.Decimal `json:"amount" gorm:"type:numeric(20,6);not null"`
	Fee              decimal.Decimal `json:"fee" gorm:"type:numeric(20,6);not null"`
	TxHash           string          `json:"tx_hash" gorm:"type:text;not null;uniqueIndex"`
	Status           string          `json:"status" gorm:"type:text;not null"`
	ProcessingTimeMs int64           `json:"processing_time_ms" gorm:"not null"`
	Metadata         datatypes.JSON  `json:"metadata"`
	ExecutedAt       time.Time       `json:"executed_at" gorm:"not null;index:idx_l1_payments_user_executed,priority:2"`
}

func (LedgerEntry) TableName() string { return "l1_payments" }

// Metadata is what the ledger keeps about the paid content.
type Metadata struct {
	ContentID      string `json:"contentId,omitempty"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
}

func EncodeMetadata(m Metadata) datatypes.JSON {
	b, _ := json.Marshal(m)
	return datatypes.JSON(b)
}

func (e LedgerEntry) DecodeMetadata() Metadata {
	var m Metadata
	if len(e.Metadata) > 0 {
		_ = json.Unmarshal(e.Metadata, &m)
	}
	return m
}

// Payment renders the entry in the shape shared with channel payments.
func (e LedgerEntry) Payment() channeldomain.Payment {
	meta := e.DecodeMetadata()
	fee := e.Fee
	return channeldomain.Payment{
		ID:               e.ID.String(),
		From:             e.UserID,
		To:               e.CreatorID,
		Amount:           e.Amount,
		ContentID:        meta.ContentID,
		SubscriptionID:   meta.SubscriptionID,
		TxHash:           e.TxHash,
		ProcessingTimeMs: e.ProcessingTimeMs,
		ExecutedAt:       e.ExecutedAt,
		Status:           channeldomain.PaymentStatus(e.Status),
		Method:           channeldomain.MethodL1,
		Fee:              &fee,
	}
}
