package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Migrate(ctx context.Context, db *gorm.DB) error
	Insert(ctx context.Context, db *gorm.DB, entry *LedgerEntry) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*LedgerEntry, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]LedgerEntry, error)
}
