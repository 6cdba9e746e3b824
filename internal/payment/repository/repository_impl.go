package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/hydrapay/internal/payment/domain"
	"github.com/smallbiznis/hydrapay/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Migrate(ctx context.Context, conn *gorm.DB) error {
	return conn.WithContext(ctx).AutoMigrate(&domain.LedgerEntry{})
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, entry *domain.LedgerEntry) error {
	err := conn.WithContext(ctx).Create(entry).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrDuplicatePayment
	}
	return err
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.LedgerEntry, error) {
	var item domain.LedgerEntry
	err := conn.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// ListByUser returns the newest entries first; ties go to the later insert.
func (r *repo) ListByUser(ctx context.Context, conn *gorm.DB, userID string, limit int) ([]domain.LedgerEntry, error) {
	var items []domain.LedgerEntry
	stmt := conn.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("executed_at DESC").
		Order("id DESC")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
