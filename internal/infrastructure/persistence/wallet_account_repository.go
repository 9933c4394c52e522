package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopledger/backend/internal/domain/shared"
	"github.com/shopledger/backend/internal/domain/shared/valueobject"
	"github.com/shopledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormWalletAccountRepository implements WalletAccountRepository using GORM
type GormWalletAccountRepository struct {
	db *gorm.DB
}

// NewGormWalletAccountRepository creates a new GormWalletAccountRepository
func NewGormWalletAccountRepository(db *gorm.DB) *GormWalletAccountRepository {
	return &GormWalletAccountRepository{db: db}
}

func (r *GormWalletAccountRepository) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Transactions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
}

// FindByID finds a wallet account by its ID
func (r *GormWalletAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.WalletAccount, error) {
	var model models.WalletAccountModel
	if err := r.preloaded(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOwner finds the wallet of an owner in a currency
func (r *GormWalletAccountRepository) FindByOwner(ctx context.Context, owner finance.Owner, currency valueobject.Currency) (*finance.WalletAccount, error) {
	var model models.WalletAccountModel
	if err := r.preloaded(ctx).
		Where("owner_kind = ? AND owner_id = ? AND currency = ?", owner.Kind, owner.ID, currency).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new wallet account.
// Losing the (owner, currency) unique index race is reported as a concurrency conflict
// so the caller reloads the winner's account.
func (r *GormWalletAccountRepository) Create(ctx context.Context, account *finance.WalletAccount) error {
	model := models.WalletAccountModelFromDomain(account)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrConcurrencyConflict
		}
		return fmt.Errorf("failed to create wallet account: %w", err)
	}
	return nil
}

// SaveWithLock saves with optimistic locking (version check).
// Transactions are upserted by id, the log is append-only.
func (r *GormWalletAccountRepository) SaveWithLock(ctx context.Context, account *finance.WalletAccount) error {
	now := time.Now()
	model := models.WalletAccountModelFromDomain(account)
	db := r.db.WithContext(ctx)

	result := db.Model(&models.WalletAccountModel{}).
		Where("id = ? AND version = ?", account.ID, account.Version).
		Updates(map[string]any{
			"is_locked":   model.IsLocked,
			"lock_reason": model.LockReason,
			"version":     account.Version + 1,
			"updated_at":  now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update wallet account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}

	if len(model.Transactions) > 0 {
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "description", "metadata"}),
		}).Create(&model.Transactions).Error; err != nil {
			return fmt.Errorf("failed to save wallet transactions: %w", err)
		}
	}

	account.Version++
	account.UpdatedAt = now
	return nil
}

// Ensure GormWalletAccountRepository implements WalletAccountRepository
var _ finance.WalletAccountRepository = (*GormWalletAccountRepository)(nil)
