package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopledger/backend/internal/domain/shared"
	"github.com/shopledger/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormWithdrawalRequestRepository implements WithdrawalRequestRepository using GORM
type GormWithdrawalRequestRepository struct {
	db *gorm.DB
}

// NewGormWithdrawalRequestRepository creates a new GormWithdrawalRequestRepository
func NewGormWithdrawalRequestRepository(db *gorm.DB) *GormWithdrawalRequestRepository {
	return &GormWithdrawalRequestRepository{db: db}
}

// FindByID finds a withdrawal request by its ID
func (r *GormWithdrawalRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.WithdrawalRequest, error) {
	return r.findOne(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds a withdrawal request and takes a row lock (SELECT ... FOR UPDATE).
// The lock is held until the surrounding transaction ends.
func (r *GormWithdrawalRequestRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.WithdrawalRequest, error) {
	return r.findOne(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormWithdrawalRequestRepository) findOne(db *gorm.DB, id uuid.UUID) (*finance.WithdrawalRequest, error) {
	var model models.WithdrawalRequestModel
	if err := db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOwner lists the requests of a seller or user
func (r *GormWithdrawalRequestRepository) FindByOwner(ctx context.Context, owner finance.Owner, filter finance.WithdrawalRequestFilter) ([]finance.WithdrawalRequest, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = whereOwner(db, owner)
		if filter.Status != nil {
			db = db.Where("status = ?", *filter.Status)
		}
		if filter.Type != nil {
			db = db.Where("type = ?", *filter.Type)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.WithdrawalRequestModel{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	f := filter.Filter.Normalize()
	var requestModels []models.WithdrawalRequestModel
	if err := r.db.WithContext(ctx).
		Scopes(scope).
		Order(ValidateSortField(f.OrderBy, WithdrawalSortFields, "created_at") + " " + ValidateSortOrder(f.OrderDir)).
		Offset(f.Offset()).
		Limit(f.PageSize).
		Find(&requestModels).Error; err != nil {
		return nil, 0, err
	}

	requests := make([]finance.WithdrawalRequest, len(requestModels))
	for i := range requestModels {
		requests[i] = *requestModels[i].ToDomain()
	}
	return requests, total, nil
}

// SumProcessedSellerRevenue totals processed seller-revenue withdrawals of a seller
func (r *GormWithdrawalRequestRepository) SumProcessedSellerRevenue(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.WithdrawalRequestModel{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Where("owner_kind = ? AND owner_id = ? AND type = ? AND status = ?",
			finance.OwnerKindSeller, sellerID, finance.WithdrawalTypeSellerRevenue, finance.WithdrawalStatusProcessed).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// Create inserts a new withdrawal request
func (r *GormWithdrawalRequestRepository) Create(ctx context.Context, request *finance.WithdrawalRequest) error {
	model := models.WithdrawalRequestModelFromDomain(request)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create withdrawal request: %w", err)
	}
	return nil
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormWithdrawalRequestRepository) SaveWithLock(ctx context.Context, request *finance.WithdrawalRequest) error {
	now := time.Now()
	model := models.WithdrawalRequestModelFromDomain(request)

	result := r.db.WithContext(ctx).
		Model(&models.WithdrawalRequestModel{}).
		Where("id = ? AND version = ?", request.ID, request.Version).
		Updates(map[string]any{
			"status":                model.Status,
			"admin_notes":           model.AdminNotes,
			"approved_by":           model.ApprovedBy,
			"approved_at":           model.ApprovedAt,
			"rejected_by":           model.RejectedBy,
			"rejected_at":           model.RejectedAt,
			"processed_by":          model.ProcessedBy,
			"processed_at":          model.ProcessedAt,
			"wallet_transaction_id": model.WalletTransactionID,
			"invoice_id":            model.InvoiceID,
			"version":               request.Version + 1,
			"updated_at":            now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update withdrawal request: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}

	request.Version++
	request.UpdatedAt = now
	return nil
}

// Ensure GormWithdrawalRequestRepository implements WithdrawalRequestRepository
var _ finance.WithdrawalRequestRepository = (*GormWithdrawalRequestRepository)(nil)
