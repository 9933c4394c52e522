package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopledger/backend/internal/domain/shared"
	"github.com/shopledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

func (r *GormInvoiceRepository) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Transactions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
}

// FindByID finds an invoice by its ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Invoice, error) {
	var model models.InvoiceModel
	if err := r.preloaded(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber finds an invoice by its number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, invoiceNumber string) (*finance.Invoice, error) {
	var model models.InvoiceModel
	if err := r.preloaded(ctx).
		Where("invoice_number = ?", strings.TrimSpace(invoiceNumber)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByTransactionReference finds the invoice owning a payment transaction reference.
// Matching is case-insensitive.
func (r *GormInvoiceRepository) FindByTransactionReference(ctx context.Context, reference string) (*finance.Invoice, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, shared.ErrNotFound
	}

	var invoiceID uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.PaymentTransactionModel{}).
		Select("invoice_id").
		Where("LOWER(reference) = ?", strings.ToLower(reference)).
		Limit(1).
		Scan(&invoiceID).Error
	if err != nil {
		return nil, err
	}
	if invoiceID == uuid.Nil {
		return nil, shared.ErrNotFound
	}
	return r.FindByID(ctx, invoiceID)
}

// FindByOwner lists invoices of an owner, newest first by default
func (r *GormInvoiceRepository) FindByOwner(ctx context.Context, owner finance.Owner, filter finance.InvoiceFilter) ([]finance.Invoice, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = whereOwner(db, owner)
		if filter.Status != nil {
			db = db.Where("status = ?", *filter.Status)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	f := filter.Filter.Normalize()
	var invoiceModels []models.InvoiceModel
	if err := r.preloaded(ctx).
		Scopes(scope).
		Order(ValidateSortField(f.OrderBy, InvoiceSortFields, "created_at") + " " + ValidateSortOrder(f.OrderDir)).
		Offset(f.Offset()).
		Limit(f.PageSize).
		Find(&invoiceModels).Error; err != nil {
		return nil, 0, err
	}

	invoices := make([]finance.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = *invoiceModels[i].ToDomain()
	}
	return invoices, total, nil
}

// ExistsByNumber checks if an invoice number is taken
func (r *GormInvoiceRepository) ExistsByNumber(ctx context.Context, invoiceNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("invoice_number = ?", strings.TrimSpace(invoiceNumber)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a new invoice with its items and transactions.
// A taken invoice number is reported as shared.ErrAlreadyExists.
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *finance.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewDomainError(shared.CodeAlreadyExists,
				fmt.Sprintf("Invoice number %s is already taken", invoice.InvoiceNumber))
		}
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

// SaveWithLock saves with optimistic locking (version check).
// Items and transactions are upserted by id; neither is ever removed from an invoice.
// On success the in-memory version is bumped to match the stored row.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *finance.Invoice) error {
	now := time.Now()
	model := models.InvoiceModelFromDomain(invoice)
	db := r.db.WithContext(ctx)

	result := db.Model(&models.InvoiceModel{}).
		Where("id = ? AND version = ?", invoice.ID, invoice.Version).
		Updates(map[string]any{
			"title":              model.Title,
			"description":        model.Description,
			"due_date":           model.DueDate,
			"tax_amount":         model.TaxAmount,
			"adjustment_amount":  model.AdjustmentAmount,
			"external_reference": model.ExternalReference,
			"status":             model.Status,
			"shipping_address":   model.ShippingAddress,
			"paid_at":            model.PaidAt,
			"cancelled_at":       model.CancelledAt,
			"cancel_reason":      model.CancelReason,
			"version":            invoice.Version + 1,
			"updated_at":         now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update invoice: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}

	if len(model.Items) > 0 {
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "quantity", "unit_price", "discount", "attributes"}),
		}).Create(&model.Items).Error; err != nil {
			return fmt.Errorf("failed to save invoice items: %w", err)
		}
	}
	if len(model.Transactions) > 0 {
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "status", "description", "metadata", "occurred_at"}),
		}).Create(&model.Transactions).Error; err != nil {
			return fmt.Errorf("failed to save payment transactions: %w", err)
		}
	}

	invoice.Version++
	invoice.UpdatedAt = now
	return nil
}

// whereOwner scopes a query to the owner columns
func whereOwner(query *gorm.DB, owner finance.Owner) *gorm.DB {
	if owner.IsPlatform() {
		return query.Where("owner_kind = ? AND owner_id IS NULL", owner.Kind)
	}
	return query.Where("owner_kind = ? AND owner_id = ?", owner.Kind, owner.ID)
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ finance.InvoiceRepository = (*GormInvoiceRepository)(nil)
