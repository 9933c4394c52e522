package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopledger/backend/internal/domain/finance/acl"
	"github.com/shopledger/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Read-side adapters for data the ledger consumes but does not own.
// Each one reads a narrow projection of another context's table.

// financialSettingsRow projects the platform-wide revenue split settings
type financialSettingsRow struct {
	ID                           int
	DefaultSellerSharePercentage decimal.Decimal
	PlatformCommissionPercentage decimal.Decimal
	CommissionMethod             finance.CommissionMethod
}

func (financialSettingsRow) TableName() string { return "financial_settings" }

// paymentSettingsRow projects the online gateway configuration
type paymentSettingsRow struct {
	ID                int
	IsActive          bool
	GatewayName       string
	GatewayMerchantID string
}

func (paymentSettingsRow) TableName() string { return "payment_settings" }

// sellerProfileRow projects a seller profile
type sellerProfileRow struct {
	UserID                        uuid.UUID
	SellerSharePercentageOverride *decimal.Decimal
}

func (sellerProfileRow) TableName() string { return "seller_profiles" }

// catalogProductRow projects the seller of a catalog product
type catalogProductRow struct {
	ID       uuid.UUID
	SellerID *uuid.UUID
}

func (catalogProductRow) TableName() string { return "products" }

// GormSettingsQuery implements FinancialSettingsQuery and PaymentSettingsQuery.
// Both settings tables hold at most one row.
type GormSettingsQuery struct {
	db *gorm.DB
}

// NewGormSettingsQuery creates a new GormSettingsQuery
func NewGormSettingsQuery(db *gorm.DB) *GormSettingsQuery {
	return &GormSettingsQuery{db: db}
}

// GetFinancialSettings returns nil when the settings were never configured
func (q *GormSettingsQuery) GetFinancialSettings(ctx context.Context) (*finance.FinancialSettings, error) {
	var row financialSettingsRow
	if err := q.db.WithContext(ctx).Order("id ASC").Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &finance.FinancialSettings{
		DefaultSellerSharePercentage: row.DefaultSellerSharePercentage,
		PlatformCommissionPercentage: row.PlatformCommissionPercentage,
		CommissionMethod:             row.CommissionMethod,
	}, nil
}

// GetPaymentSettings returns nil when no gateway is configured
func (q *GormSettingsQuery) GetPaymentSettings(ctx context.Context) (*acl.PaymentSettings, error) {
	var row paymentSettingsRow
	if err := q.db.WithContext(ctx).Order("id ASC").Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &acl.PaymentSettings{
		IsActive:          row.IsActive,
		GatewayName:       row.GatewayName,
		GatewayMerchantID: row.GatewayMerchantID,
	}, nil
}

// GormSellerLookup implements SellerProfileLookup and ProductSellerLookup
type GormSellerLookup struct {
	db *gorm.DB
}

// NewGormSellerLookup creates a new GormSellerLookup
func NewGormSellerLookup(db *gorm.DB) *GormSellerLookup {
	return &GormSellerLookup{db: db}
}

// GetByUserID returns the profile of a seller, or nil when none exists
func (l *GormSellerLookup) GetByUserID(ctx context.Context, sellerID uuid.UUID) (*acl.SellerProfile, error) {
	var row sellerProfileRow
	if err := l.db.WithContext(ctx).Where("user_id = ?", sellerID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &acl.SellerProfile{
		SellerID:                      row.UserID,
		SellerSharePercentageOverride: row.SellerSharePercentageOverride,
	}, nil
}

// GetSellerIDs returns productID -> sellerID. Products without a seller are absent.
func (l *GormSellerLookup) GetSellerIDs(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	sellers := make(map[uuid.UUID]uuid.UUID, len(productIDs))
	if len(productIDs) == 0 {
		return sellers, nil
	}

	var rows []catalogProductRow
	if err := l.db.WithContext(ctx).
		Where("id IN ? AND seller_id IS NOT NULL", productIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.SellerID != nil {
			sellers[row.ID] = *row.SellerID
		}
	}
	return sellers, nil
}

// GormSellerRevenueQuery implements SellerRevenueQuery and SellerWithdrawalQuery.
// Revenue is every succeeded seller-share credit booked to the seller's wallets;
// withdrawn is every processed seller-revenue withdrawal.
type GormSellerRevenueQuery struct {
	db *gorm.DB
}

// NewGormSellerRevenueQuery creates a new GormSellerRevenueQuery
func NewGormSellerRevenueQuery(db *gorm.DB) *GormSellerRevenueQuery {
	return &GormSellerRevenueQuery{db: db}
}

// GetTotalRevenue totals a seller's revenue to date
func (q *GormSellerRevenueQuery) GetTotalRevenue(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := q.db.WithContext(ctx).
		Model(&models.WalletTransactionModel{}).
		Select("COALESCE(SUM(wallet_transactions.amount), 0) as total").
		Joins("JOIN wallet_accounts ON wallet_accounts.id = wallet_transactions.wallet_account_id").
		Where("wallet_accounts.owner_kind = ? AND wallet_accounts.owner_id = ?", finance.OwnerKindSeller, sellerID).
		Where("wallet_transactions.type = ? AND wallet_transactions.status = ?",
			finance.WalletTransactionTypeCredit, finance.TransactionStatusSucceeded).
		Where("wallet_transactions.reference LIKE ?", finance.ReferencePrefixSellerShare+"%").
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// GetTotalWithdrawn totals what a seller has already withdrawn
func (q *GormSellerRevenueQuery) GetTotalWithdrawn(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, error) {
	return NewGormWithdrawalRequestRepository(q.db).SumProcessedSellerRevenue(ctx, sellerID)
}

var (
	_ acl.FinancialSettingsQuery = (*GormSettingsQuery)(nil)
	_ acl.PaymentSettingsQuery   = (*GormSettingsQuery)(nil)
	_ acl.SellerProfileLookup    = (*GormSellerLookup)(nil)
	_ acl.ProductSellerLookup    = (*GormSellerLookup)(nil)
	_ acl.SellerRevenueQuery     = (*GormSellerRevenueQuery)(nil)
	_ acl.SellerWithdrawalQuery  = (*GormSellerRevenueQuery)(nil)
)
