package acl

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopspring/decimal"
)

// SellerProfile is the ledger's view of a seller
type SellerProfile struct {
	SellerID                      uuid.UUID
	SellerSharePercentageOverride *decimal.Decimal
}

// PaymentSettings is the ledger's view of the online gateway configuration
type PaymentSettings struct {
	IsActive          bool
	GatewayName       string
	GatewayMerchantID string
}

// ProductSellerLookup resolves which seller sells each product
type ProductSellerLookup interface {
	// GetSellerIDs returns productID -> sellerID. Products without a seller are absent.
	GetSellerIDs(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
}

// SellerProfileLookup loads seller profiles
type SellerProfileLookup interface {
	// GetByUserID returns the profile of a seller, or nil when none exists
	GetByUserID(ctx context.Context, sellerID uuid.UUID) (*SellerProfile, error)
}

// SellerRevenueQuery totals a seller's revenue to date
type SellerRevenueQuery interface {
	GetTotalRevenue(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, error)
}

// SellerWithdrawalQuery totals what a seller has already withdrawn
type SellerWithdrawalQuery interface {
	GetTotalWithdrawn(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, error)
}

// FinancialSettingsQuery loads the platform revenue split
type FinancialSettingsQuery interface {
	// GetFinancialSettings returns nil when the settings were never configured
	GetFinancialSettings(ctx context.Context) (*finance.FinancialSettings, error)
}

// PaymentSettingsQuery loads the payment gateway settings
type PaymentSettingsQuery interface {
	// GetPaymentSettings returns nil when no gateway is configured
	GetPaymentSettings(ctx context.Context) (*PaymentSettings, error)
}
