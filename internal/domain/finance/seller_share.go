package finance

import (
	"github.com/shopledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// CommissionMethod selects how the platform commission relates to the seller share
type CommissionMethod string

const (
	// CommissionMethodComplementary pays the seller share%; the platform keeps the remainder
	CommissionMethodComplementary CommissionMethod = "COMPLEMENTARY"
	// CommissionMethodDeductFromSeller pays share% minus commission%
	CommissionMethodDeductFromSeller CommissionMethod = "DEDUCT_FROM_SELLER"
)

// IsValid checks if the commission method is valid
func (m CommissionMethod) IsValid() bool {
	return m == CommissionMethodComplementary || m == CommissionMethodDeductFromSeller
}

// FinancialSettings are the platform-wide revenue split settings
type FinancialSettings struct {
	DefaultSellerSharePercentage decimal.Decimal  `json:"default_seller_share_percentage"`
	PlatformCommissionPercentage decimal.Decimal  `json:"platform_commission_percentage"`
	CommissionMethod             CommissionMethod `json:"commission_method"`
}

// SellerShareInput is everything the calculator needs for one seller
type SellerShareInput struct {
	Items                   []InvoiceItem
	OverrideSharePercentage *decimal.Decimal
	Settings                FinancialSettings
}

// SellerShareSkipReason explains why no payout was computed
type SellerShareSkipReason string

const (
	SkipReasonNoSharePercentage SellerShareSkipReason = "NO_SHARE_PERCENTAGE"
	SkipReasonNonPositiveShare  SellerShareSkipReason = "NON_POSITIVE_SHARE"
)

// SellerShareResult is the outcome of CalculateSellerShare
type SellerShareResult struct {
	TotalAmount        decimal.Decimal
	SharePercentage    decimal.Decimal
	SellerShare        decimal.Decimal
	PlatformCommission decimal.Decimal
	Skipped            bool
	SkipReason         SellerShareSkipReason
}

// CalculateSellerShare computes a seller payout from the seller's invoice lines.
// Amounts are rounded half away from zero to two places. A non-positive share
// percentage or payout is reported as skipped, never as an error.
func CalculateSellerShare(in SellerShareInput) SellerShareResult {
	total := decimal.Zero
	for _, item := range in.Items {
		total = total.Add(item.Total())
	}
	result := SellerShareResult{TotalAmount: total}

	sharePct := in.Settings.DefaultSellerSharePercentage
	if in.OverrideSharePercentage != nil && in.OverrideSharePercentage.IsPositive() {
		sharePct = *in.OverrideSharePercentage
	}
	result.SharePercentage = sharePct
	if !sharePct.IsPositive() {
		result.Skipped = true
		result.SkipReason = SkipReasonNoSharePercentage
		return result
	}

	hundred := decimal.NewFromInt(100)
	share := total.Mul(sharePct).Div(hundred)
	if in.Settings.CommissionMethod == CommissionMethodDeductFromSeller {
		share = share.Sub(total.Mul(in.Settings.PlatformCommissionPercentage).Div(hundred))
	}
	share = valueobject.RoundAmount(share)

	if !share.IsPositive() {
		result.Skipped = true
		result.SkipReason = SkipReasonNonPositiveShare
		return result
	}

	result.SellerShare = share
	result.PlatformCommission = total.Sub(share)
	return result
}
