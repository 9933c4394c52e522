package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Transaction reference prefixes
const (
	ReferencePrefixWalletDeposit  = "WLDEP"
	ReferencePrefixWithdrawal     = "WDR"
	ReferencePrefixSellerShare    = "WLSELLER"
	ReferencePrefixWalletPayment  = "WLPAY"
	ReferencePrefixGatewayPayment = "GW"
	ReferencePrefixWalletRefund   = "WLREF"
)

// External reference prefixes marking special-purpose invoices
const (
	ExternalRefWalletCharge      = "WALLET_CHARGE_"
	ExternalRefWalletChargeShort = "WCH-"
	ExternalRefWithdrawal        = "WITHDRAWAL_REQUEST:"
)

const (
	referenceTimeLayout = "20060102150405"
	referenceSuffixLen  = 6
	invoiceNumberPrefix = "INV-"
	invoiceDateLayout   = "20060102"
	invoiceSuffixLen    = 8
)

// GenerateReference builds <PREFIX><yyyyMMddHHmmss><random> for a new transaction
func GenerateReference(prefix string, now time.Time) string {
	return prefix + now.UTC().Format(referenceTimeLayout) + randomHex(referenceSuffixLen)
}

// GenerateInvoiceNumber builds INV-<yyyyMMdd>-<random>. Uniqueness is checked by the caller.
func GenerateInvoiceNumber(now time.Time) string {
	return invoiceNumberPrefix + now.UTC().Format(invoiceDateLayout) + "-" + randomHex(invoiceSuffixLen)
}

func randomHex(n int) string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(s[:n])
}

// SellerShareTag is the idempotency tag of a seller share credit for one invoice
func SellerShareTag(sellerID, invoiceID uuid.UUID) string {
	return fmt.Sprintf("SELLER_SHARE_%s_INV_%s", sellerID, invoiceID)
}

// WalletChargeTag is the idempotency tag of a wallet top-up credit
func WalletChargeTag(paymentTransactionID uuid.UUID) string {
	return fmt.Sprintf("WALLET_CHARGE_TX_%s", paymentTransactionID)
}

// WithdrawalTag is both the reference and idempotency tag of a withdrawal payout
func WithdrawalTag(withdrawalID uuid.UUID) string {
	return ExternalRefWithdrawal + withdrawalID.String()
}

// InvoicePaymentTag tags a wallet debit that pays an invoice
func InvoicePaymentTag(invoiceID uuid.UUID, reference string) string {
	return fmt.Sprintf("INVOICE_PAYMENT_%s_REF_%s", invoiceID, reference)
}

// InvoicePaymentRefundTag tags the compensating credit for a failed invoice payment
func InvoicePaymentRefundTag(invoiceID uuid.UUID, reference string) string {
	return fmt.Sprintf("INVOICE_PAYMENT_REFUND_%s_REF_%s", invoiceID, reference)
}

// NewWalletChargeExternalReference returns the external reference of a wallet top-up invoice
func NewWalletChargeExternalReference(now time.Time) string {
	return ExternalRefWalletCharge + GenerateReference(ReferencePrefixWalletDeposit, now)
}

// IsWalletChargeReference reports whether an external reference marks a wallet top-up
func IsWalletChargeReference(ref string) bool {
	upper := strings.ToUpper(ref)
	return strings.HasPrefix(upper, ExternalRefWalletCharge) || strings.HasPrefix(upper, ExternalRefWalletChargeShort)
}

// IsReservedExternalReference reports whether ref carries a prefix that only
// wallet top-ups and withdrawal payouts may use
func IsReservedExternalReference(ref string) bool {
	ref = strings.TrimSpace(ref)
	if IsWalletChargeReference(ref) {
		return true
	}
	return len(ref) >= len(ExternalRefWithdrawal) && strings.EqualFold(ref[:len(ExternalRefWithdrawal)], ExternalRefWithdrawal)
}

// ParseWithdrawalReference extracts the withdrawal request id from WITHDRAWAL_REQUEST:<id>
func ParseWithdrawalReference(ref string) (uuid.UUID, bool) {
	if len(ref) <= len(ExternalRefWithdrawal) || !strings.EqualFold(ref[:len(ExternalRefWithdrawal)], ExternalRefWithdrawal) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimSpace(ref[len(ExternalRefWithdrawal):]))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// tagSeparator splits the tags held in free-text metadata
const tagSeparator = "|"

// HasTag reports whether metadata carries tag as one whole "|"-separated token,
// so a tag ending in reference R1 never matches one ending in R10.
func HasTag(metadata, tag string) bool {
	if tag == "" {
		return false
	}
	for _, token := range strings.Split(metadata, tagSeparator) {
		if strings.TrimSpace(token) == tag {
			return true
		}
	}
	return false
}

// AppendTag appends tag to free-text metadata, separated by "|"
func AppendTag(metadata, tag string) string {
	if tag == "" || HasTag(metadata, tag) {
		return metadata
	}
	if metadata == "" {
		return tag
	}
	return metadata + tagSeparator + tag
}
