package finance

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopledger/backend/internal/domain/shared"
	"github.com/shopledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pendingGatewayPayment records a pending gateway transaction on a fresh invoice
func (f *ledgerFixture) pendingGatewayPayment(t *testing.T, total, amount, tracking string) *finance.Invoice {
	t.Helper()
	inv := f.seedInvoice(finance.UserOwner(uuid.New()), total)
	_, err := f.invoices.SubmitTransaction(context.Background(), inv.ID, SubmitTransactionRequest{
		Amount:    decimal.RequireFromString(amount),
		Method:    finance.PaymentMethodOnlineGateway,
		Status:    finance.TransactionStatusPending,
		Reference: tracking,
	})
	require.NoError(t, err)
	return inv
}

func TestPaymentVerificationService_VerifyPaymentTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("confirms the pending transaction", func(t *testing.T) {
		f := newLedgerFixture()
		inv := f.pendingGatewayPayment(t, "250", "250", "GW-1001")

		result, err := f.verification.VerifyPaymentTransaction(ctx, VerifyPaymentRequest{
			TrackingNumber:  "GW-1001",
			TransactionCode: "A1B2",
			PaidAmount:      decimal.NewFromInt(250),
		})
		require.NoError(t, err)

		assert.Equal(t, VerificationSucceeded, result.Outcome)
		assert.Equal(t, inv.ID, result.InvoiceID)
		assert.Equal(t, finance.InvoiceStatusPaid, result.InvoiceStatus)
		assert.True(t, result.ConfirmedAmount.Equal(decimal.NewFromInt(250)))

		stored := f.invoiceRepo.get(inv.ID)
		tx := stored.FindTransactionByReference("GW-1001")
		assert.Equal(t, finance.TransactionStatusSucceeded, tx.Status)
		assert.Contains(t, tx.Metadata, "GATEWAY_TX_A1B2")
		assert.Len(t, f.publisher.ofType(finance.EventTypeInvoicePaid), 1)
	})

	t.Run("non-positive amount is clamped to the outstanding amount", func(t *testing.T) {
		f := newLedgerFixture()
		f.pendingGatewayPayment(t, "250", "100", "GW-1")

		result, err := f.verification.VerifyPaymentTransaction(ctx, VerifyPaymentRequest{
			TrackingNumber:  "GW-1",
			TransactionCode: "X",
		})
		require.NoError(t, err)
		assert.True(t, result.ConfirmedAmount.Equal(decimal.NewFromInt(250)))
		assert.Equal(t, finance.InvoiceStatusPaid, result.InvoiceStatus)
	})

	t.Run("overpayment is clamped to the outstanding amount", func(t *testing.T) {
		f := newLedgerFixture()
		f.pendingGatewayPayment(t, "250", "250", "GW-1")

		result, err := f.verification.VerifyPaymentTransaction(ctx, VerifyPaymentRequest{
			TrackingNumber:  "GW-1",
			TransactionCode: "X",
			PaidAmount:      decimal.NewFromInt(900),
		})
		require.NoError(t, err)
		assert.True(t, result.ConfirmedAmount.Equal(decimal.NewFromInt(250)))
	})

	t.Run("partial amount leaves the invoice partially paid", func(t *testing.T) {
		f := newLedgerFixture()
		f.pendingGatewayPayment(t, "250", "250", "GW-1")

		result, err := f.verification.VerifyPaymentTransaction(ctx, VerifyPaymentRequest{
			TrackingNumber:  "GW-1",
			TransactionCode: "X",
			PaidAmount:      decimal.NewFromInt(100),
		})
		require.NoError(t, err)
		assert.Equal(t, finance.InvoiceStatusPartiallyPaid, result.InvoiceStatus)
		assert.Empty(t, f.publisher.ofType(finance.EventTypeInvoicePaid))
	})

	t.Run("replayed callback is a duplicate", func(t *testing.T) {
		f := newLedgerFixture()
		f.pendingGatewayPayment(t, "250", "250", "GW-1")
		req := VerifyPaymentRequest{TrackingNumber: "GW-1", TransactionCode: "X", PaidAmount: decimal.NewFromInt(250)}

		_, err := f.verification.VerifyPaymentTransaction(ctx, req)
		require.NoError(t, err)
		saves := f.invoiceRepo.SaveCalls()

		req.TrackingNumber = "gw-1"
		result, err := f.verification.VerifyPaymentTransaction(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, VerificationDuplicate, result.Outcome)
		assert.Equal(t, saves, f.invoiceRepo.SaveCalls())
	})

	t.Run("second code for a verified transaction is already processed", func(t *testing.T) {
		f := newLedgerFixture()
		f.pendingGatewayPayment(t, "250", "250", "GW-1")

		_, err := f.verification.VerifyPaymentTransaction(ctx, VerifyPaymentRequest{TrackingNumber: "GW-1", TransactionCode: "X"})
		require.NoError(t, err)

		result, err := f.verification.VerifyPaymentTransaction(ctx, VerifyPaymentRequest{TrackingNumber: "GW-1", TransactionCode: "Y"})
		require.NoError(t, err)
		assert.Equal(t, VerificationAlreadyProcessed, result.Outcome)
		assert.True(t, result.ConfirmedAmount.Equal(decimal.NewFromInt(250)))
		assert.Len(t, f.publisher.ofType(finance.EventTypeInvoicePaid), 1)
	})

	t.Run("nothing outstanding is refused and the callback released", func(t *testing.T) {
		f := newLedgerFixture()
		inv := f.pendingGatewayPayment(t, "250", "250", "GW-1")
		_, err := f.invoices.SubmitTransaction(ctx, inv.ID, SubmitTransactionRequest{
			Amount:    decimal.NewFromInt(250),
			Method:    finance.PaymentMethodWallet,
			Status:    finance.TransactionStatusSucceeded,
			Reference: "WLPAY-1",
		})
		require.NoError(t, err)

		req := VerifyPaymentRequest{TrackingNumber: "GW-1", TransactionCode: "X"}
		_, err = f.verification.VerifyPaymentTransaction(ctx, req)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		assert.Contains(t, f.callbacks.released, callbackKey(req))

		_, err = f.verification.VerifyPaymentTransaction(ctx, req)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("unknown tracking number", func(t *testing.T) {
		f := newLedgerFixture()

		_, err := f.verification.VerifyPaymentTransaction(ctx, VerifyPaymentRequest{TrackingNumber: "GW-404", TransactionCode: "X"})
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.Len(t, f.callbacks.released, 1)
	})

	t.Run("tracking number is required", func(t *testing.T) {
		f := newLedgerFixture()
		_, err := f.verification.VerifyPaymentTransaction(ctx, VerifyPaymentRequest{TrackingNumber: "  "})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("unavailable callback store does not block verification", func(t *testing.T) {
		f := newLedgerFixture()
		f.pendingGatewayPayment(t, "250", "250", "GW-1")
		f.callbacks.markErr = errors.New("redis: connection refused")

		result, err := f.verification.VerifyPaymentTransaction(ctx, VerifyPaymentRequest{TrackingNumber: "GW-1", TransactionCode: "X"})
		require.NoError(t, err)
		assert.Equal(t, VerificationSucceeded, result.Outcome)

		result, err = f.verification.VerifyPaymentTransaction(ctx, VerifyPaymentRequest{TrackingNumber: "GW-1", TransactionCode: "X"})
		require.NoError(t, err)
		assert.Equal(t, VerificationAlreadyProcessed, result.Outcome)
	})

	t.Run("conflicting save is retried", func(t *testing.T) {
		f := newLedgerFixture()
		f.pendingGatewayPayment(t, "250", "250", "GW-1")
		f.invoiceRepo.conflicts = 2

		result, err := f.verification.VerifyPaymentTransaction(ctx, VerifyPaymentRequest{TrackingNumber: "GW-1", TransactionCode: "X"})
		require.NoError(t, err)
		assert.Equal(t, VerificationSucceeded, result.Outcome)
	})
}

func TestPaymentVerificationService_WalletTopUp(t *testing.T) {
	ctx := context.Background()

	t.Run("paid top-up credits the wallet once", func(t *testing.T) {
		f := newLedgerFixture()
		f.gatewayActive(true)
		userID := uuid.New()

		inv, err := f.invoices.CreateWalletTopUp(ctx, WalletTopUpRequest{UserID: userID, Amount: decimal.NewFromInt(200)})
		require.NoError(t, err)
		payment, err := f.invoices.StartGatewayPayment(ctx, inv.ID, StartGatewayPaymentRequest{})
		require.NoError(t, err)

		_, err = f.verification.VerifyPaymentTransaction(ctx, VerifyPaymentRequest{
			TrackingNumber:  payment.TrackingNumber,
			TransactionCode: "T1",
			PaidAmount:      decimal.NewFromInt(200),
		})
		require.NoError(t, err)

		wallet := f.walletRepo.get(finance.UserOwner(userID), valueobject.IRR)
		require.NotNil(t, wallet)
		assert.True(t, wallet.Balance().Equal(decimal.NewFromInt(200)))
		require.Len(t, wallet.Transactions, 1)
		assert.Contains(t, wallet.Transactions[0].Metadata, finance.WalletChargeTag(payment.TransactionID))
		assert.Equal(t, &inv.ID, wallet.Transactions[0].InvoiceID)

		result, err := f.verification.VerifyPaymentTransaction(ctx, VerifyPaymentRequest{
			TrackingNumber:  payment.TrackingNumber,
			TransactionCode: "T2",
		})
		require.NoError(t, err)
		assert.Equal(t, VerificationAlreadyProcessed, result.Outcome)
		wallet = f.walletRepo.get(finance.UserOwner(userID), valueobject.IRR)
		assert.Len(t, wallet.Transactions, 1)
	})

	t.Run("partially paid top-up does not credit", func(t *testing.T) {
		f := newLedgerFixture()
		f.gatewayActive(true)
		userID := uuid.New()

		inv, err := f.invoices.CreateWalletTopUp(ctx, WalletTopUpRequest{UserID: userID, Amount: decimal.NewFromInt(200)})
		require.NoError(t, err)
		payment, err := f.invoices.StartGatewayPayment(ctx, inv.ID, StartGatewayPaymentRequest{})
		require.NoError(t, err)

		_, err = f.verification.VerifyPaymentTransaction(ctx, VerifyPaymentRequest{
			TrackingNumber:  payment.TrackingNumber,
			TransactionCode: "T1",
			PaidAmount:      decimal.NewFromInt(50),
		})
		require.NoError(t, err)
		assert.Nil(t, f.walletRepo.get(finance.UserOwner(userID), valueobject.IRR))
	})
}

func TestPaymentVerificationService_WithdrawalPayout(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		// pay returns the tracking number and amount to verify
		pay        func(t *testing.T, f *ledgerFixture, wr *finance.WithdrawalRequest, payout *ProcessWithdrawalResult) (string, decimal.Decimal)
		wantStatus finance.WithdrawalStatus
		payoutPaid bool
	}{
		{
			name: "paid payout invoice completes the withdrawal",
			pay: func(t *testing.T, f *ledgerFixture, wr *finance.WithdrawalRequest, payout *ProcessWithdrawalResult) (string, decimal.Decimal) {
				return payout.PayoutTrackingCode, decimal.NewFromInt(300)
			},
			wantStatus: finance.WithdrawalStatusProcessed,
			payoutPaid: true,
		},
		{
			name: "partially paid payout invoice leaves the withdrawal approved",
			pay: func(t *testing.T, f *ledgerFixture, wr *finance.WithdrawalRequest, payout *ProcessWithdrawalResult) (string, decimal.Decimal) {
				return payout.PayoutTrackingCode, decimal.NewFromInt(100)
			},
			wantStatus: finance.WithdrawalStatusApproved,
		},
		{
			name: "other invoice carrying the withdrawal reference leaves it approved",
			pay: func(t *testing.T, f *ledgerFixture, wr *finance.WithdrawalRequest, payout *ProcessWithdrawalResult) (string, decimal.Decimal) {
				t.Helper()
				inv := f.seedInvoice(finance.UserOwner(uuid.New()), "1")
				require.NoError(t, inv.SetExternalReference(finance.WithdrawalTag(wr.ID)))
				f.invoiceRepo.put(inv)
				started, err := f.invoices.StartGatewayPayment(ctx, inv.ID, StartGatewayPaymentRequest{})
				require.NoError(t, err)
				return started.TrackingNumber, decimal.NewFromInt(1)
			},
			wantStatus: finance.WithdrawalStatusApproved,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLedgerFixture()
			f.gatewayActive(true)
			sellerID, admin := uuid.New(), uuid.New()
			f.sellerRevenue(sellerID, "1000")

			wr, err := f.withdrawals.CreateRequest(ctx, CreateWithdrawalRequest{
				Type:        finance.WithdrawalTypeSellerRevenue,
				PartyID:     sellerID,
				Amount:      decimal.NewFromInt(300),
				Destination: testDestination,
			})
			require.NoError(t, err)
			_, err = f.withdrawals.Approve(ctx, wr.ID, admin, "")
			require.NoError(t, err)
			payout, err := f.withdrawals.Process(ctx, wr.ID, admin)
			require.NoError(t, err)
			require.True(t, payout.Deferred)

			tracking, amount := tt.pay(t, f, wr, payout)
			result, err := f.verification.VerifyPaymentTransaction(ctx, VerifyPaymentRequest{
				TrackingNumber:  tracking,
				TransactionCode: "BANK-1",
				PaidAmount:      amount,
			})
			require.NoError(t, err)
			assert.Equal(t, VerificationSucceeded, result.Outcome)

			stored, err := f.withdrawals.GetRequest(ctx, wr.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, stored.Status)
			assert.Equal(t, tt.payoutPaid, f.invoiceRepo.get(*payout.PayoutInvoiceID).IsPaid())
		})
	}
}
