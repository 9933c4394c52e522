package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopledger/backend/internal/domain/finance/acl"
	"github.com/shopledger/backend/internal/domain/shared"
	"github.com/shopledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func productItem(price string) finance.InvoiceItemInput {
	productID := uuid.New()
	return finance.InvoiceItemInput{
		Name:        "Product",
		Type:        finance.InvoiceItemTypeProduct,
		ReferenceID: &productID,
		Quantity:    1,
		UnitPrice:   decimal.RequireFromString(price),
	}
}

func TestInvoiceService_CreateInvoice(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a draft with a generated number", func(t *testing.T) {
		f := newLedgerFixture()
		owner := finance.UserOwner(uuid.New())

		inv, err := f.invoices.CreateInvoice(ctx, CreateInvoiceRequest{
			Title:     "Order 1001",
			Owner:     owner,
			Items:     []finance.InvoiceItemInput{productItem("120"), productItem("30")},
			TaxAmount: decimal.NewFromInt(15),
		})
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(inv.InvoiceNumber, "INV-"))
		assert.Equal(t, finance.InvoiceStatusDraft, inv.Status)
		assert.Equal(t, valueobject.IRR, inv.Currency)
		assert.True(t, inv.GrandTotal().Equal(decimal.NewFromInt(165)))
		assert.NotNil(t, f.invoiceRepo.get(inv.ID))
		assert.Len(t, f.publisher.ofType(finance.EventTypeInvoiceCreated), 1)
	})

	t.Run("retries a taken number", func(t *testing.T) {
		f := newLedgerFixture()
		f.invoiceRepo.numberTaken = []bool{true, true}

		inv, err := f.invoices.CreateInvoice(ctx, CreateInvoiceRequest{
			Title: "Order",
			Owner: finance.UserOwner(uuid.New()),
			Items: []finance.InvoiceItemInput{productItem("10")},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, inv.InvoiceNumber)
	})

	t.Run("fails when no free number is found", func(t *testing.T) {
		f := newLedgerFixture()
		f.invoiceRepo.numberTaken = []bool{true, true, true, true, true}

		_, err := f.invoices.CreateInvoice(ctx, CreateInvoiceRequest{
			Title: "Order",
			Owner: finance.UserOwner(uuid.New()),
			Items: []finance.InvoiceItemInput{productItem("10")},
		})
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("requires at least one item", func(t *testing.T) {
		f := newLedgerFixture()
		_, err := f.invoices.CreateInvoice(ctx, CreateInvoiceRequest{
			Title: "Empty",
			Owner: finance.UserOwner(uuid.New()),
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("rejects a product line without a product", func(t *testing.T) {
		f := newLedgerFixture()
		_, err := f.invoices.CreateInvoice(ctx, CreateInvoiceRequest{
			Title: "Order",
			Owner: finance.UserOwner(uuid.New()),
			Items: []finance.InvoiceItemInput{{
				Name:      "Orphan",
				Type:      finance.InvoiceItemTypeProduct,
				Quantity:  1,
				UnitPrice: decimal.NewFromInt(5),
			}},
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestInvoiceService_CreateInvoice_ReservedExternalReference(t *testing.T) {
	ctx := context.Background()
	withdrawalID := uuid.New()

	tests := []struct {
		name    string
		ref     string
		wantErr bool
	}{
		{"wallet charge", "WALLET_CHARGE_WLDEP20240101000000ABCDEF", true},
		{"short wallet charge", "wch-42", true},
		{"withdrawal payout", finance.WithdrawalTag(withdrawalID), true},
		{"withdrawal payout in lower case", "withdrawal_request:" + withdrawalID.String(), true},
		{"padded withdrawal payout", "  " + finance.WithdrawalTag(withdrawalID), true},
		{"order reference", "ORDER-42", false},
		{"no reference", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLedgerFixture()

			inv, err := f.invoices.CreateInvoice(ctx, CreateInvoiceRequest{
				Title:             "Order",
				Owner:             finance.UserOwner(uuid.New()),
				ExternalReference: tt.ref,
				Items:             []finance.InvoiceItemInput{productItem("10")},
			})
			if tt.wantErr {
				assert.ErrorIs(t, err, shared.ErrValidation)
				assert.Empty(t, f.publisher.ofType(finance.EventTypeInvoiceCreated))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ref, inv.ExternalReference)
		})
	}
}

func TestInvoiceService_SubmitTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("full payment marks the invoice paid", func(t *testing.T) {
		f := newLedgerFixture()
		inv := f.seedInvoice(finance.UserOwner(uuid.New()), "100")

		result, err := f.invoices.SubmitTransaction(ctx, inv.ID, SubmitTransactionRequest{
			Amount:    decimal.NewFromInt(100),
			Method:    finance.PaymentMethodWallet,
			Status:    finance.TransactionStatusSucceeded,
			Reference: "REF-1",
		})
		require.NoError(t, err)

		assert.Equal(t, finance.InvoiceStatusPaid, result.Invoice.Status)
		assert.NotNil(t, result.Invoice.PaidAt)
		assert.Equal(t, "REF-1", result.Transaction.Reference)
		assert.Len(t, f.publisher.ofType(finance.EventTypeInvoicePaid), 1)

		stored := f.invoiceRepo.get(inv.ID)
		assert.Equal(t, inv.Version+1, stored.Version)
	})

	t.Run("partial payment keeps the invoice open", func(t *testing.T) {
		f := newLedgerFixture()
		inv := f.seedInvoice(finance.UserOwner(uuid.New()), "100")

		result, err := f.invoices.SubmitTransaction(ctx, inv.ID, SubmitTransactionRequest{
			Amount:    decimal.NewFromInt(40),
			Method:    finance.PaymentMethodWallet,
			Status:    finance.TransactionStatusSucceeded,
			Reference: "REF-1",
		})
		require.NoError(t, err)
		assert.Equal(t, finance.InvoiceStatusPartiallyPaid, result.Invoice.Status)
		assert.True(t, result.Invoice.OutstandingAmount().Equal(decimal.NewFromInt(60)))
		assert.Empty(t, f.publisher.ofType(finance.EventTypeInvoicePaid))
	})

	t.Run("duplicate reference is rejected case-insensitively", func(t *testing.T) {
		f := newLedgerFixture()
		inv := f.seedInvoice(finance.UserOwner(uuid.New()), "100")
		req := SubmitTransactionRequest{
			Amount:    decimal.NewFromInt(10),
			Method:    finance.PaymentMethodOnlineGateway,
			Status:    finance.TransactionStatusPending,
			Reference: "gw-abc",
		}
		_, err := f.invoices.SubmitTransaction(ctx, inv.ID, req)
		require.NoError(t, err)

		req.Reference = "GW-ABC"
		_, err = f.invoices.SubmitTransaction(ctx, inv.ID, req)
		assert.ErrorIs(t, err, shared.ErrDuplicateReference)
		assert.Len(t, f.invoiceRepo.get(inv.ID).Transactions, 1)
	})

	t.Run("unknown invoice", func(t *testing.T) {
		f := newLedgerFixture()
		_, err := f.invoices.SubmitTransaction(ctx, uuid.New(), SubmitTransactionRequest{
			Amount:    decimal.NewFromInt(10),
			Method:    finance.PaymentMethodWallet,
			Status:    finance.TransactionStatusSucceeded,
			Reference: "REF",
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("interleaved writer is not lost", func(t *testing.T) {
		f := newLedgerFixture()
		inv := f.seedInvoice(finance.UserOwner(uuid.New()), "100")

		f.invoiceRepo.onSave = func(call int) {
			if call == 1 {
				_, err := f.invoices.SubmitTransaction(ctx, inv.ID, SubmitTransactionRequest{
					Amount:    decimal.NewFromInt(30),
					Method:    finance.PaymentMethodWallet,
					Status:    finance.TransactionStatusSucceeded,
					Reference: "REF-B",
				})
				require.NoError(t, err)
			}
		}

		_, err := f.invoices.SubmitTransaction(ctx, inv.ID, SubmitTransactionRequest{
			Amount:    decimal.NewFromInt(70),
			Method:    finance.PaymentMethodWallet,
			Status:    finance.TransactionStatusSucceeded,
			Reference: "REF-A",
		})
		require.NoError(t, err)

		stored := f.invoiceRepo.get(inv.ID)
		assert.Len(t, stored.Transactions, 2)
		assert.NotNil(t, stored.FindTransactionByReference("REF-A"))
		assert.NotNil(t, stored.FindTransactionByReference("REF-B"))
		assert.Equal(t, finance.InvoiceStatusPaid, stored.Status)
		assert.Equal(t, inv.Version+2, stored.Version)
		assert.Len(t, f.publisher.ofType(finance.EventTypeInvoicePaid), 1)
	})

	t.Run("parallel submissions all land", func(t *testing.T) {
		f := newLedgerFixture()
		inv := f.seedInvoice(finance.UserOwner(uuid.New()), "1000")
		svc := NewInvoiceService(InvoiceServiceConfig{
			Scope:       NewNoOpTransactionScope(f.invoiceRepo, f.walletRepo, f.withdrawalRepo),
			InvoiceRepo: f.invoiceRepo,
			RetryPolicy: RetryPolicy{MaxAttempts: 30, InitialInterval: time.Millisecond, Multiplier: 1.2},
		})

		const writers = 8
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := svc.SubmitTransaction(ctx, inv.ID, SubmitTransactionRequest{
					Amount:    decimal.NewFromInt(1),
					Method:    finance.PaymentMethodOnlineGateway,
					Status:    finance.TransactionStatusPending,
					Reference: fmt.Sprintf("GW-%d", i),
				})
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			assert.NoError(t, err)
		}
		assert.Len(t, f.invoiceRepo.get(inv.ID).Transactions, writers)
	})
}

func TestInvoiceService_CancelInvoice(t *testing.T) {
	ctx := context.Background()

	t.Run("fails pending transactions", func(t *testing.T) {
		f := newLedgerFixture()
		inv := f.seedInvoice(finance.UserOwner(uuid.New()), "100")
		_, err := f.invoices.SubmitTransaction(ctx, inv.ID, SubmitTransactionRequest{
			Amount:    decimal.NewFromInt(100),
			Method:    finance.PaymentMethodOnlineGateway,
			Status:    finance.TransactionStatusPending,
			Reference: "GW-1",
		})
		require.NoError(t, err)

		cancelled, err := f.invoices.CancelInvoice(ctx, inv.ID, "customer request")
		require.NoError(t, err)
		assert.Equal(t, finance.InvoiceStatusCancelled, cancelled.Status)
		assert.Equal(t, finance.TransactionStatusFailed, cancelled.Transactions[0].Status)
	})

	t.Run("refuses an invoice with a succeeded payment", func(t *testing.T) {
		f := newLedgerFixture()
		inv := f.seedInvoice(finance.UserOwner(uuid.New()), "100")
		_, err := f.invoices.SubmitTransaction(ctx, inv.ID, SubmitTransactionRequest{
			Amount:    decimal.NewFromInt(10),
			Method:    finance.PaymentMethodWallet,
			Status:    finance.TransactionStatusSucceeded,
			Reference: "REF",
		})
		require.NoError(t, err)

		_, err = f.invoices.CancelInvoice(ctx, inv.ID, "too late")
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}

func TestInvoiceService_PayInvoice(t *testing.T) {
	ctx := context.Background()

	t.Run("pays the outstanding amount from the wallet", func(t *testing.T) {
		f := newLedgerFixture()
		owner := finance.UserOwner(uuid.New())
		f.fundWallet(owner, "500")
		inv := f.seedInvoice(owner, "120")

		result, err := f.invoices.PayInvoice(ctx, inv.ID, PayInvoiceRequest{})
		require.NoError(t, err)

		assert.Equal(t, finance.InvoiceStatusPaid, result.Invoice.Status)
		assert.Equal(t, finance.PaymentMethodWallet, result.Transaction.Method)
		assert.True(t, result.Transaction.Amount.Equal(decimal.NewFromInt(120)))
		assert.True(t, result.WalletBalance.Equal(decimal.NewFromInt(380)))
		assert.Equal(t, result.Transaction.Reference, result.WalletTransaction.Reference)
	})

	t.Run("caps the amount at the outstanding amount", func(t *testing.T) {
		f := newLedgerFixture()
		owner := finance.UserOwner(uuid.New())
		f.fundWallet(owner, "500")
		inv := f.seedInvoice(owner, "120")

		amount := decimal.NewFromInt(300)
		result, err := f.invoices.PayInvoice(ctx, inv.ID, PayInvoiceRequest{Amount: &amount})
		require.NoError(t, err)
		assert.True(t, result.Transaction.Amount.Equal(decimal.NewFromInt(120)))
	})

	t.Run("insufficient balance records nothing", func(t *testing.T) {
		f := newLedgerFixture()
		owner := finance.UserOwner(uuid.New())
		f.fundWallet(owner, "50")
		inv := f.seedInvoice(owner, "120")

		_, err := f.invoices.PayInvoice(ctx, inv.ID, PayInvoiceRequest{})
		assert.ErrorIs(t, err, shared.ErrInsufficientBalance)
		assert.Empty(t, f.invoiceRepo.get(inv.ID).Transactions)
	})

	t.Run("refunds the wallet when the payment cannot be recorded", func(t *testing.T) {
		f := newLedgerFixture()
		owner := finance.UserOwner(uuid.New())
		f.fundWallet(owner, "500")
		inv := f.seedInvoice(owner, "120")
		f.invoiceRepo.saveErr = errors.New("connection reset")

		_, err := f.invoices.PayInvoice(ctx, inv.ID, PayInvoiceRequest{Reference: "PAY-1"})
		require.Error(t, err)

		wallet := f.walletRepo.get(owner, valueobject.IRR)
		assert.True(t, wallet.Balance().Equal(decimal.NewFromInt(500)))
		require.Len(t, wallet.Transactions, 3)
		refund := wallet.Transactions[2]
		assert.Equal(t, finance.WalletTransactionTypeCredit, refund.Type)
		assert.True(t, strings.HasPrefix(refund.Reference, finance.ReferencePrefixWalletRefund))
		assert.Contains(t, refund.Metadata, finance.InvoicePaymentRefundTag(inv.ID, "PAY-1"))
	})

	t.Run("cancelled invoice cannot be paid", func(t *testing.T) {
		f := newLedgerFixture()
		owner := finance.UserOwner(uuid.New())
		f.fundWallet(owner, "500")
		inv := f.seedInvoice(owner, "120")
		_, err := f.invoices.CancelInvoice(ctx, inv.ID, "changed mind")
		require.NoError(t, err)

		_, err = f.invoices.PayInvoice(ctx, inv.ID, PayInvoiceRequest{})
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}

func walletDebits(w *finance.WalletAccount) int {
	n := 0
	for _, tx := range w.Transactions {
		if tx.Type == finance.WalletTransactionTypeDebit && tx.Status == finance.TransactionStatusSucceeded {
			n++
		}
	}
	return n
}

func TestInvoiceService_PayInvoice_References(t *testing.T) {
	ctx := context.Background()
	forty := decimal.NewFromInt(40)

	tests := []struct {
		name        string
		references  []string
		wantErr     error
		wantBalance int64
		wantPaid    int64
		wantDebits  int
	}{
		{
			name:        "same reference twice is debited once",
			references:  []string{"R1", "R1"},
			wantErr:     shared.ErrDuplicateReference,
			wantBalance: 460,
			wantPaid:    40,
			wantDebits:  1,
		},
		{
			name:        "reference differing only in case is a duplicate",
			references:  []string{"R1", "r1"},
			wantErr:     shared.ErrDuplicateReference,
			wantBalance: 460,
			wantPaid:    40,
			wantDebits:  1,
		},
		{
			name:        "reference that prefixes an earlier one is a new payment",
			references:  []string{"R10", "R1"},
			wantBalance: 420,
			wantPaid:    80,
			wantDebits:  2,
		},
		{
			name:        "reference extending an earlier one is a new payment",
			references:  []string{"R1", "R10"},
			wantBalance: 420,
			wantPaid:    80,
			wantDebits:  2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLedgerFixture()
			owner := finance.UserOwner(uuid.New())
			f.fundWallet(owner, "500")
			inv := f.seedInvoice(owner, "100")

			var err error
			for i, ref := range tt.references {
				_, err = f.invoices.PayInvoice(ctx, inv.ID, PayInvoiceRequest{Amount: &forty, Reference: ref})
				if i < len(tt.references)-1 {
					require.NoError(t, err)
				}
			}
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			wallet := f.walletRepo.get(owner, valueobject.IRR)
			assert.True(t, wallet.Balance().Equal(decimal.NewFromInt(tt.wantBalance)), wallet.Balance().String())
			assert.Equal(t, tt.wantDebits, walletDebits(wallet))
			assert.True(t, f.invoiceRepo.get(inv.ID).PaidAmount().Equal(decimal.NewFromInt(tt.wantPaid)))
		})
	}
}

func TestInvoiceService_PayInvoice_EarlierDebit(t *testing.T) {
	ctx := context.Background()
	forty := decimal.NewFromInt(40)

	debitEarlier := func(t *testing.T, f *ledgerFixture, owner finance.Owner, inv *finance.Invoice) {
		t.Helper()
		_, err := f.wallets.Debit(ctx, WalletCommand{
			Owner:          owner,
			Currency:       valueobject.IRR,
			Amount:         forty,
			Reference:      "R1",
			IdempotencyTag: finance.InvoicePaymentTag(inv.ID, "R1"),
			InvoiceID:      &inv.ID,
		})
		require.NoError(t, err)
	}

	t.Run("records an earlier debit without charging again", func(t *testing.T) {
		f := newLedgerFixture()
		owner := finance.UserOwner(uuid.New())
		f.fundWallet(owner, "500")
		inv := f.seedInvoice(owner, "100")
		debitEarlier(t, f, owner, inv)

		result, err := f.invoices.PayInvoice(ctx, inv.ID, PayInvoiceRequest{Amount: &forty, Reference: "R1"})
		require.NoError(t, err)

		assert.True(t, result.Transaction.Amount.Equal(forty))
		wallet := f.walletRepo.get(owner, valueobject.IRR)
		assert.True(t, wallet.Balance().Equal(decimal.NewFromInt(460)))
		assert.Equal(t, 1, walletDebits(wallet))
	})

	t.Run("refunded earlier debit is not recorded", func(t *testing.T) {
		f := newLedgerFixture()
		owner := finance.UserOwner(uuid.New())
		f.fundWallet(owner, "500")
		inv := f.seedInvoice(owner, "100")
		debitEarlier(t, f, owner, inv)
		_, err := f.wallets.Credit(ctx, WalletCommand{
			Owner:           owner,
			Currency:        valueobject.IRR,
			Amount:          forty,
			ReferencePrefix: finance.ReferencePrefixWalletRefund,
			IdempotencyTag:  finance.InvoicePaymentRefundTag(inv.ID, "R1"),
			InvoiceID:       &inv.ID,
		})
		require.NoError(t, err)

		_, err = f.invoices.PayInvoice(ctx, inv.ID, PayInvoiceRequest{Amount: &forty, Reference: "R1"})
		assert.ErrorIs(t, err, shared.ErrDuplicateReference)

		assert.Empty(t, f.invoiceRepo.get(inv.ID).Transactions)
		wallet := f.walletRepo.get(owner, valueobject.IRR)
		assert.True(t, wallet.Balance().Equal(decimal.NewFromInt(500)))
	})

	t.Run("failed recording of an earlier debit is not refunded", func(t *testing.T) {
		f := newLedgerFixture()
		owner := finance.UserOwner(uuid.New())
		f.fundWallet(owner, "500")
		inv := f.seedInvoice(owner, "100")
		debitEarlier(t, f, owner, inv)
		f.invoiceRepo.saveErr = errors.New("connection reset")

		_, err := f.invoices.PayInvoice(ctx, inv.ID, PayInvoiceRequest{Amount: &forty, Reference: "R1"})
		require.Error(t, err)

		wallet := f.walletRepo.get(owner, valueobject.IRR)
		assert.True(t, wallet.Balance().Equal(decimal.NewFromInt(460)))
		assert.Nil(t, wallet.FindSucceededByTag(&inv.ID, finance.InvoicePaymentRefundTag(inv.ID, "R1")))
	})
}

func TestInvoiceService_StartGatewayPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("records a pending gateway transaction", func(t *testing.T) {
		f := newLedgerFixture()
		f.paymentSettings.On("GetPaymentSettings", mock.Anything).Return(&acl.PaymentSettings{
			IsActive:          true,
			GatewayName:       "zarinpal",
			GatewayMerchantID: "merchant-1",
		}, nil)
		inv := f.seedInvoice(finance.UserOwner(uuid.New()), "80")

		result, err := f.invoices.StartGatewayPayment(ctx, inv.ID, StartGatewayPaymentRequest{})
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(result.TrackingNumber, finance.ReferencePrefixGatewayPayment))
		assert.True(t, result.Amount.Equal(decimal.NewFromInt(80)))
		assert.Equal(t, "merchant-1", result.MerchantID)

		tx := f.invoiceRepo.get(inv.ID).FindTransactionByReference(result.TrackingNumber)
		require.NotNil(t, tx)
		assert.Equal(t, finance.TransactionStatusPending, tx.Status)
		assert.Equal(t, finance.PaymentMethodOnlineGateway, tx.Method)
		f.paymentSettings.AssertExpectations(t)
	})

	t.Run("inactive gateway is refused", func(t *testing.T) {
		f := newLedgerFixture()
		f.paymentSettings.On("GetPaymentSettings", mock.Anything).Return(&acl.PaymentSettings{IsActive: false}, nil)
		inv := f.seedInvoice(finance.UserOwner(uuid.New()), "80")

		_, err := f.invoices.StartGatewayPayment(ctx, inv.ID, StartGatewayPaymentRequest{})
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}

func TestInvoiceService_CreateWalletTopUp(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture()
	userID := uuid.New()

	inv, err := f.invoices.CreateWalletTopUp(ctx, WalletTopUpRequest{UserID: userID, Amount: decimal.NewFromInt(200)})
	require.NoError(t, err)

	assert.True(t, inv.IsWalletCharge())
	assert.Equal(t, finance.UserOwner(userID), inv.Owner)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, finance.InvoiceItemTypeWalletCharge, inv.Items[0].Type)
	assert.True(t, inv.GrandTotal().Equal(decimal.NewFromInt(200)))

	_, err = f.invoices.CreateWalletTopUp(ctx, WalletTopUpRequest{UserID: userID, Amount: decimal.Zero})
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)
}

func TestInvoiceService_ListInvoices(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture()
	owner := finance.UserOwner(uuid.New())
	f.seedInvoice(owner, "10")
	f.seedInvoice(owner, "20")
	f.seedInvoice(finance.UserOwner(uuid.New()), "30")

	page, err := f.invoices.ListInvoices(ctx, owner, finance.InvoiceFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Len(t, page.Items, 2)
}
