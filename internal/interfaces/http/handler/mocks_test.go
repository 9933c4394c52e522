package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	financeapp "github.com/shopledger/backend/internal/application/finance"
	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopledger/backend/internal/domain/shared"
	"github.com/shopledger/backend/internal/domain/shared/valueobject"
	"github.com/shopledger/backend/internal/infrastructure/auth"
	"github.com/shopledger/backend/internal/infrastructure/config"
	"github.com/shopledger/backend/internal/interfaces/http/dto"
	"github.com/shopledger/backend/internal/interfaces/http/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testAdminRole = "admin"

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// MockInvoiceUseCases implements InvoiceUseCases for testing
type MockInvoiceUseCases struct {
	mock.Mock
}

func (m *MockInvoiceUseCases) GetInvoice(ctx context.Context, id uuid.UUID) (*finance.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.Invoice), args.Error(1)
}

func (m *MockInvoiceUseCases) ListInvoices(ctx context.Context, owner finance.Owner, filter finance.InvoiceFilter) (shared.Paginated[finance.Invoice], error) {
	args := m.Called(ctx, owner, filter)
	return args.Get(0).(shared.Paginated[finance.Invoice]), args.Error(1)
}

func (m *MockInvoiceUseCases) CreateInvoice(ctx context.Context, req financeapp.CreateInvoiceRequest) (*finance.Invoice, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.Invoice), args.Error(1)
}

func (m *MockInvoiceUseCases) SubmitTransaction(ctx context.Context, invoiceID uuid.UUID, req financeapp.SubmitTransactionRequest) (*financeapp.InvoiceTransactionResult, error) {
	args := m.Called(ctx, invoiceID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financeapp.InvoiceTransactionResult), args.Error(1)
}

func (m *MockInvoiceUseCases) UpdateTransaction(ctx context.Context, invoiceID, txID uuid.UUID, input finance.UpdateTransactionInput) (*financeapp.InvoiceTransactionResult, error) {
	args := m.Called(ctx, invoiceID, txID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financeapp.InvoiceTransactionResult), args.Error(1)
}

func (m *MockInvoiceUseCases) CancelInvoice(ctx context.Context, invoiceID uuid.UUID, reason string) (*finance.Invoice, error) {
	args := m.Called(ctx, invoiceID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.Invoice), args.Error(1)
}

func (m *MockInvoiceUseCases) SetShippingAddress(ctx context.Context, invoiceID uuid.UUID, addr finance.ShippingAddress) (*finance.Invoice, error) {
	args := m.Called(ctx, invoiceID, addr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.Invoice), args.Error(1)
}

func (m *MockInvoiceUseCases) PayInvoice(ctx context.Context, invoiceID uuid.UUID, req financeapp.PayInvoiceRequest) (*financeapp.PayInvoiceResult, error) {
	args := m.Called(ctx, invoiceID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financeapp.PayInvoiceResult), args.Error(1)
}

func (m *MockInvoiceUseCases) StartGatewayPayment(ctx context.Context, invoiceID uuid.UUID, req financeapp.StartGatewayPaymentRequest) (*financeapp.GatewayPaymentResult, error) {
	args := m.Called(ctx, invoiceID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financeapp.GatewayPaymentResult), args.Error(1)
}

func (m *MockInvoiceUseCases) CreateWalletTopUp(ctx context.Context, req financeapp.WalletTopUpRequest) (*finance.Invoice, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.Invoice), args.Error(1)
}

// MockWalletUseCases implements WalletUseCases for testing
type MockWalletUseCases struct {
	mock.Mock
}

func (m *MockWalletUseCases) GetAccount(ctx context.Context, owner finance.Owner, currency valueobject.Currency) (*finance.WalletAccount, error) {
	args := m.Called(ctx, owner, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.WalletAccount), args.Error(1)
}

func (m *MockWalletUseCases) LockAccount(ctx context.Context, accountID uuid.UUID, reason string) (*finance.WalletAccount, error) {
	args := m.Called(ctx, accountID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.WalletAccount), args.Error(1)
}

func (m *MockWalletUseCases) UnlockAccount(ctx context.Context, accountID uuid.UUID) (*finance.WalletAccount, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.WalletAccount), args.Error(1)
}

// MockWithdrawalUseCases implements WithdrawalUseCases for testing
type MockWithdrawalUseCases struct {
	mock.Mock
}

func (m *MockWithdrawalUseCases) GetRequest(ctx context.Context, id uuid.UUID) (*finance.WithdrawalRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.WithdrawalRequest), args.Error(1)
}

func (m *MockWithdrawalUseCases) ListRequests(ctx context.Context, owner finance.Owner, filter finance.WithdrawalRequestFilter) (shared.Paginated[finance.WithdrawalRequest], error) {
	args := m.Called(ctx, owner, filter)
	return args.Get(0).(shared.Paginated[finance.WithdrawalRequest]), args.Error(1)
}

func (m *MockWithdrawalUseCases) CreateRequest(ctx context.Context, req financeapp.CreateWithdrawalRequest) (*finance.WithdrawalRequest, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.WithdrawalRequest), args.Error(1)
}

func (m *MockWithdrawalUseCases) Approve(ctx context.Context, id, adminID uuid.UUID, notes string) (*finance.WithdrawalRequest, error) {
	args := m.Called(ctx, id, adminID, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.WithdrawalRequest), args.Error(1)
}

func (m *MockWithdrawalUseCases) Reject(ctx context.Context, id, adminID uuid.UUID, notes string) (*finance.WithdrawalRequest, error) {
	args := m.Called(ctx, id, adminID, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.WithdrawalRequest), args.Error(1)
}

func (m *MockWithdrawalUseCases) Process(ctx context.Context, id, adminID uuid.UUID) (*financeapp.ProcessWithdrawalResult, error) {
	args := m.Called(ctx, id, adminID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financeapp.ProcessWithdrawalResult), args.Error(1)
}

// MockPaymentVerifier implements PaymentVerifier for testing
type MockPaymentVerifier struct {
	mock.Mock
}

func (m *MockPaymentVerifier) VerifyPaymentTransaction(ctx context.Context, req financeapp.VerifyPaymentRequest) (*financeapp.PaymentVerificationResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financeapp.PaymentVerificationResult), args.Error(1)
}

// MockSellerShareCharger implements SellerShareCharger for testing
type MockSellerShareCharger struct {
	mock.Mock
}

func (m *MockSellerShareCharger) ChargeSellerShare(ctx context.Context, invoiceID uuid.UUID) (*financeapp.SellerShareReport, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financeapp.SellerShareReport), args.Error(1)
}

// testJWT signs tokens for handler tests
var testJWT = auth.NewJWTService(config.JWTConfig{
	Secret:         "handler-test-secret-at-least-32-chars",
	Issuer:         "handler-test",
	AdminRole:      testAdminRole,
	AccessTokenTTL: time.Hour,
})

// newTestRouter returns a router that authenticates bearer tokens like the
// production chain does
func newTestRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.JWTAuth(middleware.JWTConfig{Validator: testJWT}))
	return r
}

func bearer(t *testing.T, userID uuid.UUID, roles ...string) string {
	t.Helper()
	token, _, err := testJWT.GenerateAccessToken(userID, roles...)
	require.NoError(t, err)
	return "Bearer " + token
}

func doJSON(t *testing.T, r http.Handler, method, path, authz string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// decodeData decodes the response envelope, unmarshalling data into out
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) dto.Response {
	t.Helper()
	var envelope struct {
		dto.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	if out != nil && len(envelope.Data) > 0 {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
	return envelope.Response
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decodeData(t, rec, nil)
	require.NotNil(t, resp.Error, rec.Body.String())
	return resp.Error.Code
}

func newTestInvoice(t *testing.T, owner finance.Owner, total int64) *finance.Invoice {
	t.Helper()
	inv, err := finance.NewInvoice("INV-TEST-0001", "Order", "IRR", owner, nil)
	require.NoError(t, err)
	_, err = inv.AddItem(finance.InvoiceItemInput{
		Name:      "Service fee",
		Type:      finance.InvoiceItemTypeService,
		Quantity:  1,
		UnitPrice: decimal.NewFromInt(total),
	})
	require.NoError(t, err)
	return inv
}
