package finance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopledger/backend/internal/domain/finance/acl"
	"github.com/shopledger/backend/internal/domain/shared"
	"github.com/shopledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// In-memory repositories with optimistic locking
// =============================================================================

// versionStore keeps snapshots keyed by id and enforces the version check of SaveWithLock.
// Conflicts can be injected to exercise the retry policy.
type versionStore struct {
	mu        sync.Mutex
	conflicts int
	saveErr   error
	saveCalls int
	onSave    func(call int)
}

// beforeSave counts the call, runs the hook outside the lock and reports an injected failure
func (s *versionStore) beforeSave() error {
	s.mu.Lock()
	s.saveCalls++
	call := s.saveCalls
	hook := s.onSave
	s.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	if s.conflicts > 0 {
		s.conflicts--
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func (s *versionStore) SaveCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCalls
}

func cloneInvoice(inv *finance.Invoice) *finance.Invoice {
	c := *inv
	c.Items = append([]finance.InvoiceItem(nil), inv.Items...)
	c.Transactions = append([]finance.PaymentTransaction(nil), inv.Transactions...)
	c.ClearDomainEvents()
	return &c
}

type fakeInvoiceRepo struct {
	versionStore
	invoices map[uuid.UUID]*finance.Invoice
	// numberTaken answers ExistsByNumber in order before falling back to the stored invoices
	numberTaken []bool
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{invoices: make(map[uuid.UUID]*finance.Invoice)}
}

func (r *fakeInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*finance.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return cloneInvoice(inv), nil
}

func (r *fakeInvoiceRepo) FindByNumber(_ context.Context, number string) (*finance.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.InvoiceNumber == number {
			return cloneInvoice(inv), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeInvoiceRepo) FindByTransactionReference(_ context.Context, reference string) (*finance.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.FindTransactionByReference(reference) != nil {
			return cloneInvoice(inv), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeInvoiceRepo) FindByOwner(_ context.Context, owner finance.Owner, _ finance.InvoiceFilter) ([]finance.Invoice, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]finance.Invoice, 0)
	for _, inv := range r.invoices {
		if inv.Owner == owner {
			result = append(result, *cloneInvoice(inv))
		}
	}
	return result, int64(len(result)), nil
}

func (r *fakeInvoiceRepo) ExistsByNumber(_ context.Context, number string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.numberTaken) > 0 {
		taken := r.numberTaken[0]
		r.numberTaken = r.numberTaken[1:]
		return taken, nil
	}
	for _, inv := range r.invoices {
		if inv.InvoiceNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeInvoiceRepo) Create(_ context.Context, inv *finance.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.invoices[inv.ID]; exists {
		return shared.ErrAlreadyExists
	}
	r.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (r *fakeInvoiceRepo) SaveWithLock(_ context.Context, inv *finance.Invoice) error {
	if err := r.beforeSave(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.invoices[inv.ID]
	if !ok || stored.Version != inv.Version {
		return shared.ErrConcurrencyConflict
	}
	inv.Version++
	r.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

// put stores an invoice directly, bypassing the unit of work
func (r *fakeInvoiceRepo) put(inv *finance.Invoice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices[inv.ID] = cloneInvoice(inv)
}

func (r *fakeInvoiceRepo) get(id uuid.UUID) *finance.Invoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv, ok := r.invoices[id]; ok {
		return cloneInvoice(inv)
	}
	return nil
}

func cloneWallet(w *finance.WalletAccount) *finance.WalletAccount {
	c := *w
	c.Transactions = append([]finance.WalletTransaction(nil), w.Transactions...)
	c.ClearDomainEvents()
	return &c
}

type fakeWalletRepo struct {
	versionStore
	accounts map[uuid.UUID]*finance.WalletAccount
	onCreate func()
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{accounts: make(map[uuid.UUID]*finance.WalletAccount)}
}

func (r *fakeWalletRepo) FindByID(_ context.Context, id uuid.UUID) (*finance.WalletAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return cloneWallet(w), nil
}

func (r *fakeWalletRepo) FindByOwner(_ context.Context, owner finance.Owner, currency valueobject.Currency) (*finance.WalletAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.accounts {
		if w.Owner == owner && w.Currency == currency {
			return cloneWallet(w), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeWalletRepo) Create(_ context.Context, account *finance.WalletAccount) error {
	r.mu.Lock()
	hook := r.onCreate
	r.onCreate = nil
	r.mu.Unlock()
	if hook != nil {
		hook()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.accounts {
		if w.Owner == account.Owner && w.Currency == account.Currency {
			return shared.ErrConcurrencyConflict
		}
	}
	r.accounts[account.ID] = cloneWallet(account)
	return nil
}

func (r *fakeWalletRepo) SaveWithLock(_ context.Context, account *finance.WalletAccount) error {
	if err := r.beforeSave(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.accounts[account.ID]
	if !ok || stored.Version != account.Version {
		return shared.ErrConcurrencyConflict
	}
	account.Version++
	r.accounts[account.ID] = cloneWallet(account)
	return nil
}

func (r *fakeWalletRepo) put(account *finance.WalletAccount) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = cloneWallet(account)
}

func (r *fakeWalletRepo) get(owner finance.Owner, currency valueobject.Currency) *finance.WalletAccount {
	w, err := r.FindByOwner(context.Background(), owner, currency)
	if err != nil {
		return nil
	}
	return w
}

type fakeWithdrawalRepo struct {
	versionStore
	requests map[uuid.UUID]*finance.WithdrawalRequest
}

func newFakeWithdrawalRepo() *fakeWithdrawalRepo {
	return &fakeWithdrawalRepo{requests: make(map[uuid.UUID]*finance.WithdrawalRequest)}
}

func cloneWithdrawal(wr *finance.WithdrawalRequest) *finance.WithdrawalRequest {
	c := *wr
	c.ClearDomainEvents()
	return &c
}

func (r *fakeWithdrawalRepo) FindByID(_ context.Context, id uuid.UUID) (*finance.WithdrawalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wr, ok := r.requests[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return cloneWithdrawal(wr), nil
}

func (r *fakeWithdrawalRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.WithdrawalRequest, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeWithdrawalRepo) FindByOwner(_ context.Context, owner finance.Owner, _ finance.WithdrawalRequestFilter) ([]finance.WithdrawalRequest, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]finance.WithdrawalRequest, 0)
	for _, wr := range r.requests {
		if wr.Owner == owner {
			result = append(result, *cloneWithdrawal(wr))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, int64(len(result)), nil
}

func (r *fakeWithdrawalRepo) SumProcessedSellerRevenue(_ context.Context, sellerID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, wr := range r.requests {
		if wr.Type == finance.WithdrawalTypeSellerRevenue && wr.Owner.ID == sellerID && wr.Status == finance.WithdrawalStatusProcessed {
			total = total.Add(wr.Amount)
		}
	}
	return total, nil
}

func (r *fakeWithdrawalRepo) Create(_ context.Context, wr *finance.WithdrawalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[wr.ID] = cloneWithdrawal(wr)
	return nil
}

func (r *fakeWithdrawalRepo) SaveWithLock(_ context.Context, wr *finance.WithdrawalRequest) error {
	if err := r.beforeSave(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.requests[wr.ID]
	if !ok || stored.Version != wr.Version {
		return shared.ErrConcurrencyConflict
	}
	wr.Version++
	r.requests[wr.ID] = cloneWithdrawal(wr)
	return nil
}

// =============================================================================
// Event publisher and idempotency store
// =============================================================================

type recordingPublisher struct {
	mu       sync.Mutex
	events   []shared.DomainEvent
	handlers []shared.EventHandler
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	p.events = append(p.events, events...)
	handlers := append([]shared.EventHandler(nil), p.handlers...)
	p.mu.Unlock()

	for _, event := range events {
		for _, h := range handlers {
			for _, t := range h.EventTypes() {
				if t == event.EventType() {
					_ = h.Handle(ctx, event)
				}
			}
		}
	}
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range p.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

type memoryIdempotencyStore struct {
	mu       sync.Mutex
	keys     map[string]bool
	released []string
	markErr  error
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{keys: make(map[string]bool)}
}

func (s *memoryIdempotencyStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return false, s.markErr
	}
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *memoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key], nil
}

func (s *memoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	s.released = append(s.released, key)
	return nil
}

func (s *memoryIdempotencyStore) Close() error {
	return nil
}

// =============================================================================
// Mock ACL ports
// =============================================================================

type MockProductSellerLookup struct {
	mock.Mock
}

func (m *MockProductSellerLookup) GetSellerIDs(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	args := m.Called(ctx, productIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]uuid.UUID), args.Error(1)
}

type MockSellerProfileLookup struct {
	mock.Mock
}

func (m *MockSellerProfileLookup) GetByUserID(ctx context.Context, sellerID uuid.UUID) (*acl.SellerProfile, error) {
	args := m.Called(ctx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*acl.SellerProfile), args.Error(1)
}

type MockFinancialSettingsQuery struct {
	mock.Mock
}

func (m *MockFinancialSettingsQuery) GetFinancialSettings(ctx context.Context) (*finance.FinancialSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.FinancialSettings), args.Error(1)
}

type MockPaymentSettingsQuery struct {
	mock.Mock
}

func (m *MockPaymentSettingsQuery) GetPaymentSettings(ctx context.Context) (*acl.PaymentSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*acl.PaymentSettings), args.Error(1)
}

type MockSellerRevenueQuery struct {
	mock.Mock
}

func (m *MockSellerRevenueQuery) GetTotalRevenue(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, sellerID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// repoWithdrawnQuery answers GetTotalWithdrawn from the withdrawal repository
type repoWithdrawnQuery struct {
	repo *fakeWithdrawalRepo
}

func (q repoWithdrawnQuery) GetTotalWithdrawn(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, error) {
	return q.repo.SumProcessedSellerRevenue(ctx, sellerID)
}

// =============================================================================
// Fixture
// =============================================================================

var testRetryPolicy = RetryPolicy{MaxAttempts: 5, InitialInterval: time.Millisecond, Multiplier: 2}

type ledgerFixture struct {
	invoiceRepo    *fakeInvoiceRepo
	walletRepo     *fakeWalletRepo
	withdrawalRepo *fakeWithdrawalRepo
	publisher      *recordingPublisher
	callbacks      *memoryIdempotencyStore

	products        *MockProductSellerLookup
	profiles        *MockSellerProfileLookup
	settings        *MockFinancialSettingsQuery
	paymentSettings *MockPaymentSettingsQuery
	revenue         *MockSellerRevenueQuery

	wallets      *WalletService
	invoices     *InvoiceService
	sellerShares *SellerShareService
	withdrawals  *WithdrawalService
	verification *PaymentVerificationService
}

func newLedgerFixture() *ledgerFixture {
	f := &ledgerFixture{
		invoiceRepo:     newFakeInvoiceRepo(),
		walletRepo:      newFakeWalletRepo(),
		withdrawalRepo:  newFakeWithdrawalRepo(),
		publisher:       &recordingPublisher{},
		callbacks:       newMemoryIdempotencyStore(),
		products:        new(MockProductSellerLookup),
		profiles:        new(MockSellerProfileLookup),
		settings:        new(MockFinancialSettingsQuery),
		paymentSettings: new(MockPaymentSettingsQuery),
		revenue:         new(MockSellerRevenueQuery),
	}
	scope := NewNoOpTransactionScope(f.invoiceRepo, f.walletRepo, f.withdrawalRepo)

	f.wallets = NewWalletService(WalletServiceConfig{
		Scope:          scope,
		WalletRepo:     f.walletRepo,
		EventPublisher: f.publisher,
		RetryPolicy:    testRetryPolicy,
	})
	f.invoices = NewInvoiceService(InvoiceServiceConfig{
		Scope:           scope,
		InvoiceRepo:     f.invoiceRepo,
		Wallets:         f.wallets,
		PaymentSettings: f.paymentSettings,
		EventPublisher:  f.publisher,
		RetryPolicy:     testRetryPolicy,
	})
	f.sellerShares = NewSellerShareService(SellerShareServiceConfig{
		InvoiceRepo: f.invoiceRepo,
		Wallets:     f.wallets,
		Products:    f.products,
		Profiles:    f.profiles,
		Settings:    f.settings,
	})
	f.withdrawals = NewWithdrawalService(WithdrawalServiceConfig{
		Scope:           scope,
		WithdrawalRepo:  f.withdrawalRepo,
		WalletRepo:      f.walletRepo,
		Revenue:         f.revenue,
		Withdrawn:       repoWithdrawnQuery{repo: f.withdrawalRepo},
		PaymentSettings: f.paymentSettings,
		EventPublisher:  f.publisher,
		RetryPolicy:     testRetryPolicy,
	})
	f.verification = NewPaymentVerificationService(PaymentVerificationServiceConfig{
		Scope:          scope,
		Wallets:        f.wallets,
		Withdrawals:    f.withdrawals,
		CallbackStore:  f.callbacks,
		EventPublisher: f.publisher,
		RetryPolicy:    testRetryPolicy,
	})
	return f
}

// seedInvoice stores a draft invoice with one product line per price
func (f *ledgerFixture) seedInvoice(owner finance.Owner, prices ...string) *finance.Invoice {
	inv, err := finance.NewInvoice(finance.GenerateInvoiceNumber(time.Now()), "Order", valueobject.IRR, owner, nil)
	if err != nil {
		panic(err)
	}
	for _, price := range prices {
		productID := uuid.New()
		if _, err := inv.AddItem(finance.InvoiceItemInput{
			Name:        "Product",
			Type:        finance.InvoiceItemTypeProduct,
			ReferenceID: &productID,
			Quantity:    1,
			UnitPrice:   decimal.RequireFromString(price),
		}); err != nil {
			panic(err)
		}
	}
	inv.ClearDomainEvents()
	f.invoiceRepo.put(inv)
	return inv
}

// fundWallet stores a wallet holding amount
func (f *ledgerFixture) fundWallet(owner finance.Owner, amount string) *finance.WalletAccount {
	w, err := finance.NewWalletAccount(owner, valueobject.IRR)
	if err != nil {
		panic(err)
	}
	if _, err := w.Credit(finance.WalletEntry{
		Amount:    decimal.RequireFromString(amount),
		Reference: finance.GenerateReference(finance.ReferencePrefixWalletDeposit, time.Now()),
	}); err != nil {
		panic(err)
	}
	w.ClearDomainEvents()
	f.walletRepo.put(w)
	return w
}
