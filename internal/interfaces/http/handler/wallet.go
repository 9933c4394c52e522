package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	financeapp "github.com/shopledger/backend/internal/application/finance"
	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopledger/backend/internal/domain/shared"
	"github.com/shopledger/backend/internal/domain/shared/valueobject"
)

// WalletUseCases is the part of the wallet service the handler drives
type WalletUseCases interface {
	GetAccount(ctx context.Context, owner finance.Owner, currency valueobject.Currency) (*finance.WalletAccount, error)
	LockAccount(ctx context.Context, accountID uuid.UUID, reason string) (*finance.WalletAccount, error)
	UnlockAccount(ctx context.Context, accountID uuid.UUID) (*finance.WalletAccount, error)
}

// WalletTopUpIssuer creates top-up invoices
type WalletTopUpIssuer interface {
	CreateWalletTopUp(ctx context.Context, req financeapp.WalletTopUpRequest) (*finance.Invoice, error)
}

// WalletHandler handles wallet endpoints
type WalletHandler struct {
	BaseHandler
	wallets WalletUseCases
	topUps  WalletTopUpIssuer
}

// NewWalletHandler creates a new WalletHandler
func NewWalletHandler(wallets WalletUseCases, topUps WalletTopUpIssuer, adminRole string) *WalletHandler {
	return &WalletHandler{
		BaseHandler: BaseHandler{AdminRole: adminRole},
		wallets:     wallets,
		topUps:      topUps,
	}
}

// CreateTopUp godoc
//
//	@ID				createWalletTopUp
//	@Summary		Top up the caller's wallet
//	@Description	Issue a WALLET_CHARGE invoice for the caller. The wallet is credited once the invoice is paid through the gateway.
//	@Tags			wallets
//	@Accept			json
//	@Produce		json
//	@Param			request	body		WalletTopUpRequest	true	"Top-up"
//	@Success		201		{object}	APIResponse[InvoiceResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/wallets/top-ups [post]
func (h *WalletHandler) CreateTopUp(c *gin.Context) {
	userID, ok := h.actorID(c)
	if !ok {
		return
	}
	var req WalletTopUpRequest
	if !h.bind(c, &req) {
		return
	}

	inv, err := h.topUps.CreateWalletTopUp(c.Request.Context(), financeapp.WalletTopUpRequest{
		UserID:      userID,
		Amount:      req.Amount,
		Currency:    currencyOf(req.Currency),
		Description: req.Description,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ToInvoiceResponse(inv))
}

// GetWallet godoc
//
//	@ID				getWallet
//	@Summary		Get an owner's wallet
//	@Description	Return the wallet and its balance. A wallet that was never used is reported with a zero balance.
//	@Tags			wallets
//	@Produce		json
//	@Param			ownerKind		path		string	true	"Owner kind"	Enums(USER, SELLER, PLATFORM)
//	@Param			ownerId			path		string	true	"Owner id, ignored for PLATFORM"
//	@Param			currency		query		string	false	"Currency"		default(IRR)
//	@Param			transactions	query		int		false	"Recent movements to include"	default(20)
//	@Success		200				{object}	APIResponse[WalletResponse]
//	@Failure		403				{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/wallets/{ownerKind}/{ownerId} [get]
func (h *WalletHandler) GetWallet(c *gin.Context) {
	var q WalletQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.handleQueryError(c, err)
		return
	}
	ownerID := c.Param("ownerId")
	kind, err := finance.ParseOwnerKind(c.Param("ownerKind"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if kind == finance.OwnerKindPlatform {
		ownerID = ""
	}
	owner, ok := h.queryOwner(c, string(kind), ownerID)
	if !ok || !h.authorizeOwner(c, owner) {
		return
	}

	limit := q.Transactions
	if c.Query("transactions") == "" {
		limit = defaultWalletTransactions
	}
	currency := currencyOf(q.Currency).OrDefault()

	account, err := h.wallets.GetAccount(c.Request.Context(), owner, currency)
	if errors.Is(err, shared.ErrNotFound) {
		h.Success(c, WalletResponse{
			Owner:        owner,
			Currency:     string(currency),
			Transactions: []finance.WalletTransaction{},
		})
		return
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToWalletResponse(account, limit))
}

// LockWallet godoc
//
//	@ID				lockWallet
//	@Summary		Lock a wallet
//	@Description	Block debits on a wallet. Credits are still accepted.
//	@Tags			wallets
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Wallet ID"	format(uuid)
//	@Param			request	body		LockWalletRequest	true	"Reason"
//	@Success		200		{object}	APIResponse[WalletResponse]
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/wallets/{id}/lock [post]
func (h *WalletHandler) LockWallet(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req LockWalletRequest
	if !h.bind(c, &req) {
		return
	}

	account, err := h.wallets.LockAccount(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToWalletResponse(account, 0))
}

// UnlockWallet godoc
//
//	@ID				unlockWallet
//	@Summary		Unlock a wallet
//	@Tags			wallets
//	@Produce		json
//	@Param			id	path		string	true	"Wallet ID"	format(uuid)
//	@Success		200	{object}	APIResponse[WalletResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/wallets/{id}/unlock [post]
func (h *WalletHandler) UnlockWallet(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	account, err := h.wallets.UnlockAccount(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToWalletResponse(account, 0))
}
