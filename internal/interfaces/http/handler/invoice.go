package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	financeapp "github.com/shopledger/backend/internal/application/finance"
	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopledger/backend/internal/domain/shared"
)

// InvoiceUseCases is the part of the invoice service the handler drives
type InvoiceUseCases interface {
	GetInvoice(ctx context.Context, id uuid.UUID) (*finance.Invoice, error)
	ListInvoices(ctx context.Context, owner finance.Owner, filter finance.InvoiceFilter) (shared.Paginated[finance.Invoice], error)
	CreateInvoice(ctx context.Context, req financeapp.CreateInvoiceRequest) (*finance.Invoice, error)
	SubmitTransaction(ctx context.Context, invoiceID uuid.UUID, req financeapp.SubmitTransactionRequest) (*financeapp.InvoiceTransactionResult, error)
	UpdateTransaction(ctx context.Context, invoiceID, txID uuid.UUID, input finance.UpdateTransactionInput) (*financeapp.InvoiceTransactionResult, error)
	CancelInvoice(ctx context.Context, invoiceID uuid.UUID, reason string) (*finance.Invoice, error)
	SetShippingAddress(ctx context.Context, invoiceID uuid.UUID, addr finance.ShippingAddress) (*finance.Invoice, error)
	PayInvoice(ctx context.Context, invoiceID uuid.UUID, req financeapp.PayInvoiceRequest) (*financeapp.PayInvoiceResult, error)
	StartGatewayPayment(ctx context.Context, invoiceID uuid.UUID, req financeapp.StartGatewayPaymentRequest) (*financeapp.GatewayPaymentResult, error)
}

// InvoiceHandler handles invoice endpoints
type InvoiceHandler struct {
	BaseHandler
	invoices InvoiceUseCases
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoices InvoiceUseCases, adminRole string) *InvoiceHandler {
	return &InvoiceHandler{
		BaseHandler: BaseHandler{AdminRole: adminRole},
		invoices:    invoices,
	}
}

// CreateInvoice godoc
//
//	@ID				createInvoice
//	@Summary		Create an invoice
//	@Description	Issue a draft invoice with its lines. Non-admin callers may only issue invoices they own.
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateInvoiceRequest	true	"Invoice"
//	@Success		201		{object}	APIResponse[InvoiceResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		403		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if !h.bind(c, &req) {
		return
	}
	cmd, err := req.ToCommand()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !h.authorizeOwner(c, cmd.Owner) {
		return
	}

	inv, err := h.invoices.CreateInvoice(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ToInvoiceResponse(inv))
}

// ListInvoices godoc
//
//	@ID				listInvoices
//	@Summary		List invoices
//	@Description	List the invoices of an owner. Non-admin callers see their own USER invoices unless owner_kind says otherwise.
//	@Tags			invoices
//	@Produce		json
//	@Param			owner_kind	query		string	false	"Owner kind"	Enums(USER, SELLER, PLATFORM)
//	@Param			owner_id	query		string	false	"Owner id"		format(uuid)
//	@Param			status		query		string	false	"Status"		Enums(DRAFT, PARTIALLY_PAID, PAID, CANCELLED)
//	@Param			page		query		int		false	"Page"			default(1)
//	@Param			page_size	query		int		false	"Page size"		default(20)
//	@Param			order_dir	query		string	false	"Order"			Enums(asc, desc)
//	@Success		200			{object}	APIResponse[[]InvoiceResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	var q ListInvoicesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.handleQueryError(c, err)
		return
	}
	owner, ok := h.queryOwner(c, q.OwnerKind, q.OwnerID)
	if !ok || !h.authorizeOwner(c, owner) {
		return
	}

	filter := finance.InvoiceFilter{
		Filter: shared.Filter{Page: q.Page, PageSize: q.PageSize, OrderBy: "created_at", OrderDir: q.OrderDir},
	}
	if q.Status != "" {
		status := finance.InvoiceStatus(q.Status)
		filter.Status = &status
	}

	page, err := h.invoices.ListInvoices(c.Request.Context(), owner, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	items := make([]InvoiceResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, ToInvoiceResponse(&page.Items[i]))
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize, page.TotalPages)
}

// GetInvoice godoc
//
//	@ID				getInvoice
//	@Summary		Get an invoice
//	@Tags			invoices
//	@Produce		json
//	@Param			id	path		string	true	"Invoice ID"	format(uuid)
//	@Success		200	{object}	APIResponse[InvoiceResponse]
//	@Failure		403	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	inv, ok := h.loadAuthorized(c)
	if !ok {
		return
	}
	h.Success(c, ToInvoiceResponse(inv))
}

// SubmitTransaction godoc
//
//	@ID				submitInvoiceTransaction
//	@Summary		Record a payment transaction
//	@Description	Record a payment attempt against an invoice. A duplicate reference is rejected with DUPLICATE_REFERENCE.
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Invoice ID"	format(uuid)
//	@Param			request	body		SubmitTransactionRequest	true	"Transaction"
//	@Success		201		{object}	APIResponse[InvoiceTransactionResponse]
//	@Failure		409		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/{id}/transactions [post]
func (h *InvoiceHandler) SubmitTransaction(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req SubmitTransactionRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.invoices.SubmitTransaction(c.Request.Context(), id, req.ToCommand())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, InvoiceTransactionResponse{
		Invoice:     ToInvoiceResponse(result.Invoice),
		Transaction: result.Transaction,
	})
}

// UpdateTransaction godoc
//
//	@ID				updateInvoiceTransaction
//	@Summary		Update a payment transaction
//	@Description	Change the status, description, metadata or confirmed amount of a transaction
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Invoice ID"		format(uuid)
//	@Param			txId	path		string						true	"Transaction ID"	format(uuid)
//	@Param			request	body		UpdateTransactionRequest	true	"Changes"
//	@Success		200		{object}	APIResponse[InvoiceTransactionResponse]
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/{id}/transactions/{txId} [put]
func (h *InvoiceHandler) UpdateTransaction(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	txID, ok := h.pathUUID(c, "txId")
	if !ok {
		return
	}
	var req UpdateTransactionRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.invoices.UpdateTransaction(c.Request.Context(), id, txID, req.ToInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, InvoiceTransactionResponse{
		Invoice:     ToInvoiceResponse(result.Invoice),
		Transaction: result.Transaction,
	})
}

// CancelInvoice godoc
//
//	@ID				cancelInvoice
//	@Summary		Cancel an invoice
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Invoice ID"	format(uuid)
//	@Param			request	body		CancelInvoiceRequest	false	"Reason"
//	@Success		200		{object}	APIResponse[InvoiceResponse]
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/{id}/cancel [post]
func (h *InvoiceHandler) CancelInvoice(c *gin.Context) {
	inv, ok := h.loadAuthorized(c)
	if !ok {
		return
	}
	var req CancelInvoiceRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}

	inv, err := h.invoices.CancelInvoice(c.Request.Context(), inv.ID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToInvoiceResponse(inv))
}

// SetShippingAddress godoc
//
//	@ID				setInvoiceShippingAddress
//	@Summary		Set the shipping address
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Invoice ID"	format(uuid)
//	@Param			request	body		ShippingAddressRequest	true	"Address"
//	@Success		200		{object}	APIResponse[InvoiceResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/{id}/shipping-address [put]
func (h *InvoiceHandler) SetShippingAddress(c *gin.Context) {
	inv, ok := h.loadAuthorized(c)
	if !ok {
		return
	}
	var req ShippingAddressRequest
	if !h.bind(c, &req) {
		return
	}

	inv, err := h.invoices.SetShippingAddress(c.Request.Context(), inv.ID, req.ToDomain())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToInvoiceResponse(inv))
}

// PayWithWallet godoc
//
//	@ID				payInvoiceWithWallet
//	@Summary		Pay an invoice from the wallet
//	@Description	Debit the owner's wallet and record a succeeded WALLET transaction. Without an amount the whole outstanding amount is paid.
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Invoice ID"	format(uuid)
//	@Param			request	body		PayWithWalletRequest	false	"Payment"
//	@Success		200		{object}	APIResponse[PayWithWalletResponse]
//	@Failure		422		{object}	ErrorResponse	"Insufficient balance or invalid state"
//	@Failure		423		{object}	ErrorResponse	"Wallet locked"
//	@Security		BearerAuth
//	@Router			/invoices/{id}/pay-with-wallet [post]
func (h *InvoiceHandler) PayWithWallet(c *gin.Context) {
	inv, ok := h.loadAuthorized(c)
	if !ok {
		return
	}
	var req PayWithWalletRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}

	result, err := h.invoices.PayInvoice(c.Request.Context(), inv.ID, financeapp.PayInvoiceRequest{
		Amount:      req.Amount,
		Reference:   req.Reference,
		Description: req.Description,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, PayWithWalletResponse{
		Invoice:           ToInvoiceResponse(result.Invoice),
		Transaction:       result.Transaction,
		WalletTransaction: result.WalletTransaction,
		WalletBalance:     result.WalletBalance,
	})
}

// StartGatewayPayment godoc
//
//	@ID				startInvoiceGatewayPayment
//	@Summary		Start an online payment
//	@Description	Record a pending ONLINE_GATEWAY transaction and return the tracking number the gateway will confirm
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Invoice ID"	format(uuid)
//	@Param			request	body		StartGatewayPaymentRequest	false	"Payment"
//	@Success		201		{object}	APIResponse[GatewayPaymentResponse]
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/{id}/gateway-payments [post]
func (h *InvoiceHandler) StartGatewayPayment(c *gin.Context) {
	inv, ok := h.loadAuthorized(c)
	if !ok {
		return
	}
	var req StartGatewayPaymentRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}

	result, err := h.invoices.StartGatewayPayment(c.Request.Context(), inv.ID, financeapp.StartGatewayPaymentRequest{
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ToGatewayPaymentResponse(result))
}

// loadAuthorized loads the invoice named by the id path parameter and checks
// the caller may act on it
func (h *InvoiceHandler) loadAuthorized(c *gin.Context) (*finance.Invoice, bool) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return nil, false
	}
	inv, err := h.invoices.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	if !h.authorizeOwner(c, inv.Owner) {
		return nil, false
	}
	return inv, true
}
