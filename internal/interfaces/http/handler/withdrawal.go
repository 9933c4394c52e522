package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	financeapp "github.com/shopledger/backend/internal/application/finance"
	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopledger/backend/internal/domain/shared"
)

// WithdrawalUseCases is the part of the withdrawal service the handler drives
type WithdrawalUseCases interface {
	GetRequest(ctx context.Context, id uuid.UUID) (*finance.WithdrawalRequest, error)
	ListRequests(ctx context.Context, owner finance.Owner, filter finance.WithdrawalRequestFilter) (shared.Paginated[finance.WithdrawalRequest], error)
	CreateRequest(ctx context.Context, req financeapp.CreateWithdrawalRequest) (*finance.WithdrawalRequest, error)
	Approve(ctx context.Context, id, adminID uuid.UUID, notes string) (*finance.WithdrawalRequest, error)
	Reject(ctx context.Context, id, adminID uuid.UUID, notes string) (*finance.WithdrawalRequest, error)
	Process(ctx context.Context, id, adminID uuid.UUID) (*financeapp.ProcessWithdrawalResult, error)
}

// WithdrawalHandler handles withdrawal request endpoints
type WithdrawalHandler struct {
	BaseHandler
	withdrawals WithdrawalUseCases
}

// NewWithdrawalHandler creates a new WithdrawalHandler
func NewWithdrawalHandler(withdrawals WithdrawalUseCases, adminRole string) *WithdrawalHandler {
	return &WithdrawalHandler{
		BaseHandler: BaseHandler{AdminRole: adminRole},
		withdrawals: withdrawals,
	}
}

// CreateWithdrawal godoc
//
//	@ID				createWithdrawal
//	@Summary		Request a withdrawal
//	@Description	Request a payout of the caller's seller revenue or wallet balance. The amount must be available when the request is made.
//	@Tags			withdrawals
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateWithdrawalRequest	true	"Withdrawal"
//	@Success		201		{object}	APIResponse[WithdrawalResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse	"Insufficient balance"
//	@Security		BearerAuth
//	@Router			/withdrawals [post]
func (h *WithdrawalHandler) CreateWithdrawal(c *gin.Context) {
	partyID, ok := h.actorID(c)
	if !ok {
		return
	}
	var req CreateWithdrawalRequest
	if !h.bind(c, &req) {
		return
	}

	wr, err := h.withdrawals.CreateRequest(c.Request.Context(), req.ToCommand(partyID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ToWithdrawalResponse(wr))
}

// ListWithdrawals godoc
//
//	@ID				listWithdrawals
//	@Summary		List withdrawal requests
//	@Description	List the withdrawal requests of a user or seller; defaults to the caller's USER requests
//	@Tags			withdrawals
//	@Produce		json
//	@Param			owner_kind	query		string	false	"Owner kind"	Enums(USER, SELLER)
//	@Param			owner_id	query		string	false	"Owner id"		format(uuid)
//	@Param			status		query		string	false	"Status"		Enums(PENDING, APPROVED, REJECTED, PROCESSED)
//	@Param			type		query		string	false	"Type"			Enums(SELLER_REVENUE, WALLET)
//	@Param			page		query		int		false	"Page"			default(1)
//	@Param			page_size	query		int		false	"Page size"		default(20)
//	@Param			order_dir	query		string	false	"Order"			Enums(asc, desc)
//	@Success		200			{object}	APIResponse[[]WithdrawalResponse]
//	@Security		BearerAuth
//	@Router			/withdrawals [get]
func (h *WithdrawalHandler) ListWithdrawals(c *gin.Context) {
	var q ListWithdrawalsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.handleQueryError(c, err)
		return
	}
	owner, ok := h.queryOwner(c, q.OwnerKind, q.OwnerID)
	if !ok || !h.authorizeOwner(c, owner) {
		return
	}

	filter := finance.WithdrawalRequestFilter{
		Filter: shared.Filter{Page: q.Page, PageSize: q.PageSize, OrderBy: "created_at", OrderDir: q.OrderDir},
	}
	if q.Status != "" {
		status := finance.WithdrawalStatus(q.Status)
		filter.Status = &status
	}
	if q.Type != "" {
		wt := finance.WithdrawalType(q.Type)
		filter.Type = &wt
	}

	page, err := h.withdrawals.ListRequests(c.Request.Context(), owner, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	items := make([]WithdrawalResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, ToWithdrawalResponse(&page.Items[i]))
	}
	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize, page.TotalPages)
}

// GetWithdrawal godoc
//
//	@ID				getWithdrawal
//	@Summary		Get a withdrawal request
//	@Tags			withdrawals
//	@Produce		json
//	@Param			id	path		string	true	"Withdrawal ID"	format(uuid)
//	@Success		200	{object}	APIResponse[WithdrawalResponse]
//	@Failure		403	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/withdrawals/{id} [get]
func (h *WithdrawalHandler) GetWithdrawal(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	wr, err := h.withdrawals.GetRequest(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !h.authorizeOwner(c, wr.Owner) {
		return
	}
	h.Success(c, ToWithdrawalResponse(wr))
}

// ApproveWithdrawal godoc
//
//	@ID				approveWithdrawal
//	@Summary		Approve a withdrawal request
//	@Tags			withdrawals
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Withdrawal ID"	format(uuid)
//	@Param			request	body		WithdrawalDecisionRequest	false	"Notes"
//	@Success		200		{object}	APIResponse[WithdrawalResponse]
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/withdrawals/{id}/approve [post]
func (h *WithdrawalHandler) ApproveWithdrawal(c *gin.Context) {
	h.decide(c, h.withdrawals.Approve)
}

// RejectWithdrawal godoc
//
//	@ID				rejectWithdrawal
//	@Summary		Reject a withdrawal request
//	@Tags			withdrawals
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Withdrawal ID"	format(uuid)
//	@Param			request	body		WithdrawalDecisionRequest	false	"Notes"
//	@Success		200		{object}	APIResponse[WithdrawalResponse]
//	@Failure		422		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/withdrawals/{id}/reject [post]
func (h *WithdrawalHandler) RejectWithdrawal(c *gin.Context) {
	h.decide(c, h.withdrawals.Reject)
}

func (h *WithdrawalHandler) decide(
	c *gin.Context,
	transition func(ctx context.Context, id, adminID uuid.UUID, notes string) (*finance.WithdrawalRequest, error),
) {
	adminID, ok := h.actorID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req WithdrawalDecisionRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}

	wr, err := transition(c.Request.Context(), id, adminID, req.Notes)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToWithdrawalResponse(wr))
}

// ProcessWithdrawal godoc
//
//	@ID				processWithdrawal
//	@Summary		Process an approved withdrawal
//	@Description	Pay out an approved request. Wallet withdrawals debit the wallet immediately; seller payouts are deferred until the gateway confirms the payout transaction.
//	@Tags			withdrawals
//	@Produce		json
//	@Param			id	path		string	true	"Withdrawal ID"	format(uuid)
//	@Success		200	{object}	APIResponse[ProcessWithdrawalResponse]
//	@Failure		422	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/withdrawals/{id}/process [post]
func (h *WithdrawalHandler) ProcessWithdrawal(c *gin.Context) {
	adminID, ok := h.actorID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	result, err := h.withdrawals.Process(c.Request.Context(), id, adminID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ProcessWithdrawalResponse{
		Request:             ToWithdrawalResponse(result.Request),
		Deferred:            result.Deferred,
		PayoutInvoiceID:     result.PayoutInvoiceID,
		PayoutTrackingCode:  result.PayoutTrackingCode,
		WalletTransactionID: result.WalletTransactionID,
	})
}
