package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	financeapp "github.com/shopledger/backend/internal/application/finance"
)

// SellerShareCharger distributes a paid invoice to its sellers
type SellerShareCharger interface {
	ChargeSellerShare(ctx context.Context, invoiceID uuid.UUID) (*financeapp.SellerShareReport, error)
}

// SellerShareHandler handles the manual seller share endpoint
type SellerShareHandler struct {
	BaseHandler
	charger SellerShareCharger
}

// NewSellerShareHandler creates a new SellerShareHandler
func NewSellerShareHandler(charger SellerShareCharger) *SellerShareHandler {
	return &SellerShareHandler{charger: charger}
}

// ChargeSellerShare godoc
//
//	@ID				chargeSellerShare
//	@Summary		Credit sellers their share of a paid invoice
//	@Description	Runs the seller share distribution again for a paid invoice. Sellers already credited are reported as ALREADY_CREDITED.
//	@Tags			admin
//	@Produce		json
//	@Param			id	path		string	true	"Invoice ID"	format(uuid)
//	@Success		200	{object}	APIResponse[financeapp.SellerShareReport]
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse	"Invoice is not paid"
//	@Security		BearerAuth
//	@Router			/admin/invoices/{id}/seller-share [post]
func (h *SellerShareHandler) ChargeSellerShare(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	report, err := h.charger.ChargeSellerShare(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}
