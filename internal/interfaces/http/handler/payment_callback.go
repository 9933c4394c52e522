package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	financeapp "github.com/shopledger/backend/internal/application/finance"
	"github.com/shopledger/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// PaymentVerifier confirms gateway payments
type PaymentVerifier interface {
	VerifyPaymentTransaction(ctx context.Context, req financeapp.VerifyPaymentRequest) (*financeapp.PaymentVerificationResult, error)
}

// PaymentCallbackHandler handles the payment gateway callback.
// The endpoint is called by the gateway and authenticated by a shared secret
// header instead of a JWT.
type PaymentCallbackHandler struct {
	BaseHandler
	verifier PaymentVerifier
}

// NewPaymentCallbackHandler creates a new PaymentCallbackHandler
func NewPaymentCallbackHandler(verifier PaymentVerifier) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{verifier: verifier}
}

// HandleCallback godoc
//
//	@ID				handlePaymentCallback
//	@Summary		Gateway payment callback
//	@Description	Confirm the pending transaction with the given tracking number. Repeated deliveries are acknowledged without effect.
//	@Tags			payment-callbacks
//	@Accept			json
//	@Produce		json
//	@Param			X-Callback-Secret	header		string					false	"Shared secret, required when configured"
//	@Param			request				body		PaymentCallbackRequest	true	"Callback"
//	@Success		200					{object}	APIResponse[financeapp.PaymentVerificationResult]
//	@Failure		401					{object}	ErrorResponse
//	@Failure		404					{object}	ErrorResponse
//	@Failure		422					{object}	ErrorResponse
//	@Router			/payments/callback [post]
func (h *PaymentCallbackHandler) HandleCallback(c *gin.Context) {
	var req PaymentCallbackRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.verifier.VerifyPaymentTransaction(c.Request.Context(), financeapp.VerifyPaymentRequest{
		TrackingNumber:  req.TrackingNumber,
		TransactionCode: req.TransactionCode,
		PaidAmount:      req.PaidAmount,
	})
	if err != nil {
		logger.GetGinLogger(c).Warn("Payment callback not applied",
			zap.String("tracking_number", req.TrackingNumber),
			zap.Error(err),
		)
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
