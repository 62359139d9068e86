package handlers

import (
	"io"
	"net/http"

	"ridelink/internal/services"
	"ridelink/internal/utils"
	"ridelink/pkg/logger"
	"ridelink/pkg/payment"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	reconciliationService services.ReconciliationService
	stripeProvider        *payment.StripeProvider
	logger                *logger.Logger
}

func NewPaymentHandler(reconciliationService services.ReconciliationService, stripeProvider *payment.StripeProvider, logger *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		reconciliationService: reconciliationService,
		stripeProvider:        stripeProvider,
		logger:                logger,
	}
}

// MpesaCallback receives STK push results from Daraja. Malformed payloads get
// a 400; everything else is acknowledged so the provider stops retrying, with
// a 500 only for internal failures where a retry can still succeed.
func (h *PaymentHandler) MpesaCallback(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ResultCode": 1, "ResultDesc": "Invalid payload"})
		return
	}

	callback, err := payment.ParseMpesaCallback(body)
	if err != nil || callback.CheckoutRequestID == "" {
		h.logger.WithError(err).Warn("Unparseable M-Pesa callback")
		c.JSON(http.StatusBadRequest, gin.H{"ResultCode": 1, "ResultDesc": "Invalid payload"})
		return
	}

	outcome, err := h.reconciliationService.HandleMpesaCallback(c.Request.Context(), callback)
	if err != nil {
		h.logger.WithError(err).WithCorrelationID(callback.CheckoutRequestID).Error("Failed to process M-Pesa callback")
		c.JSON(http.StatusInternalServerError, gin.H{"ResultCode": 1, "ResultDesc": "Processing failed"})
		return
	}

	h.logger.WithCorrelationID(callback.CheckoutRequestID).WithField("outcome", int(outcome)).Info("M-Pesa callback handled")
	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}

// StripeWebhook receives checkout events. Signature failures are 400 and are
// never processed; processing failures are 500 so the provider redelivers.
func (h *PaymentHandler) StripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "invalid payload")
		return
	}

	event, err := h.stripeProvider.ValidateWebhook(c.Request.Context(), body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.logger.WithError(err).Warn("Stripe webhook signature verification failed")
		c.String(http.StatusBadRequest, "signature verification failed")
		return
	}

	outcome, err := h.reconciliationService.HandleCheckoutEvent(c.Request.Context(), event)
	if err != nil {
		h.logger.WithError(err).WithCorrelationID(event.SessionID).Error("Failed to process checkout event")
		c.String(http.StatusInternalServerError, "processing failed")
		return
	}

	h.logger.WithCorrelationID(event.SessionID).WithField("outcome", int(outcome)).Info("Checkout event handled")
	c.String(http.StatusOK, "ok")
}

// QueryStatus polls the provider for a payment's state and reconciles the
// answer, for clients that want to resolve a push the callback never
// reported.
func (h *PaymentHandler) QueryStatus(c *gin.Context) {
	correlationID := c.Query("correlation_id")
	if correlationID == "" {
		utils.BadRequestResponse(c, "correlation_id is required")
		return
	}

	transaction, _, err := h.reconciliationService.QueryPaymentStatus(c.Request.Context(), correlationID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Payment status retrieved successfully", transaction)
}
