package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aglago/g-clients-sub000/internal/core"
	"github.com/aglago/g-clients-sub000/internal/middleware"
	"github.com/aglago/g-clients-sub000/internal/models"
)

// CheckoutHandler handles the checkout endpoints.
type CheckoutHandler struct {
	checkout core.CheckoutService
	logger   *zap.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(cs core.CheckoutService, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: cs, logger: logger}
}

func checkoutMessage(res *core.CheckoutResult) string {
	if res.PendingPayment {
		return "Your account is ready but the payment did not go through. Complete it from your invoices to start learning."
	}
	return "Checkout completed successfully. You are now enrolled."
}

// ProcessGuest handles POST /api/checkout/process.
func (h *CheckoutHandler) ProcessGuest(c *gin.Context) {
	var req models.GuestCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.checkout.ProcessGuest(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, CheckoutResponse{Success: true, Message: checkoutMessage(res), CheckoutResult: res})
}

// ProcessAuthenticated handles POST /api/checkout/authenticated.
func (h *CheckoutHandler) ProcessAuthenticated(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, h.logger, core.ErrUnauthorized)
		return
	}

	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.checkout.ProcessAuthenticated(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, CheckoutResponse{Success: true, Message: checkoutMessage(res), CheckoutResult: res})
}

// PayInvoice handles POST /api/portal/invoices/:invoiceId/pay.
func (h *CheckoutHandler) PayInvoice(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, h.logger, core.ErrUnauthorized)
		return
	}

	var req models.PayInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.checkout.RetryPayment(c.Request.Context(), userID, c.Param("invoiceId"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	message := "Payment received. You are now enrolled."
	if res.PendingPayment {
		message = "The payment did not go through. The invoice is still open."
	}
	c.JSON(http.StatusOK, CheckoutResponse{Success: true, Message: message, CheckoutResult: res})
}
