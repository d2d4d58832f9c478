package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aglago/g-clients-sub000/internal/core"
	"github.com/aglago/g-clients-sub000/internal/middleware"
	"github.com/aglago/g-clients-sub000/internal/models"
)

// BillingHandler serves invoices to learners and administrators.
type BillingHandler struct {
	invoices core.InvoiceService
	logger   *zap.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(is core.InvoiceService, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{invoices: is, logger: logger}
}

// present returns a copy of inv with its payment details decrypted.
func (h *BillingHandler) present(inv *models.Invoice) *models.Invoice {
	out := *inv
	details, err := h.invoices.PaymentDetails(inv)
	if err != nil {
		h.logger.Warn("failed to open payment details", zap.String("invoiceId", inv.ID), zap.Error(err))
		out.PaymentDetails = ""
		return &out
	}
	out.PaymentDetails = details
	return &out
}

func (h *BillingHandler) presentAll(invoices []*models.Invoice) []*models.Invoice {
	out := make([]*models.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, h.present(inv))
	}
	return out
}

// ListMine handles GET /api/portal/invoices.
func (h *BillingHandler) ListMine(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, h.logger, core.ErrUnauthorized)
		return
	}
	invoices, err := h.invoices.ListForLearner(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, success("", h.presentAll(invoices)))
}

// GetMine handles GET /api/portal/invoices/:invoiceId. Invoices of other learners are reported as missing.
func (h *BillingHandler) GetMine(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, h.logger, core.ErrUnauthorized)
		return
	}
	inv, err := h.invoices.GetInvoice(c.Request.Context(), c.Param("invoiceId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if inv.LearnerID != userID {
		respondError(c, h.logger, core.ErrInvoiceNotFound)
		return
	}
	c.JSON(http.StatusOK, success("", h.present(inv)))
}

// List handles GET /api/admin/invoices, optionally filtered by learnerId.
func (h *BillingHandler) List(c *gin.Context) {
	var (
		invoices []*models.Invoice
		err      error
	)
	if learnerID := c.Query("learnerId"); learnerID != "" {
		invoices, err = h.invoices.ListForLearner(c.Request.Context(), learnerID)
	} else {
		invoices, err = h.invoices.ListInvoices(c.Request.Context())
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, success("", h.presentAll(invoices)))
}

func (h *BillingHandler) Get(c *gin.Context) {
	inv, err := h.invoices.GetInvoice(c.Request.Context(), c.Param("invoiceId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, success("", h.present(inv)))
}

func (h *BillingHandler) Create(c *gin.Context) {
	var req models.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	actorID, _ := middleware.UserID(c)
	inv, err := h.invoices.CreateInvoice(c.Request.Context(), actorID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, success("Invoice created", h.present(inv)))
}

// UpdateStatus handles PATCH /api/admin/invoices/:invoiceId/status.
func (h *BillingHandler) UpdateStatus(c *gin.Context) {
	var req models.UpdateInvoiceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	actorID, _ := middleware.UserID(c)
	inv, err := h.invoices.SetStatus(c.Request.Context(), actorID, c.Param("invoiceId"), req.Status, req.PaymentDetails)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, success("Invoice updated", h.present(inv)))
}
