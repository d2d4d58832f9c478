package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aglago/g-clients-sub000/internal/core"
)

// statusFor maps a service error to its HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrInvalidCode),
		errors.Is(err, core.ErrInvalidResetToken),
		errors.Is(err, core.ErrAmountMismatch):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnauthorized),
		errors.Is(err, core.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrForbidden),
		errors.Is(err, core.ErrExistingAccount),
		errors.Is(err, core.ErrEmailNotVerified),
		errors.Is(err, core.ErrInvalidSignupCode):
		return http.StatusForbidden
	case errors.Is(err, core.ErrUserNotFound),
		errors.Is(err, core.ErrTrackNotFound),
		errors.Is(err, core.ErrCourseNotFound),
		errors.Is(err, core.ErrInvoiceNotFound),
		errors.Is(err, core.ErrEnrollmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrAlreadyEnrolled),
		errors.Is(err, core.ErrEmailTaken),
		errors.Is(err, core.ErrInvoiceNotOpen),
		errors.Is(err, core.ErrAlreadyVerified):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as an ErrorResponse. Internal errors are logged and hidden from the client.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		_ = c.Error(err)
		c.JSON(status, ErrorResponse{Message: "An unexpected internal server error occurred."})
		return
	}
	c.JSON(status, ErrorResponse{
		Message:      err.Error(),
		ExistingUser: errors.Is(err, core.ErrExistingAccount),
	})
}

// respondBindError writes a 400 for a request body that failed to decode or validate.
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request payload", Details: err.Error()})
}
