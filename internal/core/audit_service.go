package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aglago/g-clients-sub000/internal/db"
	"github.com/aglago/g-clients-sub000/internal/models"
)

// Audit actions.
const (
	ActionCheckoutCompleted = "CHECKOUT_COMPLETED"
	ActionCheckoutFailed    = "CHECKOUT_FAILED"
	ActionTrackCreate       = "TRACK_CREATE"
	ActionTrackUpdate       = "TRACK_UPDATE"
	ActionTrackDelete       = "TRACK_DELETE"
	ActionCourseDelete      = "COURSE_DELETE"
	ActionLearnerDelete     = "LEARNER_DELETE"
	ActionInvoiceCreate     = "INVOICE_CREATE"
	ActionInvoiceStatus     = "INVOICE_STATUS_CHANGE"
)

// auditService implements the AuditService interface.
type auditService struct {
	auditRepo db.AuditRepository
	logger    *zap.Logger
}

// NewAuditService creates a new AuditService instance.
func NewAuditService(auditRepo db.AuditRepository, logger *zap.Logger) AuditService {
	return &auditService{auditRepo: auditRepo, logger: logger}
}

func (s *auditService) Record(ctx context.Context, entry models.AuditLog) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("action", entry.Action),
			zap.String("targetId", entry.TargetID),
			zap.Error(err),
		)
	}
}
