package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aglago/g-clients-sub000/internal/crypto"
	"github.com/aglago/g-clients-sub000/internal/db"
	"github.com/aglago/g-clients-sub000/internal/models"
)

// PendingPaymentWindow is how long an unpaid checkout invoice stays due.
const PendingPaymentWindow = 30 * 24 * time.Hour

// invoiceService implements the InvoiceService interface.
type invoiceService struct {
	invoiceRepo db.InvoiceRepository
	userRepo    db.UserRepository
	trackRepo   db.TrackRepository
	courseRepo  db.CourseRepository
	enrollments EnrollmentService
	sealer      *crypto.Sealer
	audit       AuditService
	logger      *zap.Logger
	now         func() time.Time
}

// NewInvoiceService creates a new InvoiceService instance.
func NewInvoiceService(store *db.Store, enrollments EnrollmentService, sealer *crypto.Sealer, as AuditService, logger *zap.Logger) InvoiceService {
	return &invoiceService{
		invoiceRepo: store.Invoices,
		userRepo:    store.Users,
		trackRepo:   store.Tracks,
		courseRepo:  store.Courses,
		enrollments: enrollments,
		sealer:      sealer,
		audit:       as,
		logger:      logger,
		now:         time.Now,
	}
}

// SealPaymentDetails normalises a gateway payload to compact JSON and encrypts it when a key is configured.
func SealPaymentDetails(sealer *crypto.Sealer, details json.RawMessage) (string, error) {
	if len(details) == 0 || string(details) == "null" {
		return "", nil
	}
	var v interface{}
	if err := json.Unmarshal(details, &v); err != nil {
		return "", fmt.Errorf("%w: payment details must be valid JSON", ErrValidation)
	}
	compact, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize payment details: %w", err)
	}
	sealed, err := sealer.Seal(string(compact))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt payment details: %w", err)
	}
	return sealed, nil
}

func (s *invoiceService) CreateForCheckout(ctx context.Context, intent *models.CheckoutIntent) (*models.Invoice, error) {
	issued := intent.CreatedAt
	if issued.IsZero() {
		issued = s.now().UTC()
	}

	inv := &models.Invoice{
		ID:             intent.ID,
		LearnerID:      intent.LearnerID,
		TrackID:        intent.TrackID,
		Amount:         intent.Amount,
		PaymentDetails: intent.PaymentDetails,
		CheckoutID:     intent.ID,
		CreatedAt:      issued,
		UpdatedAt:      issued,
	}
	if intent.PaymentSuccess {
		inv.Status = models.InvoicePaid
		inv.DueDate = issued
		inv.PaidAt = &issued
	} else {
		inv.Status = models.InvoiceUnpaid
		inv.DueDate = issued.Add(PendingPaymentWindow)
	}

	if err := s.invoiceRepo.Create(ctx, inv); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return s.GetInvoice(ctx, intent.ID)
		}
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	return inv, nil
}

// CreateInvoice bills a learner manually. For a track invoice a zero amount is replaced by
// the track price and any other amount must match it.
func (s *invoiceService) CreateInvoice(ctx context.Context, actorID string, req models.CreateInvoiceRequest) (*models.Invoice, error) {
	if _, err := s.userRepo.GetByID(ctx, req.LearnerID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load learner: %w", err)
	}
	if req.TrackID == "" && req.CourseID == "" {
		return nil, fmt.Errorf("%w: an invoice needs a track or a course", ErrValidation)
	}

	amount := req.Amount
	if req.TrackID != "" {
		track, err := s.trackRepo.GetByID(ctx, req.TrackID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return nil, ErrTrackNotFound
			}
			return nil, fmt.Errorf("failed to load track: %w", err)
		}
		if amount == 0 {
			amount = track.Price
		}
		if amount != track.Price {
			return nil, ErrAmountMismatch
		}
	}
	if req.CourseID != "" {
		if _, err := s.courseRepo.GetByID(ctx, req.CourseID); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return nil, ErrCourseNotFound
			}
			return nil, fmt.Errorf("failed to load course: %w", err)
		}
	}
	if amount < 0 {
		return nil, fmt.Errorf("%w: amount cannot be negative", ErrValidation)
	}

	days := req.DueInDays
	if days == 0 {
		days = 30
	}
	now := s.now().UTC()
	inv := &models.Invoice{
		LearnerID: req.LearnerID,
		TrackID:   req.TrackID,
		CourseID:  req.CourseID,
		Amount:    amount,
		DueDate:   now.AddDate(0, 0, days),
		Status:    models.InvoiceUnpaid,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.invoiceRepo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	s.audit.Record(ctx, models.AuditLog{ActorID: actorID, Action: ActionInvoiceCreate, TargetType: "invoice", TargetID: inv.ID,
		Details: map[string]interface{}{"learnerId": inv.LearnerID, "amount": inv.Amount}})
	return inv, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, invoiceID string) (*models.Invoice, error) {
	inv, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	return inv, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context) ([]*models.Invoice, error) {
	out, err := s.invoiceRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return out, nil
}

func (s *invoiceService) ListForLearner(ctx context.Context, learnerID string) ([]*models.Invoice, error) {
	out, err := s.invoiceRepo.ListByLearner(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return out, nil
}

// SetStatus moves an invoice to status. A paid invoice is final. When a track invoice
// becomes paid the learner is enrolled before the invoice is saved.
func (s *invoiceService) SetStatus(ctx context.Context, actorID, invoiceID string, status models.InvoiceStatus, details json.RawMessage) (*models.Invoice, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown invoice status %q", ErrValidation, status)
	}
	inv, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == status {
		return inv, nil
	}
	if inv.Status == models.InvoicePaid {
		return nil, ErrInvoiceNotOpen
	}

	now := s.now().UTC()
	previous := inv.Status
	if status == models.InvoicePaid {
		if inv.TrackID != "" {
			track, err := s.trackRepo.GetByID(ctx, inv.TrackID)
			if err != nil {
				if errors.Is(err, db.ErrNotFound) {
					return nil, ErrTrackNotFound
				}
				return nil, fmt.Errorf("failed to load track: %w", err)
			}
			if _, err := s.enrollments.Enroll(ctx, inv.LearnerID, track); err != nil && !errors.Is(err, ErrAlreadyEnrolled) {
				return nil, err
			}
			if _, err := s.CancelOpenForTrack(ctx, actorID, inv.LearnerID, inv.TrackID, inv.ID); err != nil {
				s.logger.Warn("failed to cancel superseded invoices", zap.String("invoiceId", inv.ID), zap.Error(err))
			}
		}
		sealed, err := SealPaymentDetails(s.sealer, details)
		if err != nil {
			return nil, err
		}
		if sealed != "" {
			inv.PaymentDetails = sealed
		}
		inv.PaidAt = &now
	}

	inv.Status = status
	inv.UpdatedAt = now
	if err := s.invoiceRepo.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to update invoice: %w", err)
	}

	s.audit.Record(ctx, models.AuditLog{ActorID: actorID, Action: ActionInvoiceStatus, TargetType: "invoice", TargetID: inv.ID,
		Details: map[string]interface{}{"from": string(previous), "to": string(status)}})
	return inv, nil
}

func (s *invoiceService) CancelOpenForTrack(ctx context.Context, actorID, learnerID, trackID, keepID string) (int, error) {
	invoices, err := s.invoiceRepo.ListByLearner(ctx, learnerID)
	if err != nil {
		return 0, fmt.Errorf("failed to list invoices: %w", err)
	}

	cancelled := 0
	for _, inv := range invoices {
		if inv.ID == keepID || inv.TrackID != trackID || inv.Status != models.InvoiceUnpaid {
			continue
		}
		inv.Status = models.InvoiceCancelled
		inv.UpdatedAt = s.now().UTC()
		if err := s.invoiceRepo.Update(ctx, inv); err != nil {
			return cancelled, fmt.Errorf("failed to cancel invoice '%s': %w", inv.ID, err)
		}
		cancelled++
		s.audit.Record(ctx, models.AuditLog{ActorID: actorID, Action: ActionInvoiceStatus, TargetType: "invoice", TargetID: inv.ID,
			Details: map[string]interface{}{"from": string(models.InvoiceUnpaid), "to": string(models.InvoiceCancelled), "supersededBy": keepID}})
	}
	return cancelled, nil
}

func (s *invoiceService) PaymentDetails(invoice *models.Invoice) (string, error) {
	return s.sealer.Open(invoice.PaymentDetails)
}
