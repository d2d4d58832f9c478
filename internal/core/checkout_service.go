package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aglago/g-clients-sub000/internal/crypto"
	"github.com/aglago/g-clients-sub000/internal/db"
	"github.com/aglago/g-clients-sub000/internal/models"
)

const (
	resumeBatchSize   = 50
	maxResumeAttempts = 10
)

// CheckoutConfig holds checkout behaviour switches.
type CheckoutConfig struct {
	// AutoVerify marks accounts created at checkout as verified.
	AutoVerify bool
}

// checkoutService implements the CheckoutService interface.
//
// A checkout is recorded as a pending intent before anything else is written. The
// enrollment, the invoice and the email are then applied in order, each idempotent on the
// intent: the enrollment ID derives from (learner, track), the invoice ID is the intent ID
// and the outbox key is the intent ID plus the email kind. An intent that stops half way
// stays pending and is resumed by ResumePending.
type checkoutService struct {
	userRepo     db.UserRepository
	checkoutRepo db.CheckoutRepository
	tracks       TrackService
	enrollments  EnrollmentService
	invoices     InvoiceService
	notifier     Notifier
	tokens       TokenIssuer
	sealer       *crypto.Sealer
	audit        AuditService
	cfg          CheckoutConfig
	logger       *zap.Logger
	now          func() time.Time
}

// CheckoutDeps groups the collaborators of the checkout service.
type CheckoutDeps struct {
	Store       *db.Store
	Tracks      TrackService
	Enrollments EnrollmentService
	Invoices    InvoiceService
	Notifier    Notifier
	Tokens      TokenIssuer
	Sealer      *crypto.Sealer
	Audit       AuditService
}

// NewCheckoutService creates a new CheckoutService instance.
func NewCheckoutService(deps CheckoutDeps, cfg CheckoutConfig, logger *zap.Logger) CheckoutService {
	return &checkoutService{
		userRepo:     deps.Store.Users,
		checkoutRepo: deps.Store.Checkouts,
		tracks:       deps.Tracks,
		enrollments:  deps.Enrollments,
		invoices:     deps.Invoices,
		notifier:     deps.Notifier,
		tokens:       deps.Tokens,
		sealer:       deps.Sealer,
		audit:        deps.Audit,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

// ProcessGuest checks out a caller without a session. The email must not belong to an
// existing account; a new learner account is created and logged in.
func (s *checkoutService) ProcessGuest(ctx context.Context, req models.GuestCheckoutRequest) (*CheckoutResult, error) {
	if req.PaymentSuccess == nil {
		return nil, fmt.Errorf("%w: paymentSuccess is required", ErrValidation)
	}

	track, err := s.tracks.GetTrackBySlug(ctx, req.TrackSlug)
	if err != nil {
		return nil, err
	}

	email := models.NormalizeEmail(req.Email)
	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, ErrExistingAccount
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}

	details, err := SealPaymentDetails(s.sealer, req.PaymentDetails)
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &models.User{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleLearner,
		Contact:      req.Phone,
		Gender:       req.Gender,
		Location:     req.Location,
		IsVerified:   s.cfg.AutoVerify,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !user.IsVerified {
		code, expiresAt, err := s.tokens.IssueOneTimeCode()
		if err != nil {
			return nil, err
		}
		user.VerificationCode = code
		user.VerificationCodeExpiresAt = &expiresAt
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return nil, ErrExistingAccount
		}
		return nil, fmt.Errorf("failed to create learner: %w", err)
	}
	s.logger.Info("learner created at checkout", zap.String("userId", user.ID), zap.String("trackId", track.ID))

	if !user.IsVerified {
		if err := s.notifier.SendVerification(ctx, user, user.VerificationCode); err != nil {
			s.logger.Warn("verification email not queued", zap.String("userId", user.ID), zap.Error(err))
		}
	}

	intent := s.newIntent(user, track, *req.PaymentSuccess, details, true)
	res, err := s.start(ctx, intent, user, track)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.IssueToken(user)
	if err != nil {
		return nil, err
	}
	res.Token = token
	res.AutoLogin = true
	res.User = user
	return res, nil
}

// ProcessAuthenticated checks out the learner identified by the bearer token. Only verified
// learners may check out; a token is only reissued when the payment succeeded.
func (s *checkoutService) ProcessAuthenticated(ctx context.Context, learnerID string, req models.CheckoutRequest) (*CheckoutResult, error) {
	if req.PaymentSuccess == nil {
		return nil, fmt.Errorf("%w: paymentSuccess is required", ErrValidation)
	}

	user, err := s.userRepo.GetByID(ctx, learnerID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load learner: %w", err)
	}
	if user.Role != models.RoleLearner {
		return nil, ErrForbidden
	}
	if !user.IsVerified {
		return nil, ErrEmailNotVerified
	}

	track, err := s.tracks.GetTrackBySlug(ctx, req.TrackSlug)
	if err != nil {
		return nil, err
	}

	if existing, err := s.enrollments.FindEnrollment(ctx, user.ID, track.ID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrAlreadyEnrolled
	}

	details, err := SealPaymentDetails(s.sealer, req.PaymentDetails)
	if err != nil {
		return nil, err
	}

	intent := s.newIntent(user, track, *req.PaymentSuccess, details, false)
	res, err := s.start(ctx, intent, user, track)
	if err != nil {
		return nil, err
	}

	res.User = user
	if intent.PaymentSuccess {
		token, err := s.tokens.IssueToken(user)
		if err != nil {
			return nil, err
		}
		res.Token = token
		res.AutoLogin = true
	}
	return res, nil
}

func (s *checkoutService) newIntent(user *models.User, track *models.Track, paid bool, details string, newAccount bool) *models.CheckoutIntent {
	now := s.now().UTC()
	return &models.CheckoutIntent{
		LearnerID:      user.ID,
		TrackID:        track.ID,
		TrackSlug:      track.Slug,
		Amount:         track.Price,
		PaymentSuccess: paid,
		PaymentDetails: details,
		NewAccount:     newAccount,
		Status:         models.CheckoutPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (s *checkoutService) start(ctx context.Context, intent *models.CheckoutIntent, user *models.User, track *models.Track) (*CheckoutResult, error) {
	if err := s.checkoutRepo.Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("failed to record checkout: %w", err)
	}
	return s.apply(ctx, intent, user, track, false)
}

// apply runs the remaining steps of intent. When resuming, an existing enrollment for the
// pair is taken to be the one this intent created.
func (s *checkoutService) apply(ctx context.Context, intent *models.CheckoutIntent, user *models.User, track *models.Track, resuming bool) (*CheckoutResult, error) {
	if intent.PaymentSuccess && intent.EnrollmentID == "" {
		e, err := s.enrollments.Enroll(ctx, user.ID, track)
		switch {
		case err == nil:
			intent.EnrollmentID = e.ID
		case errors.Is(err, ErrAlreadyEnrolled) && resuming:
			intent.EnrollmentID = models.EnrollmentID(user.ID, track.ID)
		case errors.Is(err, ErrAlreadyEnrolled):
			s.finish(ctx, intent, models.CheckoutFailed, err)
			return nil, ErrAlreadyEnrolled
		default:
			s.stall(ctx, intent, err)
			return nil, err
		}
	}

	invoice, err := s.invoices.CreateForCheckout(ctx, intent)
	if err != nil {
		s.stall(ctx, intent, err)
		return nil, err
	}
	intent.InvoiceID = invoice.ID
	if intent.PaymentSuccess {
		if _, err := s.invoices.CancelOpenForTrack(ctx, intent.LearnerID, intent.LearnerID, intent.TrackID, invoice.ID); err != nil {
			s.logger.Warn("failed to cancel superseded invoices", zap.String("checkoutId", intent.ID), zap.Error(err))
		}
	}

	if err := s.notify(ctx, intent, user, track, invoice); err != nil {
		s.stall(ctx, intent, err)
		return nil, err
	}

	s.finish(ctx, intent, models.CheckoutCompleted, nil)
	return &CheckoutResult{
		CheckoutID:     intent.ID,
		InvoiceID:      invoice.ID,
		EnrollmentID:   intent.EnrollmentID,
		PendingPayment: !intent.PaymentSuccess,
	}, nil
}

func (s *checkoutService) notify(ctx context.Context, intent *models.CheckoutIntent, user *models.User, track *models.Track, invoice *models.Invoice) error {
	switch {
	case intent.NewAccount && intent.PaymentSuccess:
		return s.notifier.SendWelcome(ctx, OutboxKey(intent.ID, models.NotifyWelcome), user, track)
	case intent.NewAccount:
		return s.notifier.SendPaymentPending(ctx, OutboxKey(intent.ID, models.NotifyPaymentPending), user, track, invoice)
	case intent.PaymentSuccess:
		return s.notifier.SendEnrollmentConfirmed(ctx, OutboxKey(intent.ID, models.NotifyEnrollmentConfirmed), user, track)
	default:
		return s.notifier.SendPaymentFailed(ctx, OutboxKey(intent.ID, models.NotifyPaymentFailed), user, track, invoice)
	}
}

// stall records a failed step and leaves the intent pending for the reconciler.
func (s *checkoutService) stall(ctx context.Context, intent *models.CheckoutIntent, cause error) {
	intent.Attempts++
	intent.LastError = cause.Error()
	intent.UpdatedAt = s.now().UTC()
	s.logger.Error("checkout step failed",
		zap.String("checkoutId", intent.ID), zap.String("learnerId", intent.LearnerID), zap.Int("attempts", intent.Attempts), zap.Error(cause))
	if err := s.checkoutRepo.Update(ctx, intent); err != nil {
		s.logger.Error("failed to record checkout failure", zap.String("checkoutId", intent.ID), zap.Error(err))
	}
}

// finish closes the intent. Every step is already stored, so a failed write is only logged
// and the reconciler will replay the idempotent steps.
func (s *checkoutService) finish(ctx context.Context, intent *models.CheckoutIntent, status models.CheckoutStatus, cause error) {
	intent.Status = status
	intent.UpdatedAt = s.now().UTC()
	action := ActionCheckoutCompleted
	if cause != nil {
		intent.LastError = cause.Error()
		action = ActionCheckoutFailed
	}
	if err := s.checkoutRepo.Update(ctx, intent); err != nil {
		s.logger.Error("failed to close checkout", zap.String("checkoutId", intent.ID), zap.Error(err))
	}

	s.audit.Record(ctx, models.AuditLog{
		ActorID:    intent.LearnerID,
		Action:     action,
		TargetType: "checkout",
		TargetID:   intent.ID,
		Details: map[string]interface{}{
			"trackId":        intent.TrackID,
			"paymentSuccess": intent.PaymentSuccess,
			"invoiceId":      intent.InvoiceID,
			"newAccount":     intent.NewAccount,
		},
	})
}

// RetryPayment settles an unpaid invoice. A successful payment marks it paid, which enrolls the
// learner in the invoiced track; a failed one leaves it open.
func (s *checkoutService) RetryPayment(ctx context.Context, learnerID, invoiceID string, req models.PayInvoiceRequest) (*CheckoutResult, error) {
	if req.PaymentSuccess == nil {
		return nil, fmt.Errorf("%w: paymentSuccess is required", ErrValidation)
	}

	invoice, err := s.invoices.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.LearnerID != learnerID {
		return nil, ErrInvoiceNotFound
	}
	if !invoice.IsOpen() {
		return nil, ErrInvoiceNotOpen
	}

	user, err := s.userRepo.GetByID(ctx, learnerID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load learner: %w", err)
	}
	var track *models.Track
	if invoice.TrackID != "" {
		if track, err = s.tracks.GetTrack(ctx, invoice.TrackID); err != nil {
			return nil, err
		}
		if existing, err := s.enrollments.FindEnrollment(ctx, learnerID, track.ID); err != nil {
			return nil, err
		} else if existing != nil {
			return nil, ErrAlreadyEnrolled
		}
	}

	res := &CheckoutResult{CheckoutID: invoice.CheckoutID, InvoiceID: invoice.ID}
	if *req.PaymentSuccess {
		if invoice, err = s.invoices.SetStatus(ctx, learnerID, invoice.ID, models.InvoicePaid, req.PaymentDetails); err != nil {
			return nil, err
		}
		if track != nil {
			res.EnrollmentID = models.EnrollmentID(learnerID, track.ID)
			key := "payment-" + invoice.ID + "-" + string(models.NotifyEnrollmentConfirmed)
			if err := s.notifier.SendEnrollmentConfirmed(ctx, key, user, track); err != nil {
				return nil, err
			}
		}
		return res, nil
	}

	res.PendingPayment = true
	if track != nil {
		key := "payment-" + invoice.ID + "-" + uuid.NewString()
		if err := s.notifier.SendPaymentFailed(ctx, key, user, track, invoice); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// ResumePending re-applies intents that have been pending since before olderThan.
func (s *checkoutService) ResumePending(ctx context.Context, olderThan time.Time) (int, error) {
	intents, err := s.checkoutRepo.ListPending(ctx, olderThan, resumeBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending checkouts: %w", err)
	}

	completed := 0
	for _, intent := range intents {
		if intent.Attempts >= maxResumeAttempts {
			s.finish(ctx, intent, models.CheckoutFailed, fmt.Errorf("gave up after %d attempts: %s", intent.Attempts, intent.LastError))
			continue
		}

		user, err := s.userRepo.GetByID(ctx, intent.LearnerID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				s.finish(ctx, intent, models.CheckoutFailed, ErrUserNotFound)
				continue
			}
			return completed, fmt.Errorf("failed to load learner: %w", err)
		}
		track, err := s.tracks.GetTrack(ctx, intent.TrackID)
		if err != nil {
			if errors.Is(err, ErrTrackNotFound) {
				s.finish(ctx, intent, models.CheckoutFailed, err)
				continue
			}
			return completed, err
		}

		if _, err := s.apply(ctx, intent, user, track, true); err != nil {
			s.logger.Warn("resume of checkout failed", zap.String("checkoutId", intent.ID), zap.Error(err))
			continue
		}
		completed++
	}
	return completed, nil
}
