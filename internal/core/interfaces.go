package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aglago/g-clients-sub000/internal/models"
)

// TokenIssuer creates and validates bearer tokens and the one-time codes stored on a user.
type TokenIssuer interface {
	IssueToken(user *models.User) (string, error)
	ValidateToken(token string) (*Claims, error)
	// IssueOneTimeCode returns a 6 digit email verification code and its expiry.
	IssueOneTimeCode() (string, time.Time, error)
	VerifyOneTimeCode(user *models.User, code string) error
	// IssueResetToken returns the token to mail, the value to store on the user, and its expiry.
	IssueResetToken() (token, stored string, expiresAt time.Time, err error)
	VerifyResetToken(user *models.User, token string) error
}

// AuthResult is returned by flows that log the user in.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// AuthService handles credentials: registration, verification, login and password changes.
type AuthService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	RegisterAdmin(ctx context.Context, req models.RegisterAdminRequest) (*models.User, error)
	VerifyEmail(ctx context.Context, req models.VerifyEmailRequest) (*AuthResult, error)
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, req models.LoginRequest) (*AuthResult, error)
	// ForgotPassword succeeds for unknown emails so the endpoint does not reveal which accounts exist.
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error
	UpdatePassword(ctx context.Context, userID string, req models.UpdatePasswordRequest) error
}

// UserService defines profile and learner administration operations.
type UserService interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, req models.UpdateUserRequest) (*models.User, error)
	ListLearners(ctx context.Context) ([]*models.User, error)
	DeleteLearner(ctx context.Context, actorID, learnerID string) error
}

// TrackService defines catalog operations on tracks.
type TrackService interface {
	CreateTrack(ctx context.Context, actorID string, req models.CreateTrackRequest) (*models.Track, error)
	ListTracks(ctx context.Context) ([]*models.Track, error)
	GetTrack(ctx context.Context, trackID string) (*models.Track, error)
	GetTrackBySlug(ctx context.Context, slug string) (*models.Track, error)
	UpdateTrack(ctx context.Context, actorID, trackID string, req models.UpdateTrackRequest) (*models.Track, error)
	DeleteTrack(ctx context.Context, actorID, trackID string) error
}

// CourseService defines catalog operations on courses. Track course references are kept in sync.
type CourseService interface {
	CreateCourse(ctx context.Context, req models.CreateCourseRequest) (*models.Course, error)
	ListCourses(ctx context.Context, trackID string) ([]*models.Course, error)
	GetCourse(ctx context.Context, courseID string) (*models.Course, error)
	UpdateCourse(ctx context.Context, courseID string, req models.UpdateCourseRequest) (*models.Course, error)
	DeleteCourse(ctx context.Context, actorID, courseID string) error
}

// EnrollmentService defines enrollment operations.
type EnrollmentService interface {
	// FindEnrollment returns the effective enrollment for the pair, or nil when there is none.
	FindEnrollment(ctx context.Context, learnerID, trackID string) (*models.TrackEnrollment, error)
	// Enroll atomically creates an active enrollment; ErrAlreadyEnrolled if one is effective.
	Enroll(ctx context.Context, learnerID string, track *models.Track) (*models.TrackEnrollment, error)
	ListForLearner(ctx context.Context, learnerID string) ([]*models.TrackEnrollment, error)
	ListEnrollments(ctx context.Context) ([]*models.TrackEnrollment, error)
	UpdateEnrollment(ctx context.Context, enrollmentID string, req models.UpdateEnrollmentRequest) (*models.TrackEnrollment, error)
}

// InvoiceService defines billing operations.
type InvoiceService interface {
	// CreateForCheckout issues the invoice of a checkout intent. The invoice ID is the intent ID,
	// so repeating the call returns the existing invoice.
	CreateForCheckout(ctx context.Context, intent *models.CheckoutIntent) (*models.Invoice, error)
	CreateInvoice(ctx context.Context, actorID string, req models.CreateInvoiceRequest) (*models.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (*models.Invoice, error)
	ListInvoices(ctx context.Context) ([]*models.Invoice, error)
	ListForLearner(ctx context.Context, learnerID string) ([]*models.Invoice, error)
	// SetStatus changes an invoice status. Paying a track invoice enrolls the learner.
	SetStatus(ctx context.Context, actorID, invoiceID string, status models.InvoiceStatus, details json.RawMessage) (*models.Invoice, error)
	// CancelOpenForTrack cancels the learner's unpaid invoices for the track, except keepID.
	CancelOpenForTrack(ctx context.Context, actorID, learnerID, trackID, keepID string) (int, error)
	// PaymentDetails returns the decrypted payment payload of an invoice.
	PaymentDetails(invoice *models.Invoice) (string, error)
}

// Notifier composes transactional emails and queues them for delivery.
// The key makes a message idempotent: queuing the same key twice stores one message.
type Notifier interface {
	SendVerification(ctx context.Context, user *models.User, code string) error
	SendPasswordReset(ctx context.Context, user *models.User, token string) error
	SendWelcome(ctx context.Context, key string, user *models.User, track *models.Track) error
	SendEnrollmentConfirmed(ctx context.Context, key string, user *models.User, track *models.Track) error
	SendPaymentPending(ctx context.Context, key string, user *models.User, track *models.Track, invoice *models.Invoice) error
	SendPaymentFailed(ctx context.Context, key string, user *models.User, track *models.Track, invoice *models.Invoice) error
}

// CheckoutResult is the outcome of a checkout or payment retry.
type CheckoutResult struct {
	CheckoutID     string       `json:"checkoutId"`
	AutoLogin      bool         `json:"autoLogin"`
	Token          string       `json:"token,omitempty"`
	User           *models.User `json:"user,omitempty"`
	InvoiceID      string       `json:"invoiceId"`
	EnrollmentID   string       `json:"enrollmentId,omitempty"`
	PendingPayment bool         `json:"pendingPayment,omitempty"`
}

// CheckoutService turns a payment outcome for a track into an account, enrollment, invoice and email.
type CheckoutService interface {
	ProcessGuest(ctx context.Context, req models.GuestCheckoutRequest) (*CheckoutResult, error)
	ProcessAuthenticated(ctx context.Context, learnerID string, req models.CheckoutRequest) (*CheckoutResult, error)
	// RetryPayment settles an unpaid invoice owned by the learner.
	RetryPayment(ctx context.Context, learnerID, invoiceID string, req models.PayInvoiceRequest) (*CheckoutResult, error)
	// ResumePending re-drives intents left pending since before olderThan and returns how many completed.
	ResumePending(ctx context.Context, olderThan time.Time) (int, error)
}

// DashboardService computes admin analytics.
type DashboardService interface {
	Summary(ctx context.Context) (*DashboardSummary, error)
}

// AuditService defines the interface for audit logging operations.
type AuditService interface {
	// Record stores an audit entry. Failures are logged and never returned.
	Record(ctx context.Context, entry models.AuditLog)
}
