package db

import (
	"context"
	"errors"
	"time"

	"github.com/aglago/g-clients-sub000/internal/models"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned when a conditional create finds an existing document.
	ErrAlreadyExists = errors.New("document already exists")
)

// UserRepository defines the interface for user data storage operations.
// Email uniqueness is enforced by the store, Create returns ErrAlreadyExists on collision.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, userID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, userID string) error
	ListByRole(ctx context.Context, role models.Role) ([]*models.User, error)
	CountByRole(ctx context.Context, role models.Role) (int, error)
}

// TrackRepository defines the interface for track data storage operations.
type TrackRepository interface {
	Create(ctx context.Context, track *models.Track) error
	GetByID(ctx context.Context, trackID string) (*models.Track, error)
	GetBySlug(ctx context.Context, slug string) (*models.Track, error)
	List(ctx context.Context) ([]*models.Track, error)
	Update(ctx context.Context, track *models.Track) error
	Delete(ctx context.Context, trackID string) error
}

// CourseRepository defines the interface for course data storage operations.
type CourseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	GetByID(ctx context.Context, courseID string) (*models.Course, error)
	List(ctx context.Context, trackID string) ([]*models.Course, error) // Empty trackID lists all courses
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, courseID string) error
}

// EnrollmentRepository defines the interface for enrollment data storage operations.
type EnrollmentRepository interface {
	// FindByLearnerAndTrack returns the enrollment for the pair, or ErrNotFound.
	FindByLearnerAndTrack(ctx context.Context, learnerID, trackID string) (*models.TrackEnrollment, error)
	// CreateIfAbsent atomically creates the enrollment unless an effective one already exists
	// for the pair, in which case it returns ErrAlreadyExists. A cancelled enrollment is replaced.
	CreateIfAbsent(ctx context.Context, enrollment *models.TrackEnrollment) error
	GetByID(ctx context.Context, enrollmentID string) (*models.TrackEnrollment, error)
	ListByLearner(ctx context.Context, learnerID string) ([]*models.TrackEnrollment, error)
	List(ctx context.Context) ([]*models.TrackEnrollment, error)
	Update(ctx context.Context, enrollment *models.TrackEnrollment) error
	DeleteByLearner(ctx context.Context, learnerID string) error
	// UpsertRegistration writes a course registration; it is idempotent on the registration ID.
	UpsertRegistration(ctx context.Context, registration *models.CourseRegistration) error
	ListRegistrations(ctx context.Context, learnerID string) ([]*models.CourseRegistration, error)
}

// InvoiceRepository defines the interface for invoice data storage operations.
type InvoiceRepository interface {
	// Create stores the invoice. When invoice.ID is set the write is conditional and
	// returns ErrAlreadyExists if that ID is taken; otherwise an ID is generated.
	Create(ctx context.Context, invoice *models.Invoice) error
	GetByID(ctx context.Context, invoiceID string) (*models.Invoice, error)
	ListByLearner(ctx context.Context, learnerID string) ([]*models.Invoice, error)
	List(ctx context.Context) ([]*models.Invoice, error)
	Update(ctx context.Context, invoice *models.Invoice) error
}

// CheckoutRepository stores checkout intents.
type CheckoutRepository interface {
	Create(ctx context.Context, intent *models.CheckoutIntent) error
	GetByID(ctx context.Context, intentID string) (*models.CheckoutIntent, error)
	Update(ctx context.Context, intent *models.CheckoutIntent) error
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*models.CheckoutIntent, error)
}

// OutboxRepository stores notifications awaiting delivery.
type OutboxRepository interface {
	// Create is conditional on message.ID; an existing ID yields ErrAlreadyExists.
	Create(ctx context.Context, message *models.OutboxMessage) error
	GetByID(ctx context.Context, messageID string) (*models.OutboxMessage, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.OutboxMessage, error)
	Update(ctx context.Context, message *models.OutboxMessage) error
}

// AuditRepository defines the interface for audit log data storage operations.
type AuditRepository interface {
	Create(ctx context.Context, logEntry models.AuditLog) error
}

// Store bundles every repository so a backend can be swapped in one place.
type Store struct {
	Users       UserRepository
	Tracks      TrackRepository
	Courses     CourseRepository
	Enrollments EnrollmentRepository
	Invoices    InvoiceRepository
	Checkouts   CheckoutRepository
	Outbox      OutboxRepository
	Audit       AuditRepository
}
