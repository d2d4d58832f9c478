package models

import "encoding/json"

// GuestCheckoutRequest is the body of POST /api/checkout/process.
// PaymentSuccess is a pointer so that an omitted flag is rejected instead of read as false.
type GuestCheckoutRequest struct {
	TrackSlug      string          `json:"trackSlug" binding:"required"`
	FirstName      string          `json:"firstName" binding:"required"`
	LastName       string          `json:"lastName" binding:"required"`
	Email          string          `json:"email" binding:"required,email"`
	Phone          string          `json:"phone" binding:"required"`
	Gender         string          `json:"gender" binding:"required"`
	Location       string          `json:"location" binding:"required"`
	Password       string          `json:"password" binding:"required,min=8"`
	PaymentSuccess *bool           `json:"paymentSuccess" binding:"required"`
	PaymentDetails json.RawMessage `json:"paymentDetails,omitempty"`
}

// CheckoutRequest is the body of POST /api/checkout/authenticated.
type CheckoutRequest struct {
	TrackSlug      string          `json:"trackSlug" binding:"required"`
	PaymentSuccess *bool           `json:"paymentSuccess" binding:"required"`
	PaymentDetails json.RawMessage `json:"paymentDetails,omitempty"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Contact   string `json:"contact,omitempty"`
	Gender    string `json:"gender,omitempty"`
	Location  string `json:"location,omitempty"`
}

// RegisterAdminRequest is the body of POST /api/auth/register-admin.
type RegisterAdminRequest struct {
	FirstName  string `json:"firstName" binding:"required"`
	LastName   string `json:"lastName" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	Contact    string `json:"contact,omitempty"`
	SignupCode string `json:"signupCode" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type VerifyEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6,numeric"`
}

// EmailRequest carries only an email address (resend verification, forgot password).
type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

// UpdateUserRequest carries optional profile changes; nil fields are left untouched.
type UpdateUserRequest struct {
	FirstName    *string `json:"firstName,omitempty"`
	LastName     *string `json:"lastName,omitempty"`
	Contact      *string `json:"contact,omitempty"`
	Gender       *string `json:"gender,omitempty"`
	Location     *string `json:"location,omitempty"`
	Bio          *string `json:"bio,omitempty"`
	ProfileImage *string `json:"profileImage,omitempty"`
}

type CreateTrackRequest struct {
	Name          string  `json:"name" binding:"required"`
	Price         float64 `json:"price" binding:"gte=0"`
	DurationWeeks int     `json:"duration" binding:"gte=0"`
	Instructor    string  `json:"instructor" binding:"required"`
	Picture       string  `json:"picture,omitempty"`
	Description   string  `json:"description" binding:"required"`
}

// UpdateTrackRequest carries optional track changes.
// The slug is kept on rename unless RegenerateSlug is set.
type UpdateTrackRequest struct {
	Name           *string  `json:"name,omitempty"`
	Price          *float64 `json:"price,omitempty" binding:"omitempty,gte=0"`
	DurationWeeks  *int     `json:"duration,omitempty" binding:"omitempty,gte=0"`
	Instructor     *string  `json:"instructor,omitempty"`
	Picture        *string  `json:"picture,omitempty"`
	Description    *string  `json:"description,omitempty"`
	Rating         *float64 `json:"rating,omitempty" binding:"omitempty,gte=0,lte=5"`
	ReviewCount    *int     `json:"reviews,omitempty" binding:"omitempty,gte=0"`
	RegenerateSlug bool     `json:"regenerateSlug,omitempty"`
}

type CreateCourseRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
	TrackID     string `json:"trackId" binding:"required"`
	Picture     string `json:"picture,omitempty"`
}

type UpdateCourseRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	TrackID     *string `json:"trackId,omitempty"`
	Picture     *string `json:"picture,omitempty"`
}

// CreateInvoiceRequest is used by administrators to bill a learner manually.
type CreateInvoiceRequest struct {
	LearnerID string  `json:"learnerId" binding:"required"`
	TrackID   string  `json:"trackId,omitempty"`
	CourseID  string  `json:"courseId,omitempty"`
	Amount    float64 `json:"amount" binding:"gte=0"`
	DueInDays int     `json:"dueInDays,omitempty" binding:"gte=0"`
}

type UpdateInvoiceStatusRequest struct {
	Status         InvoiceStatus   `json:"status" binding:"required"`
	PaymentDetails json.RawMessage `json:"paymentDetails,omitempty"`
}

// PayInvoiceRequest is a learner retrying payment for an unpaid invoice.
type PayInvoiceRequest struct {
	PaymentSuccess *bool           `json:"paymentSuccess" binding:"required"`
	PaymentDetails json.RawMessage `json:"paymentDetails,omitempty"`
}

type UpdateEnrollmentRequest struct {
	Progress *int              `json:"progress,omitempty" binding:"omitempty,gte=0,lte=100"`
	Status   *EnrollmentStatus `json:"status,omitempty"`
}
