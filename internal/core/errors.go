package core

import "errors"

// Custom errors returned by the services. Handlers map them to HTTP status codes.
var (
	ErrValidation = errors.New("invalid input")

	ErrUnauthorized       = errors.New("missing or invalid bearer token")
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrForbidden         = errors.New("not allowed to perform this action")
	ErrExistingAccount   = errors.New("an account with this email already exists, please log in to continue")
	ErrEmailNotVerified  = errors.New("email address has not been verified")
	ErrInvalidSignupCode = errors.New("invalid admin signup code")

	ErrUserNotFound       = errors.New("user not found")
	ErrTrackNotFound      = errors.New("track not found")
	ErrCourseNotFound     = errors.New("course not found")
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")

	ErrAlreadyEnrolled = errors.New("learner is already enrolled in this track")
	ErrEmailTaken      = errors.New("email is already registered")
	ErrInvoiceNotOpen  = errors.New("invoice is not awaiting payment")

	ErrInvalidCode       = errors.New("invalid or expired verification code")
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
	ErrAlreadyVerified   = errors.New("email address is already verified")
	ErrAmountMismatch    = errors.New("invoice amount must equal the track price")
)
