package models

import (
	"strings"
	"time"
)

// Role identifies what a user may do in the system.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleLearner Role = "learner"
)

// User represents an identity record, either an administrator or a learner.
type User struct {
	ID           string `json:"id" firestore:"-"` // Document ID
	FirstName    string `json:"firstName" firestore:"firstName"`
	LastName     string `json:"lastName" firestore:"lastName"`
	Email        string `json:"email" firestore:"email"` // Always stored lower-cased
	PasswordHash string `json:"-" firestore:"passwordHash"`
	Role         Role   `json:"role" firestore:"role"`
	Contact      string `json:"contact,omitempty" firestore:"contact,omitempty"`
	Gender       string `json:"gender,omitempty" firestore:"gender,omitempty"`
	Location     string `json:"location,omitempty" firestore:"location,omitempty"`
	Bio          string `json:"bio,omitempty" firestore:"bio,omitempty"`
	ProfileImage string `json:"profileImage,omitempty" firestore:"profileImage,omitempty"`
	IsVerified   bool   `json:"isVerified" firestore:"isVerified"`

	// One active value at a time; issuing a new code or token overwrites the previous one.
	VerificationCode          string     `json:"-" firestore:"verificationCode,omitempty"`
	VerificationCodeExpiresAt *time.Time `json:"-" firestore:"verificationCodeExpiresAt,omitempty"`
	ResetToken                string     `json:"-" firestore:"resetToken,omitempty"`
	ResetTokenExpiresAt       *time.Time `json:"-" firestore:"resetTokenExpiresAt,omitempty"`

	LastLoginAt *time.Time `json:"lastLoginAt,omitempty" firestore:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt" firestore:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" firestore:"updatedAt"`
}

// FullName joins the first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NormalizeEmail lower-cases and trims an email address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
