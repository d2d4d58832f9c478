package models

import "time"

type NotificationKind string

const (
	NotifyVerification        NotificationKind = "verification"
	NotifyPasswordReset       NotificationKind = "password_reset"
	NotifyWelcome             NotificationKind = "welcome"
	NotifyEnrollmentConfirmed NotificationKind = "enrollment_confirmed"
	NotifyPaymentPending      NotificationKind = "payment_pending"
	NotifyPaymentFailed       NotificationKind = "payment_failed"
)

type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
	OutboxFailed  OutboxStatus = "failed"
)

// OutboxMessage is a transactional email waiting for (or done with) delivery.
type OutboxMessage struct {
	ID            string           `json:"id" firestore:"-"`
	Kind          NotificationKind `json:"kind" firestore:"kind"`
	To            string           `json:"to" firestore:"to"`
	Subject       string           `json:"subject" firestore:"subject"`
	Body          string           `json:"body" firestore:"body"`
	Status        OutboxStatus     `json:"status" firestore:"status"`
	Attempts      int              `json:"attempts" firestore:"attempts"`
	LastError     string           `json:"lastError,omitempty" firestore:"lastError,omitempty"`
	NextAttemptAt time.Time        `json:"nextAttemptAt" firestore:"nextAttemptAt"`
	CreatedAt     time.Time        `json:"createdAt" firestore:"createdAt"`
	SentAt        *time.Time       `json:"sentAt,omitempty" firestore:"sentAt,omitempty"`
}
