package models

import "time"

type InvoiceStatus string

const (
	InvoiceUnpaid    InvoiceStatus = "unpaid"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Valid reports whether s is one of the known invoice statuses.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceUnpaid, InvoicePaid, InvoiceCancelled:
		return true
	}
	return false
}

// Invoice is a billing record for one learner, optionally tied to a track or course.
type Invoice struct {
	ID        string        `json:"id" firestore:"-"`
	LearnerID string        `json:"learnerId" firestore:"learnerId"`
	TrackID   string        `json:"trackId,omitempty" firestore:"trackId,omitempty"`
	CourseID  string        `json:"courseId,omitempty" firestore:"courseId,omitempty"`
	Amount    float64       `json:"amount" firestore:"amount"`
	DueDate   time.Time     `json:"dueDate" firestore:"dueDate"`
	Status    InvoiceStatus `json:"status" firestore:"status"`
	// PaymentDetails holds the serialized gateway payload. Encrypted at rest when a key is configured.
	PaymentDetails string     `json:"paymentDetails,omitempty" firestore:"paymentDetails,omitempty"`
	PaidAt         *time.Time `json:"paymentDate,omitempty" firestore:"paidAt,omitempty"`
	CheckoutID     string     `json:"checkoutId,omitempty" firestore:"checkoutId,omitempty"`
	CreatedAt      time.Time  `json:"createdAt" firestore:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt" firestore:"updatedAt"`
}

// IsOpen reports whether the invoice can still be paid.
func (i *Invoice) IsOpen() bool {
	return i.Status == InvoiceUnpaid
}
