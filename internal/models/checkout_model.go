package models

import "time"

type CheckoutStatus string

const (
	CheckoutPending   CheckoutStatus = "pending"
	CheckoutCompleted CheckoutStatus = "completed"
	CheckoutFailed    CheckoutStatus = "failed"
)

// CheckoutIntent is the durable record of a checkout attempt. It is written before any
// enrollment or invoice so an interrupted checkout can be resumed.
type CheckoutIntent struct {
	ID             string         `json:"id" firestore:"-"`
	LearnerID      string         `json:"learnerId" firestore:"learnerId"`
	TrackID        string         `json:"trackId" firestore:"trackId"`
	TrackSlug      string         `json:"trackSlug" firestore:"trackSlug"`
	Amount         float64        `json:"amount" firestore:"amount"`
	PaymentSuccess bool           `json:"paymentSuccess" firestore:"paymentSuccess"`
	PaymentDetails string         `json:"-" firestore:"paymentDetails,omitempty"`
	NewAccount     bool           `json:"newAccount" firestore:"newAccount"`
	Status         CheckoutStatus `json:"status" firestore:"status"`
	EnrollmentID   string         `json:"enrollmentId,omitempty" firestore:"enrollmentId,omitempty"`
	InvoiceID      string         `json:"invoiceId,omitempty" firestore:"invoiceId,omitempty"`
	Attempts       int            `json:"attempts" firestore:"attempts"`
	LastError      string         `json:"lastError,omitempty" firestore:"lastError,omitempty"`
	CreatedAt      time.Time      `json:"createdAt" firestore:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt" firestore:"updatedAt"`
}
