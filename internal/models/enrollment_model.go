package models

import "time"

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
)

// TrackEnrollment links one learner to one track.
// The document ID is derived from the (learner, track) pair, see EnrollmentID.
type TrackEnrollment struct {
	ID          string           `json:"id" firestore:"-"`
	LearnerID   string           `json:"learnerId" firestore:"learnerId"`
	TrackID     string           `json:"trackId" firestore:"trackId"`
	Status      EnrollmentStatus `json:"status" firestore:"status"`
	Progress    int              `json:"progress" firestore:"progress"`
	EnrolledAt  time.Time        `json:"enrollmentDate" firestore:"enrolledAt"`
	CompletedAt *time.Time       `json:"completedAt,omitempty" firestore:"completedAt,omitempty"`
	UpdatedAt   time.Time        `json:"updatedAt" firestore:"updatedAt"`
}

// IsEffective reports whether the enrollment blocks a new enrollment for the same pair.
func (e *TrackEnrollment) IsEffective() bool {
	return e.Status != EnrollmentCancelled
}

// EnrollmentID returns the deterministic document ID for a (learner, track) pair.
func EnrollmentID(learnerID, trackID string) string {
	return learnerID + "_" + trackID
}

// CourseRegistration links a learner to a single course of an enrolled track.
type CourseRegistration struct {
	ID           string           `json:"id" firestore:"-"`
	LearnerID    string           `json:"learnerId" firestore:"learnerId"`
	CourseID     string           `json:"courseId" firestore:"courseId"`
	TrackID      string           `json:"trackId" firestore:"trackId"`
	Status       EnrollmentStatus `json:"status" firestore:"status"`
	RegisteredAt time.Time        `json:"registeredAt" firestore:"registeredAt"`
}

// RegistrationID returns the deterministic document ID for a (learner, course) pair.
func RegistrationID(learnerID, courseID string) string {
	return learnerID + "_" + courseID
}
