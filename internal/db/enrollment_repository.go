package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/aglago/g-clients-sub000/internal/models"
)

// firestoreEnrollmentRepository implements the EnrollmentRepository interface using Firestore.
// Enrollment documents are keyed by models.EnrollmentID so a (learner, track) pair maps to one document.
type firestoreEnrollmentRepository struct {
	client *firestore.Client
}

// NewFirestoreEnrollmentRepository creates a new instance of firestoreEnrollmentRepository.
func NewFirestoreEnrollmentRepository(client *firestore.Client) EnrollmentRepository {
	return &firestoreEnrollmentRepository{client: client}
}

func decodeEnrollment(doc *firestore.DocumentSnapshot) (*models.TrackEnrollment, error) {
	var e models.TrackEnrollment
	if err := doc.DataTo(&e); err != nil {
		return nil, err
	}
	e.ID = doc.Ref.ID
	return &e, nil
}

func decodeRegistration(doc *firestore.DocumentSnapshot) (*models.CourseRegistration, error) {
	var reg models.CourseRegistration
	if err := doc.DataTo(&reg); err != nil {
		return nil, err
	}
	reg.ID = doc.Ref.ID
	return &reg, nil
}

func (r *firestoreEnrollmentRepository) FindByLearnerAndTrack(ctx context.Context, learnerID, trackID string) (*models.TrackEnrollment, error) {
	return r.GetByID(ctx, models.EnrollmentID(learnerID, trackID))
}

// CreateIfAbsent runs the read-check-write in a single transaction.
func (r *firestoreEnrollmentRepository) CreateIfAbsent(ctx context.Context, enrollment *models.TrackEnrollment) error {
	enrollment.ID = models.EnrollmentID(enrollment.LearnerID, enrollment.TrackID)
	docRef := r.client.Collection(enrollmentsCollection).Doc(enrollment.ID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		switch {
		case err == nil:
			existing, err := decodeEnrollment(snap)
			if err != nil {
				return err
			}
			if existing.IsEffective() {
				return ErrAlreadyExists
			}
			return tx.Set(docRef, enrollment)
		case isNotFound(err):
			return tx.Create(docRef, enrollment)
		default:
			return err
		}
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) || isAlreadyExists(err) {
			return fmt.Errorf("enrollment '%s': %w", enrollment.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create enrollment '%s': %w", enrollment.ID, err)
	}
	return nil
}

func (r *firestoreEnrollmentRepository) GetByID(ctx context.Context, enrollmentID string) (*models.TrackEnrollment, error) {
	docSnap, err := r.client.Collection(enrollmentsCollection).Doc(enrollmentID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("enrollment '%s' not found: %w", enrollmentID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get enrollment '%s': %w", enrollmentID, err)
	}
	return decodeEnrollment(docSnap)
}

func (r *firestoreEnrollmentRepository) ListByLearner(ctx context.Context, learnerID string) ([]*models.TrackEnrollment, error) {
	iter := r.client.Collection(enrollmentsCollection).Where("learnerId", "==", learnerID).Documents(ctx)
	out, err := collect(iter, decodeEnrollment)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments for learner '%s': %w", learnerID, err)
	}
	return out, nil
}

func (r *firestoreEnrollmentRepository) List(ctx context.Context) ([]*models.TrackEnrollment, error) {
	iter := r.client.Collection(enrollmentsCollection).OrderBy("enrolledAt", firestore.Desc).Documents(ctx)
	out, err := collect(iter, decodeEnrollment)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return out, nil
}

func (r *firestoreEnrollmentRepository) Update(ctx context.Context, enrollment *models.TrackEnrollment) error {
	if enrollment.ID == "" {
		return errors.New("enrollment ID cannot be empty for Update operation")
	}
	if _, err := r.client.Collection(enrollmentsCollection).Doc(enrollment.ID).Set(ctx, enrollment); err != nil {
		return fmt.Errorf("failed to update enrollment '%s': %w", enrollment.ID, err)
	}
	return nil
}

// DeleteByLearner removes a learner's enrollments and course registrations in one batch.
func (r *firestoreEnrollmentRepository) DeleteByLearner(ctx context.Context, learnerID string) error {
	enrollments, err := r.ListByLearner(ctx, learnerID)
	if err != nil {
		return err
	}
	registrations, err := r.ListRegistrations(ctx, learnerID)
	if err != nil {
		return err
	}
	if len(enrollments)+len(registrations) == 0 {
		return nil
	}

	batch := r.client.Batch()
	for _, e := range enrollments {
		batch.Delete(r.client.Collection(enrollmentsCollection).Doc(e.ID))
	}
	for _, reg := range registrations {
		batch.Delete(r.client.Collection(registrationsCollection).Doc(reg.ID))
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to delete enrollments for learner '%s': %w", learnerID, err)
	}
	return nil
}

func (r *firestoreEnrollmentRepository) UpsertRegistration(ctx context.Context, registration *models.CourseRegistration) error {
	registration.ID = models.RegistrationID(registration.LearnerID, registration.CourseID)
	if _, err := r.client.Collection(registrationsCollection).Doc(registration.ID).Set(ctx, registration); err != nil {
		return fmt.Errorf("failed to write course registration '%s': %w", registration.ID, err)
	}
	return nil
}

func (r *firestoreEnrollmentRepository) ListRegistrations(ctx context.Context, learnerID string) ([]*models.CourseRegistration, error) {
	iter := r.client.Collection(registrationsCollection).Where("learnerId", "==", learnerID).Documents(ctx)
	out, err := collect(iter, decodeRegistration)
	if err != nil {
		return nil, fmt.Errorf("failed to list course registrations for learner '%s': %w", learnerID, err)
	}
	return out, nil
}
