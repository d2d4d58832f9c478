package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aglago/g-clients-sub000/internal/db"
	"github.com/aglago/g-clients-sub000/internal/models"
)

// enrollmentService implements the EnrollmentService interface.
type enrollmentService struct {
	enrollmentRepo db.EnrollmentRepository
	logger         *zap.Logger
	now            func() time.Time
}

// NewEnrollmentService creates a new EnrollmentService instance.
func NewEnrollmentService(er db.EnrollmentRepository, logger *zap.Logger) EnrollmentService {
	return &enrollmentService{enrollmentRepo: er, logger: logger, now: time.Now}
}

func (s *enrollmentService) FindEnrollment(ctx context.Context, learnerID, trackID string) (*models.TrackEnrollment, error) {
	e, err := s.enrollmentRepo.FindByLearnerAndTrack(ctx, learnerID, trackID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up enrollment: %w", err)
	}
	if !e.IsEffective() {
		return nil, nil
	}
	return e, nil
}

// Enroll creates the enrollment and registers the learner in each course of the track.
func (s *enrollmentService) Enroll(ctx context.Context, learnerID string, track *models.Track) (*models.TrackEnrollment, error) {
	now := s.now().UTC()
	e := &models.TrackEnrollment{
		LearnerID:  learnerID,
		TrackID:    track.ID,
		Status:     models.EnrollmentActive,
		Progress:   0,
		EnrolledAt: now,
		UpdatedAt:  now,
	}
	if err := s.enrollmentRepo.CreateIfAbsent(ctx, e); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return nil, ErrAlreadyEnrolled
		}
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}

	for _, courseID := range track.CourseIDs {
		reg := &models.CourseRegistration{
			LearnerID:    learnerID,
			CourseID:     courseID,
			TrackID:      track.ID,
			Status:       models.EnrollmentActive,
			RegisteredAt: now,
		}
		if err := s.enrollmentRepo.UpsertRegistration(ctx, reg); err != nil {
			return nil, fmt.Errorf("failed to register course %s: %w", courseID, err)
		}
	}

	s.logger.Info("learner enrolled", zap.String("learnerId", learnerID), zap.String("trackId", track.ID))
	return e, nil
}

func (s *enrollmentService) ListForLearner(ctx context.Context, learnerID string) ([]*models.TrackEnrollment, error) {
	out, err := s.enrollmentRepo.ListByLearner(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return out, nil
}

func (s *enrollmentService) ListEnrollments(ctx context.Context) ([]*models.TrackEnrollment, error) {
	out, err := s.enrollmentRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return out, nil
}

// UpdateEnrollment sets progress and status. Reaching 100% completes the enrollment;
// an explicit status in req takes precedence.
func (s *enrollmentService) UpdateEnrollment(ctx context.Context, enrollmentID string, req models.UpdateEnrollmentRequest) (*models.TrackEnrollment, error) {
	e, err := s.enrollmentRepo.GetByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}

	now := s.now().UTC()
	if req.Progress != nil {
		if *req.Progress < 0 || *req.Progress > 100 {
			return nil, fmt.Errorf("%w: progress must be between 0 and 100", ErrValidation)
		}
		e.Progress = *req.Progress
		if e.Progress == 100 {
			e.Status = models.EnrollmentCompleted
		}
	}
	if req.Status != nil {
		switch *req.Status {
		case models.EnrollmentActive, models.EnrollmentCompleted, models.EnrollmentCancelled:
			e.Status = *req.Status
		default:
			return nil, fmt.Errorf("%w: unknown enrollment status %q", ErrValidation, *req.Status)
		}
	}

	switch {
	case e.Status == models.EnrollmentCompleted && e.CompletedAt == nil:
		e.CompletedAt = &now
	case e.Status != models.EnrollmentCompleted:
		e.CompletedAt = nil
	}
	e.UpdatedAt = now

	if err := s.enrollmentRepo.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to update enrollment: %w", err)
	}
	return e, nil
}
