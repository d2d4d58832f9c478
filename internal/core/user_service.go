package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/aglago/g-clients-sub000/internal/db"
	"github.com/aglago/g-clients-sub000/internal/models"
)

// userService implements the UserService interface.
type userService struct {
	userRepo       db.UserRepository
	enrollmentRepo db.EnrollmentRepository
	audit          AuditService
	logger         *zap.Logger
}

// NewUserService creates a new UserService instance.
func NewUserService(ur db.UserRepository, er db.EnrollmentRepository, as AuditService, logger *zap.Logger) UserService {
	return &userService{userRepo: ur, enrollmentRepo: er, audit: as, logger: logger}
}

func (s *userService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

// UpdateProfile applies the non-nil fields of req. Email and role are not editable here.
func (s *userService) UpdateProfile(ctx context.Context, userID string, req models.UpdateUserRequest) (*models.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&user.FirstName, req.FirstName)
	set(&user.LastName, req.LastName)
	set(&user.Contact, req.Contact)
	set(&user.Gender, req.Gender)
	set(&user.Location, req.Location)
	set(&user.Bio, req.Bio)
	set(&user.ProfileImage, req.ProfileImage)

	if user.FirstName == "" || user.LastName == "" {
		return nil, fmt.Errorf("%w: first and last name cannot be empty", ErrValidation)
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

func (s *userService) ListLearners(ctx context.Context) ([]*models.User, error) {
	learners, err := s.userRepo.ListByRole(ctx, models.RoleLearner)
	if err != nil {
		return nil, fmt.Errorf("failed to list learners: %w", err)
	}
	return learners, nil
}

// DeleteLearner removes a learner with their enrollments. Invoices are kept as billing records.
func (s *userService) DeleteLearner(ctx context.Context, actorID, learnerID string) error {
	user, err := s.GetByID(ctx, learnerID)
	if err != nil {
		return err
	}
	if user.Role != models.RoleLearner {
		return fmt.Errorf("%w: only learner accounts can be deleted here", ErrForbidden)
	}

	if err := s.enrollmentRepo.DeleteByLearner(ctx, learnerID); err != nil {
		return fmt.Errorf("failed to delete learner enrollments: %w", err)
	}
	if err := s.userRepo.Delete(ctx, learnerID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete learner: %w", err)
	}

	s.logger.Info("learner deleted", zap.String("learnerId", learnerID), zap.String("actorId", actorID))
	s.audit.Record(ctx, models.AuditLog{
		ActorID:    actorID,
		Action:     ActionLearnerDelete,
		TargetType: "user",
		TargetID:   learnerID,
		Details:    map[string]interface{}{"email": user.Email},
	})
	return nil
}
