package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aglago/g-clients-sub000/internal/db"
	"github.com/aglago/g-clients-sub000/internal/models"
	"github.com/aglago/g-clients-sub000/pkg/cache"
)

// courseService implements the CourseService interface.
type courseService struct {
	courseRepo db.CourseRepository
	trackRepo  db.TrackRepository
	cache      cache.Cache
	audit      AuditService
	now        func() time.Time
}

// NewCourseService creates a new CourseService instance. The cache is the one used by
// TrackService so course changes drop stale track entries.
func NewCourseService(cr db.CourseRepository, tr db.TrackRepository, c cache.Cache, as AuditService) CourseService {
	if c == nil {
		c = cache.Noop{}
	}
	return &courseService{courseRepo: cr, trackRepo: tr, cache: c, audit: as, now: time.Now}
}

func (s *courseService) loadTrack(ctx context.Context, trackID string) (*models.Track, error) {
	track, err := s.trackRepo.GetByID(ctx, trackID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrTrackNotFound
		}
		return nil, fmt.Errorf("failed to load track: %w", err)
	}
	return track, nil
}

func (s *courseService) saveTrack(ctx context.Context, track *models.Track) error {
	track.UpdatedAt = s.now().UTC()
	if err := s.trackRepo.Update(ctx, track); err != nil {
		return fmt.Errorf("failed to update track course list: %w", err)
	}
	_ = s.cache.Delete(ctx, trackSlugCachePrefix+track.Slug)
	return nil
}

func (s *courseService) CreateCourse(ctx context.Context, req models.CreateCourseRequest) (*models.Course, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: course title is required", ErrValidation)
	}
	track, err := s.loadTrack(ctx, req.TrackID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	course := &models.Course{
		Title:       title,
		Description: req.Description,
		TrackID:     track.ID,
		Picture:     req.Picture,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.courseRepo.Create(ctx, course); err != nil {
		return nil, fmt.Errorf("failed to create course: %w", err)
	}

	track.CourseIDs = append(track.CourseIDs, course.ID)
	if err := s.saveTrack(ctx, track); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *courseService) ListCourses(ctx context.Context, trackID string) ([]*models.Course, error) {
	courses, err := s.courseRepo.List(ctx, trackID)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return courses, nil
}

func (s *courseService) GetCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to load course: %w", err)
	}
	return course, nil
}

// UpdateCourse applies the non-nil fields of req. Moving a course to another track moves its
// reference between the two tracks' course lists.
func (s *courseService) UpdateCourse(ctx context.Context, courseID string, req models.UpdateCourseRequest) (*models.Course, error) {
	course, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: course title cannot be empty", ErrValidation)
		}
		course.Title = title
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.Picture != nil {
		course.Picture = *req.Picture
	}

	if req.TrackID != nil && *req.TrackID != course.TrackID {
		newTrack, err := s.loadTrack(ctx, *req.TrackID)
		if err != nil {
			return nil, err
		}
		if oldTrack, err := s.loadTrack(ctx, course.TrackID); err == nil {
			oldTrack.RemoveCourse(course.ID)
			if err := s.saveTrack(ctx, oldTrack); err != nil {
				return nil, err
			}
		} else if !errors.Is(err, ErrTrackNotFound) {
			return nil, err
		}
		if !newTrack.HasCourse(course.ID) {
			newTrack.CourseIDs = append(newTrack.CourseIDs, course.ID)
		}
		if err := s.saveTrack(ctx, newTrack); err != nil {
			return nil, err
		}
		course.TrackID = newTrack.ID
	}

	course.UpdatedAt = s.now().UTC()
	if err := s.courseRepo.Update(ctx, course); err != nil {
		return nil, fmt.Errorf("failed to update course: %w", err)
	}
	return course, nil
}

func (s *courseService) DeleteCourse(ctx context.Context, actorID, courseID string) error {
	course, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}

	if track, err := s.loadTrack(ctx, course.TrackID); err == nil {
		track.RemoveCourse(course.ID)
		if err := s.saveTrack(ctx, track); err != nil {
			return err
		}
	} else if !errors.Is(err, ErrTrackNotFound) {
		return err
	}

	if err := s.courseRepo.Delete(ctx, courseID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrCourseNotFound
		}
		return fmt.Errorf("failed to delete course: %w", err)
	}

	s.audit.Record(ctx, models.AuditLog{ActorID: actorID, Action: ActionCourseDelete, TargetType: "course", TargetID: courseID,
		Details: map[string]interface{}{"trackId": course.TrackID}})
	return nil
}
