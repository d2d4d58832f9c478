package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aglago/g-clients-sub000/internal/db"
	"github.com/aglago/g-clients-sub000/internal/models"
	"github.com/aglago/g-clients-sub000/pkg/cache"
)

const trackSlugCachePrefix = "track:slug:"

// trackService implements the TrackService interface.
// Lookups by slug go through the cache; every write invalidates the affected slugs.
type trackService struct {
	trackRepo  db.TrackRepository
	courseRepo db.CourseRepository
	cache      cache.Cache
	cacheTTL   time.Duration
	audit      AuditService
	logger     *zap.Logger
	now        func() time.Time
}

// NewTrackService creates a new TrackService instance.
func NewTrackService(tr db.TrackRepository, cr db.CourseRepository, c cache.Cache, cacheTTL time.Duration, as AuditService, logger *zap.Logger) TrackService {
	if c == nil {
		c = cache.Noop{}
	}
	return &trackService{
		trackRepo:  tr,
		courseRepo: cr,
		cache:      c,
		cacheTTL:   cacheTTL,
		audit:      as,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *trackService) CreateTrack(ctx context.Context, actorID string, req models.CreateTrackRequest) (*models.Track, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: track name is required", ErrValidation)
	}
	if req.Price < 0 {
		return nil, fmt.Errorf("%w: price cannot be negative", ErrValidation)
	}

	slug, err := UniqueSlug(ctx, s.trackRepo, Slugify(name), "")
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	track := &models.Track{
		Name:          name,
		Slug:          slug,
		Price:         req.Price,
		DurationWeeks: req.DurationWeeks,
		Instructor:    req.Instructor,
		Picture:       req.Picture,
		Description:   req.Description,
		CourseIDs:     []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.trackRepo.Create(ctx, track); err != nil {
		return nil, fmt.Errorf("failed to create track: %w", err)
	}

	s.audit.Record(ctx, models.AuditLog{ActorID: actorID, Action: ActionTrackCreate, TargetType: "track", TargetID: track.ID,
		Details: map[string]interface{}{"slug": track.Slug}})
	return track, nil
}

func (s *trackService) ListTracks(ctx context.Context) ([]*models.Track, error) {
	tracks, err := s.trackRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	return tracks, nil
}

func (s *trackService) GetTrack(ctx context.Context, trackID string) (*models.Track, error) {
	track, err := s.trackRepo.GetByID(ctx, trackID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrTrackNotFound
		}
		return nil, fmt.Errorf("failed to load track: %w", err)
	}
	return track, nil
}

func (s *trackService) GetTrackBySlug(ctx context.Context, slug string) (*models.Track, error) {
	key := trackSlugCachePrefix + slug

	var cached models.Track
	if err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Debug("track cache read failed", zap.String("slug", slug), zap.Error(err))
	}

	track, err := s.trackRepo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrTrackNotFound
		}
		return nil, fmt.Errorf("failed to load track: %w", err)
	}

	if err := cache.SetJSON(ctx, s.cache, key, track, s.cacheTTL); err != nil {
		s.logger.Debug("track cache write failed", zap.String("slug", slug), zap.Error(err))
	}
	return track, nil
}

// UpdateTrack applies the non-nil fields of req. The slug survives a rename unless
// req.RegenerateSlug is set.
func (s *trackService) UpdateTrack(ctx context.Context, actorID, trackID string, req models.UpdateTrackRequest) (*models.Track, error) {
	track, err := s.GetTrack(ctx, trackID)
	if err != nil {
		return nil, err
	}
	oldSlug := track.Slug

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: track name cannot be empty", ErrValidation)
		}
		track.Name = name
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return nil, fmt.Errorf("%w: price cannot be negative", ErrValidation)
		}
		track.Price = *req.Price
	}
	if req.DurationWeeks != nil {
		track.DurationWeeks = *req.DurationWeeks
	}
	if req.Instructor != nil {
		track.Instructor = *req.Instructor
	}
	if req.Picture != nil {
		track.Picture = *req.Picture
	}
	if req.Description != nil {
		track.Description = *req.Description
	}
	if req.Rating != nil {
		track.Rating = *req.Rating
	}
	if req.ReviewCount != nil {
		track.ReviewCount = *req.ReviewCount
	}
	if req.RegenerateSlug {
		slug, err := UniqueSlug(ctx, s.trackRepo, Slugify(track.Name), track.ID)
		if err != nil {
			return nil, err
		}
		track.Slug = slug
	}

	track.UpdatedAt = s.now().UTC()
	if err := s.trackRepo.Update(ctx, track); err != nil {
		return nil, fmt.Errorf("failed to update track: %w", err)
	}
	s.invalidate(ctx, oldSlug, track.Slug)

	s.audit.Record(ctx, models.AuditLog{ActorID: actorID, Action: ActionTrackUpdate, TargetType: "track", TargetID: track.ID,
		Details: map[string]interface{}{"slug": track.Slug, "previousSlug": oldSlug}})
	return track, nil
}

// DeleteTrack removes the track and every course that belongs to it.
func (s *trackService) DeleteTrack(ctx context.Context, actorID, trackID string) error {
	track, err := s.GetTrack(ctx, trackID)
	if err != nil {
		return err
	}

	courses, err := s.courseRepo.List(ctx, trackID)
	if err != nil {
		return fmt.Errorf("failed to list courses of track: %w", err)
	}
	for _, c := range courses {
		if err := s.courseRepo.Delete(ctx, c.ID); err != nil && !errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("failed to delete course %s: %w", c.ID, err)
		}
	}

	if err := s.trackRepo.Delete(ctx, trackID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrTrackNotFound
		}
		return fmt.Errorf("failed to delete track: %w", err)
	}
	s.invalidate(ctx, track.Slug)

	s.audit.Record(ctx, models.AuditLog{ActorID: actorID, Action: ActionTrackDelete, TargetType: "track", TargetID: trackID,
		Details: map[string]interface{}{"slug": track.Slug, "coursesDeleted": len(courses)}})
	return nil
}

func (s *trackService) invalidate(ctx context.Context, slugs ...string) {
	keys := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		keys = append(keys, trackSlugCachePrefix+slug)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("failed to invalidate track cache", zap.Strings("keys", keys), zap.Error(err))
	}
}
