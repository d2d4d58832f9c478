package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/aglago/g-clients-sub000/internal/models"
)

// firestoreTrackRepository implements the TrackRepository interface using Firestore.
type firestoreTrackRepository struct {
	client *firestore.Client
}

// NewFirestoreTrackRepository creates a new instance of firestoreTrackRepository.
func NewFirestoreTrackRepository(client *firestore.Client) TrackRepository {
	return &firestoreTrackRepository{client: client}
}

func decodeTrack(doc *firestore.DocumentSnapshot) (*models.Track, error) {
	var track models.Track
	if err := doc.DataTo(&track); err != nil {
		return nil, err
	}
	track.ID = doc.Ref.ID
	return &track, nil
}

// Create adds a new track document with an auto-generated ID.
func (r *firestoreTrackRepository) Create(ctx context.Context, track *models.Track) error {
	docRef := r.client.Collection(tracksCollection).NewDoc()
	if _, err := docRef.Create(ctx, track); err != nil {
		return fmt.Errorf("failed to create track: %w", err)
	}
	track.ID = docRef.ID
	return nil
}

func (r *firestoreTrackRepository) GetByID(ctx context.Context, trackID string) (*models.Track, error) {
	if trackID == "" {
		return nil, fmt.Errorf("empty track ID: %w", ErrNotFound)
	}
	docSnap, err := r.client.Collection(tracksCollection).Doc(trackID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("track with ID '%s' not found: %w", trackID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get track with ID '%s': %w", trackID, err)
	}
	return decodeTrack(docSnap)
}

func (r *firestoreTrackRepository) GetBySlug(ctx context.Context, slug string) (*models.Track, error) {
	iter := r.client.Collection(tracksCollection).Where("slug", "==", slug).Limit(1).Documents(ctx)
	tracks, err := collect(iter, decodeTrack)
	if err != nil {
		return nil, fmt.Errorf("failed to query track with slug '%s': %w", slug, err)
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("track with slug '%s' not found: %w", slug, ErrNotFound)
	}
	return tracks[0], nil
}

func (r *firestoreTrackRepository) List(ctx context.Context) ([]*models.Track, error) {
	iter := r.client.Collection(tracksCollection).OrderBy("createdAt", firestore.Desc).Documents(ctx)
	tracks, err := collect(iter, decodeTrack)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	return tracks, nil
}

func (r *firestoreTrackRepository) Update(ctx context.Context, track *models.Track) error {
	if track.ID == "" {
		return errors.New("track ID cannot be empty for Update operation")
	}
	if _, err := r.client.Collection(tracksCollection).Doc(track.ID).Set(ctx, track); err != nil {
		return fmt.Errorf("failed to update track with ID '%s': %w", track.ID, err)
	}
	return nil
}

func (r *firestoreTrackRepository) Delete(ctx context.Context, trackID string) error {
	if _, err := r.client.Collection(tracksCollection).Doc(trackID).Delete(ctx, firestore.Exists); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("track with ID '%s' not found for deletion: %w", trackID, ErrNotFound)
		}
		return fmt.Errorf("failed to delete track with ID '%s': %w", trackID, err)
	}
	return nil
}

// firestoreCourseRepository implements the CourseRepository interface using Firestore.
type firestoreCourseRepository struct {
	client *firestore.Client
}

// NewFirestoreCourseRepository creates a new instance of firestoreCourseRepository.
func NewFirestoreCourseRepository(client *firestore.Client) CourseRepository {
	return &firestoreCourseRepository{client: client}
}

func decodeCourse(doc *firestore.DocumentSnapshot) (*models.Course, error) {
	var course models.Course
	if err := doc.DataTo(&course); err != nil {
		return nil, err
	}
	course.ID = doc.Ref.ID
	return &course, nil
}

func (r *firestoreCourseRepository) Create(ctx context.Context, course *models.Course) error {
	docRef := r.client.Collection(coursesCollection).NewDoc()
	if _, err := docRef.Create(ctx, course); err != nil {
		return fmt.Errorf("failed to create course: %w", err)
	}
	course.ID = docRef.ID
	return nil
}

func (r *firestoreCourseRepository) GetByID(ctx context.Context, courseID string) (*models.Course, error) {
	if courseID == "" {
		return nil, fmt.Errorf("empty course ID: %w", ErrNotFound)
	}
	docSnap, err := r.client.Collection(coursesCollection).Doc(courseID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("course with ID '%s' not found: %w", courseID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get course with ID '%s': %w", courseID, err)
	}
	return decodeCourse(docSnap)
}

func (r *firestoreCourseRepository) List(ctx context.Context, trackID string) ([]*models.Course, error) {
	query := r.client.Collection(coursesCollection).Query
	if trackID != "" {
		query = query.Where("trackId", "==", trackID)
	}
	courses, err := collect(query.Documents(ctx), decodeCourse)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return courses, nil
}

func (r *firestoreCourseRepository) Update(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		return errors.New("course ID cannot be empty for Update operation")
	}
	if _, err := r.client.Collection(coursesCollection).Doc(course.ID).Set(ctx, course); err != nil {
		return fmt.Errorf("failed to update course with ID '%s': %w", course.ID, err)
	}
	return nil
}

func (r *firestoreCourseRepository) Delete(ctx context.Context, courseID string) error {
	if _, err := r.client.Collection(coursesCollection).Doc(courseID).Delete(ctx, firestore.Exists); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("course with ID '%s' not found for deletion: %w", courseID, ErrNotFound)
		}
		return fmt.Errorf("failed to delete course with ID '%s': %w", courseID, err)
	}
	return nil
}
