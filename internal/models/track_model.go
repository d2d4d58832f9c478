package models

import "time"

// Track is a paid, multi-week learning path composed of courses.
type Track struct {
	ID            string    `json:"id" firestore:"-"`
	Name          string    `json:"name" firestore:"name"`
	Slug          string    `json:"slug" firestore:"slug"`
	Price         float64   `json:"price" firestore:"price"`
	DurationWeeks int       `json:"duration" firestore:"durationWeeks"`
	Instructor    string    `json:"instructor" firestore:"instructor"`
	Picture       string    `json:"picture,omitempty" firestore:"picture,omitempty"`
	Description   string    `json:"description" firestore:"description"`
	CourseIDs     []string  `json:"courses" firestore:"courseIds"` // Ordered; kept in sync with Course.TrackID
	Rating        float64   `json:"rating" firestore:"rating"`
	ReviewCount   int       `json:"reviews" firestore:"reviewCount"`
	CreatedAt     time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// HasCourse reports whether courseID is referenced by the track.
func (t *Track) HasCourse(courseID string) bool {
	for _, id := range t.CourseIDs {
		if id == courseID {
			return true
		}
	}
	return false
}

// RemoveCourse drops courseID from the track's course references.
func (t *Track) RemoveCourse(courseID string) {
	kept := t.CourseIDs[:0]
	for _, id := range t.CourseIDs {
		if id != courseID {
			kept = append(kept, id)
		}
	}
	t.CourseIDs = kept
}

// Course is a single unit of content belonging to exactly one track.
type Course struct {
	ID          string    `json:"id" firestore:"-"`
	Title       string    `json:"title" firestore:"title"`
	Description string    `json:"description" firestore:"description"`
	TrackID     string    `json:"trackId" firestore:"trackId"`
	Picture     string    `json:"picture,omitempty" firestore:"picture,omitempty"`
	CreatedAt   time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" firestore:"updatedAt"`
}
