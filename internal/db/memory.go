package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aglago/g-clients-sub000/internal/models"
)

// memoryStore keeps every collection in maps behind one mutex. Values are copied in and
// out so callers never share memory with the store, the same as a document round-trip.
type memoryStore struct {
	mu            sync.RWMutex
	users         map[string]models.User
	emails        map[string]string
	tracks        map[string]models.Track
	courses       map[string]models.Course
	enrollments   map[string]models.TrackEnrollment
	registrations map[string]models.CourseRegistration
	invoices      map[string]models.Invoice
	checkouts     map[string]models.CheckoutIntent
	outbox        map[string]models.OutboxMessage
	audit         []models.AuditLog
}

// NewMemoryStore returns a Store backed by process memory. Used by tests and local runs.
func NewMemoryStore() *Store {
	m := &memoryStore{
		users:         map[string]models.User{},
		emails:        map[string]string{},
		tracks:        map[string]models.Track{},
		courses:       map[string]models.Course{},
		enrollments:   map[string]models.TrackEnrollment{},
		registrations: map[string]models.CourseRegistration{},
		invoices:      map[string]models.Invoice{},
		checkouts:     map[string]models.CheckoutIntent{},
		outbox:        map[string]models.OutboxMessage{},
	}
	return &Store{
		Users:       memUsers{m},
		Tracks:      memTracks{m},
		Courses:     memCourses{m},
		Enrollments: memEnrollments{m},
		Invoices:    memInvoices{m},
		Checkouts:   memCheckouts{m},
		Outbox:      memOutbox{m},
		Audit:       memAudit{m},
	}
}

func newID() string {
	return uuid.NewString()
}

// Users

type memUsers struct{ m *memoryStore }

func (r memUsers) Create(_ context.Context, user *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	user.Email = models.NormalizeEmail(user.Email)
	if _, taken := r.m.emails[user.Email]; taken {
		return fmt.Errorf("user with email '%s': %w", user.Email, ErrAlreadyExists)
	}
	user.ID = newID()
	r.m.users[user.ID] = *user
	r.m.emails[user.Email] = user.ID
	return nil
}

func (r memUsers) GetByID(_ context.Context, userID string) (*models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	u, ok := r.m.users[userID]
	if !ok {
		return nil, fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
	}
	return &u, nil
}

func (r memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.m.mu.RLock()
	id, ok := r.m.emails[models.NormalizeEmail(email)]
	r.m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("user with email '%s' not found: %w", email, ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

func (r memUsers) Update(_ context.Context, user *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.users[user.ID]; !ok {
		return fmt.Errorf("user with ID '%s' not found: %w", user.ID, ErrNotFound)
	}
	user.UpdatedAt = time.Now().UTC()
	r.m.users[user.ID] = *user
	return nil
}

func (r memUsers) Delete(_ context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	u, ok := r.m.users[userID]
	if !ok {
		return fmt.Errorf("user with ID '%s' not found for deletion: %w", userID, ErrNotFound)
	}
	delete(r.m.emails, u.Email)
	delete(r.m.users, userID)
	return nil
}

func (r memUsers) ListByRole(_ context.Context, role models.Role) ([]*models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	var out []*models.User
	for _, u := range r.m.users {
		if u.Role == role {
			u := u
			out = append(out, &u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memUsers) CountByRole(ctx context.Context, role models.Role) (int, error) {
	users, err := r.ListByRole(ctx, role)
	return len(users), err
}

// Tracks and courses

type memTracks struct{ m *memoryStore }

func cloneTrack(t models.Track) *models.Track {
	t.CourseIDs = append([]string(nil), t.CourseIDs...)
	return &t
}

func (r memTracks) Create(_ context.Context, track *models.Track) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	track.ID = newID()
	r.m.tracks[track.ID] = *cloneTrack(*track)
	return nil
}

func (r memTracks) GetByID(_ context.Context, trackID string) (*models.Track, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	t, ok := r.m.tracks[trackID]
	if !ok {
		return nil, fmt.Errorf("track with ID '%s' not found: %w", trackID, ErrNotFound)
	}
	return cloneTrack(t), nil
}

func (r memTracks) GetBySlug(_ context.Context, slug string) (*models.Track, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	for _, t := range r.m.tracks {
		if t.Slug == slug {
			return cloneTrack(t), nil
		}
	}
	return nil, fmt.Errorf("track with slug '%s' not found: %w", slug, ErrNotFound)
}

func (r memTracks) List(_ context.Context) ([]*models.Track, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := make([]*models.Track, 0, len(r.m.tracks))
	for _, t := range r.m.tracks {
		out = append(out, cloneTrack(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memTracks) Update(_ context.Context, track *models.Track) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.tracks[track.ID]; !ok {
		return fmt.Errorf("track with ID '%s' not found: %w", track.ID, ErrNotFound)
	}
	r.m.tracks[track.ID] = *cloneTrack(*track)
	return nil
}

func (r memTracks) Delete(_ context.Context, trackID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.tracks[trackID]; !ok {
		return fmt.Errorf("track with ID '%s' not found for deletion: %w", trackID, ErrNotFound)
	}
	delete(r.m.tracks, trackID)
	return nil
}

type memCourses struct{ m *memoryStore }

func (r memCourses) Create(_ context.Context, course *models.Course) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	course.ID = newID()
	r.m.courses[course.ID] = *course
	return nil
}

func (r memCourses) GetByID(_ context.Context, courseID string) (*models.Course, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	c, ok := r.m.courses[courseID]
	if !ok {
		return nil, fmt.Errorf("course with ID '%s' not found: %w", courseID, ErrNotFound)
	}
	return &c, nil
}

func (r memCourses) List(_ context.Context, trackID string) ([]*models.Course, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	var out []*models.Course
	for _, c := range r.m.courses {
		if trackID == "" || c.TrackID == trackID {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r memCourses) Update(_ context.Context, course *models.Course) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.courses[course.ID]; !ok {
		return fmt.Errorf("course with ID '%s' not found: %w", course.ID, ErrNotFound)
	}
	r.m.courses[course.ID] = *course
	return nil
}

func (r memCourses) Delete(_ context.Context, courseID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.courses[courseID]; !ok {
		return fmt.Errorf("course with ID '%s' not found for deletion: %w", courseID, ErrNotFound)
	}
	delete(r.m.courses, courseID)
	return nil
}

// Enrollments

type memEnrollments struct{ m *memoryStore }

func (r memEnrollments) FindByLearnerAndTrack(ctx context.Context, learnerID, trackID string) (*models.TrackEnrollment, error) {
	return r.GetByID(ctx, models.EnrollmentID(learnerID, trackID))
}

func (r memEnrollments) CreateIfAbsent(_ context.Context, enrollment *models.TrackEnrollment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	enrollment.ID = models.EnrollmentID(enrollment.LearnerID, enrollment.TrackID)
	if existing, ok := r.m.enrollments[enrollment.ID]; ok && existing.IsEffective() {
		return fmt.Errorf("enrollment '%s': %w", enrollment.ID, ErrAlreadyExists)
	}
	r.m.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (r memEnrollments) GetByID(_ context.Context, enrollmentID string) (*models.TrackEnrollment, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	e, ok := r.m.enrollments[enrollmentID]
	if !ok {
		return nil, fmt.Errorf("enrollment '%s' not found: %w", enrollmentID, ErrNotFound)
	}
	return &e, nil
}

func (r memEnrollments) ListByLearner(_ context.Context, learnerID string) ([]*models.TrackEnrollment, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	var out []*models.TrackEnrollment
	for _, e := range r.m.enrollments {
		if e.LearnerID == learnerID {
			e := e
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnrolledAt.After(out[j].EnrolledAt) })
	return out, nil
}

func (r memEnrollments) List(_ context.Context) ([]*models.TrackEnrollment, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := make([]*models.TrackEnrollment, 0, len(r.m.enrollments))
	for _, e := range r.m.enrollments {
		e := e
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnrolledAt.After(out[j].EnrolledAt) })
	return out, nil
}

func (r memEnrollments) Update(_ context.Context, enrollment *models.TrackEnrollment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.enrollments[enrollment.ID]; !ok {
		return fmt.Errorf("enrollment '%s' not found: %w", enrollment.ID, ErrNotFound)
	}
	r.m.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (r memEnrollments) DeleteByLearner(_ context.Context, learnerID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for id, e := range r.m.enrollments {
		if e.LearnerID == learnerID {
			delete(r.m.enrollments, id)
		}
	}
	for id, reg := range r.m.registrations {
		if reg.LearnerID == learnerID {
			delete(r.m.registrations, id)
		}
	}
	return nil
}

func (r memEnrollments) UpsertRegistration(_ context.Context, registration *models.CourseRegistration) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	registration.ID = models.RegistrationID(registration.LearnerID, registration.CourseID)
	r.m.registrations[registration.ID] = *registration
	return nil
}

func (r memEnrollments) ListRegistrations(_ context.Context, learnerID string) ([]*models.CourseRegistration, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	var out []*models.CourseRegistration
	for _, reg := range r.m.registrations {
		if reg.LearnerID == learnerID {
			reg := reg
			out = append(out, &reg)
		}
	}
	return out, nil
}

// Invoices

type memInvoices struct{ m *memoryStore }

func (r memInvoices) Create(_ context.Context, invoice *models.Invoice) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if invoice.ID == "" {
		invoice.ID = newID()
	} else if _, taken := r.m.invoices[invoice.ID]; taken {
		return fmt.Errorf("invoice '%s': %w", invoice.ID, ErrAlreadyExists)
	}
	r.m.invoices[invoice.ID] = *invoice
	return nil
}

func (r memInvoices) GetByID(_ context.Context, invoiceID string) (*models.Invoice, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	inv, ok := r.m.invoices[invoiceID]
	if !ok {
		return nil, fmt.Errorf("invoice '%s' not found: %w", invoiceID, ErrNotFound)
	}
	return &inv, nil
}

func (r memInvoices) ListByLearner(_ context.Context, learnerID string) ([]*models.Invoice, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	var out []*models.Invoice
	for _, inv := range r.m.invoices {
		if inv.LearnerID == learnerID {
			inv := inv
			out = append(out, &inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memInvoices) List(_ context.Context) ([]*models.Invoice, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := make([]*models.Invoice, 0, len(r.m.invoices))
	for _, inv := range r.m.invoices {
		inv := inv
		out = append(out, &inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memInvoices) Update(_ context.Context, invoice *models.Invoice) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.invoices[invoice.ID]; !ok {
		return fmt.Errorf("invoice '%s' not found: %w", invoice.ID, ErrNotFound)
	}
	r.m.invoices[invoice.ID] = *invoice
	return nil
}

// Checkouts

type memCheckouts struct{ m *memoryStore }

func (r memCheckouts) Create(_ context.Context, intent *models.CheckoutIntent) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	intent.ID = newID()
	r.m.checkouts[intent.ID] = *intent
	return nil
}

func (r memCheckouts) GetByID(_ context.Context, intentID string) (*models.CheckoutIntent, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	c, ok := r.m.checkouts[intentID]
	if !ok {
		return nil, fmt.Errorf("checkout intent '%s' not found: %w", intentID, ErrNotFound)
	}
	return &c, nil
}

func (r memCheckouts) Update(_ context.Context, intent *models.CheckoutIntent) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.checkouts[intent.ID]; !ok {
		return fmt.Errorf("checkout intent '%s' not found: %w", intent.ID, ErrNotFound)
	}
	r.m.checkouts[intent.ID] = *intent
	return nil
}

func (r memCheckouts) ListPending(_ context.Context, olderThan time.Time, limit int) ([]*models.CheckoutIntent, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	var out []*models.CheckoutIntent
	for _, c := range r.m.checkouts {
		if c.Status == models.CheckoutPending && c.UpdatedAt.Before(olderThan) {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Outbox

type memOutbox struct{ m *memoryStore }

func (r memOutbox) Create(_ context.Context, message *models.OutboxMessage) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if message.ID == "" {
		message.ID = newID()
	} else if _, taken := r.m.outbox[message.ID]; taken {
		return fmt.Errorf("outbox message '%s': %w", message.ID, ErrAlreadyExists)
	}
	r.m.outbox[message.ID] = *message
	return nil
}

func (r memOutbox) GetByID(_ context.Context, messageID string) (*models.OutboxMessage, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	msg, ok := r.m.outbox[messageID]
	if !ok {
		return nil, fmt.Errorf("outbox message '%s' not found: %w", messageID, ErrNotFound)
	}
	return &msg, nil
}

func (r memOutbox) ListDue(_ context.Context, now time.Time, limit int) ([]*models.OutboxMessage, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	var out []*models.OutboxMessage
	for _, msg := range r.m.outbox {
		if msg.Status == models.OutboxPending && !msg.NextAttemptAt.After(now) {
			msg := msg
			out = append(out, &msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memOutbox) Update(_ context.Context, message *models.OutboxMessage) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.outbox[message.ID]; !ok {
		return fmt.Errorf("outbox message '%s' not found: %w", message.ID, ErrNotFound)
	}
	r.m.outbox[message.ID] = *message
	return nil
}

// Audit

type memAudit struct{ m *memoryStore }

func (r memAudit) Create(_ context.Context, logEntry models.AuditLog) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	logEntry.ID = newID()
	if logEntry.Timestamp.IsZero() {
		logEntry.Timestamp = time.Now().UTC()
	}
	r.m.audit = append(r.m.audit, logEntry)
	return nil
}
