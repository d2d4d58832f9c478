package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aglago/g-clients-sub000/internal/crypto"
	"github.com/aglago/g-clients-sub000/internal/db"
	"github.com/aglago/g-clients-sub000/internal/models"
	"github.com/aglago/g-clients-sub000/pkg/cache"
	"github.com/aglago/g-clients-sub000/pkg/mailer"
	"github.com/aglago/g-clients-sub000/pkg/messagequeue"
)

const testSecret = "test-secret-that-is-at-least-32-bytes-long"

type testEnv struct {
	store       *db.Store
	tokens      TokenIssuer
	audit       AuditService
	notifier    Notifier
	auth        AuthService
	users       UserService
	tracks      TrackService
	courses     CourseService
	enrollments EnrollmentService
	invoices    InvoiceService
	checkout    CheckoutService
	dashboard   DashboardService
	dispatcher  *Dispatcher
	mail        *mailer.Recorder
	queue       *messagequeue.Local
	cache       *cache.Memory
}

func newTestEnv(t *testing.T, autoVerify bool) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	store := db.NewMemoryStore()

	tokens, err := NewTokenService(testSecret, nil)
	require.NoError(t, err)
	sealer, err := crypto.NewSealer([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	env := &testEnv{
		store:  store,
		tokens: tokens,
		mail:   &mailer.Recorder{},
		queue:  messagequeue.NewLocal(64),
		cache:  cache.NewMemory(),
	}
	env.audit = NewAuditService(store.Audit, logger)
	env.notifier = NewNotificationService(store.Outbox, env.queue, "notifications", "https://learn.example.com", logger)
	env.auth = NewAuthService(store.Users, tokens, env.notifier, "admin-code", logger)
	env.users = NewUserService(store.Users, store.Enrollments, env.audit, logger)
	env.tracks = NewTrackService(store.Tracks, store.Courses, env.cache, time.Minute, env.audit, logger)
	env.courses = NewCourseService(store.Courses, store.Tracks, env.cache, env.audit)
	env.enrollments = NewEnrollmentService(store.Enrollments, logger)
	env.invoices = NewInvoiceService(store, env.enrollments, sealer, env.audit, logger)
	env.checkout = NewCheckoutService(CheckoutDeps{
		Store:       store,
		Tracks:      env.tracks,
		Enrollments: env.enrollments,
		Invoices:    env.invoices,
		Notifier:    env.notifier,
		Tokens:      tokens,
		Sealer:      sealer,
		Audit:       env.audit,
	}, CheckoutConfig{AutoVerify: autoVerify}, logger)
	env.dashboard = NewDashboardService(store)
	env.dispatcher = NewDispatcher(store.Outbox, env.mail, env.queue, env.checkout, DispatcherConfig{QueueName: "notifications"}, logger)
	return env
}

func (e *testEnv) createTrack(t *testing.T, name string, price float64) *models.Track {
	t.Helper()
	track, err := e.tracks.CreateTrack(context.Background(), "admin-1", models.CreateTrackRequest{
		Name:          name,
		Price:         price,
		DurationWeeks: 12,
		Instructor:    "Kofi Mensah",
		Description:   name + " track",
	})
	require.NoError(t, err)
	return track
}

func (e *testEnv) createLearner(t *testing.T, email string) *models.User {
	t.Helper()
	u := &models.User{
		FirstName:  "Ama",
		LastName:   "Owusu",
		Email:      email,
		Role:       models.RoleLearner,
		IsVerified: true,
	}
	hash, err := hashPassword("password123")
	require.NoError(t, err)
	u.PasswordHash = hash
	require.NoError(t, e.store.Users.Create(context.Background(), u))
	return u
}

func (e *testEnv) outbox(t *testing.T) []*models.OutboxMessage {
	t.Helper()
	msgs, err := e.store.Outbox.ListDue(context.Background(), time.Now().Add(time.Hour), 100)
	require.NoError(t, err)
	return msgs
}

func boolPtr(b bool) *bool { return &b }
