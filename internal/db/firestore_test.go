package db

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aglago/g-clients-sub000/internal/models"
)

// newEmulatorStore connects to the Firestore emulator under a fresh project so tests never share documents.
func newEmulatorStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "demo-"+uuid.NewString()[:8])
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewFirestoreStore(client)
}

func TestFirestoreUsers_EmailIndex(t *testing.T) {
	ctx := context.Background()
	store := newEmulatorStore(t)

	u := &models.User{Email: "Ama@Example.com", Role: models.RoleLearner, CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Users.Create(ctx, u))
	assert.NotEmpty(t, u.ID)

	err := store.Users.Create(ctx, &models.User{Email: "ama@example.com", Role: models.RoleLearner})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	got, err := store.Users.GetByEmail(ctx, "AMA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	n, err := store.Users.CountByRole(ctx, models.RoleLearner)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.Users.Delete(ctx, u.ID))
	_, err = store.Users.GetByID(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, store.Users.Create(ctx, &models.User{Email: "ama@example.com", Role: models.RoleLearner}))
}

func TestFirestoreEnrollments_CreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := newEmulatorStore(t)
	now := time.Now().UTC()

	e := &models.TrackEnrollment{LearnerID: "l1", TrackID: "t1", Status: models.EnrollmentActive, EnrolledAt: now, UpdatedAt: now}
	require.NoError(t, store.Enrollments.CreateIfAbsent(ctx, e))
	assert.Equal(t, models.EnrollmentID("l1", "t1"), e.ID)

	dup := &models.TrackEnrollment{LearnerID: "l1", TrackID: "t1", Status: models.EnrollmentActive, EnrolledAt: now, UpdatedAt: now}
	assert.ErrorIs(t, store.Enrollments.CreateIfAbsent(ctx, dup), ErrAlreadyExists)

	e.Status = models.EnrollmentCancelled
	require.NoError(t, store.Enrollments.Update(ctx, e))
	require.NoError(t, store.Enrollments.CreateIfAbsent(ctx, dup))

	got, err := store.Enrollments.FindByLearnerAndTrack(ctx, "l1", "t1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentActive, got.Status)
}

func TestFirestoreInvoicesAndOutbox_ConditionalCreate(t *testing.T) {
	ctx := context.Background()
	store := newEmulatorStore(t)
	now := time.Now().UTC()

	inv := &models.Invoice{ID: "chk-1", LearnerID: "l1", TrackID: "t1", Amount: 100, Status: models.InvoiceUnpaid, DueDate: now, CreatedAt: now}
	require.NoError(t, store.Invoices.Create(ctx, inv))
	assert.ErrorIs(t, store.Invoices.Create(ctx, &models.Invoice{ID: "chk-1", LearnerID: "l1"}), ErrAlreadyExists)

	mine, err := store.Invoices.ListByLearner(ctx, "l1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	msg := &models.OutboxMessage{ID: "chk-1-welcome", Kind: models.NotifyWelcome, To: "a@example.com", Status: models.OutboxPending, NextAttemptAt: now, CreatedAt: now}
	require.NoError(t, store.Outbox.Create(ctx, msg))
	assert.ErrorIs(t, store.Outbox.Create(ctx, &models.OutboxMessage{ID: "chk-1-welcome"}), ErrAlreadyExists)

	due, err := store.Outbox.ListDue(ctx, now.Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "chk-1-welcome", due[0].ID)
}
