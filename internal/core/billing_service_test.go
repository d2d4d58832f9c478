package core

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aglago/g-clients-sub000/internal/crypto"
	"github.com/aglago/g-clients-sub000/internal/models"
)

func TestEnroll_RegistersCoursesAndGuardsDuplicates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	track := env.createTrack(t, "React 101", 100)
	_, err := env.courses.CreateCourse(ctx, models.CreateCourseRequest{Title: "Hooks", Description: "x", TrackID: track.ID})
	require.NoError(t, err)
	track, err = env.tracks.GetTrack(ctx, track.ID)
	require.NoError(t, err)
	learner := env.createLearner(t, "ama@example.com")

	e, err := env.enrollments.Enroll(ctx, learner.ID, track)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentID(learner.ID, track.ID), e.ID)
	assert.Equal(t, 0, e.Progress)

	regs, err := env.store.Enrollments.ListRegistrations(ctx, learner.ID)
	require.NoError(t, err)
	assert.Len(t, regs, 1)

	_, err = env.enrollments.Enroll(ctx, learner.ID, track)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)

	cancelled := models.EnrollmentCancelled
	_, err = env.enrollments.UpdateEnrollment(ctx, e.ID, models.UpdateEnrollmentRequest{Status: &cancelled})
	require.NoError(t, err)
	found, err := env.enrollments.FindEnrollment(ctx, learner.ID, track.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	_, err = env.enrollments.Enroll(ctx, learner.ID, track)
	assert.NoError(t, err)
}

func TestUpdateEnrollment_Progress(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	track := env.createTrack(t, "React 101", 100)
	learner := env.createLearner(t, "ama@example.com")
	e, err := env.enrollments.Enroll(ctx, learner.ID, track)
	require.NoError(t, err)

	half, full, over := 50, 100, 120
	got, err := env.enrollments.UpdateEnrollment(ctx, e.ID, models.UpdateEnrollmentRequest{Progress: &half})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentActive, got.Status)
	assert.Nil(t, got.CompletedAt)

	got, err = env.enrollments.UpdateEnrollment(ctx, e.ID, models.UpdateEnrollmentRequest{Progress: &full})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)

	_, err = env.enrollments.UpdateEnrollment(ctx, e.ID, models.UpdateEnrollmentRequest{Progress: &over})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.enrollments.UpdateEnrollment(ctx, "missing", models.UpdateEnrollmentRequest{Progress: &half})
	assert.ErrorIs(t, err, ErrEnrollmentNotFound)
}

func TestCreateInvoice_AmountMustMatchTrackPrice(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	track := env.createTrack(t, "React 101", 100)
	learner := env.createLearner(t, "ama@example.com")

	_, err := env.invoices.CreateInvoice(ctx, "admin-1", models.CreateInvoiceRequest{LearnerID: learner.ID, TrackID: track.ID, Amount: 90})
	assert.ErrorIs(t, err, ErrAmountMismatch)

	inv, err := env.invoices.CreateInvoice(ctx, "admin-1", models.CreateInvoiceRequest{LearnerID: learner.ID, TrackID: track.ID})
	require.NoError(t, err)
	assert.Equal(t, 100.0, inv.Amount)
	assert.Equal(t, models.InvoiceUnpaid, inv.Status)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), inv.DueDate, time.Minute)

	_, err = env.invoices.CreateInvoice(ctx, "admin-1", models.CreateInvoiceRequest{LearnerID: "ghost", TrackID: track.ID})
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = env.invoices.CreateInvoice(ctx, "admin-1", models.CreateInvoiceRequest{LearnerID: learner.ID})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSetStatus_PayingEnrollsAndIsFinal(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	track := env.createTrack(t, "React 101", 100)
	learner := env.createLearner(t, "ama@example.com")
	inv, err := env.invoices.CreateInvoice(ctx, "admin-1", models.CreateInvoiceRequest{LearnerID: learner.ID, TrackID: track.ID})
	require.NoError(t, err)

	_, err = env.invoices.SetStatus(ctx, "admin-1", inv.ID, "refunded", nil)
	assert.ErrorIs(t, err, ErrValidation)

	paid, err := env.invoices.SetStatus(ctx, "admin-1", inv.ID, models.InvoicePaid, json.RawMessage(`{"reference":"MANUAL-7"}`))
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.True(t, strings.HasPrefix(paid.PaymentDetails, "enc:v1:"))

	enrollment, err := env.enrollments.FindEnrollment(ctx, learner.ID, track.ID)
	require.NoError(t, err)
	assert.NotNil(t, enrollment)

	_, err = env.invoices.SetStatus(ctx, "admin-1", inv.ID, models.InvoiceCancelled, nil)
	assert.ErrorIs(t, err, ErrInvoiceNotOpen)
}

func TestCreateForCheckout_Idempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	intent := &models.CheckoutIntent{ID: "chk-1", LearnerID: "l1", TrackID: "t1", Amount: 100, CreatedAt: created}

	first, err := env.invoices.CreateForCheckout(ctx, intent)
	require.NoError(t, err)
	assert.Equal(t, "chk-1", first.ID)
	assert.Equal(t, created.Add(PendingPaymentWindow), first.DueDate)

	again, err := env.invoices.CreateForCheckout(ctx, intent)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	all, err := env.invoices.ListInvoices(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSealPaymentDetails(t *testing.T) {
	sealed, err := SealPaymentDetails(nil, json.RawMessage(`{ "a" : 1 }`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, sealed)

	empty, err := SealPaymentDetails(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = SealPaymentDetails(nil, json.RawMessage(`{broken`))
	assert.ErrorIs(t, err, ErrValidation)

	sealer, err := crypto.NewSealer([]byte(strings.Repeat("k", 32)))
	require.NoError(t, err)
	sealed, err = SealPaymentDetails(sealer, json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	plain, err := sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, plain)
}

func TestDashboardSummary(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	react := env.createTrack(t, "React 101", 100)
	env.createTrack(t, "Data Science", 250)

	paid, err := env.checkout.ProcessGuest(ctx, guestRequest(react.Slug, "a@example.com", true))
	require.NoError(t, err)
	_, err = env.checkout.ProcessGuest(ctx, guestRequest(react.Slug, "b@example.com", false))
	require.NoError(t, err)
	full := 100
	_, err = env.enrollments.UpdateEnrollment(ctx, paid.EnrollmentID, models.UpdateEnrollmentRequest{Progress: &full})
	require.NoError(t, err)

	sum, err := env.dashboard.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Learners)
	assert.Equal(t, 2, sum.Tracks)
	assert.Equal(t, 0, sum.ActiveEnrollments)
	assert.Equal(t, 1, sum.CompletedEnrollments)
	assert.Equal(t, 100.0, sum.Revenue)
	assert.Equal(t, 100.0, sum.Outstanding)
	assert.Equal(t, 1, sum.UnpaidInvoices)
	require.Len(t, sum.PerTrack, 2)
	assert.Equal(t, react.ID, sum.PerTrack[0].TrackID)
	assert.Equal(t, 1, sum.PerTrack[0].Completed)
	assert.Equal(t, 100.0, sum.PerTrack[0].Revenue)
}
