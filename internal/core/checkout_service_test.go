package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aglago/g-clients-sub000/internal/db"
	"github.com/aglago/g-clients-sub000/internal/models"
)

func guestRequest(slug, email string, paid bool) models.GuestCheckoutRequest {
	return models.GuestCheckoutRequest{
		TrackSlug:      slug,
		FirstName:      "Ama",
		LastName:       "Owusu",
		Email:          email,
		Phone:          "+233200000000",
		Gender:         "female",
		Location:       "Accra",
		Password:       "password123",
		PaymentSuccess: boolPtr(paid),
		PaymentDetails: json.RawMessage(`{"reference": "PSK-1", "channel": "card"}`),
	}
}

func TestProcessGuest_PaidCreatesLearnerEnrollmentAndPaidInvoice(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	track := env.createTrack(t, "React 101", 100)
	require.Equal(t, "react-101", track.Slug)

	res, err := env.checkout.ProcessGuest(ctx, guestRequest("react-101", "Ama@Example.com", true))
	require.NoError(t, err)

	assert.True(t, res.AutoLogin)
	assert.NotEmpty(t, res.Token)
	assert.False(t, res.PendingPayment)
	require.NotNil(t, res.User)
	assert.Equal(t, "ama@example.com", res.User.Email)
	assert.True(t, res.User.IsVerified)
	assert.Equal(t, "+233200000000", res.User.Contact)

	claims, err := env.tokens.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.Subject)

	enrollment, err := env.enrollments.FindEnrollment(ctx, res.User.ID, track.ID)
	require.NoError(t, err)
	require.NotNil(t, enrollment)
	assert.Equal(t, models.EnrollmentActive, enrollment.Status)
	assert.Equal(t, res.EnrollmentID, enrollment.ID)

	inv, err := env.invoices.GetInvoice(ctx, res.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, inv.Status)
	assert.Equal(t, 100.0, inv.Amount)
	assert.Equal(t, res.CheckoutID, inv.CheckoutID)
	require.NotNil(t, inv.PaidAt)
	details, err := env.invoices.PaymentDetails(inv)
	require.NoError(t, err)
	assert.JSONEq(t, `{"reference":"PSK-1","channel":"card"}`, details)

	msgs := env.outbox(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.NotifyWelcome, msgs[0].Kind)
	assert.Equal(t, OutboxKey(res.CheckoutID, models.NotifyWelcome), msgs[0].ID)
	assert.Contains(t, msgs[0].Subject, "React 101")

	intent, err := env.store.Checkouts.GetByID(ctx, res.CheckoutID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutCompleted, intent.Status)
}

func TestProcessGuest_FailedPaymentLeavesUnpaidInvoice(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	track := env.createTrack(t, "React 101", 100)

	res, err := env.checkout.ProcessGuest(ctx, guestRequest("react-101", "kojo@example.com", false))
	require.NoError(t, err)

	assert.True(t, res.AutoLogin)
	assert.NotEmpty(t, res.Token)
	assert.True(t, res.PendingPayment)
	assert.Empty(t, res.EnrollmentID)

	enrollment, err := env.enrollments.FindEnrollment(ctx, res.User.ID, track.ID)
	require.NoError(t, err)
	assert.Nil(t, enrollment)

	inv, err := env.invoices.GetInvoice(ctx, res.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceUnpaid, inv.Status)
	assert.Equal(t, 100.0, inv.Amount)
	assert.Nil(t, inv.PaidAt)
	assert.WithinDuration(t, inv.CreatedAt.Add(30*24*time.Hour), inv.DueDate, time.Second)

	msgs := env.outbox(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.NotifyPaymentPending, msgs[0].Kind)
	assert.Contains(t, msgs[0].Body, "/portal/invoices/"+inv.ID)
}

func TestProcessGuest_ExistingEmailCreatesNothing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	env.createTrack(t, "React 101", 100)
	existing := env.createLearner(t, "ama@example.com")

	_, err := env.checkout.ProcessGuest(ctx, guestRequest("react-101", "AMA@example.com", true))
	assert.ErrorIs(t, err, ErrExistingAccount)

	learners, err := env.store.Users.ListByRole(ctx, models.RoleLearner)
	require.NoError(t, err)
	require.Len(t, learners, 1)
	assert.Equal(t, existing.ID, learners[0].ID)

	invoices, err := env.store.Invoices.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, invoices)
	enrollments, err := env.store.Enrollments.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, enrollments)
	assert.Empty(t, env.outbox(t))
}

func TestProcessGuest_UnknownTrack(t *testing.T) {
	env := newTestEnv(t, true)

	_, err := env.checkout.ProcessGuest(context.Background(), guestRequest("missing", "ama@example.com", true))
	assert.ErrorIs(t, err, ErrTrackNotFound)

	learners, err := env.store.Users.ListByRole(context.Background(), models.RoleLearner)
	require.NoError(t, err)
	assert.Empty(t, learners)
}

func TestProcessGuest_MissingPaymentFlag(t *testing.T) {
	env := newTestEnv(t, true)
	env.createTrack(t, "React 101", 100)

	req := guestRequest("react-101", "ama@example.com", true)
	req.PaymentSuccess = nil
	_, err := env.checkout.ProcessGuest(context.Background(), req)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestProcessGuest_WithoutAutoVerifyQueuesVerification(t *testing.T) {
	env := newTestEnv(t, false)
	env.createTrack(t, "React 101", 100)

	res, err := env.checkout.ProcessGuest(context.Background(), guestRequest("react-101", "ama@example.com", true))
	require.NoError(t, err)
	assert.False(t, res.User.IsVerified)

	kinds := map[models.NotificationKind]int{}
	for _, m := range env.outbox(t) {
		kinds[m.Kind]++
	}
	assert.Equal(t, 1, kinds[models.NotifyVerification])
	assert.Equal(t, 1, kinds[models.NotifyWelcome])
}

func TestProcessAuthenticated_Paid(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	track := env.createTrack(t, "Data Science", 250)
	learner := env.createLearner(t, "yaw@example.com")

	res, err := env.checkout.ProcessAuthenticated(ctx, learner.ID, models.CheckoutRequest{
		TrackSlug:      track.Slug,
		PaymentSuccess: boolPtr(true),
	})
	require.NoError(t, err)
	assert.True(t, res.AutoLogin)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, models.EnrollmentID(learner.ID, track.ID), res.EnrollmentID)

	inv, err := env.invoices.GetInvoice(ctx, res.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, inv.Status)
	assert.Equal(t, 250.0, inv.Amount)

	msgs := env.outbox(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.NotifyEnrollmentConfirmed, msgs[0].Kind)
}

func TestProcessAuthenticated_FailedPaymentHasNoToken(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	track := env.createTrack(t, "Data Science", 250)
	learner := env.createLearner(t, "yaw@example.com")

	res, err := env.checkout.ProcessAuthenticated(ctx, learner.ID, models.CheckoutRequest{
		TrackSlug:      track.Slug,
		PaymentSuccess: boolPtr(false),
	})
	require.NoError(t, err)
	assert.False(t, res.AutoLogin)
	assert.Empty(t, res.Token)
	assert.True(t, res.PendingPayment)

	msgs := env.outbox(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.NotifyPaymentFailed, msgs[0].Kind)
}

func TestProcessAuthenticated_AlreadyEnrolled(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	track := env.createTrack(t, "Data Science", 250)
	learner := env.createLearner(t, "yaw@example.com")

	_, err := env.checkout.ProcessAuthenticated(ctx, learner.ID, models.CheckoutRequest{TrackSlug: track.Slug, PaymentSuccess: boolPtr(true)})
	require.NoError(t, err)

	for _, paid := range []bool{true, false} {
		_, err = env.checkout.ProcessAuthenticated(ctx, learner.ID, models.CheckoutRequest{TrackSlug: track.Slug, PaymentSuccess: boolPtr(paid)})
		assert.ErrorIs(t, err, ErrAlreadyEnrolled)
	}

	invoices, err := env.invoices.ListForLearner(ctx, learner.ID)
	require.NoError(t, err)
	assert.Len(t, invoices, 1)
}

func TestProcessAuthenticated_UnknownLearner(t *testing.T) {
	env := newTestEnv(t, true)
	track := env.createTrack(t, "Data Science", 250)

	_, err := env.checkout.ProcessAuthenticated(context.Background(), "ghost", models.CheckoutRequest{TrackSlug: track.Slug, PaymentSuccess: boolPtr(true)})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestProcessAuthenticated_OnlyVerifiedLearners(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, false)
	track := env.createTrack(t, "React 101", 100)
	req := models.CheckoutRequest{TrackSlug: track.Slug, PaymentSuccess: boolPtr(true)}

	admin := &models.User{FirstName: "Kofi", LastName: "Admin", Email: "admin@example.com", Role: models.RoleAdmin, IsVerified: true}
	require.NoError(t, env.store.Users.Create(ctx, admin))
	_, err := env.checkout.ProcessAuthenticated(ctx, admin.ID, req)
	assert.ErrorIs(t, err, ErrForbidden)

	guest, err := env.checkout.ProcessGuest(ctx, guestRequest(track.Slug, "ama@example.com", false))
	require.NoError(t, err)
	require.False(t, guest.User.IsVerified)
	_, err = env.checkout.ProcessAuthenticated(ctx, guest.User.ID, req)
	assert.ErrorIs(t, err, ErrEmailNotVerified)

	enrollment, err := env.enrollments.FindEnrollment(ctx, guest.User.ID, track.ID)
	require.NoError(t, err)
	assert.Nil(t, enrollment)
}

func TestProcessAuthenticated_ConcurrentCheckoutsEnrollOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	track := env.createTrack(t, "Data Science", 250)
	learner := env.createLearner(t, "yaw@example.com")

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.checkout.ProcessAuthenticated(ctx, learner.ID, models.CheckoutRequest{TrackSlug: track.Slug, PaymentSuccess: boolPtr(true)})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyEnrolled)
	}
	assert.Equal(t, 1, succeeded)

	enrollments, err := env.enrollments.ListForLearner(ctx, learner.ID)
	require.NoError(t, err)
	assert.Len(t, enrollments, 1)
}

func TestRetryPayment_SuccessEnrolls(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	track := env.createTrack(t, "React 101", 100)

	res, err := env.checkout.ProcessGuest(ctx, guestRequest(track.Slug, "ama@example.com", false))
	require.NoError(t, err)

	retry, err := env.checkout.RetryPayment(ctx, res.User.ID, res.InvoiceID, models.PayInvoiceRequest{PaymentSuccess: boolPtr(true)})
	require.NoError(t, err)
	assert.False(t, retry.PendingPayment)
	assert.Equal(t, models.EnrollmentID(res.User.ID, track.ID), retry.EnrollmentID)

	inv, err := env.invoices.GetInvoice(ctx, res.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, inv.Status)

	enrollment, err := env.enrollments.FindEnrollment(ctx, res.User.ID, track.ID)
	require.NoError(t, err)
	assert.NotNil(t, enrollment)

	_, err = env.checkout.RetryPayment(ctx, res.User.ID, res.InvoiceID, models.PayInvoiceRequest{PaymentSuccess: boolPtr(true)})
	assert.ErrorIs(t, err, ErrInvoiceNotOpen)
}

func TestRetryPayment_AlreadyEnrolledThroughLaterCheckout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	track := env.createTrack(t, "React 101", 100)

	failed, err := env.checkout.ProcessGuest(ctx, guestRequest(track.Slug, "ama@example.com", false))
	require.NoError(t, err)

	paid, err := env.checkout.ProcessAuthenticated(ctx, failed.User.ID, models.CheckoutRequest{TrackSlug: track.Slug, PaymentSuccess: boolPtr(true)})
	require.NoError(t, err)

	stale, err := env.invoices.GetInvoice(ctx, failed.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceCancelled, stale.Status, "a paid checkout supersedes the open invoice for the track")

	_, err = env.checkout.RetryPayment(ctx, failed.User.ID, failed.InvoiceID, models.PayInvoiceRequest{PaymentSuccess: boolPtr(true)})
	assert.ErrorIs(t, err, ErrInvoiceNotOpen)

	invoices, err := env.invoices.ListForLearner(ctx, failed.User.ID)
	require.NoError(t, err)
	paidCount := 0
	for _, inv := range invoices {
		if inv.TrackID == track.ID && inv.Status == models.InvoicePaid {
			paidCount++
			assert.Equal(t, paid.InvoiceID, inv.ID)
		}
	}
	assert.Equal(t, 1, paidCount)
}

func TestRetryPayment_RejectsWhenEnrolled(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	track := env.createTrack(t, "React 101", 100)

	res, err := env.checkout.ProcessGuest(ctx, guestRequest(track.Slug, "ama@example.com", false))
	require.NoError(t, err)
	_, err = env.enrollments.Enroll(ctx, res.User.ID, track)
	require.NoError(t, err)

	_, err = env.checkout.RetryPayment(ctx, res.User.ID, res.InvoiceID, models.PayInvoiceRequest{PaymentSuccess: boolPtr(true)})
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)

	inv, err := env.invoices.GetInvoice(ctx, res.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceUnpaid, inv.Status)
}

func TestSetStatus_PaidCancelsOtherOpenInvoicesForTrack(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	track := env.createTrack(t, "React 101", 100)
	other := env.createTrack(t, "Data Science", 250)
	learner := env.createLearner(t, "ama@example.com")

	first, err := env.invoices.CreateInvoice(ctx, "admin-1", models.CreateInvoiceRequest{LearnerID: learner.ID, TrackID: track.ID})
	require.NoError(t, err)
	second, err := env.invoices.CreateInvoice(ctx, "admin-1", models.CreateInvoiceRequest{LearnerID: learner.ID, TrackID: track.ID})
	require.NoError(t, err)
	unrelated, err := env.invoices.CreateInvoice(ctx, "admin-1", models.CreateInvoiceRequest{LearnerID: learner.ID, TrackID: other.ID})
	require.NoError(t, err)

	_, err = env.invoices.SetStatus(ctx, "admin-1", first.ID, models.InvoicePaid, nil)
	require.NoError(t, err)

	got, err := env.invoices.GetInvoice(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceCancelled, got.Status)
	got, err = env.invoices.GetInvoice(ctx, unrelated.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceUnpaid, got.Status)
}

func TestRetryPayment_FailureKeepsInvoiceOpen(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	track := env.createTrack(t, "React 101", 100)

	res, err := env.checkout.ProcessGuest(ctx, guestRequest(track.Slug, "ama@example.com", false))
	require.NoError(t, err)

	retry, err := env.checkout.RetryPayment(ctx, res.User.ID, res.InvoiceID, models.PayInvoiceRequest{PaymentSuccess: boolPtr(false)})
	require.NoError(t, err)
	assert.True(t, retry.PendingPayment)

	inv, err := env.invoices.GetInvoice(ctx, res.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceUnpaid, inv.Status)
	assert.Len(t, env.outbox(t), 2)
}

func TestRetryPayment_OtherLearnersInvoice(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	track := env.createTrack(t, "React 101", 100)
	other := env.createLearner(t, "other@example.com")

	res, err := env.checkout.ProcessGuest(ctx, guestRequest(track.Slug, "ama@example.com", false))
	require.NoError(t, err)

	_, err = env.checkout.RetryPayment(ctx, other.ID, res.InvoiceID, models.PayInvoiceRequest{PaymentSuccess: boolPtr(true)})
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

type failingOutbox struct {
	db.OutboxRepository
	fail bool
}

func (f *failingOutbox) Create(ctx context.Context, m *models.OutboxMessage) error {
	if f.fail {
		return errors.New("outbox unavailable")
	}
	return f.OutboxRepository.Create(ctx, m)
}

func TestResumePending_CompletesStalledCheckout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	track := env.createTrack(t, "React 101", 100)
	learner := env.createLearner(t, "yaw@example.com")

	outbox := &failingOutbox{OutboxRepository: env.store.Outbox, fail: true}
	env.notifier = NewNotificationService(outbox, nil, "", "https://learn.example.com", zap.NewNop())
	svc := env.checkout.(*checkoutService)
	svc.notifier = env.notifier

	_, err := svc.ProcessAuthenticated(ctx, learner.ID, models.CheckoutRequest{TrackSlug: track.Slug, PaymentSuccess: boolPtr(true)})
	require.Error(t, err)

	pending, err := env.store.Checkouts.ListPending(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.NotEmpty(t, pending[0].EnrollmentID)
	assert.Empty(t, env.outbox(t))

	outbox.fail = false
	n, err := svc.ResumePending(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	intent, err := env.store.Checkouts.GetByID(ctx, pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutCompleted, intent.Status)

	msgs := env.outbox(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, OutboxKey(intent.ID, models.NotifyEnrollmentConfirmed), msgs[0].ID)

	invoices, err := env.invoices.ListForLearner(ctx, learner.ID)
	require.NoError(t, err)
	assert.Len(t, invoices, 1)

	n, err = svc.ResumePending(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestResumePending_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	track := env.createTrack(t, "React 101", 100)
	learner := env.createLearner(t, "yaw@example.com")

	old := time.Now().Add(-time.Hour)
	intent := &models.CheckoutIntent{
		LearnerID: learner.ID, TrackID: track.ID, Amount: track.Price, PaymentSuccess: true,
		Status: models.CheckoutPending, Attempts: maxResumeAttempts, CreatedAt: old, UpdatedAt: old,
	}
	require.NoError(t, env.store.Checkouts.Create(ctx, intent))

	n, err := env.checkout.ResumePending(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := env.store.Checkouts.GetByID(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutFailed, got.Status)
}
