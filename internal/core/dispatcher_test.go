package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aglago/g-clients-sub000/internal/models"
)

func TestBackoff(t *testing.T) {
	assert.Equal(t, 30*time.Second, Backoff(0))
	assert.Equal(t, 30*time.Second, Backoff(1))
	assert.Equal(t, time.Minute, Backoff(2))
	assert.Equal(t, 4*time.Minute, Backoff(4))
	assert.Equal(t, time.Hour, Backoff(20))
}

func TestDispatcher_ProcessPendingSendsOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	track := env.createTrack(t, "React 101", 100)

	res, err := env.checkout.ProcessGuest(ctx, guestRequest(track.Slug, "ama@example.com", true))
	require.NoError(t, err)

	sent, err := env.dispatcher.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	mails := env.mail.Sent()
	require.Len(t, mails, 1)
	assert.Equal(t, "ama@example.com", mails[0].To)
	assert.Contains(t, mails[0].Subject, "React 101")

	msg, err := env.store.Outbox.GetByID(ctx, OutboxKey(res.CheckoutID, models.NotifyWelcome))
	require.NoError(t, err)
	assert.Equal(t, models.OutboxSent, msg.Status)
	assert.NotNil(t, msg.SentAt)

	require.NoError(t, env.dispatcher.DeliverByID(ctx, msg.ID))
	sent, err = env.dispatcher.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, env.mail.Sent(), 1)
}

func TestDispatcher_RetriesWithBackoffThenFails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	track := env.createTrack(t, "React 101", 100)

	env.dispatcher.cfg.MaxAttempts = 2
	env.mail.SetErr(errors.New("smtp down"))

	_, err := env.checkout.ProcessGuest(ctx, guestRequest(track.Slug, "ama@example.com", true))
	require.NoError(t, err, "a mail outage must not fail checkout")

	now := time.Now().UTC()
	env.dispatcher.now = func() time.Time { return now }

	sent, err := env.dispatcher.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)

	msgs, err := env.store.Outbox.ListDue(ctx, now.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, 1, msgs[0].Attempts)
	assert.Equal(t, now.Add(Backoff(1)), msgs[0].NextAttemptAt)
	assert.Equal(t, "smtp down", msgs[0].LastError)

	sent, err = env.dispatcher.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent, "not due yet")

	now = now.Add(Backoff(1))
	_, err = env.dispatcher.ProcessPending(ctx)
	require.NoError(t, err)

	got, err := env.store.Outbox.GetByID(ctx, msgs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutboxFailed, got.Status)
	assert.Equal(t, 2, got.Attempts)
}

func TestDispatcher_RunDeliversQueuedMessages(t *testing.T) {
	env := newTestEnv(t, true)
	track := env.createTrack(t, "React 101", 100)
	env.dispatcher.cfg.PollInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.dispatcher.Run(ctx) }()

	_, err := env.checkout.ProcessGuest(context.Background(), guestRequest(track.Slug, "ama@example.com", true))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(env.mail.Sent()) == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
