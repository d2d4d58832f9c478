package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aglago/g-clients-sub000/internal/db"
	"github.com/aglago/g-clients-sub000/internal/models"
	"github.com/aglago/g-clients-sub000/pkg/mailer"
	"github.com/aglago/g-clients-sub000/pkg/messagequeue"
)

const (
	dispatchBatchSize = 50
	retryBaseDelay    = 30 * time.Second
	retryMaxDelay     = time.Hour
)

// DispatcherConfig contains options for creating a Dispatcher.
type DispatcherConfig struct {
	QueueName    string
	PollInterval time.Duration
	MaxAttempts  int
	// StaleCheckoutAfter is how long a checkout may stay pending before the reconciler resumes it.
	StaleCheckoutAfter time.Duration
}

// Dispatcher delivers outbox messages through a Mailer and resumes stalled checkouts.
// It wakes on queue signals and also polls, so a lost signal only delays delivery.
type Dispatcher struct {
	outbox    db.OutboxRepository
	mailer    mailer.Mailer
	queue     messagequeue.MessageQueue
	checkouts CheckoutService
	cfg       DispatcherConfig
	logger    *zap.Logger
	now       func() time.Time

	mu sync.Mutex // one delivery at a time so a message is not sent twice
}

// NewDispatcher creates a Dispatcher. queue and checkouts may be nil.
func NewDispatcher(outbox db.OutboxRepository, m mailer.Mailer, queue messagequeue.MessageQueue, checkouts CheckoutService, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.StaleCheckoutAfter <= 0 {
		cfg.StaleCheckoutAfter = 2 * time.Minute
	}
	return &Dispatcher{
		outbox:    outbox,
		mailer:    m,
		queue:     queue,
		checkouts: checkouts,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Run blocks until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.queue != nil {
		go func() {
			err := d.queue.Consume(ctx, d.cfg.QueueName, func(body []byte) {
				if err := d.DeliverByID(ctx, string(body)); err != nil {
					d.logger.Warn("queued delivery failed", zap.String("messageId", string(body)), zap.Error(err))
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("notification consumer stopped", zap.Error(err))
			}
		}()
	}

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	d.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context) {
	if d.checkouts != nil {
		if n, err := d.checkouts.ResumePending(ctx, d.now().UTC().Add(-d.cfg.StaleCheckoutAfter)); err != nil {
			d.logger.Error("checkout reconciliation failed", zap.Error(err))
		} else if n > 0 {
			d.logger.Info("resumed pending checkouts", zap.Int("count", n))
		}
	}
	if _, err := d.ProcessPending(ctx); err != nil {
		d.logger.Error("outbox poll failed", zap.Error(err))
	}
}

// ProcessPending delivers every due message and returns how many were sent.
func (d *Dispatcher) ProcessPending(ctx context.Context) (int, error) {
	due, err := d.outbox.ListDue(ctx, d.now().UTC(), dispatchBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list due messages: %w", err)
	}
	sent := 0
	for _, msg := range due {
		ok, err := d.deliver(ctx, msg.ID)
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

// DeliverByID delivers one message if it is still pending and due.
func (d *Dispatcher) DeliverByID(ctx context.Context, messageID string) error {
	_, err := d.deliver(ctx, messageID)
	return err
}

// deliver returns an error only when the outbox itself cannot be read or written.
func (d *Dispatcher) deliver(ctx context.Context, messageID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	msg, err := d.outbox.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	now := d.now().UTC()
	if msg.Status != models.OutboxPending || msg.NextAttemptAt.After(now) {
		return false, nil
	}

	sendErr := d.mailer.Send(ctx, mailer.Message{To: msg.To, Subject: msg.Subject, Body: msg.Body})
	msg.Attempts++
	if sendErr == nil {
		msg.Status = models.OutboxSent
		msg.SentAt = &now
		msg.LastError = ""
	} else {
		msg.LastError = sendErr.Error()
		if msg.Attempts >= d.cfg.MaxAttempts {
			msg.Status = models.OutboxFailed
			d.logger.Error("giving up on email",
				zap.String("messageId", msg.ID), zap.String("kind", string(msg.Kind)), zap.Int("attempts", msg.Attempts), zap.Error(sendErr))
		} else {
			msg.NextAttemptAt = now.Add(Backoff(msg.Attempts))
			d.logger.Warn("email delivery failed, will retry",
				zap.String("messageId", msg.ID), zap.Int("attempts", msg.Attempts), zap.Time("nextAttemptAt", msg.NextAttemptAt), zap.Error(sendErr))
		}
	}

	if err := d.outbox.Update(ctx, msg); err != nil {
		return false, fmt.Errorf("failed to record delivery of %s: %w", msg.ID, err)
	}
	return sendErr == nil, nil
}

// Backoff returns the delay before the next attempt after the given number of failed attempts.
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := retryBaseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= retryMaxDelay {
			return retryMaxDelay
		}
	}
	return delay
}
