package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aglago/g-clients-sub000/internal/db"
	"github.com/aglago/g-clients-sub000/internal/models"
	"github.com/aglago/g-clients-sub000/pkg/messagequeue"
)

type emailTemplate struct {
	subject string
	body    *template.Template
}

const emailLayout = `<html><body style="font-family:Arial,sans-serif;color:#1f2937">{{template "content" .}}<p>The G-Clients team</p></body></html>`

func mustEmail(subject, content string) emailTemplate {
	t := template.Must(template.New("layout").Parse(emailLayout))
	template.Must(t.New("content").Parse(content))
	return emailTemplate{subject: subject, body: t}
}

var emailTemplates = map[models.NotificationKind]emailTemplate{
	models.NotifyVerification: mustEmail("Verify your email address",
		`<p>Hi {{.Name}},</p><p>Your verification code is <strong>{{.Code}}</strong>. It expires in 15 minutes.</p>`),
	models.NotifyPasswordReset: mustEmail("Reset your password",
		`<p>Hi {{.Name}},</p><p>Use the link below to choose a new password. It expires in one hour.</p><p><a href="{{.Link}}">Reset password</a></p>`),
	models.NotifyWelcome: mustEmail("Welcome to {{.Track}}",
		`<p>Hi {{.Name}},</p><p>Your payment was received and you are enrolled in <strong>{{.Track}}</strong>.</p>`+
			`<p>Log in at <a href="{{.Link}}">{{.Link}}</a> with <strong>{{.Email}}</strong> and the password you chose at checkout.</p>`),
	models.NotifyEnrollmentConfirmed: mustEmail("Enrollment confirmed: {{.Track}}",
		`<p>Hi {{.Name}},</p><p>You are now enrolled in <strong>{{.Track}}</strong>. Head to <a href="{{.Link}}">your portal</a> to start learning.</p>`),
	models.NotifyPaymentPending: mustEmail("Complete your payment for {{.Track}}",
		`<p>Hi {{.Name}},</p><p>Your account was created but the payment of {{.Amount}} for <strong>{{.Track}}</strong> did not go through.</p>`+
			`<p>Invoice {{.InvoiceID}} is due by {{.DueDate}}. <a href="{{.Link}}">Retry the payment</a> to start learning.</p>`),
	models.NotifyPaymentFailed: mustEmail("Payment failed for {{.Track}}",
		`<p>Hi {{.Name}},</p><p>The payment of {{.Amount}} for <strong>{{.Track}}</strong> did not go through.</p>`+
			`<p>Invoice {{.InvoiceID}} stays open until {{.DueDate}}. <a href="{{.Link}}">Retry the payment</a>.</p>`),
}

// Subjects are plain text templates so they can name the track.
func renderSubject(subject string, data emailData) (string, error) {
	t, err := texttemplate.New("subject").Parse(subject)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type emailData struct {
	Name      string
	Email     string
	Code      string
	Link      string
	Track     string
	Amount    string
	InvoiceID string
	DueDate   string
}

// notificationService implements the Notifier interface on top of the outbox.
type notificationService struct {
	outboxRepo db.OutboxRepository
	queue      messagequeue.MessageQueue
	queueName  string
	clientURL  string
	logger     *zap.Logger
	now        func() time.Time
}

// NewNotificationService creates a Notifier. Messages are persisted to the outbox and their
// IDs published on queueName to wake the dispatcher. A nil queue only persists.
func NewNotificationService(outbox db.OutboxRepository, queue messagequeue.MessageQueue, queueName, clientURL string, logger *zap.Logger) Notifier {
	return &notificationService{
		outboxRepo: outbox,
		queue:      queue,
		queueName:  queueName,
		clientURL:  strings.TrimRight(clientURL, "/"),
		logger:     logger,
		now:        time.Now,
	}
}

// OutboxKey builds the idempotency key of a checkout notification.
func OutboxKey(checkoutID string, kind models.NotificationKind) string {
	return checkoutID + "-" + string(kind)
}

func (s *notificationService) link(path string, query url.Values) string {
	u := s.clientURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (s *notificationService) SendVerification(ctx context.Context, user *models.User, code string) error {
	return s.enqueue(ctx, uuid.NewString(), models.NotifyVerification, user.Email, emailData{
		Name: user.FirstName, Code: code,
	})
}

func (s *notificationService) SendPasswordReset(ctx context.Context, user *models.User, token string) error {
	return s.enqueue(ctx, uuid.NewString(), models.NotifyPasswordReset, user.Email, emailData{
		Name: user.FirstName,
		Link: s.link("/reset-password", url.Values{"token": {token}, "email": {user.Email}}),
	})
}

func (s *notificationService) SendWelcome(ctx context.Context, key string, user *models.User, track *models.Track) error {
	return s.enqueue(ctx, key, models.NotifyWelcome, user.Email, emailData{
		Name: user.FirstName, Email: user.Email, Track: track.Name, Link: s.link("/login", nil),
	})
}

func (s *notificationService) SendEnrollmentConfirmed(ctx context.Context, key string, user *models.User, track *models.Track) error {
	return s.enqueue(ctx, key, models.NotifyEnrollmentConfirmed, user.Email, emailData{
		Name: user.FirstName, Track: track.Name, Link: s.link("/portal", nil),
	})
}

func (s *notificationService) SendPaymentPending(ctx context.Context, key string, user *models.User, track *models.Track, invoice *models.Invoice) error {
	return s.enqueue(ctx, key, models.NotifyPaymentPending, user.Email, s.invoiceData(user, track, invoice))
}

func (s *notificationService) SendPaymentFailed(ctx context.Context, key string, user *models.User, track *models.Track, invoice *models.Invoice) error {
	return s.enqueue(ctx, key, models.NotifyPaymentFailed, user.Email, s.invoiceData(user, track, invoice))
}

func (s *notificationService) invoiceData(user *models.User, track *models.Track, invoice *models.Invoice) emailData {
	return emailData{
		Name:      user.FirstName,
		Track:     track.Name,
		Amount:    fmt.Sprintf("%.2f", invoice.Amount),
		InvoiceID: invoice.ID,
		DueDate:   invoice.DueDate.Format("2 January 2006"),
		Link:      s.link("/portal/invoices/"+invoice.ID, nil),
	}
}

// enqueue renders and stores the message, then signals the dispatcher. Storing an ID that
// already exists is treated as success. A failed signal is only logged since the dispatcher
// also polls the outbox.
func (s *notificationService) enqueue(ctx context.Context, id string, kind models.NotificationKind, to string, data emailData) error {
	tpl, ok := emailTemplates[kind]
	if !ok {
		return fmt.Errorf("no email template for %q", kind)
	}
	subject, err := renderSubject(tpl.subject, data)
	if err != nil {
		return fmt.Errorf("failed to render %s subject: %w", kind, err)
	}
	var body bytes.Buffer
	if err := tpl.body.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render %s email: %w", kind, err)
	}

	now := s.now().UTC()
	msg := &models.OutboxMessage{
		ID:            id,
		Kind:          kind,
		To:            to,
		Subject:       subject,
		Body:          body.String(),
		Status:        models.OutboxPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	if err := s.outboxRepo.Create(ctx, msg); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return nil
		}
		return fmt.Errorf("failed to store %s email: %w", kind, err)
	}

	if s.queue != nil {
		if err := s.queue.Publish(ctx, s.queueName, []byte(msg.ID)); err != nil {
			s.logger.Warn("failed to signal notification queue", zap.String("messageId", msg.ID), zap.Error(err))
		}
	}
	return nil
}
