package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/aglago/g-clients-sub000/internal/models"
)

// firestoreInvoiceRepository implements the InvoiceRepository interface using Firestore.
type firestoreInvoiceRepository struct {
	client *firestore.Client
}

// NewFirestoreInvoiceRepository creates a new instance of firestoreInvoiceRepository.
func NewFirestoreInvoiceRepository(client *firestore.Client) InvoiceRepository {
	return &firestoreInvoiceRepository{client: client}
}

func decodeInvoice(doc *firestore.DocumentSnapshot) (*models.Invoice, error) {
	var inv models.Invoice
	if err := doc.DataTo(&inv); err != nil {
		return nil, err
	}
	inv.ID = doc.Ref.ID
	return &inv, nil
}

func (r *firestoreInvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	var docRef *firestore.DocumentRef
	if invoice.ID != "" {
		docRef = r.client.Collection(invoicesCollection).Doc(invoice.ID)
	} else {
		docRef = r.client.Collection(invoicesCollection).NewDoc()
	}
	if _, err := docRef.Create(ctx, invoice); err != nil {
		if isAlreadyExists(err) {
			return fmt.Errorf("invoice '%s': %w", docRef.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	invoice.ID = docRef.ID
	return nil
}

func (r *firestoreInvoiceRepository) GetByID(ctx context.Context, invoiceID string) (*models.Invoice, error) {
	if invoiceID == "" {
		return nil, fmt.Errorf("empty invoice ID: %w", ErrNotFound)
	}
	docSnap, err := r.client.Collection(invoicesCollection).Doc(invoiceID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("invoice '%s' not found: %w", invoiceID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get invoice '%s': %w", invoiceID, err)
	}
	return decodeInvoice(docSnap)
}

func (r *firestoreInvoiceRepository) ListByLearner(ctx context.Context, learnerID string) ([]*models.Invoice, error) {
	iter := r.client.Collection(invoicesCollection).Where("learnerId", "==", learnerID).Documents(ctx)
	out, err := collect(iter, decodeInvoice)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices for learner '%s': %w", learnerID, err)
	}
	return out, nil
}

func (r *firestoreInvoiceRepository) List(ctx context.Context) ([]*models.Invoice, error) {
	iter := r.client.Collection(invoicesCollection).OrderBy("createdAt", firestore.Desc).Documents(ctx)
	out, err := collect(iter, decodeInvoice)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return out, nil
}

func (r *firestoreInvoiceRepository) Update(ctx context.Context, invoice *models.Invoice) error {
	if invoice.ID == "" {
		return errors.New("invoice ID cannot be empty for Update operation")
	}
	if _, err := r.client.Collection(invoicesCollection).Doc(invoice.ID).Set(ctx, invoice); err != nil {
		return fmt.Errorf("failed to update invoice '%s': %w", invoice.ID, err)
	}
	return nil
}

// firestoreCheckoutRepository implements the CheckoutRepository interface using Firestore.
type firestoreCheckoutRepository struct {
	client *firestore.Client
}

// NewFirestoreCheckoutRepository creates a new instance of firestoreCheckoutRepository.
func NewFirestoreCheckoutRepository(client *firestore.Client) CheckoutRepository {
	return &firestoreCheckoutRepository{client: client}
}

func decodeCheckout(doc *firestore.DocumentSnapshot) (*models.CheckoutIntent, error) {
	var intent models.CheckoutIntent
	if err := doc.DataTo(&intent); err != nil {
		return nil, err
	}
	intent.ID = doc.Ref.ID
	return &intent, nil
}

func (r *firestoreCheckoutRepository) Create(ctx context.Context, intent *models.CheckoutIntent) error {
	docRef := r.client.Collection(checkoutsCollection).NewDoc()
	if _, err := docRef.Create(ctx, intent); err != nil {
		return fmt.Errorf("failed to create checkout intent: %w", err)
	}
	intent.ID = docRef.ID
	return nil
}

func (r *firestoreCheckoutRepository) GetByID(ctx context.Context, intentID string) (*models.CheckoutIntent, error) {
	docSnap, err := r.client.Collection(checkoutsCollection).Doc(intentID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("checkout intent '%s' not found: %w", intentID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get checkout intent '%s': %w", intentID, err)
	}
	return decodeCheckout(docSnap)
}

func (r *firestoreCheckoutRepository) Update(ctx context.Context, intent *models.CheckoutIntent) error {
	if intent.ID == "" {
		return errors.New("checkout intent ID cannot be empty for Update operation")
	}
	if _, err := r.client.Collection(checkoutsCollection).Doc(intent.ID).Set(ctx, intent); err != nil {
		return fmt.Errorf("failed to update checkout intent '%s': %w", intent.ID, err)
	}
	return nil
}

func (r *firestoreCheckoutRepository) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*models.CheckoutIntent, error) {
	iter := r.client.Collection(checkoutsCollection).
		Where("status", "==", string(models.CheckoutPending)).
		Where("updatedAt", "<", olderThan).
		OrderBy("updatedAt", firestore.Asc).
		Limit(limit).
		Documents(ctx)
	out, err := collect(iter, decodeCheckout)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending checkouts: %w", err)
	}
	return out, nil
}

// firestoreOutboxRepository implements the OutboxRepository interface using Firestore.
type firestoreOutboxRepository struct {
	client *firestore.Client
}

// NewFirestoreOutboxRepository creates a new instance of firestoreOutboxRepository.
func NewFirestoreOutboxRepository(client *firestore.Client) OutboxRepository {
	return &firestoreOutboxRepository{client: client}
}

func decodeOutbox(doc *firestore.DocumentSnapshot) (*models.OutboxMessage, error) {
	var msg models.OutboxMessage
	if err := doc.DataTo(&msg); err != nil {
		return nil, err
	}
	msg.ID = doc.Ref.ID
	return &msg, nil
}

func (r *firestoreOutboxRepository) Create(ctx context.Context, message *models.OutboxMessage) error {
	var docRef *firestore.DocumentRef
	if message.ID != "" {
		docRef = r.client.Collection(outboxCollection).Doc(message.ID)
	} else {
		docRef = r.client.Collection(outboxCollection).NewDoc()
	}
	if _, err := docRef.Create(ctx, message); err != nil {
		if isAlreadyExists(err) {
			return fmt.Errorf("outbox message '%s': %w", docRef.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create outbox message: %w", err)
	}
	message.ID = docRef.ID
	return nil
}

func (r *firestoreOutboxRepository) GetByID(ctx context.Context, messageID string) (*models.OutboxMessage, error) {
	docSnap, err := r.client.Collection(outboxCollection).Doc(messageID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("outbox message '%s' not found: %w", messageID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get outbox message '%s': %w", messageID, err)
	}
	return decodeOutbox(docSnap)
}

func (r *firestoreOutboxRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.OutboxMessage, error) {
	iter := r.client.Collection(outboxCollection).
		Where("status", "==", string(models.OutboxPending)).
		Where("nextAttemptAt", "<=", now).
		OrderBy("nextAttemptAt", firestore.Asc).
		Limit(limit).
		Documents(ctx)
	out, err := collect(iter, decodeOutbox)
	if err != nil {
		return nil, fmt.Errorf("failed to list due outbox messages: %w", err)
	}
	return out, nil
}

func (r *firestoreOutboxRepository) Update(ctx context.Context, message *models.OutboxMessage) error {
	if message.ID == "" {
		return errors.New("outbox message ID cannot be empty for Update operation")
	}
	if _, err := r.client.Collection(outboxCollection).Doc(message.ID).Set(ctx, message); err != nil {
		return fmt.Errorf("failed to update outbox message '%s': %w", message.ID, err)
	}
	return nil
}

// firestoreAuditRepository implements the AuditRepository interface using Firestore.
type firestoreAuditRepository struct {
	client *firestore.Client
}

// NewFirestoreAuditRepository creates a new instance of firestoreAuditRepository.
func NewFirestoreAuditRepository(client *firestore.Client) AuditRepository {
	return &firestoreAuditRepository{client: client}
}

// Create adds a new audit log entry to Firestore.
func (r *firestoreAuditRepository) Create(ctx context.Context, logEntry models.AuditLog) error {
	if logEntry.Timestamp.IsZero() {
		logEntry.Timestamp = time.Now().UTC()
	}
	if _, _, err := r.client.Collection(auditLogsCollection).Add(ctx, logEntry); err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}
