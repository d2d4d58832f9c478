package db

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/aglago/g-clients-sub000/internal/config"
)

// Collection names.
const (
	usersCollection         = "users"
	userEmailsCollection    = "user_emails"
	tracksCollection        = "tracks"
	coursesCollection       = "courses"
	enrollmentsCollection   = "track_enrollments"
	registrationsCollection = "course_registrations"
	invoicesCollection      = "invoices"
	checkoutsCollection     = "checkouts"
	outboxCollection        = "outbox"
	auditLogsCollection     = "audit_logs"
)

// InitFirestore initializes the Firebase Admin SDK and returns a Firestore client.
// Credentials come from a file path, a base64 service account JSON, or Application Default Credentials.
func InitFirestore(ctx context.Context, appConfig *config.Config, logger *zap.Logger) (*firestore.Client, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("InitFirestore: appConfig cannot be nil")
	}

	var opts []option.ClientOption
	switch {
	case appConfig.GoogleApplicationCredentials != "":
		if _, err := os.Stat(appConfig.GoogleApplicationCredentials); os.IsNotExist(err) {
			logger.Warn("credentials file does not exist", zap.String("path", appConfig.GoogleApplicationCredentials))
		}
		logger.Info("initializing Firebase with credentials file", zap.String("path", appConfig.GoogleApplicationCredentials))
		opts = append(opts, option.WithCredentialsFile(appConfig.GoogleApplicationCredentials))
	case appConfig.FirebaseServiceAccountJSONBase64 != "":
		decodedJSON, err := base64.StdEncoding.DecodeString(appConfig.FirebaseServiceAccountJSONBase64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode FirebaseServiceAccountJSONBase64: %w", err)
		}
		logger.Info("initializing Firebase with base64 encoded service account JSON")
		opts = append(opts, option.WithCredentialsJSON(decodedJSON))
	default:
		logger.Info("initializing Firebase using Application Default Credentials")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: appConfig.FirebaseProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("app.Firestore: %w", err)
	}
	return client, nil
}

// NewFirestoreStore wires every Firestore repository around one client.
func NewFirestoreStore(client *firestore.Client) *Store {
	return &Store{
		Users:       NewFirestoreUserRepository(client),
		Tracks:      NewFirestoreTrackRepository(client),
		Courses:     NewFirestoreCourseRepository(client),
		Enrollments: NewFirestoreEnrollmentRepository(client),
		Invoices:    NewFirestoreInvoiceRepository(client),
		Checkouts:   NewFirestoreCheckoutRepository(client),
		Outbox:      NewFirestoreOutboxRepository(client),
		Audit:       NewFirestoreAuditRepository(client),
	}
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}

// collect drains a document iterator, decoding each document with decode.
func collect[T any](iter *firestore.DocumentIterator, decode func(*firestore.DocumentSnapshot) (*T, error)) ([]*T, error) {
	defer iter.Stop()

	var out []*T
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		item, err := decode(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to decode document '%s': %w", doc.Ref.ID, err)
		}
		out = append(out, item)
	}
	return out, nil
}
