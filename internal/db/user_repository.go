package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/aglago/g-clients-sub000/internal/models"
)

// firestoreUserRepository implements the UserRepository interface using Firestore.
// Email uniqueness is kept by a user_emails/<email> index document written in the same transaction.
type firestoreUserRepository struct {
	client *firestore.Client
}

// NewFirestoreUserRepository creates a new instance of firestoreUserRepository.
func NewFirestoreUserRepository(client *firestore.Client) UserRepository {
	return &firestoreUserRepository{client: client}
}

type emailIndex struct {
	UserID string `firestore:"userId"`
}

func decodeUser(doc *firestore.DocumentSnapshot) (*models.User, error) {
	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return nil, err
	}
	user.ID = doc.Ref.ID
	return &user, nil
}

// Create adds a new user document and claims its email atomically.
func (r *firestoreUserRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = models.NormalizeEmail(user.Email)
	if user.Email == "" {
		return errors.New("user email cannot be empty for Create operation")
	}

	userRef := r.client.Collection(usersCollection).NewDoc()
	emailRef := r.client.Collection(userEmailsCollection).Doc(user.Email)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(emailRef); err == nil {
			return ErrAlreadyExists
		} else if !isNotFound(err) {
			return err
		}
		if err := tx.Create(emailRef, emailIndex{UserID: userRef.ID}); err != nil {
			return err
		}
		return tx.Create(userRef, user)
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) || isAlreadyExists(err) {
			return fmt.Errorf("user with email '%s': %w", user.Email, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create user with email '%s': %w", user.Email, err)
	}
	user.ID = userRef.ID
	return nil
}

// GetByID retrieves a user document by its ID.
func (r *firestoreUserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("empty user ID: %w", ErrNotFound)
	}
	docSnap, err := r.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user with ID '%s': %w", userID, err)
	}
	return decodeUser(docSnap)
}

// GetByEmail resolves the email index and loads the user.
func (r *firestoreUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("empty email: %w", ErrNotFound)
	}
	idxSnap, err := r.client.Collection(userEmailsCollection).Doc(email).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("user with email '%s' not found: %w", email, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to look up email '%s': %w", email, err)
	}
	var idx emailIndex
	if err := idxSnap.DataTo(&idx); err != nil {
		return nil, fmt.Errorf("failed to decode email index for '%s': %w", email, err)
	}
	return r.GetByID(ctx, idx.UserID)
}

// Update overwrites an existing user document. The email is immutable here.
func (r *firestoreUserRepository) Update(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		return errors.New("user ID cannot be empty for Update operation")
	}
	user.UpdatedAt = time.Now().UTC()
	_, err := r.client.Collection(usersCollection).Doc(user.ID).Set(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to update user with ID '%s': %w", user.ID, err)
	}
	return nil
}

// Delete removes the user and releases the email.
func (r *firestoreUserRepository) Delete(ctx context.Context, userID string) error {
	userRef := r.client.Collection(usersCollection).Doc(userID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(userRef)
		if err != nil {
			if isNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		user, err := decodeUser(snap)
		if err != nil {
			return err
		}
		if err := tx.Delete(r.client.Collection(userEmailsCollection).Doc(user.Email)); err != nil {
			return err
		}
		return tx.Delete(userRef)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("user with ID '%s' not found for deletion: %w", userID, ErrNotFound)
		}
		return fmt.Errorf("failed to delete user with ID '%s': %w", userID, err)
	}
	return nil
}

// ListByRole returns every user with the given role, newest first.
func (r *firestoreUserRepository) ListByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	iter := r.client.Collection(usersCollection).Where("role", "==", string(role)).OrderBy("createdAt", firestore.Desc).Documents(ctx)
	users, err := collect(iter, decodeUser)
	if err != nil {
		return nil, fmt.Errorf("failed to list users with role '%s': %w", role, err)
	}
	return users, nil
}

// CountByRole counts the users with the given role.
func (r *firestoreUserRepository) CountByRole(ctx context.Context, role models.Role) (int, error) {
	users, err := r.ListByRole(ctx, role)
	if err != nil {
		return 0, err
	}
	return len(users), nil
}
