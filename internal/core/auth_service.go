package core

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/aglago/g-clients-sub000/internal/db"
	"github.com/aglago/g-clients-sub000/internal/models"
)

// authService implements the AuthService interface.
type authService struct {
	userRepo        db.UserRepository
	tokens          TokenIssuer
	notifier        Notifier
	adminSignupCode string
	logger          *zap.Logger
	now             func() time.Time
}

// NewAuthService creates a new AuthService instance. An empty adminSignupCode disables admin signup.
func NewAuthService(ur db.UserRepository, tokens TokenIssuer, notifier Notifier, adminSignupCode string, logger *zap.Logger) AuthService {
	return &authService{
		userRepo:        ur,
		tokens:          tokens,
		notifier:        notifier,
		adminSignupCode: adminSignupCode,
		logger:          logger,
		now:             time.Now,
	}
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *authService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	user := &models.User{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     req.Email,
		Contact:   req.Contact,
		Gender:    req.Gender,
		Location:  req.Location,
		Role:      models.RoleLearner,
	}
	return s.createUnverified(ctx, user, req.Password)
}

func (s *authService) RegisterAdmin(ctx context.Context, req models.RegisterAdminRequest) (*models.User, error) {
	if s.adminSignupCode == "" {
		return nil, fmt.Errorf("%w: admin signup is disabled", ErrForbidden)
	}
	if subtle.ConstantTimeCompare([]byte(s.adminSignupCode), []byte(req.SignupCode)) != 1 {
		return nil, ErrInvalidSignupCode
	}
	user := &models.User{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     req.Email,
		Contact:   req.Contact,
		Role:      models.RoleAdmin,
	}
	return s.createUnverified(ctx, user, req.Password)
}

// createUnverified stores a new account with a fresh verification code and mails the code.
// A failed email does not fail the registration; the user can ask for a new code.
func (s *authService) createUnverified(ctx context.Context, user *models.User, password string) (*models.User, error) {
	user.Email = models.NormalizeEmail(user.Email)
	if user.Email == "" || user.FirstName == "" || user.LastName == "" {
		return nil, fmt.Errorf("%w: name and email are required", ErrValidation)
	}

	if _, err := s.userRepo.GetByEmail(ctx, user.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	code, expiresAt, err := s.tokens.IssueOneTimeCode()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user.PasswordHash = hash
	user.IsVerified = false
	user.VerificationCode = code
	user.VerificationCodeExpiresAt = &expiresAt
	user.CreatedAt = now
	user.UpdatedAt = now

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.notifier.SendVerification(ctx, user, code); err != nil {
		s.logger.Warn("verification email not queued", zap.String("userId", user.ID), zap.Error(err))
	}
	s.logger.Info("user registered", zap.String("userId", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

func (s *authService) VerifyEmail(ctx context.Context, req models.VerifyEmailRequest) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user.IsVerified {
		return nil, ErrAlreadyVerified
	}
	if err := s.tokens.VerifyOneTimeCode(user, req.Code); err != nil {
		return nil, err
	}

	user.IsVerified = true
	user.VerificationCode = ""
	user.VerificationCodeExpiresAt = nil
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to mark user verified: %w", err)
	}

	token, err := s.tokens.IssueToken(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

// ResendVerification issues a fresh code. Unknown emails succeed silently, as in ForgotPassword.
func (s *authService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.logger.Info("verification resend requested for unknown email")
			return nil
		}
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	code, expiresAt, err := s.tokens.IssueOneTimeCode()
	if err != nil {
		return err
	}
	user.VerificationCode = code
	user.VerificationCodeExpiresAt = &expiresAt
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}
	if err := s.notifier.SendVerification(ctx, user, code); err != nil {
		return fmt.Errorf("failed to queue verification email: %w", err)
	}
	return nil
}

func (s *authService) Login(ctx context.Context, req models.LoginRequest) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !checkPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsVerified {
		return nil, ErrEmailNotVerified
	}

	now := s.now().UTC()
	user.LastLoginAt = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Warn("failed to record last login", zap.String("userId", user.ID), zap.Error(err))
	}

	token, err := s.tokens.IssueToken(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	token, stored, expiresAt, err := s.tokens.IssueResetToken()
	if err != nil {
		return err
	}
	user.ResetToken = stored
	user.ResetTokenExpiresAt = &expiresAt
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}
	if err := s.notifier.SendPasswordReset(ctx, user, token); err != nil {
		return fmt.Errorf("failed to queue reset email: %w", err)
	}
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("failed to load user: %w", err)
	}
	if err := s.tokens.VerifyResetToken(user, req.Token); err != nil {
		return err
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.ResetToken = ""
	user.ResetTokenExpiresAt = nil
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

func (s *authService) UpdatePassword(ctx context.Context, userID string, req models.UpdatePasswordRequest) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to load user: %w", err)
	}
	if !checkPassword(user.PasswordHash, req.CurrentPassword) {
		return ErrInvalidCredentials
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}
