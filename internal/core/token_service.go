package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aglago/g-clients-sub000/internal/models"
)

const (
	TokenTTL         = 24 * time.Hour
	OneTimeCodeTTL   = 15 * time.Minute
	ResetTokenTTL    = time.Hour
	oneTimeCodeRange = 1000000
)

// Claims are the JWT claims of a bearer token. Subject holds the user ID.
type Claims struct {
	Role  models.Role `json:"role"`
	Email string      `json:"email"`
	jwt.RegisteredClaims
}

// tokenService implements TokenIssuer with HS256 JWTs.
type tokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenIssuer. A nil clock uses time.Now.
func NewTokenService(secret string, clock func() time.Time) (TokenIssuer, error) {
	if len(secret) < 32 {
		return nil, errors.New("token secret must be at least 32 bytes")
	}
	if clock == nil {
		clock = time.Now
	}
	return &tokenService{secret: []byte(secret), now: clock}, nil
}

func (s *tokenService) IssueToken(user *models.User) (string, error) {
	if user == nil || user.ID == "" {
		return "", errors.New("cannot issue a token without a user ID")
	}
	now := s.now().UTC()
	claims := Claims{
		Role:  user.Role,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken returns ErrUnauthorized for any malformed, tampered or expired token.
func (s *tokenService) ValidateToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	return claims, nil
}

func (s *tokenService) IssueOneTimeCode() (string, time.Time, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(oneTimeCodeRange))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), s.now().UTC().Add(OneTimeCodeTTL), nil
}

func (s *tokenService) VerifyOneTimeCode(user *models.User, code string) error {
	if user.VerificationCode == "" || user.VerificationCodeExpiresAt == nil {
		return ErrInvalidCode
	}
	if !s.now().Before(*user.VerificationCodeExpiresAt) {
		return ErrInvalidCode
	}
	if subtle.ConstantTimeCompare([]byte(user.VerificationCode), []byte(code)) != 1 {
		return ErrInvalidCode
	}
	return nil
}

func (s *tokenService) IssueResetToken() (string, string, time.Time, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", time.Time{}, fmt.Errorf("failed to generate reset token: %w", err)
	}
	token := hex.EncodeToString(buf)
	return token, hashResetToken(token), s.now().UTC().Add(ResetTokenTTL), nil
}

func (s *tokenService) VerifyResetToken(user *models.User, token string) error {
	if user.ResetToken == "" || user.ResetTokenExpiresAt == nil {
		return ErrInvalidResetToken
	}
	if !s.now().Before(*user.ResetTokenExpiresAt) {
		return ErrInvalidResetToken
	}
	if subtle.ConstantTimeCompare([]byte(user.ResetToken), []byte(hashResetToken(token))) != 1 {
		return ErrInvalidResetToken
	}
	return nil
}

// Only the digest of a reset token is stored on the user.
func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
