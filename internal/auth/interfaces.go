package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/quickshelf/api/internal/user"
)

// UserStore is the credential store consumed by the lifecycle service and
// the request authenticator. Implemented by user.Repository; tests use an
// in-memory fake.
type UserStore interface {
	Create(ctx context.Context, u *user.User) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*user.User, error)
	GetByLiveVerificationToken(ctx context.Context, token string) (*user.User, error)
	GetByLiveResetToken(ctx context.Context, token string) (*user.User, error)
	SetVerificationToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	MarkEmailVerified(ctx context.Context, userID uuid.UUID, token string) error
	SetPasswordResetToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	ResetPasswordByToken(ctx context.Context, token, passwordHash string) error
}

// EmailService defines the interface for email operations
type EmailService interface {
	SendVerificationEmail(ctx context.Context, toEmail, token string) error
	SendPasswordResetEmail(ctx context.Context, toEmail, token string) error
}

// TokenService defines the interface for token creation and validation.
// Implementations include JWTService (HS256) and PasetoService (PASETO
// v4.local).
type TokenService interface {
	CreateToken(userID uuid.UUID, isAdmin bool) (string, error)
	VerifyToken(tokenStr string) (*TokenClaims, error)
}
