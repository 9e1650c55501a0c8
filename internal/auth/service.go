package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/quickshelf/api/internal/logging"
	"github.com/quickshelf/api/internal/user"
)

var (
	// ErrInvalidCredentials is the single error for "no such user" and
	// "wrong password", so login failures cannot be used to enumerate
	// accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidOrExpiredToken covers unknown, consumed and expired
	// verification/reset tokens alike.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	ErrAlreadyVerified = errors.New("email already verified")

	// ErrVerificationEmailFailed is returned by Register and
	// ResendVerification alongside a successful result: the account exists
	// but the mail did not go out.
	ErrVerificationEmailFailed = errors.New("failed to send verification email")

	// ErrNotificationFailed marks a mail transport failure that fails the
	// whole operation.
	ErrNotificationFailed = errors.New("failed to send notification email")

	ErrEmailRequired      = errors.New("email is required")
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrUsernameRequired   = errors.New("username is required")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
)

// Lifetime of verification and password reset tokens.
const (
	verificationTokenTTL  = 1 * time.Hour
	passwordResetTokenTTL = 1 * time.Hour
)

// AuthPayload is what register, login and verify hand back: a bearer token
// plus the user-safe identity projection.
type AuthPayload struct {
	Token string          `json:"token"`
	User  user.PublicUser `json:"user"`
}

// Service orchestrates registration, login, email verification and password
// reset over the credential store, the token service and outbound mail.
type Service struct {
	users  UserStore
	tokens TokenService
	email  EmailService
	logger *logging.Logger
}

func NewService(users UserStore, tokens TokenService, email EmailService, logger *logging.Logger) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		email:  email,
		logger: logger,
	}
}

// Register creates a new account, issues a bearer token immediately (the
// account is usable before verification) and sends the verification mail.
// A mail failure does not roll back the account: the payload is returned
// together with ErrVerificationEmailFailed so the caller can report a
// degraded success.
func (s *Service) Register(ctx context.Context, username, email, password string, taxID *string, isAdmin bool) (*AuthPayload, error) {
	username = strings.TrimSpace(username)
	email = user.NormalizeEmail(email)

	if err := validateRegistration(username, email, password); err != nil {
		return nil, err
	}

	if taxID != nil {
		normalized := user.NormalizeTaxID(*taxID)
		if normalized == "" {
			taxID = nil
		} else {
			taxID = &normalized
		}
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	verificationToken, err := generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}
	expiresAt := time.Now().Add(verificationTokenTTL)

	created, err := s.users.Create(ctx, &user.User{
		Email:                 email,
		Username:              username,
		PasswordHash:          passwordHash,
		TaxID:                 taxID,
		IsAdmin:               isAdmin,
		VerificationToken:     &verificationToken,
		VerificationExpiresAt: &expiresAt,
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, user.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.CreateToken(created.ID, created.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	payload := &AuthPayload{Token: token, User: created.Public()}

	if err := s.email.SendVerificationEmail(ctx, created.Email, verificationToken); err != nil {
		s.logger.Warn("failed to send verification email", "email", created.Email, "error", err.Error())
		return payload, ErrVerificationEmailFailed
	}

	return payload, nil
}

// Login authenticates by email, username or tax id and issues a bearer
// token. Unknown identifier and wrong password produce the identical error.
func (s *Service) Login(ctx context.Context, identifier, password string) (*AuthPayload, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	existing, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !VerifyPassword(existing.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.CreateToken(existing.ID, existing.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	return &AuthPayload{Token: token, User: existing.Public()}, nil
}

// ForgotPassword starts a password reset. The caller gets the same answer
// whether or not the email is known; for known accounts a fresh reset token
// replaces any prior one and a reset mail goes out. Unlike registration
// there is no side effect worth keeping if the mail fails, so a transport
// failure fails the operation.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = user.NormalizeEmail(email)

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// Don't reveal if the account exists
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	resetToken, err := generateRandomToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	expiresAt := time.Now().Add(passwordResetTokenTTL)
	if err := s.users.SetPasswordResetToken(ctx, existing.ID, resetToken, expiresAt); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if err := s.email.SendPasswordResetEmail(ctx, existing.Email, resetToken); err != nil {
		s.logger.Warn("failed to send password reset email", "email", existing.Email, "error", err.Error())
		return ErrNotificationFailed
	}

	return nil
}

// ResetPassword consumes a live reset token and replaces the password hash.
// The token and its expiry are cleared in the same store statement, which is
// what makes the token single-use.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return ErrPasswordRequired
	}
	if len(newPassword) < 8 {
		return ErrPasswordTooShort
	}
	if token == "" {
		return ErrInvalidOrExpiredToken
	}

	// Confirm the token is live before paying for the hash.
	if _, err := s.users.GetByLiveResetToken(ctx, token); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("failed to look up reset token: %w", err)
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.ResetPasswordByToken(ctx, token, passwordHash); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// Consumed or expired between the lookup and the update.
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("failed to reset password: %w", err)
	}

	return nil
}

// VerifyEmail consumes a live verification token, marks the email verified
// and mints a fresh bearer token; the pre-verification token is not reused
// because the identity it described has changed.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*AuthPayload, error) {
	if token == "" {
		return nil, ErrInvalidOrExpiredToken
	}

	existing, err := s.users.GetByLiveVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("failed to look up verification token: %w", err)
	}

	if err := s.users.MarkEmailVerified(ctx, existing.ID, token); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("failed to verify email: %w", err)
	}

	verified := *existing
	verified.EmailVerified = true
	verified.VerificationToken = nil
	verified.VerificationExpiresAt = nil

	freshToken, err := s.tokens.CreateToken(verified.ID, verified.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	return &AuthPayload{Token: freshToken, User: verified.Public()}, nil
}

// ResendVerification regenerates the verification token for an authenticated
// user and redispatches the mail, exactly as in registration.
func (s *Service) ResendVerification(ctx context.Context, u *user.User) error {
	if u.EmailVerified {
		return ErrAlreadyVerified
	}

	verificationToken, err := generateRandomToken()
	if err != nil {
		return fmt.Errorf("failed to generate verification token: %w", err)
	}

	expiresAt := time.Now().Add(verificationTokenTTL)
	if err := s.users.SetVerificationToken(ctx, u.ID, verificationToken, expiresAt); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}

	if err := s.email.SendVerificationEmail(ctx, u.Email, verificationToken); err != nil {
		s.logger.Warn("failed to resend verification email", "email", u.Email, "error", err.Error())
		return ErrVerificationEmailFailed
	}

	return nil
}

func validateRegistration(username, email, password string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if len(email) > 254 {
		return ErrInvalidEmailFormat
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmailFormat
	}
	if username == "" {
		return ErrUsernameRequired
	}
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	return nil
}
