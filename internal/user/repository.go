package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/quickshelf/api/internal/database"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// Repository is the credential store: the persistent record of users. All
// mutations are single-statement updates, so a concurrent update is never
// torn at the record level.
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user. The email must already be normalized.
func (r *Repository) Create(ctx context.Context, u *User) (*User, error) {
	dbUser := &database.User{
		Email:                 NormalizeEmail(u.Email),
		Username:              u.Username,
		PasswordHash:          u.PasswordHash,
		TaxID:                 u.TaxID,
		IsAdmin:               u.IsAdmin,
		EmailVerified:         false,
		VerificationToken:     u.VerificationToken,
		VerificationExpiresAt: u.VerificationExpiresAt,
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("lower(email) = ?", NormalizeEmail(email)).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByIdentifier retrieves a user matching the identifier as an email, a
// username or a normalized tax id. The fields are alternatives: whichever
// single one matches wins.
func (r *Repository) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	identifier = strings.TrimSpace(identifier)
	email := NormalizeEmail(identifier)
	taxID := NormalizeTaxID(identifier)

	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereOr("lower(email) = ?", email).
				WhereOr("lower(username) = ?", strings.ToLower(identifier)).
				WhereOr("tax_id = ?", taxID)
		}).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by identifier: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByLiveVerificationToken retrieves a user whose verification token
// matches exactly and whose expiry is strictly in the future. Match and
// expiry are one store-side predicate so an expired token can never slip
// through a split check.
func (r *Repository) GetByLiveVerificationToken(ctx context.Context, token string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("verification_token = ?", token).
		Where("verification_expires_at > ?", time.Now()).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by verification token: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByLiveResetToken is the reset-token twin of GetByLiveVerificationToken.
func (r *Repository) GetByLiveResetToken(ctx context.Context, token string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("password_reset_token = ?", token).
		Where("password_reset_expires_at > ?", time.Now()).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by reset token: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// SetVerificationToken stores a new verification token, overwriting any
// prior one. Only one live verification token exists per user.
func (r *Repository) SetVerificationToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("verification_token = ?", token).
		Set("verification_expires_at = ?", expiresAt).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Where("email_verified = ?", false).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to set verification token: %w", err)
	}

	return requireRowsAffected(result)
}

// MarkEmailVerified flips email_verified and clears the verification token
// pair, conditional on the token still being live. Rows affected of zero
// means the token was consumed or expired in the meantime.
func (r *Repository) MarkEmailVerified(ctx context.Context, userID uuid.UUID, token string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("email_verified = ?", true).
		Set("verification_token = ?", nil).
		Set("verification_expires_at = ?", nil).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Where("verification_token = ?", token).
		Where("verification_expires_at > ?", time.Now()).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to mark email as verified: %w", err)
	}

	return requireRowsAffected(result)
}

// SetPasswordResetToken stores a new reset token, invalidating any prior one
// by overwrite.
func (r *Repository) SetPasswordResetToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_reset_token = ?", token).
		Set("password_reset_expires_at = ?", expiresAt).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to set password reset token: %w", err)
	}

	return requireRowsAffected(result)
}

// ResetPasswordByToken replaces the password hash and clears the reset token
// pair in one conditional statement. Single use is enforced by the clearing:
// a second attempt with the same token affects zero rows.
func (r *Repository) ResetPasswordByToken(ctx context.Context, token, passwordHash string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("password_reset_token = ?", nil).
		Set("password_reset_expires_at = ?", nil).
		Set("updated_at = NOW()").
		Where("password_reset_token = ?", token).
		Where("password_reset_expires_at > ?", time.Now()).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	return requireRowsAffected(result)
}

func requireRowsAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:                     dbu.ID,
		Email:                  dbu.Email,
		Username:               dbu.Username,
		PasswordHash:           dbu.PasswordHash,
		TaxID:                  dbu.TaxID,
		IsAdmin:                dbu.IsAdmin,
		EmailVerified:          dbu.EmailVerified,
		VerificationToken:      dbu.VerificationToken,
		VerificationExpiresAt:  dbu.VerificationExpiresAt,
		PasswordResetToken:     dbu.PasswordResetToken,
		PasswordResetExpiresAt: dbu.PasswordResetExpiresAt,
		CreatedAt:              dbu.CreatedAt,
		UpdatedAt:              dbu.UpdatedAt,
	}
}
