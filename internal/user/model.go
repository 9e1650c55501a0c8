package user

import (
	"time"

	"github.com/google/uuid"
)

// Role values derived from the IsAdmin flag.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is the internal identity record. It carries sensitive fields (password
// hash, live tokens) and must never be serialized across the service
// boundary; use Public() for that.
type User struct {
	ID                     uuid.UUID
	Email                  string
	Username               string
	PasswordHash           string
	TaxID                  *string
	IsAdmin                bool
	EmailVerified          bool
	VerificationToken      *string
	VerificationExpiresAt  *time.Time
	PasswordResetToken     *string
	PasswordResetExpiresAt *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// PublicUser is the only representation of a user allowed to leave the
// service: password hash and both token/expiry pairs are stripped, and a
// derived role string is added.
type PublicUser struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	TaxID         *string   `json:"tax_id,omitempty"`
	IsAdmin       bool      `json:"is_admin"`
	EmailVerified bool      `json:"email_verified"`
	Role          string    `json:"role"`
	CreatedAt     time.Time `json:"created_at"`
}

// Public returns the outbound projection of the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Email:         u.Email,
		Username:      u.Username,
		TaxID:         u.TaxID,
		IsAdmin:       u.IsAdmin,
		EmailVerified: u.EmailVerified,
		Role:          u.Role(),
		CreatedAt:     u.CreatedAt,
	}
}

// Role derives the role string from the admin flag.
func (u *User) Role() string {
	if u.IsAdmin {
		return RoleAdmin
	}
	return RoleUser
}
