package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the database representation of an account.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                     uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Email                  string     `bun:"email,notnull,unique"`
	Username               string     `bun:"username,notnull,unique"`
	PasswordHash           string     `bun:"password_hash,notnull"`
	TaxID                  *string    `bun:"tax_id"`
	IsAdmin                bool       `bun:"is_admin,notnull,default:false"`
	EmailVerified          bool       `bun:"email_verified,notnull,default:false"`
	VerificationToken      *string    `bun:"verification_token"`
	VerificationExpiresAt  *time.Time `bun:"verification_expires_at"`
	PasswordResetToken     *string    `bun:"password_reset_token"`
	PasswordResetExpiresAt *time.Time `bun:"password_reset_expires_at"`
	CreatedAt              time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt              time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

// SettingID is the fixed key of the settings singleton row.
const SettingID = 1

// Setting is the persisted configuration overlay, a singleton row edited
// through the admin surface.
type Setting struct {
	bun.BaseModel `bun:"table:settings,alias:s"`

	ID              int64     `bun:"id,pk"`
	SiteName        string    `bun:"site_name,nullzero"`
	FrontendURL     string    `bun:"frontend_url,nullzero"`
	SupportEmail    string    `bun:"support_email,nullzero"`
	TokenSigningKey string    `bun:"token_signing_key,nullzero"`
	SMTPHost        string    `bun:"smtp_host,nullzero"`
	SMTPPort        string    `bun:"smtp_port,nullzero"`
	SMTPUser        string    `bun:"smtp_user,nullzero"`
	SMTPPassword    string    `bun:"smtp_password,nullzero"`
	UpdatedAt       time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
