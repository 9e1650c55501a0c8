package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/quickshelf/api/internal/config"
	"github.com/quickshelf/api/internal/database"
)

// Repository reads and writes the persisted settings singleton. It also
// implements config.SettingsSource, so the config cache can pull the overlay
// from it.
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Get fetches the singleton row and maps it to the config overlay.
func (r *Repository) Get(ctx context.Context) (*config.Settings, error) {
	record, err := r.GetRecord(ctx)
	if err != nil {
		return nil, err
	}

	return &config.Settings{
		SiteName:        record.SiteName,
		FrontendURL:     record.FrontendURL,
		SupportEmail:    record.SupportEmail,
		TokenSigningKey: record.TokenSigningKey,
		SMTPHost:        record.SMTPHost,
		SMTPPort:        record.SMTPPort,
		SMTPUser:        record.SMTPUser,
		SMTPPassword:    record.SMTPPassword,
	}, nil
}

// GetRecord fetches the raw singleton row for the admin surface.
func (r *Repository) GetRecord(ctx context.Context) (*database.Setting, error) {
	record := new(database.Setting)
	err := r.db.NewSelect().
		Model(record).
		Where("id = ?", database.SettingID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, config.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	return record, nil
}

// Upsert writes the singleton row, creating it on first save.
func (r *Repository) Upsert(ctx context.Context, record *database.Setting) error {
	record.ID = database.SettingID

	_, err := r.db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("site_name = EXCLUDED.site_name").
		Set("frontend_url = EXCLUDED.frontend_url").
		Set("support_email = EXCLUDED.support_email").
		Set("token_signing_key = EXCLUDED.token_signing_key").
		Set("smtp_host = EXCLUDED.smtp_host").
		Set("smtp_port = EXCLUDED.smtp_port").
		Set("smtp_user = EXCLUDED.smtp_user").
		Set("smtp_password = EXCLUDED.smtp_password").
		Set("updated_at = NOW()").
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to upsert settings: %w", err)
	}

	return nil
}
