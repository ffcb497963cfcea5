package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/entities"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

// ErrSettingsNotFound is returned when a merchant has no settings row yet.
var ErrSettingsNotFound = errors.New("merchant settings not found")

// SettingsRepository persists merchant settings in PostgreSQL.
type SettingsRepository struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewSettingsRepository creates a new settings repository.
func NewSettingsRepository(db *sqlx.DB, logger *logger.Logger) *SettingsRepository {
	return &SettingsRepository{db: db, logger: logger}
}

// GetByMerchant fetches settings for one merchant.
func (r *SettingsRepository) GetByMerchant(ctx context.Context, merchantID uuid.UUID) (*entities.MerchantSettings, error) {
	var settings entities.MerchantSettings
	query := `SELECT * FROM merchant_settings WHERE merchant_id = $1`
	if err := r.db.GetContext(ctx, &settings, query, merchantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to fetch settings: %w", err)
	}
	return &settings, nil
}

// Upsert creates or replaces a merchant's settings row.
func (r *SettingsRepository) Upsert(ctx context.Context, settings *entities.MerchantSettings) error {
	now := time.Now().UTC()
	if settings.ID == uuid.Nil {
		settings.ID = uuid.New()
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now

	query := `
		INSERT INTO merchant_settings (
			id, merchant_id, business_name, contact_email, default_fiat,
			default_chain, default_token, webhook_url,
			two_factor_enabled, two_factor_secret, created_at, updated_at
		) VALUES (
			:id, :merchant_id, :business_name, :contact_email, :default_fiat,
			:default_chain, :default_token, :webhook_url,
			:two_factor_enabled, :two_factor_secret, :created_at, :updated_at
		)
		ON CONFLICT (merchant_id) DO UPDATE SET
			business_name = EXCLUDED.business_name,
			contact_email = EXCLUDED.contact_email,
			default_fiat = EXCLUDED.default_fiat,
			default_chain = EXCLUDED.default_chain,
			default_token = EXCLUDED.default_token,
			webhook_url = EXCLUDED.webhook_url,
			two_factor_enabled = EXCLUDED.two_factor_enabled,
			two_factor_secret = EXCLUDED.two_factor_secret,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("failed to upsert settings: %w", err)
	}
	return nil
}

// SetTwoFactor stores the 2FA enablement flag and secret atomically.
func (r *SettingsRepository) SetTwoFactor(ctx context.Context, merchantID uuid.UUID, enabled bool, secret string) error {
	query := `
		UPDATE merchant_settings
		SET two_factor_enabled = $2, two_factor_secret = $3, updated_at = $4
		WHERE merchant_id = $1`
	result, err := r.db.ExecContext(ctx, query, merchantID, enabled, secret, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update two-factor state: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return ErrSettingsNotFound
	}
	return nil
}
