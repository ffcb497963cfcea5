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

// ErrAPIKeyNotFound is returned when no key matches the lookup.
var ErrAPIKeyNotFound = errors.New("api key not found")

// APIKeyRepository persists merchant API keys. Only the bcrypt hash of the
// secret is stored; the plaintext exists once, at issuance.
type APIKeyRepository struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewAPIKeyRepository creates a new API key repository.
func NewAPIKeyRepository(db *sqlx.DB, logger *logger.Logger) *APIKeyRepository {
	return &APIKeyRepository{db: db, logger: logger}
}

// Create inserts a new API key record.
func (r *APIKeyRepository) Create(ctx context.Context, key *entities.APIKey) error {
	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO api_keys (id, merchant_id, label, prefix, secret_hash, created_at)
		VALUES (:id, :merchant_id, :label, :prefix, :secret_hash, :created_at)`

	if _, err := r.db.NamedExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// GetByPrefix fetches an active key by its public prefix.
func (r *APIKeyRepository) GetByPrefix(ctx context.Context, prefix string) (*entities.APIKey, error) {
	var key entities.APIKey
	query := `SELECT * FROM api_keys WHERE prefix = $1 AND revoked_at IS NULL`
	if err := r.db.GetContext(ctx, &key, query, prefix); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to fetch api key: %w", err)
	}
	return &key, nil
}

// ListByMerchant lists every key a merchant has issued, newest first.
func (r *APIKeyRepository) ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]entities.APIKey, error) {
	var keys []entities.APIKey
	query := `SELECT * FROM api_keys WHERE merchant_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &keys, query, merchantID); err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	return keys, nil
}

// Revoke marks a key revoked. Revoking an already revoked key is a no-op.
func (r *APIKeyRepository) Revoke(ctx context.Context, merchantID, keyID uuid.UUID) error {
	query := `
		UPDATE api_keys SET revoked_at = $3
		WHERE id = $2 AND merchant_id = $1 AND revoked_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, merchantID, keyID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read revoke result: %w", err)
	}
	if rows == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}
