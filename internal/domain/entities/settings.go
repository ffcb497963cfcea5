package entities

import (
	"time"

	"github.com/google/uuid"
)

// MerchantSettings holds the dashboard preferences persisted per merchant.
type MerchantSettings struct {
	ID               uuid.UUID `db:"id" json:"id"`
	MerchantID       uuid.UUID `db:"merchant_id" json:"merchantId"`
	BusinessName     string    `db:"business_name" json:"businessName"`
	ContactEmail     string    `db:"contact_email" json:"contactEmail"`
	DefaultFiat      string    `db:"default_fiat" json:"defaultFiat"`
	DefaultChain     Chain     `db:"default_chain" json:"defaultChain"`
	DefaultToken     Token     `db:"default_token" json:"defaultToken"`
	WebhookURL       string    `db:"webhook_url" json:"webhookUrl,omitempty"`
	TwoFactorEnabled bool      `db:"two_factor_enabled" json:"twoFactorEnabled"`
	TwoFactorSecret  string    `db:"two_factor_secret" json:"-"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

// APIKey is a merchant API credential. The secret is bcrypt-hashed at rest
// and returned in clear text exactly once on creation.
type APIKey struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	MerchantID uuid.UUID  `db:"merchant_id" json:"merchantId"`
	Label      string     `db:"label" json:"label"`
	Prefix     string     `db:"prefix" json:"prefix"`
	SecretHash string     `db:"secret_hash" json:"-"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revokedAt,omitempty"`
}

// Revoked reports whether the key has been revoked.
func (k *APIKey) Revoked() bool {
	return k.RevokedAt != nil
}
