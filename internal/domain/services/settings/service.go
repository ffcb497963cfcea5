// Package settings manages merchant profile settings, API keys and
// two-factor authentication.
package settings

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/entities"
	"github.com/NEDA-LABS/nedapay-service/internal/infrastructure/repositories"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

const totpIssuer = "NedaPay"

// ErrTwoFactorAlreadyEnabled is returned when setup is requested while 2FA
// is active.
var ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication is already enabled")

// ErrInvalidTOTPCode is returned when a presented code does not validate.
var ErrInvalidTOTPCode = errors.New("invalid verification code")

// SettingsStore persists merchant settings rows.
type SettingsStore interface {
	GetByMerchant(ctx context.Context, merchantID uuid.UUID) (*entities.MerchantSettings, error)
	Upsert(ctx context.Context, settings *entities.MerchantSettings) error
	SetTwoFactor(ctx context.Context, merchantID uuid.UUID, enabled bool, secret string) error
}

// APIKeyStore persists merchant API keys.
type APIKeyStore interface {
	Create(ctx context.Context, key *entities.APIKey) error
	GetByPrefix(ctx context.Context, prefix string) (*entities.APIKey, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]entities.APIKey, error)
	Revoke(ctx context.Context, merchantID, keyID uuid.UUID) error
}

// Service manages merchant settings.
type Service struct {
	settings SettingsStore
	apiKeys  APIKeyStore
	logger   *logger.Logger
}

// NewService creates the settings service.
func NewService(settings SettingsStore, apiKeys APIKeyStore, logger *logger.Logger) *Service {
	return &Service{settings: settings, apiKeys: apiKeys, logger: logger}
}

// Get fetches the merchant's settings, returning defaults for merchants
// with no stored row.
func (s *Service) Get(ctx context.Context, merchantID uuid.UUID) (*entities.MerchantSettings, error) {
	settings, err := s.settings.GetByMerchant(ctx, merchantID)
	if errors.Is(err, repositories.ErrSettingsNotFound) {
		return &entities.MerchantSettings{
			MerchantID:   merchantID,
			DefaultFiat:  "NGN",
			DefaultChain: entities.ChainBase,
			DefaultToken: entities.TokenUSDC,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// ProfileUpdate carries the writable profile fields. Two-factor state is
// managed through the dedicated flow and is never writable here.
type ProfileUpdate struct {
	BusinessName string         `json:"businessName"`
	ContactEmail string         `json:"contactEmail"`
	DefaultFiat  string         `json:"defaultFiat"`
	DefaultChain entities.Chain `json:"defaultChain"`
	DefaultToken entities.Token `json:"defaultToken"`
	WebhookURL   string         `json:"webhookUrl"`
}

// Update persists profile fields.
func (s *Service) Update(ctx context.Context, merchantID uuid.UUID, update ProfileUpdate) (*entities.MerchantSettings, error) {
	current, err := s.Get(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	current.BusinessName = update.BusinessName
	current.ContactEmail = update.ContactEmail
	current.WebhookURL = update.WebhookURL
	if update.DefaultFiat != "" {
		current.DefaultFiat = update.DefaultFiat
	}
	if update.DefaultChain != "" {
		if !update.DefaultChain.Valid() {
			return nil, fmt.Errorf("unsupported network %q", update.DefaultChain)
		}
		current.DefaultChain = update.DefaultChain
	}
	if update.DefaultToken != "" {
		if !update.DefaultToken.Valid() {
			return nil, fmt.Errorf("unsupported token %q", update.DefaultToken)
		}
		current.DefaultToken = update.DefaultToken
	}
	if err := s.settings.Upsert(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

// TwoFactorSetup is handed to the merchant once during enrollment.
type TwoFactorSetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}

// BeginTwoFactor generates a TOTP secret for enrollment. The secret is
// stored disabled; EnableTwoFactor activates it after the merchant proves
// possession with a valid code.
func (s *Service) BeginTwoFactor(ctx context.Context, merchantID uuid.UUID, accountName string) (*TwoFactorSetup, error) {
	current, err := s.Get(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if current.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: accountName,
		SecretSize:  32,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	current.TwoFactorSecret = key.Secret()
	current.TwoFactorEnabled = false
	if err := s.settings.Upsert(ctx, current); err != nil {
		return nil, err
	}

	return &TwoFactorSetup{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

// EnableTwoFactor activates 2FA after validating a code against the pending
// secret.
func (s *Service) EnableTwoFactor(ctx context.Context, merchantID uuid.UUID, code string) error {
	current, err := s.Get(ctx, merchantID)
	if err != nil {
		return err
	}
	if current.TwoFactorSecret == "" {
		return fmt.Errorf("two-factor setup has not been started")
	}
	if !totp.Validate(code, current.TwoFactorSecret) {
		return ErrInvalidTOTPCode
	}
	return s.settings.SetTwoFactor(ctx, merchantID, true, current.TwoFactorSecret)
}

// DisableTwoFactor turns 2FA off after validating a current code.
func (s *Service) DisableTwoFactor(ctx context.Context, merchantID uuid.UUID, code string) error {
	current, err := s.Get(ctx, merchantID)
	if err != nil {
		return err
	}
	if !current.TwoFactorEnabled {
		return nil
	}
	if !totp.Validate(code, current.TwoFactorSecret) {
		return ErrInvalidTOTPCode
	}
	return s.settings.SetTwoFactor(ctx, merchantID, false, "")
}

// ValidateTwoFactor checks a code for a merchant with 2FA enabled.
func (s *Service) ValidateTwoFactor(ctx context.Context, merchantID uuid.UUID, code string) error {
	current, err := s.Get(ctx, merchantID)
	if err != nil {
		return err
	}
	if !current.TwoFactorEnabled {
		return nil
	}
	if !totp.Validate(code, current.TwoFactorSecret) {
		return ErrInvalidTOTPCode
	}
	return nil
}

// IssuedKey carries the plaintext secret exactly once, at issuance.
type IssuedKey struct {
	ID     uuid.UUID `json:"id"`
	Label  string    `json:"label"`
	Prefix string    `json:"prefix"`
	Secret string    `json:"secret"`
}

// IssueAPIKey mints a new API key. Only the bcrypt hash of the secret is
// stored; the caller must show the plaintext to the merchant now or lose it.
func (s *Service) IssueAPIKey(ctx context.Context, merchantID uuid.UUID, label string) (*IssuedKey, error) {
	prefixBytes := make([]byte, 6)
	if _, err := rand.Read(prefixBytes); err != nil {
		return nil, fmt.Errorf("failed to generate key prefix: %w", err)
	}
	secretBytes := make([]byte, 24)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, fmt.Errorf("failed to generate key secret: %w", err)
	}

	prefix := "npk_" + hex.EncodeToString(prefixBytes)
	secret := hex.EncodeToString(secretBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash key secret: %w", err)
	}

	key := &entities.APIKey{
		ID:         uuid.New(),
		MerchantID: merchantID,
		Label:      label,
		Prefix:     prefix,
		SecretHash: string(hash),
	}
	if err := s.apiKeys.Create(ctx, key); err != nil {
		return nil, err
	}

	s.logger.Info("API key issued", "merchant_id", merchantID.String(), "prefix", prefix)

	return &IssuedKey{ID: key.ID, Label: label, Prefix: prefix, Secret: prefix + "." + secret}, nil
}

// VerifyAPIKey checks a presented key of the form "<prefix>.<secret>".
func (s *Service) VerifyAPIKey(ctx context.Context, presented string) (*entities.APIKey, error) {
	prefix, secret, ok := splitKey(presented)
	if !ok {
		return nil, repositories.ErrAPIKeyNotFound
	}
	key, err := s.apiKeys.GetByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)); err != nil {
		return nil, repositories.ErrAPIKeyNotFound
	}
	return key, nil
}

// ListAPIKeys lists the merchant's keys, hashes omitted.
func (s *Service) ListAPIKeys(ctx context.Context, merchantID uuid.UUID) ([]entities.APIKey, error) {
	keys, err := s.apiKeys.ListByMerchant(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	for i := range keys {
		keys[i].SecretHash = ""
	}
	return keys, nil
}

// RevokeAPIKey revokes one of the merchant's keys.
func (s *Service) RevokeAPIKey(ctx context.Context, merchantID, keyID uuid.UUID) error {
	return s.apiKeys.Revoke(ctx, merchantID, keyID)
}

func splitKey(presented string) (prefix, secret string, ok bool) {
	for i := 0; i < len(presented); i++ {
		if presented[i] == '.' {
			return presented[:i], presented[i+1:], i > 0 && i < len(presented)-1
		}
	}
	return "", "", false
}
