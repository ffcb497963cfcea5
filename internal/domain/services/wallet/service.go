// Package wallet resolves the merchant's active wallet and its identity:
// which linked wallet to use, its custody category, and any on-chain name.
package wallet

import (
	"context"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/entities"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

// AuthLookup fetches merchant identities from the wallet auth provider.
type AuthLookup interface {
	GetUser(ctx context.Context, userID string) (*entities.AuthUser, error)
}

// NameResolver looks up an on-chain display name for an address. A missing
// name returns empty without error.
type NameResolver interface {
	Resolve(ctx context.Context, address string) (string, error)
}

// Service selects and describes the merchant's active wallet.
type Service struct {
	auth   AuthLookup
	names  NameResolver
	logger *logger.Logger
}

// NewService creates the wallet service. names may be nil when on-chain
// name lookup is disabled.
func NewService(auth AuthLookup, names NameResolver, logger *logger.Logger) *Service {
	return &Service{auth: auth, names: names, logger: logger}
}

// ActiveWallet picks the wallet the dashboard should operate with: the
// embedded wallet when one is linked, otherwise the first linked wallet.
func (s *Service) ActiveWallet(ctx context.Context, userID string) (*entities.WalletContext, error) {
	user, err := s.auth.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return SelectWallet(user.Wallets), nil
}

// LinkedAccounts lists every account attached to the merchant's login.
func (s *Service) LinkedAccounts(ctx context.Context, userID string) ([]entities.LinkedAccount, error) {
	user, err := s.auth.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.LinkedAccounts, nil
}

// SelectWallet applies the selection policy to a wallet list. Returns nil
// when the merchant has no linked wallets.
func SelectWallet(wallets []entities.WalletContext) *entities.WalletContext {
	if len(wallets) == 0 {
		return nil
	}
	for i := range wallets {
		if wallets[i].Category == entities.CustodyEmbedded {
			return &wallets[i]
		}
	}
	return &wallets[0]
}

// Identity is the display identity of a wallet.
type Identity struct {
	Address     string `json:"address"`
	DisplayName string `json:"displayName"`
	Custody     string `json:"custody"`
}

// Identity resolves the wallet's display identity. The on-chain name lookup
// is best effort; a lookup failure falls back to the shortened address.
func (s *Service) Identity(ctx context.Context, wallet *entities.WalletContext) Identity {
	identity := Identity{
		Address:     wallet.Address,
		DisplayName: shortAddress(wallet.Address),
		Custody:     wallet.Category.String(),
	}
	if s.names == nil {
		return identity
	}
	name, err := s.names.Resolve(ctx, wallet.Address)
	if err != nil {
		s.logger.Debug("On-chain name lookup failed", "address", wallet.Address, "error", err.Error())
		return identity
	}
	if name != "" {
		identity.DisplayName = name
	}
	return identity
}

func shortAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
