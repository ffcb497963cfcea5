package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/entities"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

type fakeAuth struct {
	user *entities.AuthUser
	err  error
}

func (f *fakeAuth) GetUser(ctx context.Context, userID string) (*entities.AuthUser, error) {
	return f.user, f.err
}

type fakeResolver struct {
	name string
	err  error
}

func (f *fakeResolver) Resolve(ctx context.Context, address string) (string, error) {
	return f.name, f.err
}

func TestSelectWalletPrefersEmbedded(t *testing.T) {
	wallets := []entities.WalletContext{
		{Address: "0xext", Category: entities.CustodyExternalStandard},
		{Address: "0xemb", Category: entities.CustodyEmbedded},
		{Address: "0xcb", Category: entities.CustodyExternalCoinbase},
	}

	selected := SelectWallet(wallets)

	require.NotNil(t, selected)
	assert.Equal(t, "0xemb", selected.Address)
}

func TestSelectWalletFallsBackToFirst(t *testing.T) {
	wallets := []entities.WalletContext{
		{Address: "0xcb", Category: entities.CustodyExternalCoinbase},
		{Address: "0xext", Category: entities.CustodyExternalStandard},
	}

	selected := SelectWallet(wallets)

	require.NotNil(t, selected)
	assert.Equal(t, "0xcb", selected.Address)
}

func TestSelectWalletEmpty(t *testing.T) {
	assert.Nil(t, SelectWallet(nil))
}

func TestActiveWallet(t *testing.T) {
	auth := &fakeAuth{user: &entities.AuthUser{
		ID: "did:privy:abc",
		Wallets: []entities.WalletContext{
			{Address: "0xemb", Category: entities.CustodyEmbedded},
		},
	}}
	svc := NewService(auth, nil, logger.NewNop())

	wallet, err := svc.ActiveWallet(context.Background(), "did:privy:abc")

	require.NoError(t, err)
	assert.Equal(t, "0xemb", wallet.Address)
}

func TestActiveWalletAuthFailure(t *testing.T) {
	svc := NewService(&fakeAuth{err: errors.New("auth unavailable")}, nil, logger.NewNop())

	_, err := svc.ActiveWallet(context.Background(), "did:privy:abc")

	assert.Error(t, err)
}

func TestIdentityUsesOnChainName(t *testing.T) {
	svc := NewService(nil, &fakeResolver{name: "merchant.base.eth"}, logger.NewNop())
	wallet := &entities.WalletContext{
		Address:  "0x1234567890abcdef1234567890abcdef12345678",
		Category: entities.CustodyEmbedded,
	}

	identity := svc.Identity(context.Background(), wallet)

	assert.Equal(t, "merchant.base.eth", identity.DisplayName)
	assert.Equal(t, "embedded", identity.Custody)
}

func TestIdentityFallsBackToShortAddress(t *testing.T) {
	wallet := &entities.WalletContext{
		Address:  "0x1234567890abcdef1234567890abcdef12345678",
		Category: entities.CustodyExternalStandard,
	}

	// Lookup failure and missing resolver both shorten the address.
	for _, svc := range []*Service{
		NewService(nil, &fakeResolver{err: errors.New("rpc down")}, logger.NewNop()),
		NewService(nil, nil, logger.NewNop()),
	} {
		identity := svc.Identity(context.Background(), wallet)
		assert.Equal(t, "0x1234...5678", identity.DisplayName)
	}
}

func TestIdentityEmptyNameKeepsFallback(t *testing.T) {
	svc := NewService(nil, &fakeResolver{name: ""}, logger.NewNop())
	wallet := &entities.WalletContext{Address: "0xshort", Category: entities.CustodyEmbedded}

	identity := svc.Identity(context.Background(), wallet)

	assert.Equal(t, "0xshort", identity.DisplayName)
}
