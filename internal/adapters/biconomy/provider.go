package biconomy

import (
	"context"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/services/offramp"
)

// Provider adapts the bundler client to the off-ramp flow's gas provider
// contract.
type Provider struct {
	client *Client
}

// NewProvider wraps a bundler client.
func NewProvider(client *Client) *Provider {
	return &Provider{client: client}
}

func (p *Provider) InitializeEmbedded(ctx context.Context, walletAddress string, chainID int64, signAuth offramp.SignAuthorizationFunc) (offramp.GasSession, error) {
	session, err := p.client.InitializeEmbedded(ctx, walletAddress, chainID, SignAuthorizationFunc(signAuth))
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (p *Provider) InitializeExternal(ctx context.Context, walletAddress string, chainID int64) (offramp.GasSession, error) {
	session, err := p.client.InitializeExternal(ctx, walletAddress, chainID)
	if err != nil {
		return nil, err
	}
	return session, nil
}
