package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/entities"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

// TokenService reads balances and executes direct ERC-20 transfers across
// the supported networks. It satisfies the off-ramp flow's balance source
// and transfer executor.
type TokenService struct {
	registry *Registry
	signers  *SignerRegistry
	logger   *logger.Logger

	mu       sync.Mutex
	decimals map[string]uint8
}

// NewTokenService creates a token service over the network registry.
func NewTokenService(registry *Registry, signers *SignerRegistry, logger *logger.Logger) *TokenService {
	return &TokenService{
		registry: registry,
		signers:  signers,
		logger:   logger,
		decimals: make(map[string]uint8),
	}
}

func (s *TokenService) erc20For(chain entities.Chain, token entities.Token) (*ERC20, string, error) {
	address, ok := token.AddressOn(chain)
	if !ok {
		return nil, "", fmt.Errorf("token %s is not deployed on %s", token, chain)
	}
	backend, err := s.registry.Backend(chain)
	if err != nil {
		return nil, "", err
	}
	erc20, err := NewERC20(backend, address, chain.ID(), s.logger)
	if err != nil {
		return nil, "", err
	}
	return erc20, address, nil
}

// tokenDecimals reads and caches the contract's decimal count. The on-chain
// value is authoritative over any compiled-in table.
func (s *TokenService) tokenDecimals(ctx context.Context, erc20 *ERC20, address string, chain entities.Chain) (uint8, error) {
	key := string(chain) + "|" + address
	s.mu.Lock()
	if d, ok := s.decimals[key]; ok {
		s.mu.Unlock()
		return d, nil
	}
	s.mu.Unlock()

	d, err := erc20.Decimals(ctx)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.decimals[key] = d
	s.mu.Unlock()
	return d, nil
}

// TokenDecimals returns the token contract's decimal count on the chain,
// read from the contract and cached.
func (s *TokenService) TokenDecimals(ctx context.Context, chain entities.Chain, token entities.Token) (uint8, error) {
	erc20, address, err := s.erc20For(chain, token)
	if err != nil {
		return 0, err
	}
	return s.tokenDecimals(ctx, erc20, address, chain)
}

// FetchBalance reads the wallet's token balance and returns it in token
// units.
func (s *TokenService) FetchBalance(ctx context.Context, chain entities.Chain, token entities.Token, owner string) (decimal.Decimal, error) {
	erc20, address, err := s.erc20For(chain, token)
	if err != nil {
		return decimal.Zero, err
	}

	raw, err := erc20.BalanceOf(ctx, owner)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := s.tokenDecimals(ctx, erc20, address, chain)
	if err != nil {
		return decimal.Zero, err
	}

	return decimal.NewFromBigInt(raw, 0).Shift(-int32(d)), nil
}

// Transfer sends amount base units of the token from the wallet to the
// recipient. The sending wallet must have a registered signer.
func (s *TokenService) Transfer(ctx context.Context, chain entities.Chain, token entities.Token, from, to string, amount *big.Int) (string, error) {
	erc20, _, err := s.erc20For(chain, token)
	if err != nil {
		return "", err
	}
	signer, err := s.signers.SignerFor(from)
	if err != nil {
		return "", fmt.Errorf("cannot sign transfer: %w", err)
	}
	return erc20.Transfer(ctx, signer, to, amount)
}
