// Package chain provides on-chain access: RPC connections per network,
// ERC-20 reads and transfers, and Base name resolution.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/entities"
	"github.com/NEDA-LABS/nedapay-service/internal/infrastructure/config"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

// Backend is the subset of an RPC client the service uses. ethclient.Client
// satisfies it; tests substitute fakes.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Registry holds one RPC connection per supported network, dialed lazily and
// reused for the process lifetime.
type Registry struct {
	config  config.BlockchainConfig
	logger  *logger.Logger
	mu      sync.RWMutex
	clients map[entities.Chain]*ethclient.Client
}

// NewRegistry creates a registry over the configured networks. Connections
// are dialed on first use so a single unreachable RPC does not block startup.
func NewRegistry(cfg config.BlockchainConfig, logger *logger.Logger) *Registry {
	return &Registry{
		config:  cfg,
		logger:  logger,
		clients: make(map[entities.Chain]*ethclient.Client),
	}
}

// Backend returns the RPC backend for a chain, dialing it if needed.
func (r *Registry) Backend(chain entities.Chain) (Backend, error) {
	r.mu.RLock()
	client, ok := r.clients[chain]
	r.mu.RUnlock()
	if ok {
		return client, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if client, ok := r.clients[chain]; ok {
		return client, nil
	}

	net, ok := r.config.Networks[strings.ToLower(string(chain))]
	if !ok || net.RPC == "" {
		return nil, fmt.Errorf("no RPC configured for network %s", chain)
	}

	client, err := ethclient.Dial(net.RPC)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s RPC: %w", chain, err)
	}

	r.logger.Info("Connected to network RPC", "network", string(chain), "chain_id", chain.ID())
	r.clients[chain] = client
	return client, nil
}

// Close disconnects every dialed RPC client.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for chain, client := range r.clients {
		client.Close()
		delete(r.clients, chain)
	}
	return nil
}
