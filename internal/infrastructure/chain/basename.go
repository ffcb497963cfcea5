package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

// l2ResolverAddress is the Base mainnet L2 resolver used for reverse name
// lookups.
const l2ResolverAddress = "0xC6d566A56A1aFf6508b41f6c90ff131615583BCD"

// baseReverseSuffix is the cointype-scoped reverse namespace for Base
// mainnet (chain id 8453, cointype 80002105).
const baseReverseSuffix = "80002105.reverse"

const l2ResolverABI = `[
	{"inputs":[{"name":"node","type":"bytes32"}],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"}
]`

// BasenameResolver performs reverse lookups of Base names for wallet
// addresses. Lookups are best effort; a missing name is not an error.
type BasenameResolver struct {
	backend  Backend
	resolver common.Address
	abi      abi.ABI
	logger   *logger.Logger
}

// NewBasenameResolver creates a resolver over the Base backend.
func NewBasenameResolver(backend Backend, logger *logger.Logger) (*BasenameResolver, error) {
	parsed, err := abi.JSON(strings.NewReader(l2ResolverABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse resolver ABI: %w", err)
	}
	return &BasenameResolver{
		backend:  backend,
		resolver: common.HexToAddress(l2ResolverAddress),
		abi:      parsed,
		logger:   logger,
	}, nil
}

// Resolve returns the Base name registered for the address, or empty when
// none is set.
func (r *BasenameResolver) Resolve(ctx context.Context, address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid address: %s", address)
	}

	node := reverseNode(common.HexToAddress(address))
	data, err := r.abi.Pack("name", node)
	if err != nil {
		return "", fmt.Errorf("failed to pack name call: %w", err)
	}

	result, err := r.backend.CallContract(ctx, ethereum.CallMsg{To: &r.resolver, Data: data}, nil)
	if err != nil {
		return "", fmt.Errorf("name lookup failed: %w", err)
	}

	var name string
	if err := r.abi.UnpackIntoInterface(&name, "name", result); err != nil {
		return "", fmt.Errorf("failed to unpack name: %w", err)
	}
	return name, nil
}

// reverseNode computes the namehash of "<addr-hex>.80002105.reverse" per the
// ENS namehash algorithm, with the address lowercased and unprefixed.
func reverseNode(addr common.Address) [32]byte {
	name := strings.ToLower(strings.TrimPrefix(addr.Hex(), "0x")) + "." + baseReverseSuffix
	return namehash(name)
}

func namehash(name string) [32]byte {
	var node [32]byte
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		node = [32]byte(crypto.Keccak256(node[:], labelHash))
	}
	return node
}
