package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// LocalSigner signs transactions with an in-process ECDSA key. Used for
// embedded wallets whose keys the platform custodies.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewLocalSigner parses a hex-encoded private key.
func NewLocalSigner(privateKeyHex string) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &LocalSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address returns the signer's account address.
func (s *LocalSigner) Address() common.Address {
	return s.address
}

// SignTx signs the transaction for the given chain using EIP-155 style
// signing, which covers both legacy and dynamic-fee transactions.
func (s *LocalSigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}

// SignAuthorization signs an arbitrary gas-abstraction authorization
// payload with the wallet key.
func (s *LocalSigner) SignAuthorization(ctx context.Context, chainID int64, payload []byte) ([]byte, error) {
	hash := crypto.Keccak256(payload)
	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign authorization: %w", err)
	}
	return sig, nil
}

// SignerRegistry maps wallet addresses to their transaction signers. Only
// embedded wallets have entries; external wallets sign client side.
type SignerRegistry struct {
	mu      sync.RWMutex
	signers map[common.Address]TxSigner
}

// NewSignerRegistry creates an empty registry.
func NewSignerRegistry() *SignerRegistry {
	return &SignerRegistry{signers: make(map[common.Address]TxSigner)}
}

// Register adds a signer for its address.
func (r *SignerRegistry) Register(signer TxSigner) {
	r.mu.Lock()
	r.signers[signer.Address()] = signer
	r.mu.Unlock()
}

// Remove drops the signer for an address.
func (r *SignerRegistry) Remove(address string) {
	r.mu.Lock()
	delete(r.signers, common.HexToAddress(address))
	r.mu.Unlock()
}

// SignerFor returns the signer registered for the address.
func (r *SignerRegistry) SignerFor(address string) (TxSigner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	signer, ok := r.signers[common.HexToAddress(address)]
	if !ok {
		return nil, fmt.Errorf("no signer registered for %s", address)
	}
	return signer, nil
}
