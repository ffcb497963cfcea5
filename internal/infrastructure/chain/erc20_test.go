package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

const testContract = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"

// fakeBackend scripts the node responses for one transfer attempt.
type fakeBackend struct {
	callResult  []byte
	callErr     error
	gasPrice    *big.Int
	tipCap      *big.Int
	baseFee     *big.Int
	gasEstimate uint64
	estimateErr error
	nonce       uint64
	sendErr     error

	estimateCalls int
	sent          []*types.Transaction
}

func (b *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return b.callResult, b.callErr
}

func (b *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return b.gasPrice, nil
}

func (b *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return b.tipCap, nil
}

func (b *fakeBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	b.estimateCalls++
	return b.gasEstimate, b.estimateErr
}

func (b *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return b.nonce, nil
}

func (b *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.sent = append(b.sent, tx)
	return b.sendErr
}

func (b *fakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: b.baseFee}, nil
}

func newTestSigner(t *testing.T) *LocalSigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer, err := NewLocalSigner(hex.EncodeToString(crypto.FromECDSA(key)))
	require.NoError(t, err)
	return signer
}

func TestTransferUsesEstimatedLegacyTx(t *testing.T) {
	backend := &fakeBackend{
		gasPrice:    big.NewInt(1_000_000_000),
		gasEstimate: 50_000,
		nonce:       7,
	}
	token, err := NewERC20(backend, testContract, 8453, logger.NewNop())
	require.NoError(t, err)

	hash, err := token.Transfer(context.Background(), newTestSigner(t), "0x0000000000000000000000000000000000000001", big.NewInt(1_000_000))

	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	require.Len(t, backend.sent, 1)

	sent := backend.sent[0]
	assert.Equal(t, uint8(types.LegacyTxType), sent.Type())
	assert.Equal(t, uint64(7), sent.Nonce())
	assert.Equal(t, uint64(60_000), sent.Gas(), "estimate is padded by 20%")
	assert.Equal(t, big.NewInt(1_000_000_000), sent.GasPrice())
}

func TestTransferFallsBackToDynamicFeeOnce(t *testing.T) {
	backend := &fakeBackend{
		gasPrice:    big.NewInt(1_000_000_000),
		estimateErr: errors.New("execution reverted"),
		tipCap:      big.NewInt(2_000_000_000),
		baseFee:     big.NewInt(500_000_000),
	}
	token, err := NewERC20(backend, testContract, 8453, logger.NewNop())
	require.NoError(t, err)

	_, err = token.Transfer(context.Background(), newTestSigner(t), "0x0000000000000000000000000000000000000001", big.NewInt(1_000_000))

	require.NoError(t, err)
	assert.Equal(t, 1, backend.estimateCalls, "estimation is not retried")
	require.Len(t, backend.sent, 1)

	sent := backend.sent[0]
	assert.Equal(t, uint8(types.DynamicFeeTxType), sent.Type())
	assert.Equal(t, uint64(120_000), sent.Gas())
	assert.Equal(t, big.NewInt(2_000_000_000), sent.GasTipCap())
	// feeCap = tip + 2 * baseFee
	assert.Equal(t, big.NewInt(3_000_000_000), sent.GasFeeCap())
}

func TestTransferFallbackOnPre1559Chain(t *testing.T) {
	// A header without a base fee means dynamic-fee pricing is unavailable;
	// the retry prices as a legacy transaction instead.
	backend := &fakeBackend{
		gasPrice:    big.NewInt(5_000_000_000),
		estimateErr: errors.New("execution reverted"),
		tipCap:      big.NewInt(2_000_000_000),
	}
	token, err := NewERC20(backend, testContract, 56, logger.NewNop())
	require.NoError(t, err)

	_, err = token.Transfer(context.Background(), newTestSigner(t), "0x0000000000000000000000000000000000000001", big.NewInt(1_000_000))

	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	sent := backend.sent[0]
	assert.Equal(t, uint8(types.LegacyTxType), sent.Type())
	assert.Equal(t, uint64(120_000), sent.Gas())
	assert.Equal(t, big.NewInt(5_000_000_000), sent.GasPrice())
}

func TestTransferValidatesInput(t *testing.T) {
	token, err := NewERC20(&fakeBackend{}, testContract, 8453, logger.NewNop())
	require.NoError(t, err)
	signer := newTestSigner(t)

	_, err = token.Transfer(context.Background(), signer, "not-an-address", big.NewInt(1))
	assert.Error(t, err)

	_, err = token.Transfer(context.Background(), signer, "0x0000000000000000000000000000000000000001", big.NewInt(0))
	assert.Error(t, err)
}

func TestSignerRegistry(t *testing.T) {
	registry := NewSignerRegistry()
	signer := newTestSigner(t)
	registry.Register(signer)

	got, err := registry.SignerFor(signer.Address().Hex())
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), got.Address())

	registry.Remove(signer.Address().Hex())
	_, err = registry.SignerFor(signer.Address().Hex())
	assert.Error(t, err)
}

func TestNamehash(t *testing.T) {
	// Reference vectors from EIP-137.
	cases := map[string]string{
		"":        "0000000000000000000000000000000000000000000000000000000000000000",
		"eth":     "93cdeb708b7545dc668eb9280176169d1c33cfd8ed6f04690a0bcc88a93fc4ae",
		"foo.eth": "de9b09fd7c5f901e23a3f19fecc54828e9c848539801e86591bd9801b019f84f",
	}
	for name, want := range cases {
		node := namehash(name)
		assert.Equal(t, want, hex.EncodeToString(node[:]), "namehash(%q)", name)
	}
}

func TestReverseNodeUsesLowercasedUnprefixedAddress(t *testing.T) {
	addr := common.HexToAddress("0xAB5801a7D398351b8bE11C439e05C5B3259aeC9B")
	node := reverseNode(addr)
	want := namehash("ab5801a7d398351b8be11c439e05c5b3259aec9b.80002105.reverse")
	assert.Equal(t, want, node)
}
