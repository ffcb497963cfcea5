package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

const erc20ABI = `[
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

// fallbackGasLimit bounds the transfer when gas estimation itself fails and
// the retry defers sizing to the node. Stablecoin transfers fit well inside
// it on every supported chain.
const fallbackGasLimit = 120_000

// TxSigner signs transactions for one sending address. The wallet layer
// supplies implementations per custody model.
type TxSigner interface {
	Address() common.Address
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// ERC20 performs reads and transfers against one token contract on one
// network backend.
type ERC20 struct {
	backend  Backend
	contract common.Address
	chainID  *big.Int
	abi      abi.ABI
	logger   *logger.Logger
}

// NewERC20 binds a token contract address on a backend.
func NewERC20(backend Backend, contractAddress string, chainID int64, logger *logger.Logger) (*ERC20, error) {
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("invalid token contract address: %s", contractAddress)
	}
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}
	return &ERC20{
		backend:  backend,
		contract: common.HexToAddress(contractAddress),
		chainID:  big.NewInt(chainID),
		abi:      parsed,
		logger:   logger,
	}, nil
}

// Decimals reads the token's decimal count.
func (e *ERC20) Decimals(ctx context.Context) (uint8, error) {
	data, err := e.abi.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("failed to pack decimals call: %w", err)
	}
	result, err := e.backend.CallContract(ctx, ethereum.CallMsg{To: &e.contract, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("decimals call failed: %w", err)
	}
	var decimals uint8
	if err := e.abi.UnpackIntoInterface(&decimals, "decimals", result); err != nil {
		return 0, fmt.Errorf("failed to unpack decimals: %w", err)
	}
	return decimals, nil
}

// BalanceOf reads the token balance of an address in base units.
func (e *ERC20) BalanceOf(ctx context.Context, owner string) (*big.Int, error) {
	if !common.IsHexAddress(owner) {
		return nil, fmt.Errorf("invalid owner address: %s", owner)
	}
	data, err := e.abi.Pack("balanceOf", common.HexToAddress(owner))
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf call: %w", err)
	}
	result, err := e.backend.CallContract(ctx, ethereum.CallMsg{To: &e.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}
	balance := new(big.Int)
	if err := e.abi.UnpackIntoInterface(&balance, "balanceOf", result); err != nil {
		return nil, fmt.Errorf("failed to unpack balance: %w", err)
	}
	return balance, nil
}

// Transfer sends amount base units of the token to the recipient from the
// signer's address. The first attempt prices the transaction itself with a
// 20% gas headroom; if gas estimation fails, exactly one retry is made with
// node-suggested fee caps and a fixed limit. There is no third attempt.
func (e *ERC20) Transfer(ctx context.Context, signer TxSigner, to string, amount *big.Int) (string, error) {
	if !common.IsHexAddress(to) {
		return "", fmt.Errorf("invalid recipient address: %s", to)
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", fmt.Errorf("transfer amount must be positive")
	}

	data, err := e.abi.Pack("transfer", common.HexToAddress(to), amount)
	if err != nil {
		return "", fmt.Errorf("failed to pack transfer call: %w", err)
	}

	from := signer.Address()
	nonce, err := e.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("failed to fetch nonce: %w", err)
	}

	tx, err := e.buildPricedTx(ctx, from, nonce, data)
	if err != nil {
		e.logger.Warn("Gas estimation failed, retrying with node-deferred pricing",
			"contract", e.contract.Hex(), "error", err.Error())
		tx, err = e.buildDeferredTx(ctx, nonce, data)
		if err != nil {
			return "", fmt.Errorf("transfer pricing failed: %w", err)
		}
	}

	signed, err := signer.SignTx(ctx, tx, e.chainID)
	if err != nil {
		return "", fmt.Errorf("failed to sign transfer: %w", err)
	}
	if err := e.backend.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to broadcast transfer: %w", err)
	}
	return signed.Hash().Hex(), nil
}

// buildPricedTx estimates gas for the call and pads the limit by 20%.
func (e *ERC20) buildPricedTx(ctx context.Context, from common.Address, nonce uint64, data []byte) (*types.Transaction, error) {
	gasPrice, err := e.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price suggestion failed: %w", err)
	}
	gasLimit, err := e.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &e.contract,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("gas estimation failed: %w", err)
	}
	gasLimit = gasLimit * 120 / 100

	return types.NewTransaction(nonce, e.contract, big.NewInt(0), gasLimit, gasPrice, data), nil
}

// buildDeferredTx builds a dynamic-fee transaction with node-suggested caps
// and a fixed gas limit, skipping estimation entirely.
func (e *ERC20) buildDeferredTx(ctx context.Context, nonce uint64, data []byte) (*types.Transaction, error) {
	tipCap, err := e.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("tip cap suggestion failed: %w", err)
	}
	head, err := e.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("head fetch failed: %w", err)
	}
	if head.BaseFee == nil {
		// Pre-1559 chain: dynamic fees do not apply, price the retry as a
		// legacy transaction at the node's suggested gas price.
		gasPrice, err := e.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("gas price suggestion failed: %w", err)
		}
		return types.NewTransaction(nonce, e.contract, big.NewInt(0), fallbackGasLimit, gasPrice, data), nil
	}
	feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   e.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       fallbackGasLimit,
		To:        &e.contract,
		Value:     big.NewInt(0),
		Data:      data,
	}), nil
}
