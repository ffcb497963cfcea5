// Package offramp implements the crypto-to-fiat withdrawal flow: rate and
// eligibility resolution, balance tracking, gas-abstraction lifecycle, and
// order submission with transfer fallback.
package offramp

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/entities"
)

// Processor is the payment-processor surface the flow depends on.
type Processor interface {
	FetchRate(ctx context.Context, token entities.Token, amount decimal.Decimal, fiat, network string) (decimal.Decimal, error)
	SupportedCurrencies(ctx context.Context) ([]entities.Currency, error)
	SupportedInstitutions(ctx context.Context, fiat string) ([]entities.Institution, error)
	VerifyAccount(ctx context.Context, institutionCode, accountIdentifier string) (string, error)
	CreateOrder(ctx context.Context, req *entities.OrderRequest) (*entities.SettlementOrder, error)
}

// BalanceSource reads a wallet's token balance from chain, returned in token
// units.
type BalanceSource interface {
	FetchBalance(ctx context.Context, chain entities.Chain, token entities.Token, owner string) (decimal.Decimal, error)
}

// TransferExecutor moves tokens directly from the merchant's wallet. The
// executor resolves signing per custody model; amount is in base units.
type TransferExecutor interface {
	Transfer(ctx context.Context, chain entities.Chain, token entities.Token, from, to string, amount *big.Int) (string, error)
}

// DecimalsSource reads a token contract's decimal count. Executors that
// implement it make the on-chain value authoritative for base-unit
// conversion; the compiled-in table covers the rest.
type DecimalsSource interface {
	TokenDecimals(ctx context.Context, chain entities.Chain, token entities.Token) (uint8, error)
}

// SignAuthorizationFunc signs a gas-abstraction authorization on behalf of
// an embedded wallet. Present only while the wallet's provider handle is
// live.
type SignAuthorizationFunc func(ctx context.Context, chainID int64, payload []byte) ([]byte, error)

// GasSession is an established fee-abstraction session for one wallet on one
// chain.
type GasSession interface {
	SmartAccount() string
	ExecuteTransfer(ctx context.Context, tokenAddress, to string, amount *big.Int) (string, error)
}

// GasProvider establishes gas-abstraction sessions.
type GasProvider interface {
	InitializeEmbedded(ctx context.Context, walletAddress string, chainID int64, signAuth SignAuthorizationFunc) (GasSession, error)
	InitializeExternal(ctx context.Context, walletAddress string, chainID int64) (GasSession, error)
}
