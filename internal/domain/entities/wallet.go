package entities

import "time"

// CustodyCategory is the closed set of wallet custody models the dashboard
// handles. It is resolved once when a wallet becomes active; every branch on
// wallet behavior switches exhaustively over it.
type CustodyCategory int

const (
	// CustodyEmbedded is a platform-custodied wallet key.
	CustodyEmbedded CustodyCategory = iota
	// CustodyExternalStandard is a user-controlled external wallet.
	CustodyExternalStandard
	// CustodyExternalCoinbase is the Coinbase-custodied external wallet,
	// which never participates in gas abstraction.
	CustodyExternalCoinbase
)

func (c CustodyCategory) String() string {
	switch c {
	case CustodyEmbedded:
		return "embedded"
	case CustodyExternalStandard:
		return "external"
	case CustodyExternalCoinbase:
		return "coinbase"
	default:
		return "unknown"
	}
}

// UsesGasAbstraction reports whether this custody model is allowed to use
// the fee-abstracted execution path at all.
func (c CustodyCategory) UsesGasAbstraction() bool {
	switch c {
	case CustodyEmbedded, CustodyExternalStandard:
		return true
	case CustodyExternalCoinbase:
		return false
	default:
		return false
	}
}

// WalletContext is the active wallet as seen by the off-ramp core. It is
// owned by the wallet-auth collaborator; the core only reads it.
type WalletContext struct {
	Address  string
	Category CustodyCategory
	// HasProviderHandle is true when the wallet's execution provider is
	// live. Embedded wallets cannot initialize gas abstraction without it.
	HasProviderHandle bool
	// CanSwitchChain is true when the wallet accepts chain-switch requests.
	CanSwitchChain bool
}

// LinkedAccount is an auxiliary account (email, social, extra wallet)
// attached to the merchant's login.
type LinkedAccount struct {
	Type    string `json:"type"`
	Address string `json:"address,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// LinkResult is the outcome of an account-linking operation. Linking is an
// awaited call returning this result; there are no registered callbacks.
type LinkResult struct {
	Linked  bool           `json:"linked"`
	Account *LinkedAccount `json:"account,omitempty"`
	Err     string         `json:"error,omitempty"`
}

// AuthUser is a merchant identity as held by the wallet auth provider,
// together with every wallet and auxiliary account linked to it.
type AuthUser struct {
	ID             string          `json:"id"`
	CreatedAt      time.Time       `json:"createdAt"`
	Wallets        []WalletContext `json:"wallets"`
	LinkedAccounts []LinkedAccount `json:"linkedAccounts"`
}
