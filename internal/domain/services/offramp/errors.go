package offramp

import "errors"

// Precondition errors surfaced to the dashboard, in the order submission
// checks them. Messages are user-facing.
var (
	ErrNotAuthenticated     = errors.New("User not authenticated")
	ErrWalletNotConnected   = errors.New("Wallet not connected")
	ErrAccountNotVerified   = errors.New("Please verify account first")
	ErrRateNotFetched       = errors.New("Please fetch exchange rate first")
	ErrInvalidAmount        = errors.New("Enter a valid amount")
	ErrTokenUnsupported     = errors.New("Selected token is not supported on this network")
	ErrInsufficientBalance  = errors.New("Insufficient token balance")
	ErrGasSetupInProgress   = errors.New("Gas-free setup is still in progress, try again shortly")
	ErrSessionNotFound      = errors.New("Withdrawal session not found or expired")
	ErrVerificationMismatch = errors.New("Account details changed since verification")
)

// Initialization errors kept internal to the gas-abstraction lifecycle.
var (
	ErrProviderHandleGone     = errors.New("wallet provider handle is not available")
	ErrCustodyNotAbstractable = errors.New("custody model does not use gas abstraction")
)
