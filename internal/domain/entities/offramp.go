package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalRequest is the merchant's off-ramp intent as entered in the
// withdrawal form. Amount stays a decimal string until submission, when it
// is parsed against the token's on-chain precision.
type WithdrawalRequest struct {
	Amount            string `json:"amount"`
	Token             Token  `json:"token"`
	Chain             Chain  `json:"chain"`
	Fiat              string `json:"fiat"`
	Institution       string `json:"institution"`
	AccountIdentifier string `json:"accountIdentifier"`
	AccountName       string `json:"accountName"`
	Memo              string `json:"memo,omitempty"`
}

// OrderRecipient is the fiat destination of a settlement order.
type OrderRecipient struct {
	Institution       string `json:"institution"`
	AccountIdentifier string `json:"accountIdentifier"`
	AccountName       string `json:"accountName"`
	Memo              string `json:"memo,omitempty"`
}

// OrderRequest is the payload sent to the payment processor to open a
// settlement order.
type OrderRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Rate          decimal.Decimal `json:"rate"`
	Network       string          `json:"network"`
	Token         Token           `json:"token"`
	Recipient     OrderRecipient  `json:"recipient"`
	ReturnAddress string          `json:"returnAddress"`
	Reference     string          `json:"reference"`
}

// SettlementOrder is the processor's record of an agreed crypto-to-fiat
// conversion. Immutable once issued; consumed exactly once by the transfer
// step.
type SettlementOrder struct {
	ReceiveAddress string          `json:"receiveAddress"`
	Amount         decimal.Decimal `json:"amount"`
	Reference      string          `json:"reference"`
	SenderFee      decimal.Decimal `json:"senderFee"`
	TransactionFee decimal.Decimal `json:"transactionFee"`
	ValidUntil     time.Time       `json:"validUntil"`
}

// Institution is a bank or mobile-money provider the processor can settle
// into.
type Institution struct {
	Name string `json:"name"`
	Code string `json:"code"`
	Type string `json:"type"`
}

// InstitutionTypeBank marks institutions excluded for TZS settlements.
const InstitutionTypeBank = "bank"

// Currency is a fiat currency the processor supports.
type Currency struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// AccountVerification is the result of verifying a settlement destination,
// scoped to one (institution, accountIdentifier) pair. Any edit to either
// field invalidates it.
type AccountVerification struct {
	Verified    bool   `json:"verified"`
	AccountName string `json:"accountName,omitempty"`
}

// GasAbstractionState is the lifecycle of a fee-abstraction session for one
// (wallet, chain) pairing.
type GasAbstractionState int

const (
	GasAbstractionUninitialized GasAbstractionState = iota
	GasAbstractionInitializing
	GasAbstractionReady
	GasAbstractionFailed
)

func (s GasAbstractionState) String() string {
	switch s {
	case GasAbstractionUninitialized:
		return "uninitialized"
	case GasAbstractionInitializing:
		return "initializing"
	case GasAbstractionReady:
		return "ready"
	case GasAbstractionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// WithdrawalReceipt is the success summary surfaced to the merchant after a
// completed submission.
type WithdrawalReceipt struct {
	Reference      string          `json:"reference"`
	Amount         decimal.Decimal `json:"amount"`
	Token          Token           `json:"token"`
	Network        string          `json:"network"`
	SenderFee      decimal.Decimal `json:"senderFee"`
	TransactionFee decimal.Decimal `json:"transactionFee"`
	ValidUntil     time.Time       `json:"validUntil"`
	TxHash         string          `json:"txHash,omitempty"`
}
