package offramp

import (
	"github.com/shopspring/decimal"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/entities"
)

// feeRate is the platform fee applied to every withdrawal: 0.5% of the
// token amount, taken before conversion.
var feeRate = decimal.NewFromFloat(0.005)

// Quote is the fee breakdown shown to the merchant before submission. All
// figures derive from the token amount, the quoted rate and the static fee
// tables; nothing here touches the network.
type Quote struct {
	Amount     decimal.Decimal `json:"amount"`
	Fee        decimal.Decimal `json:"fee"`
	Rate       decimal.Decimal `json:"rate"`
	NetReceive decimal.Decimal `json:"netReceive"`

	// GasFeeCurrency names the currency the network fee is paid in: the
	// token itself on the abstracted path, the chain's native currency
	// otherwise. GasFee is the estimate in that currency.
	GasFeeCurrency string          `json:"gasFeeCurrency"`
	GasFee         decimal.Decimal `json:"gasFee"`
}

// NewQuote computes the fee breakdown for a withdrawal. The platform fee
// comes off the token amount first; the remainder converts at the quoted
// rate. abstracted selects which fee table the gas estimate comes from.
func NewQuote(amount, rate decimal.Decimal, token entities.Token, chain entities.Chain, abstracted bool) Quote {
	fee := amount.Mul(feeRate)
	net := amount.Sub(fee).Mul(rate)

	gasCurrency := chain.NativeSymbol()
	gasFee := chain.NativeGasFee()
	if abstracted {
		gasCurrency = string(token)
		gasFee = token.AbstractedGasFee()
	}

	return Quote{
		Amount:         amount,
		Fee:            fee,
		Rate:           rate,
		NetReceive:     net,
		GasFeeCurrency: gasCurrency,
		GasFee:         gasFee,
	}
}

// NetReceiveDisplay is the fiat amount the merchant will receive, rounded
// to two decimal places for display.
func (q Quote) NetReceiveDisplay() string {
	return q.NetReceive.StringFixed(2)
}

// FeeDisplay is the platform fee in token units, rounded for display.
func (q Quote) FeeDisplay() string {
	return q.Fee.StringFixed(4)
}

// GasFeeDisplay is the estimated network fee with its currency.
func (q Quote) GasFeeDisplay() string {
	return q.GasFee.String() + " " + q.GasFeeCurrency
}
