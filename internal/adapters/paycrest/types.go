package paycrest

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/entities"
)

// envelope is the processor's standard response wrapper.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// institutionPayload mirrors the processor's institution record.
type institutionPayload struct {
	Name string `json:"name"`
	Code string `json:"code"`
	Type string `json:"type"`
}

func (p institutionPayload) toEntity() entities.Institution {
	return entities.Institution{Name: p.Name, Code: p.Code, Type: p.Type}
}

// currencyPayload mirrors the processor's currency record.
type currencyPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (p currencyPayload) toEntity() entities.Currency {
	return entities.Currency{Code: p.Code, Name: p.Name}
}

// verifyAccountRequest asks the processor to resolve a settlement account.
type verifyAccountRequest struct {
	Institution       string `json:"institution"`
	AccountIdentifier string `json:"accountIdentifier"`
}

// orderRequest is the wire form of an order-creation call.
type orderRequest struct {
	Amount        decimal.Decimal      `json:"amount"`
	Rate          decimal.Decimal      `json:"rate"`
	Network       string               `json:"network"`
	Token         string               `json:"token"`
	Recipient     orderRecipientFields `json:"recipient"`
	ReturnAddress string               `json:"returnAddress"`
	Reference     string               `json:"reference"`
}

type orderRecipientFields struct {
	Institution       string `json:"institution"`
	AccountIdentifier string `json:"accountIdentifier"`
	AccountName       string `json:"accountName"`
	Memo              string `json:"memo,omitempty"`
}

// orderPayload is the processor's settlement-order record.
type orderPayload struct {
	ReceiveAddress string          `json:"receiveAddress"`
	Amount         decimal.Decimal `json:"amount"`
	Reference      string          `json:"reference"`
	SenderFee      decimal.Decimal `json:"senderFee"`
	TransactionFee decimal.Decimal `json:"transactionFee"`
	ValidUntil     time.Time       `json:"validUntil"`
}

func (p orderPayload) toEntity() *entities.SettlementOrder {
	return &entities.SettlementOrder{
		ReceiveAddress: p.ReceiveAddress,
		Amount:         p.Amount,
		Reference:      p.Reference,
		SenderFee:      p.SenderFee,
		TransactionFee: p.TransactionFee,
		ValidUntil:     p.ValidUntil,
	}
}
