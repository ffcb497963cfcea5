package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/entities"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

// WithdrawalRecord is the persisted form of a completed withdrawal.
type WithdrawalRecord struct {
	ID             uuid.UUID       `db:"id"`
	MerchantID     uuid.UUID       `db:"merchant_id"`
	Reference      string          `db:"reference"`
	Amount         decimal.Decimal `db:"amount"`
	Token          string          `db:"token"`
	Network        string          `db:"network"`
	Fiat           string          `db:"fiat"`
	SenderFee      decimal.Decimal `db:"sender_fee"`
	TransactionFee decimal.Decimal `db:"transaction_fee"`
	TxHash         string          `db:"tx_hash"`
	CreatedAt      time.Time       `db:"created_at"`
}

// WithdrawalRepository records completed withdrawals for the dashboard's
// transaction history.
type WithdrawalRepository struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewWithdrawalRepository creates a new withdrawal repository.
func NewWithdrawalRepository(db *sqlx.DB, logger *logger.Logger) *WithdrawalRepository {
	return &WithdrawalRepository{db: db, logger: logger}
}

// Record stores the receipt of a completed withdrawal.
func (r *WithdrawalRepository) Record(ctx context.Context, merchantID uuid.UUID, fiat string, receipt *entities.WithdrawalReceipt) error {
	record := WithdrawalRecord{
		ID:             uuid.New(),
		MerchantID:     merchantID,
		Reference:      receipt.Reference,
		Amount:         receipt.Amount,
		Token:          string(receipt.Token),
		Network:        receipt.Network,
		Fiat:           fiat,
		SenderFee:      receipt.SenderFee,
		TransactionFee: receipt.TransactionFee,
		TxHash:         receipt.TxHash,
		CreatedAt:      time.Now().UTC(),
	}

	query := `
		INSERT INTO withdrawals (
			id, merchant_id, reference, amount, token, network, fiat,
			sender_fee, transaction_fee, tx_hash, created_at
		) VALUES (
			:id, :merchant_id, :reference, :amount, :token, :network, :fiat,
			:sender_fee, :transaction_fee, :tx_hash, :created_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("failed to record withdrawal: %w", err)
	}
	return nil
}

// ListByMerchant returns a merchant's withdrawals, newest first.
func (r *WithdrawalRepository) ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]WithdrawalRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var records []WithdrawalRecord
	query := `SELECT * FROM withdrawals WHERE merchant_id = $1 ORDER BY created_at DESC LIMIT $2`
	if err := r.db.SelectContext(ctx, &records, query, merchantID, limit); err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	return records, nil
}
