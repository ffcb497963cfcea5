package offramp

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/entities"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
	"github.com/NEDA-LABS/nedapay-service/pkg/metrics"
)

// WithdrawalRecorder persists completed withdrawals for history views.
// Recording failures do not fail the withdrawal itself.
type WithdrawalRecorder interface {
	Record(ctx context.Context, merchantID uuid.UUID, fiat string, receipt *entities.WithdrawalReceipt) error
}

// Service orchestrates withdrawal submission: it checks every precondition
// in a fixed order, opens the settlement order, then moves the tokens,
// preferring the gas-abstracted path with a single fallback to a direct
// transfer.
type Service struct {
	processor   Processor
	balances    *BalanceTracker
	initializer *Initializer
	transfers   TransferExecutor
	recorder    WithdrawalRecorder
	logger      *logger.Logger
}

// NewService creates the withdrawal orchestrator. recorder may be nil when
// history persistence is disabled.
func NewService(
	processor Processor,
	balances *BalanceTracker,
	initializer *Initializer,
	transfers TransferExecutor,
	recorder WithdrawalRecorder,
	logger *logger.Logger,
) *Service {
	return &Service{
		processor:   processor,
		balances:    balances,
		initializer: initializer,
		transfers:   transfers,
		recorder:    recorder,
		logger:      logger,
	}
}

// Submit executes the withdrawal described by the session. Preconditions
// are checked in a fixed order so the merchant always sees the earliest
// unmet one: authentication, wallet, account verification, rate, amount,
// token support, gas setup, then balance. No network call is made until
// every local check passes.
func (s *Service) Submit(ctx context.Context, session *Session) (*entities.WithdrawalReceipt, error) {
	st := session.Snapshot()

	amount, tokenAddress, err := s.checkPreconditions(ctx, st)
	if err != nil {
		metrics.OffRampTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	start := time.Now()
	receipt, err := s.execute(ctx, st, amount, tokenAddress)
	outcome := "completed"
	if err != nil {
		outcome = "failed"
	}
	metrics.OffRampTotal.WithLabelValues(outcome).Inc()
	metrics.OffRampDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	metrics.OffRampAmount.WithLabelValues(string(st.Token)).Observe(amount.InexactFloat64())

	if s.recorder != nil {
		if recErr := s.recorder.Record(ctx, st.MerchantID, st.Fiat, receipt); recErr != nil {
			s.logger.Error("Failed to record withdrawal history",
				"merchant_id", st.MerchantID.String(), "reference", receipt.Reference, "error", recErr.Error())
		}
	}
	return receipt, nil
}

func (s *Service) checkPreconditions(ctx context.Context, st SessionState) (decimal.Decimal, string, error) {
	if st.MerchantID == uuid.Nil {
		return decimal.Zero, "", ErrNotAuthenticated
	}
	if st.Wallet == nil || st.Wallet.Address == "" {
		return decimal.Zero, "", ErrWalletNotConnected
	}
	if !st.Verification.Verified {
		return decimal.Zero, "", ErrAccountNotVerified
	}
	if !st.HasRate() {
		return decimal.Zero, "", ErrRateNotFetched
	}

	amount, err := decimal.NewFromString(st.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, "", ErrInvalidAmount
	}

	tokenAddress, ok := st.Token.AddressOn(st.Chain)
	if !ok {
		return decimal.Zero, "", ErrTokenUnsupported
	}

	if s.initializer.State(st.Wallet.Address, st.Chain) == entities.GasAbstractionInitializing {
		return decimal.Zero, "", ErrGasSetupInProgress
	}

	balance, ok := s.balances.Get(st.Wallet.Address, st.Chain, st.Token)
	if !ok {
		balance, err = s.balances.Refresh(ctx, st.Wallet.Address, st.Chain, st.Token)
		if err != nil {
			return decimal.Zero, "", fmt.Errorf("could not confirm balance: %w", err)
		}
	}

	// On the abstracted path the provider charges its fee in the token
	// itself, so the wallet must cover amount plus fee.
	required := amount
	if s.canUseAbstraction(st) {
		if _, ready := s.initializer.Session(st.Wallet.Address, st.Chain); ready {
			required = required.Add(st.Token.AbstractedGasFee())
		}
	}
	if balance.Value.LessThan(required) {
		return decimal.Zero, "", fmt.Errorf("%w: %s %s required, short %s",
			ErrInsufficientBalance, required, st.Token, required.Sub(balance.Value))
	}

	return amount, tokenAddress, nil
}

func (s *Service) execute(ctx context.Context, st SessionState, amount decimal.Decimal, tokenAddress string) (*entities.WithdrawalReceipt, error) {
	reference := uuid.New().String()

	order, err := s.processor.CreateOrder(ctx, &entities.OrderRequest{
		Amount:  amount,
		Rate:    st.Rate,
		Network: st.Chain.NetworkSlug(),
		Token:   st.Token,
		Recipient: entities.OrderRecipient{
			Institution:       st.Institution,
			AccountIdentifier: st.AccountIdentifier,
			AccountName:       st.AccountName,
			Memo:              st.Memo,
		},
		ReturnAddress: st.Wallet.Address,
		Reference:     reference,
	})
	if err != nil {
		return nil, fmt.Errorf("order creation failed: %w", err)
	}

	txHash, err := s.moveTokens(ctx, st, order, amount, tokenAddress)
	if err != nil {
		return nil, err
	}

	s.balances.Invalidate(st.Wallet.Address, st.Chain, st.Token)

	return &entities.WithdrawalReceipt{
		Reference:      order.Reference,
		Amount:         amount,
		Token:          st.Token,
		Network:        st.Chain.NetworkSlug(),
		SenderFee:      order.SenderFee,
		TransactionFee: order.TransactionFee,
		ValidUntil:     order.ValidUntil,
		TxHash:         txHash,
	}, nil
}

// moveTokens sends the order amount to the settlement address. When the
// wallet, token and chain all qualify and a gas session is ready, the
// abstracted path goes first; if it fails, exactly one direct transfer is
// attempted before giving up.
func (s *Service) moveTokens(ctx context.Context, st SessionState, order *entities.SettlementOrder, amount decimal.Decimal, tokenAddress string) (string, error) {
	sendAmount := order.Amount
	if sendAmount.LessThanOrEqual(decimal.Zero) {
		sendAmount = amount
	}

	baseInt, err := s.toBaseUnits(ctx, st, sendAmount)
	if err != nil {
		return "", err
	}

	if s.canUseAbstraction(st) {
		if gas, ready := s.initializer.Session(st.Wallet.Address, st.Chain); ready {
			txHash, err := gas.ExecuteTransfer(ctx, tokenAddress, order.ReceiveAddress, baseInt)
			if err == nil {
				return txHash, nil
			}
			metrics.TransferFallbackTotal.Inc()
			s.logger.Warn("Abstracted transfer failed, falling back to direct transfer",
				"wallet", st.Wallet.Address, "network", string(st.Chain), "error", err.Error())
		}
	}

	txHash, err := s.transfers.Transfer(ctx, st.Chain, st.Token, st.Wallet.Address, order.ReceiveAddress, baseInt)
	if err != nil {
		return "", fmt.Errorf("token transfer failed: %w", err)
	}
	return txHash, nil
}

// toBaseUnits converts a token-unit amount to contract base units. When the
// executor can read decimals from the contract that value wins; otherwise
// the conversion falls back to the compiled-in table.
func (s *Service) toBaseUnits(ctx context.Context, st SessionState, amount decimal.Decimal) (*big.Int, error) {
	if src, ok := s.transfers.(DecimalsSource); ok {
		d, err := src.TokenDecimals(ctx, st.Chain, st.Token)
		if err == nil {
			base := new(big.Int)
			base.SetString(amount.Shift(int32(d)).Truncate(0).String(), 10)
			return base, nil
		}
		s.logger.Warn("On-chain decimals unavailable, using the static table",
			"network", string(st.Chain), "token", string(st.Token), "error", err.Error())
	}

	baseUnits, ok := st.Token.ToBaseUnits(st.Chain, amount)
	if !ok {
		return nil, ErrTokenUnsupported
	}
	base := new(big.Int)
	base.SetString(baseUnits.Truncate(0).String(), 10)
	return base, nil
}

func (s *Service) canUseAbstraction(st SessionState) bool {
	return AbstractionEligible(st.Wallet, st.Chain, st.Token)
}

// AbstractionEligible reports whether the wallet, chain and token pairing
// qualifies for fee-abstracted execution.
func AbstractionEligible(wallet *entities.WalletContext, chain entities.Chain, token entities.Token) bool {
	return wallet != nil &&
		wallet.Category.UsesGasAbstraction() &&
		chain.SupportsGasAbstraction() &&
		token.SupportsGasAbstraction()
}
