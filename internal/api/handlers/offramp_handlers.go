package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/entities"
	"github.com/NEDA-LABS/nedapay-service/internal/domain/services/offramp"
	"github.com/NEDA-LABS/nedapay-service/internal/domain/services/wallet"
	"github.com/NEDA-LABS/nedapay-service/internal/infrastructure/repositories"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

// SignAuthLookup returns the authorization signer for an embedded wallet
// address, or nil when the wallet has no live provider handle.
type SignAuthLookup func(address string) offramp.SignAuthorizationFunc

// OffRampHandler serves the withdrawal flow endpoints.
type OffRampHandler struct {
	sessions    *offramp.SessionStore
	resolver    *offramp.Resolver
	service     *offramp.Service
	balances    *offramp.BalanceTracker
	initializer *offramp.Initializer
	wallets     *wallet.Service
	withdrawals *repositories.WithdrawalRepository
	signAuthFor SignAuthLookup
	logger      *logger.Logger
}

// NewOffRampHandler creates the withdrawal flow handler.
func NewOffRampHandler(
	sessions *offramp.SessionStore,
	resolver *offramp.Resolver,
	service *offramp.Service,
	balances *offramp.BalanceTracker,
	initializer *offramp.Initializer,
	wallets *wallet.Service,
	withdrawals *repositories.WithdrawalRepository,
	signAuthFor SignAuthLookup,
	logger *logger.Logger,
) *OffRampHandler {
	return &OffRampHandler{
		sessions:    sessions,
		resolver:    resolver,
		service:     service,
		balances:    balances,
		initializer: initializer,
		wallets:     wallets,
		withdrawals: withdrawals,
		signAuthFor: signAuthFor,
		logger:      logger,
	}
}

type openSessionRequest struct {
	ProviderUserID string `json:"providerUserId" binding:"required"`
}

// OpenSession starts (or restarts) the merchant's withdrawal session with
// their active wallet and kicks gas-abstraction setup for the default
// network.
func (h *OffRampHandler) OpenSession(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		respondUnauthorized(c, "Authentication required")
		return
	}

	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "providerUserId is required")
		return
	}

	activeWallet, err := h.wallets.ActiveWallet(c.Request.Context(), req.ProviderUserID)
	if err != nil {
		h.logger.Error("Failed to resolve active wallet", "error", err.Error())
		respondInternalError(c, "Could not resolve wallet")
		return
	}
	if activeWallet == nil {
		respondUnprocessable(c, offramp.ErrWalletNotConnected.Error())
		return
	}

	session := h.sessions.Open(merchantID, activeWallet)
	session.SetChain(entities.ChainBase)
	session.SetToken(entities.TokenUSDC)

	h.initializer.Kick(c.Request.Context(), activeWallet, entities.ChainBase, h.signAuth(activeWallet))

	respondCreated(c, h.sessionView(session))
}

// GetSession returns the current withdrawal session state.
func (h *OffRampHandler) GetSession(c *gin.Context) {
	session, ok := h.requireSession(c)
	if !ok {
		return
	}
	respondSuccess(c, h.sessionView(session))
}

type updateSessionRequest struct {
	Amount            *string `json:"amount"`
	Token             *string `json:"token"`
	Chain             *string `json:"chain"`
	Fiat              *string `json:"fiat"`
	Institution       *string `json:"institution"`
	AccountIdentifier *string `json:"accountIdentifier"`
	Memo              *string `json:"memo"`
}

// UpdateSession applies form edits. Invalidation is handled by the session
// itself: amount and fiat edits clear the rate, account edits reset
// verification. A network change re-kicks gas-abstraction setup.
func (h *OffRampHandler) UpdateSession(c *gin.Context) {
	session, ok := h.requireSession(c)
	if !ok {
		return
	}

	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	if req.Token != nil {
		token := entities.Token(*req.Token)
		if !token.Valid() {
			respondBadRequest(c, "Unsupported token")
			return
		}
		session.SetToken(token)
	}
	if req.Chain != nil {
		chain := entities.Chain(*req.Chain)
		if !chain.Valid() {
			respondBadRequest(c, "Unsupported network")
			return
		}
		session.SetChain(chain)
		h.initializer.Kick(c.Request.Context(), session.Wallet, chain, h.signAuth(session.Wallet))
	}
	if req.Amount != nil {
		session.SetAmount(*req.Amount)
	}
	if req.Fiat != nil {
		session.SetFiat(*req.Fiat)
	}
	if req.Institution != nil {
		session.SetInstitution(*req.Institution)
	}
	if req.AccountIdentifier != nil {
		session.SetAccountIdentifier(*req.AccountIdentifier)
	}
	if req.Memo != nil {
		session.SetMemo(*req.Memo)
	}

	respondSuccess(c, h.sessionView(session))
}

// Currencies lists supported settlement currencies.
func (h *OffRampHandler) Currencies(c *gin.Context) {
	currencies, err := h.resolver.Currencies(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list currencies", "error", err.Error())
		respondInternalError(c, "Could not load currencies")
		return
	}
	respondSuccess(c, gin.H{"currencies": currencies})
}

// Institutions lists settlement institutions for a currency, filters
// applied.
func (h *OffRampHandler) Institutions(c *gin.Context) {
	fiat := c.Query("fiat")
	if fiat == "" {
		respondBadRequest(c, "fiat query parameter is required")
		return
	}
	institutions, err := h.resolver.Institutions(c.Request.Context(), fiat)
	if err != nil {
		h.logger.Error("Failed to list institutions", "fiat", fiat, "error", err.Error())
		respondInternalError(c, "Could not load institutions")
		return
	}
	respondSuccess(c, gin.H{"institutions": institutions})
}

// FetchRate quotes a fresh rate for the session's form state and stores it.
func (h *OffRampHandler) FetchRate(c *gin.Context) {
	session, ok := h.requireSession(c)
	if !ok {
		return
	}
	st := session.Snapshot()

	amount, err := decimal.NewFromString(st.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		respondBadRequest(c, offramp.ErrInvalidAmount.Error())
		return
	}
	if st.Fiat == "" {
		respondBadRequest(c, "Select a settlement currency first")
		return
	}

	rate, err := h.resolver.FetchRate(c.Request.Context(), st.Token, amount, st.Fiat, st.Chain)
	if err != nil {
		h.logger.Error("Rate fetch failed", "fiat", st.Fiat, "error", err.Error())
		respondError(c, http.StatusBadGateway, "RATE_UNAVAILABLE", "Could not fetch exchange rate")
		return
	}

	session.SetRate(rate)
	quote := offramp.NewQuote(amount, rate, st.Token, st.Chain,
		offramp.AbstractionEligible(st.Wallet, st.Chain, st.Token))
	respondSuccess(c, gin.H{
		"rate":           rate,
		"fee":            quote.FeeDisplay(),
		"netReceive":     quote.NetReceiveDisplay(),
		"gasFee":         quote.GasFee,
		"gasFeeCurrency": quote.GasFeeCurrency,
	})
}

// VerifyAccount verifies the session's settlement destination.
func (h *OffRampHandler) VerifyAccount(c *gin.Context) {
	session, ok := h.requireSession(c)
	if !ok {
		return
	}
	st := session.Snapshot()

	verification, err := h.resolver.VerifyAccount(c.Request.Context(), st.Institution, st.AccountIdentifier)
	if err != nil {
		respondUnprocessable(c, "Account verification failed")
		return
	}

	session.SetVerification(verification)
	respondSuccess(c, verification)
}

// Balance returns the session wallet's token balance. refresh=true forces a
// fresh on-chain read.
func (h *OffRampHandler) Balance(c *gin.Context) {
	session, ok := h.requireSession(c)
	if !ok {
		return
	}
	st := session.Snapshot()

	if c.Query("refresh") == "true" {
		balance, err := h.balances.Refresh(c.Request.Context(), st.Wallet.Address, st.Chain, st.Token)
		if err != nil {
			h.logger.Error("Balance refresh failed", "wallet", st.Wallet.Address, "error", err.Error())
			respondError(c, http.StatusBadGateway, "BALANCE_UNAVAILABLE", "Could not read balance")
			return
		}
		respondSuccess(c, h.balanceView(c, st, balance))
		return
	}

	balance, found := h.balances.Get(st.Wallet.Address, st.Chain, st.Token)
	if !found {
		respondSuccess(c, gin.H{"balance": nil})
		return
	}
	respondSuccess(c, h.balanceView(c, st, balance))
}

// balanceView renders a balance with its fiat equivalent when a settlement
// currency is selected. The conversion uses a single-unit rate so it tracks
// the processor's pricing rather than the session's order quote.
func (h *OffRampHandler) balanceView(c *gin.Context, st offramp.SessionState, balance offramp.Balance) gin.H {
	view := gin.H{"balance": balance.Value, "fetchedAt": balance.FetchedAt}
	if st.Fiat == "" {
		return view
	}
	rate, err := h.resolver.UnitRate(c.Request.Context(), st.Token, st.Fiat, st.Chain)
	if err != nil {
		h.logger.Warn("Unit rate unavailable for balance display",
			"fiat", st.Fiat, "error", err.Error())
		return view
	}
	view["fiatValue"] = balance.Value.Mul(rate).StringFixed(2)
	view["fiatCurrency"] = st.Fiat
	return view
}

// GasStatus reports the gas-abstraction state for the session's wallet and
// network.
func (h *OffRampHandler) GasStatus(c *gin.Context) {
	session, ok := h.requireSession(c)
	if !ok {
		return
	}
	st := session.Snapshot()
	state := h.initializer.State(st.Wallet.Address, st.Chain)
	respondSuccess(c, gin.H{"state": state.String()})
}

// Submit executes the withdrawal.
func (h *OffRampHandler) Submit(c *gin.Context) {
	session, ok := h.requireSession(c)
	if !ok {
		return
	}

	receipt, err := h.service.Submit(c.Request.Context(), session)
	if err != nil {
		h.respondSubmitError(c, err)
		return
	}

	h.sessions.Delete(session.MerchantID)
	respondSuccess(c, receipt)
}

// Withdrawals lists the merchant's withdrawal history.
func (h *OffRampHandler) Withdrawals(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		respondUnauthorized(c, "Authentication required")
		return
	}

	records, err := h.withdrawals.ListByMerchant(c.Request.Context(), merchantID, 50)
	if err != nil {
		h.logger.Error("Failed to list withdrawals", "error", err.Error())
		respondInternalError(c, "Could not load withdrawal history")
		return
	}
	respondSuccess(c, gin.H{"withdrawals": records})
}

func (h *OffRampHandler) requireSession(c *gin.Context) (*offramp.Session, bool) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		respondUnauthorized(c, "Authentication required")
		return nil, false
	}
	session, err := h.sessions.Get(merchantID)
	if err != nil {
		respondNotFound(c, offramp.ErrSessionNotFound.Error())
		return nil, false
	}
	return session, true
}

func (h *OffRampHandler) signAuth(w *entities.WalletContext) offramp.SignAuthorizationFunc {
	if h.signAuthFor == nil || w == nil || !w.HasProviderHandle {
		return nil
	}
	return h.signAuthFor(w.Address)
}

func (h *OffRampHandler) sessionView(session *offramp.Session) gin.H {
	st := session.Snapshot()
	view := gin.H{
		"id":                st.ID,
		"wallet":            st.Wallet.Address,
		"custody":           st.Wallet.Category.String(),
		"amount":            st.Amount,
		"token":             st.Token,
		"chain":             st.Chain,
		"fiat":              st.Fiat,
		"institution":       st.Institution,
		"accountIdentifier": st.AccountIdentifier,
		"memo":              st.Memo,
		"verified":          st.Verification.Verified,
		"accountName":       st.Verification.AccountName,
		"gasState":          h.initializer.State(st.Wallet.Address, st.Chain).String(),
	}
	if st.HasRate() {
		view["rate"] = st.Rate
		if amount, err := decimal.NewFromString(st.Amount); err == nil {
			quote := offramp.NewQuote(amount, st.Rate, st.Token, st.Chain,
				offramp.AbstractionEligible(st.Wallet, st.Chain, st.Token))
			view["netReceive"] = quote.NetReceiveDisplay()
			view["gasFee"] = quote.GasFee
			view["gasFeeCurrency"] = quote.GasFeeCurrency
		}
	}
	return view
}

func (h *OffRampHandler) respondSubmitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, offramp.ErrNotAuthenticated):
		respondUnauthorized(c, err.Error())
	case errors.Is(err, offramp.ErrWalletNotConnected),
		errors.Is(err, offramp.ErrAccountNotVerified),
		errors.Is(err, offramp.ErrRateNotFetched),
		errors.Is(err, offramp.ErrInvalidAmount),
		errors.Is(err, offramp.ErrTokenUnsupported),
		errors.Is(err, offramp.ErrInsufficientBalance):
		respondUnprocessable(c, err.Error())
	case errors.Is(err, offramp.ErrGasSetupInProgress):
		respondConflict(c, err.Error())
	default:
		h.logger.Error("Withdrawal submission failed", "error", err.Error())
		respondError(c, http.StatusBadGateway, "SUBMISSION_FAILED", err.Error())
	}
}
