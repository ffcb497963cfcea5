package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/services/wallet"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

// WalletHandler serves wallet identity endpoints.
type WalletHandler struct {
	wallets *wallet.Service
	logger  *logger.Logger
}

// NewWalletHandler creates the wallet handler.
func NewWalletHandler(wallets *wallet.Service, logger *logger.Logger) *WalletHandler {
	return &WalletHandler{wallets: wallets, logger: logger}
}

// ActiveWallet resolves the merchant's active wallet and its display
// identity.
func (h *WalletHandler) ActiveWallet(c *gin.Context) {
	userID := c.Query("providerUserId")
	if userID == "" {
		respondBadRequest(c, "providerUserId query parameter is required")
		return
	}

	activeWallet, err := h.wallets.ActiveWallet(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to resolve active wallet", "error", err.Error())
		respondInternalError(c, "Could not resolve wallet")
		return
	}
	if activeWallet == nil {
		respondNotFound(c, "No wallet linked to this account")
		return
	}

	identity := h.wallets.Identity(c.Request.Context(), activeWallet)
	respondSuccess(c, gin.H{
		"wallet":   identity,
		"canSwitchChain": activeWallet.CanSwitchChain,
	})
}

// LinkedAccounts lists every account linked to the merchant's login.
func (h *WalletHandler) LinkedAccounts(c *gin.Context) {
	userID := c.Query("providerUserId")
	if userID == "" {
		respondBadRequest(c, "providerUserId query parameter is required")
		return
	}

	accounts, err := h.wallets.LinkedAccounts(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list linked accounts", "error", err.Error())
		respondInternalError(c, "Could not load linked accounts")
		return
	}
	respondSuccess(c, gin.H{"accounts": accounts})
}
