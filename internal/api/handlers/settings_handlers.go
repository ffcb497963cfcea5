package handlers

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/services/settings"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

// SettingsHandler serves merchant settings, API key and 2FA endpoints.
type SettingsHandler struct {
	settings *settings.Service
	logger   *logger.Logger
}

// NewSettingsHandler creates the settings handler.
func NewSettingsHandler(service *settings.Service, logger *logger.Logger) *SettingsHandler {
	return &SettingsHandler{settings: service, logger: logger}
}

// Get returns the merchant's settings.
func (h *SettingsHandler) Get(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		respondUnauthorized(c, "Authentication required")
		return
	}
	result, err := h.settings.Get(c.Request.Context(), merchantID)
	if err != nil {
		h.logger.Error("Failed to load settings", "error", err.Error())
		respondInternalError(c, "Could not load settings")
		return
	}
	respondSuccess(c, result)
}

// Update writes the merchant's profile settings.
func (h *SettingsHandler) Update(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		respondUnauthorized(c, "Authentication required")
		return
	}

	var req settings.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	result, err := h.settings.Update(c.Request.Context(), merchantID, req)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	respondSuccess(c, result)
}

type twoFactorBeginRequest struct {
	AccountName string `json:"accountName" binding:"required"`
}

// BeginTwoFactor starts 2FA enrollment.
func (h *SettingsHandler) BeginTwoFactor(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		respondUnauthorized(c, "Authentication required")
		return
	}

	var req twoFactorBeginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "accountName is required")
		return
	}

	setup, err := h.settings.BeginTwoFactor(c.Request.Context(), merchantID, req.AccountName)
	if errors.Is(err, settings.ErrTwoFactorAlreadyEnabled) {
		respondConflict(c, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("2FA setup failed", "error", err.Error())
		respondInternalError(c, "Could not start two-factor setup")
		return
	}
	respondSuccess(c, setup)
}

type twoFactorCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// EnableTwoFactor completes enrollment with a valid code.
func (h *SettingsHandler) EnableTwoFactor(c *gin.Context) {
	h.twoFactorAction(c, h.settings.EnableTwoFactor)
}

// DisableTwoFactor turns 2FA off with a valid code.
func (h *SettingsHandler) DisableTwoFactor(c *gin.Context) {
	h.twoFactorAction(c, h.settings.DisableTwoFactor)
}

func (h *SettingsHandler) twoFactorAction(c *gin.Context, action func(ctx context.Context, merchantID uuid.UUID, code string) error) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		respondUnauthorized(c, "Authentication required")
		return
	}

	var req twoFactorCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "code is required")
		return
	}

	err := action(c.Request.Context(), merchantID, req.Code)
	if errors.Is(err, settings.ErrInvalidTOTPCode) {
		respondUnprocessable(c, err.Error())
		return
	}
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	respondSuccess(c, gin.H{"ok": true})
}

// IssueAPIKey mints a new API key; the secret appears in this response only.
func (h *SettingsHandler) IssueAPIKey(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		respondUnauthorized(c, "Authentication required")
		return
	}

	var req struct {
		Label string `json:"label" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "label is required")
		return
	}

	key, err := h.settings.IssueAPIKey(c.Request.Context(), merchantID, req.Label)
	if err != nil {
		h.logger.Error("API key issuance failed", "error", err.Error())
		respondInternalError(c, "Could not issue API key")
		return
	}
	respondCreated(c, key)
}

// ListAPIKeys lists the merchant's API keys.
func (h *SettingsHandler) ListAPIKeys(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		respondUnauthorized(c, "Authentication required")
		return
	}
	keys, err := h.settings.ListAPIKeys(c.Request.Context(), merchantID)
	if err != nil {
		h.logger.Error("Failed to list API keys", "error", err.Error())
		respondInternalError(c, "Could not load API keys")
		return
	}
	respondSuccess(c, gin.H{"keys": keys})
}

// RevokeAPIKey revokes one of the merchant's keys.
func (h *SettingsHandler) RevokeAPIKey(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		respondUnauthorized(c, "Authentication required")
		return
	}
	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "Invalid key id")
		return
	}
	if err := h.settings.RevokeAPIKey(c.Request.Context(), merchantID, keyID); err != nil {
		respondNotFound(c, "API key not found")
		return
	}
	respondSuccess(c, gin.H{"revoked": true})
}
