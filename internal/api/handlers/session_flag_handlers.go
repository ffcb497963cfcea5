package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/services/authsession"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

// SessionFlagHandler serves login-session flag endpoints.
type SessionFlagHandler struct {
	flags  *authsession.Service
	logger *logger.Logger
}

// NewSessionFlagHandler creates the session flag handler.
func NewSessionFlagHandler(flags *authsession.Service, logger *logger.Logger) *SessionFlagHandler {
	return &SessionFlagHandler{flags: flags, logger: logger}
}

// GetFlag reads a session flag. Unset flags read as false.
func (h *SessionFlagHandler) GetFlag(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		respondUnauthorized(c, "Authentication required")
		return
	}
	sessionID := c.GetString("session_id")
	flag := c.Param("flag")

	value, err := h.flags.GetFlag(c.Request.Context(), merchantID, sessionID, flag)
	if err != nil {
		h.logger.Error("Failed to read session flag", "flag", flag, "error", err.Error())
		respondInternalError(c, "Could not read session flag")
		return
	}
	respondSuccess(c, gin.H{"flag": flag, "value": value})
}

// SetFlag writes a session flag.
func (h *SessionFlagHandler) SetFlag(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		respondUnauthorized(c, "Authentication required")
		return
	}
	sessionID := c.GetString("session_id")
	flag := c.Param("flag")

	var req struct {
		Value bool `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	if err := h.flags.SetFlag(c.Request.Context(), merchantID, sessionID, flag, req.Value); err != nil {
		h.logger.Error("Failed to set session flag", "flag", flag, "error", err.Error())
		respondInternalError(c, "Could not set session flag")
		return
	}
	respondSuccess(c, gin.H{"flag": flag, "value": req.Value})
}

// ClearSession drops every flag for the login session, used at logout.
func (h *SessionFlagHandler) ClearSession(c *gin.Context) {
	merchantID, ok := getMerchantID(c)
	if !ok {
		respondUnauthorized(c, "Authentication required")
		return
	}
	sessionID := c.GetString("session_id")

	if err := h.flags.ClearSession(c.Request.Context(), merchantID, sessionID); err != nil {
		h.logger.Error("Failed to clear session flags", "error", err.Error())
		respondInternalError(c, "Could not clear session flags")
		return
	}
	respondSuccess(c, gin.H{"cleared": true})
}
