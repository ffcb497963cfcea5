package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorResponse is the error envelope every endpoint returns.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func getMerchantID(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get("merchant_id")
	if !exists {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	return id, ok
}

func getRequestID(c *gin.Context) string {
	if reqID, exists := c.Get("request_id"); exists {
		if id, ok := reqID.(string); ok {
			return id
		}
	}
	return ""
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: getRequestID(c),
	})
}

func respondUnauthorized(c *gin.Context, message string) {
	respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func respondBadRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, "INVALID_REQUEST", message)
}

func respondUnprocessable(c *gin.Context, message string) {
	respondError(c, http.StatusUnprocessableEntity, "PRECONDITION_FAILED", message)
}

func respondNotFound(c *gin.Context, message string) {
	respondError(c, http.StatusNotFound, "NOT_FOUND", message)
}

func respondConflict(c *gin.Context, message string) {
	respondError(c, http.StatusConflict, "CONFLICT", message)
}

func respondInternalError(c *gin.Context, message string) {
	respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", message)
}

func respondSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}
