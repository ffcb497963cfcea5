package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/NEDA-LABS/nedapay-service/internal/infrastructure/cache"
	"github.com/NEDA-LABS/nedapay-service/internal/infrastructure/database"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	db    *sqlx.DB
	redis cache.RedisClient
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(db *sqlx.DB, redis cache.RedisClient) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// Health reports process liveness.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// Ready reports dependency readiness.
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if err := database.HealthCheck(h.db); err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if err := h.redis.Ping(c.Request.Context()); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	} else {
		checks["redis"] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"checks": checks})
}
