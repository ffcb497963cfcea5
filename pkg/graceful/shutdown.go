package graceful

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

// Closer is anything holding resources that must be released on shutdown
// (chain RPC connections, redis, cron runners).
type Closer interface {
	Close() error
}

type ShutdownManager struct {
	server  *http.Server
	db      *sql.DB
	closers []Closer
	logger  *logger.Logger
}

func NewShutdownManager(server *http.Server, db *sql.DB, logger *logger.Logger) *ShutdownManager {
	return &ShutdownManager{
		server:  server,
		db:      db,
		closers: make([]Closer, 0),
		logger:  logger,
	}
}

func (sm *ShutdownManager) Register(c Closer) {
	sm.closers = append(sm.closers, c)
}

// WaitForShutdown blocks until SIGINT/SIGTERM, then drains the HTTP server
// and closes registered resources in reverse registration order.
func (sm *ShutdownManager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sm.logger.Info("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sm.server.Shutdown(ctx); err != nil {
		sm.logger.Error("Server forced shutdown", "error", err)
	}

	for i := len(sm.closers) - 1; i >= 0; i-- {
		if err := sm.closers[i].Close(); err != nil {
			sm.logger.Warn("Component close error", "error", err)
		}
	}

	if sm.db != nil {
		if err := sm.db.Close(); err != nil {
			sm.logger.Warn("Database close error", "error", err)
		}
	}

	sm.logger.Info("Shutdown complete")
}
