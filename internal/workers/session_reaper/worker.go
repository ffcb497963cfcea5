// Package session_reaper purges idle withdrawal sessions on a schedule.
package session_reaper

import (
	"github.com/robfig/cron/v3"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/services/offramp"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

type Worker struct {
	sessions *offramp.SessionStore
	cron     *cron.Cron
	logger   *logger.Logger
}

func NewWorker(sessions *offramp.SessionStore, logger *logger.Logger) *Worker {
	return &Worker{
		sessions: sessions,
		cron:     cron.New(),
		logger:   logger,
	}
}

func (w *Worker) Start() error {
	// Purge idle withdrawal sessions every five minutes.
	_, err := w.cron.AddFunc("*/5 * * * *", func() {
		purged := w.sessions.PurgeExpired()
		if purged > 0 {
			w.logger.Info("Purged idle withdrawal sessions",
				"purged", purged, "remaining", w.sessions.Len())
		}
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Info("Session reaper started")
	return nil
}

func (w *Worker) Stop() {
	w.cron.Stop()
	w.logger.Info("Session reaper stopped")
}
