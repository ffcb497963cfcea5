// Package authsession keeps per-login session flags in Redis: one-time
// dashboard states such as whether the funding notice was dismissed. Flags
// live exactly as long as the login session and are stored explicitly, not
// in ambient browser storage.
package authsession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/NEDA-LABS/nedapay-service/internal/infrastructure/cache"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

// Known flag names.
const (
	FlagFundingNoticeDismissed = "funding_notice_dismissed"
	FlagOffRampIntroSeen       = "offramp_intro_seen"
	FlagChainSwitchPrompted    = "chain_switch_prompted"
)

// Service stores session-scoped flags keyed by (merchant, session).
type Service struct {
	cache  cache.RedisClient
	ttl    time.Duration
	logger *logger.Logger
}

// NewService creates the flag store. ttl bounds flag lifetime to the login
// session's.
func NewService(cacheClient cache.RedisClient, ttl time.Duration, logger *logger.Logger) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{cache: cacheClient, ttl: ttl, logger: logger}
}

func flagKey(merchantID uuid.UUID, sessionID, flag string) string {
	return fmt.Sprintf("authsession:%s:%s:%s", merchantID, sessionID, flag)
}

// SetFlag records a flag for the session.
func (s *Service) SetFlag(ctx context.Context, merchantID uuid.UUID, sessionID, flag string, value bool) error {
	return s.cache.Set(ctx, flagKey(merchantID, sessionID, flag), value, s.ttl)
}

// GetFlag reads a flag. Unset flags read as false.
func (s *Service) GetFlag(ctx context.Context, merchantID uuid.UUID, sessionID, flag string) (bool, error) {
	var value bool
	err := s.cache.Get(ctx, flagKey(merchantID, sessionID, flag), &value)
	if errors.Is(err, cache.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value, nil
}

// ClearSession drops every flag for the session, used at logout.
func (s *Service) ClearSession(ctx context.Context, merchantID uuid.UUID, sessionID string) error {
	pattern := fmt.Sprintf("authsession:%s:%s:*", merchantID, sessionID)
	keys, err := s.cache.Keys(ctx, pattern)
	if err != nil {
		return fmt.Errorf("failed to list session flags: %w", err)
	}
	for _, key := range keys {
		if err := s.cache.Del(ctx, key); err != nil {
			s.logger.Warn("Failed to delete session flag", "key", key, "error", err.Error())
		}
	}
	return nil
}
