package authsession

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NEDA-LABS/nedapay-service/internal/infrastructure/cache"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

// memCache is an in-memory stand-in for the Redis client.
type memCache struct {
	values map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{values: make(map[string][]byte)}
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = data
	return nil
}

func (c *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, ok := c.values[key]
	if !ok {
		return cache.ErrKeyNotFound
	}
	return json.Unmarshal(data, dest)
}

func (c *memCache) Del(ctx context.Context, key string) error {
	delete(c.values, key)
	return nil
}

func (c *memCache) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := c.values[key]
	return ok, nil
}

func (c *memCache) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}

func (c *memCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for key := range c.values {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (c *memCache) Ping(ctx context.Context) error { return nil }
func (c *memCache) Close() error                   { return nil }

func TestFlagsDefaultToFalse(t *testing.T) {
	svc := NewService(newMemCache(), time.Hour, logger.NewNop())

	value, err := svc.GetFlag(context.Background(), uuid.New(), "sess-1", FlagFundingNoticeDismissed)

	require.NoError(t, err)
	assert.False(t, value)
}

func TestSetAndGetFlag(t *testing.T) {
	svc := NewService(newMemCache(), time.Hour, logger.NewNop())
	merchantID := uuid.New()

	require.NoError(t, svc.SetFlag(context.Background(), merchantID, "sess-1", FlagOffRampIntroSeen, true))

	value, err := svc.GetFlag(context.Background(), merchantID, "sess-1", FlagOffRampIntroSeen)
	require.NoError(t, err)
	assert.True(t, value)

	// Flags are scoped to the session, not the merchant.
	value, err = svc.GetFlag(context.Background(), merchantID, "sess-2", FlagOffRampIntroSeen)
	require.NoError(t, err)
	assert.False(t, value)
}

func TestClearSessionDropsOnlyThatSession(t *testing.T) {
	svc := NewService(newMemCache(), time.Hour, logger.NewNop())
	merchantID := uuid.New()
	ctx := context.Background()

	require.NoError(t, svc.SetFlag(ctx, merchantID, "sess-1", FlagFundingNoticeDismissed, true))
	require.NoError(t, svc.SetFlag(ctx, merchantID, "sess-1", FlagChainSwitchPrompted, true))
	require.NoError(t, svc.SetFlag(ctx, merchantID, "sess-2", FlagFundingNoticeDismissed, true))

	require.NoError(t, svc.ClearSession(ctx, merchantID, "sess-1"))

	value, err := svc.GetFlag(ctx, merchantID, "sess-1", FlagFundingNoticeDismissed)
	require.NoError(t, err)
	assert.False(t, value)

	value, err = svc.GetFlag(ctx, merchantID, "sess-2", FlagFundingNoticeDismissed)
	require.NoError(t, err)
	assert.True(t, value, "other sessions keep their flags")
}
