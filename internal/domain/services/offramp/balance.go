package offramp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/entities"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
	"github.com/NEDA-LABS/nedapay-service/pkg/metrics"
)

// Balance is one committed balance reading.
type Balance struct {
	Value     decimal.Decimal
	FetchedAt time.Time
}

type balanceEntry struct {
	balance   Balance
	committed uint64
}

// BalanceTracker caches wallet token balances keyed by
// (wallet, chain, token). Concurrent refreshes for the same key resolve by
// start order: the latest-started fetch wins, and a completion from an
// earlier fetch that lands afterwards is discarded.
type BalanceTracker struct {
	source BalanceSource
	logger *logger.Logger

	mu      sync.Mutex
	entries map[string]*balanceEntry
	nextGen map[string]uint64
}

// NewBalanceTracker creates a tracker over the given source.
func NewBalanceTracker(source BalanceSource, logger *logger.Logger) *BalanceTracker {
	return &BalanceTracker{
		source:  source,
		logger:  logger,
		entries: make(map[string]*balanceEntry),
		nextGen: make(map[string]uint64),
	}
}

func balanceKey(wallet string, chain entities.Chain, token entities.Token) string {
	return strings.ToLower(wallet) + "|" + string(chain) + "|" + string(token)
}

// Refresh fetches the balance for the key and commits it unless a fetch
// started later has already committed.
func (t *BalanceTracker) Refresh(ctx context.Context, wallet string, chain entities.Chain, token entities.Token) (Balance, error) {
	key := balanceKey(wallet, chain, token)

	t.mu.Lock()
	t.nextGen[key]++
	gen := t.nextGen[key]
	t.mu.Unlock()

	value, err := t.source.FetchBalance(ctx, chain, token, wallet)
	if err != nil {
		metrics.BalanceFetchTotal.WithLabelValues("error").Inc()
		return Balance{}, fmt.Errorf("balance fetch failed: %w", err)
	}

	balance := Balance{Value: value, FetchedAt: time.Now().UTC()}

	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[key]
	if !ok {
		entry = &balanceEntry{}
		t.entries[key] = entry
	}
	if gen < entry.committed {
		// A later-started fetch already landed; this reading is stale.
		metrics.BalanceFetchTotal.WithLabelValues("stale").Inc()
		return entry.balance, nil
	}
	entry.balance = balance
	entry.committed = gen
	metrics.BalanceFetchTotal.WithLabelValues("ok").Inc()
	return balance, nil
}

// Get returns the last committed balance for the key, if any.
func (t *BalanceTracker) Get(wallet string, chain entities.Chain, token entities.Token) (Balance, bool) {
	key := balanceKey(wallet, chain, token)
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[key]
	if !ok || entry.committed == 0 {
		return Balance{}, false
	}
	return entry.balance, true
}

// Invalidate drops the committed reading for the key, forcing the next
// lookup through a refresh.
func (t *BalanceTracker) Invalidate(wallet string, chain entities.Chain, token entities.Token) {
	key := balanceKey(wallet, chain, token)
	t.mu.Lock()
	delete(t.entries, key)
	t.mu.Unlock()
}
