package offramp

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/entities"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
	"github.com/NEDA-LABS/nedapay-service/pkg/metrics"
)

type initEntry struct {
	state   entities.GasAbstractionState
	session GasSession
	cancel  context.CancelFunc
}

// Initializer drives the gas-abstraction lifecycle per (wallet, chain)
// pairing. Each pairing moves uninitialized -> initializing -> ready or
// failed; a failed pairing stays failed until the wallet is reset. Kicks on
// an already-moving or settled pairing are no-ops.
type Initializer struct {
	provider    GasProvider
	settleDelay time.Duration
	logger      *logger.Logger

	mu      sync.Mutex
	entries map[string]*initEntry
}

// NewInitializer creates an initializer. settleDelay is the pause between a
// kick and the provider call, letting wallet state settle after connect or
// chain switch.
func NewInitializer(provider GasProvider, settleDelay time.Duration, logger *logger.Logger) *Initializer {
	return &Initializer{
		provider:    provider,
		settleDelay: settleDelay,
		logger:      logger,
		entries:     make(map[string]*initEntry),
	}
}

func initKey(wallet string, chain entities.Chain) string {
	return strings.ToLower(wallet) + "|" + string(chain)
}

// State reports the pairing's current lifecycle state.
func (i *Initializer) State(wallet string, chain entities.Chain) entities.GasAbstractionState {
	i.mu.Lock()
	defer i.mu.Unlock()
	if entry, ok := i.entries[initKey(wallet, chain)]; ok {
		return entry.state
	}
	return entities.GasAbstractionUninitialized
}

// Session returns the ready gas session for the pairing, if one exists.
func (i *Initializer) Session(wallet string, chain entities.Chain) (GasSession, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	entry, ok := i.entries[initKey(wallet, chain)]
	if !ok || entry.state != entities.GasAbstractionReady {
		return nil, false
	}
	return entry.session, true
}

// Kick requests initialization for the wallet on the chain. It returns
// immediately; the provider call happens after the settle delay on a
// background goroutine. Kicks are ignored when:
//   - the custody model never uses gas abstraction,
//   - the chain or token set does not support abstraction,
//   - the pairing is already initializing, ready, or failed.
//
// A failed pairing is never retried automatically.
func (i *Initializer) Kick(ctx context.Context, wallet *entities.WalletContext, chain entities.Chain, signAuth SignAuthorizationFunc) {
	if wallet == nil || wallet.Address == "" {
		return
	}
	if !wallet.Category.UsesGasAbstraction() {
		return
	}
	if !chain.SupportsGasAbstraction() {
		return
	}

	key := initKey(wallet.Address, chain)

	i.mu.Lock()
	if entry, ok := i.entries[key]; ok && entry.state != entities.GasAbstractionUninitialized {
		i.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	i.entries[key] = &initEntry{state: entities.GasAbstractionInitializing, cancel: cancel}
	i.mu.Unlock()

	go i.run(runCtx, wallet, chain, key, signAuth)
}

func (i *Initializer) run(ctx context.Context, wallet *entities.WalletContext, chain entities.Chain, key string, signAuth SignAuthorizationFunc) {
	// Let the wallet state settle before touching the provider. A reset
	// during the delay cancels the attempt.
	timer := time.NewTimer(i.settleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	session, err := i.initialize(ctx, wallet, chain, signAuth)

	i.mu.Lock()
	defer i.mu.Unlock()
	entry, ok := i.entries[key]
	if !ok || entry.state != entities.GasAbstractionInitializing {
		return
	}
	if err != nil {
		entry.state = entities.GasAbstractionFailed
		metrics.GasAbstractionInitTotal.WithLabelValues("failed").Inc()
		i.logger.Warn("Gas abstraction initialization failed",
			"wallet", wallet.Address, "network", string(chain), "error", err.Error())
		return
	}
	entry.state = entities.GasAbstractionReady
	entry.session = session
	metrics.GasAbstractionInitTotal.WithLabelValues("ready").Inc()
	i.logger.Info("Gas abstraction ready",
		"wallet", wallet.Address, "network", string(chain), "smart_account", session.SmartAccount())
}

func (i *Initializer) initialize(ctx context.Context, wallet *entities.WalletContext, chain entities.Chain, signAuth SignAuthorizationFunc) (GasSession, error) {
	switch wallet.Category {
	case entities.CustodyEmbedded:
		if !wallet.HasProviderHandle || signAuth == nil {
			return nil, ErrProviderHandleGone
		}
		return i.provider.InitializeEmbedded(ctx, wallet.Address, chain.ID(), signAuth)
	case entities.CustodyExternalStandard:
		return i.provider.InitializeExternal(ctx, wallet.Address, chain.ID())
	case entities.CustodyExternalCoinbase:
		// Unreachable past the Kick guard; kept for exhaustiveness.
		return nil, ErrCustodyNotAbstractable
	default:
		return nil, ErrCustodyNotAbstractable
	}
}

// Reset clears every pairing for the wallet, cancelling in-flight attempts.
// Called when the wallet disconnects or is replaced; this is the only path
// out of the failed state.
func (i *Initializer) Reset(wallet string) {
	prefix := strings.ToLower(wallet) + "|"
	i.mu.Lock()
	defer i.mu.Unlock()
	for key, entry := range i.entries {
		if strings.HasPrefix(key, prefix) {
			if entry.cancel != nil {
				entry.cancel()
			}
			delete(i.entries, key)
		}
	}
}
