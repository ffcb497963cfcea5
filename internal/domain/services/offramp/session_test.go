package offramp

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/entities"
)

func quotedSession(t *testing.T) *Session {
	t.Helper()
	session := NewSession(uuid.New(), &entities.WalletContext{Address: "0xabc"})
	session.SetAmount("100")
	session.SetToken(entities.TokenUSDC)
	session.SetChain(entities.ChainBase)
	session.SetFiat("NGN")
	session.SetInstitution("GTB")
	session.SetAccountIdentifier("0123456789")
	session.SetVerification(entities.AccountVerification{Verified: true, AccountName: "ADA OBI"})
	session.SetRate(decimal.RequireFromString("1545.5"))
	return session
}

func TestSessionAmountEditClearsRate(t *testing.T) {
	session := quotedSession(t)

	session.SetAmount("250")

	state := session.Snapshot()
	assert.False(t, state.HasRate())
	assert.True(t, state.Verification.Verified, "verification survives amount edits")
}

func TestSessionTokenAndChainEditsClearRate(t *testing.T) {
	session := quotedSession(t)
	session.SetToken(entities.TokenUSDT)
	assert.False(t, session.Snapshot().HasRate())

	session = quotedSession(t)
	session.SetChain(entities.ChainPolygon)
	assert.False(t, session.Snapshot().HasRate())
}

func TestSessionFiatEditResetsEverythingScoped(t *testing.T) {
	session := quotedSession(t)

	session.SetFiat("KES")

	state := session.Snapshot()
	assert.False(t, state.HasRate())
	assert.Empty(t, state.Institution)
	assert.False(t, state.Verification.Verified)
}

func TestSessionAccountEditsResetVerification(t *testing.T) {
	session := quotedSession(t)
	session.SetInstitution("ZEN")
	assert.False(t, session.Snapshot().Verification.Verified)

	session = quotedSession(t)
	session.SetAccountIdentifier("9876543210")
	assert.False(t, session.Snapshot().Verification.Verified)
}

func TestSessionNoOpEditsKeepState(t *testing.T) {
	session := quotedSession(t)

	// Setting the same values again is not an edit.
	session.SetAmount("100")
	session.SetFiat("NGN")
	session.SetInstitution("GTB")

	state := session.Snapshot()
	assert.True(t, state.HasRate())
	assert.True(t, state.Verification.Verified)
}

func TestSessionStoreOnePerMerchant(t *testing.T) {
	store := NewSessionStore(time.Minute)
	merchantID := uuid.New()

	first := store.Open(merchantID, nil)
	second := store.Open(merchantID, nil)
	require.NotEqual(t, first.ID, second.ID)

	got, err := store.Get(merchantID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, 1, store.Len())
}

func TestSessionStoreExpiry(t *testing.T) {
	store := NewSessionStore(10 * time.Millisecond)
	merchantID := uuid.New()
	store.Open(merchantID, nil)

	time.Sleep(25 * time.Millisecond)

	_, err := store.Get(merchantID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestSessionStorePurgeExpired(t *testing.T) {
	store := NewSessionStore(10 * time.Millisecond)
	store.Open(uuid.New(), nil)
	store.Open(uuid.New(), nil)
	time.Sleep(25 * time.Millisecond)
	fresh := store.Open(uuid.New(), nil)

	purged := store.PurgeExpired()

	assert.Equal(t, 2, purged)
	got, err := store.Get(fresh.MerchantID)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, got.ID)
}
