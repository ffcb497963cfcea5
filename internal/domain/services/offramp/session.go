package offramp

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/entities"
)

// Session is one merchant's in-progress withdrawal. All field changes go
// through the setters, which enforce the invalidation rules: editing the
// amount or fiat clears the quoted rate, and editing either account detail
// resets verification.
type Session struct {
	mu sync.Mutex

	ID         uuid.UUID
	MerchantID uuid.UUID
	Wallet     *entities.WalletContext

	amount            string
	token             entities.Token
	chain             entities.Chain
	fiat              string
	institution       string
	accountIdentifier string
	accountName       string
	memo              string

	rate         decimal.Decimal
	verification entities.AccountVerification

	createdAt  time.Time
	lastActive time.Time
}

// NewSession opens a withdrawal session for a merchant.
func NewSession(merchantID uuid.UUID, wallet *entities.WalletContext) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:         uuid.New(),
		MerchantID: merchantID,
		Wallet:     wallet,
		createdAt:  now,
		lastActive: now,
	}
}

func (s *Session) touch() {
	s.lastActive = time.Now().UTC()
}

// SetAmount updates the withdrawal amount. Any quoted rate is stale once the
// amount changes, so it is cleared.
func (s *Session) SetAmount(amount string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.amount == amount {
		return
	}
	s.amount = amount
	s.rate = decimal.Zero
	s.touch()
}

// SetToken updates the token and clears the quoted rate.
func (s *Session) SetToken(token entities.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == token {
		return
	}
	s.token = token
	s.rate = decimal.Zero
	s.touch()
}

// SetChain updates the network and clears the quoted rate.
func (s *Session) SetChain(chain entities.Chain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chain == chain {
		return
	}
	s.chain = chain
	s.rate = decimal.Zero
	s.touch()
}

// SetFiat updates the settlement currency. The rate, the chosen institution
// and any verification are all scoped to the currency, so all three reset.
func (s *Session) SetFiat(fiat string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fiat == fiat {
		return
	}
	s.fiat = fiat
	s.rate = decimal.Zero
	s.institution = ""
	s.verification = entities.AccountVerification{}
	s.touch()
}

// SetInstitution updates the settlement institution. Verification is scoped
// to the (institution, accountIdentifier) pair and resets on any edit.
func (s *Session) SetInstitution(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.institution == code {
		return
	}
	s.institution = code
	s.verification = entities.AccountVerification{}
	s.touch()
}

// SetAccountIdentifier updates the destination account and resets
// verification.
func (s *Session) SetAccountIdentifier(identifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accountIdentifier == identifier {
		return
	}
	s.accountIdentifier = identifier
	s.verification = entities.AccountVerification{}
	s.touch()
}

// SetMemo updates the optional transfer memo.
func (s *Session) SetMemo(memo string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memo = memo
	s.touch()
}

// SetRate records a freshly quoted rate for the current form state.
func (s *Session) SetRate(rate decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = rate
	s.touch()
}

// SetVerification records the result of verifying the current account
// details.
func (s *Session) SetVerification(v entities.AccountVerification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verification = v
	if v.Verified {
		s.accountName = v.AccountName
	}
	s.touch()
}

// Snapshot returns a consistent copy of the session's form state.
func (s *Session) Snapshot() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionState{
		ID:                s.ID,
		MerchantID:        s.MerchantID,
		Wallet:            s.Wallet,
		Amount:            s.amount,
		Token:             s.token,
		Chain:             s.chain,
		Fiat:              s.fiat,
		Institution:       s.institution,
		AccountIdentifier: s.accountIdentifier,
		AccountName:       s.accountName,
		Memo:              s.memo,
		Rate:              s.rate,
		Verification:      s.verification,
		LastActive:        s.lastActive,
	}
}

// SessionState is an immutable view of a session at one point in time.
type SessionState struct {
	ID                uuid.UUID
	MerchantID        uuid.UUID
	Wallet            *entities.WalletContext
	Amount            string
	Token             entities.Token
	Chain             entities.Chain
	Fiat              string
	Institution       string
	AccountIdentifier string
	AccountName       string
	Memo              string
	Rate              decimal.Decimal
	Verification      entities.AccountVerification
	LastActive        time.Time
}

// HasRate reports whether a usable rate is quoted for the current state.
func (st SessionState) HasRate() bool {
	return st.Rate.GreaterThan(decimal.Zero)
}

// SessionStore holds active withdrawal sessions in memory, one per merchant.
// Expired sessions are purged by the reaper worker.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	ttl      time.Duration
}

// NewSessionStore creates a store with the given idle TTL.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[uuid.UUID]*Session),
		ttl:      ttl,
	}
}

// Open creates (or replaces) the merchant's withdrawal session.
func (st *SessionStore) Open(merchantID uuid.UUID, wallet *entities.WalletContext) *Session {
	session := NewSession(merchantID, wallet)
	st.mu.Lock()
	st.sessions[merchantID] = session
	st.mu.Unlock()
	return session
}

// Get returns the merchant's active session, refusing expired ones.
func (st *SessionStore) Get(merchantID uuid.UUID) (*Session, error) {
	st.mu.RLock()
	session, ok := st.sessions[merchantID]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	session.mu.Lock()
	expired := time.Since(session.lastActive) > st.ttl
	session.mu.Unlock()
	if expired {
		st.Delete(merchantID)
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Delete removes the merchant's session.
func (st *SessionStore) Delete(merchantID uuid.UUID) {
	st.mu.Lock()
	delete(st.sessions, merchantID)
	st.mu.Unlock()
}

// PurgeExpired drops every session idle past the TTL and returns how many
// were removed.
func (st *SessionStore) PurgeExpired() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	purged := 0
	for id, session := range st.sessions {
		session.mu.Lock()
		expired := time.Since(session.lastActive) > st.ttl
		session.mu.Unlock()
		if expired {
			delete(st.sessions, id)
			purged++
		}
	}
	return purged
}

// Len reports the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
