package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/entities"
	"github.com/NEDA-LABS/nedapay-service/internal/domain/services/offramp"
	"github.com/NEDA-LABS/nedapay-service/internal/domain/services/wallet"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

type stubProcessor struct {
	rate         decimal.Decimal
	institutions []entities.Institution
	accountName  string
	order        *entities.SettlementOrder
}

func (p *stubProcessor) FetchRate(ctx context.Context, token entities.Token, amount decimal.Decimal, fiat, network string) (decimal.Decimal, error) {
	return p.rate, nil
}

func (p *stubProcessor) SupportedCurrencies(ctx context.Context) ([]entities.Currency, error) {
	return []entities.Currency{{Code: "NGN", Name: "Nigerian Naira"}}, nil
}

func (p *stubProcessor) SupportedInstitutions(ctx context.Context, fiat string) ([]entities.Institution, error) {
	return p.institutions, nil
}

func (p *stubProcessor) VerifyAccount(ctx context.Context, institutionCode, accountIdentifier string) (string, error) {
	return p.accountName, nil
}

func (p *stubProcessor) CreateOrder(ctx context.Context, req *entities.OrderRequest) (*entities.SettlementOrder, error) {
	return p.order, nil
}

type stubBalanceSource struct{ balance decimal.Decimal }

func (s *stubBalanceSource) FetchBalance(ctx context.Context, chain entities.Chain, token entities.Token, owner string) (decimal.Decimal, error) {
	return s.balance, nil
}

type stubExecutor struct{ err error }

func (e *stubExecutor) Transfer(ctx context.Context, chain entities.Chain, token entities.Token, from, to string, amount *big.Int) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return "0xdirect", nil
}

type stubGasProvider struct{}

func (p *stubGasProvider) InitializeEmbedded(ctx context.Context, walletAddress string, chainID int64, signAuth offramp.SignAuthorizationFunc) (offramp.GasSession, error) {
	return nil, offramp.ErrCustodyNotAbstractable
}

func (p *stubGasProvider) InitializeExternal(ctx context.Context, walletAddress string, chainID int64) (offramp.GasSession, error) {
	return nil, offramp.ErrCustodyNotAbstractable
}

type stubAuth struct{ user *entities.AuthUser }

func (a *stubAuth) GetUser(ctx context.Context, userID string) (*entities.AuthUser, error) {
	return a.user, nil
}

type handlerFixture struct {
	router     *gin.Engine
	sessions   *offramp.SessionStore
	merchantID uuid.UUID
	processor  *stubProcessor
	executor   *stubExecutor
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()

	processor := &stubProcessor{
		rate:        decimal.RequireFromString("1545.5"),
		accountName: "ADA OBI",
		order: &entities.SettlementOrder{
			ReceiveAddress: "0x0000000000000000000000000000000000000002",
			Amount:         decimal.RequireFromString("100"),
			Reference:      "ord-123",
			ValidUntil:     time.Now().Add(30 * time.Minute),
		},
	}

	sessions := offramp.NewSessionStore(time.Minute)
	balances := offramp.NewBalanceTracker(&stubBalanceSource{balance: decimal.RequireFromString("500")}, log)
	initializer := offramp.NewInitializer(&stubGasProvider{}, time.Minute, log)
	resolver := offramp.NewResolver(processor, nil, 0, log)
	executor := &stubExecutor{}
	service := offramp.NewService(processor, balances, initializer, executor, nil, log)

	auth := &stubAuth{user: &entities.AuthUser{
		ID: "did:privy:merchant",
		Wallets: []entities.WalletContext{
			// Coinbase custody keeps gas abstraction out of these tests.
			{Address: "0xwallet", Category: entities.CustodyExternalCoinbase},
		},
	}}
	wallets := wallet.NewService(auth, nil, log)

	handler := NewOffRampHandler(sessions, resolver, service, balances, initializer, wallets, nil, nil, log)

	merchantID := uuid.New()
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("merchant_id", merchantID)
	})
	router.POST("/offramp/session", handler.OpenSession)
	router.GET("/offramp/session", handler.GetSession)
	router.PATCH("/offramp/session", handler.UpdateSession)
	router.GET("/offramp/institutions", handler.Institutions)
	router.POST("/offramp/rate", handler.FetchRate)
	router.POST("/offramp/verify-account", handler.VerifyAccount)
	router.GET("/offramp/balance", handler.Balance)
	router.GET("/offramp/gas-status", handler.GasStatus)
	router.POST("/offramp/submit", handler.Submit)

	return &handlerFixture{
		router:     router,
		sessions:   sessions,
		merchantID: merchantID,
		processor:  processor,
		executor:   executor,
	}
}

func (f *handlerFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	return resp
}

func (f *handlerFixture) openSession(t *testing.T) map[string]interface{} {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/offramp/session", gin.H{"providerUserId": "did:privy:merchant"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var view map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &view))
	return view
}

func TestOpenSessionDefaults(t *testing.T) {
	f := newHandlerFixture(t)

	view := f.openSession(t)

	assert.Equal(t, "0xwallet", view["wallet"])
	assert.Equal(t, "BASE", view["chain"])
	assert.Equal(t, "USDC", view["token"])
	assert.Equal(t, "uninitialized", view["gasState"])
}

func TestOpenSessionRequiresProviderUserID(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.do(t, http.MethodPost, "/offramp/session", gin.H{})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetSessionWithoutOneIs404(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.do(t, http.MethodGet, "/offramp/session", nil)

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestUpdateSessionPatchSemantics(t *testing.T) {
	f := newHandlerFixture(t)
	f.openSession(t)

	resp := f.do(t, http.MethodPatch, "/offramp/session", gin.H{"amount": "100", "fiat": "NGN"})
	require.Equal(t, http.StatusOK, resp.Code)

	var view map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &view))
	assert.Equal(t, "100", view["amount"])
	assert.Equal(t, "NGN", view["fiat"])
	assert.Equal(t, "USDC", view["token"], "omitted fields are untouched")
}

func TestUpdateSessionRejectsUnknownToken(t *testing.T) {
	f := newHandlerFixture(t)
	f.openSession(t)

	resp := f.do(t, http.MethodPatch, "/offramp/session", gin.H{"token": "DOGE"})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestInstitutionsRequiresFiat(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.do(t, http.MethodGet, "/offramp/institutions", nil)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestFetchRateStoresQuote(t *testing.T) {
	f := newHandlerFixture(t)
	f.openSession(t)
	f.do(t, http.MethodPatch, "/offramp/session", gin.H{"amount": "100", "fiat": "NGN"})

	resp := f.do(t, http.MethodPost, "/offramp/rate", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var quote map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &quote))
	// net = (100 - 0.5) * 1545.5
	assert.Equal(t, "153777.25", quote["netReceive"])
}

func TestFetchRateIncludesGasEstimate(t *testing.T) {
	f := newHandlerFixture(t)
	f.openSession(t)
	f.do(t, http.MethodPatch, "/offramp/session", gin.H{"amount": "100", "fiat": "NGN"})

	resp := f.do(t, http.MethodPost, "/offramp/rate", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var quote map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &quote))
	// Coinbase custody never uses abstraction, so the fee is quoted in the
	// chain's native currency.
	assert.Equal(t, "ETH", quote["gasFeeCurrency"])
	assert.Equal(t, "0.0001", quote["gasFee"])
}

func TestBalanceIncludesFiatEquivalent(t *testing.T) {
	f := newHandlerFixture(t)
	f.openSession(t)
	f.do(t, http.MethodPatch, "/offramp/session", gin.H{"fiat": "NGN"})

	resp := f.do(t, http.MethodGet, "/offramp/balance?refresh=true", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var view map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &view))
	assert.Equal(t, "500", view["balance"])
	// 500 USDC at the 1545.5 unit rate.
	assert.Equal(t, "772750.00", view["fiatValue"])
	assert.Equal(t, "NGN", view["fiatCurrency"])
}

func TestBalanceWithoutFiatOmitsEquivalent(t *testing.T) {
	f := newHandlerFixture(t)
	f.openSession(t)

	resp := f.do(t, http.MethodGet, "/offramp/balance?refresh=true", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var view map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &view))
	assert.Equal(t, "500", view["balance"])
	assert.NotContains(t, view, "fiatValue")
}

func TestFetchRateRequiresAmount(t *testing.T) {
	f := newHandlerFixture(t)
	f.openSession(t)

	resp := f.do(t, http.MethodPost, "/offramp/rate", nil)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSubmitFlow(t *testing.T) {
	f := newHandlerFixture(t)
	f.openSession(t)
	f.do(t, http.MethodPatch, "/offramp/session", gin.H{
		"amount":            "100",
		"fiat":              "NGN",
		"institution":       "GTB",
		"accountIdentifier": "0123456789",
	})

	// Submitting before verification surfaces the earliest unmet step.
	resp := f.do(t, http.MethodPost, "/offramp/submit", nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	var errBody ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &errBody))
	assert.Equal(t, "Please verify account first", errBody.Message)

	resp = f.do(t, http.MethodPost, "/offramp/verify-account", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	// Verification passed but the rate is still missing.
	resp = f.do(t, http.MethodPost, "/offramp/submit", nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &errBody))
	assert.Equal(t, "Please fetch exchange rate first", errBody.Message)

	resp = f.do(t, http.MethodPost, "/offramp/rate", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = f.do(t, http.MethodPost, "/offramp/submit", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var receipt map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &receipt))
	assert.Equal(t, "ord-123", receipt["reference"])

	// A completed withdrawal closes the session.
	resp = f.do(t, http.MethodGet, "/offramp/session", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestSubmitSurfacesTransferFailure(t *testing.T) {
	f := newHandlerFixture(t)
	f.openSession(t)
	f.do(t, http.MethodPatch, "/offramp/session", gin.H{
		"amount":            "100",
		"fiat":              "NGN",
		"institution":       "GTB",
		"accountIdentifier": "0123456789",
	})
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/offramp/verify-account", nil).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/offramp/rate", nil).Code)

	f.executor.err = errors.New("nonce too low")
	resp := f.do(t, http.MethodPost, "/offramp/submit", nil)

	require.Equal(t, http.StatusBadGateway, resp.Code)
	var errBody ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &errBody))
	assert.Equal(t, "SUBMISSION_FAILED", errBody.Code)
	assert.Contains(t, errBody.Message, "token transfer failed")
	assert.Contains(t, errBody.Message, "nonce too low")
}
