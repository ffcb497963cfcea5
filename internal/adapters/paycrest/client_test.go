package paycrest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/entities"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(Config{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 2,
	}, logger.NewNop())
	return client, server
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, data interface{}) {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	err = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "success",
		"message": "OK",
		"data":    json.RawMessage(payload),
	})
	require.NoError(t, err)
}

func TestFetchRate(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/rates/USDC/100/NGN", r.URL.Path)
		assert.Equal(t, "base", r.URL.Query().Get("network"))
		assert.Equal(t, "test-key", r.Header.Get("API-Key"))
		writeEnvelope(t, w, "1545.50")
	}))

	rate, err := client.FetchRate(context.Background(), entities.TokenUSDC,
		decimal.RequireFromString("100"), "NGN", "base")

	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1545.50")))
}

func TestFetchRateRejectsNonPositiveAmount(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))

	_, err := client.FetchRate(context.Background(), entities.TokenUSDC, decimal.Zero, "NGN", "base")

	assert.Error(t, err)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestFetchRateMalformedRate(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, "not-a-rate")
	}))

	_, err := client.FetchRate(context.Background(), entities.TokenUSDC,
		decimal.RequireFromString("100"), "NGN", "base")

	assert.ErrorContains(t, err, "malformed rate")
}

func TestSupportedCurrencies(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/currencies", r.URL.Path)
		writeEnvelope(t, w, []map[string]string{
			{"code": "NGN", "name": "Nigerian Naira"},
			{"code": "KES", "name": "Kenyan Shilling"},
		})
	}))

	currencies, err := client.SupportedCurrencies(context.Background())

	require.NoError(t, err)
	require.Len(t, currencies, 2)
	assert.Equal(t, "NGN", currencies[0].Code)
	assert.Equal(t, "Kenyan Shilling", currencies[1].Name)
}

func TestSupportedInstitutions(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/institutions/TZS", r.URL.Path)
		writeEnvelope(t, w, []map[string]string{
			{"name": "M-Pesa", "code": "MPESA", "type": "mobile_money"},
			{"name": "CRDB Bank", "code": "CRDB", "type": "bank"},
		})
	}))

	institutions, err := client.SupportedInstitutions(context.Background(), "TZS")

	require.NoError(t, err)
	require.Len(t, institutions, 2)
	assert.Equal(t, "bank", institutions[1].Type, "jurisdiction filtering is the caller's job")
}

func TestVerifyAccount(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/verify-account", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "GTB", body["institution"])
		assert.Equal(t, "0123456789", body["accountIdentifier"])
		writeEnvelope(t, w, "ADA OBI")
	}))

	name, err := client.VerifyAccount(context.Background(), "GTB", "0123456789")

	require.NoError(t, err)
	assert.Equal(t, "ADA OBI", name)
}

func TestVerifyAccountNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "error",
			"message": "account not found",
		})
	}))

	_, err := client.VerifyAccount(context.Background(), "GTB", "0000000000")

	require.Error(t, err)
	var apiErr *ErrorResponse
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "account not found", apiErr.Message)
}

func TestGetRetriesServerErrors(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": "upstream down"})
			return
		}
		writeEnvelope(t, w, []map[string]string{{"code": "NGN", "name": "Nigerian Naira"}})
	}))

	currencies, err := client.SupportedCurrencies(context.Background())

	require.NoError(t, err)
	assert.Len(t, currencies, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestCreateOrder(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/sender/orders", r.URL.Path)
		var body orderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "base", body.Network)
		assert.Equal(t, "USDC", body.Token)
		assert.Equal(t, "GTB", body.Recipient.Institution)
		writeEnvelope(t, w, map[string]interface{}{
			"receiveAddress": "0xreceive",
			"amount":         "100",
			"reference":      "ord-123",
			"senderFee":      "0.5",
			"transactionFee": "0.1",
			"validUntil":     time.Now().Add(30 * time.Minute).Format(time.RFC3339),
		})
	}))

	order, err := client.CreateOrder(context.Background(), &entities.OrderRequest{
		Amount:  decimal.RequireFromString("100"),
		Rate:    decimal.RequireFromString("1545.5"),
		Network: "base",
		Token:   entities.TokenUSDC,
		Recipient: entities.OrderRecipient{
			Institution:       "GTB",
			AccountIdentifier: "0123456789",
			AccountName:       "ADA OBI",
		},
		ReturnAddress: "0xwallet",
		Reference:     "ref-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "0xreceive", order.ReceiveAddress)
	assert.Equal(t, "ord-123", order.Reference)
	assert.True(t, order.Amount.Equal(decimal.RequireFromString("100")))
}

func TestCreateOrderIsNeverRetried(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": "upstream down"})
	}))

	_, err := client.CreateOrder(context.Background(), &entities.OrderRequest{
		Amount:  decimal.RequireFromString("100"),
		Rate:    decimal.RequireFromString("1545.5"),
		Network: "base",
		Token:   entities.TokenUSDC,
	})

	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "a failed order must not be resubmitted")
}
