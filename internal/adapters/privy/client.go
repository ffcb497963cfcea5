// Package privy integrates the wallet auth provider: user lookup, linked
// accounts and wallet inventory for a merchant.
package privy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/NEDA-LABS/nedapay-service/internal/domain/entities"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

// Config represents wallet auth provider configuration.
type Config struct {
	AppID     string
	AppSecret string
	BaseURL   string
	Timeout   time.Duration
}

// Client queries the wallet auth provider's REST API.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new wallet auth provider client.
func NewClient(config Config, logger *logger.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "https://auth.privy.io"
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

type linkedAccountPayload struct {
	Type             string `json:"type"`
	Address          string `json:"address,omitempty"`
	WalletClientType string `json:"wallet_client_type,omitempty"`
	ConnectorType    string `json:"connector_type,omitempty"`
	Email            string `json:"email,omitempty"`
}

type userPayload struct {
	ID             string                 `json:"id"`
	CreatedAt      int64                  `json:"created_at"`
	LinkedAccounts []linkedAccountPayload `json:"linked_accounts"`
}

// GetUser fetches a user and their linked accounts by provider user ID.
func (c *Client) GetUser(ctx context.Context, userID string) (*entities.AuthUser, error) {
	var payload userPayload
	if err := c.get(ctx, "/api/v1/users/"+url.PathEscape(userID), &payload); err != nil {
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}
	return toAuthUser(&payload), nil
}

// GetUserByWallet resolves a user by one of their wallet addresses.
func (c *Client) GetUserByWallet(ctx context.Context, address string) (*entities.AuthUser, error) {
	var payload userPayload
	endpoint := "/api/v1/users/wallet/address?address=" + url.QueryEscape(address)
	if err := c.get(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("wallet lookup failed: %w", err)
	}
	return toAuthUser(&payload), nil
}

func toAuthUser(p *userPayload) *entities.AuthUser {
	user := &entities.AuthUser{
		ID:        p.ID,
		CreatedAt: time.Unix(p.CreatedAt, 0).UTC(),
	}
	for _, acct := range p.LinkedAccounts {
		if acct.Type != "wallet" {
			user.LinkedAccounts = append(user.LinkedAccounts, entities.LinkedAccount{
				Type:   acct.Type,
				Detail: acct.Email,
			})
			continue
		}
		wallet := entities.WalletContext{
			Address:  acct.Address,
			Category: categorize(acct.WalletClientType, acct.ConnectorType),
		}
		// Only embedded wallets carry a provider handle and can be
		// chain-switched programmatically.
		if wallet.Category == entities.CustodyEmbedded {
			wallet.HasProviderHandle = true
			wallet.CanSwitchChain = true
		}
		user.Wallets = append(user.Wallets, wallet)
		user.LinkedAccounts = append(user.LinkedAccounts, entities.LinkedAccount{
			Type:    acct.Type,
			Address: acct.Address,
		})
	}
	return user
}

// categorize maps provider wallet metadata onto the closed custody set.
// Coinbase smart wallets manage their own gas and must never be put through
// gas abstraction.
func categorize(clientType, connectorType string) entities.CustodyCategory {
	ct := strings.ToLower(clientType)
	switch {
	case ct == "privy":
		return entities.CustodyEmbedded
	case strings.Contains(ct, "coinbase") || strings.Contains(strings.ToLower(connectorType), "coinbase"):
		return entities.CustodyExternalCoinbase
	default:
		return entities.CustodyExternalStandard
	}
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.config.AppID, c.config.AppSecret)
	req.Header.Set("privy-app-id", c.config.AppID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("auth provider error: status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("auth provider error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
