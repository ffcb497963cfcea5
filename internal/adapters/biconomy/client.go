// Package biconomy wraps the gas-abstraction provider. Initialization builds
// a per-wallet smart account client that can move tokens without the wallet
// holding native gas.
package biconomy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

// Config represents gas-abstraction provider configuration.
type Config struct {
	BundlerURL   string
	PaymasterKey string
	Timeout      time.Duration
}

// SignAuthorizationFunc signs a smart-account authorization for an embedded
// wallet. It is supplied by the wallet provider integration and is only
// available while the owning wallet has a live provider handle.
type SignAuthorizationFunc func(ctx context.Context, chainID int64, payload []byte) ([]byte, error)

// Client creates gas-abstraction sessions against the bundler API.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new gas-abstraction provider client.
func NewClient(config Config, logger *logger.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

type initRequest struct {
	WalletAddress string `json:"walletAddress"`
	ChainID       int64  `json:"chainId"`
	Mode          string `json:"mode"`
	Authorization string `json:"authorization,omitempty"`
}

type initResponse struct {
	SessionID           string `json:"sessionId"`
	SmartAccountAddress string `json:"smartAccountAddress"`
}

// InitializeEmbedded establishes a gas-abstraction session for an embedded
// wallet. signAuth must come from a live provider handle; the bundler
// requires a fresh authorization signature per chain.
func (c *Client) InitializeEmbedded(ctx context.Context, walletAddress string, chainID int64, signAuth SignAuthorizationFunc) (*GasClient, error) {
	if signAuth == nil {
		return nil, fmt.Errorf("embedded initialization requires a provider handle")
	}

	payload := []byte(fmt.Sprintf("%s:%d:%d", walletAddress, chainID, time.Now().Unix()))
	sig, err := signAuth(ctx, chainID, payload)
	if err != nil {
		return nil, fmt.Errorf("authorization signing failed: %w", err)
	}

	return c.initialize(ctx, initRequest{
		WalletAddress: walletAddress,
		ChainID:       chainID,
		Mode:          "embedded",
		Authorization: fmt.Sprintf("0x%x", sig),
	})
}

// InitializeExternal establishes a gas-abstraction session for an external
// wallet. External sessions skip the authorization signature; the bundler
// verifies ownership on first use.
func (c *Client) InitializeExternal(ctx context.Context, walletAddress string, chainID int64) (*GasClient, error) {
	return c.initialize(ctx, initRequest{
		WalletAddress: walletAddress,
		ChainID:       chainID,
		Mode:          "external",
	})
}

func (c *Client) initialize(ctx context.Context, req initRequest) (*GasClient, error) {
	var resp initResponse
	if err := c.post(ctx, "/api/v1/smart-accounts", req, &resp); err != nil {
		return nil, err
	}
	if resp.SessionID == "" {
		return nil, fmt.Errorf("bundler returned empty session")
	}

	c.logger.Info("Gas abstraction session established",
		"wallet", req.WalletAddress,
		"chain_id", req.ChainID,
		"smart_account", resp.SmartAccountAddress)

	return &GasClient{
		parent:        c,
		sessionID:     resp.SessionID,
		smartAccount:  resp.SmartAccountAddress,
		walletAddress: req.WalletAddress,
		chainID:       req.ChainID,
	}, nil
}

// GasClient is a ready gas-abstraction session bound to one wallet on one
// chain. It is safe for concurrent use.
type GasClient struct {
	parent        *Client
	sessionID     string
	smartAccount  string
	walletAddress string
	chainID       int64
}

// SmartAccount returns the smart account address backing this session.
func (g *GasClient) SmartAccount() string {
	return g.smartAccount
}

type transferRequest struct {
	SessionID    string `json:"sessionId"`
	TokenAddress string `json:"tokenAddress"`
	To           string `json:"to"`
	Amount       string `json:"amount"`
	ChainID      int64  `json:"chainId"`
}

type transferResponse struct {
	UserOpHash string `json:"userOpHash"`
	TxHash     string `json:"transactionHash"`
	Status     string `json:"status"`
}

// ExecuteTransfer moves amount base units of the token to the given address
// through the smart account, with gas sponsored by the paymaster. The
// returned hash is the settlement transaction hash once the user operation
// lands on chain.
func (g *GasClient) ExecuteTransfer(ctx context.Context, tokenAddress, to string, amount *big.Int) (string, error) {
	if amount == nil || amount.Sign() <= 0 {
		return "", fmt.Errorf("transfer amount must be positive")
	}

	req := transferRequest{
		SessionID:    g.sessionID,
		TokenAddress: tokenAddress,
		To:           to,
		Amount:       amount.String(),
		ChainID:      g.chainID,
	}

	var resp transferResponse
	if err := g.parent.post(ctx, "/api/v1/smart-accounts/transfer", req, &resp); err != nil {
		return "", fmt.Errorf("abstracted transfer failed: %w", err)
	}
	if resp.Status == "failed" {
		return "", fmt.Errorf("abstracted transfer rejected by bundler: userop %s", resp.UserOpHash)
	}
	if resp.TxHash == "" {
		return "", fmt.Errorf("bundler returned no transaction hash for userop %s", resp.UserOpHash)
	}
	return resp.TxHash, nil
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) post(ctx context.Context, endpoint string, body, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BundlerURL+endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.PaymasterKey != "" {
		req.Header.Set("X-Paymaster-Key", c.config.PaymasterKey)
	}

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
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("bundler error: status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("bundler error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
