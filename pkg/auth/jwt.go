package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims represents the merchant dashboard JWT claims. Tokens are minted
// after the wallet-auth provider confirms a login and carry the merchant's
// active wallet address alongside the session id used for session-scoped
// state.
type Claims struct {
	MerchantID    uuid.UUID `json:"merchant_id"`
	WalletAddress string    `json:"wallet_address"`
	SessionID     string    `json:"session_id"`
	jwt.RegisteredClaims
}

// GenerateToken mints an access token for an authenticated merchant.
func GenerateToken(merchantID uuid.UUID, walletAddress, sessionID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		MerchantID:    merchantID,
		WalletAddress: walletAddress,
		SessionID:     sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "nedapay",
			Subject:   merchantID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken validates a JWT token and returns the claims.
func ValidateToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
