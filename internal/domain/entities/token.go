package entities

import "github.com/shopspring/decimal"

// Token identifies a supported stablecoin.
type Token string

const (
	TokenUSDC Token = "USDC"
	TokenUSDT Token = "USDT"
)

// AllTokens lists the supported off-ramp tokens.
var AllTokens = []Token{TokenUSDC, TokenUSDT}

// tokenAddresses maps each token to its contract address per chain. A token
// with no entry for a chain is not transferable there; callers must check
// before touching the network.
var tokenAddresses = map[Token]map[Chain]string{
	TokenUSDC: {
		ChainBase:     "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		ChainArbitrum: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
		ChainPolygon:  "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		ChainCelo:     "0xcebA9300f2b948710d2653dD7B07f33A8B32118C",
		ChainBSC:      "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d",
		ChainScroll:   "0x06eFdBFf2a14a7c8E15944D1F4A48F9F95F663A4",
	},
	TokenUSDT: {
		ChainArbitrum: "0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9",
		ChainPolygon:  "0xc2132D05D31c914a87C6611C10748AEb04B58e8F",
		ChainCelo:     "0x48065fbBE25f71C9282ddf5e1cD6D6A887483D5e",
		ChainBSC:      "0x55d398326f99059fF775485246999027B3197955",
	},
}

// Valid reports whether the token is one of the supported stablecoins.
func (t Token) Valid() bool {
	_, ok := tokenAddresses[t]
	return ok
}

// AddressOn returns the token's contract address on the given chain. The
// second return is false when the token is not deployed there.
func (t Token) AddressOn(chain Chain) (string, bool) {
	addrs, ok := tokenAddresses[t]
	if !ok {
		return "", false
	}
	addr, ok := addrs[chain]
	return addr, ok
}

// SupportedChains returns the chains this token can be transferred on.
func (t Token) SupportedChains() []Chain {
	var chains []Chain
	for _, c := range AllChains {
		if _, ok := tokenAddresses[t][c]; ok {
			chains = append(chains, c)
		}
	}
	return chains
}

// tokenDecimals holds on-chain precision per deployment. Both stablecoins
// use 6 decimals everywhere except BSC, where they use 18.
var tokenDecimals = map[Token]map[Chain]int32{
	TokenUSDC: {
		ChainBase:     6,
		ChainArbitrum: 6,
		ChainPolygon:  6,
		ChainCelo:     6,
		ChainBSC:      18,
		ChainScroll:   6,
	},
	TokenUSDT: {
		ChainArbitrum: 6,
		ChainPolygon:  6,
		ChainCelo:     6,
		ChainBSC:      18,
	},
}

// DecimalsOn returns the token's on-chain precision for the chain. The
// second return is false when the token is not deployed there.
func (t Token) DecimalsOn(chain Chain) (int32, bool) {
	decimals, ok := tokenDecimals[t]
	if !ok {
		return 0, false
	}
	d, ok := decimals[chain]
	return d, ok
}

// ToBaseUnits converts a token-unit amount to base units on the chain.
func (t Token) ToBaseUnits(chain Chain, amount decimal.Decimal) (decimal.Decimal, bool) {
	d, ok := t.DecimalsOn(chain)
	if !ok {
		return decimal.Zero, false
	}
	return amount.Shift(d), true
}

// FromBaseUnits converts a base-unit amount to token units on the chain.
func (t Token) FromBaseUnits(chain Chain, base decimal.Decimal) (decimal.Decimal, bool) {
	d, ok := t.DecimalsOn(chain)
	if !ok {
		return decimal.Zero, false
	}
	return base.Shift(-d), true
}

// abstractionTokens are the tokens eligible for gas-abstracted execution.
var abstractionTokens = map[Token]bool{
	TokenUSDC: true,
}

// SupportsGasAbstraction reports whether the abstraction provider can pay
// fees in this token.
func (t Token) SupportsGasAbstraction() bool {
	return abstractionTokens[t]
}

// abstractedGasFees are fee estimates for the abstracted path, priced in the
// transferred token itself.
var abstractedGasFees = map[Token]decimal.Decimal{
	TokenUSDC: decimal.RequireFromString("0.05"),
	TokenUSDT: decimal.RequireFromString("0.05"),
}

// AbstractedGasFee returns the estimated abstraction fee in token units.
func (t Token) AbstractedGasFee() decimal.Decimal {
	return abstractedGasFees[t]
}
