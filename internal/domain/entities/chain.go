package entities

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Chain identifies a supported EVM network.
type Chain string

const (
	ChainBase     Chain = "BASE"
	ChainArbitrum Chain = "ARBITRUM"
	ChainPolygon  Chain = "POLYGON"
	ChainCelo     Chain = "CELO"
	ChainBSC      Chain = "BSC"
	ChainScroll   Chain = "SCROLL"
)

// AllChains lists every network the dashboard can off-ramp from.
var AllChains = []Chain{ChainBase, ChainArbitrum, ChainPolygon, ChainCelo, ChainBSC, ChainScroll}

var chainIDs = map[Chain]int64{
	ChainBase:     8453,
	ChainArbitrum: 42161,
	ChainPolygon:  137,
	ChainCelo:     42220,
	ChainBSC:      56,
	ChainScroll:   534352,
}

var chainDisplayNames = map[Chain]string{
	ChainBase:     "Base",
	ChainArbitrum: "Arbitrum One",
	ChainPolygon:  "Polygon",
	ChainCelo:     "Celo",
	ChainBSC:      "BNB Smart Chain",
	ChainScroll:   "Scroll",
}

var chainNativeSymbols = map[Chain]string{
	ChainBase:     "ETH",
	ChainArbitrum: "ETH",
	ChainPolygon:  "POL",
	ChainCelo:     "CELO",
	ChainBSC:      "BNB",
	ChainScroll:   "ETH",
}

// ID returns the EVM chain id, or 0 for an unknown chain.
func (c Chain) ID() int64 {
	return chainIDs[c]
}

// DisplayName returns the human-readable network name.
func (c Chain) DisplayName() string {
	if name, ok := chainDisplayNames[c]; ok {
		return name
	}
	return string(c)
}

// NativeSymbol returns the chain's native fee currency symbol.
func (c Chain) NativeSymbol() string {
	return chainNativeSymbols[c]
}

// NetworkSlug returns the processor-facing network identifier: the display
// name lowercased with spaces collapsed to hyphens.
func (c Chain) NetworkSlug() string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(c.DisplayName())), " ", "-")
}

// Valid reports whether the chain is one of the supported networks.
func (c Chain) Valid() bool {
	_, ok := chainIDs[c]
	return ok
}

// abstractionChains are the networks eligible for gas-abstracted execution.
var abstractionChains = map[Chain]bool{
	ChainBase:     true,
	ChainArbitrum: true,
	ChainCelo:     true,
	ChainPolygon:  true,
	ChainBSC:      true,
}

// SupportsGasAbstraction reports whether fee-abstracted execution is
// available on this chain.
func (c Chain) SupportsGasAbstraction() bool {
	return abstractionChains[c]
}

// nativeGasFees are display estimates for a direct ERC-20 transfer, priced
// in the chain's native currency.
var nativeGasFees = map[Chain]decimal.Decimal{
	ChainBase:     decimal.RequireFromString("0.0001"),
	ChainArbitrum: decimal.RequireFromString("0.0002"),
	ChainPolygon:  decimal.RequireFromString("0.01"),
	ChainCelo:     decimal.RequireFromString("0.001"),
	ChainBSC:      decimal.RequireFromString("0.0003"),
	ChainScroll:   decimal.RequireFromString("0.0002"),
}

// NativeGasFee returns the estimated direct-transfer fee in native currency.
func (c Chain) NativeGasFee() decimal.Decimal {
	return nativeGasFees[c]
}
