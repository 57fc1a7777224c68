// Package address normalises chain addresses into the case-insensitive
// canonical form used as graph node identity.
package address

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Canonical returns the canonical identity for an address string.
// Well-formed EVM hex addresses are normalised through go-ethereum (a missing
// 0x prefix is added); anything else is trimmed and lowercased so that
// identity stays case-insensitive for non-EVM or synthetic identifiers.
func Canonical(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if common.IsHexAddress(addr) {
		return strings.ToLower(common.HexToAddress(addr).Hex())
	}
	return strings.ToLower(addr)
}

// PatternScore counts the character 'f' among the first six characters of
// the address and scales it by 100. On a canonical 0x address the prefix
// occupies two of those six characters.
func PatternScore(addr string) float64 {
	prefix := addr
	if len(prefix) > 6 {
		prefix = prefix[:6]
	}
	return float64(strings.Count(prefix, "f")) * 100
}
