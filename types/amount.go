package types

import (
	"fmt"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// ParseAmount parses a non-negative base-10 integer of smallest token units.
func ParseAmount(s string) (sdkmath.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return sdkmath.Int{}, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return sdkmath.Int{}, fmt.Errorf("amount %q is negative", s)
	}
	if strings.ContainsAny(s, ".eE") {
		return sdkmath.Int{}, fmt.Errorf("amount %q must be an integer of smallest units", s)
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return sdkmath.Int{}, fmt.Errorf("amount %q is not a base-10 integer", s)
		}
	}
	i, ok := new(big.Int).SetString(s, 10)
	if !ok || i.BitLen() > sdkmath.MaxBitLen {
		return sdkmath.Int{}, fmt.Errorf("amount %q is out of range", s)
	}
	return sdkmath.NewIntFromBigInt(i), nil
}

// FormatUnits renders smallest units as a decimal token amount, e.g. 1001000 @6 -> "1.001".
func FormatUnits(amount sdkmath.Int, decimals uint8) string {
	s := amount.String()
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	d := int(decimals)
	if len(s) <= d {
		s = strings.Repeat("0", d-len(s)+1) + s
	}
	whole, frac := s[:len(s)-d], strings.TrimRight(s[len(s)-d:], "0")
	out := whole
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// ParseBps parses a basis-point rate such as "14" or "1.5" exactly.
func ParseBps(s string) (sdkmath.LegacyDec, error) {
	bps, err := sdkmath.LegacyNewDecFromStr(strings.TrimSpace(s))
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("invalid basis points %q: %w", s, err)
	}
	if bps.IsNegative() {
		return sdkmath.LegacyDec{}, fmt.Errorf("basis points %q are negative", s)
	}
	return bps, nil
}
