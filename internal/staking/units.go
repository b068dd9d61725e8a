package staking

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// TokenDecimals is the fixed-point precision of the staking token.
const TokenDecimals = 18

// ParseAmount converts a decimal token string such as "12.5" to base units.
// Negative and zero values parse; rejecting them is the validator's job.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("amount is empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.Exponent() < -TokenDecimals && !d.Equal(d.Truncate(TokenDecimals)) {
		return nil, fmt.Errorf("invalid amount %q: more than %d decimal places", s, TokenDecimals)
	}
	return d.Shift(TokenDecimals).BigInt(), nil
}

// ToDecimal converts base units to a token decimal.
func ToDecimal(amount *big.Int) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -TokenDecimals)
}

// FormatAmount renders base units as an exact token string without trailing zeros.
func FormatAmount(amount *big.Int) string {
	return ToDecimal(amount).String()
}

// FormatAmountFixed renders base units rounded to places decimals.
func FormatAmountFixed(amount *big.Int, places int32) string {
	return ToDecimal(amount).StringFixed(places)
}

// AmountFloat is a lossy conversion for gauges.
func AmountFloat(amount *big.Int) float64 {
	return ToDecimal(amount).InexactFloat64()
}
