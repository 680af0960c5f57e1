package flows

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// nativeDecimals is the native-currency precision on every supported chain.
const nativeDecimals = 18

// feeDisplayPlaces is the precision used for user-facing fee strings.
const feeDisplayPlaces = 8

// ScaleAmount converts a human-entered token amount into base units.
func ScaleAmount(amount string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %q", amount)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", amount, decimals)
	}
	return scaled.BigInt(), nil
}

// UnscaleAmount converts base units back to a human-readable decimal.
func UnscaleAmount(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// FormatFee renders a wei amount as a fixed 8-decimal display string with the
// chain's native symbol.
func FormatFee(wei *big.Int, symbol string) string {
	if wei == nil {
		wei = new(big.Int)
	}
	return decimal.NewFromBigInt(wei, -nativeDecimals).StringFixed(feeDisplayPlaces) + " " + symbol
}
