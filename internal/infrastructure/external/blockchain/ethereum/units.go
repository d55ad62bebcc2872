package ethereum

import (
	"math/big"
	"strings"

	"github.com/qqdog1/ws/internal/domain/apperr"
	"github.com/shopspring/decimal"
)

const (
	EtherDecimals = 18

	// decimal digits of the largest uint256
	maxUint256Digits  = 78
	maxFractionDigits = 128
)

// parseAmount reads a non-negative plain decimal and rejects values whose
// integer part at the given scale cannot fit uint256. The bound is checked on
// the coefficient and exponent so nothing large is ever materialized.
func parseAmount(op, amount string, decimals int) (decimal.Decimal, error) {
	if strings.ContainsAny(amount, "eE") {
		return decimal.Zero, apperr.New(apperr.InvalidAmount, op, "amount %q must be a plain decimal", amount)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, apperr.New(apperr.InvalidAmount, op, "amount %q is not a decimal number", amount)
	}
	if d.Sign() < 0 {
		return decimal.Zero, apperr.New(apperr.InvalidAmount, op, "amount %q is negative", amount)
	}
	if -int64(d.Exponent()) > maxFractionDigits {
		return decimal.Zero, apperr.New(apperr.InvalidAmount, op, "amount %q has more than %d fractional digits", amount, maxFractionDigits)
	}
	if d.Sign() > 0 {
		digits := int64(len(d.Coefficient().String())) + int64(d.Exponent()) + int64(decimals)
		if digits > maxUint256Digits {
			return decimal.Zero, apperr.New(apperr.InvalidAmount, op, "amount %q overflows uint256", amount)
		}
	}
	return d, nil
}

// ConvertEtherToWei returns amount*10^18. Amounts with fractional wei are rejected.
func ConvertEtherToWei(amount string) (*big.Int, error) {
	d, err := parseAmount("convertEtherToWei", amount, EtherDecimals)
	if err != nil {
		return nil, err
	}
	scaled := d.Shift(EtherDecimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, apperr.New(apperr.InvalidAmount, "convertEtherToWei", "amount %q has fractional wei", amount)
	}
	wei := scaled.BigInt()
	if wei.Cmp(maxUint256) > 0 {
		return nil, apperr.New(apperr.InvalidAmount, "convertEtherToWei", "amount %q overflows uint256", amount)
	}
	return wei, nil
}

// ConvertTokenToBigInt returns floor(amount*10^decimals). Digits beyond the
// token precision are truncated; a non-zero amount that truncates to zero is rejected.
func ConvertTokenToBigInt(amount string, decimals int) (*big.Int, error) {
	d, err := parseAmount("convertTokenToBigInt", amount, decimals)
	if err != nil {
		return nil, err
	}
	raw := d.Shift(int32(decimals)).Truncate(0).BigInt()
	if raw.Sign() == 0 && d.Sign() > 0 {
		return nil, apperr.New(apperr.InvalidAmount, "convertTokenToBigInt", "amount %q is below token precision", amount)
	}
	if raw.Cmp(maxUint256) > 0 {
		return nil, apperr.New(apperr.InvalidAmount, "convertTokenToBigInt", "amount %q overflows uint256", amount)
	}
	return raw, nil
}

// ConvertBigIntToToken renders base units as a decimal string without trailing zeros.
func ConvertBigIntToToken(value *big.Int, decimals int) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, int32(-decimals)).String()
}
