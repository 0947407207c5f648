package math

import (
	"errors"
	"math"
	"math/big"
	"sync"
)

// BasisPointDenominator is the denominator for rate arithmetic: rates are
// expressed as integer basis points out of 10_000 so no floating point ever
// touches a balance.
const BasisPointDenominator = 10_000

// DecimalConfig defines fixed-point precision for an asset
type DecimalConfig struct {
	DecimalPrecision int   // Number of decimal places
	Scale            int64 // 10^DecimalPrecision
}

var (
	// TokenConfig: fee-asset smallest unit (6 decimals)
	TokenConfig = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000}
	// SettlementConfig: WBTC smallest unit (8 decimals, satoshi-like)
	SettlementConfig = DecimalConfig{DecimalPrecision: 8, Scale: 100_000_000}
)

// ErrOverflow reports checked arithmetic that would wrap around.
var ErrOverflow = errors.New("integer overflow")

// Int128 is a pooled big.Int for intermediate calculations
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	int128Pool.Put(v)
}

// MulDivFloor computes floor(a * b / denom) using int128 intermediates so the
// product can never silently wrap. denom must be positive; a and b must be
// non-negative.
func MulDivFloor(a, b, denom int64) (int64, error) {
	if a < 0 || b < 0 || denom <= 0 {
		return 0, ErrOverflow
	}

	product := getInt128()
	product.Mul(big.NewInt(a), big.NewInt(b))
	product.Quo(product, big.NewInt(denom))

	if !product.IsInt64() {
		putInt128(product)
		return 0, ErrOverflow
	}

	result := product.Int64()
	putInt128(product)
	return result, nil
}

// CheckedAdd returns a + b, failing instead of wrapping.
func CheckedAdd(a, b int64) (int64, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, ErrOverflow
	}
	if b < 0 && a < math.MinInt64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// CheckedSub returns a - b, failing instead of wrapping.
func CheckedSub(a, b int64) (int64, error) {
	if b < 0 && a > math.MaxInt64+b {
		return 0, ErrOverflow
	}
	if b > 0 && a < math.MinInt64+b {
		return 0, ErrOverflow
	}
	return a - b, nil
}
