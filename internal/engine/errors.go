package engine

import "errors"

// Operation errors returned to callers. Each maps to one rejection class;
// handlers match with errors.Is.
var (
	// ErrInvalidAmount rejects zero, negative, or overflowing amounts, and
	// self-transfers.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientBalance rejects a transfer the sender cannot cover
	// (net plus fee).
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrConversionInProgress rejects a conversion while an earlier hand-off
	// is still unresolved.
	ErrConversionInProgress = errors.New("conversion in progress")

	// ErrConversionFailed reports a gateway failure. The drained amount has
	// already been credited back to the fee pool when this is returned.
	ErrConversionFailed = errors.New("conversion failed")

	// ErrDistributionSkipped reports a tick before the interval elapsed.
	// No state changed.
	ErrDistributionSkipped = errors.New("distribution skipped")

	// ErrLiquidityBelowThreshold reports a provisioning attempt with the
	// reserve under the configured minimum. No state changed.
	ErrLiquidityBelowThreshold = errors.New("reserve below liquidity threshold")

	// ErrLiquidityInProgress rejects a provisioning attempt while a venue
	// call is still unresolved.
	ErrLiquidityInProgress = errors.New("liquidity provisioning in progress")

	// ErrLiquidityVenueFailed reports a venue failure. The reserve was never
	// debited, so the next attempt retries with the full balance.
	ErrLiquidityVenueFailed = errors.New("liquidity venue call failed")
)
